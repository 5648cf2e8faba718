package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/assets"
)

// routes builds the handler of one serving cycle. WebSocket upgrades on any
// path become sessions; plain GETs serve the embedded UI.
func (s *Server) routes(c *cycle) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if isUpgrade(req) {
				s.serveWS(c, w, req)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/*", s.serveAsset)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		plain(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		plain(w, http.StatusNotFound, "Not Found")
	})
	return r
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		if r.URL.Query().Has("alive") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.WriteHeader(http.StatusOK)
			return
		}
		name = "index.html"
	}

	data, ok := assets.Lookup(name)
	if !ok {
		s.logger.Debug("asset not found", "path", r.URL.Path)
		plain(w, http.StatusNotFound, "Not Found")
		return
	}
	w.Header().Set("Content-Type", assets.ContentType(name))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func plain(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	w.Write([]byte(body))
}
