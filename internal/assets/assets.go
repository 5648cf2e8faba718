// Package assets embeds the web UI served by the bridge.
package assets

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed web
var content embed.FS

// Lookup returns the asset at name, a slash-separated path relative to the
// web root ("index.html", "app.js"). Only exact file names match.
func Lookup(name string) ([]byte, bool) {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return nil, false
	}
	data, err := fs.ReadFile(content, path.Join("web", name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// ContentType is text/javascript for .js files and text/html otherwise.
func ContentType(name string) string {
	if path.Ext(name) == ".js" {
		return "text/javascript"
	}
	return "text/html"
}
