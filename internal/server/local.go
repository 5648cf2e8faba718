package server

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// handleLocal answers the messages the server handles itself. Replies are
// tagged with the broadcast id. Runs on the dispatch queue.
func (s *Server) handleLocal(from uint64, msg protocol.Message) bool {
	switch msg.Kind {
	case protocol.KindGetEFBState:
		s.reply(from, protocol.EFBState{State: s.efbConnected})

	case protocol.KindGetServerState:
		s.reply(from, protocol.ServerState{State: s.State() == StateRunning})

	case protocol.KindFileExists:
		var req protocol.FileExists
		if !s.decodeLocal(from, msg, &req) {
			return true
		}
		s.task(from, func(context.Context) protocol.Content {
			_, err := os.Stat(req.Path)
			return protocol.FileExistsResponse{ID: req.ID, Result: err == nil}
		})

	case protocol.KindGetFile:
		var req protocol.GetFile
		if !s.decodeLocal(from, msg, &req) {
			return true
		}
		s.task(from, func(context.Context) protocol.Content {
			data, err := os.ReadFile(req.Path)
			if err != nil {
				s.logger.Warn("read file", "path", req.Path, "err", err)
				return protocol.GetFileResponse{ID: req.ID}
			}
			return protocol.GetFileResponse{ID: req.ID, Data: base64.StdEncoding.EncodeToString(data)}
		})

	case protocol.KindOpenFile:
		var req protocol.OpenFile
		if !s.decodeLocal(from, msg, &req) {
			return true
		}
		s.task(from, func(ctx context.Context) protocol.Content {
			path, err := s.opener.OpenFile(ctx, req.Path, req.Filters)
			if err != nil {
				s.logger.Warn("open file dialog", "path", req.Path, "err", err)
				path = ""
			}
			return protocol.OpenFileResponse{ID: req.ID, Path: path}
		})

	default:
		return false
	}
	return true
}

func (s *Server) decodeLocal(from uint64, msg protocol.Message, v protocol.Content) bool {
	if err := msg.Decode(v); err != nil {
		s.logger.Warn("dropping request", "from", from, "err", err)
		s.metrics.Dropped("malformed")
		return false
	}
	return true
}

// task runs work off the dispatch queue on behalf of from and queues its
// reply.
func (s *Server) task(from uint64, work func(ctx context.Context) protocol.Content) {
	ok := s.spawn(from, func(ctx context.Context) {
		resp := work(ctx)
		s.queue.Dispatch(func() {
			s.reply(from, resp)
		})
	})
	if !ok {
		s.logger.Debug("request dropped, owner closing", "from", from)
		s.metrics.Dropped("closing")
	}
}
