package server

import (
	"context"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"yzyvault/core/types"
	"yzyvault/services/vaultd/api"
	"yzyvault/storage/journal"
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.Error{Error: "journal_disabled", Message: "event journal is not configured", RequestID: requestID(r.Context())})
		return
	}
	query := r.URL.Query()
	filter := journal.Filter{
		Type:    strings.TrimSpace(query.Get("type")),
		Account: strings.TrimSpace(query.Get("account")),
	}
	if raw := query.Get("after"); raw != "" {
		after, err := parseUint(raw, "after")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.After = after
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := parseUint(raw, "limit")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if limit > journal.MaxLimit {
			limit = journal.MaxLimit
		}
		filter.Limit = int(limit)
	}
	if filter.Account != "" {
		addr, err := parseAddress(filter.Account, "account")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Account = addr.Hex()
	}
	evs, err := s.journal.Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Events{Events: evs})
}

// handleStream pushes committed events to a websocket client. An optional
// type query parameter restricts the stream to one event type prefix.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, api.Error{Error: "stream_disabled", Message: "event stream is not configured", RequestID: requestID(r.Context())})
		return
	}
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	sub, cancel := s.broadcaster.Subscribe()
	defer cancel()

	if err := s.stream(ctx, conn, sub, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, sub <-chan *types.Event, prefix string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if prefix != "" && !strings.HasPrefix(ev.Type, prefix) {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, s.streamWrite)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
