package spyapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"LCM-Bus/internal/spy"
)

type Server struct {
	spy *spy.Monitor
}

func NewServer(m *spy.Monitor) *Server {
	return &Server{spy: m}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/spy/channels", s.handleChannels)
	mux.HandleFunc("/api/spy/watch", s.handleWatch)
	mux.HandleFunc("/api/spy/unwatch", s.handleUnwatch)
	mux.HandleFunc("/api/spy/publish", s.handlePublish)
	mux.HandleFunc("/api/spy/channel/", s.handleChannel)
	mux.HandleFunc("/api/spy/stream", s.handleStream)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": s.spy.Channels()})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	if r.Method == http.MethodOptions {
		writeNoContent(w)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel required")
		return
	}
	st, err := s.spy.Watch(req.Channel)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, spy.ErrChannelWatched) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": st})
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	if r.Method == http.MethodOptions {
		writeNoContent(w)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.spy.Unwatch(req.Channel); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, spy.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	if r.Method == http.MethodOptions {
		writeNoContent(w)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Channel string          `json:"channel"`
		Type    string          `json:"type"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Channel == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "channel and type required")
		return
	}
	if err := s.spy.Publish(req.Channel, req.Type, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/spy/channel/"), "/")
	if name == "" {
		writeError(w, http.StatusNotFound, "channel missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st, err := s.spy.Channel(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": st})
}

// handleStream relays monitor events as server-sent events. ?channel=NAME
// restricts the stream to one channel.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.spy == nil {
		writeError(w, http.StatusServiceUnavailable, "spy service unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	only := r.URL.Query().Get("channel")
	ch, cancel := s.spy.Listen()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if only != "" {
				var evt struct {
					Type    string `json:"type"`
					Channel string `json:"channel"`
				}
				if json.Unmarshal(msg, &evt) != nil || evt.Channel != only {
					continue
				}
			}
			if _, err := w.Write([]byte("event: lcm\ndata: " + string(msg) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeNoContent(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}
