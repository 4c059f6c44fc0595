package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/habiliai/nativeagent/errors"
)

func (s *server) localState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.LocalState())
}

// configureLocal changes any of url, model and enabled. A new url reconnects.
func (s *server) configureLocal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL     *string `json:"url"`
		Model   *string `json:"model"`
		Enabled *bool   `json:"enabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled != nil {
		s.session.SetLocalEnabled(*req.Enabled)
	}
	if req.URL != nil {
		err := s.session.SetLocalURL(r.Context(), *req.URL)
		if errors.Is(err, errors.ErrInvalidParams) {
			s.writeError(w, err)
			return
		}
		if err != nil {
			s.logger.Info("local backend not reachable after url change", slog.Any("error", err))
		}
	}
	if req.Model != nil {
		if err := s.session.SelectLocalModel(*req.Model); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, s.session.LocalState())
}

func (s *server) connectLocal(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ConnectLocal(r.Context()); err != nil {
		s.logger.Info("local backend not reachable", slog.Any("error", err))
	}
	s.writeJSON(w, http.StatusOK, s.session.LocalState())
}

func (s *server) listModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.LocalState().Models)
}

// pullModel streams pull progress as NDJSON status lines.
func (s *server) pullModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	out := newNDJSON(w, s.logger)
	err := s.session.PullLocalModel(r.Context(), req.Name, func(status string) {
		out.write(line{Type: "progress", Status: status})
	})
	switch {
	case err != nil && !out.started:
		s.writeError(w, err)
	case err != nil:
		out.write(line{Type: "error", Error: err.Error()})
	default:
		out.write(line{Type: "done", Payload: s.session.LocalState()})
	}
}

func (s *server) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteLocalModel(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.LocalState())
}
