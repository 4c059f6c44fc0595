package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/session"
)

type server struct {
	session *session.Session
	logger  *slog.Logger
}

// NewHandler exposes sess over HTTP under /v1.
func NewHandler(sess *session.Session, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = mylog.Discard()
	}
	s := &server{session: sess, logger: logger.WithGroup("http")}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages", s.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/transcript", s.transcript).Methods(http.MethodGet)

	v1.HandleFunc("/agent", s.getAgent).Methods(http.MethodGet)
	v1.HandleFunc("/agent", s.loadAgent).Methods(http.MethodPost)
	v1.HandleFunc("/agent", s.updateAgent).Methods(http.MethodPut)
	v1.HandleFunc("/pathway", s.setPathway).Methods(http.MethodPut)
	v1.HandleFunc("/mode", s.setMode).Methods(http.MethodPut)
	v1.HandleFunc("/settings", s.setSetting).Methods(http.MethodPut)

	v1.HandleFunc("/memories", s.listMemories).Methods(http.MethodGet)
	v1.HandleFunc("/memories", s.addMemory).Methods(http.MethodPost)
	v1.HandleFunc("/memories", s.clearMemories).Methods(http.MethodDelete)
	v1.HandleFunc("/memories/import", s.importMemories).Methods(http.MethodPost)
	v1.HandleFunc("/memories/{id}", s.forgetMemory).Methods(http.MethodDelete)

	v1.HandleFunc("/suggestions", s.listSuggestions).Methods(http.MethodGet)
	v1.HandleFunc("/suggestions", s.analyzeConversation).Methods(http.MethodPost)
	v1.HandleFunc("/suggestions", s.clearSuggestions).Methods(http.MethodDelete)
	v1.HandleFunc("/suggestions/approve", s.approveSuggestion).Methods(http.MethodPost)
	v1.HandleFunc("/suggestions/reject", s.rejectSuggestion).Methods(http.MethodPost)

	v1.HandleFunc("/local", s.localState).Methods(http.MethodGet)
	v1.HandleFunc("/local", s.configureLocal).Methods(http.MethodPut)
	v1.HandleFunc("/local/connect", s.connectLocal).Methods(http.MethodPost)
	v1.HandleFunc("/local/models", s.listModels).Methods(http.MethodGet)
	v1.HandleFunc("/local/models/pull", s.pullModel).Methods(http.MethodPost)
	v1.HandleFunc("/local/models/{name}", s.deleteModel).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		router.ServeHTTP(w, r.WithContext(ctx))
	})

	return cors(recovery(handler))
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Warn("failed to write health response", slog.Any("error", err))
	}
}

type agentView struct {
	Agent           entity.Agent    `json:"agent"`
	Loaded          bool            `json:"loaded"`
	Mode            entity.Mode     `json:"mode"`
	Pathway         entity.Pathway  `json:"pathway"`
	Settings        entity.Settings `json:"settings"`
	HostedAvailable bool            `json:"hostedAvailable"`
	HostedReason    string          `json:"hostedReason,omitempty"`
	Busy            bool            `json:"busy"`
}

func (s *server) view() agentView {
	agent, loaded := s.session.Agent()
	available, reason := s.session.HostedAvailable()
	return agentView{
		Agent:           agent,
		Loaded:          loaded,
		Mode:            s.session.Mode(),
		Pathway:         s.session.Pathway(),
		Settings:        s.session.Settings(),
		HostedAvailable: available,
		HostedReason:    reason,
		Busy:            s.session.Busy(),
	}
}

func (s *server) getAgent(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) loadAgent(w http.ResponseWriter, r *http.Request) {
	var agent entity.Agent
	if !s.decode(w, r, &agent) {
		return
	}
	if err := s.session.LoadAgent(r.Context(), agent); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) updateAgent(w http.ResponseWriter, r *http.Request) {
	var agent entity.Agent
	if !s.decode(w, r, &agent) {
		return
	}
	if err := s.session.UpdateAgent(r.Context(), agent); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) setPathway(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pathway entity.Pathway `json:"pathway"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.SetPathway(r.Context(), req.Pathway); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) setMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode entity.Mode `json:"mode"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.SetMode(r.Context(), req.Mode); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) setSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Setting session.Setting `json:"setting"`
		Value   float32         `json:"value"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.SetSetting(r.Context(), req.Setting, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view())
}

func (s *server) transcript(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Transcript())
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, errors.Wrapf(errors.ErrInvalidParams, "malformed request body: %v", err))
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", slog.Any("error", err))
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("error", err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
