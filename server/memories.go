package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

type memoryRequest struct {
	Content string `json:"content"`
}

func (s *server) listMemories(w http.ResponseWriter, r *http.Request) {
	records, err := s.session.Memories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *server) addMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	record, added, err := s.session.AddMemory(r.Context(), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, record)
}

func (s *server) forgetMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ForgetMemory(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) clearMemories(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearMemories(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) importMemories(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		FileName string `json:"fileName"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.FileName == "" {
		req.FileName = "upload"
	}
	added, err := s.session.ImportKnowledge(r.Context(), req.Text, req.FileName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *server) listSuggestions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, nonNil(s.session.Suggestions()))
}

func (s *server) analyzeConversation(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.session.AnalyzeConversation(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(suggestions))
}

func (s *server) approveSuggestion(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.session.ApproveMemory(r.Context(), req.Content); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(s.session.Suggestions()))
}

func (s *server) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.session.RejectMemory(req.Content)
	s.writeJSON(w, http.StatusOK, nonNil(s.session.Suggestions()))
}

func (s *server) clearSuggestions(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearSuggestions()
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
