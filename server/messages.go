package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/session"
)

const contentTypeNDJSON = "application/x-ndjson"

// line is one record of an NDJSON response.
type line struct {
	Type    string         `json:"type"`
	Event   *session.Event `json:"event,omitempty"`
	Status  string         `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
	Payload any            `json:"payload,omitempty"`
}

type ndjson struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	flusher http.Flusher
	started bool
	logger  *slog.Logger
}

func newNDJSON(w http.ResponseWriter, logger *slog.Logger) *ndjson {
	flusher, _ := w.(http.Flusher)
	return &ndjson{w: w, enc: json.NewEncoder(w), flusher: flusher, logger: logger}
}

func (n *ndjson) write(l line) {
	if !n.started {
		n.w.Header().Set("Content-Type", contentTypeNDJSON)
		n.w.WriteHeader(http.StatusOK)
		n.started = true
	}
	if err := n.enc.Encode(l); err != nil {
		n.logger.Debug("failed to write stream line", slog.Any("error", err))
		return
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
}

// sendMessage streams the transcript events of one exchange, then a final
// "done" line.
func (s *server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if s.session.Busy() {
		s.writeError(w, errors.ErrBusy)
		return
	}

	events, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		done <- s.session.SendMessage(r.Context(), req.Text)
	}()

	out := newNDJSON(w, s.logger)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			out.write(line{Type: "event", Event: &ev})
		case err := <-done:
			if err != nil && !out.started {
				s.writeError(w, err)
				return
			}
			for drained := false; !drained; {
				select {
				case ev, ok := <-events:
					if !ok {
						drained = true
						continue
					}
					out.write(line{Type: "event", Event: &ev})
				default:
					drained = true
				}
			}
			if err != nil {
				out.write(line{Type: "error", Error: err.Error()})
				return
			}
			out.write(line{Type: "done"})
			return
		}
	}
}
