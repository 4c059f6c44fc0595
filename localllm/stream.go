package localllm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// lineStream decodes newline-delimited JSON values, skipping lines that do not parse.
type lineStream[T any] struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner
	logger  *slog.Logger

	value  T
	err    error
	closed atomic.Bool
	once   sync.Once
}

func newLineStream[T any](body io.ReadCloser, cancel context.CancelFunc, logger *slog.Logger) *lineStream[T] {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	return &lineStream[T]{
		body:    body,
		cancel:  cancel,
		scanner: scanner,
		logger:  logger,
	}
}

func (s *lineStream[T]) next() bool {
	if s.closed.Load() {
		return false
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			s.logger.Warn("skip malformed ollama stream line", slog.String("line", string(line)), slog.Any("error", err))
			continue
		}
		s.value = v
		return true
	}
	if err := s.scanner.Err(); err != nil && !s.closed.Load() {
		s.err = err
	}
	s.close()
	return false
}

func (s *lineStream[T]) close() {
	s.closed.Store(true)
	s.once.Do(func() {
		s.cancel()
		s.body.Close()
	})
}

// Stream yields the text fragments of a streaming generation in order.
// It ends at the done marker or at end of body, and is not restartable.
type Stream struct {
	lines    *lineStream[generateChunk]
	fragment string
	err      error
	done     bool
}

func newStream(body io.ReadCloser, cancel context.CancelFunc, logger *slog.Logger) *Stream {
	return &Stream{lines: newLineStream[generateChunk](body, cancel, logger)}
}

func (s *Stream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.lines.next() {
		chunk := s.lines.value
		if chunk.Error != "" {
			s.err = &APIError{Message: chunk.Error}
			s.lines.close()
			return false
		}
		if chunk.Done {
			s.done = true
			s.lines.close()
			if chunk.Response != "" {
				s.fragment = chunk.Response
				return true
			}
			return false
		}
		if chunk.Response == "" {
			continue
		}
		s.fragment = chunk.Response
		return true
	}
	s.done = true
	s.err = s.lines.err
	return false
}

func (s *Stream) Fragment() string {
	return s.fragment
}

func (s *Stream) Err() error {
	return s.err
}

// Close stops the generation. It is safe to call from another goroutine
// while Next is blocked.
func (s *Stream) Close() error {
	s.lines.close()
	return nil
}

type (
	PullProgress struct {
		Status    string `json:"status"`
		Digest    string `json:"digest,omitempty"`
		Total     int64  `json:"total,omitempty"`
		Completed int64  `json:"completed,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	PullStream struct {
		lines    *lineStream[PullProgress]
		progress PullProgress
		err      error
		finished bool
	}
)

const PullStatusSuccess = "success"

func (s *PullStream) Next() bool {
	if s.finished {
		return false
	}
	if !s.lines.next() {
		s.finished = true
		s.err = s.lines.err
		return false
	}
	p := s.lines.value
	if p.Error != "" {
		s.finished = true
		s.err = &APIError{Message: p.Error}
		s.lines.close()
		return false
	}
	s.progress = p
	if p.Status == PullStatusSuccess {
		s.finished = true
		s.lines.close()
	}
	return true
}

func (s *PullStream) Progress() PullProgress {
	return s.progress
}

func (s *PullStream) Err() error {
	return s.err
}

func (s *PullStream) Close() error {
	s.lines.close()
	return nil
}

// Percent is the completed share of Total, or 0 when unknown.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}
