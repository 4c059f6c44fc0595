package pipeline

import (
	"strings"
	"sync"
)

// FragmentSource is a lazily produced, finite sequence of text fragments.
type FragmentSource interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

// TokenStream tracks the terminal state of a FragmentSource. It is consumed
// once and cannot be restarted.
type TokenStream struct {
	src      FragmentSource
	describe func(error) string

	mu    sync.Mutex
	state State
	text  strings.Builder
}

// NewTokenStream wraps src. describe turns a stream failure into the text
// shown to the user; nil uses the error message.
func NewTokenStream(src FragmentSource, describe func(error) string) *TokenStream {
	if describe == nil {
		describe = func(err error) string { return err.Error() }
	}
	return &TokenStream{src: src, describe: describe, state: StateStreaming}
}

func (s *TokenStream) Next() bool {
	if s.State() != StateStreaming {
		return false
	}
	if s.src.Next() {
		s.mu.Lock()
		s.text.WriteString(s.src.Fragment())
		s.mu.Unlock()
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src.Err() != nil {
		s.state = StateErrorRespond
	} else {
		s.state = StateComplete
	}
	return false
}

func (s *TokenStream) Fragment() string {
	return s.src.Fragment()
}

func (s *TokenStream) Err() error {
	return s.src.Err()
}

// ErrorText describes the failure, or is empty when the stream did not fail.
func (s *TokenStream) ErrorText() string {
	if err := s.src.Err(); err != nil {
		return s.describe(err)
	}
	return ""
}

// Text is everything yielded so far.
func (s *TokenStream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

func (s *TokenStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close abandons the stream. A stream closed before it ended counts as complete.
func (s *TokenStream) Close() error {
	err := s.src.Close()
	s.mu.Lock()
	if s.state == StateStreaming {
		s.state = StateComplete
	}
	s.mu.Unlock()
	return err
}

// Drain feeds every remaining fragment to fn and closes the stream.
func (s *TokenStream) Drain(fn func(fragment string)) error {
	defer s.Close()
	for s.Next() {
		if fn != nil {
			fn(s.Fragment())
		}
	}
	return s.Err()
}

// SliceSource yields fixed fragments, then err if set.
type SliceSource struct {
	Fragments []string
	Error     error

	pos     int
	current string
	closed  bool
}

func (s *SliceSource) Next() bool {
	if s.closed || s.pos >= len(s.Fragments) {
		return false
	}
	s.current = s.Fragments[s.pos]
	s.pos++
	return true
}

func (s *SliceSource) Fragment() string {
	return s.current
}

func (s *SliceSource) Err() error {
	if s.pos >= len(s.Fragments) {
		return s.Error
	}
	return nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
