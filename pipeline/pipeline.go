// Package pipeline routes one user message through an ordered chain of
// handlers and falls back to a static reply when none applies.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/internal/mylog"
)

type Kind string

const (
	KindLocal           Kind = "local"
	KindNativeInference Kind = "native_inference"
	KindCognition       Kind = "cognition"
	KindError           Kind = "error"
)

// MessageType is the transcript type an outcome of this kind is shown as.
func (k Kind) MessageType() entity.MessageType {
	switch k {
	case KindLocal:
		return entity.MessageTypeLocal
	case KindNativeInference:
		return entity.MessageTypeNativeInference
	case KindCognition:
		return entity.MessageTypeCognition
	case KindError:
		return entity.MessageTypeError
	default:
		return entity.MessageTypeStandard
	}
}

type (
	LocalOptions struct {
		URL     string
		Model   string
		Enabled bool
	}

	Request struct {
		Text    string
		Agent   entity.Agent
		History []entity.ChatMessage
		Local   LocalOptions
	}

	// Outcome is a finished reply. A nil UpdatedKnowledge means the
	// knowledge list is unchanged; a non-nil one (possibly empty) replaces it.
	Outcome struct {
		Response         string
		Kind             Kind
		UpdatedKnowledge []string
	}

	Handler interface {
		Name() string
		// TryHandle returns false when the handler does not apply to req.
		TryHandle(ctx context.Context, req *Request) (*Result, bool)
	}

	Orchestrator struct {
		handlers []Handler
		logger   *slog.Logger
	}
)

func (o *Outcome) HasUpdate() bool {
	return o.UpdatedKnowledge != nil
}

const (
	StaticFallbackText = "I'm not sure how to respond to that in native mode without a configured local LLM. You can teach me facts using 'remember that ...'."
	internalErrorText  = "An unexpected error occurred while processing your message."
)

func New(logger *slog.Logger, handlers ...Handler) *Orchestrator {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Orchestrator{
		handlers: handlers,
		logger:   logger,
	}
}

// ProcessMessage returns the result of the first applicable handler, or the
// static fallback. It never fails and never panics.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req *Request) *Result {
	for _, h := range o.handlers {
		res, ok := o.try(ctx, h, req)
		if !ok {
			o.logger.Debug("tier not applicable", slog.String("tier", h.Name()))
			continue
		}
		o.logger.Debug("tier handled message", slog.String("tier", h.Name()), slog.String("state", string(res.State())))
		return res
	}

	o.logger.Debug("static fallback")
	return &Result{
		outcome: &Outcome{Response: StaticFallbackText, Kind: KindNativeInference},
		state:   StateStaticFallback,
	}
}

func (o *Orchestrator) try(ctx context.Context, h Handler, req *Request) (res *Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("tier panicked",
				slog.String("tier", h.Name()),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			res, ok = Finished(&Outcome{Response: internalErrorText, Kind: KindError}), true
		}
	}()

	res, ok = h.TryHandle(ctx, req)
	if ok && res == nil {
		return nil, false
	}
	return res, ok
}
