// Package retrieval answers free-form messages by grounding a local model's
// streamed generation on the agent's most relevant memories.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/internal/prompts"
	"github.com/habiliai/nativeagent/internal/sliceutils"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
	"github.com/habiliai/nativeagent/relevance"
	"github.com/samber/lo"
)

const (
	DefaultTopK          = 5
	DefaultThreshold     = 0.1
	DefaultHistoryWindow = 10
)

type (
	Options struct {
		TopK          int
		Threshold     float64
		HistoryWindow int
	}

	Handler struct {
		store  memory.Store
		dial   Dialer
		opts   Options
		logger *slog.Logger
	}

	groundingValues struct {
		Name     string
		Persona  string
		History  []string
		Memories []string
		Message  string
	}
)

var _ pipeline.Handler = (*Handler)(nil)

func NewHandler(store memory.Store, dial Dialer, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = mylog.Discard()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	return &Handler{store: store, dial: dial, opts: opts, logger: logger}
}

func (h *Handler) Name() string {
	return "retrieval"
}

func (h *Handler) TryHandle(ctx context.Context, req *pipeline.Request) (*pipeline.Result, bool) {
	local := req.Local
	if !local.Enabled || local.Model == "" || h.dial == nil {
		return nil, false
	}

	fail := func(err error) (*pipeline.Result, bool) {
		h.logger.Warn("local generation failed",
			slog.String("url", local.URL),
			slog.String("model", local.Model),
			slog.Any("error", err),
		)
		return pipeline.Finished(&pipeline.Outcome{
			Response: Describe(err, local.URL, local.Model),
			Kind:     pipeline.KindError,
		}), true
	}

	text := strings.TrimSpace(req.Text)
	prompt, err := h.BuildPrompt(ctx, req.Agent, req.History, text)
	if err != nil {
		return fail(err)
	}

	src, err := h.dial(local.URL).GenerateStream(ctx, localllm.GenerateRequest{
		Model:  local.Model,
		Prompt: prompt,
	})
	if err != nil {
		return fail(err)
	}

	return pipeline.Streaming(pipeline.NewTokenStream(src, func(err error) string {
		return Describe(err, local.URL, local.Model)
	})), true
}

// BuildPrompt renders the grounding prompt for message from the agent's live
// memories and the recent history.
func (h *Handler) BuildPrompt(ctx context.Context, agent entity.Agent, history []entity.ChatMessage, message string) (string, error) {
	records, err := h.store.List(ctx, agent.Name)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list memories")
	}

	relevant := relevance.Texts(relevance.TopK(message, memory.Contents(records), h.opts.Threshold, h.opts.TopK))
	h.logger.Debug("retrieved memories", slog.String("agent", agent.Name), slog.Int("count", len(relevant)))

	turns := lo.Map(sliceutils.Last(history, h.opts.HistoryWindow), func(m entity.ChatMessage, _ int) string {
		return fmt.Sprintf("%s: %s", m.Sender, m.Text)
	})

	return prompts.Render(prompts.Grounding, groundingValues{
		Name:     agent.Name,
		Persona:  agent.Persona,
		History:  turns,
		Memories: relevant,
		Message:  message,
	})
}
