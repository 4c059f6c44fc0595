// Package command answers explicit memory commands ("remember ...",
// "forget ...", "forget everything") against the persistent memory store.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
	"github.com/samber/lo"
)

const (
	storeFailureText = "I couldn't access my memory right now. Please try again."
	emptyMemoryText  = "I don't have any memories to forget."
	clearedText      = "Understood. I have cleared all of my persistent memories."
)

type (
	rule struct {
		name    string
		pattern *regexp.Regexp
		handle  func(h *Handler, ctx context.Context, agentName string, matches []string) (*pipeline.Outcome, error)
	}

	Handler struct {
		store  memory.Store
		logger *slog.Logger
	}
)

// Rules are tried in order. The clear rule precedes the generic forget rule,
// which would otherwise read "forget everything" as a fact to look up.
var rules = []rule{
	{
		name:    "remember",
		pattern: regexp.MustCompile(`(?i)^remember (?:that )?(.+)`),
		handle:  (*Handler).remember,
	},
	{
		name:    "clear",
		pattern: regexp.MustCompile(`(?i)^(forget everything|clear your memory|reset knowledge)\b`),
		handle:  (*Handler).clear,
	},
	{
		name:    "forget",
		pattern: regexp.MustCompile(`(?i)^forget (?:that )?(.+)`),
		handle:  (*Handler).forget,
	},
}

var _ pipeline.Handler = (*Handler)(nil)

func NewHandler(store memory.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Name() string {
	return "command"
}

func (h *Handler) TryHandle(ctx context.Context, req *pipeline.Request) (*pipeline.Result, bool) {
	text := strings.TrimSpace(req.Text)
	for _, r := range rules {
		matches := r.pattern.FindStringSubmatch(text)
		if matches == nil {
			continue
		}

		outcome, err := r.handle(h, ctx, req.Agent.Name, matches)
		if err != nil {
			h.logger.Error("memory command failed",
				slog.String("command", r.name),
				slog.String("agent", req.Agent.Name),
				slog.Any("error", err),
			)
			outcome = &pipeline.Outcome{Response: storeFailureText, Kind: pipeline.KindError}
		}
		return pipeline.Finished(outcome), true
	}
	return nil, false
}

func (h *Handler) remember(ctx context.Context, agentName string, matches []string) (*pipeline.Outcome, error) {
	fact := strings.TrimSpace(matches[1])

	records, err := h.store.List(ctx, agentName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list memories")
	}
	if _, found := findByContent(records, fact); found {
		return local(fmt.Sprintf("I already have a memory of that: \"%s\"", fact), nil), nil
	}

	record, added, err := h.store.Add(ctx, agentName, fact)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to add memory")
	}
	if !added {
		return local(fmt.Sprintf("I already have a memory of that: \"%s\"", fact), nil), nil
	}

	return local(
		fmt.Sprintf("OK, I'll remember that: \"%s\"", fact),
		append(memory.Contents(records), record.Content),
	), nil
}

func (h *Handler) forget(ctx context.Context, agentName string, matches []string) (*pipeline.Outcome, error) {
	fact := strings.TrimSpace(matches[1])

	records, err := h.store.List(ctx, agentName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list memories")
	}
	target, found := findByContent(records, fact)
	if !found {
		return local(fmt.Sprintf("I couldn't find a memory of \"%s\" to forget.", fact), nil), nil
	}

	if err := h.store.Delete(ctx, agentName, target.ID); err != nil {
		return nil, errors.Wrapf(err, "failed to delete memory %s", target.ID)
	}

	remaining := lo.Filter(records, func(r memory.Record, _ int) bool { return r.ID != target.ID })
	return local(
		fmt.Sprintf("OK, I have forgotten: \"%s\"", target.Content),
		memory.Contents(remaining),
	), nil
}

func (h *Handler) clear(ctx context.Context, agentName string, _ []string) (*pipeline.Outcome, error) {
	records, err := h.store.List(ctx, agentName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list memories")
	}
	if len(records) == 0 {
		return local(emptyMemoryText, nil), nil
	}

	if err := h.store.Clear(ctx, agentName); err != nil {
		return nil, errors.Wrapf(err, "failed to clear memories")
	}
	return local(clearedText, []string{}), nil
}

func findByContent(records []memory.Record, content string) (memory.Record, bool) {
	return lo.Find(records, func(r memory.Record) bool {
		return strings.EqualFold(r.Content, content)
	})
}

func local(response string, updated []string) *pipeline.Outcome {
	return &pipeline.Outcome{
		Response:         response,
		Kind:             pipeline.KindLocal,
		UpdatedKnowledge: updated,
	}
}
