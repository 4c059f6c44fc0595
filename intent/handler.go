package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/internal/sliceutils"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
)

var (
	greetings = []string{"Hello! How can I assist you?", "Hi there! What can I do for you today?", "Hey! Good to see you."}
	farewells = []string{"Goodbye! Feel free to return any time.", "Farewell! Have a great day.", "See you later!"}
	thanks    = []string{"You're welcome!", "No problem!", "Happy to help!", "Of course!"}
)

const noMemoriesText = "I don't have any persistent memories yet. You can teach me by saying 'Remember...'"

type Handler struct {
	classifier Classifier
	store      memory.Store
	confidence float64
	logger     *slog.Logger
}

var _ pipeline.Handler = (*Handler)(nil)

// NewHandler answers intents whose top score reaches confidence. A
// non-positive confidence uses DefaultConfidence.
func NewHandler(classifier Classifier, store memory.Store, confidence float64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = mylog.Discard()
	}
	if confidence <= 0 {
		confidence = DefaultConfidence
	}
	if classifier == nil {
		classifier = Unavailable{}
	}
	return &Handler{
		classifier: classifier,
		store:      store,
		confidence: confidence,
		logger:     logger,
	}
}

func (h *Handler) Name() string {
	return "intent"
}

func (h *Handler) TryHandle(ctx context.Context, req *pipeline.Request) (*pipeline.Result, bool) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, false
	}

	verdicts, err := h.classifier.Classify(ctx, text, Labels)
	if err != nil {
		h.logger.Debug("intent classification unavailable", slog.Any("error", err))
		return nil, false
	}
	if len(verdicts) == 0 || verdicts[0].Score < h.confidence {
		return nil, false
	}

	response, err := h.respond(ctx, verdicts[0].Label, req.Agent)
	if err != nil {
		h.logger.Warn("intent response failed", slog.String("label", string(verdicts[0].Label)), slog.Any("error", err))
		return nil, false
	}
	return pipeline.Finished(&pipeline.Outcome{
		Response: response,
		Kind:     pipeline.KindNativeInference,
	}), true
}

func (h *Handler) respond(ctx context.Context, label Label, agent entity.Agent) (string, error) {
	switch label {
	case Greeting:
		return sliceutils.RandomPick(greetings), nil
	case Farewell:
		return sliceutils.RandomPick(farewells), nil
	case Gratitude:
		return sliceutils.RandomPick(thanks), nil
	case InquiryIdentity:
		return fmt.Sprintf("My name is %s.", agent.Name), nil
	case InquiryCapability:
		return fmt.Sprintf("I have the following capabilities: %s.", strings.Join(agent.CapabilityNames(), ", ")), nil
	case InquiryPersona:
		return fmt.Sprintf("My core programming is based on this persona:\n\n\"%s\"", agent.Persona), nil
	case InquiryMemory:
		records, err := h.store.List(ctx, agent.Name)
		if err != nil {
			return "", err
		}
		if len(records) == 0 {
			return noMemoriesText, nil
		}
		return "Here is what I remember:\n- " + strings.Join(memory.Contents(records), "\n- "), nil
	default:
		return "", fmt.Errorf("no response for intent %q", label)
	}
}
