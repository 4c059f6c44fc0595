// Package intent recognizes a closed set of conversational intents with a
// zero-shot classifier and answers them from the agent's profile and memory.
package intent

import (
	"context"

	"github.com/habiliai/nativeagent/errors"
)

type Label string

const (
	Greeting          Label = "greeting"
	Farewell          Label = "farewell"
	InquiryIdentity   Label = "inquiry_identity"
	InquiryCapability Label = "inquiry_capability"
	InquiryPersona    Label = "inquiry_persona"
	InquiryMemory     Label = "inquiry_memory"
	Gratitude         Label = "expression_of_gratitude"
)

var Labels = []Label{
	Greeting,
	Farewell,
	InquiryIdentity,
	InquiryCapability,
	InquiryPersona,
	InquiryMemory,
	Gratitude,
}

// DefaultConfidence is the minimum top score for an intent to be answered.
const DefaultConfidence = 0.85

var ErrNotLoaded = errors.New("intent classifier is not loaded")

type (
	Verdict struct {
		Label Label   `json:"label"`
		Score float64 `json:"score"`
	}

	// Classifier ranks labels for a text, best first. Scores sum to 1.
	Classifier interface {
		Classify(ctx context.Context, text string, labels []Label) ([]Verdict, error)
	}

	// Unavailable is a Classifier that never loads.
	Unavailable struct{}
)

func (Unavailable) Classify(context.Context, string, []Label) ([]Verdict, error) {
	return nil, ErrNotLoaded
}
