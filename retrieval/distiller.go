package retrieval

import (
	"context"
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/genkit/plugins/ollama"
	"github.com/habiliai/nativeagent/internal/prompts"
	"github.com/habiliai/nativeagent/localllm"
)

// LocalDistiller refines a knowledge list with the local model so that
// consolidation also works offline.
type LocalDistiller struct {
	g      *genkit.Genkit
	client *localllm.Client
	model  string
}

func NewLocalDistiller(g *genkit.Genkit, client *localllm.Client, model string) *LocalDistiller {
	return &LocalDistiller{g: g, client: client, model: model}
}

// Distill returns the raw "refinedKnowledge" value of the model's answer.
// The caller validates its shape.
func (d *LocalDistiller) Distill(ctx context.Context, knowledge []string) (json.RawMessage, error) {
	if d.model == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "no local model configured for distillation")
	}
	ollama.EnsureModel(d.g, d.client, d.model)

	prompt, err := prompts.Render(prompts.DistillRequest, map[string]any{"Knowledge": knowledge})
	if err != nil {
		return nil, err
	}

	resp, err := genkit.Generate(ctx, d.g,
		ai.WithModelName(ollama.ModelName(d.model)),
		ai.WithSystem(prompts.MustRender(prompts.Distill, nil)),
		ai.WithPrompt(prompt),
		ai.WithOutputFormat(ai.OutputFormatJSON),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to distill knowledge")
	}

	var out struct {
		RefinedKnowledge json.RawMessage `json:"refinedKnowledge"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, errors.Wrapf(err, "malformed distillation %q", resp.Text())
	}
	if len(out.RefinedKnowledge) == 0 {
		return nil, errors.New("distillation has no refinedKnowledge")
	}
	return out.RefinedKnowledge, nil
}
