package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/genkit/plugins/ollama"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/samber/lo"
)

// OllamaLoader loads a GenkitClassifier once the Ollama server is reachable
// and serves the model.
func OllamaLoader(g *genkit.Genkit, client *localllm.Client, model string, logger *slog.Logger) LoadFunc {
	return func(ctx context.Context) (Classifier, error) {
		if model == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "no classifier model configured")
		}
		if !client.CheckStatus(ctx) {
			return nil, errors.Wrapf(errors.ErrUnavailable, "ollama server at %s is not reachable", client.URL())
		}

		models, err := client.ListModels(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list ollama models")
		}
		if !lo.ContainsBy(models, func(m localllm.Model) bool { return sameModel(m.Name, model) || sameModel(m.Model, model) }) {
			return nil, errors.Wrapf(errors.ErrNotFound, "classifier model %q is not installed", model)
		}

		ollama.EnsureModel(g, client, model)
		return NewGenkitClassifier(g, ollama.ModelName(model), logger)
	}
}

// sameModel treats "llama3" and "llama3:latest" as the same model.
func sameModel(a, b string) bool {
	return strings.TrimSuffix(a, ":latest") == strings.TrimSuffix(b, ":latest")
}
