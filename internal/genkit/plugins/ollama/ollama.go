package ollama

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/localllm"
)

const (
	provider    = "ollama"
	labelPrefix = "Ollama"
)

var BasicText = ai.ModelSupports{
	Multiturn:  true,
	Tools:      false,
	SystemRole: true,
	Media:      false,
}

type Plugin struct {
	Client *localllm.Client
	// Models are registered on Init. More can be added later with DefineModel.
	Models []string
}

var (
	_ genkit.Plugin = (*Plugin)(nil)
)

// Name implements genkit.Plugin.
func (p *Plugin) Name() string {
	return provider
}

// Init implements genkit.Plugin.
func (p *Plugin) Init(_ context.Context, g *genkit.Genkit) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("%s.Init: %w", provider, err)
		}
	}()

	if p.Client == nil {
		return fmt.Errorf("ollama plugin requires a client")
	}
	for _, name := range p.Models {
		if name == "" {
			continue
		}
		DefineModel(g, p.Client, name)
	}
	return nil
}

// ModelName is the fully qualified genkit name of an Ollama model.
func ModelName(name string) string {
	return provider + "/" + name
}

// Model returns the [ai.Model] with the given name, or nil if it was not defined.
func Model(g *genkit.Genkit, name string) ai.Model {
	return genkit.LookupModel(g, provider, name)
}

// EnsureModel defines the model unless it is already registered.
func EnsureModel(g *genkit.Genkit, client *localllm.Client, name string) ai.Model {
	if m := Model(g, name); m != nil {
		return m
	}
	return DefineModel(g, client, name)
}
