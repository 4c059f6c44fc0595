package retrieval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/habiliai/nativeagent/localllm"
	"github.com/habiliai/nativeagent/pipeline"
)

type (
	// Generator starts a streaming generation. Errors returned here happened
	// before the first fragment; later ones surface from the source.
	Generator interface {
		GenerateStream(ctx context.Context, req localllm.GenerateRequest) (pipeline.FragmentSource, error)
	}

	// Completer produces the whole generation in one call.
	Completer interface {
		Generate(ctx context.Context, req localllm.GenerateRequest) (string, error)
	}

	// Dialer returns the generator serving the backend at url.
	Dialer func(url string) Generator

	OllamaGenerator struct {
		Client *localllm.Client
	}

	// CompletionGenerator adapts a Completer by yielding its whole text as a
	// single fragment.
	CompletionGenerator struct {
		Completer Completer
	}
)

var (
	_ Generator = OllamaGenerator{}
	_ Generator = CompletionGenerator{}
)

func (g OllamaGenerator) GenerateStream(ctx context.Context, req localllm.GenerateRequest) (pipeline.FragmentSource, error) {
	stream, err := g.Client.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (g CompletionGenerator) GenerateStream(ctx context.Context, req localllm.GenerateRequest) (pipeline.FragmentSource, error) {
	text, err := g.Completer.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &pipeline.SliceSource{Fragments: []string{text}}, nil
}

// OllamaDialer keeps one client per server URL, all built from base.
func OllamaDialer(base localllm.Config, logger *slog.Logger) Dialer {
	var (
		mu      sync.Mutex
		clients = map[string]*localllm.Client{}
	)
	return func(url string) Generator {
		mu.Lock()
		defer mu.Unlock()

		client, ok := clients[url]
		if !ok {
			cfg := base
			cfg.URL = url
			client = localllm.NewClient(cfg, logger)
			clients[url] = client
		}
		return OllamaGenerator{Client: client}
	}
}

// Static always dials g.
func Static(g Generator) Dialer {
	return func(string) Generator { return g }
}
