package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/localllm"
)

// DefineModel creates and registers a new generative model with Genkit.
func DefineModel(g *genkit.Genkit, client *localllm.Client, name string) ai.Model {
	caps := BasicText
	meta := &ai.ModelInfo{
		Label:    labelPrefix + " - " + name,
		Supports: &caps,
	}

	return genkit.DefineModel(
		g,
		provider,
		name,
		meta,
		func(ctx context.Context, req *ai.ModelRequest, cb core.StreamCallback[*ai.ModelResponseChunk]) (*ai.ModelResponse, error) {
			genReq, err := buildRequest(name, req)
			if err != nil {
				return nil, err
			}
			if cb == nil {
				return generate(ctx, client, genReq, req)
			}
			return generateStream(ctx, client, genReq, req, cb)
		},
	)
}

func generate(ctx context.Context, client *localllm.Client, genReq localllm.GenerateRequest, input *ai.ModelRequest) (*ai.ModelResponse, error) {
	text, err := client.Generate(ctx, genReq)
	if err != nil {
		return nil, fmt.Errorf("ollama generation failed: %w", err)
	}
	return newResponse(text, input), nil
}

func generateStream(ctx context.Context, client *localllm.Client, genReq localllm.GenerateRequest, input *ai.ModelRequest, cb core.StreamCallback[*ai.ModelResponseChunk]) (*ai.ModelResponse, error) {
	stream, err := client.GenerateStream(ctx, genReq)
	if err != nil {
		return nil, fmt.Errorf("ollama generation failed: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		fragment := stream.Fragment()
		sb.WriteString(fragment)
		if err := cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(fragment)},
		}); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("ollama streaming error: %w", err)
	}
	return newResponse(sb.String(), input), nil
}

func newResponse(text string, input *ai.ModelRequest) *ai.ModelResponse {
	return &ai.ModelResponse{
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(text)},
		},
		FinishReason: ai.FinishReasonStop,
		Request:      input,
	}
}

// buildRequest flattens the conversation into a system prompt and a
// role-prefixed transcript, which is what /api/generate accepts.
func buildRequest(model string, input *ai.ModelRequest) (localllm.GenerateRequest, error) {
	req := localllm.GenerateRequest{Model: model}

	var systems, turns []string
	for _, m := range input.Messages {
		text := messageText(m)
		if strings.TrimSpace(text) == "" {
			continue
		}
		switch m.Role {
		case ai.RoleSystem:
			systems = append(systems, text)
		case ai.RoleUser:
			turns = append(turns, text)
		case ai.RoleModel:
			turns = append(turns, "assistant: "+text)
		default:
			return req, fmt.Errorf("unsupported role %s", m.Role)
		}
	}
	req.System = strings.Join(systems, "\n\n")
	req.Prompt = strings.Join(turns, "\n\n")

	if input.Output != nil && input.Output.Format == ai.OutputFormatJSON {
		req.Format = localllm.FormatJSON
		if len(input.Output.Schema) > 0 {
			schema, err := json.Marshal(input.Output.Schema)
			if err != nil {
				return req, fmt.Errorf("failed to marshal output schema: %w", err)
			}
			req.Format = schema
		}
	}

	if input.Config != nil {
		jsonBytes, err := json.Marshal(input.Config)
		if err != nil {
			return req, err
		}
		var c ai.GenerationCommonConfig
		if err := json.Unmarshal(jsonBytes, &c); err == nil {
			req.Options = options(c)
		}
	}
	return req, nil
}

func options(c ai.GenerationCommonConfig) map[string]any {
	opts := map[string]any{}
	if c.Temperature != 0 {
		opts["temperature"] = c.Temperature
	}
	if c.TopP != 0 {
		opts["top_p"] = c.TopP
	}
	if c.TopK != 0 {
		opts["top_k"] = c.TopK
	}
	if c.MaxOutputTokens != 0 {
		opts["num_predict"] = c.MaxOutputTokens
	}
	if len(c.StopSequences) > 0 {
		opts["stop"] = c.StopSequences
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func messageText(m *ai.Message) string {
	var sb strings.Builder
	for _, p := range m.Content {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
