// Package hosted talks to the Gemini API for the hosted conversation pathway
// and for the meta-cognition helpers around it.
package hosted

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/internal/prompts"
	"github.com/jcooky/go-din"
	"github.com/mokiat/gog"
	"github.com/samber/lo"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type (
	Client struct {
		genai  *genai.Client
		model  string
		logger *slog.Logger
	}

	// Chat is a stateful hosted conversation.
	Chat interface {
		Send(ctx context.Context, text string) (string, error)
	}

	genaiChat struct {
		chat *genai.Chat
	}
)

var ErrMissingAPIKey = errors.Wrapf(errors.ErrUnavailable, "API_KEY_MISSING")

func NewClient(ctx context.Context, conf *config.HostedConfig, logger *slog.Logger) (*Client, error) {
	if conf.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = mylog.Discard()
	}

	cc := &genai.ClientConfig{
		APIKey:  conf.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if conf.BaseURL != "" {
		cc.HTTPOptions.BaseURL = conf.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create gemini client")
	}

	return &Client{
		genai:  client,
		model:  lo.CoalesceOrEmpty(conf.Model, DefaultModel),
		logger: logger,
	}, nil
}

func ModeInstruction(mode entity.Mode) string {
	switch mode {
	case entity.ModeLogic:
		return "You are in Logic mode. Your responses should be structured, rational, and based on deductive reasoning. Avoid emotional language."
	case entity.ModeMath:
		return "You are in Math mode. Focus on providing accurate mathematical calculations and explanations. Use LaTeX for formulas where possible."
	case entity.ModeCode:
		return "You are in Code mode. Provide clean, efficient code snippets and explanations. Specify the language and use markdown for formatting."
	case entity.ModeEmotion:
		return "You are in Emotional Simulation mode. Respond with empathy, understanding, and emotional nuance. Reflect on the user's feelings."
	default:
		return "You are in standard Chat mode. Engage in a friendly, conversational manner."
	}
}

// SystemInstruction is the baseline persona followed by the agent's persona,
// the mode instruction and its knowledge.
func SystemInstruction(agent entity.Agent, mode entity.Mode) (string, error) {
	return prompts.Render(prompts.HostedSystem, map[string]any{
		"Persona":         agent.Persona,
		"ModeInstruction": ModeInstruction(mode),
		"Knowledge":       agent.KnowledgeBase,
	})
}

func (c *Client) NewChat(ctx context.Context, agent entity.Agent, mode entity.Mode, settings entity.Settings) (Chat, error) {
	system, err := SystemInstruction(agent, mode)
	if err != nil {
		return nil, err
	}

	chat, err := c.genai.Chats.Create(ctx, c.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       gog.PtrOf(settings.Temperature),
		TopP:              gog.PtrOf(settings.TopP),
		TopK:              gog.PtrOf(settings.TopK),
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create chat session")
	}
	return &genaiChat{chat: chat}, nil
}

func (c *genaiChat) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (c *Client) generate(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" || schema != nil {
		cfg = &genai.GenerateContentConfig{}
		if system != "" {
			cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
		if schema != nil {
			cfg.ResponseMIMEType = "application/json"
			cfg.ResponseSchema = schema
		}
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func stringListSchema(key string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			key: {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
	}
}

// SummarizeLearnings extracts at most one learned concept from an exchange.
// It returns "" when nothing was learned.
func (c *Client) SummarizeLearnings(ctx context.Context, user, agent entity.ChatMessage) (string, error) {
	from := "Other Agent"
	if user.Sender == entity.SenderUser {
		from = "User"
	}
	prompt, err := prompts.Render(prompts.Summarize, map[string]any{
		"From":     from,
		"Question": user.Text,
		"Answer":   agent.Text,
	})
	if err != nil {
		return "", err
	}

	text, err := c.generate(ctx, "", prompt, nil)
	if err != nil {
		return "", errors.Wrapf(err, "failed to summarize learnings")
	}
	return strings.TrimSpace(strings.ReplaceAll(text, `"`, "")), nil
}

// ExtractKnowledge suggests memories from the user and agent turns of a transcript.
func (c *Client) ExtractKnowledge(ctx context.Context, transcript []entity.ChatMessage) ([]string, error) {
	lines := lo.FilterMap(transcript, func(m entity.ChatMessage, _ int) (string, bool) {
		switch m.Sender {
		case entity.SenderUser:
			return "User: " + m.Text, true
		case entity.SenderAgent:
			return "Agent: " + m.Text, true
		default:
			return "", false
		}
	})
	prompt, err := prompts.Render(prompts.ExtractRequest, map[string]any{"Lines": lines})
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, prompts.MustRender(prompts.Extract, nil), prompt, stringListSchema("suggestedMemories"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to extract knowledge")
	}
	if text == "" {
		return nil, nil
	}

	var out struct {
		SuggestedMemories []string `json:"suggestedMemories"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		c.logger.Warn("malformed suggested memories", slog.Any("error", err))
		return nil, nil
	}
	return out.SuggestedMemories, nil
}

// Distill returns the raw "refinedKnowledge" value of the model's answer.
// The caller validates its shape.
func (c *Client) Distill(ctx context.Context, knowledge []string) (json.RawMessage, error) {
	prompt, err := prompts.Render(prompts.DistillRequest, map[string]any{"Knowledge": knowledge})
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, prompts.MustRender(prompts.Distill, nil), prompt, stringListSchema("refinedKnowledge"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to distill knowledge")
	}

	var out struct {
		RefinedKnowledge json.RawMessage `json:"refinedKnowledge"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errors.Wrapf(err, "malformed distillation %q", text)
	}
	if len(out.RefinedKnowledge) == 0 {
		return nil, errors.New("distillation has no refinedKnowledge")
	}
	return out.RefinedKnowledge, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*Client, error) {
		conf, err := din.GetT[*config.HostedConfig](c)
		if err != nil {
			return nil, err
		}
		return NewClient(c, conf, din.MustGet[*slog.Logger](c, mylog.Key))
	})
}
