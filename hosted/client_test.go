package hosted_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/hosted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGemini struct {
	mu       sync.Mutex
	bodies   []string
	reply    string
	status   int
	requests int
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.bodies = append(f.bodies, string(body))

	if !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.NotFound(w, r)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend exploded","status":"INTERNAL"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": f.reply}}},
			"finishReason": "STOP",
		}},
	})
}

func (f *fakeGemini) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[len(f.bodies)-1]
}

func newClient(t *testing.T, fake *fakeGemini) *hosted.Client {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := hosted.NewClient(t.Context(), &config.HostedConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	return client
}

var nova = entity.Agent{
	Name:          "Nova",
	Persona:       "A curious explorer",
	Capabilities:  []entity.Mode{entity.ModeChat},
	KnowledgeBase: []string{"The user lives in Oslo"},
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := hosted.NewClient(t.Context(), &config.HostedConfig{}, nil)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestChat(t *testing.T) {
	fake := &fakeGemini{reply: "Hello from Gemini"}
	client := newClient(t, fake)

	chat, err := client.NewChat(t.Context(), nova, entity.ModeLogic, entity.DefaultSettings())
	require.NoError(t, err)

	out, err := chat.Send(t.Context(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini", out)

	body := fake.lastBody()
	assert.Contains(t, body, "You are in Logic mode.")
	assert.Contains(t, body, "A curious explorer")
	assert.Contains(t, body, "The user lives in Oslo")
}

func TestSummarizeLearnings(t *testing.T) {
	client := newClient(t, &fakeGemini{reply: `  "User likes tea"  `})

	out, err := client.SummarizeLearnings(t.Context(),
		entity.NewChatMessage(entity.SenderUser, "I love tea", entity.MessageTypeStandard),
		entity.NewChatMessage(entity.SenderAgent, "Noted!", entity.MessageTypeStandard),
	)
	require.NoError(t, err)
	assert.Equal(t, "User likes tea", out)
}

func TestExtractKnowledge(t *testing.T) {
	fake := &fakeGemini{reply: `{"suggestedMemories":["User likes tea","User lives in Oslo"]}`}
	client := newClient(t, fake)

	out, err := client.ExtractKnowledge(t.Context(), []entity.ChatMessage{
		entity.NewChatMessage(entity.SenderSystem, "Nova has been loaded.", entity.MessageTypeSystem),
		entity.NewChatMessage(entity.SenderUser, "I love tea", entity.MessageTypeStandard),
		entity.NewChatMessage(entity.SenderAgent, "Noted!", entity.MessageTypeStandard),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"User likes tea", "User lives in Oslo"}, out)
	assert.Contains(t, fake.lastBody(), "User: I love tea")
	assert.NotContains(t, fake.lastBody(), "has been loaded")

	fake.reply = "not json"
	out, err = client.ExtractKnowledge(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDistill(t *testing.T) {
	fake := &fakeGemini{reply: `{"refinedKnowledge":["User is a dog owner"]}`}
	client := newClient(t, fake)

	raw, err := client.Distill(t.Context(), []string{"User likes dogs", "User has a golden retriever", "User walks daily"})
	require.NoError(t, err)
	assert.JSONEq(t, `["User is a dog owner"]`, string(raw))
	assert.Contains(t, fake.lastBody(), "Knowledge Architect")

	fake.reply = `{"other":1}`
	_, err = client.Distill(t.Context(), []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestAnalyzeFailure(t *testing.T) {
	fake := &fakeGemini{reply: "It looks like my safety filters were triggered."}
	client := newClient(t, fake)

	out := client.AnalyzeFailure(t.Context(), "tell me", errors.New("blocked by safety"))
	assert.Equal(t, "It looks like my safety filters were triggered.", out)
	assert.Contains(t, fake.lastBody(), "blocked by safety")

	fake.status = http.StatusInternalServerError
	out = client.AnalyzeFailure(t.Context(), "tell me", errors.New("blocked by safety"))
	assert.Equal(t, "I'm sorry, I encountered an issue and couldn't process your request. The request was blocked by the API's safety filters. Please try rephrasing your message to be less sensitive.", out)

	var nilClient *hosted.Client
	assert.Contains(t, nilClient.AnalyzeFailure(t.Context(), "x", hosted.ErrMissingAPIKey), "The API key is missing or invalid.")
}

func TestFallbackExplanation(t *testing.T) {
	tests := map[string]string{
		"API key not valid. Please pass a valid API key.": "The API key is missing or invalid.",
		"request timed out":                               "The request to the API timed out.",
		"dial tcp: connection refused":                    "A network error occurred",
		"Error 400 Bad Request":                           "The request was malformed",
		"something odd":                                   "Please try again, perhaps with a different phrasing.",
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			out := hosted.FallbackExplanation(errors.New(msg))
			assert.True(t, strings.HasPrefix(out, "I'm sorry, I encountered an issue and couldn't process your request. "))
			assert.Contains(t, out, want)
		})
	}
}

func TestSystemInstruction(t *testing.T) {
	out, err := hosted.SystemInstruction(nova, entity.ModeEmotion)
	require.NoError(t, err)
	assert.Contains(t, out, "**Your Assigned Persona:**\nA curious explorer")
	assert.Contains(t, out, "You are in Emotional Simulation mode.")
	assert.Contains(t, out, "- The user lives in Oslo")

	assert.Equal(t, "You are in standard Chat mode. Engage in a friendly, conversational manner.", hosted.ModeInstruction(entity.ModeChat))
	assert.Contains(t, hosted.ModeInstruction(entity.ModeMath), "LaTeX")
	assert.Contains(t, hosted.ModeInstruction(entity.ModeCode), "markdown")
}
