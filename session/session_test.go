package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/hosted"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
	"github.com/habiliai/nativeagent/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type processorFunc func(ctx context.Context, req *pipeline.Request) *pipeline.Result

func (f processorFunc) ProcessMessage(ctx context.Context, req *pipeline.Request) *pipeline.Result {
	return f(ctx, req)
}

func reply(text string) processorFunc {
	return func(context.Context, *pipeline.Request) *pipeline.Result {
		return pipeline.Finished(&pipeline.Outcome{Response: text, Kind: pipeline.KindNativeInference})
	}
}

type fakeChat struct {
	reply string
	err   error
}

func (c *fakeChat) Send(context.Context, string) (string, error) {
	return c.reply, c.err
}

type fakeHosted struct {
	chat     *fakeChat
	learning string
	extract  []string
	chats    atomic.Int32
}

func (h *fakeHosted) NewChat(context.Context, entity.Agent, entity.Mode, entity.Settings) (hosted.Chat, error) {
	h.chats.Add(1)
	return h.chat, nil
}

func (h *fakeHosted) SummarizeLearnings(context.Context, entity.ChatMessage, entity.ChatMessage) (string, error) {
	return h.learning, nil
}

func (h *fakeHosted) ExtractKnowledge(context.Context, []entity.ChatMessage) ([]string, error) {
	if h.extract == nil {
		return nil, errors.New("boom")
	}
	return h.extract, nil
}

func (h *fakeHosted) AnalyzeFailure(_ context.Context, _ string, cause error) string {
	return "analysis: " + cause.Error()
}

type fakeDistiller struct {
	raw   string
	err   error
	calls atomic.Int32
}

func (d *fakeDistiller) Distill(context.Context, []string) (json.RawMessage, error) {
	d.calls.Add(1)
	return json.RawMessage(d.raw), d.err
}

type fakeHistory struct {
	mu    sync.Mutex
	names []string
}

func (h *fakeHistory) Add(_ context.Context, a entity.Agent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, a.Name)
	return nil
}

func (h *fakeHistory) Update(_ context.Context, _ string, a entity.Agent) error {
	return h.Add(context.Background(), a)
}

// gatedStore holds the first Reconcile of trip until release is closed.
type gatedStore struct {
	memory.Store
	trip    []string
	entered chan struct{}
	release chan struct{}
	armed   atomic.Bool
}

func newGatedStore(trip ...string) *gatedStore {
	g := &gatedStore{
		Store:   newStore(),
		trip:    trip,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	g.armed.Store(true)
	return g
}

func (g *gatedStore) Reconcile(ctx context.Context, agentName string, contents []string) error {
	if slices.Equal(contents, g.trip) && g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.Store.Reconcile(ctx, agentName, contents)
}

func nova(knowledge ...string) entity.Agent {
	return entity.Agent{
		Name:          "Nova",
		Persona:       "Curious.",
		Capabilities:  []entity.Mode{entity.ModeLogic, entity.ModeChat},
		KnowledgeBase: knowledge,
	}
}

func newStore() memory.Store {
	return memory.NewStore(memory.NewInMemoryKV(), nil)
}

func texts(msgs []entity.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestLoadAgent(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	_, _, err := store.Add(ctx, "Nova", "stale memory")
	require.NoError(t, err)

	h := &fakeHistory{}
	s := session.New(store, reply("hi"), session.WithHistory(h))
	defer s.Close()

	require.NoError(t, s.LoadAgent(ctx, nova("sky is blue", "grass is green")))

	agent, loaded := s.Agent()
	require.True(t, loaded)
	assert.ElementsMatch(t, []string{"sky is blue", "grass is green"}, agent.KnowledgeBase)
	assert.Equal(t, entity.ModeLogic, s.Mode())
	assert.Equal(t, []string{"Nova has been loaded."}, texts(s.Transcript()))
	assert.Equal(t, []string{"Nova"}, h.names)

	records, err := store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSendMessageRequiresAgent(t *testing.T) {
	s := session.New(newStore(), reply("hi"))
	defer s.Close()

	err := s.SendMessage(context.Background(), "hello")
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestSendMessageNative(t *testing.T) {
	ctx := context.Background()

	t.Run("finished outcome updates knowledge", func(t *testing.T) {
		store := newStore()
		var got *pipeline.Request
		proc := processorFunc(func(_ context.Context, req *pipeline.Request) *pipeline.Result {
			got = req
			return pipeline.Finished(&pipeline.Outcome{
				Response:         "Got it. I'll remember that \"cats purr\".",
				Kind:             pipeline.KindLocal,
				UpdatedKnowledge: []string{"cats purr", "sky is blue"},
			})
		})
		s := session.New(store, proc)
		defer s.Close()
		require.NoError(t, s.LoadAgent(ctx, nova("sky is blue")))

		require.NoError(t, s.SendMessage(ctx, "remember that cats purr"))

		require.NotNil(t, got)
		assert.Equal(t, "remember that cats purr", got.Text)
		assert.Equal(t, "Nova", got.Agent.Name)
		require.Len(t, got.History, 2)
		assert.Equal(t, entity.SenderUser, got.History[1].Sender)
		assert.False(t, got.Local.Enabled)

		transcript := s.Transcript()
		require.Len(t, transcript, 3)
		last := transcript[2]
		assert.Equal(t, entity.SenderAgent, last.Sender)
		assert.Equal(t, entity.MessageTypeLocal, last.Type)
		assert.False(t, last.IsProcessing)
		assert.Equal(t, "Got it. I'll remember that \"cats purr\".", last.Text)

		assert.ElementsMatch(t, []string{"cats purr", "sky is blue"}, s.Knowledge())
		records, err := store.List(ctx, "Nova")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"cats purr", "sky is blue"}, memory.Contents(records))
	})

	t.Run("empty update clears knowledge", func(t *testing.T) {
		proc := processorFunc(func(context.Context, *pipeline.Request) *pipeline.Result {
			return pipeline.Finished(&pipeline.Outcome{Response: "cleared", Kind: pipeline.KindLocal, UpdatedKnowledge: []string{}})
		})
		s := session.New(newStore(), proc)
		defer s.Close()
		require.NoError(t, s.LoadAgent(ctx, nova("a", "b")))

		require.NoError(t, s.SendMessage(ctx, "forget everything"))
		assert.Empty(t, s.Knowledge())
	})

	t.Run("stream fragments are appended in order", func(t *testing.T) {
		proc := processorFunc(func(context.Context, *pipeline.Request) *pipeline.Result {
			src := &pipeline.SliceSource{Fragments: []string{"The ", "sky ", "is blue."}}
			return pipeline.Streaming(pipeline.NewTokenStream(src, nil))
		})
		s := session.New(newStore(), proc)
		defer s.Close()
		require.NoError(t, s.LoadAgent(ctx, nova()))

		events, unsubscribe := s.Subscribe()
		defer unsubscribe()

		require.NoError(t, s.SendMessage(ctx, "what color is the sky?"))

		last := s.Transcript()[2]
		assert.Equal(t, "The sky is blue.", last.Text)
		assert.Equal(t, entity.MessageTypeLocal, last.Type)
		assert.False(t, last.IsProcessing)

		var updates int
		for len(events) > 0 {
			if ev := <-events; ev.Type == session.EventMessageUpdated {
				updates++
			}
		}
		assert.Equal(t, 5, updates)
	})

	t.Run("mid-stream failure keeps partial text", func(t *testing.T) {
		proc := processorFunc(func(context.Context, *pipeline.Request) *pipeline.Result {
			src := &pipeline.SliceSource{Fragments: []string{"Partial"}, Error: errors.New("reset")}
			return pipeline.Streaming(pipeline.NewTokenStream(src, func(err error) string {
				return "Ollama Error: " + err.Error()
			}))
		})
		s := session.New(newStore(), proc)
		defer s.Close()
		require.NoError(t, s.LoadAgent(ctx, nova()))

		require.NoError(t, s.SendMessage(ctx, "tell me"))

		last := s.Transcript()[2]
		assert.Equal(t, "Partial\n\nOllama Error: reset", last.Text)
		assert.Equal(t, entity.MessageTypeError, last.Type)
		assert.False(t, last.IsProcessing)
	})
}

func TestSendMessageBusy(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	proc := processorFunc(func(context.Context, *pipeline.Request) *pipeline.Result {
		close(started)
		<-release
		return pipeline.Finished(&pipeline.Outcome{Response: "done", Kind: pipeline.KindNativeInference})
	})
	s := session.New(newStore(), proc)
	defer s.Close()
	require.NoError(t, s.LoadAgent(ctx, nova()))

	done := make(chan error, 1)
	go func() { done <- s.SendMessage(ctx, "first") }()
	<-started

	assert.True(t, s.Busy())
	assert.Equal(t, errors.ErrBusy, s.SendMessage(ctx, "second"))
	assert.Equal(t, errors.ErrBusy, s.LoadAgent(ctx, nova()))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, []string{"Nova has been loaded.", "first", "done"}, texts(s.Transcript()))
}

func TestLoadAgentHoldsBusy(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore("a")
	s := session.New(store, reply("ok"))
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.LoadAgent(ctx, nova("a")) }()
	<-store.entered

	assert.True(t, s.Busy())
	assert.Equal(t, errors.ErrBusy, s.LoadAgent(ctx, nova("b")))
	assert.Equal(t, errors.ErrBusy, s.SendMessage(ctx, "hello"))

	close(store.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Equal(t, []string{"a"}, s.Knowledge())
	require.NoError(t, s.SendMessage(ctx, "hello"))
}

func TestHostedPathway(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable without a client", func(t *testing.T) {
		s := session.New(newStore(), reply("hi"), session.WithLocalDialer(downDialer))
		defer s.Close()
		require.NoError(t, s.Init(ctx, false))

		ok, reason := s.HostedAvailable()
		assert.False(t, ok)
		assert.Equal(t, session.ReasonMissingKey, reason)
		err := s.SetPathway(ctx, entity.PathwayHosted)
		assert.True(t, errors.Is(err, errors.ErrUnavailable))
		assert.Equal(t, entity.PathwayNative, s.Pathway())
	})

	t.Run("offline forces native", func(t *testing.T) {
		s := session.New(newStore(), reply("hi"), session.WithHosted(&fakeHosted{}), session.WithLocalDialer(downDialer))
		defer s.Close()
		require.NoError(t, s.Init(ctx, true))

		ok, reason := s.HostedAvailable()
		assert.False(t, ok)
		assert.Equal(t, session.ReasonOffline, reason)
	})

	t.Run("reply and learning", func(t *testing.T) {
		store := newStore()
		h := &fakeHosted{chat: &fakeChat{reply: "Paris is the capital."}, learning: "Paris is the capital of France"}
		s := session.New(store, reply("unused"), session.WithHosted(h), session.WithLocalDialer(downDialer))
		defer s.Close()
		require.NoError(t, s.Init(ctx, false))
		require.NoError(t, s.LoadAgent(ctx, nova()))
		assert.Equal(t, entity.PathwayHosted, s.Pathway())
		assert.Equal(t, int32(1), h.chats.Load())

		require.NoError(t, s.SendMessage(ctx, "capital of France?"))
		require.NoError(t, s.SendMessage(ctx, "again?"))

		assert.Equal(t, []string{"Paris is the capital of France"}, s.Knowledge())
		transcript := s.Transcript()
		require.Len(t, transcript, 5)
		assert.Equal(t, "Paris is the capital.", transcript[2].Text)
		assert.Equal(t, entity.MessageTypeStandard, transcript[2].Type)

		require.NoError(t, s.SetMode(ctx, entity.ModeMath))
		assert.Equal(t, int32(2), h.chats.Load())
		require.NoError(t, s.SetPathway(ctx, entity.PathwayNative))
		require.NoError(t, s.SetPathway(ctx, entity.PathwayHosted))
		assert.Equal(t, int32(3), h.chats.Load())
	})

	t.Run("chat failure is explained", func(t *testing.T) {
		h := &fakeHosted{chat: &fakeChat{err: errors.New("network down")}}
		s := session.New(newStore(), reply("unused"), session.WithHosted(h), session.WithLocalDialer(downDialer))
		defer s.Close()
		require.NoError(t, s.Init(ctx, false))
		require.NoError(t, s.LoadAgent(ctx, nova()))
		require.NoError(t, s.SetPathway(ctx, entity.PathwayHosted))

		require.NoError(t, s.SendMessage(ctx, "hello"))

		last := s.Transcript()[2]
		assert.Equal(t, "analysis: network down", last.Text)
		assert.Equal(t, entity.MessageTypeError, last.Type)
	})
}

// exchangesUntilConsolidation loads nova, re-imports a known memory for one
// system note and sends four messages so the transcript reaches ten entries.
func exchangesUntilConsolidation(t *testing.T, s *session.Session, knowledge ...string) {
	ctx := context.Background()
	require.NoError(t, s.LoadAgent(ctx, nova(knowledge...)))
	_, err := s.ImportKnowledge(ctx, knowledge[0], "dup.txt")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.SendMessage(ctx, fmt.Sprintf("message %d", i)))
	}
}

func TestConsolidation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("refined knowledge replaces the list", func(t *testing.T) {
		d := &fakeDistiller{raw: `["sky is blue and grass is green"]`}
		s := session.New(newStore(), reply("ok"), session.WithDistiller(d))
		defer s.Close()

		exchangesUntilConsolidation(t, s, "sky is blue", "grass is green", "water is wet")
		s.Wait()

		assert.Equal(t, int32(1), d.calls.Load())
		assert.Equal(t, []string{"sky is blue and grass is green"}, s.Knowledge())
		transcript := s.Transcript()
		require.Len(t, transcript, 12)
		assert.Equal(t, "Cognitive consolidation process initiated in the background...", transcript[10].Text)
		assert.Equal(t, entity.MessageTypeCognition, transcript[10].Type)
		assert.Equal(t, "Memory successfully consolidated and refined.", transcript[11].Text)
	})

	t.Run("malformed result keeps knowledge", func(t *testing.T) {
		for _, raw := range []string{`{"a":1}`, `["ok", 3]`, `[]`, `not json`} {
			d := &fakeDistiller{raw: raw}
			s := session.New(newStore(), reply("ok"), session.WithDistiller(d))

			exchangesUntilConsolidation(t, s, "a", "b", "c")
			s.Wait()

			assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Knowledge(), raw)
			last := s.Transcript()[11]
			assert.Equal(t, "Cognitive consolidation failed.", last.Text, raw)
			assert.Equal(t, entity.MessageTypeError, last.Type, raw)
			s.Close()
		}
	})

	t.Run("distiller error keeps knowledge", func(t *testing.T) {
		d := &fakeDistiller{err: errors.New("quota")}
		s := session.New(newStore(), reply("ok"), session.WithDistiller(d))
		defer s.Close()

		exchangesUntilConsolidation(t, s, "a", "b", "c")
		s.Wait()

		assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Knowledge())
		assert.Equal(t, "Cognitive consolidation failed.", s.Transcript()[11].Text)
	})

	t.Run("unchanged result emits no success note", func(t *testing.T) {
		store := newStore()
		s := session.New(store, reply("ok"))
		require.NoError(t, s.LoadAgent(context.Background(), nova("a", "b", "c")))
		current, err := json.Marshal(s.Knowledge())
		require.NoError(t, err)
		s.Close()

		d := &fakeDistiller{raw: string(current)}
		s = session.New(store, reply("ok"), session.WithDistiller(d))
		defer s.Close()

		exchangesUntilConsolidation(t, s, "a", "b", "c")
		s.Wait()

		assert.Equal(t, int32(1), d.calls.Load())
		assert.Len(t, s.Transcript(), 11)
	})

	t.Run("too little knowledge is never distilled", func(t *testing.T) {
		d := &fakeDistiller{raw: `["x"]`}
		s := session.New(newStore(), reply("ok"), session.WithDistiller(d))
		defer s.Close()

		exchangesUntilConsolidation(t, s, "a", "b")
		s.Wait()

		assert.Zero(t, d.calls.Load())
		assert.Len(t, s.Transcript(), 10)
	})
}

func TestRenameDuringConsolidation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	refined := []string{"sky is blue and grass is green"}
	store := newGatedStore(refined...)
	d := &fakeDistiller{raw: `["sky is blue and grass is green"]`}
	s := session.New(store, reply("ok"), session.WithDistiller(d))
	defer s.Close()

	exchangesUntilConsolidation(t, s, "sky is blue", "grass is green", "water is wet")
	<-store.entered

	renamed := nova()
	renamed.Name = "Nova Prime"
	renamed.KnowledgeBase = nil
	done := make(chan error, 1)
	go func() { done <- s.UpdateAgent(ctx, renamed) }()

	select {
	case err := <-done:
		t.Fatalf("rename finished while consolidated knowledge was being stored: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-done)
	s.Wait()

	agent, _ := s.Agent()
	assert.Equal(t, "Nova Prime", agent.Name)
	assert.Equal(t, refined, agent.KnowledgeBase)

	old, err := store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Empty(t, old)
	moved, err := store.List(ctx, "Nova Prime")
	require.NoError(t, err)
	assert.Equal(t, refined, memory.Contents(moved))
}

func TestKnowledgeTools(t *testing.T) {
	ctx := context.Background()
	h := &fakeHosted{extract: []string{"likes tea", "lives in Oslo"}}
	s := session.New(newStore(), reply("ok"), session.WithHosted(h), session.WithLocalDialer(downDialer))
	defer s.Close()
	require.NoError(t, s.LoadAgent(ctx, nova("likes tea")))

	n, err := s.ImportKnowledge(ctx, "likes tea\n\nowns a cat\nplays chess\n", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Imported 2 new concepts from notes.txt.", s.Transcript()[1].Text)
	assert.Len(t, s.Knowledge(), 3)

	suggestions, err := s.AnalyzeConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"likes tea", "lives in Oslo"}, suggestions)

	require.NoError(t, s.ApproveMemory(ctx, "lives in Oslo"))
	assert.Contains(t, s.Knowledge(), "lives in Oslo")
	assert.Equal(t, []string{"likes tea"}, s.Suggestions())

	s.RejectMemory("likes tea")
	assert.Empty(t, s.Suggestions())

	h.extract = nil
	_, err = s.AnalyzeConversation(ctx)
	require.Error(t, err)
	last := s.Transcript()[len(s.Transcript())-1]
	assert.Equal(t, "Failed to analyze conversation.", last.Text)
	assert.Equal(t, entity.MessageTypeError, last.Type)
}

func TestUpdateAgentRename(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	h := &fakeHistory{}
	s := session.New(store, reply("ok"), session.WithHistory(h))
	defer s.Close()
	require.NoError(t, s.LoadAgent(ctx, nova("a", "b")))

	renamed := nova()
	renamed.Name = "Nova Prime"
	renamed.KnowledgeBase = nil
	require.NoError(t, s.UpdateAgent(ctx, renamed))

	agent, _ := s.Agent()
	assert.Equal(t, "Nova Prime", agent.Name)
	assert.ElementsMatch(t, []string{"a", "b"}, agent.KnowledgeBase)

	old, err := store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Empty(t, old)
	assert.Equal(t, []string{"Nova", "Nova Prime"}, h.names)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := session.New(newStore(), reply("ok"))
	defer s.Close()

	assert.Equal(t, entity.DefaultSettings(), s.Settings())
	require.NoError(t, s.SetSetting(ctx, session.SettingTemperature, 0.2))
	assert.Equal(t, float32(0.2), s.Settings().Temperature)
	assert.True(t, errors.Is(s.SetSetting(ctx, "bogus", 1), errors.ErrInvalidParams))
	assert.True(t, errors.Is(s.SetMode(ctx, "juggling"), errors.ErrInvalidParams))
}

func downDialer(string) session.LocalBackend {
	return localllm.NewClient(localllm.Config{URL: "http://127.0.0.1:1", RequestTimeout: time.Second}, nil)
}

func fakeOllama(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var list []map[string]any
		for _, m := range models {
			list = append(list, map[string]any{"name": m, "model": m})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":200,"completed":100}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLocalBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("connect selects the first model", func(t *testing.T) {
		server := fakeOllama(t, "llama3:latest", "phi3:latest")
		var hooked atomic.Int32
		s := session.New(newStore(), reply("ok"),
			session.WithLocal(config.LocalConfig{URL: server.URL, Enabled: true}),
			session.WithLocalConnectedHook(func(context.Context, session.LocalState) { hooked.Add(1) }),
		)
		defer s.Close()

		require.NoError(t, s.ConnectLocal(ctx))
		state := s.LocalState()
		assert.Equal(t, entity.LocalStatusConnected, state.Status)
		assert.Equal(t, "llama3:latest", state.Selected)
		assert.Len(t, state.Models, 2)
		assert.Equal(t, int32(1), hooked.Load())

		require.NoError(t, s.SelectLocalModel("phi3"))
		assert.True(t, errors.Is(s.SelectLocalModel("mistral"), errors.ErrNotFound))
	})

	t.Run("configured model is kept", func(t *testing.T) {
		server := fakeOllama(t, "llama3:latest", "phi3:latest")
		s := session.New(newStore(), reply("ok"), session.WithLocal(config.LocalConfig{URL: server.URL, Model: "phi3:latest", Enabled: true}))
		defer s.Close()

		require.NoError(t, s.ConnectLocal(ctx))
		assert.Equal(t, "phi3:latest", s.LocalState().Selected)
	})

	t.Run("server down", func(t *testing.T) {
		s := session.New(newStore(), reply("ok"), session.WithLocalDialer(downDialer))
		defer s.Close()

		err := s.ConnectLocal(ctx)
		require.Error(t, err)
		state := s.LocalState()
		assert.Equal(t, entity.LocalStatusDisconnected, state.Status)
		assert.Equal(t, "Server not responding.", state.Error)
		assert.Empty(t, state.Models)
		assert.Empty(t, state.Selected)
	})

	t.Run("pull reports progress", func(t *testing.T) {
		server := fakeOllama(t, "llama3:latest")
		s := session.New(newStore(), reply("ok"), session.WithLocal(config.LocalConfig{URL: server.URL, Enabled: true}))
		defer s.Close()

		var progress []string
		require.NoError(t, s.PullLocalModel(ctx, "llama3", func(status string) {
			progress = append(progress, status)
		}))
		assert.Equal(t, []string{"pulling manifest", "downloading (50%)", "success"}, progress)
		assert.Equal(t, entity.LocalStatusConnected, s.LocalState().Status)

		require.NoError(t, s.DeleteLocalModel(ctx, "llama3"))
	})

	t.Run("retrieval tier sees the connected model", func(t *testing.T) {
		server := fakeOllama(t, "llama3:latest")
		var got pipeline.LocalOptions
		proc := processorFunc(func(_ context.Context, req *pipeline.Request) *pipeline.Result {
			got = req.Local
			return pipeline.Finished(&pipeline.Outcome{Response: "ok", Kind: pipeline.KindLocal})
		})
		s := session.New(newStore(), proc, session.WithLocal(config.LocalConfig{URL: server.URL, Enabled: true}))
		defer s.Close()
		require.NoError(t, s.ConnectLocal(ctx))
		require.NoError(t, s.LoadAgent(ctx, nova()))

		require.NoError(t, s.SendMessage(ctx, "hi"))
		assert.Equal(t, pipeline.LocalOptions{URL: server.URL, Model: "llama3:latest", Enabled: true}, got)
	})
}
