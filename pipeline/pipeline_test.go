package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/habiliai/nativeagent/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	name   string
	result *pipeline.Result
	calls  int
	panics bool
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) TryHandle(context.Context, *pipeline.Request) (*pipeline.Result, bool) {
	h.calls++
	if h.panics {
		panic("boom")
	}
	return h.result, h.result != nil
}

func TestProcessMessage_FirstApplicableWins(t *testing.T) {
	first := &fakeHandler{name: "first"}
	second := &fakeHandler{name: "second", result: pipeline.Finished(&pipeline.Outcome{Response: "hi", Kind: pipeline.KindLocal})}
	third := &fakeHandler{name: "third", result: pipeline.Finished(&pipeline.Outcome{Response: "never"})}

	res := pipeline.New(nil, first, second, third).ProcessMessage(t.Context(), &pipeline.Request{Text: "x"})

	require.False(t, res.IsStream())
	assert.Equal(t, "hi", res.Outcome().Response)
	assert.Equal(t, pipeline.StateRespond, res.State())
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestProcessMessage_StaticFallback(t *testing.T) {
	res := pipeline.New(nil, &fakeHandler{name: "none"}).ProcessMessage(t.Context(), &pipeline.Request{Text: "x"})

	require.NotNil(t, res.Outcome())
	assert.Equal(t, pipeline.StaticFallbackText, res.Outcome().Response)
	assert.Equal(t, pipeline.KindNativeInference, res.Outcome().Kind)
	assert.Equal(t, pipeline.StateStaticFallback, res.State())
	assert.False(t, res.Outcome().HasUpdate())
}

func TestProcessMessage_RecoversPanic(t *testing.T) {
	later := &fakeHandler{name: "later", result: pipeline.Finished(&pipeline.Outcome{Response: "never"})}
	res := pipeline.New(nil, &fakeHandler{name: "bad", panics: true}, later).ProcessMessage(t.Context(), &pipeline.Request{})

	assert.Equal(t, pipeline.KindError, res.Outcome().Kind)
	assert.Equal(t, pipeline.StateErrorRespond, res.State())
	assert.Equal(t, 0, later.calls)
}

func TestTokenStream(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		stream := pipeline.NewTokenStream(&pipeline.SliceSource{Fragments: []string{"He", "llo", "!"}}, nil)
		res := pipeline.Streaming(stream)
		require.True(t, res.IsStream())
		assert.Equal(t, pipeline.StateStreaming, res.State())

		var got []string
		require.NoError(t, stream.Drain(func(f string) { got = append(got, f) }))
		assert.Equal(t, []string{"He", "llo", "!"}, got)
		assert.Equal(t, "Hello!", stream.Text())
		assert.Equal(t, pipeline.StateComplete, res.State())
		assert.Empty(t, stream.ErrorText())
		assert.False(t, stream.Next())
	})

	t.Run("mid-stream failure keeps partial text", func(t *testing.T) {
		src := &pipeline.SliceSource{Fragments: []string{"partial"}, Error: errors.New("reset")}
		stream := pipeline.NewTokenStream(src, func(err error) string { return "Ollama Error: " + err.Error() })

		err := stream.Drain(nil)
		require.Error(t, err)
		assert.Equal(t, "partial", stream.Text())
		assert.Equal(t, pipeline.StateErrorRespond, stream.State())
		assert.Equal(t, "Ollama Error: reset", stream.ErrorText())
	})

	t.Run("close before end", func(t *testing.T) {
		stream := pipeline.NewTokenStream(&pipeline.SliceSource{Fragments: []string{"a", "b"}}, nil)
		require.True(t, stream.Next())
		require.NoError(t, stream.Close())
		assert.False(t, stream.Next())
		assert.Equal(t, pipeline.StateComplete, stream.State())
		assert.Equal(t, "a", stream.Text())
	})
}

func TestKindMessageType(t *testing.T) {
	assert.Equal(t, "local", string(pipeline.KindLocal.MessageType()))
	assert.Equal(t, "error", string(pipeline.KindError.MessageType()))
	assert.Equal(t, "native_inference", string(pipeline.KindNativeInference.MessageType()))
}
