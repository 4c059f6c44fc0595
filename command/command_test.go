package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/habiliai/nativeagent/command"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	memory.Store
}

func (brokenStore) List(context.Context, string) ([]memory.Record, error) {
	return nil, errors.New("disk on fire")
}

func handle(t *testing.T, h *command.Handler, text string) (*pipeline.Outcome, bool) {
	t.Helper()
	res, ok := h.TryHandle(t.Context(), &pipeline.Request{Text: text, Agent: entity.Agent{Name: "Nova"}})
	if !ok {
		return nil, false
	}
	require.False(t, res.IsStream())
	return res.Outcome(), true
}

func TestRemember(t *testing.T) {
	store := memory.NewStore(memory.NewInMemoryKV(), nil)
	h := command.NewHandler(store, nil)
	ctx := t.Context()

	_, _, err := store.Add(ctx, "Nova", "The user lives in Oslo")
	require.NoError(t, err)

	out, ok := handle(t, h, "  Remember that the user's cat is named Pixel  ")
	require.True(t, ok)
	assert.Equal(t, pipeline.KindLocal, out.Kind)
	assert.Equal(t, `OK, I'll remember that: "the user's cat is named Pixel"`, out.Response)
	assert.Equal(t, []string{"The user lives in Oslo", "the user's cat is named Pixel"}, out.UpdatedKnowledge)

	records, err := store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	out, ok = handle(t, h, "remember THE USER LIVES IN OSLO")
	require.True(t, ok)
	assert.Equal(t, `I already have a memory of that: "THE USER LIVES IN OSLO"`, out.Response)
	assert.False(t, out.HasUpdate())

	records, err = store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestForget(t *testing.T) {
	store := memory.NewStore(memory.NewInMemoryKV(), nil)
	h := command.NewHandler(store, nil)
	ctx := t.Context()

	_, _, err := store.Add(ctx, "Nova", "The user lives in Oslo")
	require.NoError(t, err)
	_, _, err = store.Add(ctx, "Nova", "The sky is blue")
	require.NoError(t, err)

	out, ok := handle(t, h, "forget that the user lives in oslo")
	require.True(t, ok)
	assert.Equal(t, `OK, I have forgotten: "The user lives in Oslo"`, out.Response)
	assert.Equal(t, []string{"The sky is blue"}, out.UpdatedKnowledge)

	out, ok = handle(t, h, "forget the moon is cheese")
	require.True(t, ok)
	assert.Equal(t, `I couldn't find a memory of "the moon is cheese" to forget.`, out.Response)
	assert.False(t, out.HasUpdate())

	records, err := store.List(ctx, "Nova")
	require.NoError(t, err)
	assert.Equal(t, []string{"The sky is blue"}, memory.Contents(records))
}

func TestClear(t *testing.T) {
	store := memory.NewStore(memory.NewInMemoryKV(), nil)
	h := command.NewHandler(store, nil)
	ctx := t.Context()

	out, ok := handle(t, h, "forget everything")
	require.True(t, ok)
	assert.Equal(t, "I don't have any memories to forget.", out.Response)
	assert.False(t, out.HasUpdate())

	for _, phrase := range []string{"Forget everything", "clear your memory please", "RESET KNOWLEDGE"} {
		_, _, err := store.Add(ctx, "Nova", "The sky is blue")
		require.NoError(t, err)

		out, ok = handle(t, h, phrase)
		require.True(t, ok, phrase)
		assert.Equal(t, "Understood. I have cleared all of my persistent memories.", out.Response)
		require.True(t, out.HasUpdate())
		assert.Empty(t, out.UpdatedKnowledge)

		records, err := store.List(ctx, "Nova")
		require.NoError(t, err)
		assert.Empty(t, records)
	}
}

func TestNotApplicable(t *testing.T) {
	h := command.NewHandler(memory.NewStore(memory.NewInMemoryKV(), nil), nil)
	for _, text := range []string{"hello", "what do you remember?", "I remember that", "forgetful", ""} {
		_, ok := handle(t, h, text)
		assert.False(t, ok, text)
	}
}

func TestStoreFailure(t *testing.T) {
	h := command.NewHandler(brokenStore{}, nil)

	out, ok := handle(t, h, "remember the sky is blue")
	require.True(t, ok)
	assert.Equal(t, pipeline.KindError, out.Kind)
	assert.False(t, out.HasUpdate())
}
