package expand

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seralt/askdoc/internal/ai"
)

type fakeGenerator struct {
	output string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.output, f.err
}

func (f *fakeGenerator) StreamGenerate(ctx context.Context, prompt string) (<-chan ai.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func TestExpand_ParsesJSONArray(t *testing.T) {
	gen := &fakeGenerator{output: `["What is GDPR?", "How long is the deadline?", "Who must be notified?"]`}
	e := New(gen, 0)
	got := e.Expand(context.Background(), "GDPR requires notification within 72 hours.", 3)
	require.Equal(t, []string{"What is GDPR?", "How long is the deadline?", "Who must be notified?"}, got)
	require.Contains(t, gen.prompt, "GDPR requires notification within 72 hours.")
}

func TestExpand_StripsCodeFence(t *testing.T) {
	gen := &fakeGenerator{output: "```json\n[\"Q one?\", \"Q two?\"]\n```"}
	e := New(gen, 0)
	got := e.Expand(context.Background(), "some chunk", 3)
	require.Equal(t, []string{"Q one?", "Q two?"}, got)
}

func TestExpand_DedupesAndCaps(t *testing.T) {
	gen := &fakeGenerator{output: `["Same?", " Same? ", "Other?", "Third?", "Fourth?"]`}
	e := New(gen, 0)
	got := e.Expand(context.Background(), "some chunk", 3)
	require.Equal(t, []string{"Same?", "Other?", "Third?"}, got)
}

func TestExpand_GeneratorErrorDegradesToNil(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	e := New(gen, 0)
	require.Nil(t, e.Expand(context.Background(), "some chunk", 3))
}

func TestExpand_UnparseableDegradesToNil(t *testing.T) {
	gen := &fakeGenerator{output: "I cannot produce questions for this."}
	e := New(gen, 0)
	require.Nil(t, e.Expand(context.Background(), "some chunk", 3))
}

func TestExpand_NilGeneratorReturnsNil(t *testing.T) {
	e := New(nil, 0)
	require.Nil(t, e.Expand(context.Background(), "some chunk", 3))
}

func TestExpand_EmptyChunkReturnsNil(t *testing.T) {
	gen := &fakeGenerator{output: `["Q?"]`}
	e := New(gen, 0)
	require.Nil(t, e.Expand(context.Background(), "   ", 3))
	require.Empty(t, gen.prompt)
}

func TestParseQuestions_DropsBlankEntries(t *testing.T) {
	got, err := parseQuestions(`["", "  ", "Real question?"]`, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"Real question?"}, got)
}
