package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashEmbed_Deterministic(t *testing.T) {
	p, err := NewEmbedProvider("hash", map[string]interface{}{"dimension": 64})
	require.NoError(t, err)

	a, err := p.Embed(context.Background(), "", "GDPR breach notification", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "", "GDPR breach notification", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHashEmbed_DifferentTextsDiffer(t *testing.T) {
	p, err := NewEmbedProvider("hash", map[string]interface{}{"dimension": 32})
	require.NoError(t, err)

	a, err := p.Embed(context.Background(), "", "first text", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "", "second text", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashEmbed_ValuesBounded(t *testing.T) {
	p, err := NewEmbedProvider("hash", map[string]interface{}{"dimension": 512})
	require.NoError(t, err)

	v, err := p.Embed(context.Background(), "", "bounded", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, v, 512)
	for _, x := range v {
		require.GreaterOrEqual(t, x, float32(-1.0))
		require.Less(t, x, float32(1.0001))
	}
}

func TestNewEmbedProvider_Unknown(t *testing.T) {
	_, err := NewEmbedProvider("no-such", nil)
	require.Error(t, err)
}

func TestNewChatProvider_Empty(t *testing.T) {
	_, err := NewChatProvider("", nil)
	require.Error(t, err)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	for _, name := range []string{"gemini", "openai"} {
		_, err := NewChatProvider(name, map[string]interface{}{"api_key": "  "})
		require.Error(t, err, "chat provider %s", name)
		_, err = NewEmbedProvider(name, map[string]interface{}{"api_key": ""})
		require.Error(t, err, "embed provider %s", name)
	}
}
