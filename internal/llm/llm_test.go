package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func fakeOpenAI(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusOK, `{"summary":"Better."}`)

	client, err := NewOpenAI("test-key", srv.URL+"/v1", "test-model")
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"Better."}`, out)
	assert.NoError(t, client.Close())
}

func TestOpenAIGenerateErrors(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusInternalServerError, "")
	client, err := NewOpenAI("test-key", srv.URL+"/v1", "test-model")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "system", "user")
	assert.ErrorContains(t, err, "openai call failed")

	empty := fakeOpenAI(t, http.StatusOK, "")
	client, err = NewOpenAI("test-key", empty.URL+"/v1", "test-model")
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "system", "user")
	assert.ErrorContains(t, err, "empty response")
}

// fakeGemini answers generateContent calls with body.
func fakeGemini(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)

		var req struct {
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				ResponseMimeType string `json:"responseMimeType"`
			} `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.SystemInstruction.Parts, 1)
		assert.Equal(t, "system", req.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(t *testing.T, srv *httptest.Server) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), "test-key", "test-model",
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGeminiGenerate(t *testing.T) {
	srv := fakeGemini(t, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"summary\":"}, {"text": "\"Better.\"}"}]}, "finishReason": 1}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
	}`)

	out, err := newTestGemini(t, srv).Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"Better."}`, out)
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no candidates", `{"candidates": []}`, "empty response"},
		{"candidate without content", `{"candidates": [{"finishReason": 1}]}`, "empty response"},
		{"no text parts", `{"candidates": [{"content": {"parts": [{"inlineData": {"mimeType": "image/png", "data": "AA=="}}]}}]}`, "unexpected response format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeGemini(t, tt.body)
			_, err := newTestGemini(t, srv).Generate(context.Background(), "system", "user")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Config{Provider: ProviderOpenAI, OpenAIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)
	assert.Equal(t, DefaultOpenAIModel, c.(*OpenAI).model)

	_, err = New(ctx, Config{Provider: ProviderGemini})
	assert.ErrorContains(t, err, "API key is required")

	_, err = New(ctx, Config{Provider: ProviderNone})
	assert.Error(t, err)

	_, err = New(ctx, Config{Provider: "claude"})
	assert.ErrorContains(t, err, "unsupported provider")

	_, err = New(ctx, Config{Provider: ProviderOpenAI})
	assert.Error(t, err)
}
