package llmclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litkg/internal/config"
	"litkg/internal/llmclient"
	"litkg/internal/resilience"
)

func guardForTest() *resilience.Guard {
	return resilience.NewGuard("test-llm", config.EndpointResilienceConfig{
		Algorithm: "token_bucket", MaxTokens: 100, RefillPerSecond: 100,
		FailureThreshold: 100, ResetTimeoutMs: 1000,
	})
}

func TestHTTPChatClientSendsPromptAndParsesResponse(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPrompt = body["prompt"].(string)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "RELATION_TYPE: DEVELOPED_BY"})
	}))
	defer server.Close()

	client := llmclient.NewHTTPChatClient(llmclient.Config{Endpoint: server.URL, Model: "test-model"}, guardForTest(), nil)
	out, err := client.Chat(context.Background(), llmclient.ChatRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "RELATION_TYPE: DEVELOPED_BY", out)
	assert.Equal(t, "hello", gotPrompt)
}

func TestHTTPChatClientNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := llmclient.NewHTTPChatClient(llmclient.Config{Endpoint: server.URL}, guardForTest(), nil)
	_, err := client.Chat(context.Background(), llmclient.ChatRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestMockChatClientCyclesResponses(t *testing.T) {
	m := llmclient.NewMockChatClient("a", "b")
	r1, _ := m.Chat(context.Background(), llmclient.ChatRequest{Prompt: "p1"})
	r2, _ := m.Chat(context.Background(), llmclient.ChatRequest{Prompt: "p2"})
	r3, _ := m.Chat(context.Background(), llmclient.ChatRequest{Prompt: "p3"})
	assert.Equal(t, "a", r1)
	assert.Equal(t, "b", r2)
	assert.Equal(t, "a", r3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Prompts)
}
