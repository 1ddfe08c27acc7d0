package llmclient

import "context"

// MockChatClient returns scripted responses in order, cycling once
// exhausted. It is the deterministic test double used across every
// LLM-dependent component's tests, mirroring the teacher's
// MockLLMClient/AnthropicLLMClient split (one real HTTP client, one
// scripted fake, never a half-mocked hybrid).
type MockChatClient struct {
	Responses []string
	Err       error
	calls     int
	Prompts   []string
}

// NewMockChatClient builds a mock that returns responses in order.
func NewMockChatClient(responses ...string) *MockChatClient {
	return &MockChatClient{Responses: responses}
}

// Chat returns the next scripted response, recording the prompt seen.
func (m *MockChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	m.Prompts = append(m.Prompts, req.Prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[m.calls%len(m.Responses)]
	m.calls++
	return resp, nil
}

// CallCount returns the number of Chat calls made so far.
func (m *MockChatClient) CallCount() int {
	return m.calls
}
