package vision

import "context"

// MockClient permite tests sin llamar al modelo real.
type MockClient struct {
	Response string
	Err      error
	Calls    int
}

func (m *MockClient) Analyze(ctx context.Context, prompt, imageBase64, mimeType string) (string, error) {
	m.Calls++
	return m.Response, m.Err
}
