package llm

import "context"

// MockClient permite tests sin llamar a un backend real.
type MockClient struct {
	Response       string
	Err            error
	Transcript     string
	TranscriptErr  error
	GenerateCalls  int
	LastPrompt     string
	TranscribeCall int
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.GenerateCalls++
	m.LastPrompt = prompt
	return m.Response, m.Err
}

func (m *MockClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.TranscribeCall++
	return m.Transcript, m.TranscriptErr
}
