package provider

import (
	"context"

	"github.com/keshav2232/viva/internal/viva/prompt"
	"github.com/keshav2232/viva/pkg/llm"
)

const (
	MockReply         = "This is a mock response from Gemini. I am simulating a viva session. Please continue your answer."
	MockTranscription = "This is a mock transcription of the user's audio answer."
	MockTone          = "neutral"
	mockSummary       = `{"overallScore": 5, "conceptScore": 5, "clarityScore": 5, "confidenceScore": 5, ` +
		`"fillerControlScore": 5, "strengths": ["Completed the mock session"], "improvements": ["Try a real provider"]}`
)

// Mock answers every call with canned text. It is selected by USE_MOCK_AI or
// provider kind "mock"; a missing API key is an error, not a fallback.
type Mock struct{}

// NewMock creates a mock provider.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) ID() string { return "mock" }

// Generate returns a fixed reply, or a well-formed summary when asked to grade.
func (m *Mock) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem && messages[0].Content == prompt.GradingSystem {
		return mockSummary, nil
	}
	return MockReply, nil
}

func (m *Mock) Transcribe(ctx context.Context, audio []byte) (llm.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return llm.Transcription{}, err
	}
	return llm.Transcription{Text: MockTranscription, Tone: MockTone}, nil
}

var (
	_ llm.Generator   = (*Mock)(nil)
	_ llm.Transcriber = (*Mock)(nil)
)
