package llm

import (
	"context"
)

// Role is the speaker of a chat message as seen by a dialogue generator.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the history sent to a Generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator is the interface all dialogue generators must implement.
// Generate is a stateless single-shot completion over the full history.
type Generator interface {
	ID() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Transcription is the result of transcribing one audio clip.
type Transcription struct {
	Text string `json:"transcription"`
	Tone string `json:"tone"`
}

// Transcriber converts raw audio into text plus a coarse tone label.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcription, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

func (f GeneratorFunc) ID() string { return "func" }

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
