package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/keshav2232/viva/internal/viva/prompt"
	"github.com/keshav2232/viva/pkg/llm"
)

const (
	geminiAPIURL       = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultAudioMIME   = "audio/webm"
)

const transcribePrompt = `Transcribe the following audio exactly as spoken, including filler words such as "um", "uh" and "like".
Also analyze the speaker's tone and classify it as one of: confident, nervous, hesitant, neutral, enthusiastic.
Return a JSON object of the form {"transcription": "...", "tone": "..."} and nothing else. Do not use markdown.`

// ErrNoCandidates is returned when Gemini produced no usable text.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// Gemini talks to the Gemini generateContent API. It serves both as the
// dialogue generator and, through inline audio data, as the transcriber.
type Gemini struct {
	apiKey   string
	model    string
	baseURL  string
	mimeType string
	client   HTTPClient
}

// NewGemini creates a Gemini client from cfg.
func NewGemini(cfg Config) *Gemini {
	g := &Gemini{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		mimeType: cfg.AudioMIME,
		client:   cfg.HTTPClient,
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.baseURL == "" {
		g.baseURL = geminiAPIURL
	}
	if g.mimeType == "" {
		g.mimeType = DefaultAudioMIME
	}
	if g.client == nil {
		g.client = &http.Client{}
	}
	return g
}

func (g *Gemini) ID() string { return "gemini" }

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (r *geminiResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: blocked (%s)", ErrNoCandidates, r.PromptFeedback.BlockReason)
	}
	for _, c := range r.Candidates {
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", ErrNoCandidates
}

// Generate sends the conversation to generateContent.
func (g *Gemini) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	body := geminiRequest{}
	body.SystemInstruction, body.Contents = geminiContents(messages)
	if len(body.Contents) == 0 {
		return "", errors.New("gemini: no user or model content to send")
	}

	var resp geminiResponse
	if err := postJSON(ctx, g.client, "Gemini", g.endpoint(), g.headers(), body, &resp); err != nil {
		return "", err
	}
	return resp.text()
}

// Transcribe sends the audio inline and asks for a JSON transcription.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte) (llm.Transcription, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: g.mimeType, Data: base64.StdEncoding.EncodeToString(audio)}},
				{Text: transcribePrompt},
			},
		}},
		GenerationConfig: &geminiGenConfig{ResponseMimeType: "application/json"},
	}

	var resp geminiResponse
	if err := postJSON(ctx, g.client, "Gemini", g.endpoint(), g.headers(), body, &resp); err != nil {
		return llm.Transcription{}, err
	}
	text, err := resp.text()
	if err != nil {
		return llm.Transcription{}, err
	}
	return parseTranscription(text)
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)
}

// headers carries the API key so it never appears in the request URL.
func (g *Gemini) headers() map[string]string {
	return map[string]string{"x-goog-api-key": g.apiKey}
}

// geminiContents maps chat messages onto Gemini contents. A leading system
// message becomes the system instruction; later system messages are folded
// into user content as notes. Consecutive same-role contents are merged
// because the API requires alternating turns.
func geminiContents(messages []llm.Message) (*geminiContent, []geminiContent) {
	var system *geminiContent
	var contents []geminiContent

	for i, m := range messages {
		role := "user"
		switch m.Role {
		case llm.RoleSystem:
			if i == 0 {
				system = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
				continue
			}
		case llm.RoleAssistant:
			role = "model"
		}
		if m.Content == "" {
			continue
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, geminiPart{Text: m.Content})
			continue
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	return system, contents
}

// parseTranscription decodes a {"transcription","tone"} reply. A reply that
// is not JSON is taken as the bare transcription.
func parseTranscription(reply string) (llm.Transcription, error) {
	body := prompt.StripFences(reply)
	var out llm.Transcription
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		if strings.HasPrefix(body, "{") {
			return llm.Transcription{}, fmt.Errorf("decode transcription: %w", err)
		}
		return llm.Transcription{Text: body}, nil
	}
	return out, nil
}

var (
	_ llm.Generator   = (*Gemini)(nil)
	_ llm.Transcriber = (*Gemini)(nil)
)
