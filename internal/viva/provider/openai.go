package provider

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/keshav2232/viva/pkg/llm"
)

const (
	openaiAPIURL            = "https://api.openai.com/v1"
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultTranscribeModel  = "whisper-1"
	openaiChatPath          = "/chat/completions"
	openaiTranscriptionPath = "/audio/transcriptions"
)

// OpenAI talks to any OpenAI-compatible API: chat completions for
// generation and the audio transcription endpoint for speech.
type OpenAI struct {
	apiKey          string
	model           string
	transcribeModel string
	baseURL         string
	mimeType        string
	client          HTTPClient
}

// NewOpenAI creates an OpenAI-compatible client from cfg.
func NewOpenAI(cfg Config) *OpenAI {
	o := &OpenAI{
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		transcribeModel: cfg.TranscribeModel,
		baseURL:         normalizeOpenAIBase(cfg.BaseURL),
		mimeType:        cfg.AudioMIME,
		client:          cfg.HTTPClient,
	}
	if o.model == "" {
		o.model = DefaultOpenAIModel
	}
	if o.transcribeModel == "" {
		o.transcribeModel = DefaultTranscribeModel
	}
	if o.mimeType == "" {
		o.mimeType = DefaultAudioMIME
	}
	if o.client == nil {
		o.client = &http.Client{}
	}
	return o
}

// normalizeOpenAIBase accepts a bare host, a /v1 root or a full
// /chat/completions URL and returns the /v1 root.
func normalizeOpenAIBase(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return openaiAPIURL
	}
	base = strings.TrimSuffix(base, openaiChatPath)
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func (o *OpenAI) ID() string { return "openai" }

type openaiChatRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Generate performs one non-streaming chat completion.
func (o *OpenAI) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	body := openaiChatRequest{Model: o.model}
	for _, m := range messages {
		body.Messages = append(body.Messages, openaiMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp openaiChatResponse
	if err := postJSON(ctx, o.client, "OpenAI", o.baseURL+openaiChatPath, o.headers(), body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads the audio as multipart form data. The endpoint does not
// report tone, so the returned tone is always empty.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte) (llm.Transcription, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	if err := w.WriteField("model", o.transcribeModel); err != nil {
		return llm.Transcription{}, err
	}
	fw, err := w.CreateFormFile("file", "answer"+audioExt(o.mimeType))
	if err != nil {
		return llm.Transcription{}, err
	}
	if _, err := fw.Write(audio); err != nil {
		return llm.Transcription{}, err
	}
	if err := w.Close(); err != nil {
		return llm.Transcription{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+openaiTranscriptionPath, &b)
	if err != nil {
		return llm.Transcription{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range o.headers() {
		req.Header.Set(k, v)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := doJSON(o.client, "OpenAI", req, &out); err != nil {
		return llm.Transcription{}, err
	}
	return llm.Transcription{Text: out.Text}, nil
}

func (o *OpenAI) headers() map[string]string {
	if o.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + o.apiKey}
}

func audioExt(mime string) string {
	switch {
	case strings.Contains(mime, "webm"):
		return ".webm"
	case strings.Contains(mime, "wav"):
		return ".wav"
	case strings.Contains(mime, "mpeg"), strings.Contains(mime, "mp3"):
		return ".mp3"
	case strings.Contains(mime, "ogg"):
		return ".ogg"
	case strings.Contains(mime, "mp4"), strings.Contains(mime, "m4a"):
		return ".m4a"
	}
	return ".bin"
}

var (
	_ llm.Generator   = (*OpenAI)(nil)
	_ llm.Transcriber = (*OpenAI)(nil)
)
