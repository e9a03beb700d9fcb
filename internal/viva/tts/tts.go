// Package tts synthesises examiner replies into MP3 audio through the Google
// Translate speech endpoint.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultHost = "https://translate.google.com"
	// MaxChunk is the longest text the endpoint accepts in one request.
	MaxChunk = 200
	// maxChunkBytes caps one downloaded audio chunk.
	maxChunkBytes = 4 << 20
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("tts: empty text")

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches speech audio.
type Client struct {
	host   string
	lang   string
	slow   bool
	client HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithHost overrides the endpoint host.
func WithHost(host string) Option {
	return func(c *Client) { c.host = strings.TrimRight(host, "/") }
}

// WithLang sets the spoken language.
func WithLang(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// WithSlow selects the slow speaking rate.
func WithSlow(slow bool) Option {
	return func(c *Client) { c.slow = slow }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a TTS client.
func New(opts ...Option) *Client {
	c := &Client{host: DefaultHost, lang: "en", client: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize returns MP3 audio for text. Long text is fetched in chunks of at
// most MaxChunk characters, in order, and the MP3 frames are concatenated.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := Split(text, MaxChunk)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var audio []byte
	for i, chunk := range chunks {
		data, err := c.fetch(ctx, chunk, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("tts chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio = append(audio, data...)
	}
	return audio, nil
}

// URL returns the endpoint URL for one chunk.
func (c *Client) URL(chunk string, idx, total int) string {
	speed := "1"
	if c.slow {
		speed = "0.24"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", c.lang)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	q.Set("client", "tw-ob")
	q.Set("prev", "input")
	q.Set("ttsspeed", speed)
	return c.host + "/translate_tts?" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(chunk, idx, total), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxChunkBytes))
}

// Split breaks text into chunks of at most max characters, preferring
// sentence punctuation, then whitespace, as break points. A single word
// longer than max is hard-split.
func Split(text string, max int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var chunks []string
	for text != "" {
		runes := []rune(text)
		if len(runes) <= max {
			chunks = append(chunks, text)
			break
		}

		window := string(runes[:max])
		cut := lastBreak(window, ".!?;:,")
		if cut <= 0 {
			cut = strings.LastIndexByte(window, ' ')
		}
		if cut <= 0 {
			cut = len(window)
		}
		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}

// lastBreak returns the byte offset just past the last punctuation mark in s
// that is followed by a space, or -1.
func lastBreak(s, marks string) int {
	for i := len(s) - 2; i > 0; i-- {
		if s[i+1] == ' ' && strings.IndexByte(marks, s[i]) >= 0 {
			return i + 1
		}
	}
	return -1
}
