// Package prompt builds the message sequences sent to the dialogue generator.
package prompt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/keshav2232/viva/internal/viva/domain"
	"github.com/keshav2232/viva/pkg/llm"
)

// ReadyMessage is the fixed user message that asks for the first question.
const ReadyMessage = "I am ready for the viva. Please ask the first question."

// DefaultScoldThreshold is the per-turn filler count above which a scolding
// persona is told to reprimand the candidate.
const DefaultScoldThreshold = 2

const closingDirective = "Keep your responses concise (under 2-3 sentences) as this is a spoken conversation."

// GradingSystem is the system message of the grading request.
const GradingSystem = "You are a grading system. Output only valid JSON."

const summaryTemplate = `The viva session is over. Here is the conversation history:
%s

Based on this, generate a JSON summary with the following fields:
- overallScore (0-10)
- conceptScore (0-10)
- clarityScore (0-10)
- confidenceScore (0-10)
- fillerControlScore (0-10)
- strengths (array of strings)
- improvements (array of strings)

Return ONLY the JSON. Do not wrap it in markdown code fences or add any other text.`

// DegradedSummaryError marks a summary whose reply could not be decoded.
const DegradedSummaryError = "Failed to generate structured summary"

var personaTones = map[domain.Persona]string{
	domain.PersonaFriendlyTeacher: "Tone: Warm, encouraging. If the student is stuck, give hints. " +
		"Explain briefly if they are wrong. Start with an easy question.",
	domain.PersonaConfusedPeer: "Tone: Casual, slightly clueless. Ask \"I didn't understand\" questions. " +
		"Ask for examples. Say things like \"Can you make it simpler?\".",
	domain.PersonaRuthlessExaminer: "Tone: Cold, professional, strict. Interrupt if the answer is vague. " +
		"Say \"You're not being precise\" or \"Start again\". Ask deep, technical questions. " +
		"If they use too many filler words, point it out.",
}

var personaTitles = map[domain.Persona]string{
	domain.PersonaFriendlyTeacher:  "friendly teacher",
	domain.PersonaConfusedPeer:     "confused peer",
	domain.PersonaRuthlessExaminer: "ruthless examiner",
}

// Composer constructs generator requests for each stage of a session.
type Composer struct {
	scoldThreshold int
}

// Option configures a Composer.
type Option func(*Composer)

// WithScoldThreshold sets the per-turn filler count a scolding persona tolerates.
func WithScoldThreshold(n int) Option {
	return func(c *Composer) { c.scoldThreshold = n }
}

// NewComposer creates a composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{scoldThreshold: DefaultScoldThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Instruction returns the persona system instruction for a session.
func (c *Composer) Instruction(cfg domain.SessionConfig) string {
	title, ok := personaTitles[cfg.Persona]
	if !ok {
		title = string(cfg.Persona)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s conducting a viva/interview on the topic: %q. ", title, cfg.Topic)
	if cfg.Difficulty != "" {
		fmt.Fprintf(&b, "The difficulty level is %s; pitch your questions accordingly. ", cfg.Difficulty)
	}
	if notes := strings.TrimSpace(cfg.Notes); notes != "" {
		fmt.Fprintf(&b, "The student has provided these notes: %q. Use them to ask relevant questions. ", notes)
	}
	b.WriteString(personaTones[cfg.Persona])
	b.WriteString(" ")
	b.WriteString(closingDirective)
	return b.String()
}

// Opening returns the two-message request that asks for the first question.
func (c *Composer) Opening(s domain.Session) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: c.Instruction(s.Config())},
		{Role: llm.RoleUser, Content: ReadyMessage},
	}
}

// Turn maps the transcript to generator messages and appends the ephemeral
// per-turn notes. The notes are never part of the stored transcript.
func (c *Composer) Turn(s domain.Session, tone domain.Tone, fillers int) []llm.Message {
	msgs := History(s.Transcript)
	msgs = append(msgs, c.Notes(s.Persona, tone, fillers)...)
	return msgs
}

// Notes returns the ephemeral system notes for one candidate turn.
func (c *Composer) Notes(p domain.Persona, tone domain.Tone, fillers int) []llm.Message {
	var notes []llm.Message
	if tone != "" && tone != domain.ToneUnknown {
		notes = append(notes, llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf("(System Note: The student's tone was %q. React to this tone if appropriate.)", tone),
		})
	}
	if c.Scolds(p, fillers) {
		notes = append(notes, llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf("(System Note: The student used %d filler words. Scold them for it.)", fillers),
		})
	}
	return notes
}

// Scolds reports whether a turn with the given filler count earns a reprimand.
func (c *Composer) Scolds(p domain.Persona, fillers int) bool {
	return p.ScoldsFillers() && fillers > c.scoldThreshold
}

// Summary returns the grading request for a finished session.
func (c *Composer) Summary(s domain.Session) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: GradingSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf(summaryTemplate, transcriptJSON(s.Transcript))},
	}
}

// History converts transcript turns to generator messages.
func History(turns []domain.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: generatorRole(t.Role), Content: t.Content})
	}
	return msgs
}

func generatorRole(r domain.Role) llm.Role {
	switch r {
	case domain.RoleSystem:
		return llm.RoleSystem
	case domain.RoleExaminer:
		return llm.RoleAssistant
	default:
		return llm.RoleUser
	}
}

// transcriptEntry is the serialized form of a turn shown to the grader.
// Per-turn analysis fields stay internal.
type transcriptEntry struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

func transcriptJSON(turns []domain.Turn) string {
	entries := make([]transcriptEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, transcriptEntry{Role: t.Role, Content: t.Content, Timestamp: t.Timestamp})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		// Only strings are encoded; this cannot fail.
		return "[]"
	}
	return string(data)
}

// ParseSummary decodes a grading reply. Markdown code fences are stripped and
// scores are clamped to [0,10]. A reply that cannot be decoded yields a
// degraded summary together with ErrSummaryParse.
func ParseSummary(reply string) (domain.Summary, error) {
	body := StripFences(reply)
	if body == "" {
		return degraded(), fmt.Errorf("%w: empty reply", domain.ErrSummaryParse)
	}

	var raw struct {
		OverallScore       *float64 `json:"overallScore"`
		ConceptScore       *float64 `json:"conceptScore"`
		ClarityScore       *float64 `json:"clarityScore"`
		ConfidenceScore    *float64 `json:"confidenceScore"`
		FillerControlScore *float64 `json:"fillerControlScore"`
		Strengths          []string `json:"strengths"`
		Improvements       []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return degraded(), fmt.Errorf("%w: %v", domain.ErrSummaryParse, err)
	}

	s := domain.Summary{
		OverallScore:       score(raw.OverallScore),
		ConceptScore:       score(raw.ConceptScore),
		ClarityScore:       score(raw.ClarityScore),
		ConfidenceScore:    score(raw.ConfidenceScore),
		FillerControlScore: score(raw.FillerControlScore),
		Strengths:          raw.Strengths,
		Improvements:       raw.Improvements,
	}
	if s.Strengths == nil {
		s.Strengths = []string{}
	}
	if s.Improvements == nil {
		s.Improvements = []string{}
	}
	return s, nil
}

// StripFences removes a surrounding ``` or ```json markdown fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "JSON", ...) on the opening fence line.
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func score(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return math.Max(0, math.Min(10, *v))
}

func degraded() domain.Summary {
	return domain.Summary{
		Strengths:    []string{},
		Improvements: []string{},
		Error:        DegradedSummaryError,
	}
}
