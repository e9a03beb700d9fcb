package prompt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshav2232/viva/internal/viva/domain"
	"github.com/keshav2232/viva/pkg/llm"
)

func session(p domain.Persona, turns ...domain.Turn) domain.Session {
	return domain.Session{
		ID:          "s-1",
		Topic:       "Thermodynamics",
		Difficulty:  domain.DifficultyModerate,
		Persona:     p,
		Transcript:  turns,
		FillerStats: domain.NewFillerStats(),
	}
}

func TestOpening(t *testing.T) {
	c := NewComposer()
	msgs := c.Opening(session(domain.PersonaFriendlyTeacher))

	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, ReadyMessage, msgs[1].Content)

	sys := msgs[0].Content
	assert.Contains(t, sys, "friendly teacher")
	assert.Contains(t, sys, `"Thermodynamics"`)
	assert.Contains(t, sys, "moderate")
	assert.Contains(t, sys, "Warm, encouraging")
	assert.True(t, strings.HasSuffix(sys, closingDirective))
	assert.NotContains(t, sys, "notes")
}

func TestOpeningIncludesNotes(t *testing.T) {
	c := NewComposer()
	s := session(domain.PersonaConfusedPeer)
	s.Notes = "carnot cycle, entropy"

	sys := c.Opening(s)[0].Content
	assert.Contains(t, sys, `The student has provided these notes: "carnot cycle, entropy"`)
	assert.Contains(t, sys, "slightly clueless")
}

func TestInstructionPerPersona(t *testing.T) {
	c := NewComposer()
	seen := make(map[string]bool)
	for _, p := range domain.Personas {
		sys := c.Instruction(domain.SessionConfig{Topic: "Optics", Difficulty: domain.DifficultyTough, Persona: p})
		assert.Contains(t, sys, personaTones[p], p)
		assert.False(t, seen[sys], "personas must produce distinct instructions")
		seen[sys] = true
	}
	ruthless := c.Instruction(domain.SessionConfig{Topic: "Optics", Persona: domain.PersonaRuthlessExaminer})
	assert.Contains(t, ruthless, "You're not being precise")
}

func TestTurnMapsRolesAndAddsToneNote(t *testing.T) {
	c := NewComposer()
	s := session(domain.PersonaFriendlyTeacher,
		domain.NewTurn(domain.RoleSystem, "instruction"),
		domain.NewTurn(domain.RoleCandidate, ReadyMessage),
		domain.NewTurn(domain.RoleExaminer, "What is entropy?"),
		domain.NewTurn(domain.RoleCandidate, "um it is disorder"),
	)

	msgs := c.Turn(s, domain.ToneNervous, 1)

	require.Len(t, msgs, 5)
	assert.Equal(t, []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser, llm.RoleSystem},
		[]llm.Role{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role, msgs[4].Role})
	assert.Equal(t, "um it is disorder", msgs[3].Content)
	assert.Contains(t, msgs[4].Content, `tone was "nervous"`)
	assert.Len(t, s.Transcript, 4, "notes are never stored")
}

func TestTurnScoldsRuthlessAboveThreshold(t *testing.T) {
	c := NewComposer()
	s := session(domain.PersonaRuthlessExaminer, domain.NewTurn(domain.RoleCandidate, "um uh like"))

	msgs := c.Turn(s, domain.ToneHesitant, 3)
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "used 3 filler words")
	assert.Contains(t, msgs[2].Content, "Scold")

	msgs = c.Turn(s, domain.ToneHesitant, 1)
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "Scold")
	}

	msgs = c.Turn(s, domain.ToneHesitant, 2)
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "Scold", "threshold is exclusive")
	}
}

func TestTurnNeverScoldsOtherPersonas(t *testing.T) {
	c := NewComposer()
	for _, p := range []domain.Persona{domain.PersonaFriendlyTeacher, domain.PersonaConfusedPeer} {
		for _, m := range c.Turn(session(p), domain.ToneNeutral, 10) {
			assert.NotContains(t, m.Content, "Scold", p)
		}
	}
}

func TestScoldThresholdOption(t *testing.T) {
	c := NewComposer(WithScoldThreshold(0))
	assert.True(t, c.Scolds(domain.PersonaRuthlessExaminer, 1))
	assert.False(t, c.Scolds(domain.PersonaRuthlessExaminer, 0))
}

func TestTurnSkipsUnknownTone(t *testing.T) {
	c := NewComposer()
	assert.Empty(t, c.Notes(domain.PersonaFriendlyTeacher, domain.ToneUnknown, 0))
	assert.Empty(t, c.Notes(domain.PersonaFriendlyTeacher, "", 0))
}

func TestSummaryEmbedsTranscript(t *testing.T) {
	c := NewComposer()
	s := session(domain.PersonaFriendlyTeacher,
		domain.NewTurn(domain.RoleExaminer, `What is "entropy"?`),
		domain.NewTurn(domain.RoleCandidate, "disorder"),
	)

	msgs := c.Summary(s)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, GradingSystem, msgs[0].Content)

	user := msgs[1].Content
	for _, field := range []string{"overallScore", "conceptScore", "clarityScore", "confidenceScore",
		"fillerControlScore", "strengths", "improvements"} {
		assert.Contains(t, user, field)
	}
	assert.Contains(t, user, "Return ONLY the JSON")

	want, err := json.Marshal([]transcriptEntry{
		{Role: domain.RoleExaminer, Content: `What is "entropy"?`, Timestamp: s.Transcript[0].Timestamp},
		{Role: domain.RoleCandidate, Content: "disorder", Timestamp: s.Transcript[1].Timestamp},
	})
	require.NoError(t, err)
	assert.Contains(t, user, string(want))
	assert.Contains(t, user, `"timestamp":"`+s.Transcript[0].Timestamp.Format(time.RFC3339Nano)+`"`)
}

const summaryJSON = `{"overallScore": 7, "conceptScore": 8, "clarityScore": 6.5,
"confidenceScore": 5, "fillerControlScore": 4,
"strengths": ["clear definitions"], "improvements": ["fewer fillers"]}`

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary(summaryJSON)
	require.NoError(t, err)
	assert.False(t, s.Degraded())
	assert.Equal(t, 7.0, s.OverallScore)
	assert.Equal(t, 6.5, s.ClarityScore)
	assert.Equal(t, []string{"clear definitions"}, s.Strengths)
	assert.Equal(t, []string{"fewer fillers"}, s.Improvements)
}

func TestParseSummaryFencedEqualsPlain(t *testing.T) {
	plain, err := ParseSummary(summaryJSON)
	require.NoError(t, err)

	for name, reply := range map[string]string{
		"json fence":  "```json\n" + summaryJSON + "\n```",
		"bare fence":  "```\n" + summaryJSON + "\n```",
		"padded":      "\n\n  ```json\n" + summaryJSON + "\n```  \n",
		"single line": "```json " + strings.ReplaceAll(summaryJSON, "\n", " ") + "```",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := ParseSummary(reply)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestParseSummaryClampsScores(t *testing.T) {
	s, err := ParseSummary(`{"overallScore": 14, "conceptScore": -3, "clarityScore": 10}`)
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.OverallScore)
	assert.Equal(t, 0.0, s.ConceptScore)
	assert.Equal(t, 10.0, s.ClarityScore)
	assert.Equal(t, []string{}, s.Strengths)
	assert.Equal(t, []string{}, s.Improvements)
}

func TestParseSummaryMalformed(t *testing.T) {
	for _, reply := range []string{"", "   ", "not json", "```json\n{\"overallScore\": \n```", `["a"]`} {
		s, err := ParseSummary(reply)
		assert.True(t, errors.Is(err, domain.ErrSummaryParse), reply)
		assert.True(t, s.Degraded())
		assert.Equal(t, DegradedSummaryError, s.Error)
		assert.Zero(t, s.OverallScore)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```JSON\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences(`  {"a":1}  `))
	assert.Equal(t, `{"a":1}`, StripFences("```{\"a\":1}```"))
}
