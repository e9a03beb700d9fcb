package domain

import "time"

// Summary is the structured grading produced at session finish.
// Error is set when the generator reply could not be parsed; scores are then zero.
type Summary struct {
	OverallScore       float64  `json:"overallScore"`
	ConceptScore       float64  `json:"conceptScore"`
	ClarityScore       float64  `json:"clarityScore"`
	ConfidenceScore    float64  `json:"confidenceScore"`
	FillerControlScore float64  `json:"fillerControlScore"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`
	Error              string   `json:"error,omitempty"`
}

// Degraded reports whether the summary carries a parse error marker.
func (s Summary) Degraded() bool { return s.Error != "" }

// Report is the archived record of a finished session.
type Report struct {
	SessionID   string      `json:"sessionId"`
	Topic       string      `json:"topic"`
	Difficulty  Difficulty  `json:"difficulty"`
	Persona     Persona     `json:"persona"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
	Transcript  []Turn      `json:"transcript"`
	FillerStats FillerStats `json:"fillerStats"`
	Summary     Summary     `json:"summary"`
}

// NewReport builds a report from the final session snapshot.
func NewReport(s Session, summary Summary, finishedAt time.Time) *Report {
	return &Report{
		SessionID:   s.ID,
		Topic:       s.Topic,
		Difficulty:  s.Difficulty,
		Persona:     s.Persona,
		StartedAt:   s.StartTime,
		FinishedAt:  finishedAt,
		Transcript:  s.Transcript,
		FillerStats: s.FillerStats,
		Summary:     summary,
	}
}
