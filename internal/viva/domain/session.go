package domain

import (
	"fmt"
	"strings"
	"time"
)

// Difficulty is the examination difficulty chosen at session start.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyTough    Difficulty = "tough"
)

// ParseDifficulty validates a difficulty label.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyModerate, DifficultyTough:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidSession, s)
}

// SessionConfig holds the immutable choices made when a session is created.
type SessionConfig struct {
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	Persona    Persona    `json:"persona"`
	Notes      string     `json:"notes,omitempty"`
}

// Validate reports whether the config can start a session.
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidSession)
	}
	if _, err := ParseDifficulty(string(c.Difficulty)); err != nil {
		return err
	}
	if _, err := ParsePersona(string(c.Persona)); err != nil {
		return err
	}
	return nil
}

// Session is one end-to-end examination run.
// Values handed out by the session store are snapshots; mutating them has no effect on the store.
type Session struct {
	ID          string      `json:"id"`
	Topic       string      `json:"topic"`
	Difficulty  Difficulty  `json:"difficulty"`
	Persona     Persona     `json:"persona"`
	Notes       string      `json:"notes,omitempty"`
	Transcript  []Turn      `json:"transcript"`
	FillerStats FillerStats `json:"fillerStats"`
	StartTime   time.Time   `json:"startTime"`
}

// Config returns the creation-time settings of the session.
func (s Session) Config() SessionConfig {
	return SessionConfig{
		Topic:      s.Topic,
		Difficulty: s.Difficulty,
		Persona:    s.Persona,
		Notes:      s.Notes,
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	out.Transcript = make([]Turn, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	out.FillerStats = s.FillerStats.Clone()
	return out
}

// LastTurn returns the most recent turn, if any.
func (s Session) LastTurn() (Turn, bool) {
	if len(s.Transcript) == 0 {
		return Turn{}, false
	}
	return s.Transcript[len(s.Transcript)-1], true
}
