package domain

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleCandidate Role = "candidate"
	RoleExaminer  Role = "examiner"
)

// Turn is one message in a session transcript. Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Tone and Fillers are only set on candidate turns.
	Tone    Tone `json:"tone,omitempty"`
	Fillers int  `json:"fillers,omitempty"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now()}
}
