package domain

import "fmt"

// Persona selects the behavioural template the dialogue generator is asked to follow.
type Persona string

const (
	PersonaFriendlyTeacher  Persona = "friendly_teacher"
	PersonaConfusedPeer     Persona = "confused_peer"
	PersonaRuthlessExaminer Persona = "ruthless_examiner"
)

// Personas lists every supported persona in display order.
var Personas = []Persona{PersonaFriendlyTeacher, PersonaConfusedPeer, PersonaRuthlessExaminer}

// ParsePersona validates a persona label.
func ParsePersona(s string) (Persona, error) {
	for _, p := range Personas {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown persona %q", ErrInvalidSession, s)
}

// ScoldsFillers reports whether the persona reprimands excessive filler use.
func (p Persona) ScoldsFillers() bool {
	return p == PersonaRuthlessExaminer
}
