package domain

import "strings"

// Tone is the coarse vocal tone detected in a candidate answer.
type Tone string

const (
	ToneConfident    Tone = "confident"
	ToneNervous      Tone = "nervous"
	ToneHesitant     Tone = "hesitant"
	ToneNeutral      Tone = "neutral"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneUnknown      Tone = "unknown"
)

var toneAliases = map[string]Tone{
	"confident":    ToneConfident,
	"assertive":    ToneConfident,
	"nervous":      ToneNervous,
	"anxious":      ToneNervous,
	"hesitant":     ToneHesitant,
	"unsure":       ToneHesitant,
	"uncertain":    ToneHesitant,
	"neutral":      ToneNeutral,
	"calm":         ToneNeutral,
	"enthusiastic": ToneEnthusiastic,
	"excited":      ToneEnthusiastic,
	"unknown":      ToneUnknown,
}

// ParseTone folds a free-text tone label from a transcriber into the closed set.
// Labels outside the known vocabulary become ToneUnknown.
func ParseTone(label string) Tone {
	key := strings.ToLower(strings.Trim(strings.TrimSpace(label), ".,!\"'"))
	if t, ok := toneAliases[key]; ok {
		return t
	}
	return ToneUnknown
}
