// Package analyzer counts disfluency markers ("fillers") in transcribed speech.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/keshav2232/viva/internal/viva/domain"
)

// Lexicon is the full filler vocabulary, single words and phrases alike.
// Regional colloquialisms ("matlab", "toh", "haan na") are deliberate.
var Lexicon = []string{
	"um", "uh", "like", "you know", "actually", "basically",
	"matlab", "toh", "haan na", "i mean", "sort of",
}

// Phrases are matched against the raw lower-cased text in a second pass.
var Phrases = []string{"you know", "i mean", "sort of"}

// stripPunct removes the characters . , / # ! $ % ^ & * ; : { } = - _ ` ~ ( ) from a token.
var stripPunct = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")

var (
	lexicon       = make(map[string]struct{}, len(Lexicon))
	phrasePattern = make(map[string]*regexp.Regexp, len(Phrases))
)

func init() {
	for _, w := range Lexicon {
		lexicon[w] = struct{}{}
	}
	for _, p := range Phrases {
		phrasePattern[p] = regexp.MustCompile(regexp.QuoteMeta(p))
	}
}

// Analyze scans one transcript fragment. It is pure and deterministic.
//
// Phrase occurrences are added on top of single-word matches, so a fragment
// like "like, you know" yields FillerCount 2 ("like" + "you know") while a
// phrase whose words are themselves fillers would be counted twice.
func Analyze(text string) domain.AnalysisResult {
	result := domain.NewFillerStats()

	lower := strings.ToLower(text)
	for _, token := range strings.Fields(lower) {
		result.TotalWords++
		word := stripPunct.ReplaceAllString(token, "")
		if _, ok := lexicon[word]; ok {
			result.FillerCount++
			result.ByWord[word]++
		}
	}

	for _, phrase := range Phrases {
		n := len(phrasePattern[phrase].FindAllStringIndex(lower, -1))
		if n == 0 {
			continue
		}
		result.FillerCount += n
		result.ByWord[phrase] += n
	}

	return result
}
