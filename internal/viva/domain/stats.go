package domain

// FillerStats is the cumulative disfluency measurement of a session.
//
// FillerCount is not guaranteed to equal the sum of ByWord: multi-word phrases
// are counted by a separate pass on top of single-word matches.
type FillerStats struct {
	TotalWords  int            `json:"totalWords"`
	FillerCount int            `json:"fillerCount"`
	ByWord      map[string]int `json:"byWord"`
}

// AnalysisResult is the per-fragment output of the filler analyzer.
type AnalysisResult = FillerStats

// NewFillerStats returns zeroed stats with an allocated ByWord map.
func NewFillerStats() FillerStats {
	return FillerStats{ByWord: make(map[string]int)}
}

// Add merges an analysis into the receiver.
func (f *FillerStats) Add(a AnalysisResult) {
	if f.ByWord == nil {
		f.ByWord = make(map[string]int, len(a.ByWord))
	}
	f.TotalWords += a.TotalWords
	f.FillerCount += a.FillerCount
	for word, n := range a.ByWord {
		f.ByWord[word] += n
	}
}

// Clone returns a deep copy.
func (f FillerStats) Clone() FillerStats {
	out := FillerStats{
		TotalWords:  f.TotalWords,
		FillerCount: f.FillerCount,
		ByWord:      make(map[string]int, len(f.ByWord)),
	}
	for word, n := range f.ByWord {
		out.ByWord[word] = n
	}
	return out
}

// Rate is the share of words that were fillers, in [0,1].
func (f FillerStats) Rate() float64 {
	if f.TotalWords == 0 {
		return 0
	}
	return float64(f.FillerCount) / float64(f.TotalWords)
}
