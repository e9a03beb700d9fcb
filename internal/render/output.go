package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/keshav2232/viva/internal/viva/domain"
)

var (
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6")).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

// Renderer handles output formatting. Pretty output uses colour and box
// rules; plain output is one record per line for scripts.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Users formats a list of accounts, newest first as given.
func (r *Renderer) Users(users []*domain.User) string {
	if len(users) == 0 {
		return "No users found"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Users (%d)\n", len(users)))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, u := range users {
		created := u.CreatedAt.Local().Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %-20s %s\n", color.HiBlackString(created), Truncate(u.Name, 20), u.Email)
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.CreatedAt.UTC().Format(time.RFC3339))
		}
	}
	return sb.String()
}

// Analysis formats the filler statistics of one transcript.
func (r *Renderer) Analysis(name string, a domain.AnalysisResult) string {
	var sb strings.Builder
	if r.pretty {
		fmt.Fprintf(&sb, "%s  %d words, %s fillers (%s)\n",
			color.CyanString(name), a.TotalWords, r.fillerCount(a.FillerCount, a.Rate()), Percent(a.Rate()))
		if words := byWord(a.ByWord); words != "" {
			fmt.Fprintf(&sb, "    └─ %s\n", words)
		}
		return sb.String()
	}
	fmt.Fprintf(&sb, "%s words=%d fillers=%d rate=%.4f", name, a.TotalWords, a.FillerCount, a.Rate())
	if words := byWord(a.ByWord); words != "" {
		fmt.Fprintf(&sb, " %s", words)
	}
	sb.WriteString("\n")
	return sb.String()
}

// Aggregate formats the combined statistics of several transcripts.
func (r *Renderer) Aggregate(files int, total domain.FillerStats) string {
	if r.pretty {
		var sb strings.Builder
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		fmt.Fprintf(&sb, "%s  %d files, %d words, %s fillers (%s)\n",
			color.New(color.Bold).Sprint("TOTAL"), files, total.TotalWords,
			r.fillerCount(total.FillerCount, total.Rate()), Percent(total.Rate()))
		if words := byWord(total.ByWord); words != "" {
			fmt.Fprintf(&sb, "    └─ %s\n", words)
		}
		return sb.String()
	}
	return r.Analysis(fmt.Sprintf("TOTAL(%d)", files), total)
}

func (r *Renderer) fillerCount(n int, rate float64) string {
	s := fmt.Sprint(n)
	switch {
	case rate >= 0.10:
		return color.RedString(s)
	case rate >= 0.05:
		return color.YellowString(s)
	}
	return color.GreenString(s)
}

// byWord lists per-word counts, most frequent first.
func byWord(m map[string]int) string {
	if len(m) == 0 {
		return ""
	}
	words := make([]string, 0, len(m))
	for w := range m {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if m[words[i]] != m[words[j]] {
			return m[words[i]] > m[words[j]]
		}
		return words[i] < words[j]
	})
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("%s=%d", w, m[w])
	}
	return strings.Join(parts, " ")
}

// Report formats an archived session report.
func (r *Renderer) Report(rep *domain.Report) string {
	var sb strings.Builder
	s := rep.Summary

	if !r.pretty {
		fmt.Fprintf(&sb, "session=%s topic=%q difficulty=%s persona=%s turns=%d duration=%s\n",
			rep.SessionID, rep.Topic, rep.Difficulty, rep.Persona, len(rep.Transcript),
			FormatDuration(rep.FinishedAt.Sub(rep.StartedAt)))
		if s.Degraded() {
			fmt.Fprintf(&sb, "error=%q\n", s.Error)
		} else {
			fmt.Fprintf(&sb, "overall=%.1f concept=%.1f clarity=%.1f confidence=%.1f filler_control=%.1f\n",
				s.OverallScore, s.ConceptScore, s.ClarityScore, s.ConfidenceScore, s.FillerControlScore)
		}
		fmt.Fprintf(&sb, "words=%d fillers=%d\n", rep.FillerStats.TotalWords, rep.FillerStats.FillerCount)
		return sb.String()
	}

	header := strings.Join([]string{
		titleStyle.Render("Viva Report: " + rep.Topic),
		"Session:    " + rep.SessionID,
		"Difficulty: " + string(rep.Difficulty),
		"Persona:    " + strings.ReplaceAll(string(rep.Persona), "_", " "),
		"Duration:   " + FormatDuration(rep.FinishedAt.Sub(rep.StartedAt)),
	}, "\n")
	sb.WriteString(boxStyle.Render(header))
	sb.WriteString("\n\n")

	if s.Degraded() {
		fmt.Fprintf(&sb, "  %s %s\n", color.RedString("✗"), s.Error)
	} else {
		for _, row := range []struct {
			label string
			score float64
		}{
			{"Overall", s.OverallScore},
			{"Concepts", s.ConceptScore},
			{"Clarity", s.ClarityScore},
			{"Confidence", s.ConfidenceScore},
			{"Fillers", s.FillerControlScore},
		} {
			fmt.Fprintf(&sb, "  %-11s %s %4.1f\n", row.label, scoreColor(row.score).Sprint(ScoreBar(row.score)), row.score)
		}
		writeList(&sb, "Strengths", color.GreenString("+"), s.Strengths)
		writeList(&sb, "Improvements", color.YellowString("→"), s.Improvements)
	}

	sb.WriteString("\n")
	sb.WriteString(r.Analysis("Filler words", rep.FillerStats))
	return sb.String()
}

func writeList(sb *strings.Builder, title, marker string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n  %s\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "    %s %s\n", marker, it)
	}
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 7:
		return color.New(color.FgGreen)
	case score >= 4:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgRed)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
