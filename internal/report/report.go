// Package report renders the downloadable plain-text performance report.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/domain"
)

const (
	rule = "=========================================\n"
)

// Text renders the evaluation followed by the full call transcript.
func Text(r domain.EvaluationReport, t domain.Transcript) string {
	var b strings.Builder
	b.WriteString("AI Persona Simulator - Performance Report\n")
	b.WriteString(rule + "\n")

	b.WriteString("OVERALL PERFORMANCE\n")
	b.WriteString("-------------------\n")
	fmt.Fprintf(&b, "Score: %.1f/10\n", r.OverallScore)
	fmt.Fprintf(&b, "Feedback: %s\n\n", r.OverallFeedback)

	b.WriteString("DETAILED EVALUATION\n")
	b.WriteString("-------------------\n")
	for _, item := range r.Evaluation {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Criterion: %s\n", item.Criteria)
		fmt.Fprintf(&b, "Score: %s/10\n", strconv.FormatFloat(item.Score, 'f', -1, 64))
		fmt.Fprintf(&b, "Feedback: %s\n", item.Feedback)
	}

	b.WriteString("\n\n" + rule + "\n")
	b.WriteString("FULL CALL TRANSCRIPT\n")
	b.WriteString("--------------------\n\n")
	for _, turn := range t {
		fmt.Fprintf(&b, "%s:\n%s\n\n", sender(turn.Speaker), turn.Text)
	}
	return b.String()
}

func sender(s domain.Speaker) string {
	if s == domain.SpeakerTrainee {
		return "Consultant (You)"
	}
	return "AI Persona"
}

// FileName is the suggested download name for a report generated at t.
func FileName(t time.Time) string {
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z"), ":", "-")
	return "performance-report-" + strings.Replace(stamp, ".", "-", 1) + ".txt"
}
