package httpserver

import "fmt"

const (
	minSpeechRate = 0.5
	maxSpeechRate = 2.0
)

// PaceLabel describes a speech rate the way the settings screen shows it.
func PaceLabel(rate float64) string {
	switch {
	case rate < 0.8:
		return fmt.Sprintf("Slower (%.1fx)", rate)
	case rate < 1:
		return fmt.Sprintf("Slow (%.1fx)", rate)
	case rate == 1:
		return "Normal (1.0x)"
	case rate <= 1.2:
		return fmt.Sprintf("Slightly Fast (%.1fx)", rate)
	case rate <= 1.6:
		return fmt.Sprintf("Fast (%.1fx)", rate)
	default:
		return fmt.Sprintf("Faster (%.1fx)", rate)
	}
}

type timeLimitOption struct {
	Seconds int    `json:"seconds"`
	Label   string `json:"label"`
}

var timeLimitOptions = []timeLimitOption{
	{180, "3 Minutes"},
	{300, "5 Minutes"},
	{600, "10 Minutes"},
	{0, "No Limit"},
}
