// internal/presentation/color.go
package presentation

import "loan-checker/internal/models"

// Tone is the semantic color of the risk badge.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneNeutral Tone = "neutral"
)

var toneClasses = map[Tone]string{
	ToneSuccess: "bg-green-500",
	ToneWarning: "bg-yellow-500",
	ToneDanger:  "bg-red-500",
	ToneNeutral: "bg-gray-500",
}

// ToneFor maps a risk tier to its badge tone. Anything other than low, medium
// or high, including an absent or partially streamed value, is neutral.
func ToneFor(risk string) Tone {
	switch models.Risk(risk) {
	case models.RiskLow:
		return ToneSuccess
	case models.RiskMedium:
		return ToneWarning
	case models.RiskHigh:
		return ToneDanger
	default:
		return ToneNeutral
	}
}

// Class returns the CSS class of the tone.
func (t Tone) Class() string {
	if c, ok := toneClasses[t]; ok {
		return c
	}
	return toneClasses[ToneNeutral]
}
