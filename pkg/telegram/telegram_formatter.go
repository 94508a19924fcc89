package telegram

import (
	"fmt"
	"strings"
	"time"
)

// FormatAlertMessage formats a triggered alert into a Markdown string for Telegram.
func FormatAlertMessage(alertType, severity, message string, triggeredAt time.Time) string {
	var icon string
	switch strings.ToLower(severity) {
	case "critical":
		icon = "🚨"
	case "warning":
		icon = "⚠️"
	default:
		icon = "ℹ️"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s* (%s)\n", icon, formatAlertType(alertType), strings.ToUpper(severity)))
	sb.WriteString(fmt.Sprintf("%s\n", message))
	sb.WriteString(fmt.Sprintf("📅 %s\n", triggeredAt.Format("2006-01-02 15:04 MST")))
	return sb.String()
}

// FormatRegimeMessage formats a regime classification into a Markdown string for Telegram.
func FormatRegimeMessage(regime, confidence string, stressScore float64, asOf time.Time) string {
	var icon string
	switch regime {
	case "Bull":
		icon = "🟢"
	case "Neutral":
		icon = "🟡"
	case "Bear":
		icon = "🔴"
	default:
		icon = "🚨"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *Market Regime: %s*\n", icon, regime))
	sb.WriteString(fmt.Sprintf("🎯 Confidence: %s\n", confidence))
	sb.WriteString(fmt.Sprintf("📊 Stress Score: %.2f\n", stressScore))
	sb.WriteString(fmt.Sprintf("📅 As of %s\n", asOf.Format("2006-01-02")))
	return sb.String()
}

func formatAlertType(alertType string) string {
	words := strings.Split(alertType, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
		}
	}
	return strings.Join(words, " ")
}
