package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

// formatFloat evita notação científica para valores comuns (ex: 0.02).
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
