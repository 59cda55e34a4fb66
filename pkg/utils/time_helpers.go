package utils

import (
	"fmt"
	"strings"
)

// FormatMinutesToHumanReadable преобразует минуты (целое число) в строку вида "1д 2ч 3м".
// Используется в текстах причин эскалаций и в отчётах.
func FormatMinutesToHumanReadable(totalMinutes int) string {
	if totalMinutes <= 0 {
		return "0м"
	}

	days := totalMinutes / (24 * 60)
	totalMinutes %= 24 * 60
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dд", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dч", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dм", minutes))
	}

	return strings.Join(parts, " ")
}
