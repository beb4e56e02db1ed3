package testutils

import "strings"

// GenerateOverBytesUnderRunes генерирует строку из count рун, длина которой в байтах в 4 раза больше.
// Используется для проверки ограничений max_bytes.
func GenerateOverBytesUnderRunes(count int) string {
	return strings.Repeat("😁", count)
}
