// Package parsing turns OCR text of German supermarket receipts and recipe cards into
// structured records. Every function here is pure: no I/O, no shared state, and OCR noise
// never produces an error, only default or missing fields.
package parsing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Preprocess splits raw OCR text into trimmed, non-empty lines in their original order.
// Lines are NFC-normalized so umlauts compare equal regardless of how the recognizer
// encoded them.
func Preprocess(raw string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(lineBreaks.Replace(raw), "\n") {
		line = strings.TrimSpace(norm.NFC.String(line))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
