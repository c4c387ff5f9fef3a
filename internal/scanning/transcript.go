package scanning

import (
	"strings"
)

// transcribePrompt is the shared prompt used by all LLM providers.
const transcribePrompt = `You are an OCR engine. The image shows a German supermarket receipt or a recipe.

Transcribe ALL printed text exactly as it appears, line by line, top to bottom.

Important:
- Keep one printed line per output line; keep product name and price on the same line when they are printed on the same line
- Keep numbers exactly as printed, including decimal commas (e.g. "2,49") and tax letters (e.g. "A")
- Keep umlauts and ß
- Do not translate, summarize, correct or reorder anything
- Do not add any text before or after the transcription
- Do not use markdown code blocks`

// transcribeSystemPrompt is sent as the system message where the provider supports one.
const transcribeSystemPrompt = "You are an expert at reading German receipts and recipe cards. You transcribe text verbatim and never add commentary."

// cleanTranscript strips markdown fences and surrounding blank space from model output.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	// opening fence, possibly with a language tag
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
