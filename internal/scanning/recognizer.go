package scanning

import (
	"context"
	"fmt"
	"strings"
)

// Recognizer turns an uploaded receipt or recipe (image or PDF) into raw text, one printed
// line per text line.
type Recognizer interface {
	// Recognize reads all text of the document. Multi-page documents are joined with
	// newlines in page order.
	Recognize(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases the backend.
	Close() error
}

// pageReader reads the text of one PNG page.
type pageReader func(ctx context.Context, png []byte) (string, error)

// recognizePages normalizes the upload to PNG pages and reads them one after another.
func recognizePages(ctx context.Context, imageData []byte, contentType string, read pageReader) (string, error) {
	pages, err := preparePages(imageData, contentType)
	if err != nil {
		return "", err
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := read(ctx, page)
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i+1, err)
		}
		if text = cleanTranscript(text); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n"), nil
}
