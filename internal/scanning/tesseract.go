package scanning

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// minOCRHeight is the page height below which images are upscaled before OCR.
const minOCRHeight = 1600

// Tesseract implements the Recognizer interface with a local Tesseract installation.
// A gosseract client is not safe for concurrent use, so pages are read one at a time.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract Recognizer for the given trained languages
// (default "deu" and "eng").
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"deu", "eng"}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract page segmentation: %w", err)
	}

	return &Tesseract{client: client}, nil
}

// Recognize runs OCR over every page of the document
func (t *Tesseract) Recognize(ctx context.Context, imageData []byte, contentType string) (string, error) {
	return recognizePages(ctx, imageData, contentType, t.readPage)
}

func (t *Tesseract) readPage(_ context.Context, page []byte) (string, error) {
	prepared, err := preprocessForOCR(page)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}

// preprocessForOCR converts a PNG page to an upscaled, high contrast grayscale image.
// Thermal receipt prints are small and faint.
func preprocessForOCR(page []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(page), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}

	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < minOCRHeight {
		gray = imaging.Resize(gray, 0, minOCRHeight, imaging.Lanczos)
	}
	gray = imaging.AdjustContrast(gray, 30)
	gray = imaging.Sharpen(gray, 1)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding page: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the Tesseract client
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
