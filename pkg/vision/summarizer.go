// Package vision turns extracted figures into searchable text descriptions.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andrew/textbook-rag/pkg/llm"
)

// Prompt is the instruction sent with every image
const Prompt = "Describe this image in detail. What mathematical concepts, diagrams, " +
	"or formulas are visible? Be descriptive. This description will be used for a search index."

// FallbackSummary is returned alongside the error when an image cannot be described
const FallbackSummary = "Failed to summarize image"

// DefaultMaxDim bounds the longer side of images sent to the vision model
const DefaultMaxDim = 1024

// Summarizer describes images with a vision model
type Summarizer struct {
	client llm.VisionClient
	maxDim int
}

// NewSummarizer creates a summarizer. maxDim <= 0 uses DefaultMaxDim.
func NewSummarizer(client llm.VisionClient, maxDim int) *Summarizer {
	if maxDim <= 0 {
		maxDim = DefaultMaxDim
	}
	return &Summarizer{client: client, maxDim: maxDim}
}

// Summarize returns a description of the encoded image. On failure it returns
// FallbackSummary together with the error.
func (s *Summarizer) Summarize(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return FallbackSummary, errors.New("empty image")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return FallbackSummary, fmt.Errorf("decode image: %w", err)
	}

	encoded, err := encodePNG(thumbnail(img, s.maxDim))
	if err != nil {
		return FallbackSummary, err
	}

	desc, err := s.client.Describe(ctx, Prompt, encoded)
	if err != nil {
		return FallbackSummary, err
	}
	return desc, nil
}

// thumbnail scales img down so neither side exceeds maxDim, keeping the
// aspect ratio. Smaller images are returned unchanged.
func thumbnail(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
