package partition

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
)

// TextPartitioner extracts the text layer locally. It never produces tables
// or images.
type TextPartitioner struct{}

// NewTextPartitioner creates a local text-only partitioner
func NewTextPartitioner() *TextPartitioner {
	return &TextPartitioner{}
}

// Partition emits one NarrativeText element per paragraph per page
func (p *TextPartitioner) Partition(ctx context.Context, path string) (elements []models.Element, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// the reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			elements = nil
			err = fmt.Errorf("failed to parse %s: %v", path, r)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	total := reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Skipping page %d: %v", pageNum, err)
			continue
		}
		for _, para := range splitParagraphs(text) {
			elements = append(elements, models.Element{
				Kind:       models.KindNarrativeText,
				Text:       para,
				PageNumber: pageNum,
			})
		}
	}

	logger.Debug("Extracted %d paragraphs from %d pages", len(elements), total)
	return elements, nil
}

// splitParagraphs splits on blank lines and drops empty paragraphs
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		if p := strings.TrimSpace(block); p != "" {
			out = append(out, p)
		}
	}
	return out
}
