package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
	"github.com/andrew/textbook-rag/pkg/vision"
)

// buildRecords turns partitioned elements into records in document order.
// Elements that yield no content are counted as dropped.
func (ix *Indexer) buildRecords(ctx context.Context, elements []models.Element, stats *Stats) ([]models.Record, error) {
	records := make([]models.Record, 0, len(elements))
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			rec models.Record
			ok  bool
		)
		switch el.Variant() {
		case models.VariantText:
			rec, ok = textRecord(el, ix.opts.PDFPath)
		case models.VariantTable:
			rec, ok = tableRecord(el, ix.opts.PDFPath)
			if ok {
				stats.Tables++
			}
		case models.VariantImage:
			stats.Images++
			rec, ok = ix.imageRecord(ctx, el, stats)
		}

		if !ok || strings.TrimSpace(rec.Content) == "" {
			stats.Dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func textRecord(el models.Element, source string) (models.Record, bool) {
	if strings.TrimSpace(el.Text) == "" {
		return models.Record{}, false
	}
	return newRecord(el.Text, source, el.PageNumber, string(el.Kind)), true
}

// tableRecord prefers the HTML structure over the flattened text
func tableRecord(el models.Element, source string) (models.Record, bool) {
	content := el.Text
	if el.TextAsHTML != "" {
		content = fmt.Sprintf("Table on page %d:\n%s", el.PageNumber, el.TextAsHTML)
	}
	if strings.TrimSpace(content) == "" {
		return models.Record{}, false
	}
	return newRecord(content, source, el.PageNumber, models.TypeTable), true
}

func (ix *Indexer) imageRecord(ctx context.Context, el models.Element, stats *Stats) (models.Record, bool) {
	logger.Info("  > Summarizing image on page %d with %s...", el.PageNumber, ix.opts.VisionModel)

	summary, err := ix.images.Summarize(ctx, el.ImageBytes)
	if err != nil {
		stats.ImagesFailed++
		logger.Warn("Error summarizing image on page %d: %v", el.PageNumber, err)
		if !ix.opts.KeepFailedImages {
			return models.Record{}, false
		}
		summary = vision.FallbackSummary
	} else {
		logger.Debug("  > Summary: %s", preview(summary, 70))
	}

	return newRecord(summary, ix.opts.PDFPath, el.PageNumber, models.TypeImageSummary), true
}

func newRecord(content, source string, page int, typ string) models.Record {
	return models.Record{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: models.RecordMetadata{
			Source:     source,
			PageNumber: page,
			Type:       typ,
		},
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
