package models

import "strings"

// ElementKind is the type a partitioner assigns to a piece of a PDF page
type ElementKind string

const (
	KindTitle             ElementKind = "Title"
	KindNarrativeText     ElementKind = "NarrativeText"
	KindListItem          ElementKind = "ListItem"
	KindTable             ElementKind = "Table"
	KindImage             ElementKind = "Image"
	KindHeader            ElementKind = "Header"
	KindFooter            ElementKind = "Footer"
	KindFigureCaption     ElementKind = "FigureCaption"
	KindFormula           ElementKind = "Formula"
	KindAddress           ElementKind = "Address"
	KindEmailAddress      ElementKind = "EmailAddress"
	KindPageBreak         ElementKind = "PageBreak"
	KindCodeSnippet       ElementKind = "CodeSnippet"
	KindPageNumber        ElementKind = "PageNumber"
	KindUncategorizedText ElementKind = "UncategorizedText"
	KindUnknown           ElementKind = "Unknown"
)

var knownKinds = map[string]ElementKind{
	string(KindTitle):             KindTitle,
	string(KindNarrativeText):     KindNarrativeText,
	string(KindListItem):          KindListItem,
	string(KindTable):             KindTable,
	string(KindImage):             KindImage,
	string(KindHeader):            KindHeader,
	string(KindFooter):            KindFooter,
	string(KindFigureCaption):     KindFigureCaption,
	string(KindFormula):           KindFormula,
	string(KindAddress):           KindAddress,
	string(KindEmailAddress):      KindEmailAddress,
	string(KindPageBreak):         KindPageBreak,
	string(KindCodeSnippet):       KindCodeSnippet,
	string(KindPageNumber):        KindPageNumber,
	string(KindUncategorizedText): KindUncategorizedText,
	// the partitioner reports table fragments split across pages with their own type name
	"TableChunk": KindTable,
}

// ParseElementKind maps a partitioner type name to an ElementKind.
// Unrecognised names map to KindUnknown.
func ParseElementKind(name string) ElementKind {
	if k, ok := knownKinds[name]; ok {
		return k
	}
	if strings.Contains(name, "Table") {
		return KindTable
	}
	return KindUnknown
}

// Variant tells the indexer how an element is turned into a Record
type Variant int

const (
	// VariantNone elements produce no Record
	VariantNone Variant = iota
	VariantText
	VariantTable
	VariantImage
)

func (v Variant) String() string {
	switch v {
	case VariantText:
		return "text"
	case VariantTable:
		return "table"
	case VariantImage:
		return "image"
	default:
		return "none"
	}
}

// Element is one unit extracted from a PDF by a partitioner
type Element struct {
	Kind       ElementKind `json:"kind"`
	Text       string      `json:"text"`
	PageNumber int         `json:"page_number"`
	// TextAsHTML is the partitioner's HTML rendering of a table, if any
	TextAsHTML string `json:"text_as_html,omitempty"`
	ImageBytes []byte `json:"-"`
}

// Variant classifies the element. Image elements without image bytes are
// dropped even when they carry OCR text.
func (e Element) Variant() Variant {
	switch e.Kind {
	case KindImage:
		if len(e.ImageBytes) > 0 {
			return VariantImage
		}
		return VariantNone
	case KindTable:
		return VariantTable
	}
	if strings.TrimSpace(e.Text) != "" {
		return VariantText
	}
	return VariantNone
}

// Record type labels stored alongside each embedded record
const (
	TypeImageSummary = "image_summary"
	TypeTable        = "table"
)

// RecordMetadata is stored with every vector in the collection
type RecordMetadata struct {
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	Type       string `json:"type"`
}

// Record is a piece of content ready to be embedded and indexed
type Record struct {
	ID       string         `json:"id"`
	Content  string         `json:"page_content"`
	Metadata RecordMetadata `json:"metadata"`
}

// SearchResult represents a record that matched a query
type SearchResult struct {
	Record
	Score float32 `json:"score"`
}
