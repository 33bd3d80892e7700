package partition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrew/textbook-rag/pkg/logger"
	"github.com/andrew/textbook-rag/pkg/models"
)

const unstructuredEndpoint = "/general/v0/general"

// UnstructuredPartitioner sends the PDF to an Unstructured partition server
// running the hi_res layout model with table structure and image extraction.
type UnstructuredPartitioner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewUnstructuredPartitioner creates a partitioner for the server at baseURL
func NewUnstructuredPartitioner(baseURL, apiKey string, httpClient *http.Client) *UnstructuredPartitioner {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &UnstructuredPartitioner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type unstructuredElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber  int    `json:"page_number"`
		TextAsHTML  string `json:"text_as_html"`
		ImageBase64 string `json:"image_base64"`
	} `json:"metadata"`
}

// Partition uploads the file and converts the returned element list
func (p *UnstructuredPartitioner) Partition(ctx context.Context, path string) ([]models.Element, error) {
	body, contentType, err := buildForm(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+unstructuredEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("unstructured-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("partition server not reachable at %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("partition server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw []unstructuredElement
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode partition response: %w", err)
	}

	elements := make([]models.Element, 0, len(raw))
	for _, r := range raw {
		el := models.Element{
			Kind:       models.ParseElementKind(r.Type),
			Text:       r.Text,
			PageNumber: r.Metadata.PageNumber,
			TextAsHTML: r.Metadata.TextAsHTML,
		}
		if r.Metadata.ImageBase64 != "" {
			img, err := base64.StdEncoding.DecodeString(r.Metadata.ImageBase64)
			if err != nil {
				logger.Warn("Bad image data on page %d: %v", r.Metadata.PageNumber, err)
			} else {
				el.ImageBytes = img
			}
		}
		elements = append(elements, el)
	}

	logger.Debug("Partition server returned %d elements", len(elements))
	return elements, nil
}

func buildForm(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	fields := [][2]string{
		{"strategy", "hi_res"},
		{"infer_table_structure", "true"},
		{"extract_image_block_types", `["Image"]`},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
