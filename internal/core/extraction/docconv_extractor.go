package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/hireloop/hireloop/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor converts PDF, DOCX and plain-text documents to text.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// Extract converts the raw bytes using the content type hint. Empty extracted
// text is an error: callers rely on content length as a sanity signal, so a
// blank result must never look like success.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("extract: %w", core.ErrDocumentNotFound)
	}

	// Plain text needs no conversion.
	if strings.HasPrefix(contentType, "text/plain") {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("extract: empty text document")
		}
		return text, nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %q: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return "", fmt.Errorf("docconv %q: extracted empty text", contentType)
	}
	return text, nil
}
