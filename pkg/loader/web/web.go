package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ravenloom/backend/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
)

const maxBodyBytes = 20 << 20

// WebSourceLoader loads content from web URLs and extracts readable text.
// For HTML pages, it uses readability to extract the main content.
type WebSourceLoader struct {
	client *http.Client
	memo   loader.Memo
}

// NewWebSourceLoader creates a web loader. A nil client uses a client with
// a one minute timeout.
func NewWebSourceLoader(client *http.Client) *WebSourceLoader {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &WebSourceLoader{client: client}
}

// GetSourceBytes fetches src.Path. HTML is reduced to the readable article
// text, other text content is returned as is and binary content is rejected.
func (l *WebSourceLoader) GetSourceBytes(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.memo.Do(loader.CacheKey(src), func() ([]byte, error) {
		u, err := url.Parse(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
		}

		body := io.LimitReader(resp.Body, maxBodyBytes)
		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		switch {
		case strings.Contains(contentType, "text/html"):
			article, err := readability.FromReader(body, u)
			if err != nil {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			var builder strings.Builder
			if err := article.RenderText(&builder); err != nil {
				return nil, fmt.Errorf("failed to render article text: %w", err)
			}
			return []byte(strings.TrimSpace(builder.String())), nil
		case contentType == "" || strings.HasPrefix(contentType, "text/"):
			return io.ReadAll(body)
		default:
			return nil, fmt.Errorf("%w: %s", loader.ErrUnsupported, contentType)
		}
	})
}
