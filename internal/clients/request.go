package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	logger "github.com/pwnholic/slidecap/internal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"resty.dev/v3"
)

var (
	ErrStatus       = errors.New("unexpected response status")
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// Resource is a fetched binary payload and its media type.
type Resource struct {
	URL         string
	ContentType string
	Data        []byte
}

func blockedReason(resp *resty.Response) (bool, string) {
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return true, "IP blocked: Too Many Requests (429)"
	case http.StatusForbidden:
		return true, "IP blocked: Forbidden (403)"
	case http.StatusServiceUnavailable:
		return true, "IP blocked: Service Unavailable (503)"
	}
	return false, ""
}

// CompleteURL resolves inputURL against base when it is relative.
func CompleteURL(inputURL, base string) (string, error) {
	if inputURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.IsAbs() {
		return inputURL, nil
	}
	if base == "" {
		return "", fmt.Errorf("base URL needed for relative reference %q", inputURL)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "https"
	}
	return baseURL.ResolveReference(parsedURL).String(), nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*resty.Response, error) {
	response, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	if blocked, reason := blockedReason(response); blocked {
		logger.WarningLog("BLOCKED: %s (%s)", reason, rawURL)
	}

	code := response.StatusCode()
	if code < 200 || code > 299 {
		response.Body.Close()
		return nil, fmt.Errorf("%w: %d for %s", ErrStatus, code, rawURL)
	}
	return response, nil
}

func (c *Client) readBody(response *resty.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(response.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.maxBody)
	}
	return data, nil
}

// FetchResource downloads rawURL as opaque bytes. Any non-2xx status is an
// error; the caller decides whether that is fatal.
func (c *Client) FetchResource(ctx context.Context, rawURL string) (*Resource, error) {
	response, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	data, err := c.readBody(response)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}

	return &Resource{
		URL:         rawURL,
		ContentType: MediaType(response.Header().Get("Content-Type"), data),
		Data:        data,
	}, nil
}

// FetchPage downloads an HTML or SVG page and parses it, honouring the
// charset announced by the server.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*html.Node, error) {
	response, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	contentType := response.Header().Get("Content-Type")
	bodyReader, err := charset.NewReader(io.LimitReader(response.Body, c.maxBody), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to create charset reader: %w", err)
	}

	document, err := html.Parse(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return document, nil
}

// MediaType reduces a Content-Type header to its bare media type. When the
// header is missing or unparsable the payload is sniffed instead.
func MediaType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
