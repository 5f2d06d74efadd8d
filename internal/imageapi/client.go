package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the API root of a locally running backend.
	DefaultBaseURL = "http://localhost:8000/api"
	// DefaultTimeout bounds every request. Generation on a local GPU is slow.
	DefaultTimeout = 5 * time.Minute

	maxErrorBody = 4096
)

// Client talks to the image service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API rooted at baseURL.
// A non-positive timeout falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListImages returns every stored image in backend order.
func (c *Client) ListImages(ctx context.Context) ([]ImageRecord, error) {
	var images []ImageRecord
	if err := c.doJSON(ctx, http.MethodGet, EndpointAllImages, nil, &images); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}

// ListControlImages returns the filenames available as control images.
func (c *Client) ListControlImages(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.doJSON(ctx, http.MethodGet, EndpointControlFilenames, nil, &names); err != nil {
		return nil, fmt.Errorf("list control images: %w", err)
	}
	return names, nil
}

// Generate asks the backend to generate and store one image.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) error {
	if err := c.doJSON(ctx, http.MethodPost, EndpointGenerate, req, nil); err != nil {
		return fmt.Errorf("generate image: %w", err)
	}
	return nil
}

// Search finds images similar to the text or image in req.
// The text goes in the query string, the image as a multipart part.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]ImageRecord, error) {
	q := url.Values{}
	q.Set("topk", strconv.Itoa(req.TopK))
	if req.Text != nil {
		q.Set("text", *req.Text)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if req.Image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Image.Filename))
		contentType := req.Image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("search images: %w", err)
		}
		if _, err := part.Write(req.Image.Data); err != nil {
			return nil, fmt.Errorf("search images: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+EndpointSearch+"?"+q.Encode(), &body)
	if err != nil {
		return nil, fmt.Errorf("search images: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	var results []ImageRecord
	if err := c.do(httpReq, &results); err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	return results, nil
}

// Delete removes the named images from the backend.
func (c *Client) Delete(ctx context.Context, filenames []string) (*DeleteResponse, error) {
	var resp DeleteResponse
	err := c.doJSON(ctx, http.MethodDelete, EndpointDelete,
		deleteRequest{ImageFilenames: filenames}, &resp)
	if err != nil {
		return nil, fmt.Errorf("delete images: %w", err)
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// newStatusError pulls the FastAPI style {"detail": ...} message when present.
func newStatusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail any `json:"detail"`
	}
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			detail = s
		} else if b, err := json.Marshal(payload.Detail); err == nil {
			detail = string(b)
		}
	}
	return &StatusError{Code: resp.StatusCode, Detail: detail}
}
