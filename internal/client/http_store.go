package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pdf-annotation-sync/internal/domain"
)

// HTTPStore talks to the annotation server's /api/highlights endpoints.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPStore targets the server at baseURL. A nil httpClient uses
// http.DefaultClient.
func NewHTTPStore(baseURL string, httpClient *http.Client) *HTTPStore {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type appendRequest struct {
	DocID     domain.DocumentIdentity `json:"docId"`
	Highlight domain.Highlight        `json:"highlight"`
}

func (s *HTTPStore) List(ctx context.Context, identity domain.DocumentIdentity) ([]domain.Highlight, error) {
	endpoint := s.baseURL + "/api/highlights?docId=" + url.QueryEscape(string(identity))

	var highlights []domain.Highlight
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &highlights); err != nil {
		return nil, err
	}
	if highlights == nil {
		highlights = []domain.Highlight{}
	}
	return highlights, nil
}

func (s *HTTPStore) Append(ctx context.Context, identity domain.DocumentIdentity, h domain.Highlight) error {
	return s.do(ctx, http.MethodPost, s.baseURL+"/api/highlights", appendRequest{DocID: identity, Highlight: h}, nil)
}

func (s *HTTPStore) ApplyUpdate(ctx context.Context, identity domain.DocumentIdentity, id string, patch domain.HighlightPatch) error {
	if patch == nil {
		patch = domain.HighlightPatch{}
	}
	return s.do(ctx, http.MethodPut, s.recordURL(identity, id), patch, nil)
}

func (s *HTTPStore) Remove(ctx context.Context, identity domain.DocumentIdentity, id string) error {
	return s.do(ctx, http.MethodDelete, s.recordURL(identity, id), nil, nil)
}

func (s *HTTPStore) recordURL(identity domain.DocumentIdentity, id string) string {
	return s.baseURL + "/api/highlights/" + url.PathEscape(string(identity)) + "/" + url.PathEscape(id)
}

func (s *HTTPStore) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
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

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.ErrHighlightNotFound
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidHighlight, payload.Error)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
}
