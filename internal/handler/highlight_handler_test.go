package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pdf-annotation-sync/internal/repository"
	"pdf-annotation-sync/internal/service"
	"pdf-annotation-sync/internal/validation"
	"pdf-annotation-sync/pkg/logger"
)

const textHighlightJSON = `{
	"id": "h1",
	"type": "text",
	"position": {
		"boundingRect": {"x1": 10, "y1": 20, "x2": 110, "y2": 40, "width": 600, "height": 800, "pageNumber": 1},
		"rects": [{"x1": 10, "y1": 20, "x2": 110, "y2": 40, "width": 600, "height": 800, "pageNumber": 1}]
	},
	"content": {"text": "Hello"},
	"comment": "",
	"createdAt": "2024-05-01T12:00:00.000Z",
	"color": "yellow"
}`

func newTestRouter(t *testing.T, maxBodyBytes int64) http.Handler {
	t.Helper()
	nop := logger.Nop()
	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "highlights.json"), nop)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	svc := service.NewHighlightService(store, validation.New(), nop)
	return NewRouter(NewHighlightHandler(svc, nop, maxBodyBytes), RouterOptions{})
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func listIDs(t *testing.T, h http.Handler, docID string) []map[string]json.RawMessage {
	t.Helper()
	rr := doRequest(t, h, http.MethodGet, "/api/highlights?docId="+docID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	return records
}

func TestHighlightHandler_ListEmpty(t *testing.T) {
	router := newTestRouter(t, 0)

	rr := doRequest(t, router, http.MethodGet, "/api/highlights?docId=doc_a", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHighlightHandler_ListMissingDocID(t *testing.T) {
	router := newTestRouter(t, 0)

	rr := doRequest(t, router, http.MethodGet, "/api/highlights", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHighlightHandler_Lifecycle(t *testing.T) {
	router := newTestRouter(t, 0)

	rr := doRequest(t, router, http.MethodPost, "/api/highlights", `{"docId":"doc_a","highlight":`+textHighlightJSON+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if strings.TrimSpace(rr.Body.String()) != `{"success":true}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}

	records := listIDs(t, router, "doc_a")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if string(records[0]["color"]) != `"yellow"` {
		t.Fatalf("expected unknown field to survive, got %s", records[0]["color"])
	}

	rr = doRequest(t, router, http.MethodPut, "/api/highlights/doc_a/h1", `{"comment":"nice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	records = listIDs(t, router, "doc_a")
	if string(records[0]["comment"]) != `"nice"` {
		t.Fatalf("expected comment to be updated, got %s", records[0]["comment"])
	}
	if string(records[0]["createdAt"]) != `"2024-05-01T12:00:00.000Z"` {
		t.Fatalf("expected createdAt to be kept verbatim, got %s", records[0]["createdAt"])
	}

	if other := listIDs(t, router, "doc_b"); len(other) != 0 {
		t.Fatalf("expected other identity to be untouched, got %d records", len(other))
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/highlights/doc_a/h1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if records := listIDs(t, router, "doc_a"); len(records) != 0 {
		t.Fatalf("expected empty collection, got %d", len(records))
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/highlights/doc_a/h1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected repeated delete to succeed, got %d", rr.Code)
	}
}

func TestHighlightHandler_UpdateNotFound(t *testing.T) {
	router := newTestRouter(t, 0)

	rr := doRequest(t, router, http.MethodPut, "/api/highlights/doc_a/ghost", `{"comment":"x"}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"Not found"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestHighlightHandler_UpdateImmutableField(t *testing.T) {
	router := newTestRouter(t, 0)
	doRequest(t, router, http.MethodPost, "/api/highlights", `{"docId":"doc_a","highlight":`+textHighlightJSON+`}`)

	rr := doRequest(t, router, http.MethodPut, "/api/highlights/doc_a/h1", `{"content":{"text":"changed"}}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

const areaHighlightJSON = `{
	"id": "box",
	"type": "area",
	"position": {
		"boundingRect": {"x1": 10, "y1": 20, "x2": 110, "y2": 220, "width": 600, "height": 800, "pageNumber": 2},
		"rects": []
	},
	"content": {"image": "data:image/png;base64,AAAA"},
	"createdAt": "2024-05-01T12:00:00.000Z"
}`

func TestHighlightHandler_UpdateKeepsAreaConsistent(t *testing.T) {
	router := newTestRouter(t, 0)
	rr := doRequest(t, router, http.MethodPost, "/api/highlights", `{"docId":"doc_a","highlight":`+areaHighlightJSON+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	rect := `{"x1":1,"y1":1,"x2":2,"y2":2,"width":600,"height":800,"pageNumber":2}`
	rr = doRequest(t, router, http.MethodPut, "/api/highlights/doc_a/box",
		`{"content":{"text":"oops"},"position":{"boundingRect":`+rect+`,"rects":[`+rect+`]}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body.String())
	}

	records := listIDs(t, router, "doc_a")
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !strings.Contains(string(records[0]["content"]), `"image"`) || strings.Contains(string(records[0]["content"]), `"text"`) {
		t.Fatalf("expected stored content to be unchanged, got %s", records[0]["content"])
	}

	rr = doRequest(t, router, http.MethodPut, "/api/highlights/doc_a/box", `{"content":{"image":"data:image/png;base64,BBBB"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected valid reshape to succeed, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHighlightHandler_RejectsPathUnsafeIdentity(t *testing.T) {
	router := newTestRouter(t, 0)

	for _, docID := range []string{"./papr.pdf", "a/b", ".."} {
		body, _ := json.Marshal(map[string]json.RawMessage{
			"docId":     json.RawMessage(`"` + docID + `"`),
			"highlight": json.RawMessage(textHighlightJSON),
		})
		rr := doRequest(t, router, http.MethodPost, "/api/highlights", string(body))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("create under %q: expected status %d, got %d", docID, http.StatusBadRequest, rr.Code)
		}
	}

	rr := doRequest(t, router, http.MethodGet, "/api/highlights?docId=a%2Fb", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	// Every accepted identity is reachable by update and delete.
	rr = doRequest(t, router, http.MethodPost, "/api/highlights", `{"docId":"doc-a_1","highlight":`+textHighlightJSON+`}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = doRequest(t, router, http.MethodPut, "/api/highlights/doc-a_1/h1", `{"comment":"reached"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected update to succeed, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, router, http.MethodDelete, "/api/highlights/doc-a_1/h1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d", rr.Code)
	}
	if records := listIDs(t, router, "doc-a_1"); len(records) != 0 {
		t.Fatalf("expected empty collection, got %d", len(records))
	}
}

func TestHighlightHandler_CreateRejectsInvalid(t *testing.T) {
	router := newTestRouter(t, 0)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"docId":`},
		{name: "missing highlight", body: `{"docId":"doc_a"}`},
		{name: "blank identity", body: `{"docId":"  ","highlight":` + textHighlightJSON + `}`},
		{name: "text without text", body: `{"docId":"doc_a","highlight":{"id":"h2","type":"text","position":{"boundingRect":{"pageNumber":1},"rects":[]},"content":{},"createdAt":"2024-05-01T12:00:00Z"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/api/highlights", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body.String())
			}
		})
	}
	if records := listIDs(t, router, "doc_a"); len(records) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(records))
	}
}

func TestHighlightHandler_BodyTooLarge(t *testing.T) {
	router := newTestRouter(t, 64)

	rr := doRequest(t, router, http.MethodPost, "/api/highlights", `{"docId":"doc_a","highlight":`+textHighlightJSON+`}`)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}
