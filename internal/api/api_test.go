package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/sse"
	"github.com/starford/citemark/internal/testutil/envtest"
	"github.com/starford/citemark/internal/validator"
)

func testVault() map[string]string {
	return map[string]string{
		"docs/guide.md": "# Guide\n\n## Install\n\nRun make.\n\n## Usage\n\nCall it.\n",
		"notes/a.md":    "# A\n\n[install](../docs/guide.md#Install)\n[usage](../docs/guide.md#Usage)\n[gone](../docs/guide.md#Removed)\n",
	}
}

// testEnv sets up a temp vault, index, service and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*envtest.Env, http.Handler) {
	t.Helper()
	env := envtest.NewEnv(t, testVault())
	return env, NewRouter(env.Svc, authToken != "", authToken, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidateEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/validate", ValidateRequest{Path: "notes/a.md"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res validator.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Summary.Total != 3 || res.Summary.Valid != 2 || res.Summary.Errors != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.Links) != 3 || res.Links[2].Validation == nil || res.Links[2].Validation.Error == "" {
		t.Errorf("third link should carry an error: %+v", res.Links)
	}
}

func TestValidateEndpoint_BadRequests(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty path", `{"path":""}`, http.StatusBadRequest},
		{"malformed", `{"path":`, http.StatusBadRequest},
		{"unknown field", `{"file":"a.md"}`, http.StatusBadRequest},
		{"missing file", `{"path":"nope.md"}`, http.StatusNotFound},
		{"traversal", `{"path":"../../etc/passwd"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestExtractEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/extract", ExtractRequest{Paths: []string{"notes/a.md"}}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"extractedContentBlocks":{"_totalContentCharacterLength":`) {
		t.Errorf("size key not first in blocks: %s", body)
	}

	var res struct {
		Stats extractor.Stats `json:"stats"`
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatal(err)
	}
	if res.Stats.Successful != 2 || res.Stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 2 successful and 1 skipped", res.Stats)
	}

	w = doJSON(t, router, http.MethodPost, "/extract", ExtractRequest{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("no paths = %d, want 400", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/extract", ExtractRequest{Paths: []string{""}}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank path = %d, want 400", w.Code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	// Nothing recorded before validation.
	w := doJSON(t, router, http.MethodGet, "/backlinks/docs/guide.md", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Citations) != 0 {
		t.Errorf("citations before validate = %d", len(resp.Citations))
	}

	doJSON(t, router, http.MethodPost, "/validate", ValidateRequest{Path: "notes/a.md"}, "")

	w = doJSON(t, router, http.MethodGet, "/backlinks/docs%2Fguide.md", nil, "")
	resp = BacklinksResponse{}
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Target != "docs/guide.md" || len(resp.Citations) != 3 {
		t.Errorf("backlinks = %+v", resp)
	}
}

func TestFilesEndpoint(t *testing.T) {
	env, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/files?name=guide", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp FilesResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Paths) != 1 || resp.Paths[0] != env.Path("docs/guide.md") {
		t.Errorf("paths = %v", resp.Paths)
	}

	w = doJSON(t, router, http.MethodGet, "/files", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodPost, "/validate", ValidateRequest{Path: "notes/a.md"}, "secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed validate = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodGet, "/files?name=guide", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodGet, "/files?name=guide", nil, "wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	env := envtest.NewEnv(t, testVault())
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	return NewRouter(env.Svc, authEnabled, token, broker)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	// The handler blocks until the request context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
