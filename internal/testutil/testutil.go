// Package testutil provides shared HTTP test helpers and chat fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// JSONRequest builds a request with body marshalled as JSON. A string body
// is sent verbatim.
func JSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorder body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// SkillRequestJSON returns a minimal skill request envelope.
func SkillRequestJSON(userID, utterance, callbackURL string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"userRequest": map[string]interface{}{
			"utterance":   utterance,
			"callbackUrl": callbackURL,
			"user":        map[string]string{"id": userID},
		},
	})
	return string(raw)
}

// CallbackRecorder is an HTTP server that records every POSTed body.
type CallbackRecorder struct {
	*httptest.Server

	mu     sync.Mutex
	bodies [][]byte
	notify chan struct{}
}

// NewCallbackRecorder starts a recorder; it is closed with the test.
func NewCallbackRecorder(t *testing.T) *CallbackRecorder {
	t.Helper()
	cr := &CallbackRecorder{notify: make(chan struct{}, 64)}
	cr.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		cr.mu.Lock()
		cr.bodies = append(cr.bodies, b)
		cr.mu.Unlock()
		select {
		case cr.notify <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(cr.Close)
	return cr
}

// Bodies returns a copy of the recorded bodies.
func (cr *CallbackRecorder) Bodies() [][]byte {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	out := make([][]byte, len(cr.bodies))
	copy(out, cr.bodies)
	return out
}

// WaitFor blocks until n bodies have been recorded or timeout elapses.
func (cr *CallbackRecorder) WaitFor(t *testing.T, n int, timeout time.Duration) [][]byte {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if b := cr.Bodies(); len(b) >= n {
			return b
		}
		select {
		case <-cr.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d callbacks, got %d", n, len(cr.Bodies()))
			return nil
		}
	}
}
