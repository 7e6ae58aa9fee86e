package hardware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSnapshotSourceRead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer ts.Close()

	s := NewSnapshotSource(ts.URL, time.Second)
	got := s.Read()
	if got != "data:image/jpeg;base64,/9j/4A==" {
		t.Errorf("unexpected data URI %q", got)
	}
}

func TestSnapshotSourceDetectsContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	}))
	defer ts.Close()

	got := NewSnapshotSource(ts.URL, time.Second).Read()
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("expected png data URI, got %q", got)
	}
}

func TestSnapshotSourceErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera busy", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if got := NewSnapshotSource(ts.URL, time.Second).Read(); got != "" {
		t.Errorf("expected empty snapshot on HTTP error, got %q", got)
	}

	ts.Close()
	if got := NewSnapshotSource(ts.URL, time.Second).Read(); got != "" {
		t.Errorf("expected empty snapshot when unreachable, got %q", got)
	}
}

func TestNewSnapshotSourceDisabled(t *testing.T) {
	if s := NewSnapshotSource("", time.Second); s != nil {
		t.Error("expected nil source for empty URL")
	}
}
