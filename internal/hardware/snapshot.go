package hardware

import (
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// maxSnapshotBytes bounds a single camera frame.
const maxSnapshotBytes = 8 << 20

// SnapshotSource fetches still frames from an HTTP camera endpoint
// (for example mjpg-streamer's ?action=snapshot).
type SnapshotSource struct {
	URL    string
	Client *http.Client
}

// NewSnapshotSource returns nil if url is empty.
func NewSnapshotSource(url string, timeout time.Duration) *SnapshotSource {
	if url == "" {
		return nil
	}
	return &SnapshotSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Read returns the frame as a data URI, or "" on failure.
func (s *SnapshotSource) Read() string {
	img, err := s.fetch()
	if err != nil {
		log.Printf("hardware: snapshot: %v", err)
		return ""
	}
	return img
}

func (s *SnapshotSource) fetch() (string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(s.URL)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty frame")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
