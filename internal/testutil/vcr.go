package testutil

import (
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder returns a recorder that captures every exchange made
// through it into a cassette under t.TempDir(). The returned stop function
// saves the cassette and returns its path for cassette.Load; it is safe to
// call more than once.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func() string) {
	t.Helper()

	cassettePath := filepath.Join(t.TempDir(), cassetteName)
	r, err := recorder.NewAsMode(cassettePath, recorder.ModeRecording, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// httptest servers listen on a new port every run, so only the method
	// and path identify an interaction.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		u, err := url.Parse(i.URL)
		if err != nil {
			return false
		}
		return r.Method == i.Method && r.URL.Path == u.Path && r.URL.RawQuery == u.RawQuery
	})
	r.AddSaveFilter(func(i *cassette.Interaction) error {
		delete(i.Response.Headers, "Date")
		return nil
	})

	var once sync.Once
	stop := func() string {
		once.Do(func() {
			if err := r.Stop(); err != nil {
				t.Errorf("Failed to stop VCR recorder: %v", err)
			}
		})
		return cassettePath
	}
	t.Cleanup(func() { stop() })

	return r, stop
}

// VCRHTTPClient returns an HTTP client that sends through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
		// Redirects are part of what is being recorded.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
