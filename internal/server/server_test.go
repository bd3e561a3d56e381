package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/capture"
)

type fakeSession struct {
	captureErr error
	bundleErr  error
	captured   int
}

func (f *fakeSession) Capture(ctx context.Context) (string, error) {
	if f.captureErr != nil {
		return "", f.captureErr
	}
	f.captured++
	return capture.SlideName(f.captured), nil
}

func (f *fakeSession) Bundle(ctx context.Context) (string, []byte, error) {
	if f.bundleErr != nil {
		return "", nil, f.bundleErr
	}
	return "Slides_Captured.zip", []byte("PK-archive"), nil
}

func (f *fakeSession) Stats() capture.Stats {
	return capture.Stats{NextIndex: f.captured + 1, Captured: f.captured, Filename: "Slides_Captured.zip"}
}

func newTestServer(t *testing.T, sess Session) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(":0", sess, internal.NewLogger(io.Discard, internal.DEBUG)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCaptureEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSession{})

	resp := post(t, srv.URL+"/capture")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Name  string        `json:"name"`
		Stats capture.Stats `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "Slide_01.png" || body.Stats.NextIndex != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestCaptureEndpointErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{capture.ErrNoSlide, http.StatusNotFound},
		{capture.ErrBusy, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		srv := newTestServer(t, &fakeSession{captureErr: tt.err})
		if resp := post(t, srv.URL+"/capture"); resp.StatusCode != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
	}
}

func TestFinalizeEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSession{})
	resp := post(t, srv.URL+"/finalize")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="Slides_Captured.zip"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/zip" {
		t.Fatalf("Content-Type = %q", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "PK-archive" {
		t.Fatalf("body = %q", data)
	}
}

func TestFinalizeEndpointNothingCaptured(t *testing.T) {
	srv := newTestServer(t, &fakeSession{bundleErr: capture.ErrNothingCaptured})
	if resp := post(t, srv.URL+"/finalize"); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSession{captured: 4})
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st capture.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Captured != 4 || st.NextIndex != 5 {
		t.Fatalf("stats = %+v", st)
	}

	if resp := post(t, srv.URL+"/status"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /status = %d", resp.StatusCode)
	}
}
