package httpendpoint

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tridge-sync/tsync/pkg/endpoint"
	"github.com/tridge-sync/tsync/pkg/protocol"
)

var _ endpoint.Endpoint = (*Endpoint)(nil)

func TestReadBytesIssuesRangeRequest(t *testing.T) {
	const body = "0123456789ABCDEF"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			t.Error("expected a Range header on the request")
		}
		w.Header().Set("Content-Range", "bytes 4-7/16")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(body[4:8]))
	}))
	defer server.Close()

	e := New(server.URL)
	got, err := e.ReadBytes(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "4567" {
		t.Errorf("unexpected range content: %q", got)
	}
}

func TestReadBytesFailsOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	e := New(server.URL)
	if _, err := e.ReadBytes(0, 4); err == nil {
		t.Error("expected an error for a non-2xx response")
	}
}

func TestWriteAndFrameMethodsAreUnsupported(t *testing.T) {
	e := New("http://example.com/x")
	if _, err := e.WriteBytes([]byte("x")); err != endpoint.ErrUnsupported {
		t.Error("expected ErrUnsupported from WriteBytes")
	}
	if _, err := e.ReadFrame(); err != endpoint.ErrUnsupported {
		t.Error("expected ErrUnsupported from ReadFrame")
	}
	if err := e.WriteFrame(protocol.Frame{}); err != endpoint.ErrUnsupported {
		t.Error("expected ErrUnsupported from WriteFrame")
	}
}
