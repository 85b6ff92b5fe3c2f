// Package httpendpoint implements a pull-only endpoint.Endpoint that reads
// byte ranges from an HTTP(S) resource using Range requests — the zsync
// model, where the destination pulls only the bytes it needs from a static
// file served by an ordinary web server, with no sync-aware process running
// on the source side.
package httpendpoint

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/endpoint"
	"github.com/tridge-sync/tsync/pkg/protocol"
)

// Endpoint reads byte ranges from a URL over HTTP. It supports only
// ReadBytes; WriteBytes and the framed methods return
// endpoint.ErrUnsupported since there is no process on the other end to
// exchange messages with.
type Endpoint struct {
	client *http.Client
	url    string
}

// New returns an Endpoint that issues Range requests against url.
func New(url string) *Endpoint {
	return &Endpoint{client: http.DefaultClient, url: url}
}

// ReadBytes implements endpoint.Endpoint via an HTTP Range request.
func (e *Endpoint) ReadBytes(offset int64, length int) ([]byte, error) {
	request, err := http.NewRequest(http.MethodGet, e.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to construct range request")
	}
	request.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(length)-1))

	response, err := e.client.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "unable to perform range request")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusPartialContent && response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected HTTP status for range request: %s", response.Status)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(response.Body, data); err != nil {
		return nil, errors.Wrap(err, "unable to read range response body")
	}
	return data, nil
}

// WriteBytes implements endpoint.Endpoint.
func (e *Endpoint) WriteBytes(data []byte) (int, error) {
	return 0, endpoint.ErrUnsupported
}

// ReadFrame implements endpoint.Endpoint.
func (e *Endpoint) ReadFrame() (protocol.Frame, error) {
	return protocol.Frame{}, endpoint.ErrUnsupported
}

// WriteFrame implements endpoint.Endpoint.
func (e *Endpoint) WriteFrame(frame protocol.Frame) error {
	return endpoint.ErrUnsupported
}

// Close implements endpoint.Endpoint. An HTTP endpoint holds no persistent
// resources to release.
func (e *Endpoint) Close() error {
	return nil
}
