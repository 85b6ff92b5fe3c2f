// Package dial resolves a parsed endpoint address to a concrete
// endpoint.Endpoint implementation. It is kept separate from pkg/endpoint
// itself so that the capability-set interface has no dependency on any
// particular transport.
package dial

import (
	"os"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/endpoint"
	"github.com/tridge-sync/tsync/pkg/endpoint/httpendpoint"
	"github.com/tridge-sync/tsync/pkg/endpoint/local"
	"github.com/tridge-sync/tsync/pkg/endpoint/sshendpoint"
	"github.com/tridge-sync/tsync/pkg/endpointurl"
)

// Open dispatches on url.Protocol and returns the matching Endpoint
// implementation. write selects the local endpoint's open mode; it is
// ignored for ssh and http endpoints, whose access mode is fixed by their
// transport (ssh is always bidirectional, http is always read-only).
func Open(url *endpointurl.URL, write bool) (endpoint.Endpoint, error) {
	switch url.Protocol {
	case endpointurl.ProtocolLocal:
		flag := os.O_RDONLY
		if write {
			flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		return local.Open(url.Path, flag)
	case endpointurl.ProtocolSSH:
		return sshendpoint.Dial(url)
	case endpointurl.ProtocolHTTP:
		return httpendpoint.New(url.Path), nil
	default:
		return nil, errors.Errorf("unrecognized endpoint protocol: %v", url.Protocol)
	}
}
