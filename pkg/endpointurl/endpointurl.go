// Package endpointurl parses the compact address syntax used to name a sync
// endpoint on the command line: a plain path for a local endpoint, an
// SCP-style `[user@]host:path` for an SSH endpoint, or an `http(s)://` URL
// for an HTTP endpoint.
package endpointurl

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Protocol identifies which endpoint implementation a URL addresses.
type Protocol uint8

const (
	// ProtocolLocal addresses a path on the local filesystem.
	ProtocolLocal Protocol = iota
	// ProtocolSSH addresses a path on a remote host reachable over SSH.
	ProtocolSSH
	// ProtocolHTTP addresses an http:// or https:// resource.
	ProtocolHTTP
)

// URL is a parsed endpoint address.
type URL struct {
	// Protocol indicates which endpoint implementation should handle this
	// address.
	Protocol Protocol
	// Username is the SSH username, if any was specified. Empty for
	// ProtocolLocal and ProtocolHTTP.
	Username string
	// Hostname is the SSH hostname. Empty for ProtocolLocal and ProtocolHTTP.
	Hostname string
	// Port is the SSH port, or 0 to use the SSH client's default. Unused for
	// ProtocolLocal and ProtocolHTTP.
	Port uint16
	// Path is the filesystem path for ProtocolLocal and ProtocolSSH
	// endpoints, or the full URL string for ProtocolHTTP endpoints.
	Path string
}

// Parse classifies and parses a raw endpoint address.
func Parse(raw string) (*URL, error) {
	if raw == "" {
		return nil, errors.New("empty endpoint address")
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return &URL{Protocol: ProtocolHTTP, Path: raw}, nil
	}

	if isSCPSSHAddress(raw) {
		return parseSCPSSH(raw)
	}

	return &URL{Protocol: ProtocolLocal, Path: raw}, nil
}

// isSCPSSHAddress determines whether raw should be parsed as an SCP-style
// SSH address: a colon appears before any forward slash. This mirrors the
// classic scp/rsync heuristic for distinguishing "host:path" from a local
// path, which may itself legitimately contain colons after its first slash
// (rare, but possible on POSIX filesystems).
func isSCPSSHAddress(raw string) bool {
	for _, c := range raw {
		if c == ':' {
			return true
		} else if c == '/' {
			return false
		}
	}
	return false
}

// parseSCPSSH parses an SCP-style SSH address of the form
// [user@]host[:port]:path.
func parseSCPSSH(raw string) (*URL, error) {
	var username string
	for i, r := range raw {
		if r == ':' {
			break
		} else if r == '@' {
			if i == 0 {
				return nil, errors.New("empty username specified")
			}
			username = raw[:i]
			raw = raw[i+1:]
			break
		}
	}

	var hostname string
	for i, r := range raw {
		if r == ':' {
			if i == 0 {
				return nil, errors.New("empty hostname")
			}
			hostname = raw[:i]
			raw = raw[i+1:]
			break
		}
	}
	if hostname == "" {
		return nil, errors.New("no hostname present")
	}

	// Parse off an optional port: scan digits up to the next colon. We
	// invent this syntax ourselves (SCP has no native port specifier), so an
	// absent or non-numeric prefix before the next colon is simply treated
	// as the start of the path rather than an error.
	var port uint16
	for i, r := range raw {
		if '0' <= r && r <= '9' {
			continue
		}
		if r == ':' {
			if value, err := strconv.ParseUint(raw[:i], 10, 16); err == nil {
				port = uint16(value)
				raw = raw[i+1:]
			}
		}
		break
	}

	path := raw
	if path == "" {
		return nil, errors.New("empty path")
	}

	return &URL{
		Protocol: ProtocolSSH,
		Username: username,
		Hostname: hostname,
		Port:     port,
		Path:     path,
	}, nil
}

// String renders u back into its compact address form.
func (u *URL) String() string {
	switch u.Protocol {
	case ProtocolLocal, ProtocolHTTP:
		return u.Path
	case ProtocolSSH:
		var b strings.Builder
		if u.Username != "" {
			b.WriteString(u.Username)
			b.WriteByte('@')
		}
		b.WriteString(u.Hostname)
		if u.Port != 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(int(u.Port)))
		}
		b.WriteByte(':')
		b.WriteString(u.Path)
		return b.String()
	default:
		return u.Path
	}
}
