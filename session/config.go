package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/stesla/tn3287/datastream"
	"github.com/stesla/tn3287/scs"
	"github.com/stesla/tn3287/sink"
	"github.com/stesla/tn3287/telnet"
)

const DefaultPort = "23"

// Config is everything one printer session needs.
type Config struct {
	Target Target

	TermType  string
	Assoc     string
	Functions telnet.Functions
	// StartTLS lets the host upgrade a plain connection.
	StartTLS bool
	// TLS is used for direct TLS targets and STARTTLS. Nil means a default
	// configuration for the target host.
	TLS *tls.Config
	// Proxy is a socks5:// or http:// URL.
	Proxy string

	CodePage   string
	Sink       sink.Sink
	Spool      sink.Options
	DataStream datastream.Options
	SCS        scs.Options

	// EOJTimeout ends a print job after the host has been quiet this long.
	// Zero disables it.
	EOJTimeout time.Duration
	// IgnoreEOJ ignores PRINT-EOJ records.
	IgnoreEOJ bool

	Reconnect      bool
	ReconnectDelay time.Duration

	// LockFile, when set, keeps a second session with the same lock file
	// from starting.
	LockFile string
	// RawLog receives a copy of every byte read from the host.
	RawLog io.Writer
}

// Target says where to connect and as what.
type Target struct {
	Addr string
	LUs  []string
	// TLS is a direct TLS connection, requested with an L: prefix.
	TLS bool
}

func (t Target) String() string {
	s := t.Addr
	if len(t.LUs) > 0 {
		s = strings.Join(t.LUs, ",") + "@" + s
	}
	if t.TLS {
		s = "L:" + s
	}
	return s
}

// Host is the host part of Addr.
func (t Target) Host() string {
	host, _, err := net.SplitHostPort(t.Addr)
	if err != nil {
		return t.Addr
	}
	return host
}

// ParseTarget parses [L:][lu[,lu...]@]host[:port].
func ParseTarget(s string) (Target, error) {
	var t Target
	if rest, ok := cutPrefixFold(s, "L:"); ok {
		t.TLS = true
		s = rest
	}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		for _, lu := range strings.Split(s[:at], ",") {
			if lu = strings.TrimSpace(lu); lu != "" {
				t.LUs = append(t.LUs, lu)
			}
		}
		if len(t.LUs) == 0 {
			return t, fmt.Errorf("host %q: empty LU list", s)
		}
		s = s[at+1:]
	}
	if s == "" {
		return t, errors.New("no host")
	}

	if host, port, err := net.SplitHostPort(s); err == nil {
		if host == "" || port == "" {
			return t, fmt.Errorf("host %q: missing host or port", s)
		}
		t.Addr = net.JoinHostPort(host, port)
	} else {
		t.Addr = net.JoinHostPort(strings.Trim(s, "[]"), DefaultPort)
	}
	return t, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// TLSConfig builds the client TLS configuration for host.
func TLSConfig(host string, insecure bool, caFile, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	}
	if serverName != "" {
		cfg.ServerName = serverName
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%s: no certificates found", caFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
