package telnet

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Channel is what the negotiator needs from the transport: a byte stream
// that can be upgraded to TLS in place.
type Channel interface {
	io.Writer
	StartTLS() error
}

// Conn is the transport under a TN3270 session. It owns the socket, and after
// STARTTLS (or for a direct TLS connection) the TLS layer on top of it.
type Conn struct {
	conn      net.Conn
	tcp       net.Conn
	tlsConfig *tls.Config
	secure    bool
	urgent    bool
	raw       *maybeWriter
	log       log.Ext1FieldLogger
}

// Wrap takes ownership of an established connection. tlsConfig is used for
// STARTTLS; nil means STARTTLS is refused.
func Wrap(conn net.Conn, tlsConfig *tls.Config, l log.Ext1FieldLogger) *Conn {
	enableOOBInline(conn)
	_, secure := conn.(*tls.Conn)
	return &Conn{
		conn:      conn,
		tcp:       conn,
		tlsConfig: tlsConfig,
		secure:    secure,
		raw:       &maybeWriter{},
		log:       orDiscard(l),
	}
}

func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.conn.Read(b)
	if n > 0 {
		c.raw.Write(b[:n])
		if !c.secure && atUrgentMark(c.tcp) {
			c.urgent = true
		}
	}
	if err != nil && !errors.Is(err, io.EOF) && !isTimeout(err) {
		err = transportError("read", err)
	}
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.conn.Write(b)
	if err != nil {
		err = transportError("write", err)
	}
	return n, err
}

// StartTLS performs a client TLS handshake over the existing connection.
func (c *Conn) StartTLS() error {
	if c.tlsConfig == nil {
		return protocolError("starttls", "TLS is not configured")
	}
	if c.secure {
		return protocolError("starttls", "connection is already secure")
	}
	tc := tls.Client(c.conn, c.tlsConfig)
	if err := tc.Handshake(); err != nil {
		return transportError("tls handshake", err)
	}
	c.conn = tc
	c.secure = true
	state := tc.ConnectionState()
	c.log.Infof("TLS established: version 0x%04x, %s", state.Version, tls.CipherSuiteName(state.CipherSuite))
	return nil
}

// Secure reports whether traffic is encrypted.
func (c *Conn) Secure() bool { return c.secure }

// Urgent reports, once, that the peer sent urgent (out-of-band) data.
func (c *Conn) Urgent() bool {
	u := c.urgent
	c.urgent = false
	return u
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// SetRawLogWriter copies every byte received from the host to w.
func (c *Conn) SetRawLogWriter(w io.Writer) {
	c.raw.SetWriter(w)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type maybeWriter struct {
	w io.Writer
	sync.Mutex
}

func (m *maybeWriter) SetWriter(w io.Writer) {
	m.Lock()
	defer m.Unlock()
	m.w = w
}

func (m *maybeWriter) Write(p []byte) (int, error) {
	m.Lock()
	defer m.Unlock()
	if m.w == nil {
		return len(p), nil
	}
	return m.w.Write(p)
}
