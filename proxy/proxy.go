// Package proxy connects to the host, either directly or through a SOCKS5 or
// HTTP CONNECT proxy given as a URL such as socks5://user:pass@gw:1080 or
// http://gw:3128.
package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

func init() {
	xproxy.RegisterDialerType("http", newHTTPConnect)
}

// Dial connects to addr, through proxyURL unless it is empty.
func Dial(ctx context.Context, proxyURL, addr string) (net.Conn, error) {
	if proxyURL == "" {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy %q: %w", proxyURL, err)
	}
	d, err := xproxy.FromURL(u, xproxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy %q: %w", proxyURL, err)
	}
	return dialContext(ctx, d, "tcp", addr)
}

func dialContext(ctx context.Context, d xproxy.Dialer, network, addr string) (net.Conn, error) {
	if cd, ok := d.(xproxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return d.Dial(network, addr)
}

type httpConnect struct {
	addr    string
	auth    string
	forward xproxy.Dialer
}

func newHTTPConnect(u *url.URL, forward xproxy.Dialer) (xproxy.Dialer, error) {
	h := &httpConnect{addr: u.Host, forward: forward}
	if u.Port() == "" {
		h.addr = net.JoinHostPort(u.Hostname(), "3128")
	}
	if u.User != nil {
		pass, _ := u.User.Password()
		h.auth = base64.StdEncoding.EncodeToString([]byte(u.User.Username() + ":" + pass))
	}
	return h, nil
}

func (h *httpConnect) Dial(network, addr string) (net.Conn, error) {
	return h.DialContext(context.Background(), network, addr)
}

func (h *httpConnect) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := dialContext(ctx, h.forward, network, h.addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", addr, addr)
	if h.auth != "" {
		req += "Proxy-Authorization: Basic " + h.auth + "\r\n"
	}
	if _, err := conn.Write([]byte(req + "\r\n")); err != nil {
		conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodConnect})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy %s: %w", h.addr, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy %s: CONNECT %s: %s", h.addr, addr, resp.Status)
	}
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn keeps whatever the host sent along with the proxy's reply.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
