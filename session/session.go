// Package session runs a TN3287 printer session: it connects to the host,
// negotiates, prints what the host sends and reconnects when asked to.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/proxy"
	"github.com/stesla/tn3287/sink"
	"github.com/stesla/tn3287/telnet"
	"github.com/udhos/lockfile"
	"go.uber.org/atomic"
)

const (
	connectTimeout        = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Session is one printer. It survives reconnects; each connection gets fresh
// protocol state but jobs go to the same spooler.
type Session struct {
	cfg   Config
	log   log.Ext1FieldLogger
	tr    *charset.Translator
	spool *sink.Spooler

	flush *atomic.Bool
	wake  chan struct{}
}

func New(cfg Config, l log.Ext1FieldLogger) (*Session, error) {
	if cfg.Target.Addr == "" {
		return nil, errors.New("no host")
	}
	if cfg.Sink == nil {
		return nil, errors.New("no output")
	}
	if cfg.CodePage == "" {
		cfg.CodePage = charset.DefaultCodePage
	}
	tr, err := charset.Lookup(cfg.CodePage)
	if err != nil {
		return nil, err
	}
	if cfg.TermType == "" {
		cfg.TermType = telnet.DefaultTermType
	}
	if cfg.TLS == nil && (cfg.Target.TLS || cfg.StartTLS) {
		if cfg.TLS, err = TLSConfig(cfg.Target.Host(), false, "", ""); err != nil {
			return nil, err
		}
	}
	if cfg.Reconnect && cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Session{
		cfg:   cfg,
		log:   l,
		tr:    tr,
		spool: sink.NewSpooler(cfg.Sink, cfg.Spool, l),
		flush: atomic.NewBool(false),
		wake:  make(chan struct{}, 1),
	}, nil
}

// RequestFlush ends the current print job as soon as the session is idle.
// It may be called from any goroutine.
func (s *Session) RequestFlush() {
	s.flush.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Jobs is the number of print jobs delivered so far.
func (s *Session) Jobs() int { return s.spool.Jobs() }

// Run serves the session until ctx is done, or until the connection ends and
// reconnecting is off. Pending output is always printed before it returns.
func (s *Session) Run(ctx context.Context) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !s.cfg.Reconnect {
			return err
		}
		s.log.WithError(err).Warnf("disconnected, reconnecting in %s", s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Session) connect(ctx context.Context) error {
	l := s.log.WithField("host", s.cfg.Target.Addr)
	l.Infof("connecting to %s", s.cfg.Target)

	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	nc, err := proxy.Dial(dctx, s.cfg.Proxy, s.cfg.Target.Addr)
	if err != nil {
		return &telnet.Error{Kind: telnet.TransportError, Op: "connect", Err: err}
	}
	if s.cfg.Target.TLS {
		tc := tls.Client(nc, s.cfg.TLS)
		if err := tc.HandshakeContext(dctx); err != nil {
			nc.Close()
			return &telnet.Error{Kind: telnet.TransportError, Op: "tls handshake", Err: err}
		}
		nc = tc
	}

	var startTLS *tls.Config
	if s.cfg.StartTLS {
		startTLS = s.cfg.TLS
	}
	tc := telnet.Wrap(nc, startTLS, l)
	if s.cfg.RawLog != nil {
		tc.SetRawLogWriter(s.cfg.RawLog)
	}
	l.Infof("connected to %s", tc.RemoteAddr())

	c := newConnection(s, tc, l)
	err = c.serve(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	l.Info("disconnected")
	return err
}

func (s *Session) lock() (func(), error) {
	if s.cfg.LockFile == "" {
		return func() {}, nil
	}
	path, err := filepath.Abs(s.cfg.LockFile)
	if err != nil {
		return nil, err
	}
	lf, err := lockfile.New(path)
	if err != nil {
		return nil, fmt.Errorf("lock file '%s': %w", path, err)
	}
	if err := lf.TryLock(); err != nil {
		return nil, fmt.Errorf("lock file '%s': %w", path, err)
	}
	return func() {
		if err := lf.Unlock(); err != nil {
			s.log.Warnf("lock file '%s': %v", path, err)
		}
	}, nil
}
