package session

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stesla/tn3287/datastream"
	"github.com/stesla/tn3287/scs"
	"github.com/stesla/tn3287/telnet"
)

// connection is the state of one connection to the host. Everything but the
// wake-up goroutine runs on the goroutine that called serve.
type connection struct {
	s    *Session
	log  log.Ext1FieldLogger
	tc   *telnet.Conn
	neg  *telnet.Negotiator
	resp *telnet.Responder
	ds   *datastream.Decoder
	scs  *scs.Decoder

	announced bool
}

func newConnection(s *Session, tc *telnet.Conn, l log.Ext1FieldLogger) *connection {
	c := &connection{s: s, log: l, tc: tc}
	c.neg = telnet.NewNegotiator(tc, telnet.Config{
		TermType:  s.cfg.TermType,
		LUs:       s.cfg.Target.LUs,
		Assoc:     s.cfg.Assoc,
		Functions: s.cfg.Functions,
		StartTLS:  s.cfg.StartTLS,
	}, c, l)
	c.resp = telnet.NewResponder(tc, c.neg, l)
	c.ds = datastream.New(s.spool, s.tr, s.cfg.DataStream, l)
	c.ds.SetReplier(c)
	c.scs = scs.New(s.spool, s.tr, s.cfg.SCS, l)
	return c
}

func (c *connection) serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go c.wakeOn(ctx, stop)

	buf := make([]byte, 4096)
	for {
		if err := c.tc.SetReadDeadline(c.deadline()); err != nil {
			return err
		}
		// checked after the deadline is set, so a wake-up is never lost
		if ctx.Err() != nil {
			return nil
		}
		if c.s.flush.CompareAndSwap(true, false) {
			if err := c.nonFatal(c.endJob("flush requested")); err != nil {
				return err
			}
			continue
		}

		n, err := c.tc.Read(buf)
		if n > 0 {
			if c.tc.Urgent() {
				c.neg.Sync()
			}
			if perr := c.neg.Process(buf[:n]); perr != nil {
				return perr
			}
			c.announce()
		}
		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
			if ctx.Err() == nil && !c.s.flush.Load() {
				if err := c.nonFatal(c.endJob("idle timeout")); err != nil {
					return err
				}
			}
		case errors.Is(err, io.EOF):
			return &telnet.Error{Kind: telnet.TransportError, Op: "read", Err: errors.New("host closed the connection")}
		default:
			return err
		}
	}
}

// wakeOn interrupts a blocked read when ctx is done or a flush is requested.
func (c *connection) wakeOn(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			c.tc.SetReadDeadline(time.Now())
			return
		case <-c.s.wake:
			c.tc.SetReadDeadline(time.Now())
		}
	}
}

// deadline is when an idle job ends; zero when nothing is waiting.
func (c *connection) deadline() time.Time {
	if c.s.cfg.EOJTimeout <= 0 || !c.pending() {
		return time.Time{}
	}
	return time.Now().Add(c.s.cfg.EOJTimeout)
}

func (c *connection) pending() bool {
	return c.s.spool.Pending() || c.ds.Pending() || c.scs.Pending()
}

func (c *connection) announce() {
	if c.announced || !c.neg.Ready() {
		return
	}
	c.announced = true
	e := c.log.WithField("state", c.neg.State())
	if c.neg.Negotiated() {
		e = e.WithField("functions", c.neg.Functions().String())
	}
	if lu := c.neg.ConnectedLU(); lu != "" {
		e.Infof("printer session ready on LU %s", lu)
	} else {
		e.Info("printer session ready")
	}
}

// close prints whatever is left and drops the connection.
func (c *connection) close() error {
	err := c.endJob("disconnect")
	c.neg.Disconnect()
	c.tc.Close()
	if err != nil {
		c.log.WithError(err).Warn("output lost at disconnect")
	}
	return nil
}

// Record handles one record from the host.
func (c *connection) Record(rec []byte) error {
	if !c.neg.State().InE() {
		return c.legacyRecord(rec)
	}
	h, body, ok := telnet.ParseHeader(rec)
	if !ok {
		c.log.Warnf("TN3270E record of %d bytes has no header, ignored", len(rec))
		return nil
	}
	c.log.Tracef("RCVD TN3270E(%s) %d bytes", h, len(body))

	switch h.DataType {
	case telnet.Dt3270Data, telnet.DtSCSData:
		if c.neg.Functions().Has(telnet.FuncBindImage) && !c.neg.Bound() {
			c.log.Warnf("%s while not bound, ignored", h.DataType)
			return nil
		}
		if err := c.neg.SetSubmode(telnet.Submode3270); err != nil {
			return err
		}
		var err error
		if h.DataType == telnet.DtSCSData {
			err = c.scs.Process(body)
		} else {
			err = c.ds.Process(body)
		}
		return c.respond(h, err)
	case telnet.DtBindImage:
		c.log.Info("bound")
		return c.neg.SetBound(true)
	case telnet.DtUnbind:
		c.log.Info("unbound")
		if err := c.neg.SetBound(false); err != nil {
			return err
		}
		if c.neg.Submode() == telnet.Submode3270 {
			if err := c.neg.SetSubmode(telnet.SubmodeNone); err != nil {
				return err
			}
		}
		return c.nonFatal(c.endJob("UNBIND"))
	case telnet.DtSSCPLUData:
		return c.neg.SetSubmode(telnet.SubmodeSscp)
	case telnet.DtPrintEOJ:
		var err error
		if !c.s.cfg.IgnoreEOJ {
			err = c.endJob("PRINT-EOJ")
		}
		return c.respond(h, err)
	}
	c.log.Warnf("%s record ignored", h.DataType)
	return nil
}

func (c *connection) legacyRecord(rec []byte) error {
	err := c.ds.Process(rec)
	if err == nil {
		return c.resp.LegacyAck()
	}
	if telnet.IsFatal(err) {
		return err
	}
	f := failureOf(err)
	c.log.WithError(err).Warnf("record failed, responding %s", f)
	return c.resp.LegacyNak(f)
}

// respond answers a TN3270E record the way its response flag asks.
func (c *connection) respond(h telnet.Header, err error) error {
	if err != nil {
		if telnet.IsFatal(err) {
			return err
		}
		f := failureOf(err)
		c.log.WithError(err).Warnf("%s failed, responding %s", h, f)
		if h.ResponseFlag == telnet.RspNoResponse {
			return nil
		}
		return c.resp.Nak(h, f)
	}
	if h.ResponseFlag == telnet.RspAlwaysResponse {
		if err := c.resp.Ack(h); err != nil {
			return err
		}
	}
	return c.resp.ErrorCleared()
}

// AbortOutput ends the current job.
func (c *connection) AbortOutput() error {
	return c.nonFatal(c.endJob("abort output"))
}

// Reply sends a query reply or other inbound 3270 data.
func (c *connection) Reply(payload []byte) error {
	return c.resp.SendData(payload)
}

func (c *connection) endJob(reason string) error {
	err := c.ds.Flush()
	if e := c.scs.Flush(); err == nil {
		err = e
	}
	if !c.s.spool.Pending() {
		return err
	}
	c.log.Debugf("end of job: %s", reason)
	if e := c.s.spool.EndJob(); err == nil {
		err = e
	}
	return err
}

// nonFatal logs output failures and passes on the errors that end the
// connection.
func (c *connection) nonFatal(err error) error {
	if err == nil || telnet.IsFatal(err) {
		return err
	}
	c.log.WithError(err).Warn("output failed")
	return nil
}

func failureOf(err error) telnet.Failure {
	switch {
	case errors.Is(err, datastream.ErrBadCommand), errors.Is(err, scs.ErrBadOrder):
		return telnet.FailBadCommand
	case errors.Is(err, datastream.ErrBadAddress):
		return telnet.FailBadAddress
	}
	return telnet.FailGeneric
}
