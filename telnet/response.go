package telnet

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// Failure says why a record could not be processed.
type Failure int

const (
	FailBadCommand Failure = iota
	FailBadAddress
	FailGeneric
)

func (f Failure) String() string {
	switch f {
	case FailBadCommand:
		return "bad command"
	case FailBadAddress:
		return "bad address"
	case FailGeneric:
		return "generic failure"
	default:
		panic("unknown failure")
	}
}

// Legacy status bytes sent after SOH % R STX and a zero device address.
const (
	legacyStatusDeviceEnd = 0x04
	legacyStatusUnitCheck = 0x06

	legacySenseNone          = 0x00
	legacySenseCommandReject = 0x80
	legacySenseIntervention  = 0x40
	legacySenseDataCheck     = 0x08
)

// ModeSource reports what the negotiation has agreed.
type ModeSource interface {
	State() ConnectionState
	Functions() Functions
}

// Responder frames everything we send to the host once records are flowing:
// acknowledgements in legacy or TN3270E form, the error-cleared request,
// and outbound data records.
type Responder struct {
	w     io.Writer
	mode  ModeSource
	log   log.Ext1FieldLogger
	seq   uint16
	inreq bool
}

func NewResponder(w io.Writer, mode ModeSource, l log.Ext1FieldLogger) *Responder {
	return &Responder{w: w, mode: mode, log: orDiscard(l)}
}

// InterventionPending is true between an intervention-required response and
// the matching ErrorCleared.
func (r *Responder) InterventionPending() bool { return r.inreq }

// Seq is the sequence number the next outbound record will carry.
func (r *Responder) Seq() uint16 { return r.seq }

// Ack sends a positive response to the record that carried h.
func (r *Responder) Ack(h Header) error {
	rsp := Header{DataType: DtResponse, ResponseFlag: RspPositive, Seq: h.Seq}
	r.log.Debugf("SENT TN3270E(%s DEVICE-END)", rsp)
	return r.frame(rsp.Bytes(), []byte{posDeviceEnd})
}

// Nak sends a negative response to the record that carried h.
func (r *Responder) Nak(h Header, f Failure) error {
	rsp := Header{DataType: DtResponse, ResponseFlag: RspNegative, Seq: h.Seq}
	var reason byte
	switch f {
	case FailBadCommand:
		reason = negCommandReject
	case FailBadAddress:
		reason = negOperationCheck
	default:
		reason = negInterventionRequired
		r.inreq = true
	}
	r.log.Debugf("SENT TN3270E(%s %s)", rsp, f)
	return r.frame(rsp.Bytes(), []byte{reason})
}

func (r *Responder) LegacyAck() error {
	r.log.Debug("SENT legacy status DEVICE-END")
	return r.frame(nil, legacyStatus(legacyStatusDeviceEnd, legacySenseNone))
}

// LegacyNak reports a failure in the 3287 status format. A generic failure
// shows up as intervention required and is cleared again at once.
func (r *Responder) LegacyNak(f Failure) error {
	var sense byte
	switch f {
	case FailBadCommand:
		sense = legacySenseCommandReject
	case FailBadAddress:
		sense = legacySenseDataCheck
	default:
		sense = legacySenseIntervention
	}
	r.log.Debugf("SENT legacy status UNIT-CHECK (%s)", f)
	if err := r.frame(nil, legacyStatus(legacyStatusUnitCheck, sense)); err != nil {
		return err
	}
	if f == FailGeneric {
		return r.LegacyAck()
	}
	return nil
}

// ErrorCleared tells the host that the condition behind an earlier
// intervention-required response is gone. It does nothing if no such
// response is outstanding.
func (r *Responder) ErrorCleared() error {
	if !r.inreq {
		return nil
	}
	r.inreq = false
	h := Header{DataType: DtRequest, RequestFlag: RqErrCondCleared, Seq: r.seq}
	r.log.Debugf("SENT TN3270E(%s ERR-COND-CLEARED)", h)
	if err := r.frame(h.Bytes(), nil); err != nil {
		return err
	}
	r.advance()
	return nil
}

// SendRecord sends payload as one record. In TN3270E mode it gets a header of
// type dt carrying the current sequence number.
func (r *Responder) SendRecord(dt DataType, payload []byte) error {
	var prefix []byte
	if r.mode.State().InE() {
		h := Header{DataType: dt, Seq: r.seq}
		r.log.Tracef("SENT TN3270E(%s) %d bytes", h, len(payload))
		prefix = h.Bytes()
	}
	if err := r.frame(prefix, payload); err != nil {
		return err
	}
	if prefix != nil {
		r.advance()
	}
	return nil
}

// SendData sends inbound data: SSCP-LU-DATA in the SSCP-LU sub-mode,
// 3270-DATA otherwise.
func (r *Responder) SendData(payload []byte) error {
	dt := Dt3270Data
	if r.mode.State() == ConnectedSscp {
		dt = DtSSCPLUData
	}
	return r.SendRecord(dt, payload)
}

func (r *Responder) advance() {
	if r.mode.Functions().Has(FuncResponses) {
		r.seq = (r.seq + 1) & 0x7fff
	}
}

func (r *Responder) frame(prefix, payload []byte) error {
	buf := make([]byte, 0, len(prefix)+len(payload)+4)
	buf = appendEscaped(buf, prefix)
	buf = appendEscaped(buf, payload)
	buf = append(buf, IAC, EOR)
	_, err := r.w.Write(buf)
	return err
}

func legacyStatus(status, sense byte) []byte {
	return []byte{0x01, 0x6c, 0xd9, 0x02, 0x00, status, sense}
}
