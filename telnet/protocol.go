package telnet

import (
	"bytes"

	log "github.com/sirupsen/logrus"
)

// Handler receives the records the negotiator extracts from the stream.
type Handler interface {
	// Record is called with every EOR-terminated record received in a 3270
	// mode. In a TN3270E mode the record starts with its header.
	Record(rec []byte) error
	// AbortOutput is called when the host sends IAC AO in a 3270 mode.
	AbortOutput() error
}

// Config controls what we offer during negotiation.
type Config struct {
	// TermType is sent in TERMINAL-TYPE and DEVICE-TYPE requests.
	TermType string
	// LUs are tried in order; each device-type REJECT moves to the next.
	LUs []string
	// Assoc asks to be associated with the display session of that name.
	// It requires TN3270E.
	Assoc string
	// Functions is the TN3270E function set we ask for.
	Functions Functions
	// StartTLS allows the host to upgrade the connection with STARTTLS.
	StartTLS bool
}

// Negotiator runs the telnet option state machine for one connection and
// collects 3270 records between EOR marks.
type Negotiator struct {
	ch      Channel
	handler Handler
	cfg     Config
	log     log.Ext1FieldLogger

	state    readerState
	cstate   ConnectionState
	opts     *optionTable
	ibuf     *bytes.Buffer
	sb       bytes.Buffer
	synced   bool
	tlsArmed bool

	funcs       Functions
	narrowed    bool
	negotiated  bool
	submode     Submode
	bound       bool
	deviceType  string
	connectedLU string
	lu          luCursor
}

func NewNegotiator(ch Channel, cfg Config, h Handler, l log.Ext1FieldLogger) *Negotiator {
	if cfg.TermType == "" {
		cfg.TermType = DefaultTermType
	}
	n := &Negotiator{
		ch:      ch,
		handler: h,
		cfg:     cfg,
		log:     orDiscard(l),
		state:   readData,
		cstate:  ConnectedInitial,
		funcs:   cfg.Functions,
		lu:      luCursor{list: cfg.LUs},
	}
	n.opts = newOptionTable(n)
	for _, c := range []byte{TransmitBinary, EndOfRecord, TerminalType, SuppressGoAhead, TN3270E} {
		n.opts.allow(c, true, true)
	}
	n.opts.allow(Echo, false, true)
	n.opts.allow(StartTLS, cfg.StartTLS, false)
	return n
}

// Process runs every byte of buf through the state machine. A returned error
// ends the connection.
func (n *Negotiator) Process(buf []byte) error {
	for _, b := range buf {
		next, err := n.state(n, b)
		if err != nil {
			n.state = readData
			return err
		}
		n.state = next
	}
	return nil
}

// Sync records that the host sent urgent data: normal data is ignored until
// the data mark arrives.
func (n *Negotiator) Sync() {
	n.synced = true
}

// Disconnect drops all negotiated state.
func (n *Negotiator) Disconnect() {
	n.cstate = NotConnected
	n.opts.reset()
	n.state = readData
	n.ibuf = nil
	n.negotiated, n.bound, n.submode = false, false, SubmodeNone
}

func (n *Negotiator) State() ConnectionState { return n.cstate }

// Negotiated reports whether TN3270E functions have been agreed.
func (n *Negotiator) Negotiated() bool { return n.negotiated }

// Ready is true once the session can carry print data: either TN3270E is
// fully negotiated or plain TN3270 has been reached.
func (n *Negotiator) Ready() bool {
	return n.negotiated || n.cstate == Connected3270
}

func (n *Negotiator) Functions() Functions { return n.funcs }

func (n *Negotiator) Submode() Submode { return n.submode }

// SetSubmode records the TN3270E session type implied by the data the host
// is sending, and re-evaluates the connection state.
func (n *Negotiator) SetSubmode(m Submode) error {
	n.submode = m
	return n.checkIn3270()
}

func (n *Negotiator) Bound() bool { return n.bound }

func (n *Negotiator) SetBound(b bool) error {
	n.bound = b
	return n.checkIn3270()
}

// DeviceType is the device type the host confirmed in DEVICE-TYPE IS.
func (n *Negotiator) DeviceType() string { return n.deviceType }

// ConnectedLU is the LU the host connected us to, if any.
func (n *Negotiator) ConnectedLU() string { return n.connectedLU }

func (n *Negotiator) sendCommand(cmd ...byte) error {
	if traceEnabled(n.log) && len(cmd) == 2 {
		n.log.Debugf("SENT IAC %s %s", commandByte(cmd[0]), optionByte(cmd[1]))
	}
	_, err := n.ch.Write(append([]byte{IAC}, cmd...))
	return err
}

func (n *Negotiator) sendSubnegotiation(opt byte, data ...byte) error {
	buf := []byte{IAC, SB, opt}
	buf = appendEscaped(buf, data)
	buf = append(buf, IAC, SE)
	_, err := n.ch.Write(buf)
	return err
}

// appendEscaped appends src to dst, doubling every IAC.
func appendEscaped(dst, src []byte) []byte {
	for _, b := range src {
		if b == IAC {
			dst = append(dst, IAC)
		}
		dst = append(dst, b)
	}
	return dst
}

func (n *Negotiator) storeData(c byte) {
	if n.synced || n.ibuf == nil || n.cstate == ConnectedAnsi {
		return
	}
	n.ibuf.WriteByte(c)
}

type readerState func(*Negotiator, byte) (readerState, error)

func readData(n *Negotiator, c byte) (readerState, error) {
	if c == IAC {
		return readCommand, nil
	}
	n.storeData(c)
	return readData, nil
}

func readCommand(n *Negotiator, c byte) (readerState, error) {
	switch c {
	case IAC:
		n.storeData(c)
		return readData, nil
	case EOR:
		return readData, n.endOfRecord()
	case WILL, WONT, DO, DONT:
		return readOption(c), nil
	case SB:
		n.sb.Reset()
		return readSubnegotiation, nil
	case DM:
		n.log.Debug("RECV IAC DM")
		n.synced = false
		return readData, nil
	case AO:
		n.log.Debug("RECV IAC AO")
		if n.cstate.In3270() {
			return readData, n.handler.AbortOutput()
		}
		return readData, nil
	}
	n.log.Debugf("RECV IAC %s", commandByte(c))
	return readData, nil
}

func readOption(cmd byte) readerState {
	return func(n *Negotiator, c byte) (readerState, error) {
		n.log.Debugf("RECV IAC %s %s", commandByte(cmd), optionByte(c))
		return readData, n.receiveOption(cmd, c)
	}
}

func readSubnegotiation(n *Negotiator, c byte) (readerState, error) {
	if c == IAC {
		return readSubnegotiationIAC, nil
	}
	n.sb.WriteByte(c)
	return readSubnegotiation, nil
}

func readSubnegotiationIAC(n *Negotiator, c byte) (readerState, error) {
	switch c {
	case SE:
		return readData, n.subnegotiation(n.sb.Bytes())
	case IAC:
		n.sb.WriteByte(IAC)
	default:
		n.log.Warnf("RECV IAC %s inside sub-negotiation, ignored", commandByte(c))
	}
	return readSubnegotiation, nil
}

func (n *Negotiator) endOfRecord() error {
	if !n.cstate.In3270() || n.ibuf == nil {
		n.log.Warn("RECV IAC EOR when not in 3270 mode, ignored")
		if n.ibuf != nil {
			n.ibuf.Reset()
		}
		return nil
	}
	n.log.Tracef("RECV IAC EOR (%d bytes)", n.ibuf.Len())
	rec := append([]byte(nil), n.ibuf.Bytes()...)
	n.ibuf.Reset()
	return n.handler.Record(rec)
}

func (n *Negotiator) receiveOption(cmd, c byte) error {
	if cmd == DO && c == TimingMark {
		return n.sendCommand(WILL, TimingMark)
	}

	wasUs := n.opts.enabledForUs(c)
	if err := n.opts.receive(cmd, c); err != nil {
		return err
	}

	switch {
	case cmd == WILL && c == EndOfRecord && n.opts.enabledForThem(EndOfRecord):
		if err := n.opts.enableUs(EndOfRecord); err != nil {
			return err
		}
	case cmd == DO && c == StartTLS && !wasUs && n.opts.enabledForUs(StartTLS):
		n.log.Debug("SENT IAC SB START-TLS FOLLOWS IAC SE")
		if err := n.sendSubnegotiation(StartTLS, startTLSFollows); err != nil {
			return err
		}
		n.tlsArmed = true
	}
	return n.checkIn3270()
}

func (n *Negotiator) subnegotiation(sb []byte) error {
	if len(sb) == 0 {
		n.log.Debug("RECV IAC SB IAC SE")
		return nil
	}
	switch sb[0] {
	case TerminalType:
		return n.terminalTypeSubnegotiation(sb[1:])
	case TN3270E:
		return n.tn3270eSubnegotiation(sb[1:])
	case StartTLS:
		return n.startTLSSubnegotiation(sb[1:])
	}
	n.log.Debugf("RECV IAC SB %s %q IAC SE, ignored", optionByte(sb[0]), sb[1:])
	return nil
}

func (n *Negotiator) terminalTypeSubnegotiation(sb []byte) error {
	if len(sb) == 0 || sb[0] != ttypeSEND {
		n.log.Debugf("RECV IAC SB TERMINAL-TYPE %q IAC SE, ignored", sb)
		return nil
	}
	n.log.Debug("RECV IAC SB TERMINAL-TYPE SEND IAC SE")

	name := n.cfg.TermType
	switch {
	case n.cfg.Assoc != "":
		name += "@" + n.cfg.Assoc
	case n.lu.current() != "":
		n.connectedLU = n.lu.current()
		name += "@" + n.connectedLU
	default:
		n.connectedLU = ""
	}
	n.lu.next()

	n.log.Debugf("SENT IAC SB TERMINAL-TYPE IS %s IAC SE", name)
	return n.sendSubnegotiation(TerminalType, append([]byte{ttypeIS}, name...)...)
}

func (n *Negotiator) startTLSSubnegotiation(sb []byte) error {
	if len(sb) == 0 || sb[0] != startTLSFollows {
		return protocolError("starttls", "bad sub-negotiation %q", sb)
	}
	n.log.Debug("RECV IAC SB START-TLS FOLLOWS IAC SE")
	if !n.tlsArmed {
		return protocolError("starttls", "FOLLOWS received before negotiation")
	}
	n.tlsArmed = false
	return n.ch.StartTLS()
}

// checkIn3270 derives the connection state from the option table and the
// TN3270E sub-mode.
func (n *Negotiator) checkIn3270() error {
	var next ConnectionState
	switch {
	case n.opts.enabledForUs(TN3270E):
		next = ConnectedInitialE
		if n.negotiated {
			switch n.submode {
			case SubmodeNvt:
				next = ConnectedNvt
			case Submode3270:
				next = ConnectedTn3270e
			case SubmodeSscp:
				next = ConnectedSscp
			}
		}
	case n.opts.enabledForUs(TransmitBinary) && n.opts.enabledForUs(EndOfRecord) &&
		n.opts.enabledForUs(TerminalType) && n.opts.enabledForThem(TransmitBinary) &&
		n.opts.enabledForThem(EndOfRecord):
		next = Connected3270
	case n.cstate == ConnectedInitial:
		// nothing has happened yet
		return nil
	default:
		next = ConnectedAnsi
	}
	if next == n.cstate {
		return nil
	}

	if n.cstate.InE() != next.InE() {
		n.lu.reset()
	}
	if !next.InE() {
		n.resetTN3270E()
	}
	if next.Connected() && n.ibuf == nil {
		n.ibuf = bytes.NewBuffer(make([]byte, 0, 4096))
	}
	n.log.Debugf("now %s", next)
	n.cstate = next

	if n.cfg.Assoc != "" && !next.InE() {
		return protocolError("negotiate", "host does not support TN3270E, cannot associate with session %s", n.cfg.Assoc)
	}
	return nil
}

func (n *Negotiator) resetTN3270E() {
	n.negotiated, n.narrowed, n.bound = false, false, false
	n.submode = SubmodeNone
	n.funcs = n.cfg.Functions
}

// luCursor walks the list of LUs to try.
type luCursor struct {
	list []string
	i    int
}

func (l *luCursor) current() string {
	if l.i < len(l.list) {
		return l.list[l.i]
	}
	return ""
}

func (l *luCursor) next() {
	if l.i < len(l.list) {
		l.i++
	}
}

func (l *luCursor) exhausted() bool { return l.i >= len(l.list) }

func (l *luCursor) reset() { l.i = 0 }
