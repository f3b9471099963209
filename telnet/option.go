package telnet

type commandSender interface {
	sendCommand(...byte) error
}

// optionTable holds the negotiation state of every option code for both
// sides of the connection. An option only counts as enabled once it reaches
// qYes, which requires a completed WILL/DO exchange.
type optionTable struct {
	cs   commandSender
	opts [256]option
}

type option struct {
	allowUs, allowThem bool
	us, them           qState
}

func newOptionTable(cs commandSender) *optionTable {
	return &optionTable{cs: cs}
}

func (t *optionTable) allow(c byte, us, them bool) {
	t.opts[c].allowUs, t.opts[c].allowThem = us, them
}

func (t *optionTable) enabledForUs(c byte) bool   { return t.opts[c].us == qYes }
func (t *optionTable) enabledForThem(c byte) bool { return t.opts[c].them == qYes }

func (t *optionTable) reset() {
	for i := range t.opts {
		t.opts[i].us, t.opts[i].them = qNo, qNo
	}
}

// receive applies a WILL/WONT/DO/DONT from the peer and sends whatever
// answer RFC 1143 calls for.
func (t *optionTable) receive(cmd, c byte) error {
	o := &t.opts[c]
	var r qReply
	switch cmd {
	case DO:
		o.us, r = qReceiveEnable(o.us, o.allowUs)
		return t.reply(r, WILL, WONT, c)
	case DONT:
		o.us, r = qReceiveDisable(o.us)
		return t.reply(r, WILL, WONT, c)
	case WILL:
		o.them, r = qReceiveEnable(o.them, o.allowThem)
		return t.reply(r, DO, DONT, c)
	case WONT:
		o.them, r = qReceiveDisable(o.them)
		return t.reply(r, DO, DONT, c)
	}
	return nil
}

// enableUs offers the option on our side (WILL) unless already offered.
func (t *optionTable) enableUs(c byte) error {
	var r qReply
	t.opts[c].us, r = qAskEnable(t.opts[c].us)
	return t.reply(r, WILL, WONT, c)
}

// disableUs withdraws the option on our side (WONT) without waiting for the
// peer, for when we are walking away from it.
func (t *optionTable) disableUs(c byte) error {
	if t.opts[c].us == qNo {
		return nil
	}
	t.opts[c].us = qNo
	return t.cs.sendCommand(WONT, c)
}

func (t *optionTable) reply(r qReply, accept, reject, c byte) error {
	switch r {
	case qSendAccept:
		return t.cs.sendCommand(accept, c)
	case qSendReject:
		return t.cs.sendCommand(reject, c)
	}
	return nil
}

type qState int

const (
	qNo qState = iota
	qYes
	qWantNoEmpty
	qWantNoOpposite
	qWantYesEmpty
	qWantYesOpposite
)

func (q qState) String() string {
	switch q {
	case qNo:
		return "No"
	case qYes:
		return "Yes"
	case qWantNoEmpty:
		return "WantNo:Empty"
	case qWantNoOpposite:
		return "WantNo:Opposite"
	case qWantYesEmpty:
		return "WantYes:Empty"
	case qWantYesOpposite:
		return "WantYes:Opposite"
	default:
		panic("unknown state")
	}
}

type qReply int

const (
	qSendNothing qReply = iota
	qSendAccept
	qSendReject
)

// qReceiveEnable handles a WILL (for them) or DO (for us).
func qReceiveEnable(q qState, allowed bool) (qState, qReply) {
	switch q {
	case qNo:
		if allowed {
			return qYes, qSendAccept
		}
		return qNo, qSendReject
	case qWantNoEmpty:
		return qNo, qSendNothing
	case qWantNoOpposite, qWantYesEmpty:
		return qYes, qSendNothing
	case qWantYesOpposite:
		return qWantNoEmpty, qSendReject
	}
	return q, qSendNothing
}

// qReceiveDisable handles a WONT (for them) or DONT (for us).
func qReceiveDisable(q qState) (qState, qReply) {
	switch q {
	case qYes:
		return qNo, qSendReject
	case qWantNoOpposite:
		return qWantYesEmpty, qSendAccept
	case qWantNoEmpty, qWantYesEmpty, qWantYesOpposite:
		return qNo, qSendNothing
	}
	return q, qSendNothing
}

// qAskEnable is our own request to turn an option on.
func qAskEnable(q qState) (qState, qReply) {
	switch q {
	case qNo:
		return qWantYesEmpty, qSendAccept
	case qWantNoEmpty:
		return qWantNoOpposite, qSendNothing
	case qWantYesOpposite:
		return qWantYesEmpty, qSendNothing
	}
	return q, qSendNothing
}
