package telnet

import "bytes"

func (n *Negotiator) tn3270eSubnegotiation(sb []byte) error {
	if len(sb) < 2 {
		n.log.Debugf("RECV IAC SB TN3270E %q IAC SE, ignored", sb)
		return nil
	}
	switch sb[0] {
	case tn3270eSend:
		n.log.Debugf("RECV IAC SB TN3270E SEND %s IAC SE", tn3270eByte(sb[1]))
		if sb[1] == tn3270eDeviceType {
			return n.sendDeviceTypeRequest()
		}
	case tn3270eDeviceType:
		switch sb[1] {
		case tn3270eIs:
			return n.deviceTypeIs(sb[2:])
		case tn3270eReject:
			return n.deviceTypeReject(sb[2:])
		}
	case tn3270eFunctions:
		switch sb[1] {
		case tn3270eRequest:
			return n.functionsRequest(DecodeFunctions(sb[2:]))
		case tn3270eIs:
			return n.functionsIs(DecodeFunctions(sb[2:]))
		}
	}
	n.log.Debugf("RECV IAC SB TN3270E %s %s IAC SE, ignored", tn3270eByte(sb[0]), tn3270eByte(sb[1]))
	return nil
}

func (n *Negotiator) sendDeviceTypeRequest() error {
	buf := []byte{tn3270eDeviceType, tn3270eRequest}
	buf = append(buf, n.cfg.TermType...)
	trace := "SENT IAC SB TN3270E DEVICE-TYPE REQUEST " + n.cfg.TermType
	if n.cfg.Assoc != "" {
		buf = append(buf, tn3270eAssociate)
		buf = append(buf, n.cfg.Assoc...)
		trace += " ASSOCIATE " + n.cfg.Assoc
	} else if lu := n.lu.current(); lu != "" {
		buf = append(buf, tn3270eConnect)
		buf = append(buf, lu...)
		trace += " CONNECT " + lu
	}
	n.log.Debug(trace + " IAC SE")
	return n.sendSubnegotiation(TN3270E, buf...)
}

func (n *Negotiator) deviceTypeIs(sb []byte) error {
	name, lu := sb, []byte(nil)
	if i := bytes.IndexByte(sb, tn3270eConnect); i >= 0 {
		name, lu = sb[:i], sb[i+1:]
	}
	if len(name) == 0 {
		return protocolError("tn3270e", "DEVICE-TYPE IS with insufficient terminal name")
	}
	n.deviceType, n.connectedLU = string(name), string(lu)
	n.log.Debugf("RECV IAC SB TN3270E DEVICE-TYPE IS %s CONNECT %s IAC SE", name, lu)
	return n.sendFunctions(tn3270eRequest, n.funcs)
}

func (n *Negotiator) deviceTypeReject(sb []byte) error {
	reason := reasonByte(reasonUnknownError)
	if len(sb) >= 2 && sb[0] == tn3270eReason {
		reason = reasonByte(sb[1])
	}
	n.log.Debugf("RECV IAC SB TN3270E DEVICE-TYPE REJECT REASON %s IAC SE", reason)

	if n.cfg.Assoc != "" {
		return protocolError("tn3270e", "cannot associate with session %s: %s", n.cfg.Assoc, reason)
	}
	tried := n.lu.current()
	n.lu.next()
	switch {
	case !n.lu.exhausted():
		return n.sendDeviceTypeRequest()
	case len(n.cfg.LUs) > 0:
		return protocolError("tn3270e", "cannot connect to LU %s: %s", tried, reason)
	default:
		return protocolError("tn3270e", "device type rejected: %s", reason)
	}
}

func (n *Negotiator) sendFunctions(op byte, f Functions) error {
	n.log.Debugf("SENT IAC SB TN3270E FUNCTIONS %s %s IAC SE", tn3270eByte(op), f)
	return n.sendSubnegotiation(TN3270E, append([]byte{tn3270eFunctions, op}, f.Bytes()...)...)
}

// functionsRequest handles the host's counter-proposal. A proposal within
// what we asked for is accepted as is. A proposal with functions we never
// offered gets one narrowed REQUEST back; a second such proposal ends
// TN3270E.
func (n *Negotiator) functionsRequest(offered Functions) error {
	n.log.Debugf("RECV IAC SB TN3270E FUNCTIONS REQUEST %s IAC SE", offered)
	if offered.SubsetOf(n.funcs) {
		n.funcs = offered
		if err := n.sendFunctions(tn3270eIs, n.funcs); err != nil {
			return err
		}
		n.negotiated = true
		return n.checkIn3270()
	}
	// at most two rounds: our REQUEST, then one narrowed REQUEST
	if n.narrowed {
		return n.abandonTN3270E()
	}
	n.narrowed = true
	n.funcs &= offered
	return n.sendFunctions(tn3270eRequest, n.funcs)
}

// functionsIs handles the host's answer to our REQUEST.
func (n *Negotiator) functionsIs(agreed Functions) error {
	n.log.Debugf("RECV IAC SB TN3270E FUNCTIONS IS %s IAC SE", agreed)
	if agreed != n.funcs {
		if !agreed.SubsetOf(n.funcs) {
			return n.abandonTN3270E()
		}
		n.funcs = agreed
	}
	n.negotiated = true
	return n.checkIn3270()
}

func (n *Negotiator) abandonTN3270E() error {
	n.log.Warn("host illegally added TN3270E function(s), aborting TN3270E")
	if err := n.opts.disableUs(TN3270E); err != nil {
		return err
	}
	return n.checkIn3270()
}
