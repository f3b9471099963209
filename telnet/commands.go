package telnet

import "fmt"

type commandByte byte

func (c commandByte) String() string {
	str, ok := map[commandByte]string{
		AO:   "AO",
		AYT:  "AYT",
		BRK:  "BRK",
		DM:   "DM",
		DO:   "DO",
		DONT: "DONT",
		EC:   "EC",
		EL:   "EL",
		EOR:  "EOR",
		GA:   "GA",
		IAC:  "IAC",
		IP:   "IP",
		NOP:  "NOP",
		SB:   "SB",
		SE:   "SE",
		WILL: "WILL",
		WONT: "WONT",
	}[c]
	if ok {
		return str
	}
	return fmt.Sprintf("%d", c)
}

type optionByte byte

func (c optionByte) String() string {
	str, ok := map[optionByte]string{
		Echo:            "ECHO",
		EndOfRecord:     "END-OF-RECORD",
		StartTLS:        "START-TLS",
		SuppressGoAhead: "SUPPRESS-GO-AHEAD",
		TerminalType:    "TERMINAL-TYPE",
		TimingMark:      "TIMING-MARK",
		TN3270E:         "TN3270E",
		TransmitBinary:  "TRANSMIT-BINARY",
	}[c]
	if ok {
		return str
	}
	return fmt.Sprintf("%d", c)
}

type tn3270eByte byte

func (c tn3270eByte) String() string {
	str, ok := map[tn3270eByte]string{
		tn3270eAssociate:  "ASSOCIATE",
		tn3270eConnect:    "CONNECT",
		tn3270eDeviceType: "DEVICE-TYPE",
		tn3270eFunctions:  "FUNCTIONS",
		tn3270eIs:         "IS",
		tn3270eReason:     "REASON",
		tn3270eReject:     "REJECT",
		tn3270eRequest:    "REQUEST",
		tn3270eSend:       "SEND",
	}[c]
	if ok {
		return str
	}
	return fmt.Sprintf("%d", c)
}

type reasonByte byte

func (c reasonByte) String() string {
	str, ok := map[reasonByte]string{
		reasonConnPartner:    "CONN-PARTNER",
		reasonDeviceInUse:    "DEVICE-IN-USE",
		reasonInvAssociate:   "INV-ASSOCIATE",
		reasonInvName:        "INV-NAME",
		reasonInvDeviceType:  "INV-DEVICE-TYPE",
		reasonTypeNameError:  "TYPE-NAME-ERROR",
		reasonUnknownError:   "UNKNOWN-ERROR",
		reasonUnsupportedReq: "UNSUPPORTED-REQ",
	}[c]
	if ok {
		return str
	}
	return fmt.Sprintf("%d", c)
}
