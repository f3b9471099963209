package telnet

// Core Telnet Constants
const (
	// RFC 885
	EOR = iota + 239
	// RFC 854
	SE
	NOP
	DM
	BRK
	IP
	AO
	AYT
	EC
	EL
	GA
	SB
	WILL
	WONT
	DO
	DONT
	IAC
)

// Telnet Options
const (
	TransmitBinary  = 0  // RFC 856
	Echo            = 1  // RFC 857
	SuppressGoAhead = 3  // RFC 858
	TimingMark      = 6  // RFC 860
	TerminalType    = 24 // RFC 1091
	EndOfRecord     = 25 // RFC 885
	TN3270E         = 40 // RFC 2355
	StartTLS        = 46 // draft-altman-telnet-starttls
)

// TERMINAL-TYPE and STARTTLS qualifiers
const (
	ttypeIS   = 0
	ttypeSEND = 1

	startTLSFollows = 1
)

// TN3270E sub-negotiation operations (RFC 2355)
const (
	tn3270eAssociate  = 0
	tn3270eConnect    = 1
	tn3270eDeviceType = 2
	tn3270eFunctions  = 3
	tn3270eIs         = 4
	tn3270eReason     = 5
	tn3270eReject     = 6
	tn3270eRequest    = 7
	tn3270eSend       = 8
)

// TN3270E REJECT reason codes
const (
	reasonConnPartner = iota
	reasonDeviceInUse
	reasonInvAssociate
	reasonInvName
	reasonInvDeviceType
	reasonTypeNameError
	reasonUnknownError
	reasonUnsupportedReq
)

// DefaultTermType is what a 3287 printer session reports to the host.
const DefaultTermType = "IBM-3287-1"
