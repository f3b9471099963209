package telnet

import (
	"strconv"
	"strings"
)

// ConnectionState is ordered: every state from ConnectedInitial on is
// connected, and every state from ConnectedInitialE on is a TN3270E state.
type ConnectionState int

const (
	NotConnected ConnectionState = iota
	Pending
	ConnectedInitial
	ConnectedAnsi
	Connected3270
	ConnectedInitialE
	ConnectedNvt
	ConnectedSscp
	ConnectedTn3270e
)

func (s ConnectionState) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Pending:
		return "Pending"
	case ConnectedInitial:
		return "ConnectedInitial"
	case ConnectedAnsi:
		return "ConnectedAnsi"
	case Connected3270:
		return "Connected3270"
	case ConnectedInitialE:
		return "ConnectedInitialE"
	case ConnectedNvt:
		return "ConnectedNvt"
	case ConnectedSscp:
		return "ConnectedSscp"
	case ConnectedTn3270e:
		return "ConnectedTn3270e"
	default:
		panic("unknown state")
	}
}

func (s ConnectionState) Connected() bool { return s >= ConnectedInitial }

// InE reports whether the TN3270E option is in effect.
func (s ConnectionState) InE() bool { return s >= ConnectedInitialE }

// In3270 reports whether EOR-delimited records are being exchanged, either
// in plain TN3270 or in any TN3270E sub-mode.
func (s ConnectionState) In3270() bool { return s == Connected3270 || s.InE() }

// Submode is the TN3270E session type, selected by the data types the host
// sends once functions are agreed.
type Submode int

const (
	SubmodeNone Submode = iota
	Submode3270
	SubmodeNvt
	SubmodeSscp
)

func (m Submode) String() string {
	switch m {
	case SubmodeNone:
		return "none"
	case Submode3270:
		return "3270"
	case SubmodeNvt:
		return "nvt"
	case SubmodeSscp:
		return "sscp-lu"
	default:
		panic("unknown submode")
	}
}

// Functions is a set of TN3270E functions, one bit per function code.
type Functions uint32

const (
	FuncBindImage     = 0
	FuncDataStreamCtl = 1
	FuncResponses     = 2
	FuncSCSCtlCodes   = 3
	FuncSysreq        = 4
)

const AllFunctions = Functions(1<<FuncBindImage | 1<<FuncDataStreamCtl | 1<<FuncResponses | 1<<FuncSCSCtlCodes | 1<<FuncSysreq)

var functionNames = map[byte]string{
	FuncBindImage:     "BIND-IMAGE",
	FuncDataStreamCtl: "DATA-STREAM-CTL",
	FuncResponses:     "RESPONSES",
	FuncSCSCtlCodes:   "SCS-CTL-CODES",
	FuncSysreq:        "SYSREQ",
}

func (f Functions) Has(code byte) bool { return code < 32 && f&(1<<code) != 0 }

// SubsetOf reports whether every function in f is also in g.
func (f Functions) SubsetOf(g Functions) bool { return f&^g == 0 }

// Bytes encodes the set as a sub-negotiation function list.
func (f Functions) Bytes() []byte {
	var buf []byte
	for code := byte(0); code < 32; code++ {
		if f.Has(code) {
			buf = append(buf, code)
		}
	}
	return buf
}

func (f Functions) String() string {
	var names []string
	for _, code := range f.Bytes() {
		if name, ok := functionNames[code]; ok {
			names = append(names, name)
		} else {
			names = append(names, strconv.Itoa(int(code)))
		}
	}
	return strings.Join(names, " ")
}

// DecodeFunctions parses a sub-negotiation function list. Codes outside the
// representable range are ignored.
func DecodeFunctions(buf []byte) (f Functions) {
	for _, code := range buf {
		if code < 32 {
			f |= 1 << code
		}
	}
	return
}

// ParseFunctions maps function names (as printed by String) to a set.
func ParseFunctions(names []string) (Functions, bool) {
	var f Functions
	for _, name := range names {
		found := false
		for code, n := range functionNames {
			if strings.EqualFold(n, name) {
				f |= 1 << code
				found = true
			}
		}
		if !found {
			return 0, false
		}
	}
	return f, true
}
