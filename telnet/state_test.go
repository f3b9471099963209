package telnet

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStateModes(t *testing.T) {
	tests := []struct {
		s                    ConnectionState
		connected, e, in3270 bool
	}{
		{NotConnected, false, false, false},
		{Pending, false, false, false},
		{ConnectedInitial, true, false, false},
		{ConnectedAnsi, true, false, false},
		{Connected3270, true, false, true},
		{ConnectedInitialE, true, true, true},
		{ConnectedNvt, true, true, true},
		{ConnectedSscp, true, true, true},
		{ConnectedTn3270e, true, true, true},
	}
	for _, test := range tests {
		assert.Equal(t, test.connected, test.s.Connected(), test.s.String())
		assert.Equal(t, test.e, test.s.InE(), test.s.String())
		assert.Equal(t, test.in3270, test.s.In3270(), test.s.String())
	}
}

func TestFunctions(t *testing.T) {
	f := DecodeFunctions([]byte{FuncResponses, FuncBindImage, 200})
	assert.Equal(t, []byte{FuncBindImage, FuncResponses}, f.Bytes())
	assert.Equal(t, "BIND-IMAGE RESPONSES", f.String())
	assert.True(t, f.SubsetOf(AllFunctions))
	assert.False(t, AllFunctions.SubsetOf(f))
	assert.Equal(t, "SYSREQ 9", DecodeFunctions([]byte{9, FuncSysreq}).String())

	parsed, ok := ParseFunctions([]string{"responses", "BIND-IMAGE"})
	assert.True(t, ok)
	assert.Equal(t, f, parsed)

	_, ok = ParseFunctions([]string{"RESPONSES", "BOGUS"})
	assert.False(t, ok)
}

func TestParseHeader(t *testing.T) {
	h, body, ok := ParseHeader([]byte{0x01, 0x00, 0x02, 0x12, 0x34, 0xc1})
	assert.True(t, ok)
	assert.Equal(t, Header{DataType: DtSCSData, ResponseFlag: RspAlwaysResponse, Seq: 0x1234}, h)
	assert.Equal(t, []byte{0xc1}, body)
	assert.Equal(t, "SCS-DATA req=0x00 rsp=0x02 seq=4660", h.String())

	_, _, ok = ParseHeader([]byte{0x01, 0x00})
	assert.False(t, ok)
	assert.Equal(t, "0x42", DataType(0x42).String())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("negotiating: %w", protocolError("tn3270e", "bad %s", "thing"))
	assert.Equal(t, ProtocolViolation, KindOf(err))
	assert.True(t, IsFatal(err))
	assert.Equal(t, "negotiating: tn3270e: protocol violation: bad thing", err.Error())

	decode := &Error{Kind: DecodeError, Op: "write"}
	assert.False(t, IsFatal(decode))
	assert.Equal(t, "write: decode error", decode.Error())

	assert.False(t, IsFatal(&Error{Kind: ResourceError, Op: "spool"}))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}
