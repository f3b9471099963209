package telnet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	bytes.Buffer
	tlsCalls int
	tlsErr   error
}

func (c *fakeChannel) StartTLS() error {
	c.tlsCalls++
	return c.tlsErr
}

type recordHandler struct {
	records [][]byte
	aborts  int
}

func (h *recordHandler) Record(rec []byte) error {
	h.records = append(h.records, rec)
	return nil
}

func (h *recordHandler) AbortOutput() error {
	h.aborts++
	return nil
}

type negotiatorTest struct {
	n  *Negotiator
	ch *fakeChannel
	h  *recordHandler
}

func newNegotiatorTest(cfg Config) *negotiatorTest {
	ch := &fakeChannel{}
	h := &recordHandler{}
	return &negotiatorTest{n: NewNegotiator(ch, cfg, h, nil), ch: ch, h: h}
}

// send feeds b to the negotiator and returns what it wrote back.
func (nt *negotiatorTest) send(t *testing.T, b ...[]byte) []byte {
	t.Helper()
	nt.ch.Reset()
	require.NoError(t, nt.n.Process(join(b...)))
	if nt.ch.Len() == 0 {
		return nil
	}
	return append([]byte{}, nt.ch.Bytes()...)
}

func join(parts ...[]byte) []byte {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func cmd(c, opt byte) []byte { return []byte{IAC, c, opt} }

func sub(opt byte, data ...byte) []byte {
	return join([]byte{IAC, SB, opt}, data, []byte{IAC, SE})
}

func str(s string) []byte { return []byte(s) }

func TestOptionReplies(t *testing.T) {
	tests := []struct {
		in, out []byte
	}{
		{cmd(WILL, TransmitBinary), cmd(DO, TransmitBinary)},
		{cmd(WILL, Echo), cmd(DO, Echo)},
		{cmd(WILL, SuppressGoAhead), cmd(DO, SuppressGoAhead)},
		{cmd(WILL, TN3270E), cmd(DO, TN3270E)},
		{cmd(WILL, 99), cmd(DONT, 99)},
		{cmd(DO, TerminalType), cmd(WILL, TerminalType)},
		{cmd(DO, Echo), cmd(WONT, Echo)},
		{cmd(DO, StartTLS), cmd(WONT, StartTLS)},
		{cmd(DO, 99), cmd(WONT, 99)},
		{cmd(DONT, TransmitBinary), nil},
		{cmd(WONT, TransmitBinary), nil},
		{cmd(WILL, EndOfRecord), join(cmd(DO, EndOfRecord), cmd(WILL, EndOfRecord))},
	}
	for _, test := range tests {
		nt := newNegotiatorTest(Config{})
		assert.Equal(t, test.out, nt.send(t, test.in), "%q", test.in)
	}
}

func TestTimingMarkIsNeverActive(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	assert.Equal(t, cmd(WILL, TimingMark), nt.send(t, cmd(DO, TimingMark)))
	assert.False(t, nt.n.opts.enabledForUs(TimingMark))
	assert.Equal(t, cmd(WILL, TimingMark), nt.send(t, cmd(DO, TimingMark)))
}

func TestSplitCommand(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	assert.Empty(t, nt.send(t, []byte{IAC}))
	assert.Empty(t, nt.send(t, []byte{DO}))
	assert.Equal(t, cmd(WILL, TerminalType), nt.send(t, []byte{TerminalType}))
}

func negotiate3270(t *testing.T, nt *negotiatorTest) {
	nt.send(t, cmd(DO, TerminalType), cmd(DO, EndOfRecord), cmd(WILL, EndOfRecord),
		cmd(DO, TransmitBinary), cmd(WILL, TransmitBinary))
}

func TestLegacy3270Negotiation(t *testing.T) {
	nt := newNegotiatorTest(Config{})

	assert.Equal(t, cmd(WILL, TerminalType), nt.send(t, cmd(DO, TerminalType)))
	assert.Equal(t, ConnectedInitial, nt.n.State())
	assert.Equal(t, sub(TerminalType, join([]byte{ttypeIS}, str("IBM-3287-1"))...),
		nt.send(t, sub(TerminalType, ttypeSEND)))
	assert.Equal(t, cmd(WILL, EndOfRecord), nt.send(t, cmd(DO, EndOfRecord)))
	assert.Equal(t, cmd(DO, EndOfRecord), nt.send(t, cmd(WILL, EndOfRecord)))
	assert.Equal(t, cmd(WILL, TransmitBinary), nt.send(t, cmd(DO, TransmitBinary)))
	assert.Equal(t, ConnectedInitial, nt.n.State())
	assert.Equal(t, cmd(DO, TransmitBinary), nt.send(t, cmd(WILL, TransmitBinary)))
	assert.Equal(t, Connected3270, nt.n.State())
	assert.True(t, nt.n.Ready())

	nt.send(t, []byte{0xf5, 0xc3, IAC, IAC, 0x40}, []byte{IAC, EOR})
	assert.Equal(t, [][]byte{{0xf5, 0xc3, 0xff, 0x40}}, nt.h.records)
}

func TestRecordsNeedConnectedMode(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	nt.send(t, str("hello"), []byte{IAC, EOR})
	assert.Empty(t, nt.h.records)
}

func TestAnsiModeDropsData(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	negotiate3270(t, nt)

	assert.Equal(t, cmd(DONT, TransmitBinary), nt.send(t, cmd(WONT, TransmitBinary)))
	assert.Equal(t, ConnectedAnsi, nt.n.State())
	nt.send(t, str("hello"), []byte{IAC, EOR})
	assert.Empty(t, nt.h.records)
}

func TestSyncDropsDataUntilDataMark(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	negotiate3270(t, nt)

	nt.n.Sync()
	nt.send(t, str("junk"), []byte{IAC, DM}, str("ok"), []byte{IAC, EOR})
	assert.Equal(t, [][]byte{str("ok")}, nt.h.records)
}

func TestAbortOutput(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	nt.send(t, []byte{IAC, AO})
	assert.Equal(t, 0, nt.h.aborts)

	negotiate3270(t, nt)
	nt.send(t, []byte{IAC, AO}, []byte{IAC, NOP}, []byte{IAC, GA})
	assert.Equal(t, 1, nt.h.aborts)
}

func TestTerminalTypeSuffix(t *testing.T) {
	nt := newNegotiatorTest(Config{LUs: []string{"LU1"}})
	nt.send(t, cmd(DO, TerminalType))
	assert.Equal(t, sub(TerminalType, join([]byte{ttypeIS}, str("IBM-3287-1@LU1"))...),
		nt.send(t, sub(TerminalType, ttypeSEND)))
	assert.Equal(t, "LU1", nt.n.ConnectedLU())
	assert.Equal(t, sub(TerminalType, join([]byte{ttypeIS}, str("IBM-3287-1"))...),
		nt.send(t, sub(TerminalType, ttypeSEND)))

	nt = newNegotiatorTest(Config{TermType: "IBM-3287-2", Assoc: "DISP1"})
	nt.send(t, cmd(DO, TerminalType))
	assert.Equal(t, sub(TerminalType, join([]byte{ttypeIS}, str("IBM-3287-2@DISP1"))...),
		nt.send(t, sub(TerminalType, ttypeSEND)))
}

func TestAssociateRequiresTN3270E(t *testing.T) {
	nt := newNegotiatorTest(Config{Assoc: "DISP1"})
	nt.send(t, cmd(DO, TerminalType), cmd(DO, EndOfRecord), cmd(WILL, EndOfRecord), cmd(DO, TransmitBinary))
	err := nt.n.Process(cmd(WILL, TransmitBinary))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))
	assert.True(t, IsFatal(err))
}

var testFunctions = Functions(1<<FuncBindImage | 1<<FuncResponses | 1<<FuncSCSCtlCodes)

func deviceTypeRequest(suffixOp byte, suffix string) []byte {
	return sub(TN3270E, join([]byte{tn3270eDeviceType, tn3270eRequest}, str("IBM-3287-1"), []byte{suffixOp}, str(suffix))...)
}

func TestTN3270ENegotiation(t *testing.T) {
	nt := newNegotiatorTest(Config{LUs: []string{"LU1", "LU2"}, Functions: testFunctions})

	assert.Equal(t, cmd(WILL, TN3270E), nt.send(t, cmd(DO, TN3270E)))
	assert.Equal(t, ConnectedInitialE, nt.n.State())
	assert.False(t, nt.n.Ready())

	assert.Equal(t, deviceTypeRequest(tn3270eConnect, "LU1"),
		nt.send(t, sub(TN3270E, tn3270eSend, tn3270eDeviceType)))
	assert.Equal(t, deviceTypeRequest(tn3270eConnect, "LU2"),
		nt.send(t, sub(TN3270E, tn3270eDeviceType, tn3270eReject, tn3270eReason, reasonInvName)))

	isLU2 := join([]byte{tn3270eDeviceType, tn3270eIs}, str("IBM-3287-1"), []byte{tn3270eConnect}, str("LU2"))
	assert.Equal(t, sub(TN3270E, tn3270eFunctions, tn3270eRequest, FuncBindImage, FuncResponses, FuncSCSCtlCodes),
		nt.send(t, sub(TN3270E, isLU2...)))
	assert.Equal(t, "IBM-3287-1", nt.n.DeviceType())
	assert.Equal(t, "LU2", nt.n.ConnectedLU())

	assert.Empty(t, nt.send(t, sub(TN3270E, tn3270eFunctions, tn3270eIs, FuncBindImage, FuncResponses, FuncSCSCtlCodes)))
	assert.True(t, nt.n.Negotiated())
	assert.True(t, nt.n.Ready())
	assert.Equal(t, testFunctions, nt.n.Functions())
	assert.Equal(t, ConnectedInitialE, nt.n.State())

	require.NoError(t, nt.n.SetSubmode(Submode3270))
	assert.Equal(t, ConnectedTn3270e, nt.n.State())
	require.NoError(t, nt.n.SetSubmode(SubmodeSscp))
	assert.Equal(t, ConnectedSscp, nt.n.State())

	nt.send(t, []byte{0x01, 0, 0, 0, 1, 0xc1}, []byte{IAC, EOR})
	assert.Equal(t, [][]byte{{0x01, 0, 0, 0, 1, 0xc1}}, nt.h.records)
}

func tn3270eUpTo(t *testing.T, nt *negotiatorTest) {
	nt.send(t, cmd(DO, TN3270E), sub(TN3270E, tn3270eSend, tn3270eDeviceType),
		sub(TN3270E, join([]byte{tn3270eDeviceType, tn3270eIs}, str("IBM-3287-1"))...))
}

func TestDeviceTypeRejectAdvancesOnce(t *testing.T) {
	nt := newNegotiatorTest(Config{LUs: []string{"A", "B"}})
	nt.send(t, cmd(DO, TN3270E), sub(TN3270E, tn3270eSend, tn3270eDeviceType))
	reject := sub(TN3270E, tn3270eDeviceType, tn3270eReject, tn3270eReason, reasonDeviceInUse)

	assert.Equal(t, deviceTypeRequest(tn3270eConnect, "B"), nt.send(t, reject))
	for i := 0; i < 2; i++ {
		err := nt.n.Process(reject)
		require.Error(t, err)
		assert.Equal(t, ProtocolViolation, KindOf(err))
	}
}

func TestDeviceTypeRejectWithoutLUs(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	nt.send(t, cmd(DO, TN3270E))
	err := nt.n.Process(sub(TN3270E, tn3270eDeviceType, tn3270eReject, tn3270eReason, reasonInvDeviceType))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device type rejected")
}

func TestDeviceTypeRejectWithAssociate(t *testing.T) {
	nt := newNegotiatorTest(Config{Assoc: "DISP1", LUs: []string{"A"}})
	nt.send(t, cmd(DO, TN3270E))
	assert.Equal(t, deviceTypeRequest(tn3270eAssociate, "DISP1"),
		nt.send(t, sub(TN3270E, tn3270eSend, tn3270eDeviceType)))
	err := nt.n.Process(sub(TN3270E, tn3270eDeviceType, tn3270eReject, tn3270eReason, reasonInvAssociate))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))
}

func TestDeviceTypeIsNeedsName(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	nt.send(t, cmd(DO, TN3270E))
	err := nt.n.Process(sub(TN3270E, join([]byte{tn3270eDeviceType, tn3270eIs, tn3270eConnect}, str("LU1"))...))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))
}

func TestFunctionsRequestSubsetAccepted(t *testing.T) {
	nt := newNegotiatorTest(Config{Functions: testFunctions})
	tn3270eUpTo(t, nt)

	assert.Equal(t, sub(TN3270E, tn3270eFunctions, tn3270eIs, FuncResponses),
		nt.send(t, sub(TN3270E, tn3270eFunctions, tn3270eRequest, FuncResponses)))
	assert.True(t, nt.n.Negotiated())
	assert.Equal(t, Functions(1<<FuncResponses), nt.n.Functions())
}

func TestFunctionsIsNarrowed(t *testing.T) {
	nt := newNegotiatorTest(Config{Functions: testFunctions})
	tn3270eUpTo(t, nt)

	assert.Empty(t, nt.send(t, sub(TN3270E, tn3270eFunctions, tn3270eIs, FuncBindImage)))
	assert.True(t, nt.n.Negotiated())
	assert.Equal(t, Functions(1<<FuncBindImage), nt.n.Functions())
}

func TestFunctionsRequestWithExtrasNarrowsThenAborts(t *testing.T) {
	nt := newNegotiatorTest(Config{Functions: testFunctions})
	tn3270eUpTo(t, nt)
	extra := sub(TN3270E, tn3270eFunctions, tn3270eRequest, FuncBindImage, FuncResponses, FuncSysreq)

	assert.Equal(t, sub(TN3270E, tn3270eFunctions, tn3270eRequest, FuncBindImage, FuncResponses), nt.send(t, extra))
	assert.False(t, nt.n.Negotiated())
	assert.Equal(t, ConnectedInitialE, nt.n.State())

	assert.Equal(t, cmd(WONT, TN3270E), nt.send(t, extra))
	assert.False(t, nt.n.Negotiated())
	assert.False(t, nt.n.State().InE())
	assert.False(t, nt.n.Functions().Has(FuncSysreq))
}

func TestFunctionsIsWithExtrasAborts(t *testing.T) {
	nt := newNegotiatorTest(Config{Functions: testFunctions})
	negotiate3270(t, nt)
	tn3270eUpTo(t, nt)

	assert.Equal(t, cmd(WONT, TN3270E), nt.send(t, sub(TN3270E, tn3270eFunctions, tn3270eIs, FuncResponses, FuncSysreq)))
	assert.Equal(t, Connected3270, nt.n.State())
	assert.False(t, nt.n.Negotiated())
}

func TestFunctionsAgreedSetIsSubsetOfBothOffers(t *testing.T) {
	offers := []Functions{0, 1 << FuncSysreq, AllFunctions, 1<<FuncResponses | 1<<FuncSysreq}
	for _, offer := range offers {
		nt := newNegotiatorTest(Config{Functions: testFunctions})
		tn3270eUpTo(t, nt)
		req := sub(TN3270E, join([]byte{tn3270eFunctions, tn3270eRequest}, offer.Bytes())...)
		for round := 0; round < 2 && nt.n.State().InE() && !nt.n.Negotiated(); round++ {
			nt.send(t, req)
		}
		if nt.n.Negotiated() {
			assert.True(t, nt.n.Functions().SubsetOf(testFunctions), offer.String())
			assert.True(t, nt.n.Functions().SubsetOf(offer), offer.String())
		} else {
			assert.False(t, nt.n.State().InE(), offer.String())
		}
	}
}

func TestStartTLS(t *testing.T) {
	nt := newNegotiatorTest(Config{StartTLS: true})
	assert.Equal(t, join(cmd(WILL, StartTLS), sub(StartTLS, startTLSFollows)), nt.send(t, cmd(DO, StartTLS)))
	assert.Empty(t, nt.send(t, sub(StartTLS, startTLSFollows)))
	assert.Equal(t, 1, nt.ch.tlsCalls)

	err := nt.n.Process(sub(StartTLS, startTLSFollows))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))
	assert.Equal(t, 1, nt.ch.tlsCalls)
}

func TestStartTLSFailures(t *testing.T) {
	nt := newNegotiatorTest(Config{StartTLS: true})
	err := nt.n.Process(sub(StartTLS, startTLSFollows))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))

	nt = newNegotiatorTest(Config{StartTLS: true})
	nt.send(t, cmd(DO, StartTLS))
	err = nt.n.Process(sub(StartTLS, 7))
	require.Error(t, err)
	assert.Equal(t, ProtocolViolation, KindOf(err))

	nt = newNegotiatorTest(Config{StartTLS: true})
	nt.ch.tlsErr = transportError("tls handshake", errors.New("boom"))
	nt.send(t, cmd(DO, StartTLS))
	err = nt.n.Process(sub(StartTLS, startTLSFollows))
	require.Error(t, err)
	assert.Equal(t, TransportError, KindOf(err))
}

func TestDisconnectResets(t *testing.T) {
	nt := newNegotiatorTest(Config{})
	negotiate3270(t, nt)
	nt.n.Disconnect()
	assert.Equal(t, NotConnected, nt.n.State())
	assert.False(t, nt.n.opts.enabledForThem(TransmitBinary))
	nt.send(t, str("x"), []byte{IAC, EOR})
	assert.Empty(t, nt.h.records)
}
