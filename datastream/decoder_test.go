package datastream

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/telnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

type fakeOutput struct {
	cur  strings.Builder
	jobs []string
}

func (o *fakeOutput) WriteString(s string) error {
	o.cur.WriteString(s)
	return nil
}

func (o *fakeOutput) EndJob() error {
	o.jobs = append(o.jobs, o.cur.String())
	o.cur.Reset()
	return nil
}

type fakeReplier [][]byte

func (r *fakeReplier) Reply(payload []byte) error {
	*r = append(*r, payload)
	return nil
}

func newTestDecoder(t *testing.T, opts Options) (*Decoder, *fakeOutput) {
	tr, err := charset.Lookup(charset.DefaultCodePage)
	require.NoError(t, err)
	l, _ := test.NewNullLogger()
	out := &fakeOutput{}
	return New(out, tr, opts, l), out
}

func ebc(s string) []byte {
	var buf []byte
	for _, r := range s {
		b, ok := charmap.CodePage037.EncodeRune(r)
		if !ok {
			panic("no EBCDIC for " + string(r))
		}
		buf = append(buf, b)
	}
	return buf
}

func rec(parts ...any) []byte {
	var buf []byte
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			buf = append(buf, byte(v))
		case byte:
			buf = append(buf, v)
		case []byte:
			buf = append(buf, v...)
		case string:
			buf = append(buf, ebc(v)...)
		}
	}
	return buf
}

func sba(a int) []byte {
	c1, c2 := EncodeAddress12(a)
	return []byte{orderSBA, c1, c2}
}

func TestAddressRoundTrip(t *testing.T) {
	for a := 0; a < 4096; a++ {
		c1, c2 := EncodeAddress12(a)
		require.Equal(t, a, DecodeAddress(c1, c2), "12-bit %d", a)
	}
	for a := 0; a < 16384; a++ {
		c1, c2 := EncodeAddress14(a)
		require.Equal(t, a, DecodeAddress(c1, c2), "14-bit %d", a)
	}
}

func TestUnformattedHello(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(snaW, 0x48, sba(0), "HELLO")))
	assert.Equal(t, "HELLO\n", out.cur.String())
	assert.False(t, d.Pending())
}

func TestFormattedHelloPrintsOnFlush(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(snaW, 0x30, sba(0), "HELLO")))
	assert.Empty(t, out.cur.String())
	assert.True(t, d.Pending())

	require.NoError(t, d.Flush())
	assert.Equal(t, "HELLO\n", out.cur.String())
	assert.False(t, d.Pending())
}

func TestInvisibleFieldPrintsBlank(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdEW, 0x38,
		sba(0), orderSF, 0x60, "AB",
		sba(10), orderSF, 0x0c, "CD",
		sba(20), orderSF, 0x60, "EF")))
	assert.Equal(t, " AB"+strings.Repeat(" ", 18)+"EF\n", out.cur.String())
}

func TestInvisibleFieldFromSFE(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x18,
		sba(0), orderSFE, 2, xaHighlight, 0xf1, xa3270, 0x4c, "SECRET",
		sba(8), orderSFE, 1, xa3270, 0x40, "OPEN")))
	assert.Equal(t, strings.Repeat(" ", 9)+"OPEN\n", out.cur.String())
}

func TestBadAddress(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	c1, c2 := EncodeAddress14(4000)
	err := d.Process(rec(cmdW, 0x48, sba(3), "A", orderSBA, c1, c2, "B"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadAddress))
	assert.Equal(t, telnet.DecodeError, telnet.KindOf(err))
	assert.False(t, telnet.IsFatal(err))
	assert.Equal(t, 0, d.baddr)
	assert.Empty(t, out.cur.String())

	require.NoError(t, d.Flush())
	assert.Equal(t, "   A\n", out.cur.String())
}

func TestBadCommands(t *testing.T) {
	for _, c := range []byte{cmdRB, snaRB, cmdRM, snaRM, cmdRMA, snaRMA, 0x99} {
		d, _ := newTestDecoder(t, Options{})
		err := d.Process([]byte{c})
		require.Error(t, err, "0x%02x", c)
		assert.True(t, errors.Is(err, ErrBadCommand), "0x%02x", c)
	}

	d, _ := newTestDecoder(t, Options{})
	assert.NoError(t, d.Process([]byte{cmdNOP}))
	assert.True(t, errors.Is(d.Process([]byte{cmdW}), ErrBadCommand))
	assert.True(t, errors.Is(d.Process([]byte{cmdW, 0x40, orderSBA, 0x40}), ErrBadCommand))
}

func TestOverstrike(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x48, "ABC", fcCR, "   D", fcCR, "_")))
	assert.Equal(t, "_BCD\n", out.cur.String())
}

func TestUnformattedControls(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x48, "A", fcNL, "B", fcFF, "C", fcNULL, 0x01, "D", fcDUP, fcFM)))
	assert.Equal(t, "A\nB\n\fC D*;\n", out.cur.String())
}

func TestUnformattedPadding(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x48, sba(0), "A", sba(5), "B")))
	assert.Equal(t, "A    B\n", out.cur.String())
}

func TestUnformattedWrap(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x48, strings.Repeat("X", 140))))
	assert.Equal(t, strings.Repeat("X", 132)+"\n"+strings.Repeat("X", 8)+"\n", out.cur.String())
}

func TestEMFlush(t *testing.T) {
	d, out := newTestDecoder(t, Options{EMFlush: true})
	require.NoError(t, d.Process(rec(cmdW, 0x48, "A", fcEM, "B")))
	assert.Equal(t, []string{"A\n"}, out.jobs)
	assert.Equal(t, "B\n", out.cur.String())

	d, out = newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x48, "A", fcEM, "B")))
	assert.Empty(t, out.jobs)
	assert.Equal(t, "A\nB\n", out.cur.String())
}

func TestRepeatToAddress(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	c1, c2 := EncodeAddress12(45)
	require.NoError(t, d.Process(rec(cmdW, 0x18, sba(0), orderRA, sba(5)[1:], "X",
		sba(40), orderRA, c1, c2, orderGE, 0xa2)))
	assert.Equal(t, "XXXXX\n─────\n", out.cur.String())
}

func TestSetAttributeCharset(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x08,
		orderSA, xaCharset, csGE, "E", orderSA, xaCharset, 0x00, "E",
		orderSA, xaCharset, csGE, "E", orderSA, xaAll, 0x00, "E")))
	assert.Equal(t, "┌E┌E\n", out.cur.String())

	out.cur.Reset()
	require.NoError(t, d.Process(rec(cmdW, 0x40, orderSA, xaCharset, csGE)))
	require.NoError(t, d.Process(rec(cmdW, 0x08, "E")))
	assert.Equal(t, "E\n", out.cur.String())
}

func TestFieldCharset(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x08, orderSFE, 1, xaCharset, csGE, "E", orderSF, 0x60, "E")))
	assert.Equal(t, " ┌ E\n", out.cur.String())

	out.cur.Reset()
	require.NoError(t, d.Process(rec(cmdW, 0x08, orderSFE, 1, xaCharset, csGE, "E",
		orderSA, xaCharset, 0xf0, "E", orderSA, xaAll, 0x00, "E")))
	assert.Equal(t, " ┌E┌\n", out.cur.String())
}

func TestFormattedFormFeed(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x18, sba(0), "AB", fcFF, sba(40), "CD")))
	assert.Equal(t, "AB\fCD\n", out.cur.String())
}

func TestBlankLines(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x18, sba(80), "X")))
	assert.Equal(t, "X\n", out.cur.String())

	d, out = newTestDecoder(t, Options{BlankLines: true})
	require.NoError(t, d.Process(rec(cmdW, 0x18, sba(80), "X")))
	assert.Equal(t, "\n\nX\n", out.cur.String())
}

func TestBufferWraps(t *testing.T) {
	d, out := newTestDecoder(t, Options{BufferSize: 80})
	require.NoError(t, d.Process(rec(cmdW, 0x18, sba(70), "ABCDEFGHIJKL")))
	assert.Equal(t, "KL\n"+strings.Repeat(" ", 30)+"ABCDEFGHIJ\n", out.cur.String())
}

func TestEraseWritePrintsPreviousPage(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	require.NoError(t, d.Process(rec(cmdW, 0x40, "A")))
	assert.Empty(t, out.cur.String())
	require.NoError(t, d.Process(rec(snaEW, 0x48, "B")))
	assert.Equal(t, "A\nB\n", out.cur.String())

	require.NoError(t, d.Process(rec(cmdW, 0x40, "C")))
	require.NoError(t, d.Process([]byte{snaEAU}))
	assert.Equal(t, "A\nB\nC\n", out.cur.String())
	assert.False(t, d.Pending())
}

func TestStructuredFields(t *testing.T) {
	d, out := newTestDecoder(t, Options{})
	var replies fakeReplier
	d.SetReplier(&replies)

	require.NoError(t, d.Process([]byte{snaWSF, 0x00, 0x05, sfReadPartition, 0xff, sfReadPartQuery}))
	require.Len(t, replies, 1)
	assert.Equal(t, []byte{aidQueryReply, 0x00, 0x06, 0x81, qrSummary, qrSummary, qrUsableArea}, replies[0][:7])

	write := rec(0x00, 0x00, sfOutbound3270DS, 0x00, cmdW, 0x48, "SF")
	write[1] = byte(len(write))
	require.NoError(t, d.Process(append([]byte{cmdWSF}, write...)))
	assert.Equal(t, "SF\n", out.cur.String())

	assert.NoError(t, d.Process([]byte{cmdWSF, 0x00, 0x04, 0x99, 0x00}))
	assert.True(t, errors.Is(d.Process([]byte{cmdWSF, 0x00, 0x09, 0x40}), ErrBadCommand))
	assert.True(t, errors.Is(d.Process([]byte{cmdWSF, 0x00, 0x05, sfOutbound3270DS, 0x00, cmdRB}), ErrBadCommand))
}
