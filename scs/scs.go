// Package scs interprets the SNA Character Stream sent to a 3287 in SCS-DATA
// records, against a line printer with margins, tab stops and a page length.
package scs

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/telnet"
)

// ErrBadOrder is an order whose parameters make no sense.
var ErrBadOrder = errors.New("bad SCS order")

const (
	MaxMPP = 132
	MaxMPL = 108
)

// Orders.
const (
	codeVCS = 0x04
	codeHT  = 0x05
	codeGE  = 0x08
	codeVT  = 0x0b
	codeFF  = 0x0c
	codeCR  = 0x0d
	codeSO  = 0x0e
	codeSI  = 0x0f
	codeENP = 0x14
	codeNL  = 0x15
	codeBS  = 0x16
	codeIRS = 0x1e
	codeINP = 0x24
	codeLF  = 0x25
	codeSA  = 0x28
	codeSET = 0x2b
	codeBEL = 0x2f
	codeTRN = 0x35
)

// SA types.
const (
	saReset     = 0x00
	saHighlight = 0x41
	saCharset   = 0x42
	saGrid      = 0xc2
)

// SET types.
const (
	setSHF = 0xc1
	setSVF = 0xc2
	setSLD = 0xc6
)

// csDBCS is the character set value that starts double-byte text.
const csDBCS = 0xf8

// dbcsRight fills the second column of a double-byte character.
const dbcsRight rune = -1

// Output receives printed lines. Transparent bytes go out untranslated.
type Output interface {
	WriteString(s string) error
	WriteTransparent(p []byte) error
}

type Options struct {
	// FFThru passes form feeds to the output instead of padding to the
	// margins of an SVF page.
	FFThru bool
	// FFSkip drops a form feed when nothing was printed since the last one.
	FFSkip bool
}

type trnRun struct {
	col  int
	data []byte
}

// Decoder is the printer. Its state persists from record to record.
type Decoder struct {
	out  Output
	tr   *charset.Translator
	opts Options
	log  log.Ext1FieldLogger

	mpp, lm, rm int
	mpl, tm, bm int
	htabs       []int
	vtabs       []int
	svf         bool

	pp, line int
	text     [MaxMPP + 2]rune
	trn      []trnRun
	printed  bool
	dbcs     bool
	tail     []byte
}

func New(out Output, tr *charset.Translator, opts Options, l log.Ext1FieldLogger) *Decoder {
	d := &Decoder{out: out, tr: tr, opts: opts, log: l}
	d.Reset()
	return d
}

// Reset puts the printer back to its power-on format and drops any
// unfinished order. Whatever is on the current line is lost.
func (d *Decoder) Reset() {
	d.defaultHorizontal()
	d.defaultVertical()
	d.svf = false
	d.pp, d.line = 1, 1
	d.text = [MaxMPP + 2]rune{}
	d.trn = nil
	d.printed = false
	d.dbcs = false
	d.tail = nil
}

func (d *Decoder) defaultHorizontal() {
	d.mpp, d.lm, d.rm = MaxMPP, 1, MaxMPP
	d.htabs = nil
}

func (d *Decoder) defaultVertical() {
	d.mpl, d.tm, d.bm = 1, 1, 1
	d.vtabs = nil
}

// Pending reports whether the current line holds anything.
func (d *Decoder) Pending() bool {
	return d.lastColumn() > 0 || len(d.trn) > 0
}

// Flush prints the current line, if it holds anything.
func (d *Decoder) Flush() error {
	if !d.Pending() {
		return nil
	}
	return d.dumpLine(true, false)
}

type orderFunc func(d *Decoder, p []byte) (int, error)

var orders = map[byte]orderFunc{
	codeBS:  (*Decoder).backspace,
	codeBEL: traceOnly("BEL"),
	codeCR:  (*Decoder).carriageReturn,
	codeENP: traceOnly("ENP"),
	codeINP: traceOnly("INP"),
	codeFF:  (*Decoder).formFeedOrder,
	codeGE:  (*Decoder).graphicEscape,
	codeHT:  (*Decoder).horizontalTab,
	codeIRS: (*Decoder).newLine,
	codeNL:  (*Decoder).newLine,
	codeLF:  (*Decoder).lineFeed,
	codeVCS: (*Decoder).verticalChannelSelect,
	codeVT:  (*Decoder).verticalTab,
	codeSA:  (*Decoder).setAttribute,
	codeSET: (*Decoder).set,
	codeSO:  (*Decoder).shiftOut,
	codeSI:  (*Decoder).shiftIn,
	codeTRN: (*Decoder).transparent,
}

// Process interprets one SCS record. An order cut off by the end of the
// record is kept and finished by the next one. A malformed order is skipped;
// the first such error is returned after the rest of the record has been
// printed.
func (d *Decoder) Process(buf []byte) error {
	p := buf
	if len(d.tail) > 0 {
		p = append(d.tail, buf...)
		d.tail = nil
	}

	var first error
	for len(p) > 0 {
		n, err := d.step(p)
		if err != nil {
			d.log.Warn(err)
			if telnet.KindOf(err) != telnet.DecodeError {
				return err
			}
			if first == nil {
				first = err
			}
		}
		if n == 0 {
			d.tail = append([]byte(nil), p...)
			d.log.Tracef("SCS order 0x%02x continues in next record", p[0])
			break
		}
		p = p[n:]
	}
	return first
}

// step carries out the order or character at the start of p and returns the
// bytes it used, or zero if p ends before the order does.
func (d *Decoder) step(p []byte) (int, error) {
	if f, ok := orders[p[0]]; ok {
		return f(d, p)
	}
	if d.dbcs && p[0] >= 0x40 {
		return d.doubleByte(p)
	}
	if p[0] < 0x40 {
		d.log.Tracef("SCS control 0x%02x printed as blank", p[0])
	}
	return 1, d.addChar(d.tr.Rune(p[0]))
}

func traceOnly(name string) orderFunc {
	return func(d *Decoder, p []byte) (int, error) {
		d.log.Trace(name)
		return 1, nil
	}
}

func (d *Decoder) backspace(p []byte) (int, error) {
	n := 1
	if d.dbcs {
		n = 2
	}
	d.pp -= n
	if d.pp < 1 {
		d.pp = 1
	}
	d.log.Tracef("BS -> %d", d.pp)
	return 1, nil
}

func (d *Decoder) carriageReturn(p []byte) (int, error) {
	d.log.Trace("CR")
	d.pp = d.lm
	return 1, nil
}

func (d *Decoder) formFeedOrder(p []byte) (int, error) {
	d.log.Trace("FF")
	if d.Pending() {
		if err := d.dumpLine(true, false); err != nil {
			return 1, err
		}
	}
	d.pp = d.lm
	return 1, d.formFeed()
}

func (d *Decoder) graphicEscape(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	d.log.Tracef("GE(0x%02x)", p[1])
	return 2, d.addChar(' ')
}

func (d *Decoder) horizontalTab(p []byte) (int, error) {
	for _, t := range d.htabs {
		if t > d.pp {
			d.log.Tracef("HT -> %d", t)
			d.pp = t
			return 1, nil
		}
	}
	d.log.Trace("HT, no stop")
	return 1, d.addChar(' ')
}

func (d *Decoder) newLine(p []byte) (int, error) {
	d.log.Tracef("NL(0x%02x)", p[0])
	return 1, d.dumpLine(true, true)
}

func (d *Decoder) lineFeed(p []byte) (int, error) {
	d.log.Trace("LF")
	return 1, d.dumpLine(false, true)
}

func (d *Decoder) verticalChannelSelect(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	d.log.Tracef("VCS(0x%02x)", p[1])
	return 2, d.dumpLine(false, true)
}

func (d *Decoder) verticalTab(p []byte) (int, error) {
	if d.Pending() {
		if err := d.dumpLine(true, true); err != nil {
			return 1, err
		}
	}
	for _, t := range d.vtabs {
		if t > d.line {
			d.log.Tracef("VT -> line %d", t)
			return 1, d.padLines(t)
		}
	}
	d.log.Trace("VT, no stop")
	return 1, d.padLines(d.line + 1)
}

func (d *Decoder) setAttribute(p []byte) (int, error) {
	if len(p) < 3 {
		return 0, nil
	}
	switch p[1] {
	case saReset:
		d.log.Trace("SA(reset)")
		d.dbcs = false
	case saHighlight:
		d.log.Tracef("SA(highlight=0x%02x)", p[2])
	case saCharset:
		d.log.Tracef("SA(charset=0x%02x)", p[2])
		d.dbcs = p[2] == csDBCS
	case saGrid:
		d.log.Tracef("SA(grid=0x%02x)", p[2])
	default:
		d.log.Tracef("SA(0x%02x=0x%02x) ignored", p[1], p[2])
	}
	return 3, nil
}

func (d *Decoder) set(p []byte) (int, error) {
	if len(p) < 3 {
		return 0, nil
	}
	count := int(p[2])
	if count == 0 {
		return 3, badOrder("SET(0x%02x) with zero length", p[1])
	}
	if len(p) < 2+count {
		return 0, nil
	}
	args := p[3 : 2+count]
	switch p[1] {
	case setSHF:
		d.setHorizontal(args)
	case setSVF:
		d.setVertical(args)
	case setSLD:
		d.log.Tracef("SLD(%v) ignored", args)
	default:
		d.log.Tracef("SET(0x%02x, %v) ignored", p[1], args)
	}
	return 2 + count, nil
}

func (d *Decoder) setHorizontal(args []byte) {
	d.defaultHorizontal()
	if len(args) > 0 && args[0] != 0 {
		d.mpp = clamp(int(args[0]), MaxMPP)
		d.rm = d.mpp
	}
	if len(args) > 1 && args[1] != 0 && int(args[1]) <= d.mpp {
		d.lm = int(args[1])
	}
	if len(args) > 2 && args[2] != 0 && int(args[2]) <= d.mpp && int(args[2]) >= d.lm {
		d.rm = int(args[2])
	}
	d.htabs = stops(args, 3, d.mpp)
	if d.pp < d.lm || d.pp > d.mpp {
		d.pp = d.lm
	}
	d.log.Tracef("SHF(mpp=%d lm=%d rm=%d tabs=%v)", d.mpp, d.lm, d.rm, d.htabs)
}

func (d *Decoder) setVertical(args []byte) {
	d.defaultVertical()
	if len(args) > 0 && args[0] != 0 {
		d.mpl = clamp(int(args[0]), MaxMPL)
		d.bm = d.mpl
	}
	if len(args) > 1 && args[1] != 0 && int(args[1]) <= d.mpl {
		d.tm = int(args[1])
	}
	if len(args) > 2 && args[2] != 0 && int(args[2]) <= d.mpl && int(args[2]) >= d.tm {
		d.bm = int(args[2])
	}
	d.vtabs = stops(args, 3, d.mpl)
	d.svf = true
	d.log.Tracef("SVF(mpl=%d tm=%d bm=%d tabs=%v)", d.mpl, d.tm, d.bm, d.vtabs)
}

func (d *Decoder) shiftOut(p []byte) (int, error) {
	d.log.Trace("SO")
	d.dbcs = true
	return 1, nil
}

func (d *Decoder) shiftIn(p []byte) (int, error) {
	d.log.Trace("SI")
	d.dbcs = false
	return 1, nil
}

func (d *Decoder) transparent(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	n := int(p[1])
	if len(p) < 2+n {
		return 0, nil
	}
	d.log.Tracef("TRN(%d bytes at %d)", n, d.pp)
	d.trn = append(d.trn, trnRun{col: d.pp, data: append([]byte(nil), p[2:2+n]...)})
	return 2 + n, nil
}

func (d *Decoder) doubleByte(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	r, ok := d.tr.DBCS(p[0], p[1])
	if !ok {
		d.log.Tracef("DBCS 0x%02x%02x printed as blanks", p[0], p[1])
		if err := d.addChar(' '); err != nil {
			return 2, err
		}
		return 2, d.addChar(' ')
	}
	if d.pp+1 > d.mpp {
		if err := d.dumpLine(true, true); err != nil {
			return 2, err
		}
	}
	d.text[d.pp] = r
	d.pp++
	return 2, d.addChar(dbcsRight)
}

// addChar puts r at the print position and wraps to the left margin of the
// next line when the position passes the maximum.
func (d *Decoder) addChar(r rune) error {
	d.text[d.pp] = r
	d.pp++
	if d.pp > d.mpp {
		return d.dumpLine(true, true)
	}
	return nil
}

func (d *Decoder) lastColumn() int {
	for c := d.mpp; c > 0; c-- {
		if r := d.text[c]; r != 0 && r != ' ' {
			return c
		}
	}
	return 0
}

// dumpLine prints the current line with its transparent runs at the columns
// they were received at. The newline is written if the line held anything or
// forceNL is set.
func (d *Decoder) dumpLine(resetPP, forceNL bool) error {
	last := d.lastColumn()
	visible := last > 0 || len(d.trn) > 0

	var b strings.Builder
	emitTrn := func(col int, after bool) error {
		for _, t := range d.trn {
			if (!after && t.col == col) || (after && t.col > col) {
				if err := d.out.WriteString(b.String()); err != nil {
					return err
				}
				b.Reset()
				if err := d.out.WriteTransparent(t.data); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for c := 1; c <= last; c++ {
		if err := emitTrn(c, false); err != nil {
			return err
		}
		switch r := d.text[c]; r {
		case 0:
			b.WriteByte(' ')
		case dbcsRight:
		default:
			b.WriteRune(r)
		}
	}
	if err := emitTrn(last, true); err != nil {
		return err
	}
	if visible || forceNL {
		b.WriteByte('\n')
		d.line++
	}
	if visible {
		d.printed = true
	}

	d.text = [MaxMPP + 2]rune{}
	d.trn = nil
	if resetPP {
		d.pp = d.lm
	}
	return d.out.WriteString(b.String())
}

// formFeed ejects the page. Without an SVF page to pad, or with FFThru, the
// form feed itself goes to the output.
func (d *Decoder) formFeed() error {
	if d.opts.FFSkip && !d.printed {
		d.log.Trace("empty page, form feed skipped")
		return nil
	}
	d.printed = false
	if d.opts.FFThru || !d.svf {
		d.line = 1
		return d.out.WriteString("\f")
	}
	var b strings.Builder
	for ; d.line <= d.bm; d.line++ {
		b.WriteByte('\n')
	}
	for d.line = 1; d.line < d.tm; d.line++ {
		b.WriteByte('\n')
	}
	return d.out.WriteString(b.String())
}

// padLines writes blank lines until the next line to print is to.
func (d *Decoder) padLines(to int) error {
	if to <= d.line {
		return nil
	}
	err := d.out.WriteString(strings.Repeat("\n", to-d.line))
	d.line = to
	return err
}

func stops(args []byte, from, max int) []int {
	var tabs []int
	for i := from; i < len(args); i++ {
		if t := int(args[i]); t > 0 && t <= max {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func badOrder(format string, args ...any) error {
	return &telnet.Error{Kind: telnet.DecodeError, Op: "SCS", Err: fmt.Errorf("%w: "+format, append([]any{ErrBadOrder}, args...)...)}
}
