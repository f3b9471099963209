// Package datastream interprets 3270 write commands for a printer: it keeps
// a page buffer and prints it as text when the host starts the printer or a
// job ends.
package datastream

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/stesla/tn3287/charset"
	"github.com/stesla/tn3287/telnet"
)

var (
	// ErrBadCommand is a command or order the printer cannot carry out.
	ErrBadCommand = errors.New("bad command")
	// ErrBadAddress is a buffer address outside the page buffer.
	ErrBadAddress = errors.New("bad address")
)

// DefaultBufferSize is 27 lines of 132 columns.
const DefaultBufferSize = 3564

// maxColumns is where unformatted output wraps.
const maxColumns = 132

// Output receives printable text and job boundaries.
type Output interface {
	WriteString(s string) error
	EndJob() error
}

// Replier sends an inbound 3270 record, such as a query reply, to the host.
type Replier interface {
	Reply(payload []byte) error
}

type Options struct {
	// BufferSize defaults to DefaultBufferSize.
	BufferSize int
	// BlankLines prints lines of a formatted page that were never written
	// as empty lines instead of dropping them.
	BlankLines bool
	// EMFlush ends the print job at every EM order in unformatted mode.
	EMFlush bool
}

type cellKind uint8

const (
	cellNull cellKind = iota
	cellChar
	cellVisible
	cellInvisible
	cellFF
	cellCR
	cellNL
	cellEM
)

type cell struct {
	kind cellKind
	r    rune
}

// Decoder holds the page buffer of one session.
type Decoder struct {
	out   Output
	tr    *charset.Translator
	reply Replier
	opts  Options
	log   log.Ext1FieldLogger

	page    []cell
	baddr   int
	hwm     int
	lineLen int
	dirty   bool

	// character sets selected by SA and by the current field's SFE; SA
	// wins unless it is the default
	saCharset    byte
	fieldCharset byte
}

func New(out Output, tr *charset.Translator, opts Options, l log.Ext1FieldLogger) *Decoder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Decoder{
		out:  out,
		tr:   tr,
		opts: opts,
		log:  l,
		page: make([]cell, opts.BufferSize),
	}
}

// SetReplier sets where query replies go. Without one, queries are ignored.
func (d *Decoder) SetReplier(r Replier) { d.reply = r }

// Pending reports whether the page holds anything not yet printed.
func (d *Decoder) Pending() bool { return d.dirty }

// Process interprets one record. The returned error, if any, is a
// telnet.DecodeError wrapping ErrBadCommand or ErrBadAddress, or an output
// failure.
func (d *Decoder) Process(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	c := commandByte(buf[0])
	switch buf[0] {
	case cmdEAU, snaEAU:
		d.log.Trace(c)
		return d.erase()
	case cmdEW, snaEW, cmdEWA, snaEWA:
		d.log.Trace(c)
		if err := d.erase(); err != nil {
			return err
		}
		return d.write(buf[1:])
	case cmdW, snaW:
		d.log.Trace(c)
		return d.write(buf[1:])
	case cmdRB, snaRB, cmdRM, snaRM, cmdRMA, snaRMA:
		d.log.Tracef("%s not supported", c)
		return badCommand("%s", c)
	case cmdWSF, snaWSF:
		d.log.Trace(c)
		return d.structuredFields(buf[1:])
	case cmdNOP:
		d.log.Trace(c)
		return nil
	}
	d.log.Warnf("unknown 3270 command 0x%02x", buf[0])
	return badCommand("unknown command 0x%02x", buf[0])
}

// Flush prints whatever the page holds and clears it.
func (d *Decoder) Flush() error {
	if !d.dirty {
		return nil
	}
	var err error
	if d.lineLen == 0 {
		err = d.dumpUnformatted()
	} else {
		err = d.dumpFormatted()
	}
	d.clear()
	return err
}

func (d *Decoder) erase() error {
	err := d.Flush()
	d.clear()
	return err
}

func (d *Decoder) clear() {
	for i := range d.page {
		d.page[i] = cell{}
	}
	d.baddr, d.hwm, d.dirty = 0, 0, false
	d.saCharset, d.fieldCharset = 0, 0
}

func (d *Decoder) write(p []byte) error {
	if len(p) == 0 {
		return badCommand("write without WCC")
	}
	wcc := p[0]
	d.lineLen = lineLengths[(wcc&wccLineLength)>>4]
	d.saCharset = 0
	d.traceWCC(wcc)

	for i := 1; i < len(p); i++ {
		switch c := p[i]; c {
		case orderSF:
			if i+1 >= len(p) {
				return truncated("SF")
			}
			i++
			d.log.Tracef("StartField(0x%02x)", p[i])
			d.fieldCharset = 0
			d.startField(p[i])
		case orderSFE:
			fa, cs, n, err := d.extendedAttributes("StartFieldExtended", p[i+1:])
			if err != nil {
				return err
			}
			i += n
			d.fieldCharset = cs
			d.startField(fa)
		case orderSBA:
			addr, err := d.address("SetBufferAddress", p[i+1:])
			if err != nil {
				return err
			}
			i += 2
			if d.lineLen == 0 {
				d.padTo(addr)
			}
			d.baddr = addr
		case orderIC:
			d.log.Tracef("InsertCursor(%d)", d.baddr)
		case orderPT:
			d.log.Trace("ProgramTab")
		case orderRA:
			addr, err := d.address("RepeatToAddress", p[i+1:])
			if err != nil {
				return err
			}
			i += 2
			ge := false
			if i+1 < len(p) && p[i+1] == orderGE {
				ge = true
				i++
			}
			if i+1 >= len(p) {
				return truncated("RA")
			}
			i++
			r := d.char(p[i])
			if ge {
				r = d.tr.GE(p[i])
			}
			d.log.Tracef("RepeatToAddress(%d, %q)", addr, r)
			for {
				d.put(cell{cellChar, r})
				if d.baddr == addr {
					break
				}
			}
		case orderEUA:
			addr, err := d.address("EraseUnprotectedToAddress", p[i+1:])
			if err != nil {
				return err
			}
			i += 2
			d.log.Tracef("EraseUnprotectedToAddress(%d)", addr)
		case orderGE:
			if i+1 >= len(p) {
				return truncated("GE")
			}
			i++
			d.log.Tracef("GraphicEscape(0x%02x)", p[i])
			d.put(cell{cellChar, d.tr.GE(p[i])})
		case orderMF:
			_, cs, n, err := d.extendedAttributes("ModifyField", p[i+1:])
			if err != nil {
				return err
			}
			i += n
			if cs != 0 {
				d.fieldCharset = cs
			}
		case orderSA:
			if i+2 >= len(p) {
				return truncated("SA")
			}
			d.setAttribute(p[i+1], p[i+2])
			i += 2
		case fcFF:
			d.put(cell{kind: cellFF})
		case fcCR:
			d.put(cell{kind: cellCR})
		case fcNL:
			d.put(cell{kind: cellNL})
		case fcEM:
			d.put(cell{kind: cellEM})
		case fcNULL:
			d.put(cell{kind: cellNull})
		case fcDUP:
			d.put(cell{cellChar, '*'})
		case fcFM:
			d.put(cell{cellChar, ';'})
		case fcSUB, fcEO:
			d.put(cell{cellChar, ' '})
		default:
			if c < 0x40 {
				d.log.Warnf("illegal character 0x%02x at %d", c, d.baddr)
				d.put(cell{cellChar, ' '})
				break
			}
			d.put(cell{cellChar, d.char(c)})
		}
	}

	if wcc&wccStartPrinter != 0 {
		return d.Flush()
	}
	return nil
}

func (d *Decoder) traceWCC(wcc byte) {
	flags := ""
	for _, f := range []struct {
		bit  byte
		name string
	}{
		{wccReset, " reset"},
		{wccStartPrinter, " start-printer"},
		{wccSoundAlarm, " alarm"},
		{wccRestore, " restore"},
		{wccResetMDT, " reset-mdt"},
	} {
		if wcc&f.bit != 0 {
			flags += f.name
		}
	}
	if d.lineLen == 0 {
		flags += " unformatted"
	} else {
		flags += fmt.Sprintf(" %d-column", d.lineLen)
	}
	d.log.Tracef("WCC(0x%02x%s)", wcc, flags)
}

func (d *Decoder) put(c cell) {
	d.page[d.baddr] = c
	d.baddr = (d.baddr + 1) % len(d.page)
	if d.baddr == 0 {
		d.hwm = len(d.page)
	} else if d.baddr > d.hwm {
		d.hwm = d.baddr
	}
	d.dirty = true
}

func (d *Decoder) startField(fa byte) {
	if fa&faInvisible == faInvisible {
		d.put(cell{kind: cellInvisible})
	} else {
		d.put(cell{kind: cellVisible})
	}
}

// padTo fills unwritten positions up to addr with blanks, so an unformatted
// SBA moves the print position forward.
func (d *Decoder) padTo(addr int) {
	for a := d.baddr; a < addr; a++ {
		if d.page[a].kind == cellNull {
			d.page[a] = cell{cellChar, ' '}
		}
	}
	if addr > d.hwm {
		d.hwm = addr
		d.dirty = true
	}
}

// address decodes the two address bytes at the start of p.
func (d *Decoder) address(order string, p []byte) (int, error) {
	if len(p) < 2 {
		return 0, truncated(order)
	}
	addr := DecodeAddress(p[0], p[1])
	if addr >= len(d.page) {
		d.log.Warnf("%s(%d) outside a %d-byte buffer", order, addr, len(d.page))
		d.baddr = 0
		return 0, &telnet.Error{Kind: telnet.DecodeError, Op: order, Err: fmt.Errorf("%w %d", ErrBadAddress, addr)}
	}
	d.log.Tracef("%s(%d)", order, addr)
	return addr, nil
}

// extendedAttributes parses the count and attribute pairs of SFE and MF. It
// returns the 3270 field attribute and character set, if any, and the bytes
// consumed.
func (d *Decoder) extendedAttributes(order string, p []byte) (fa, cs byte, n int, err error) {
	if len(p) < 1 {
		return 0, 0, 0, truncated(order)
	}
	count := int(p[0])
	if len(p) < 1+2*count {
		return 0, 0, 0, truncated(order)
	}
	for j := 0; j < count; j++ {
		typ, val := p[1+2*j], p[2+2*j]
		d.log.Tracef("%s(%s=0x%02x)", order, attributeByte(typ), val)
		switch typ {
		case xa3270:
			fa = val
		case xaCharset:
			cs = val
		}
	}
	return fa, cs, 1 + 2*count, nil
}

// setAttribute changes the defaults for the characters that follow. Only
// the character set changes what is printed.
func (d *Decoder) setAttribute(typ, val byte) {
	d.log.Tracef("SetAttribute(%s=0x%02x)", attributeByte(typ), val)
	switch typ {
	case xaAll:
		d.saCharset = 0
	case xaCharset:
		d.saCharset = val
	}
}

// char translates a data byte in the character set in effect.
func (d *Decoder) char(b byte) rune {
	cs := d.saCharset
	if cs == 0 {
		cs = d.fieldCharset
	}
	if cs == csGE {
		return d.tr.GE(b)
	}
	return d.tr.Rune(b)
}

func badCommand(format string, args ...any) error {
	return &telnet.Error{Kind: telnet.DecodeError, Op: "3270", Err: fmt.Errorf("%w: "+format, append([]any{ErrBadCommand}, args...)...)}
}

func truncated(order string) error {
	return badCommand("truncated %s order", order)
}
