package datastream

import "strings"

// lineAssembler builds one printed line. A carriage return moves back to
// the first column, and a blank never overwrites what is already there, the
// way a printer overstrikes.
type lineAssembler struct {
	line []rune
	col  int
}

func (l *lineAssembler) put(r rune) {
	for len(l.line) <= l.col {
		l.line = append(l.line, ' ')
	}
	if r != ' ' || l.line[l.col] == ' ' {
		l.line[l.col] = r
	}
	l.col++
}

func (l *lineAssembler) pending() bool { return len(l.line) > 0 }

func (l *lineAssembler) take() string {
	s := strings.TrimRight(string(l.line), " ")
	l.line, l.col = l.line[:0], 0
	return s
}

func (d *Decoder) dumpUnformatted() error {
	var b strings.Builder
	var la lineAssembler
	visible := true
	endLine := func() {
		b.WriteString(la.take())
		b.WriteByte('\n')
	}

	for _, c := range d.page[:d.hwm] {
		switch c.kind {
		case cellNull:
			continue
		case cellChar:
			if visible {
				la.put(c.r)
			} else {
				la.put(' ')
			}
		case cellVisible, cellInvisible:
			visible = c.kind == cellVisible
			la.put(' ')
		case cellCR:
			la.col = 0
		case cellNL:
			endLine()
		case cellFF:
			if la.pending() {
				endLine()
			}
			b.WriteByte('\f')
		case cellEM:
			if la.pending() {
				endLine()
			}
			if d.opts.EMFlush {
				if err := d.out.WriteString(b.String()); err != nil {
					return err
				}
				b.Reset()
				if err := d.out.EndJob(); err != nil {
					return err
				}
			}
		}
		if la.col >= maxColumns {
			endLine()
		}
	}
	if la.pending() {
		endLine()
	}
	return d.out.WriteString(b.String())
}

// dumpFormatted prints the page as lines of the width the WCC selected.
// Trailing blanks are dropped, and a line nothing was written to is dropped
// entirely unless BlankLines is set.
func (d *Decoder) dumpFormatted() error {
	var b strings.Builder
	visible := true
	end := (d.hwm + d.lineLen - 1) / d.lineLen * d.lineLen
	if end > len(d.page) {
		end = len(d.page)
	}

	for start := 0; start < end; start += d.lineLen {
		stop := start + d.lineLen
		if stop > end {
			stop = end
		}
		var line strings.Builder
		written, afterFF := false, false
		for _, c := range d.page[start:stop] {
			switch c.kind {
			case cellNull:
				line.WriteByte(' ')
				continue
			case cellChar:
				if visible {
					line.WriteRune(c.r)
				} else {
					line.WriteByte(' ')
				}
			case cellVisible, cellInvisible:
				visible = c.kind == cellVisible
				line.WriteByte(' ')
			case cellFF:
				b.WriteString(strings.TrimRight(line.String(), " "))
				b.WriteByte('\f')
				line.Reset()
				afterFF = true
			default:
				line.WriteByte(' ')
			}
			written = true
		}
		text := strings.TrimRight(line.String(), " ")
		switch {
		case text != "":
			b.WriteString(text)
			b.WriteByte('\n')
		case written && !afterFF:
			b.WriteByte('\n')
		case !written && d.opts.BlankLines:
			b.WriteByte('\n')
		}
	}
	return d.out.WriteString(b.String())
}
