package datastream

import "encoding/binary"

// Structured field IDs.
const (
	sfReadPartition   = 0x01
	sfEraseReset      = 0x03
	sfOutbound3270DS  = 0x40
	sfReadPartQuery   = 0x02
	sfReadPartQueryLL = 0x03
)

// Query reply codes.
const (
	aidQueryReply = 0x88
	qrSummary     = 0x80
	qrUsableArea  = 0x81
)

func (d *Decoder) structuredFields(buf []byte) error {
	for len(buf) > 0 {
		if len(buf) < 3 {
			return badCommand("structured field too short")
		}
		n := int(binary.BigEndian.Uint16(buf))
		if n == 0 {
			n = len(buf)
		}
		if n < 3 || n > len(buf) {
			return badCommand("structured field length %d", n)
		}
		if err := d.structuredField(buf[2], buf[3:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (d *Decoder) structuredField(id byte, body []byte) error {
	switch id {
	case sfReadPartition:
		if len(body) < 2 {
			return badCommand("short ReadPartition")
		}
		switch body[1] {
		case sfReadPartQuery, sfReadPartQueryLL:
			d.log.Tracef("ReadPartition(0x%02x, Query)", body[0])
			return d.queryReply()
		}
		return badCommand("ReadPartition type 0x%02x", body[1])
	case sfEraseReset:
		d.log.Trace("EraseReset")
		return d.erase()
	case sfOutbound3270DS:
		if len(body) < 2 {
			return badCommand("short Outbound3270DS")
		}
		d.log.Tracef("Outbound3270DS(0x%02x)", body[0])
		switch body[1] {
		case cmdW, snaW, cmdEW, snaEW, cmdEWA, snaEWA, cmdEAU, snaEAU:
			return d.Process(body[1:])
		}
		return badCommand("Outbound3270DS command 0x%02x", body[1])
	}
	d.log.Tracef("unsupported structured field 0x%02x, ignored", id)
	return nil
}

// queryReply answers a query with what a printer has: a buffer of
// maxColumns wide lines and nothing else.
func (d *Decoder) queryReply() error {
	if d.reply == nil {
		d.log.Debug("no replier, query ignored")
		return nil
	}
	rows := len(d.page) / maxColumns
	buf := []byte{aidQueryReply}
	buf = appendQueryReply(buf, qrSummary, qrSummary, qrUsableArea)
	buf = appendQueryReply(buf, qrUsableArea,
		0x01, 0x00, // 12/14-bit addressing
		byte(maxColumns>>8), byte(maxColumns),
		byte(rows>>8), byte(rows),
		0x01,                   // millimetres
		0x00, 0x01, 0x00, 0x0a, // Xr
		0x00, 0x01, 0x00, 0x0a, // Yr
		0x07, 0x0c, // cell size
		byte(len(d.page)>>8), byte(len(d.page)),
	)
	d.log.Trace("SENT QueryReply(Summary, UsableArea)")
	return d.reply.Reply(buf)
}

func appendQueryReply(buf []byte, code byte, data ...byte) []byte {
	n := 4 + len(data)
	buf = append(buf, byte(n>>8), byte(n), 0x81, code)
	return append(buf, data...)
}
