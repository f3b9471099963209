package datastream

import "fmt"

// 3270 commands, local (channel) and SNA forms.
const (
	cmdW   = 0x01
	cmdRB  = 0x02
	cmdNOP = 0x03
	cmdEW  = 0x05
	cmdRM  = 0x06
	cmdEWA = 0x0d
	cmdRMA = 0x0e
	cmdEAU = 0x0f
	cmdWSF = 0x11

	snaW   = 0xf1
	snaRB  = 0xf2
	snaWSF = 0xf3
	snaEW  = 0xf5
	snaRM  = 0xf6
	snaRMA = 0x6e
	snaEAU = 0x6f
	snaEWA = 0x7e
)

// Orders.
const (
	orderPT  = 0x05
	orderGE  = 0x08
	orderSBA = 0x11
	orderEUA = 0x12
	orderIC  = 0x13
	orderSF  = 0x1d
	orderSA  = 0x28
	orderSFE = 0x29
	orderMF  = 0x2c
	orderRA  = 0x3c
)

// Format control characters.
const (
	fcNULL = 0x00
	fcFF   = 0x0c
	fcCR   = 0x0d
	fcNL   = 0x15
	fcEM   = 0x19
	fcDUP  = 0x1c
	fcFM   = 0x1e
	fcSUB  = 0x3f
	fcEO   = 0xff
)

// Write control character bits.
const (
	wccReset        = 0x40
	wccLineLength   = 0x30
	wccStartPrinter = 0x08
	wccSoundAlarm   = 0x04
	wccRestore      = 0x02
	wccResetMDT     = 0x01
)

// Printer line lengths selected by the WCC; zero means unformatted.
var lineLengths = [4]int{0, 40, 64, 80}

// Extended attribute types, as found in SFE, MF and SA.
const (
	xaAll          = 0x00
	xa3270         = 0xc0
	xaValidation   = 0xc1
	xaOutlining    = 0xc2
	xaHighlight    = 0x41
	xaForeground   = 0x42
	xaCharset      = 0x43
	xaBackground   = 0x45
	xaTransparency = 0x46
)

// csGE is the character set value that selects the APL/line-drawing set.
// Zero is the default set.
const csGE = 0xf1

// Field attribute intensity bits that make a field non-display.
const faInvisible = 0x0c

type commandByte byte

func (c commandByte) String() string {
	str, ok := map[commandByte]string{
		cmdW:   "Write",
		snaW:   "Write",
		cmdRB:  "ReadBuffer",
		snaRB:  "ReadBuffer",
		cmdNOP: "NoOp",
		cmdEW:  "EraseWrite",
		snaEW:  "EraseWrite",
		cmdRM:  "ReadModified",
		snaRM:  "ReadModified",
		cmdEWA: "EraseWriteAlternate",
		snaEWA: "EraseWriteAlternate",
		cmdRMA: "ReadModifiedAll",
		snaRMA: "ReadModifiedAll",
		cmdEAU: "EraseAllUnprotected",
		snaEAU: "EraseAllUnprotected",
		cmdWSF: "WriteStructuredField",
		snaWSF: "WriteStructuredField",
	}[c]
	if ok {
		return str
	}
	return fmt.Sprintf("0x%02x", byte(c))
}

type attributeByte byte

func (a attributeByte) String() string {
	str, ok := map[attributeByte]string{
		xaAll:          "all",
		xa3270:         "3270",
		xaValidation:   "validation",
		xaOutlining:    "outlining",
		xaHighlight:    "highlighting",
		xaForeground:   "foreground",
		xaCharset:      "charset",
		xaBackground:   "background",
		xaTransparency: "transparency",
	}[a]
	if ok {
		return str
	}
	return fmt.Sprintf("0x%02x", byte(a))
}
