// Package charset translates host EBCDIC bytes to Unicode and resolves the
// character set print output is written in.
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultCodePage is the host code page used when none is configured.
const DefaultCodePage = "cp037"

// Translator maps bytes of one host code page.
type Translator struct {
	name string
	cm   *charmap.Charmap
}

var codePages = map[string]*charmap.Charmap{
	"037":  charmap.CodePage037,
	"1047": charmap.CodePage1047,
	"1140": charmap.CodePage1140,
}

// Lookup finds a host code page by its short name ("cp037", "037",
// "1047", "cp1140", "bracket" for 1047) or by IANA name ("IBM037").
func Lookup(name string) (*Translator, error) {
	key := strings.ToLower(name)
	key = strings.TrimPrefix(key, "cp")
	key = strings.TrimPrefix(key, "ibm-")
	if key == "bracket" {
		key = "1047"
	}
	if cm, ok := codePages[key]; ok {
		return &Translator{name: "cp" + key, cm: cm}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown host code page %q", name)
	}
	for key, cm := range codePages {
		if enc == encoding.Encoding(cm) {
			return &Translator{name: "cp" + key, cm: cm}, nil
		}
	}
	return nil, fmt.Errorf("%q is not an EBCDIC code page", name)
}

func (t *Translator) Name() string { return t.name }

// Rune translates one byte. Bytes below 0x40 are controls in every host
// code page and come back as a blank.
func (t *Translator) Rune(b byte) rune {
	if b < 0x40 {
		return ' '
	}
	r := t.cm.DecodeByte(b)
	if r < 0x20 || (r >= 0x7f && r < 0xa0) {
		return ' '
	}
	return r
}

// GE translates a byte that followed a Graphic Escape. Only the line
// drawing characters of the alternate set have a Unicode equivalent here.
func (t *Translator) GE(b byte) rune {
	if r, ok := graphicEscape[b]; ok {
		return r
	}
	return ' '
}

// DBCS translates a double-byte pair. The only pair every host DBCS code
// page agrees on is the double-byte space.
func (t *Translator) DBCS(b1, b2 byte) (rune, bool) {
	if b1 == 0x40 && b2 == 0x40 {
		return '　', true
	}
	return 0, false
}

var graphicEscape = map[byte]rune{
	0x85: '│',
	0xa2: '─',
	0xc4: '└',
	0xc5: '┌',
	0xc6: '├',
	0xc7: '┴',
	0xd3: '┼',
	0xd4: '┘',
	0xd5: '┐',
	0xd6: '┤',
	0xd7: '┬',
	0xbb: '|',
	0xbf: '≠',
	0x8c: '≤',
	0xae: '≥',
	0x90: '°',
	0xa1: '~',
}

// OutputEncoding resolves the IANA name of the character set print output
// is encoded in.
func OutputEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output character set %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("output character set %q is not supported", name)
	}
	return enc, nil
}
