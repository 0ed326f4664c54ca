package pagerange

import (
	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/keyword"
)

// Parity restricts a range to even or odd page numbers
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) accepts(page int) bool {
	switch p {
	case ParityEven:
		return page%2 == 0
	case ParityOdd:
		return page%2 == 1
	}
	return true
}

// count returns how many pages in [from, to] the parity accepts
func (p Parity) count(from, to int) int {
	if to < from {
		return 0
	}
	n := to - from + 1
	if p == ParityNone {
		return n
	}
	if p.accepts(from) {
		return (n + 1) / 2
	}
	return n / 2
}

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	}
	return "none"
}

// Bound is one end of a page range: an explicit page, the last page, or unset
type Bound struct {
	Page int
	Last bool
}

// IsSet reports whether the bound was given
func (b Bound) IsSet() bool {
	return b.Page != 0 || b.Last
}

func (b Bound) resolve(pageCount int) int {
	if b.Last {
		return pageCount
	}
	return b.Page
}

// Spec is a parsed page range token
type Spec struct {
	Text     string
	Handle   byte // 0 when the range names no handle
	Begin    Bound
	End      Bound
	Parity   Parity
	Rotation Rotation
}

// HasHandle reports whether the range names a document handle
func (s Spec) HasHandle() bool {
	return s.Handle != 0
}

type parser struct {
	text   string
	tokens []Token
	pos    int
	spec   Spec
}

// Parse parses a single page range token:
//
//	[<handle>][<begin>[<rotation>]|<keyword>[<rotation>]][-<end>[<rotation>][<keyword>[<rotation>]]...]
//
// A handle is a single upper-case letter. Keywords are end, even and odd.
func Parse(text string) (Spec, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return Spec{}, tkerrors.Wrap(tkerrors.KindMalformedRange, text, err, "invalid page range")
	}

	p := &parser{text: text, tokens: tokens, spec: Spec{Text: text}}

	if tok := p.peek(); tok.Kind == TokenLetter {
		p.spec.Handle = tok.Text[0]
		p.next()
	}

	hyphen := p.hasHyphen()
	if err := p.parseBegin(hyphen); err != nil {
		return Spec{}, err
	}

	if p.peek().Kind == TokenHyphen {
		p.next()
		if !p.spec.Begin.IsSet() {
			return Spec{}, p.errorf("missing page range start")
		}
		if err := p.parseEnd(); err != nil {
			return Spec{}, err
		}
	}

	if tok := p.peek(); tok.Kind != TokenEOF {
		return Spec{}, p.errorf("unexpected text in page range: %q", p.text[tok.Pos:])
	}
	return p.spec, nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) hasHyphen() bool {
	for _, tok := range p.tokens[p.pos:] {
		if tok.Kind == TokenHyphen {
			return true
		}
	}
	return false
}

func (p *parser) errorf(format string, args ...any) *tkerrors.Error {
	return tkerrors.Newf(tkerrors.KindMalformedRange, p.text, format, args...)
}

// number consumes an optional page number
func (p *parser) number() (int, bool, error) {
	tok := p.peek()
	if tok.Kind != TokenNumber {
		return 0, false, nil
	}
	p.next()
	if tok.Value == 0 {
		return 0, true, p.errorf("page numbers start at 1")
	}
	return tok.Value, true, nil
}

// rotation consumes an optional rotation code; the last one wins
func (p *parser) rotation() {
	tok := p.peek()
	if tok.Kind != TokenLetter {
		return
	}
	if r, ok := RotationFromCode(tok.Text[0]); ok {
		p.spec.Rotation = r
		p.next()
	}
}

// atKeyword reports whether a keyword could start at the cursor
func (p *parser) atKeyword() bool {
	k := p.peek().Kind
	return k == TokenWord || k == TokenLetter || k == TokenInvalid
}

// keyword consumes one keyword from the current word. A word may hold
// several keywords back to back, as in "endeven".
func (p *parser) keyword() (keyword.Keyword, string) {
	tok := p.peek()
	if tok.Kind != TokenWord {
		return keyword.None, tok.Text
	}
	kw, n := keyword.Classify(tok.Text)
	if kw == keyword.None || n == 0 {
		return keyword.None, tok.Text
	}
	if n < len(tok.Text) {
		p.tokens[p.pos] = Token{Kind: TokenWord, Text: tok.Text[n:], Pos: tok.Pos + n}
	} else {
		p.next()
	}
	return kw, tok.Text[:n]
}

func (p *parser) setParity(parity Parity) error {
	if p.spec.Parity != ParityNone && p.spec.Parity != parity {
		return p.errorf("even and odd may not both qualify one range")
	}
	p.spec.Parity = parity
	return nil
}

func (p *parser) parseBegin(hyphen bool) error {
	page, digits, err := p.number()
	if err != nil {
		return err
	}
	p.spec.Begin.Page = page

	// e.g. 1W
	p.rotation()

	if !p.atKeyword() {
		return nil
	}
	if digits {
		return p.errorf("unexpected combination of digits and text in page range start")
	}

	kw, text := p.keyword()
	switch {
	case kw == keyword.End:
		p.spec.Begin.Last = true
	case kw == keyword.Even && !hyphen:
		p.spec.Parity = ParityEven
	case hyphen:
		return p.errorf("unexpected letters in page range start: %q", text).WithExpected("end")
	default:
		return p.errorf("unexpected text in page reference: %q", text).WithExpected("even", "end")
	}

	// e.g. endW, AevenS
	p.rotation()
	return nil
}

func (p *parser) parseEnd() error {
	page, _, err := p.number()
	if err != nil {
		return err
	}
	p.spec.End.Page = page

	// e.g. 1-5W
	p.rotation()

	// possibly more than one keyword, e.g. 3-endeven
	for p.atKeyword() {
		kw, text := p.keyword()
		if p.spec.End.IsSet() {
			switch kw {
			case keyword.Even:
				if err := p.setParity(ParityEven); err != nil {
					return err
				}
			case keyword.Odd:
				if err := p.setParity(ParityOdd); err != nil {
					return err
				}
			default:
				return p.errorf("unexpected text in page range end: %q", text).WithExpected("even", "odd")
			}
		} else {
			if kw != keyword.End {
				return p.errorf("unexpected text in page range end: %q", text).WithExpected("end")
			}
			p.spec.End.Last = true
		}

		// e.g. 1-endW, 5-endevenN
		p.rotation()
	}
	return nil
}
