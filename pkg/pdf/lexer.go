package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNull
	TokenBoolean
	TokenInteger
	TokenReal
	TokenString
	TokenHexString
	TokenName
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenStreamStart
	TokenStreamEnd
	TokenObjStart
	TokenObjEnd
	TokenRef
	TokenXRef
	TokenTrailer
	TokenStartXRef
	TokenKeyword
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int
}

// Lexer performs lexical analysis on an in-memory PDF
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a lexer positioned at the start of data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Position returns the current offset
func (l *Lexer) Position() int {
	return l.pos
}

// Seek moves to an absolute offset
func (l *Lexer) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(l.data) {
		pos = len(l.data)
	}
	l.pos = pos
}

func (l *Lexer) eof() bool { return l.pos >= len(l.data) }

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.data[l.pos]
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for !l.eof() {
		b := l.data[l.pos]
		switch {
		case isWhitespace(b):
			l.pos++
		case b == '%':
			for !l.eof() && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// isWhitespace checks if a byte is PDF whitespace
func isWhitespace(b byte) bool {
	return b == 0 || b == '\t' || b == '\n' || b == '\f' || b == '\r' || b == ' '
}

// isDelimiter checks if a byte is a PDF delimiter
func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	pos := l.pos
	if l.eof() {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	b := l.data[l.pos]
	switch {
	case b == '[':
		l.pos++
		return Token{Type: TokenArrayStart, Pos: pos}, nil
	case b == ']':
		l.pos++
		return Token{Type: TokenArrayEnd, Pos: pos}, nil
	case b == '(':
		l.pos++
		return l.readLiteralString(pos)
	case b == '<':
		l.pos++
		if l.peek() == '<' {
			l.pos++
			return Token{Type: TokenDictStart, Pos: pos}, nil
		}
		return l.readHexString(pos)
	case b == '>':
		l.pos++
		if l.peek() == '>' {
			l.pos++
			return Token{Type: TokenDictEnd, Pos: pos}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at position %d", pos)
	case b == '/':
		l.pos++
		return l.readName(pos), nil
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return l.readNumber(pos)
	case isDelimiter(b):
		return Token{}, fmt.Errorf("unexpected character '%c' at position %d", b, pos)
	default:
		return l.readKeyword(pos), nil
	}
}

// readLiteralString reads a literal string; the opening parenthesis has
// been consumed
func (l *Lexer) readLiteralString(pos int) (Token, error) {
	var buf bytes.Buffer
	depth := 1
	for {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated string at position %d", pos)
		}
		b := l.data[l.pos]
		l.pos++
		switch b {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buf.Bytes(), Pos: pos}, nil
			}
		case '\\':
			l.readEscape(&buf)
			continue
		case '\r':
			// a bare CR or CRLF is a single newline
			if l.peek() == '\n' {
				l.pos++
			}
			b = '\n'
		}
		buf.WriteByte(b)
	}
}

var escapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
	'(': '(', ')': ')', '\\': '\\',
}

func (l *Lexer) readEscape(buf *bytes.Buffer) {
	if l.eof() {
		return
	}
	b := l.data[l.pos]
	l.pos++
	if e, ok := escapes[b]; ok {
		buf.WriteByte(e)
		return
	}
	switch {
	case b == '\r':
		if l.peek() == '\n' {
			l.pos++
		}
	case b == '\n':
	case b >= '0' && b <= '7':
		v := int(b - '0')
		for i := 0; i < 2 && !l.eof() && l.peek() >= '0' && l.peek() <= '7'; i++ {
			v = v*8 + int(l.data[l.pos]-'0')
			l.pos++
		}
		buf.WriteByte(byte(v))
	default:
		buf.WriteByte(b)
	}
}

// readHexString reads a hexadecimal string; the opening bracket has been
// consumed
func (l *Lexer) readHexString(pos int) (Token, error) {
	end := bytes.IndexByte(l.data[l.pos:], '>')
	if end < 0 {
		return Token{}, fmt.Errorf("unterminated hex string at position %d", pos)
	}
	decoded, err := asciiHexDecode(l.data[l.pos : l.pos+end])
	if err != nil {
		return Token{}, fmt.Errorf("invalid hex string at position %d", pos)
	}
	l.pos += end + 1
	return Token{Type: TokenHexString, Value: decoded, Pos: pos}, nil
}

// readName reads a name; the slash has been consumed
func (l *Lexer) readName(pos int) Token {
	var buf bytes.Buffer
	for !l.eof() {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++
		if b == '#' && l.pos+1 < len(l.data) {
			hi, ok1 := hexValue(l.data[l.pos])
			lo, ok2 := hexValue(l.data[l.pos+1])
			if ok1 && ok2 {
				buf.WriteByte(hi<<4 | lo)
				l.pos += 2
				continue
			}
		}
		buf.WriteByte(b)
	}
	return Token{Type: TokenName, Value: buf.String(), Pos: pos}
}

// readNumber reads an integer or real
func (l *Lexer) readNumber(pos int) (Token, error) {
	start := l.pos
	if b := l.peek(); b == '+' || b == '-' {
		l.pos++
	}
	dot, digits := false, false
	for !l.eof() {
		b := l.data[l.pos]
		if b == '.' && !dot {
			dot = true
		} else if b >= '0' && b <= '9' {
			digits = true
		} else {
			break
		}
		l.pos++
	}
	text := string(l.data[start:l.pos])
	if !digits {
		return Token{}, fmt.Errorf("invalid number at position %d", pos)
	}
	if dot {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, fmt.Errorf("invalid real number at position %d", pos)
		}
		return Token{Type: TokenReal, Value: v, Pos: pos}, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return Token{}, fmt.Errorf("invalid integer at position %d", pos)
		}
		return Token{Type: TokenReal, Value: f, Pos: pos}, nil
	}
	return Token{Type: TokenInteger, Value: v, Pos: pos}, nil
}

var keywords = map[string]TokenType{
	"null":      TokenNull,
	"obj":       TokenObjStart,
	"endobj":    TokenObjEnd,
	"stream":    TokenStreamStart,
	"endstream": TokenStreamEnd,
	"R":         TokenRef,
	"xref":      TokenXRef,
	"trailer":   TokenTrailer,
	"startxref": TokenStartXRef,
}

// readKeyword reads a bare keyword such as true, obj or R
func (l *Lexer) readKeyword(pos int) Token {
	start := l.pos
	for !l.eof() && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	word := string(l.data[start:l.pos])
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Value: true, Pos: pos}
	case "false":
		return Token{Type: TokenBoolean, Value: false, Pos: pos}
	}
	if t, ok := keywords[word]; ok {
		return Token{Type: t, Pos: pos}
	}
	return Token{Type: TokenKeyword, Value: word, Pos: pos}
}

// ReadLine reads until end of line and consumes the line terminator
func (l *Lexer) ReadLine() []byte {
	start := l.pos
	for !l.eof() && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
		l.pos++
	}
	line := l.data[start:l.pos]
	if l.peek() == '\r' {
		l.pos++
	}
	if l.peek() == '\n' {
		l.pos++
	}
	return line
}
