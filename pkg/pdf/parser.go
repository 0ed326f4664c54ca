package pdf

import (
	"bytes"
	"fmt"
	"io"
)

// Parser parses PDF objects from tokens
type Parser struct {
	lexer *Lexer
	ahead []Token

	// length resolves an indirect stream Length; nil means unknown
	length func(Reference) (int, bool)
}

// NewParser creates a parser over data starting at offset 0
func NewParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data)}
}

// newParserAt creates a parser starting at offset
func newParserAt(data []byte, offset int) *Parser {
	p := NewParser(data)
	p.lexer.Seek(offset)
	return p
}

func (p *Parser) nextToken() (Token, error) {
	if len(p.ahead) > 0 {
		tok := p.ahead[0]
		p.ahead = p.ahead[1:]
		return tok, nil
	}
	return p.lexer.NextToken()
}

// peekToken returns the n-th token ahead (0-indexed) without consuming it
func (p *Parser) peekToken(n int) (Token, error) {
	for len(p.ahead) <= n {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		p.ahead = append(p.ahead, tok)
	}
	return p.ahead[n], nil
}

// ParseObject parses a single PDF object
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF
	case TokenNull:
		return Null{}, nil
	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil
	case TokenInteger:
		// num gen R
		if gen, err := p.peekToken(0); err == nil && gen.Type == TokenInteger {
			if r, err := p.peekToken(1); err == nil && r.Type == TokenRef {
				p.ahead = p.ahead[2:]
				return Reference{
					ObjectNumber:     int(tok.Value.(int64)),
					GenerationNumber: int(gen.Value.(int64)),
				}, nil
			}
		}
		return Integer(tok.Value.(int64)), nil
	case TokenReal:
		return Real(tok.Value.(float64)), nil
	case TokenString:
		return String{Value: tok.Value.([]byte)}, nil
	case TokenHexString:
		return String{Value: tok.Value.([]byte), IsHex: true}, nil
	case TokenName:
		return Name(tok.Value.(string)), nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDictionary()
	default:
		return nil, fmt.Errorf("unexpected token %v at position %d", tok.Value, tok.Pos)
	}
}

// parseArray parses the rest of an array
func (p *Parser) parseArray() (Array, error) {
	arr := Array{}
	for {
		tok, err := p.peekToken(0)
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayEnd:
			p.nextToken()
			return arr, nil
		case TokenEOF:
			return nil, fmt.Errorf("unterminated array at position %d", tok.Pos)
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDictionary parses the rest of a dictionary. Null values are dropped,
// as a null entry is the same as an absent one.
func (p *Parser) parseDictionary() (Dictionary, error) {
	dict := make(Dictionary)
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenName:
		default:
			return nil, fmt.Errorf("expected name as dictionary key at position %d", tok.Pos)
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		if _, isNull := value.(Null); !isNull {
			dict[Name(tok.Value.(string))] = value
		}
	}
}

// ParseIndirectObject parses an indirect object definition (num gen obj ... endobj)
func (p *Parser) ParseIndirectObject() (int, int, Object, error) {
	var nums [2]int
	for i := range nums {
		tok, err := p.nextToken()
		if err != nil {
			return 0, 0, nil, err
		}
		if tok.Type != TokenInteger {
			return 0, 0, nil, fmt.Errorf("expected object number at position %d", tok.Pos)
		}
		nums[i] = int(tok.Value.(int64))
	}
	if tok, err := p.nextToken(); err != nil || tok.Type != TokenObjStart {
		return 0, 0, nil, fmt.Errorf("expected 'obj' keyword for object %d", nums[0])
	}

	obj, err := p.ParseObject()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("object %d: %w", nums[0], err)
	}

	if len(p.ahead) == 0 {
		// Peek at the raw bytes so that the lexer never runs into binary
		// stream data.
		save := p.lexer.Position()
		p.lexer.skipWhitespace()
		if bytes.HasPrefix(p.lexer.data[p.lexer.pos:], []byte("stream")) {
			dict, ok := obj.(Dictionary)
			if !ok {
				return 0, 0, nil, fmt.Errorf("object %d: stream must have a dictionary", nums[0])
			}
			p.lexer.pos += len("stream")
			obj = Stream{Dictionary: dict, Data: p.readStreamData(dict)}
		} else {
			p.lexer.Seek(save)
		}
	}

	// endobj is often missing or misplaced; the object is complete anyway
	return nums[0], nums[1], obj, nil
}

// readStreamData reads raw stream data following the stream keyword
func (p *Parser) readStreamData(dict Dictionary) []byte {
	l := p.lexer
	if l.peek() == '\r' {
		l.pos++
	}
	if l.peek() == '\n' {
		l.pos++
	}
	start := l.pos

	length := -1
	switch v := dict.Get("Length").(type) {
	case Integer:
		length = int(v)
	case Reference:
		if p.length != nil {
			if n, ok := p.length(v); ok {
				length = n
			}
		}
	}

	if length >= 0 && start+length <= len(l.data) {
		rest := l.data[start+length:]
		trimmed := bytes.TrimLeft(rest, "\x00\t\n\f\r ")
		if bytes.HasPrefix(trimmed, []byte("endstream")) {
			l.pos = start + length
			return l.data[start : start+length]
		}
	}

	// The declared length is missing or wrong: scan for endstream.
	end := bytes.Index(l.data[start:], []byte("endstream"))
	if end < 0 {
		l.pos = len(l.data)
		return l.data[start:]
	}
	data := l.data[start : start+end]
	l.pos = start + end
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	if n := len(data); n > 0 && data[n-1] == '\r' {
		data = data[:n-1]
	}
	return data
}
