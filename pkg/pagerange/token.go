// Package pagerange parses and expands page range tokens such as "A12-5evenW"
package pagerange

import (
	"fmt"
	"strconv"
)

// TokenKind represents the type of a range lexeme
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenLetter // a single upper-case letter: handle or rotation code
	TokenWord   // a run of lower-case letters: one or more suffix keywords
	TokenHyphen
	TokenInvalid
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of token"
	case TokenNumber:
		return "number"
	case TokenLetter:
		return "letter"
	case TokenWord:
		return "word"
	case TokenHyphen:
		return "hyphen"
	default:
		return "invalid"
	}
}

// Token is one lexeme of a range token
type Token struct {
	Kind  TokenKind
	Text  string
	Value int
	Pos   int
}

// Tokenize splits a range token into typed lexemes, ending with TokenEOF.
func Tokenize(s string) ([]Token, error) {
	var tokens []Token
	pos := 0
	for pos < len(s) {
		c := s[pos]
		start := pos
		switch {
		case isDigit(c):
			for pos < len(s) && isDigit(s[pos]) {
				pos++
			}
			n, err := strconv.Atoi(s[start:pos])
			if err != nil {
				return nil, fmt.Errorf("page number %q too large", s[start:pos])
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: s[start:pos], Value: n, Pos: start})
		case isUpper(c):
			pos++
			tokens = append(tokens, Token{Kind: TokenLetter, Text: s[start:pos], Pos: start})
		case isLower(c):
			for pos < len(s) && isLower(s[pos]) {
				pos++
			}
			tokens = append(tokens, Token{Kind: TokenWord, Text: s[start:pos], Pos: start})
		case c == '-':
			pos++
			tokens = append(tokens, Token{Kind: TokenHyphen, Text: "-", Pos: start})
		default:
			pos++
			tokens = append(tokens, Token{Kind: TokenInvalid, Text: s[start:pos], Pos: start})
		}
	}
	tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(s)})
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
