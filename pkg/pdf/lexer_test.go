package pdf

import (
	"bytes"
	"io"
	"testing"
)

// TestLexerReadLine tests reading lines from lexer
func TestLexerReadLine(t *testing.T) {
	lexer := NewLexer([]byte("line1\nline2\rline3\r\nline4"))

	for _, want := range []string{"line1", "line2", "line3", "line4"} {
		if line := lexer.ReadLine(); string(line) != want {
			t.Errorf("Expected '%s', got '%s'", want, line)
		}
	}
	if lexer.Position() != 24 {
		t.Errorf("Expected position 24, got %d", lexer.Position())
	}
}

// TestIsWhitespace tests whitespace detection
func TestIsWhitespace(t *testing.T) {
	whitespaces := []byte{' ', '\t', '\n', '\r', '\f', 0}
	for _, ws := range whitespaces {
		if !isWhitespace(ws) {
			t.Errorf("Expected %d to be whitespace", ws)
		}
	}

	nonWhitespaces := []byte{'a', '1', '/', '('}
	for _, nws := range nonWhitespaces {
		if isWhitespace(nws) {
			t.Errorf("Expected %c to not be whitespace", nws)
		}
	}
}

// TestIsDelimiter tests delimiter detection
func TestIsDelimiter(t *testing.T) {
	delimiters := []byte{'(', ')', '<', '>', '[', ']', '{', '}', '/', '%'}
	for _, d := range delimiters {
		if !isDelimiter(d) {
			t.Errorf("Expected %c to be delimiter", d)
		}
	}

	nonDelimiters := []byte{'a', '1', '.', '-'}
	for _, nd := range nonDelimiters {
		if isDelimiter(nd) {
			t.Errorf("Expected %c to not be delimiter", nd)
		}
	}
}

// TestLexerTokens tests the token stream of a small object
func TestLexerTokens(t *testing.T) {
	lexer := NewLexer([]byte("<< /Type /Page >> [1 2.5] obj endobj"))
	want := []TokenType{
		TokenDictStart, TokenName, TokenName, TokenDictEnd,
		TokenArrayStart, TokenInteger, TokenReal, TokenArrayEnd,
		TokenObjStart, TokenObjEnd, TokenEOF,
	}
	for i, typ := range want {
		tok, err := lexer.NextToken()
		if err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
		if tok.Type != typ {
			t.Errorf("token %d: expected type %d, got %d", i, typ, tok.Type)
		}
	}
}

// TestLexerErrors tests malformed input
func TestLexerErrors(t *testing.T) {
	tests := []string{"(unterminated", "<0A1", ">", "+", ")"}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := NewLexer([]byte(input)).NextToken(); err == nil {
				t.Errorf("Expected error for %q", input)
			}
		})
	}
}

// TestParserParseInteger tests parsing integers
func TestParserParseInteger(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"42", 42},
		{"-17", -17},
		{"0", 0},
		{"+123", 123},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if i, ok := obj.(Integer); !ok || int64(i) != tt.expected {
			t.Errorf("ParseObject(%s) = %v, expected %d", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseReal tests parsing real numbers
func TestParserParseReal(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"3.14", 3.14},
		{"-.5", -0.5},
		{"4.", 4},
		{"0.0", 0},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if r, ok := obj.(Real); !ok || float64(r) != tt.expected {
			t.Errorf("ParseObject(%s) = %v, expected %v", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseBoolean tests parsing booleans and null
func TestParserParseBoolean(t *testing.T) {
	tests := []struct {
		input    string
		expected Object
	}{
		{"true", Boolean(true)},
		{"false", Boolean(false)},
		{"null", Null{}},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if obj != tt.expected {
			t.Errorf("ParseObject(%s) = %v, expected %v", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseName tests parsing names, including # escapes
func TestParserParseName(t *testing.T) {
	tests := []struct {
		input    string
		expected Name
	}{
		{"/Type", "Type"},
		{"/A#20B", "A B"},
		{"/pdftk_PageNum", "pdftk_PageNum"},
		{"/", ""},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		if n, ok := obj.(Name); !ok || n != tt.expected {
			t.Errorf("ParseObject(%s) = %v, expected %v", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseString tests parsing literal strings
func TestParserParseString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(Hello)", "Hello"},
		{"(a (nested) b)", "a (nested) b"},
		{`(line\nbreak)`, "line\nbreak"},
		{`(\101\102)`, "AB"},
		{`(\(x\))`, "(x)"},
		{"(cr\r\nlf)", "cr\nlf"},
		{"(split\\\nline)", "splitline"},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%q) failed: %v", tt.input, err)
			continue
		}
		s, ok := obj.(String)
		if !ok || s.IsHex || string(s.Value) != tt.expected {
			t.Errorf("ParseObject(%q) = %v, expected %q", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseHexString tests parsing hex strings
func TestParserParseHexString(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"<48656C6C6F>", []byte("Hello")},
		{"<48 65 6c>", []byte("Hel")},
		{"<7>", []byte{0x70}},
		{"<>", nil},
	}

	for _, tt := range tests {
		obj, err := NewParser([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Errorf("ParseObject(%s) failed: %v", tt.input, err)
			continue
		}
		s, ok := obj.(String)
		if !ok || !s.IsHex || !bytes.Equal(s.Value, tt.expected) {
			t.Errorf("ParseObject(%s) = %v, expected %X", tt.input, obj, tt.expected)
		}
	}
}

// TestParserParseArray tests parsing arrays
func TestParserParseArray(t *testing.T) {
	obj, err := NewParser([]byte("[1 2 0 R /Name (s) [true]]")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	arr, ok := obj.(Array)
	if !ok {
		t.Fatalf("Expected Array, got %T", obj)
	}
	if len(arr) != 5 {
		t.Fatalf("Expected 5 elements, got %d: %v", len(arr), arr)
	}
	if arr[1] != (Reference{ObjectNumber: 2}) {
		t.Errorf("Expected reference 2 0 R, got %v", arr[1])
	}
	if inner, ok := arr[4].(Array); !ok || len(inner) != 1 {
		t.Errorf("Expected nested array, got %v", arr[4])
	}

	if _, err := NewParser([]byte("[1 2")).ParseObject(); err == nil {
		t.Error("Expected error for unterminated array")
	}
}

// TestParserParseDictionary tests parsing dictionaries
func TestParserParseDictionary(t *testing.T) {
	obj, err := NewParser([]byte("<< /Type /Page /Count 3 /Gone null /Kids [4 0 R] >>")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	dict, ok := obj.(Dictionary)
	if !ok {
		t.Fatalf("Expected Dictionary, got %T", obj)
	}
	if n, _ := dict.GetName("Type"); n != "Page" {
		t.Errorf("Expected /Type /Page, got %v", dict.Get("Type"))
	}
	if c, _ := dict.GetInt("Count"); c != 3 {
		t.Errorf("Expected Count 3, got %v", dict.Get("Count"))
	}
	if _, present := dict["Gone"]; present {
		t.Error("Null entries should be dropped")
	}
	if kids, ok := dict.GetArray("Kids"); !ok || len(kids) != 1 {
		t.Errorf("Expected one kid, got %v", dict.Get("Kids"))
	}

	if _, err := NewParser([]byte("<< 1 2 >>")).ParseObject(); err == nil {
		t.Error("Expected error for non-name key")
	}
}

// TestParserParseEOF tests that an exhausted parser reports io.EOF
func TestParserParseEOF(t *testing.T) {
	p := NewParser([]byte("  7 "))
	if _, err := p.ParseObject(); err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if _, err := p.ParseObject(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

// TestParserParseIndirectObject tests parsing an indirect stream object
func TestParserParseIndirectObject(t *testing.T) {
	data := []byte("5 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n")
	num, gen, obj, err := NewParser(data).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if num != 5 || gen != 0 {
		t.Errorf("Expected 5 0, got %d %d", num, gen)
	}
	stream, ok := obj.(Stream)
	if !ok {
		t.Fatalf("Expected Stream, got %T", obj)
	}
	if string(stream.Data) != "hello" {
		t.Errorf("Expected stream data 'hello', got %q", stream.Data)
	}
}
