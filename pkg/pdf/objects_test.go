package pdf

import (
	"bytes"
	"testing"
)

// TestInteger tests Integer type
func TestInteger(t *testing.T) {
	i := Integer(42)

	if i.Type() != ObjInteger {
		t.Error("Expected ObjInteger type")
	}

	if i.String() != "42" {
		t.Errorf("Expected '42', got '%s'", i.String())
	}
}

// TestReal tests Real formatting without exponents
func TestReal(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{3.14, "3.14"},
		{612, "612"},
		{-0.5, "-0.5"},
		{0.00001, "0"},
		{-0.00001, "0"},
		{1e7, "10000000"},
		{2.123456, "2.1235"},
	}

	for _, tt := range tests {
		if got := Real(tt.value).String(); got != tt.expected {
			t.Errorf("Real(%v) = %s, expected %s", tt.value, got, tt.expected)
		}
	}
}

// TestBoolean tests Boolean type
func TestBoolean(t *testing.T) {
	if Boolean(true).String() != "true" {
		t.Errorf("Expected 'true', got '%s'", Boolean(true).String())
	}
	if Boolean(false).String() != "false" {
		t.Errorf("Expected 'false', got '%s'", Boolean(false).String())
	}
	if Boolean(true).Type() != ObjBoolean {
		t.Error("Expected ObjBoolean type")
	}
}

// TestName tests Name type and escaping
func TestName(t *testing.T) {
	tests := []struct {
		name     Name
		expected string
	}{
		{"Type", "/Type"},
		{"A B", "/A#20B"},
		{"a#b", "/a#23b"},
		{"x(y)", "/x#28y#29"},
	}

	for _, tt := range tests {
		if got := tt.name.String(); got != tt.expected {
			t.Errorf("Name(%q) = %s, expected %s", string(tt.name), got, tt.expected)
		}
	}
}

// TestString tests String serialization
func TestString(t *testing.T) {
	literal := String{Value: []byte("a(b)\\c\n")}
	if got := string(Serialize(literal)); got != `(a\(b\)\\c\n)` {
		t.Errorf("Unexpected literal serialization: %s", got)
	}

	hexStr := String{Value: []byte{0xFE, 0xFF}, IsHex: true}
	if got := string(Serialize(hexStr)); got != "<feff>" {
		t.Errorf("Unexpected hex serialization: %s", got)
	}
}

// TestStringText tests text string decoding
func TestStringText(t *testing.T) {
	tests := []struct {
		name     string
		value    []byte
		expected string
	}{
		{"ascii", []byte("Hello"), "Hello"},
		{"utf16", []byte{0xFE, 0xFF, 0x00, 'H', 0x00, 0xE9}, "Hé"},
		{"utf8 bom", []byte("\xEF\xBB\xBFcafé"), "café"},
		{"pdfdoc bullet", []byte{0x80}, "•"},
		{"pdfdoc breve", []byte{0x18}, "˘"},
		{"latin1", []byte{0xE9}, "é"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (String{Value: tt.value}).Text(); got != tt.expected {
				t.Errorf("Text() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

// TestTextString tests encoding text strings
func TestTextString(t *testing.T) {
	ascii := TextString("Plain")
	if ascii.IsHex || string(ascii.Value) != "Plain" {
		t.Errorf("ASCII text should stay plain, got %v", ascii)
	}

	wide := TextString("Grüße")
	if !wide.IsHex || !bytes.HasPrefix(wide.Value, []byte{0xFE, 0xFF}) {
		t.Fatalf("Non-ASCII text should be UTF-16BE with BOM, got %v", wide)
	}
	if wide.Text() != "Grüße" {
		t.Errorf("Round trip gave %q", wide.Text())
	}
}

// TestArray tests Array serialization
func TestArray(t *testing.T) {
	arr := Array{Integer(1), Real(2.5), Name("N"), Reference{ObjectNumber: 3}, Null{}}
	if got := string(Serialize(arr)); got != "[1 2.5 /N 3 0 R null]" {
		t.Errorf("Unexpected array serialization: %s", got)
	}
	if arr.Type() != ObjArray {
		t.Error("Expected ObjArray type")
	}
}

// TestDictionary tests Dictionary helpers
func TestDictionary(t *testing.T) {
	dict := Dictionary{
		"Type":  Name("Page"),
		"Count": Integer(3),
		"Width": Real(2.9),
		"Kids":  Array{Integer(1)},
		"Res":   Dictionary{"Font": Dictionary{}},
	}

	if n, ok := dict.GetName("Type"); !ok || n != "Page" {
		t.Errorf("GetName = %v, %v", n, ok)
	}
	if _, ok := dict.GetName("Count"); ok {
		t.Error("GetName should fail on an integer")
	}
	if c, ok := dict.GetInt("Count"); !ok || c != 3 {
		t.Errorf("GetInt = %d, %v", c, ok)
	}
	if w, ok := dict.GetInt("Width"); !ok || w != 2 {
		t.Errorf("GetInt on a real = %d, %v", w, ok)
	}
	if a, ok := dict.GetArray("Kids"); !ok || len(a) != 1 {
		t.Errorf("GetArray = %v, %v", a, ok)
	}
	if d, ok := dict.GetDict("Res"); !ok || d.Get("Font") == nil {
		t.Errorf("GetDict = %v, %v", d, ok)
	}

	keys := dict.Keys()
	want := []Name{"Count", "Kids", "Res", "Type", "Width"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %s, expected %s", i, keys[i], want[i])
		}
	}

	clone := dict.Clone()
	clone.Set("Type", Name("Pages"))
	if n, _ := dict.GetName("Type"); n != "Page" {
		t.Error("Clone should not share the map")
	}

	dict.Set("Count", nil)
	dict.Delete("Width")
	if dict.Get("Count") != nil || dict.Get("Width") != nil {
		t.Error("Set(nil) and Delete should remove keys")
	}
}

// TestDictionarySerialize tests sorted key output
func TestDictionarySerialize(t *testing.T) {
	dict := Dictionary{"Type": Name("Catalog"), "Pages": Reference{ObjectNumber: 2}}
	if got := string(Serialize(dict)); got != "<</Pages 2 0 R/Type /Catalog>>" {
		t.Errorf("Unexpected dictionary serialization: %s", got)
	}
}

// TestReference tests Reference type
func TestReference(t *testing.T) {
	ref := Reference{ObjectNumber: 10, GenerationNumber: 2}
	if ref.String() != "10 2 R" {
		t.Errorf("Expected '10 2 R', got '%s'", ref.String())
	}
	if ref.Type() != ObjReference {
		t.Error("Expected ObjReference type")
	}
}

// TestNull tests Null type
func TestNull(t *testing.T) {
	if (Null{}).String() != "null" {
		t.Errorf("Expected 'null', got '%s'", Null{}.String())
	}
}

// TestStreamFilters tests reading the filter chain
func TestStreamFilters(t *testing.T) {
	single := Stream{Dictionary: Dictionary{"Filter": Name("FlateDecode")}}
	if f := single.Filters(); len(f) != 1 || f[0] != "FlateDecode" {
		t.Errorf("Filters() = %v", f)
	}

	chain := Stream{Dictionary: Dictionary{"Filter": Array{Name("ASCIIHexDecode"), Name("FlateDecode")}}}
	if f := chain.Filters(); len(f) != 2 || f[1] != "FlateDecode" {
		t.Errorf("Filters() = %v", f)
	}

	if f := (Stream{Dictionary: Dictionary{}}).Filters(); f != nil {
		t.Errorf("Expected no filters, got %v", f)
	}
}

// TestStreamDecode tests decoding through a filter chain
func TestStreamDecode(t *testing.T) {
	plain := []byte("BT /F1 12 Tf (Hello) Tj ET")
	compressed, err := flateEncode(plain)
	if err != nil {
		t.Fatalf("flateEncode failed: %v", err)
	}

	stream := Stream{Dictionary: Dictionary{"Filter": Name("FlateDecode")}, Data: compressed}
	decoded, err := stream.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, plain) {
		t.Errorf("Expected %q, got %q", plain, decoded)
	}

	bad := Stream{Dictionary: Dictionary{"Filter": Name("FlateDecode")}, Data: []byte("not zlib")}
	if _, err := bad.Decode(); err == nil {
		t.Error("Expected error for corrupt flate data")
	}
}

// TestASCIIHexDecode tests ASCII hex decoding
func TestASCIIHexDecode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"48656C6C6F>", "Hello"},
		{"48 65\n6c6c 6f", "Hello"},
		{"414", "A@"},
	}

	for _, tt := range tests {
		result, err := asciiHexDecode([]byte(tt.input))
		if err != nil {
			t.Errorf("asciiHexDecode(%q) failed: %v", tt.input, err)
			continue
		}
		if string(result) != tt.expected {
			t.Errorf("asciiHexDecode(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}

	if _, err := asciiHexDecode([]byte("4G")); err == nil {
		t.Error("Expected error for invalid hex character")
	}
}

// TestASCII85Decode tests ASCII base-85 decoding
func TestASCII85Decode(t *testing.T) {
	result, err := ascii85Decode([]byte("<~87cURDZ~>"))
	if err != nil {
		t.Fatalf("ascii85Decode failed: %v", err)
	}
	if string(result) != "Hello" {
		t.Errorf("Expected 'Hello', got '%s'", result)
	}
}

// TestRunLengthDecode tests run length decoding
func TestRunLengthDecode(t *testing.T) {
	// literal run of 3 bytes, then 'Z' repeated 4 times, then EOD
	input := []byte{2, 'A', 'B', 'C', 253, 'Z', 128}
	result, err := runLengthDecode(input)
	if err != nil {
		t.Fatalf("runLengthDecode failed: %v", err)
	}
	if string(result) != "ABCZZZZ" {
		t.Errorf("Expected 'ABCZZZZ', got '%s'", result)
	}
}

// TestMatrix tests matrix composition and bounding boxes
func TestMatrix(t *testing.T) {
	scale := Matrix{2, 0, 0, 2, 0, 0}
	move := Matrix{1, 0, 0, 1, 10, 20}

	m := scale.Multiply(move)
	if x, y := m.Apply(1, 1); x != 12 || y != 22 {
		t.Errorf("Apply(1, 1) = %v, %v, expected 12, 22", x, y)
	}

	turn := Matrix{0, 1, -1, 0, 0, 0}
	box := turn.Transform(Rectangle{URX: 100, URY: 50})
	if box.Width() != 50 || box.Height() != 100 {
		t.Errorf("Transform gave %+v", box)
	}

	if got := move.Operator(); got != "1 0 0 1 10 20 cm" {
		t.Errorf("Operator() = %s", got)
	}
}

// TestDecodePDFDocEncoding tests PDFDocEncoding decoding
func TestDecodePDFDocEncoding(t *testing.T) {
	input := []byte{'H', 'i', 0x92, 0xA0}
	if result := decodePDFDocEncoding(input); result != "Hi™€" {
		t.Errorf("Expected 'Hi™€', got '%s'", result)
	}
}
