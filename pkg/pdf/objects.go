// Package pdf reads, edits and writes PDF documents for the pdftk-ext
// toolkit: page assembly, encryption, forms, metadata, stamps and
// attachments.
package pdf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// ObjectType represents the type of a PDF object
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBoolean
	ObjInteger
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDictionary
	ObjStream
	ObjReference
)

// Object represents a PDF object
type Object interface {
	Type() ObjectType
	String() string
}

// Null represents a PDF null object
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// Boolean represents a PDF boolean object
type Boolean bool

func (b Boolean) Type() ObjectType { return ObjBoolean }
func (b Boolean) String() string   { return strconv.FormatBool(bool(b)) }

// Integer represents a PDF integer object
type Integer int64

func (i Integer) Type() ObjectType { return ObjInteger }
func (i Integer) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number object
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return formatReal(float64(r)) }

// formatReal prints a number without exponent, as PDF syntax requires
func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// String represents a PDF string object
type String struct {
	Value []byte
	IsHex bool
}

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%X>", s.Value)
	}
	return "(" + string(escapeLiteral(s.Value)) + ")"
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// Text returns the string value as text. Text strings are UTF-16BE when
// they open with a byte order mark and PDFDocEncoding otherwise.
func (s String) Text() string {
	v := s.Value
	if len(v) >= 2 && v[0] == 0xFE && v[1] == 0xFF {
		out, err := utf16BE.NewDecoder().Bytes(v)
		if err == nil {
			return string(out)
		}
	}
	if len(v) >= 3 && v[0] == 0xEF && v[1] == 0xBB && v[2] == 0xBF {
		return string(v[3:])
	}
	return decodePDFDocEncoding(v)
}

// TextString encodes text as a PDF text string: plain bytes when the text
// is ASCII, UTF-16BE with a byte order mark otherwise.
func TextString(text string) String {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return String{Value: []byte(text)}
	}
	out, err := utf16BE.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return String{Value: []byte(text)}
	}
	return String{Value: out, IsHex: true}
}

// Name represents a PDF name object
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + escapeName(string(n)) }

// Array represents a PDF array object
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, obj := range a {
		parts[i] = obj.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Dictionary represents a PDF dictionary object
type Dictionary map[Name]Object

func (d Dictionary) Type() ObjectType { return ObjDictionary }
func (d Dictionary) String() string {
	parts := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		parts = append(parts, k.String()+" "+d[k].String())
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Keys returns the keys in sorted order
func (d Dictionary) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Get returns the value for a key without resolving references
func (d Dictionary) Get(key string) Object {
	return d[Name(key)]
}

// Set stores a value; a nil value removes the key
func (d Dictionary) Set(key string, value Object) {
	if value == nil {
		delete(d, Name(key))
		return
	}
	d[Name(key)] = value
}

// Delete removes a key
func (d Dictionary) Delete(key string) {
	delete(d, Name(key))
}

// GetName returns the name value for a key
func (d Dictionary) GetName(key string) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// GetInt returns the integer value for a key
func (d Dictionary) GetInt(key string) (int64, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// GetArray returns the array value for a key
func (d Dictionary) GetArray(key string) (Array, bool) {
	a, ok := d.Get(key).(Array)
	return a, ok
}

// GetDict returns the dictionary value for a key
func (d Dictionary) GetDict(key string) (Dictionary, bool) {
	dict, ok := d.Get(key).(Dictionary)
	return dict, ok
}

// Clone returns a shallow copy of the dictionary
func (d Dictionary) Clone() Dictionary {
	out := make(Dictionary, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Stream represents a PDF stream object
type Stream struct {
	Dictionary Dictionary
	Data       []byte
}

func (s Stream) Type() ObjectType { return ObjStream }
func (s Stream) String() string {
	return s.Dictionary.String() + " stream...endstream"
}

// Filters returns the stream's filter chain
func (s Stream) Filters() []Name {
	switch f := s.Dictionary.Get("Filter").(type) {
	case Name:
		return []Name{f}
	case Array:
		var out []Name
		for _, item := range f {
			if n, ok := item.(Name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// Decode decodes the stream data based on filters. Image codecs are left
// encoded.
func (s Stream) Decode() ([]byte, error) {
	data := s.Data
	filters := s.Filters()
	for i, filter := range filters {
		params := decodeParams(s.Dictionary, i)
		var err error
		data, err = applyFilter(data, filter, params)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter, err)
		}
	}
	return data, nil
}

// decodeParams returns the DecodeParms entry for the i-th filter
func decodeParams(dict Dictionary, i int) Dictionary {
	switch p := dict.Get("DecodeParms").(type) {
	case Dictionary:
		return p
	case Array:
		if i < len(p) {
			if d, ok := p[i].(Dictionary); ok {
				return d
			}
		}
	}
	return Dictionary{}
}

// Reference represents a PDF indirect object reference
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

func (r Reference) Type() ObjectType { return ObjReference }
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// pdfDocHigh maps PDFDocEncoding bytes 0x80-0xA0 to Unicode
var pdfDocHigh = [...]rune{
	0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
	0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
	0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
	0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, 0xFFFD,
	0x20AC,
}

// pdfDocLow maps PDFDocEncoding bytes 0x18-0x1F to Unicode
var pdfDocLow = [...]rune{0x02D8, 0x02C7, 0x02C6, 0x02D9, 0x02DD, 0x02DB, 0x02DA, 0x02DC}

// decodePDFDocEncoding decodes PDFDocEncoding to string
func decodePDFDocEncoding(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch {
		case c >= 0x18 && c <= 0x1F:
			b.WriteRune(pdfDocLow[c-0x18])
		case c >= 0x80 && c <= 0xA0:
			b.WriteRune(pdfDocHigh[c-0x80])
		default:
			b.WriteRune(rune(c))
		}
	}
	return b.String()
}
