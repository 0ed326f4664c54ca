package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// escapeLiteral escapes the bytes of a literal string body
func escapeLiteral(v []byte) []byte {
	var buf bytes.Buffer
	for _, b := range v {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\r':
			buf.WriteString(`\r`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteByte(b)
		}
	}
	return buf.Bytes()
}

// escapeName escapes a name with #xx for bytes outside the regular range
func escapeName(n string) string {
	var buf bytes.Buffer
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b < 0x21 || b > 0x7E || b == '#' || isDelimiter(b) {
			fmt.Fprintf(&buf, "#%02X", b)
			continue
		}
		buf.WriteByte(b)
	}
	return buf.String()
}

// serializer writes objects in PDF syntax, renumbering references and
// encrypting strings as configured by the writer
type serializer struct {
	buf *bytes.Buffer

	// refs maps a source reference to its output reference; unmapped
	// references are written as null
	refs func(Reference) (Reference, bool)

	// crypt encrypts a string value of the object being written
	crypt func([]byte) []byte
}

func (s *serializer) write(obj Object) {
	switch v := obj.(type) {
	case nil, Null:
		s.buf.WriteString("null")
	case Boolean, Integer, Real, Name:
		s.buf.WriteString(v.String())
	case String:
		val := v.Value
		if s.crypt != nil {
			val = s.crypt(val)
			s.buf.WriteByte('<')
			s.buf.WriteString(hex.EncodeToString(val))
			s.buf.WriteByte('>')
			return
		}
		if v.IsHex {
			s.buf.WriteByte('<')
			s.buf.WriteString(hex.EncodeToString(val))
			s.buf.WriteByte('>')
			return
		}
		s.buf.WriteByte('(')
		s.buf.Write(escapeLiteral(val))
		s.buf.WriteByte(')')
	case Array:
		s.buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				s.buf.WriteByte(' ')
			}
			s.write(item)
		}
		s.buf.WriteByte(']')
	case Dictionary:
		s.writeDict(v)
	case Reference:
		if s.refs == nil {
			s.buf.WriteString(v.String())
			return
		}
		out, ok := s.refs(v)
		if !ok {
			s.buf.WriteString("null")
			return
		}
		s.buf.WriteString(out.String())
	case Stream:
		// streams only appear as indirect objects; see Writer
		s.writeDict(v.Dictionary)
	default:
		s.buf.WriteString(v.String())
	}
}

func (s *serializer) writeDict(d Dictionary) {
	s.buf.WriteString("<<")
	for _, k := range d.Keys() {
		s.buf.WriteString(k.String())
		s.buf.WriteByte(' ')
		s.write(d[k])
	}
	s.buf.WriteString(">>")
}

// Serialize returns obj in PDF syntax with references kept as they are
func Serialize(obj Object) []byte {
	var buf bytes.Buffer
	s := &serializer{buf: &buf}
	s.write(obj)
	return buf.Bytes()
}
