package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// WriteOptions controls how a document is serialized
type WriteOptions struct {
	// Compress flate-encodes unfiltered streams
	Compress bool
	// Uncompress removes general-purpose filters from streams
	Uncompress bool
	// Encrypt, when set, encrypts the output with RC4
	Encrypt *EncryptOptions
	// ID holds the file identifiers to write; nil generates a fresh pair
	ID Array
}

// Write serializes every object reachable from the catalog and the
// information dictionary, renumbered from 1, with a classic xref table.
func (d *Document) Write(w io.Writer, opts WriteOptions) error {
	rootRef, ok := d.Trailer.Get("Root").(Reference)
	if !ok {
		return errors.New("document has no catalog")
	}
	roots := []Object{rootRef}
	infoRef, hasInfo := d.Trailer.Get("Info").(Reference)
	if hasInfo {
		roots = append(roots, infoRef)
	}

	var order []int
	d.walk(roots, func(num int) { order = append(order, num) })
	numbers := make(map[int]int, len(order))
	for i, src := range order {
		numbers[src] = i + 1
	}
	mapRef := func(r Reference) (Reference, bool) {
		n, ok := numbers[r.ObjectNumber]
		return Reference{ObjectNumber: n}, ok
	}

	id := opts.ID
	if !validID(id) {
		fresh := newFileID()
		id = Array{String{Value: fresh, IsHex: true}, String{Value: fresh, IsHex: true}}
	}

	var sh *SecurityHandler
	var encDict Dictionary
	size := len(order) + 1
	if opts.Encrypt != nil {
		sh, encDict = newEncryption(*opts.Encrypt, id[0].(String).Value)
		size++
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", outputVersion(d.Version, opts.Encrypt != nil))
	offsets := make([]int, size)

	for i, src := range order {
		num := i + 1
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", num)

		s := &serializer{buf: &buf, refs: mapRef}
		if sh != nil {
			s.crypt = func(b []byte) []byte { return sh.encrypt(b, num, 0) }
		}
		obj := d.objects[src]
		if stream, ok := obj.(Stream); ok {
			dict, data, err := prepareStream(stream, opts)
			if err != nil {
				return fmt.Errorf("object %d: %w", src, err)
			}
			if sh != nil {
				data = sh.encrypt(data, num, 0)
			}
			dict["Length"] = Integer(len(data))
			s.write(dict)
			buf.WriteString("\nstream\n")
			buf.Write(data)
			buf.WriteString("\nendstream")
		} else {
			s.write(obj)
		}
		buf.WriteString("\nendobj\n")
	}

	encNum := 0
	if sh != nil {
		encNum = size - 1
		offsets[encNum] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", encNum)
		buf.Write(Serialize(encDict))
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := Dictionary{
		"Size": Integer(size),
		"Root": Reference{ObjectNumber: numbers[rootRef.ObjectNumber]},
		"ID":   id,
	}
	if hasInfo {
		trailer["Info"] = Reference{ObjectNumber: numbers[infoRef.ObjectNumber]}
	}
	if encNum > 0 {
		trailer["Encrypt"] = Reference{ObjectNumber: encNum}
	}
	buf.WriteString("trailer\n")
	buf.Write(Serialize(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := w.Write(buf.Bytes())
	return err
}

// prepareStream returns the dictionary and data to write for a stream,
// compressed or uncompressed as requested
func prepareStream(s Stream, opts WriteOptions) (Dictionary, []byte, error) {
	dict := s.Dictionary.Clone()
	data := s.Data
	filters := s.Filters()

	switch {
	case opts.Uncompress && len(filters) > 0 && canDecode(filters):
		decoded, err := s.Decode()
		if err != nil {
			// leave a stream we cannot decode as it is
			return dict, data, nil
		}
		data = decoded
		dict.Delete("Filter")
		dict.Delete("DecodeParms")
	case opts.Compress && len(filters) == 0:
		if t, _ := dict.GetName("Type"); t == "Metadata" {
			break
		}
		encoded, err := flateEncode(data)
		if err != nil {
			return nil, nil, err
		}
		data = encoded
		dict["Filter"] = Name("FlateDecode")
	}
	return dict, data, nil
}

func validID(id Array) bool {
	if len(id) != 2 {
		return false
	}
	for _, v := range id {
		if s, ok := v.(String); !ok || len(s.Value) == 0 {
			return false
		}
	}
	return true
}

// outputVersion returns the header version: the input version, raised to
// 1.4 for encrypted output
func outputVersion(version string, encrypted bool) string {
	v, err := strconv.ParseFloat(version, 64)
	if err != nil || v < 1.0 || v > 2.0 {
		return "1.4"
	}
	if encrypted && v < 1.4 {
		return "1.4"
	}
	return version
}
