package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// xrefEntry represents an entry in the cross-reference table
type xrefEntry struct {
	Offset     int
	Generation int
	InUse      bool
	// For objects stored in an object stream
	StreamObjNum int
	Index        int
}

var errNoXRef = errors.New("startxref not found")

// findStartXRef finds the offset named by the last startxref keyword
func (d *Document) findStartXRef() (int, error) {
	tail := d.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errNoXRef
	}
	rest := bytes.TrimLeft(tail[idx+len("startxref"):], "\x00\t\n\f\r ")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	offset, err := strconv.Atoi(string(rest[:end]))
	if err != nil || offset <= 0 || offset >= len(d.data) {
		return 0, fmt.Errorf("invalid startxref offset")
	}
	return offset, nil
}

// parseXRef parses the xref section at offset and every earlier section
// linked through Prev
func (d *Document) parseXRef(offset int, seen map[int]bool) error {
	if seen[offset] {
		return nil
	}
	seen[offset] = true

	pos := offset
	for pos < len(d.data) && isWhitespace(d.data[pos]) {
		pos++
	}

	var trailer Dictionary
	var err error
	if bytes.HasPrefix(d.data[pos:], []byte("xref")) {
		trailer, err = d.parseXRefTable(pos)
	} else {
		trailer, err = d.parseXRefStream(pos)
	}
	if err != nil {
		return err
	}

	// Entries and keys seen first belong to the newest revision.
	if d.Trailer == nil {
		d.Trailer = Dictionary{}
	}
	for k, v := range trailer {
		if _, exists := d.Trailer[k]; !exists {
			d.Trailer[k] = v
		}
	}

	if stm, ok := trailer.GetInt("XRefStm"); ok {
		if err := d.parseXRef(int(stm), seen); err != nil {
			return err
		}
	}
	if prev, ok := trailer.GetInt("Prev"); ok {
		return d.parseXRef(int(prev), seen)
	}
	return nil
}

// parseXRefTable parses a classic xref table and returns its trailer
func (d *Document) parseXRefTable(offset int) (Dictionary, error) {
	lexer := NewLexer(d.data)
	lexer.Seek(offset + len("xref"))

	start := 0
	for {
		if lexer.eof() {
			return nil, fmt.Errorf("xref table at %d has no trailer", offset)
		}
		lineStart := lexer.Position()
		line := bytes.TrimSpace(lexer.ReadLine())
		if len(line) == 0 {
			continue
		}
		if bytes.HasPrefix(line, []byte("trailer")) {
			lexer.Seek(lineStart + bytes.Index(d.data[lineStart:], []byte("trailer")) + len("trailer"))
			break
		}

		fields := bytes.Fields(line)
		switch len(fields) {
		case 2:
			n, err := strconv.Atoi(string(fields[0]))
			if err != nil {
				return nil, fmt.Errorf("bad xref subsection header %q", line)
			}
			start = n
		case 3:
			off, _ := strconv.Atoi(string(fields[0]))
			gen, _ := strconv.Atoi(string(fields[1]))
			if _, exists := d.xref[start]; !exists {
				d.xref[start] = xrefEntry{
					Offset:     off,
					Generation: gen,
					InUse:      len(fields[2]) > 0 && fields[2][0] == 'n',
				}
			}
			start++
		default:
			return nil, fmt.Errorf("bad xref line %q", line)
		}
	}

	parser := &Parser{lexer: lexer}
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := obj.(Dictionary)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary")
	}
	return trailer, nil
}

// parseXRefStream parses a cross-reference stream and returns its
// dictionary as the trailer
func (d *Document) parseXRefStream(offset int) (Dictionary, error) {
	_, _, obj, err := newParserAt(d.data, offset).ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(Stream)
	if !ok {
		return nil, fmt.Errorf("xref stream expected at offset %d", offset)
	}
	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	wArray, ok := stream.Dictionary.GetArray("W")
	if !ok || len(wArray) != 3 {
		return nil, fmt.Errorf("invalid xref stream W array")
	}
	var w [3]int
	for i, v := range wArray {
		if n, ok := v.(Integer); ok {
			w[i] = int(n)
		}
	}

	var index []int
	if arr, ok := stream.Dictionary.GetArray("Index"); ok {
		for _, v := range arr {
			if n, ok := v.(Integer); ok {
				index = append(index, int(n))
			}
		}
	} else if size, ok := stream.Dictionary.GetInt("Size"); ok {
		index = []int{0, int(size)}
	}

	size := w[0] + w[1] + w[2]
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for j := 0; j < index[i+1] && pos+size <= len(data); j++ {
			entry := data[pos : pos+size]
			pos += size

			typ := readXRefField(entry, 0, w[0])
			if w[0] == 0 {
				typ = 1
			}
			f2 := readXRefField(entry, w[0], w[1])
			f3 := readXRefField(entry, w[0]+w[1], w[2])

			num := index[i] + j
			if _, exists := d.xref[num]; exists {
				continue
			}
			switch typ {
			case 0:
				d.xref[num] = xrefEntry{}
			case 1:
				d.xref[num] = xrefEntry{Offset: f2, Generation: f3, InUse: true}
			case 2:
				d.xref[num] = xrefEntry{StreamObjNum: f2, Index: f3, InUse: true}
			}
		}
	}
	return stream.Dictionary, nil
}

// readXRefField reads a big-endian field from an xref stream entry
func readXRefField(data []byte, offset, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(data[offset+i])
	}
	return v
}

var objHeader = regexp.MustCompile(`(?m)(\d+)[\x00\t\f\r\n ]+(\d+)[\x00\t\f\r\n ]+obj\b`)

// scanObjects finds every "num gen obj" header in the file. Later
// definitions win, as in an incremental update.
func (d *Document) scanObjects() map[int]xrefEntry {
	if d.scanned != nil {
		return d.scanned
	}
	d.scanned = make(map[int]xrefEntry)
	for _, m := range objHeader.FindAllSubmatchIndex(d.data, -1) {
		if m[0] > 0 && !isWhitespace(d.data[m[0]-1]) && !isDelimiter(d.data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(d.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(d.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		d.scanned[num] = xrefEntry{Offset: m[0], Generation: gen, InUse: true}
	}
	return d.scanned
}

// reconstruct rebuilds the xref and trailer of a damaged file, or of an
// FDF file that has no xref at all
func (d *Document) reconstruct() error {
	d.xref = make(map[int]xrefEntry)
	d.objects = make(map[int]Object)
	for num, e := range d.scanObjects() {
		d.xref[num] = e
	}

	trailer := Dictionary{}
	marker := []byte("trailer")
	for pos := len(d.data); ; {
		idx := bytes.LastIndex(d.data[:pos], marker)
		if idx < 0 {
			break
		}
		p := newParserAt(d.data, idx+len(marker))
		if obj, err := p.ParseObject(); err == nil {
			if dict, ok := obj.(Dictionary); ok {
				for k, v := range dict {
					if _, exists := trailer[k]; !exists {
						trailer[k] = v
					}
				}
			}
		}
		pos = idx
	}
	delete(trailer, "Prev")
	delete(trailer, "XRefStm")
	d.Trailer = trailer

	if _, ok := d.Trailer.Get("Root").(Reference); ok {
		return nil
	}
	for num := range d.xref {
		obj, err := d.GetObject(num)
		if err != nil {
			continue
		}
		var dict Dictionary
		switch v := obj.(type) {
		case Dictionary:
			dict = v
		case Stream:
			dict = v.Dictionary
		}
		if t, _ := dict.GetName("Type"); t == "Catalog" {
			d.Trailer["Root"] = Reference{ObjectNumber: num}
			return nil
		}
		if r, ok := dict.Get("Root").(Reference); ok {
			d.Trailer["Root"] = r
		}
	}
	if _, ok := d.Trailer.Get("Root").(Reference); !ok {
		return errors.New("no document catalog found")
	}
	return nil
}
