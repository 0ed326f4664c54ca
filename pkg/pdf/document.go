package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
)

// ErrBadPassword is returned when a password opens an encrypted document
// neither as owner nor as user
var ErrBadPassword = tkerrors.ErrBadPassword

// PageMarker is the page key carrying the 1-based output page number in
// uncompressed output
const PageMarker = "pdftk_PageNum"

// Document represents a PDF document
type Document struct {
	data     []byte
	Version  string
	Trailer  Dictionary
	objects  map[int]Object
	xref     map[int]xrefEntry
	scanned  map[int]xrefEntry
	loading  map[int]bool
	security *SecurityHandler
	owner    bool

	pages     []int
	treeNodes map[int]bool
	maxObject int
}

// inheritable page attributes, pushed down onto every page when loading
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Rectangle represents a PDF rectangle
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the rectangle width
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the rectangle height
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Rotate returns the rectangle turned by a quarter, with its axes swapped
func (r Rectangle) Rotate() Rectangle {
	return Rectangle{LLX: r.LLY, LLY: r.LLX, URX: r.URY, URY: r.URX}
}

// Array returns the rectangle as a PDF array
func (r Rectangle) Array() Array {
	return Array{Real(r.LLX), Real(r.LLY), Real(r.URX), Real(r.URY)}
}

// OpenFile opens a PDF file with a password; an empty password is tried
// as the user password of an encrypted file
func OpenFile(filename, password string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewDocumentWithPassword(data, password)
}

// NewDocument creates a new document from PDF data
func NewDocument(data []byte) (*Document, error) {
	return NewDocumentWithPassword(data, "")
}

// NewDocumentWithPassword parses data and authenticates with password.
// Strings and streams are decrypted as objects load.
func NewDocumentWithPassword(data []byte, password string) (*Document, error) {
	doc := &Document{data: data, owner: true}
	if err := doc.parse("%PDF-"); err != nil {
		return nil, err
	}
	if err := doc.authenticate(password); err != nil {
		return nil, err
	}
	if err := doc.loadPages(); err != nil {
		return nil, err
	}
	return doc, nil
}

// newEmptyDocument returns a document with a catalog and an empty page tree
func newEmptyDocument() *Document {
	d := &Document{
		Version:   "1.4",
		owner:     true,
		objects:   make(map[int]Object),
		xref:      make(map[int]xrefEntry),
		loading:   make(map[int]bool),
		treeNodes: make(map[int]bool),
	}
	pages := d.Add(Dictionary{"Type": Name("Pages"), "Kids": Array{}, "Count": Integer(0)})
	root := d.Add(Dictionary{"Type": Name("Catalog"), "Pages": pages})
	d.treeNodes[pages.ObjectNumber] = true
	d.Trailer = Dictionary{"Root": root}
	return d
}

// parse reads the header, xref and trailer
func (d *Document) parse(header string) error {
	d.objects = make(map[int]Object)
	d.xref = make(map[int]xrefEntry)
	d.loading = make(map[int]bool)

	start := bytes.Index(d.data[:min(len(d.data), 1024)], []byte(header))
	if start < 0 {
		return fmt.Errorf("not a %s file", strings.Trim(header, "%-"))
	}
	if start > 0 {
		// junk before the header shifts every offset
		d.data = d.data[start:]
	}
	line := d.data[len(header):]
	end := bytes.IndexAny(line, "\r\n")
	if end < 0 || end > 16 {
		end = min(len(line), 3)
	}
	d.Version = strings.TrimSpace(string(line[:end]))

	offset, err := d.findStartXRef()
	if err == nil {
		err = d.parseXRef(offset, map[int]bool{})
	}
	if err == nil {
		if _, ok := d.Trailer.Get("Root").(Reference); !ok {
			err = errors.New("missing Root in trailer")
		}
	}
	if err != nil {
		if rerr := d.reconstruct(); rerr != nil {
			return fmt.Errorf("%v; %w", err, rerr)
		}
	}
	for num := range d.xref {
		d.maxObject = max(d.maxObject, num)
	}
	for num := range d.scanObjects() {
		d.maxObject = max(d.maxObject, num)
	}
	return nil
}

// authenticate sets up decryption and owner authorization
func (d *Document) authenticate(password string) error {
	sh, err := ParseEncryption(d)
	if err != nil {
		return err
	}
	if sh == nil {
		return nil
	}
	ok, owner := sh.Authenticate(password)
	if !ok {
		return ErrBadPassword
	}
	d.security = sh
	d.owner = owner
	// cached objects were loaded before the key was known
	for num := range d.objects {
		if num != sh.dictNumber {
			delete(d.objects, num)
		}
	}
	return nil
}

// ResolveObject resolves an object, following references
func (d *Document) ResolveObject(obj Object) (Object, error) {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj, nil
		}
		var err error
		obj, err = d.GetObject(ref.ObjectNumber)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.New("reference chain too long")
}

// resolve is ResolveObject with failures mapped to null
func (d *Document) resolve(obj Object) Object {
	out, err := d.ResolveObject(obj)
	if err != nil || out == nil {
		return Null{}
	}
	return out
}

// resolveDict resolves an object to a Dictionary
func resolveDict(doc *Document, obj Object) (Dictionary, bool) {
	dict, ok := doc.resolve(obj).(Dictionary)
	return dict, ok
}

// resolveArray resolves an object to an Array
func resolveArray(doc *Document, obj Object) (Array, bool) {
	arr, ok := doc.resolve(obj).(Array)
	return arr, ok
}

// resolveNumber resolves an object to a float
func resolveNumber(doc *Document, obj Object) (float64, bool) {
	switch v := doc.resolve(obj).(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// GetObject gets an object by number
func (d *Document) GetObject(objNum int) (Object, error) {
	if obj, ok := d.objects[objNum]; ok {
		return obj, nil
	}
	entry, ok := d.xref[objNum]
	if !ok || !entry.InUse {
		return Null{}, nil
	}
	if d.loading[objNum] {
		return Null{}, nil
	}
	d.loading[objNum] = true
	defer delete(d.loading, objNum)

	var obj Object
	var err error
	if entry.StreamObjNum > 0 {
		obj, err = d.getCompressedObject(objNum, entry.StreamObjNum, entry.Index)
	} else {
		obj, err = d.getUncompressedObject(objNum, entry)
	}
	if err != nil {
		return nil, err
	}
	d.objects[objNum] = obj
	return obj, nil
}

// getUncompressedObject reads an object at its xref offset, falling back
// to a scan of the file when the offset is wrong
func (d *Document) getUncompressedObject(objNum int, entry xrefEntry) (Object, error) {
	num, gen, obj, err := d.parseAt(entry.Offset)
	if err != nil || num != objNum {
		found, ok := d.scanObjects()[objNum]
		if !ok {
			if err == nil {
				err = fmt.Errorf("object %d not found at offset %d", objNum, entry.Offset)
			}
			return nil, err
		}
		num, gen, obj, err = d.parseAt(found.Offset)
		if err != nil {
			return nil, err
		}
	}
	if d.security != nil && num != d.security.dictNumber {
		obj = d.security.decryptObject(obj, num, gen)
	}
	return obj, nil
}

func (d *Document) parseAt(offset int) (int, int, Object, error) {
	if offset < 0 || offset >= len(d.data) {
		return 0, 0, nil, fmt.Errorf("offset %d outside the file", offset)
	}
	p := newParserAt(d.data, offset)
	p.length = d.streamLength
	return p.ParseIndirectObject()
}

// streamLength resolves an indirect stream Length
func (d *Document) streamLength(ref Reference) (int, bool) {
	obj, err := d.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Integer)
	return int(n), ok
}

// getCompressedObject reads an object from an object stream
func (d *Document) getCompressedObject(objNum, streamObjNum, index int) (Object, error) {
	streamObj, err := d.GetObject(streamObjNum)
	if err != nil {
		return nil, err
	}
	stream, ok := streamObj.(Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", streamObjNum)
	}
	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}
	first, ok1 := stream.Dictionary.GetInt("First")
	n, ok2 := stream.Dictionary.GetInt("N")
	if !ok1 || !ok2 || int(first) > len(data) {
		return nil, fmt.Errorf("object stream %d missing First or N", streamObjNum)
	}

	header := NewParser(data[:first])
	offset := -1
	for i := 0; i < int(n); i++ {
		numObj, err1 := header.ParseObject()
		offObj, err2 := header.ParseObject()
		if err1 != nil || err2 != nil {
			break
		}
		num, _ := numObj.(Integer)
		off, _ := offObj.(Integer)
		if int(num) == objNum {
			offset = int(off)
			if i == index {
				break
			}
		}
	}
	if offset < 0 || int(first)+offset > len(data) {
		return nil, fmt.Errorf("object %d not in object stream %d", objNum, streamObjNum)
	}
	return NewParser(data[int(first)+offset:]).ParseObject()
}

// Add stores obj under a fresh object number
func (d *Document) Add(obj Object) Reference {
	d.maxObject++
	d.objects[d.maxObject] = obj
	d.xref[d.maxObject] = xrefEntry{InUse: true}
	return Reference{ObjectNumber: d.maxObject}
}

// SetObject replaces the object stored under ref
func (d *Document) SetObject(ref Reference, obj Object) {
	d.objects[ref.ObjectNumber] = obj
	d.xref[ref.ObjectNumber] = xrefEntry{InUse: true}
	d.maxObject = max(d.maxObject, ref.ObjectNumber)
}

// Catalog returns the document catalog
func (d *Document) Catalog() Dictionary {
	root, ok := resolveDict(d, d.Trailer.Get("Root"))
	if !ok {
		return Dictionary{}
	}
	return root
}

// Info returns the document information dictionary, or nil
func (d *Document) Info() Dictionary {
	info, ok := resolveDict(d, d.Trailer.Get("Info"))
	if !ok {
		return nil
	}
	return info
}

// SetInfo stores info as the document information dictionary
func (d *Document) SetInfo(info Dictionary) {
	if ref, ok := d.Trailer.Get("Info").(Reference); ok {
		d.SetObject(ref, info)
		return
	}
	d.Trailer["Info"] = d.Add(info)
}

// ID returns the two file identifiers, or nil when the file has none
func (d *Document) ID() Array {
	arr, ok := resolveArray(d, d.Trailer.Get("ID"))
	if !ok || len(arr) != 2 {
		return nil
	}
	return arr
}

// loadPages flattens the page tree, pushing inherited attributes down onto
// the pages
func (d *Document) loadPages() error {
	root := d.Catalog()
	ref, ok := root.Get("Pages").(Reference)
	if !ok {
		return errors.New("missing Pages in catalog")
	}
	d.pages = nil
	d.treeNodes = make(map[int]bool)
	return d.loadPagesNode(ref, Dictionary{}, map[int]bool{})
}

func (d *Document) loadPagesNode(ref Reference, inherited Dictionary, seen map[int]bool) error {
	if seen[ref.ObjectNumber] {
		return fmt.Errorf("page tree loop at object %d", ref.ObjectNumber)
	}
	seen[ref.ObjectNumber] = true

	node, ok := resolveDict(d, ref)
	if !ok {
		return nil
	}
	kids, isTree := resolveArray(d, node.Get("Kids"))
	if t, _ := node.GetName("Type"); t == "Page" {
		isTree = false
	}

	if !isTree {
		for _, key := range inheritable {
			if node.Get(key) == nil && inherited.Get(key) != nil {
				node.Set(key, inherited.Get(key))
			}
		}
		d.pages = append(d.pages, ref.ObjectNumber)
		return nil
	}

	d.treeNodes[ref.ObjectNumber] = true
	next := inherited.Clone()
	for _, key := range inheritable {
		if v := node.Get(key); v != nil {
			next.Set(key, v)
		}
	}
	for i, kid := range kids {
		kidRef, ok := kid.(Reference)
		if !ok {
			dict, isDict := kid.(Dictionary)
			if !isDict {
				continue
			}
			kidRef = d.Add(dict)
			kids[i] = kidRef
		}
		if err := d.loadPagesNode(kidRef, next, seen); err != nil {
			return err
		}
	}
	return nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return len(d.pages)
}

// NumPages returns the number of pages
func (d *Document) NumPages() int {
	return len(d.pages)
}

// PageRef returns the reference of page num (1-based)
func (d *Document) PageRef(num int) (Reference, error) {
	if num < 1 || num > len(d.pages) {
		return Reference{}, fmt.Errorf("page %d out of range", num)
	}
	return Reference{ObjectNumber: d.pages[num-1]}, nil
}

// Page returns the dictionary of page num (1-based)
func (d *Document) Page(num int) (Dictionary, error) {
	ref, err := d.PageRef(num)
	if err != nil {
		return nil, err
	}
	page, ok := resolveDict(d, ref)
	if !ok {
		return nil, fmt.Errorf("page %d is not a dictionary", num)
	}
	return page, nil
}

// pageNumber reports whether objNum is a page leaf, and its 1-based number
func (d *Document) pageNumber(objNum int) (int, bool) {
	for i, n := range d.pages {
		if n == objNum {
			return i + 1, true
		}
	}
	return 0, false
}

// PageRotation returns the rotation of page num in degrees, in [0, 360)
func (d *Document) PageRotation(num int) (int, error) {
	page, err := d.Page(num)
	if err != nil {
		return 0, err
	}
	r, _ := resolveNumber(d, page.Get("Rotate"))
	return ((int(r)%360)+360)%360, nil
}

// SetPageRotation sets the rotation of page num; a zero rotation removes
// the Rotate key
func (d *Document) SetPageRotation(num, degrees int) error {
	page, err := d.Page(num)
	if err != nil {
		return err
	}
	degrees = ((degrees % 360) + 360) % 360
	if degrees == 0 {
		page.Delete("Rotate")
		return nil
	}
	page.Set("Rotate", Integer(degrees))
	return nil
}

// PageBox returns the named box of page num. CropBox defaults to the
// MediaBox and MediaBox defaults to US Letter.
func (d *Document) PageBox(num int, box string) Rectangle {
	page, err := d.Page(num)
	if err != nil {
		return Rectangle{}
	}
	if arr, ok := resolveArray(d, page.Get(box)); ok && len(arr) == 4 {
		return d.arrayToRectangle(arr)
	}
	if box != "MediaBox" {
		return d.PageBox(num, "MediaBox")
	}
	return Rectangle{URX: 612, URY: 792}
}

// arrayToRectangle converts a PDF array to a normalized Rectangle
func (d *Document) arrayToRectangle(arr Array) Rectangle {
	var v [4]float64
	for i := 0; i < 4 && i < len(arr); i++ {
		v[i], _ = resolveNumber(d, arr[i])
	}
	return Rectangle{
		LLX: min(v[0], v[2]), LLY: min(v[1], v[3]),
		URX: max(v[0], v[2]), URY: max(v[1], v[3]),
	}
}

// MarkPages stores each page's own number under PageMarker
func (d *Document) MarkPages() {
	for i := range d.pages {
		if page, err := d.Page(i + 1); err == nil {
			page.Set(PageMarker, Integer(i+1))
		}
	}
}

// UnmarkPages removes PageMarker from every page
func (d *Document) UnmarkPages() {
	for i := range d.pages {
		if page, err := d.Page(i + 1); err == nil {
			page.Delete(PageMarker)
		}
	}
}

// OwnerAuthorized reports whether the document is unencrypted or was opened
// with its owner password
func (d *Document) OwnerAuthorized() bool {
	return d.owner
}

// IsEncrypted returns true if the document is encrypted
func (d *Document) IsEncrypted() bool {
	return d.Trailer.Get("Encrypt") != nil
}

// Normalize loads every object reachable from the trailer and drops
// unreachable ones from the cache. Objects that fail to load become null.
func (d *Document) Normalize() error {
	if _, ok := resolveDict(d, d.Trailer.Get("Root")); !ok {
		return errors.New("document has no catalog")
	}
	seen := make(map[int]bool)
	var roots []Object
	for _, k := range d.Trailer.Keys() {
		switch k {
		case "Encrypt", "Prev", "XRefStm":
			continue
		}
		roots = append(roots, d.Trailer[k])
	}
	d.walk(roots, func(num int) {
		seen[num] = true
	})
	for num := range d.objects {
		if !seen[num] {
			delete(d.objects, num)
		}
	}
	return nil
}

// walk visits every object number reachable from the roots in a stable
// depth-first order, loading each object
func (d *Document) walk(roots []Object, visit func(num int)) {
	seen := make(map[int]bool)
	var stack []Object
	push := func(objs ...Object) {
		for i := len(objs) - 1; i >= 0; i-- {
			stack = append(stack, objs[i])
		}
	}
	pushDict := func(dict Dictionary) {
		keys := dict.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			stack = append(stack, dict[keys[i]])
		}
	}
	push(roots...)
	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := obj.(type) {
		case Reference:
			if seen[v.ObjectNumber] {
				continue
			}
			seen[v.ObjectNumber] = true
			loaded, err := d.GetObject(v.ObjectNumber)
			if err != nil || loaded == nil {
				loaded = Null{}
				d.objects[v.ObjectNumber] = loaded
			}
			visit(v.ObjectNumber)
			push(loaded)
		case Array:
			push(v...)
		case Dictionary:
			pushDict(v)
		case Stream:
			pushDict(v.Dictionary)
		}
	}
}

// Close closes the document
func (d *Document) Close() error {
	d.data = nil
	d.objects = nil
	d.xref = nil
	d.scanned = nil
	return nil
}

// pageContents returns the decoded, concatenated content streams of a page
func (d *Document) pageContents(page Dictionary) ([]byte, error) {
	switch contents := d.resolve(page.Get("Contents")).(type) {
	case Stream:
		return contents.Decode()
	case Array:
		var buf bytes.Buffer
		for _, ref := range contents {
			stream, ok := d.resolve(ref).(Stream)
			if !ok {
				continue
			}
			data, err := stream.Decode()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	case Null:
		return nil, nil
	}
	return nil, errors.New("invalid Contents type")
}

// pdfDate formats t in PDF date syntax, D:YYYYMMDDHHmmSSOHH'mm'
func pdfDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("D:%s%c%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, offset%3600/60)
}

// parsePDFDate parses a PDF date string (D:YYYYMMDDHHmmSSOHH'mm')
func parsePDFDate(s string) time.Time {
	s = strings.TrimPrefix(s, "D:")
	if len(s) < 4 {
		return time.Time{}
	}
	field := func(from, to, def int) int {
		if len(s) < to {
			return def
		}
		v, err := strconv.Atoi(s[from:to])
		if err != nil {
			return def
		}
		return v
	}
	year := field(0, 4, 0)
	month, day := field(4, 6, 1), field(6, 8, 1)
	hour, minute, sec := field(8, 10, 0), field(10, 12, 0), field(12, 14, 0)

	offset := 0
	if len(s) >= 15 && (s[14] == '+' || s[14] == '-') {
		offset = field(15, 17, 0)*3600 + field(18, 20, 0)*60
		if s[14] == '-' {
			offset = -offset
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.FixedZone("", offset))
}
