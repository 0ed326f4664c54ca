package pdf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Field flags
const (
	FieldReadOnly   = 1 << 0
	FieldRequired   = 1 << 1
	FieldNoExport   = 1 << 2
	FieldMultiline  = 1 << 12
	FieldPassword   = 1 << 13
	FieldNoToggle   = 1 << 14
	FieldRadio      = 1 << 15
	FieldPushButton = 1 << 16
	FieldCombo      = 1 << 17
)

// FormField represents a terminal AcroForm field
type FormField struct {
	Name          string // fully qualified name
	AltName       string // TU
	Type          string // Tx, Btn, Ch, Sig
	Value         string
	DefaultValue  string
	Flags         int
	Justification int
	MaxLen        int
	// States holds the appearance states of a button or the export values
	// of a choice field
	States []string

	num     int // object number of the field, 0 when direct
	dict    Dictionary
	widgets []widget
}

// widget is one widget annotation of a field
type widget struct {
	num  int // object number, 0 when direct
	dict Dictionary
}

// fieldInherit holds the inheritable field attributes of an ancestor
type fieldInherit struct {
	ft     Name
	ff     int
	v, dv  Object
	q      int
	maxLen int
}

// acroForm returns the interactive form dictionary, or nil
func (d *Document) acroForm() Dictionary {
	form, ok := resolveDict(d, d.Catalog().Get("AcroForm"))
	if !ok {
		return nil
	}
	return form
}

// HasForm returns true if the document has a form
func (d *Document) HasForm() bool {
	return d.acroForm() != nil
}

// IsXFA returns true if the form carries XFA data
func (d *Document) IsXFA() bool {
	form := d.acroForm()
	return form != nil && form.Get("XFA") != nil
}

// GetFormFields returns the terminal form fields in document order
func (d *Document) GetFormFields() []*FormField {
	form := d.acroForm()
	if form == nil {
		return nil
	}
	roots, ok := resolveArray(d, form.Get("Fields"))
	if !ok {
		return nil
	}
	var fields []*FormField
	seen := make(map[int]bool)
	for _, root := range roots {
		d.collectField(root, "", fieldInherit{}, &fields, seen)
	}
	return fields
}

func (d *Document) collectField(obj Object, parent string, inh fieldInherit, out *[]*FormField, seen map[int]bool) {
	num := 0
	if ref, ok := obj.(Reference); ok {
		if seen[ref.ObjectNumber] {
			return
		}
		seen[ref.ObjectNumber] = true
		num = ref.ObjectNumber
	}
	dict, ok := resolveDict(d, obj)
	if !ok {
		return
	}

	name := parent
	if t, ok := d.resolve(dict.Get("T")).(String); ok {
		if name != "" {
			name += "."
		}
		name += t.Text()
	}

	// Inheritable attributes
	if ft, ok := dict.GetName("FT"); ok {
		inh.ft = ft
	}
	if ff, ok := dict.GetInt("Ff"); ok {
		inh.ff = int(ff)
	}
	if v := dict.Get("V"); v != nil {
		inh.v = v
	}
	if dv := dict.Get("DV"); dv != nil {
		inh.dv = dv
	}
	if q, ok := dict.GetInt("Q"); ok {
		inh.q = int(q)
	}
	if ml, ok := dict.GetInt("MaxLen"); ok {
		inh.maxLen = int(ml)
	}

	kids, _ := resolveArray(d, dict.Get("Kids"))
	var children []Object
	var widgets []widget
	for _, kid := range kids {
		kd, ok := resolveDict(d, kid)
		if !ok {
			continue
		}
		if kd.Get("T") != nil {
			children = append(children, kid)
			continue
		}
		w := widget{dict: kd}
		if ref, ok := kid.(Reference); ok {
			w.num = ref.ObjectNumber
		}
		widgets = append(widgets, w)
	}

	if len(children) > 0 {
		for _, child := range children {
			d.collectField(child, name, inh, out, seen)
		}
		return
	}

	if len(kids) == 0 {
		widgets = []widget{{num: num, dict: dict}}
	}
	field := &FormField{
		Name:          name,
		Type:          string(inh.ft),
		Value:         d.fieldText(inh.v),
		DefaultValue:  d.fieldText(inh.dv),
		Flags:         inh.ff,
		Justification: inh.q,
		MaxLen:        inh.maxLen,
		num:           num,
		dict:          dict,
		widgets:       widgets,
	}
	if tu, ok := d.resolve(dict.Get("TU")).(String); ok {
		field.AltName = tu.Text()
	}
	field.States = d.fieldStates(field, dict)
	*out = append(*out, field)
}

// fieldText converts a field value to text
func (d *Document) fieldText(obj Object) string {
	switch v := d.resolve(obj).(type) {
	case String:
		return v.Text()
	case Name:
		return string(v)
	case Array:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, d.fieldText(item))
		}
		return strings.Join(parts, ", ")
	case Stream:
		data, _ := v.Decode()
		return string(data)
	}
	return ""
}

func (d *Document) fieldStates(field *FormField, dict Dictionary) []string {
	var states []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			states = append(states, s)
		}
	}

	switch field.Type {
	case "Btn":
		for _, w := range field.widgets {
			ap, _ := resolveDict(d, w.dict.Get("AP"))
			normal, _ := resolveDict(d, ap.Get("N"))
			for _, k := range normal.Keys() {
				add(string(k))
			}
		}
	case "Ch":
		opts, _ := resolveArray(d, dict.Get("Opt"))
		for _, o := range opts {
			switch ov := d.resolve(o).(type) {
			case String:
				add(ov.Text())
			case Array:
				if len(ov) > 0 {
					add(d.fieldText(ov[0]))
				}
			}
		}
	}
	return states
}

// FormData maps fully qualified field names to values
type FormData map[string]string

// ParseFormData reads FDF or XFDF form data
func ParseFormData(data []byte) (FormData, error) {
	if bytes.Contains(data[:min(len(data), 1024)], []byte("%FDF-")) {
		return parseFDF(data)
	}
	if fd, err := parseXFDF(data); err == nil {
		return fd, nil
	}
	return nil, errors.New("form data is neither FDF nor XFDF")
}

// parseFDF reads the fields of an FDF file
func parseFDF(data []byte) (FormData, error) {
	doc := &Document{data: data, owner: true}
	if err := doc.parse("%FDF-"); err != nil {
		return nil, err
	}
	fdf, ok := resolveDict(doc, doc.Catalog().Get("FDF"))
	if !ok {
		return nil, errors.New("FDF catalog has no FDF dictionary")
	}
	out := make(FormData)
	fields, _ := resolveArray(doc, fdf.Get("Fields"))
	for _, f := range fields {
		doc.collectFDFField(f, "", out, 0)
	}
	return out, nil
}

func (d *Document) collectFDFField(obj Object, parent string, out FormData, depth int) {
	dict, ok := resolveDict(d, obj)
	if !ok || depth > 32 {
		return
	}
	name := parent
	if t, ok := d.resolve(dict.Get("T")).(String); ok {
		if name != "" {
			name += "."
		}
		name += t.Text()
	}
	if v := dict.Get("V"); v != nil {
		out[name] = d.fieldText(v)
	}
	kids, _ := resolveArray(d, dict.Get("Kids"))
	for _, kid := range kids {
		d.collectFDFField(kid, name, out, depth+1)
	}
}

type xfdfField struct {
	Name   string      `xml:"name,attr"`
	Values []string    `xml:"value"`
	Fields []xfdfField `xml:"field"`
}

type xfdfDocument struct {
	XMLName xml.Name    `xml:"xfdf"`
	Fields  []xfdfField `xml:"fields>field"`
}

// parseXFDF reads the fields of an XFDF document
func parseXFDF(data []byte) (FormData, error) {
	var doc xfdfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(FormData)
	var walk func(fields []xfdfField, parent string)
	walk = func(fields []xfdfField, parent string) {
		for _, f := range fields {
			name := f.Name
			if parent != "" {
				name = parent + "." + f.Name
			}
			if len(f.Values) > 0 {
				out[name] = strings.Join(f.Values, ", ")
			}
			walk(f.Fields, name)
		}
	}
	walk(doc.Fields, "")
	return out, nil
}

// FillForm sets field values from data and returns how many fields were
// filled. Text fields get a plain appearance; viewers are asked to
// regenerate appearances unless the form will be flattened.
func (d *Document) FillForm(data FormData, needAppearances bool) (int, error) {
	form := d.acroForm()
	if form == nil {
		return 0, errors.New("document has no form")
	}
	filled := 0
	for _, field := range d.GetFormFields() {
		value, ok := data[field.Name]
		if !ok {
			continue
		}
		switch field.Type {
		case "Btn":
			if field.Flags&FieldPushButton != 0 {
				continue
			}
			state := Name(value)
			field.dict["V"] = state
			for _, w := range field.widgets {
				ap, _ := resolveDict(d, w.dict.Get("AP"))
				normal, _ := resolveDict(d, ap.Get("N"))
				if normal.Get(value) != nil {
					w.dict["AS"] = state
				} else {
					w.dict["AS"] = Name("Off")
				}
			}
		case "Tx", "Ch":
			field.dict["V"] = TextString(value)
			for _, w := range field.widgets {
				if ap, ok := d.textAppearance(field, w.dict, value); ok {
					w.dict["AP"] = Dictionary{"N": d.Add(ap)}
				}
			}
		default:
			continue
		}
		filled++
	}
	if needAppearances {
		form["NeedAppearances"] = Boolean(true)
	}
	return filled, nil
}

// textAppearance builds a single-line Helvetica appearance for a text
// value. Values outside Latin-1 get none.
func (d *Document) textAppearance(field *FormField, widget Dictionary, value string) (Stream, bool) {
	rectArr, ok := resolveArray(d, widget.Get("Rect"))
	if !ok || len(rectArr) != 4 {
		return Stream{}, false
	}
	rect := d.arrayToRectangle(rectArr)
	w, h := rect.Width(), rect.Height()
	if w <= 0 || h <= 0 {
		return Stream{}, false
	}

	var text []byte
	for _, r := range value {
		if r > 0xFF {
			return Stream{}, false
		}
		text = append(text, byte(r))
	}
	if field.Flags&FieldPassword != 0 {
		text = bytes.Repeat([]byte("*"), len(text))
	}

	size := min(12, h*0.7)
	width := float64(len(text)) * size * 0.5
	x := 2.0
	switch field.Justification {
	case 1:
		x = max(2, (w-width)/2)
	case 2:
		x = max(2, w-width-2)
	}
	y := (h-size)/2 + size*0.22

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "/Tx BMC\nq\nBT\n/Helv %s Tf\n0 g\n%s %s Td\n(%s) Tj\nET\nQ\nEMC\n",
		formatReal(size), formatReal(x), formatReal(y), escapeLiteral(text))

	return Stream{
		Dictionary: Dictionary{
			"Type":    Name("XObject"),
			"Subtype": Name("Form"),
			"BBox":    Array{Integer(0), Integer(0), Real(w), Real(h)},
			"Resources": Dictionary{
				"Font": Dictionary{
					"Helv": Dictionary{
						"Type":     Name("Font"),
						"Subtype":  Name("Type1"),
						"BaseFont": Name("Helvetica"),
						"Encoding": Name("WinAnsiEncoding"),
					},
				},
			},
		},
		Data: buf.Bytes(),
	}, true
}

// Flatten merges the normal appearance of every visible widget into page
// content and removes the interactive form
func (d *Document) Flatten() error {
	if d.acroForm() == nil {
		return nil
	}
	for num := 1; num <= d.PageCount(); num++ {
		page, err := d.Page(num)
		if err != nil {
			return err
		}
		annots, ok := resolveArray(d, page.Get("Annots"))
		if !ok {
			continue
		}

		var ops bytes.Buffer
		var xobjects Dictionary
		kept := Array{}
		for _, a := range annots {
			annot, ok := resolveDict(d, a)
			if !ok {
				continue
			}
			if st, _ := annot.GetName("Subtype"); st != "Widget" {
				kept = append(kept, a)
				continue
			}
			flags, _ := annot.GetInt("F")
			if flags&2 != 0 {
				continue // hidden
			}
			ref, ok := d.appearanceRef(annot)
			if !ok {
				continue
			}
			stream, ok := d.resolve(ref).(Stream)
			if !ok {
				continue
			}
			rectArr, _ := resolveArray(d, annot.Get("Rect"))
			rect := d.arrayToRectangle(rectArr)
			place, ok := d.formPlacement(stream, rect)
			if !ok {
				continue
			}
			stream.Dictionary["Type"] = Name("XObject")
			stream.Dictionary["Subtype"] = Name("Form")

			if xobjects == nil {
				xobjects = d.pageXObjects(page)
			}
			name := uniqueName(xobjects, "Fm")
			xobjects[name] = ref
			fmt.Fprintf(&ops, "q %s %s Do Q\n", place.Operator(), name)
		}

		if len(kept) > 0 {
			page["Annots"] = kept
		} else {
			page.Delete("Annots")
		}
		if ops.Len() > 0 {
			d.addContent(page, nil, ops.Bytes())
		}
	}
	d.Catalog().Delete("AcroForm")
	return nil
}

// appearanceRef returns the normal appearance stream of a widget,
// selecting the current state of a button
func (d *Document) appearanceRef(annot Dictionary) (Reference, bool) {
	ap, ok := resolveDict(d, annot.Get("AP"))
	if !ok {
		return Reference{}, false
	}
	normal := ap.Get("N")
	if states, ok := resolveDict(d, normal); ok {
		as, _ := annot.GetName("AS")
		normal = states.Get(string(as))
	}
	ref, ok := normal.(Reference)
	return ref, ok
}

// formPlacement returns the matrix that maps a form XObject onto rect
func (d *Document) formPlacement(stream Stream, rect Rectangle) (Matrix, bool) {
	bboxArr, ok := resolveArray(d, stream.Dictionary.Get("BBox"))
	if !ok || len(bboxArr) != 4 {
		return Matrix{}, false
	}
	m := d.matrixFrom(stream.Dictionary.Get("Matrix"))
	box := m.Transform(d.arrayToRectangle(bboxArr))
	if box.Width() == 0 || box.Height() == 0 {
		return Matrix{}, false
	}
	sx := rect.Width() / box.Width()
	sy := rect.Height() / box.Height()
	return Matrix{sx, 0, 0, sy, rect.LLX - box.LLX*sx, rect.LLY - box.LLY*sy}, true
}

// DropXFA removes XFA data from the interactive form
func (d *Document) DropXFA() {
	if form := d.acroForm(); form != nil {
		form.Delete("XFA")
	}
	d.Catalog().Delete("NeedsRendering")
}

// fdfNode is one node of the field hierarchy written to FDF
type fdfNode struct {
	name   string
	value  Object
	kids   []*fdfNode
	byName map[string]*fdfNode
}

func (n *fdfNode) child(name string) *fdfNode {
	if n.byName == nil {
		n.byName = make(map[string]*fdfNode)
	}
	if c, ok := n.byName[name]; ok {
		return c
	}
	c := &fdfNode{name: name}
	n.byName[name] = c
	n.kids = append(n.kids, c)
	return c
}

func (n *fdfNode) object() Dictionary {
	dict := Dictionary{"T": TextString(n.name)}
	if len(n.kids) > 0 {
		kids := make(Array, len(n.kids))
		for i, k := range n.kids {
			kids[i] = k.object()
		}
		dict["Kids"] = kids
	}
	if n.value != nil {
		dict["V"] = n.value
	}
	return dict
}

// GenerateFDF writes an FDF file holding every terminal field with its
// current value
func (d *Document) GenerateFDF(w io.Writer) error {
	root := &fdfNode{}
	for _, f := range d.GetFormFields() {
		node := root
		for _, part := range strings.Split(f.Name, ".") {
			node = node.child(part)
		}
		switch f.Type {
		case "Btn":
			if f.Value != "" {
				node.value = Name(f.Value)
			}
		case "Sig":
		default:
			node.value = TextString(f.Value)
		}
	}

	fields := make(Array, len(root.kids))
	for i, k := range root.kids {
		fields[i] = k.object()
	}
	catalog := Dictionary{"FDF": Dictionary{"Fields": fields}}

	var buf bytes.Buffer
	buf.WriteString("%FDF-1.2\n%\xe2\xe3\xcf\xd3\n1 0 obj \n")
	buf.Write(Serialize(catalog))
	buf.WriteString("\nendobj \ntrailer\n\n<<\n/Root 1 0 R\n>>\n%%EOF\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// FieldNames returns the sorted names in data
func (fd FormData) FieldNames() []string {
	names := make([]string, 0, len(fd))
	for n := range fd {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
