package pdf

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// reportText encodes text for a report: NFC UTF-8, or ASCII with XML
// character references
func reportText(s string, utf8 bool) string {
	if utf8 {
		return norm.NFC.String(s)
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r >= 0x80 || (r < 0x20 && r != '\t'):
			fmt.Fprintf(&b, "&#%d;", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Bookmark is one outline entry
type Bookmark struct {
	Title string
	Level int
	Page  int // 0 when the target is not a page of this document
}

// Bookmarks returns the outline entries in reading order
func (d *Document) Bookmarks() []Bookmark {
	outlines, ok := resolveDict(d, d.Catalog().Get("Outlines"))
	if !ok {
		return nil
	}
	var out []Bookmark
	seen := make(map[int]bool)
	var walk func(first Object, level int)
	walk = func(item Object, level int) {
		for item != nil {
			ref, isRef := item.(Reference)
			if !isRef || seen[ref.ObjectNumber] || level > 64 {
				return
			}
			seen[ref.ObjectNumber] = true
			dict, ok := resolveDict(d, ref)
			if !ok {
				return
			}
			title, _ := d.resolve(dict.Get("Title")).(String)
			out = append(out, Bookmark{Title: title.Text(), Level: level, Page: d.outlinePage(dict)})
			walk(dict.Get("First"), level+1)
			item = dict.Get("Next")
		}
	}
	walk(outlines.Get("First"), 1)
	return out
}

// outlinePage returns the page number an outline item points to
func (d *Document) outlinePage(item Dictionary) int {
	dest := item.Get("Dest")
	if dest == nil {
		if action, ok := resolveDict(d, item.Get("A")); ok {
			if s, _ := action.GetName("S"); s == "GoTo" {
				dest = action.Get("D")
			}
		}
	}
	return d.destPage(dest, 0)
}

func (d *Document) destPage(dest Object, depth int) int {
	if depth > 8 {
		return 0
	}
	switch v := d.resolve(dest).(type) {
	case Array:
		if len(v) == 0 {
			return 0
		}
		if ref, ok := v[0].(Reference); ok {
			n, _ := d.pageNumber(ref.ObjectNumber)
			return n
		}
		if n, ok := v[0].(Integer); ok {
			return int(n) + 1
		}
	case Dictionary:
		return d.destPage(v.Get("D"), depth+1)
	case Name:
		return d.destPage(d.namedDest(string(v)), depth+1)
	case String:
		return d.destPage(d.namedDest(string(v.Value)), depth+1)
	}
	return 0
}

// namedDest looks a destination up in the catalog Dests dictionary and the
// Dests name tree
func (d *Document) namedDest(name string) Object {
	if dests, ok := resolveDict(d, d.Catalog().Get("Dests")); ok {
		if v := dests.Get(name); v != nil {
			return v
		}
	}
	names, ok := resolveDict(d, d.Catalog().Get("Names"))
	if !ok {
		return nil
	}
	var found Object
	d.walkNameTree(names.Get("Dests"), func(key string, value Object) bool {
		if key == name {
			found = value
			return false
		}
		return true
	})
	return found
}

// walkNameTree visits every leaf of a name tree until visit returns false
func (d *Document) walkNameTree(node Object, visit func(key string, value Object) bool) {
	seen := make(map[int]bool)
	var walk func(node Object, depth int) bool
	walk = func(node Object, depth int) bool {
		if ref, ok := node.(Reference); ok {
			if seen[ref.ObjectNumber] {
				return true
			}
			seen[ref.ObjectNumber] = true
		}
		dict, ok := resolveDict(d, node)
		if !ok || depth > 32 {
			return true
		}
		names, _ := resolveArray(d, dict.Get("Names"))
		for i := 0; i+1 < len(names); i += 2 {
			key, _ := d.resolve(names[i]).(String)
			if !visit(string(key.Value), names[i+1]) {
				return false
			}
		}
		kids, _ := resolveArray(d, dict.Get("Kids"))
		for _, kid := range kids {
			if !walk(kid, depth+1) {
				return false
			}
		}
		return true
	}
	walk(node, 0)
}

// PageLabel is one page label range
type PageLabel struct {
	NewIndex int // 1-based first page of the range
	Start    int
	Prefix   string
	NumStyle string
}

var labelStyles = map[Name]string{
	"D": "DecimalArabicNumerals",
	"R": "UppercaseRomanNumerals",
	"r": "LowercaseRomanNumerals",
	"A": "UppercaseLetters",
	"a": "LowercaseLetters",
}

// PageLabels returns the page label ranges
func (d *Document) PageLabels() []PageLabel {
	var out []PageLabel
	var walk func(node Object, depth int)
	walk = func(node Object, depth int) {
		dict, ok := resolveDict(d, node)
		if !ok || depth > 32 {
			return
		}
		nums, _ := resolveArray(d, dict.Get("Nums"))
		for i := 0; i+1 < len(nums); i += 2 {
			idx, _ := d.resolve(nums[i]).(Integer)
			label, _ := resolveDict(d, nums[i+1])
			pl := PageLabel{NewIndex: int(idx) + 1, Start: 1, NumStyle: "NoNumber"}
			if st, ok := label.GetInt("St"); ok {
				pl.Start = int(st)
			}
			if p, ok := d.resolve(label.Get("P")).(String); ok {
				pl.Prefix = p.Text()
			}
			if s, ok := label.GetName("S"); ok {
				if style, known := labelStyles[s]; known {
					pl.NumStyle = style
				}
			}
			out = append(out, pl)
		}
		kids, _ := resolveArray(d, dict.Get("Kids"))
		for _, kid := range kids {
			walk(kid, depth+1)
		}
	}
	walk(d.Catalog().Get("PageLabels"), 0)
	return out
}

// DumpData writes the document report: information dictionary, file
// identifiers, page count, bookmarks, page media and page labels
func (d *Document) DumpData(w io.Writer, utf8 bool) error {
	bw := bufio.NewWriter(w)

	if info := d.Info(); info != nil {
		for _, k := range info.Keys() {
			s, ok := d.resolve(info[k]).(String)
			if !ok {
				continue
			}
			fmt.Fprintln(bw, "InfoBegin")
			fmt.Fprintln(bw, "InfoKey: "+reportText(string(k), utf8))
			fmt.Fprintln(bw, "InfoValue: "+reportText(s.Text(), utf8))
		}
	}

	if id := d.ID(); id != nil {
		for i, v := range id {
			if s, ok := d.resolve(v).(String); ok {
				fmt.Fprintf(bw, "PdfID%d: %s\n", i, hex.EncodeToString(s.Value))
			}
		}
	}

	fmt.Fprintf(bw, "NumberOfPages: %d\n", d.PageCount())

	for _, b := range d.Bookmarks() {
		fmt.Fprintln(bw, "BookmarkBegin")
		fmt.Fprintln(bw, "BookmarkTitle: "+reportText(b.Title, utf8))
		fmt.Fprintf(bw, "BookmarkLevel: %d\n", b.Level)
		fmt.Fprintf(bw, "BookmarkPageNumber: %d\n", b.Page)
	}

	for num := 1; num <= d.PageCount(); num++ {
		rot, _ := d.PageRotation(num)
		media := d.PageBox(num, "MediaBox")
		fmt.Fprintln(bw, "PageMediaBegin")
		fmt.Fprintf(bw, "PageMediaNumber: %d\n", num)
		fmt.Fprintf(bw, "PageMediaRotation: %d\n", rot)
		fmt.Fprintf(bw, "PageMediaRect: %s\n", rectText(media))
		fmt.Fprintf(bw, "PageMediaDimensions: %s %s\n", formatReal(media.Width()), formatReal(media.Height()))
		if page, err := d.Page(num); err == nil && page.Get("CropBox") != nil {
			if crop := d.PageBox(num, "CropBox"); crop != media {
				fmt.Fprintf(bw, "PageMediaCropRect: %s\n", rectText(crop))
			}
		}
	}

	for _, l := range d.PageLabels() {
		fmt.Fprintln(bw, "PageLabelBegin")
		fmt.Fprintf(bw, "PageLabelNewIndex: %d\n", l.NewIndex)
		fmt.Fprintf(bw, "PageLabelStart: %d\n", l.Start)
		if l.Prefix != "" {
			fmt.Fprintln(bw, "PageLabelPrefix: "+reportText(l.Prefix, utf8))
		}
		fmt.Fprintln(bw, "PageLabelNumStyle: "+l.NumStyle)
	}
	return bw.Flush()
}

func rectText(r Rectangle) string {
	return fmt.Sprintf("%s %s %s %s", formatReal(r.LLX), formatReal(r.LLY), formatReal(r.URX), formatReal(r.URY))
}

var fieldTypeNames = map[string]string{
	"Tx":  "Text",
	"Btn": "Button",
	"Ch":  "Choice",
	"Sig": "Signature",
}

var justifications = []string{"Left", "Center", "Right"}

// DumpDataFields writes one record per terminal form field
func (d *Document) DumpDataFields(w io.Writer, utf8 bool) error {
	bw := bufio.NewWriter(w)
	for _, f := range d.GetFormFields() {
		fmt.Fprintln(bw, "---")
		typ, ok := fieldTypeNames[f.Type]
		if !ok {
			typ = "None"
		}
		fmt.Fprintln(bw, "FieldType: "+typ)
		fmt.Fprintln(bw, "FieldName: "+reportText(f.Name, utf8))
		if f.AltName != "" {
			fmt.Fprintln(bw, "FieldNameAlt: "+reportText(f.AltName, utf8))
		}
		fmt.Fprintf(bw, "FieldFlags: %d\n", f.Flags)
		if f.Value != "" {
			fmt.Fprintln(bw, "FieldValue: "+reportText(f.Value, utf8))
		}
		if f.DefaultValue != "" {
			fmt.Fprintln(bw, "FieldValueDefault: "+reportText(f.DefaultValue, utf8))
		}
		if f.Justification >= 0 && f.Justification < len(justifications) {
			fmt.Fprintln(bw, "FieldJustification: "+justifications[f.Justification])
		}
		if f.MaxLen > 0 {
			fmt.Fprintf(bw, "FieldMaxLength: %d\n", f.MaxLen)
		}
		for _, s := range f.States {
			fmt.Fprintln(bw, "FieldStateOption: "+reportText(s, utf8))
		}
	}
	return bw.Flush()
}
