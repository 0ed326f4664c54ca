package pdf

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Attachment represents an embedded file in a PDF
type Attachment struct {
	Name         string
	Description  string
	Size         int64
	CreationDate time.Time
	ModDate      time.Time
	MimeType     string
	Page         int // 0 for document-level attachments
	Data         []byte
	doc          *Document
	stream       Object
}

// SaveTo saves the attachment to the specified directory. Only the base
// of the stored name is used.
func (a *Attachment) SaveTo(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// Load data if not already loaded
	if a.Data == nil && a.stream != nil {
		stream, ok := a.doc.resolve(a.stream).(Stream)
		if !ok {
			return "", fmt.Errorf("attachment %s has no data", a.Name)
		}
		data, err := stream.Decode()
		if err != nil {
			return "", fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		a.Data = data
	}

	name := filepath.Base(filepath.FromSlash(a.Name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "attachment"
	}
	outputPath := filepath.Join(dir, name)
	return outputPath, os.WriteFile(outputPath, a.Data, 0644)
}

// Attachments returns the document-level attachments followed by the
// page-level ones in page order
func (d *Document) Attachments() []*Attachment {
	var attachments []*Attachment

	if names, ok := resolveDict(d, d.Catalog().Get("Names")); ok {
		d.walkNameTree(names.Get("EmbeddedFiles"), func(key string, value Object) bool {
			if att := d.extractAttachment(String{Value: []byte(key)}.Text(), value); att != nil {
				attachments = append(attachments, att)
			}
			return true
		})
	}

	for num := 1; num <= d.PageCount(); num++ {
		page, err := d.Page(num)
		if err != nil {
			continue
		}
		annots, _ := resolveArray(d, page.Get("Annots"))
		for _, a := range annots {
			annot, ok := resolveDict(d, a)
			if !ok {
				continue
			}
			if st, _ := annot.GetName("Subtype"); st != "FileAttachment" {
				continue
			}
			if att := d.extractAttachment("", annot.Get("FS")); att != nil {
				att.Page = num
				attachments = append(attachments, att)
			}
		}
	}
	return attachments
}

// extractAttachment extracts a single attachment from a file specification
func (d *Document) extractAttachment(name string, fileSpecObj Object) *Attachment {
	fileSpec, ok := resolveDict(d, fileSpecObj)
	if !ok {
		return nil
	}

	att := &Attachment{Name: name, doc: d}

	// Get filename; UF wins over F
	if str, ok := d.resolve(fileSpec.Get("F")).(String); ok {
		att.Name = str.Text()
	}
	if str, ok := d.resolve(fileSpec.Get("UF")).(String); ok {
		att.Name = str.Text()
	}
	if str, ok := d.resolve(fileSpec.Get("Desc")).(String); ok {
		att.Description = str.Text()
	}

	// Get embedded file stream
	efDict, ok := resolveDict(d, fileSpec.Get("EF"))
	if !ok {
		return nil
	}
	for _, key := range []string{"UF", "F", "DOS", "Mac", "Unix"} {
		if v := efDict.Get(key); v != nil {
			att.stream = v
			break
		}
	}
	stream, ok := d.resolve(att.stream).(Stream)
	if !ok {
		return nil
	}

	if params, ok := resolveDict(d, stream.Dictionary.Get("Params")); ok {
		if size, ok := params.GetInt("Size"); ok {
			att.Size = size
		}
		if s, ok := d.resolve(params.Get("CreationDate")).(String); ok {
			att.CreationDate = parsePDFDate(string(s.Value))
		}
		if s, ok := d.resolve(params.Get("ModDate")).(String); ok {
			att.ModDate = parsePDFDate(string(s.Value))
		}
	}
	if att.Size == 0 {
		if dl, ok := stream.Dictionary.GetInt("DL"); ok {
			att.Size = dl
		}
	}
	if subtype, ok := stream.Dictionary.GetName("Subtype"); ok {
		att.MimeType = string(subtype)
	}
	return att
}

// UnpackFiles writes every attachment into dir and returns the paths
// written
func (d *Document) UnpackFiles(dir string) ([]string, error) {
	var written []string
	for _, att := range d.Attachments() {
		path, err := att.SaveTo(dir)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// AttachFiles embeds files at document level when page is 0, or as
// file attachment annotations on page (1-based). A page of -2 means the
// final page.
func (d *Document) AttachFiles(paths []string, page int) error {
	if page == -2 {
		page = d.PageCount()
	}
	if page < 0 || page > d.PageCount() {
		return fmt.Errorf("page %d is out of range (1-%d) for file attachments", page, d.PageCount())
	}

	specs := make([]Reference, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		spec, name, err := d.embedFile(path)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
		names = append(names, name)
	}

	if page == 0 {
		return d.addEmbeddedFiles(names, specs)
	}
	return d.addFileAnnotations(page, names, specs)
}

// embedFile stores the contents of path as an embedded file stream and
// returns its file specification
func (d *Document) embedFile(path string) (Reference, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, "", fmt.Errorf("unable to open attachment %s: %w", path, err)
	}
	modTime := time.Now()
	if fi, err := os.Stat(path); err == nil {
		modTime = fi.ModTime()
	}

	sum := md5.Sum(data)
	dict := Dictionary{
		"Type": Name("EmbeddedFile"),
		"Params": Dictionary{
			"Size":     Integer(len(data)),
			"ModDate":  String{Value: []byte(pdfDate(modTime))},
			"CheckSum": String{Value: sum[:], IsHex: true},
		},
	}
	stored := data
	if enc, err := flateEncode(data); err == nil {
		stored = enc
		dict["Filter"] = Name("FlateDecode")
	}
	ef := d.Add(Stream{Dictionary: dict, Data: stored})

	name := filepath.Base(path)
	spec := d.Add(Dictionary{
		"Type": Name("Filespec"),
		"F":    TextString(name),
		"UF":   TextString(name),
		"EF":   Dictionary{"F": ef, "UF": ef},
	})
	return spec, name, nil
}

// addEmbeddedFiles merges files into the EmbeddedFiles name tree, which is
// rewritten as a single sorted leaf. Names already present get a numeric
// suffix.
func (d *Document) addEmbeddedFiles(names []string, specs []Reference) error {
	catalog := d.Catalog()
	nameDict, ok := resolveDict(d, catalog.Get("Names"))
	if !ok {
		nameDict = Dictionary{}
		catalog["Names"] = nameDict
	}

	entries := make(map[string]Object)
	d.walkNameTree(nameDict.Get("EmbeddedFiles"), func(key string, value Object) bool {
		entries[key] = value
		return true
	})
	for i, name := range names {
		key := string(TextString(name).Value)
		for n := 1; entries[key] != nil; n++ {
			key = string(TextString(fmt.Sprintf("%s-%d", name, n)).Value)
		}
		entries[key] = specs[i]
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	leaf := make(Array, 0, 2*len(keys))
	for _, k := range keys {
		leaf = append(leaf, String{Value: []byte(k)}, entries[k])
	}
	nameDict["EmbeddedFiles"] = d.Add(Dictionary{"Names": leaf})
	return nil
}

// addFileAnnotations adds one file attachment annotation per file to page,
// stacked down from the top-left corner of its crop box
func (d *Document) addFileAnnotations(num int, names []string, specs []Reference) error {
	page, err := d.Page(num)
	if err != nil {
		return err
	}
	box := d.PageBox(num, "CropBox")
	annots, _ := resolveArray(d, page.Get("Annots"))
	annots = append(Array{}, annots...)

	const size, margin = 24.0, 36.0
	for i, spec := range specs {
		top := box.URY - margin - float64(i)*(size+4)
		if top-size < box.LLY {
			top = box.URY - margin
		}
		rect := Rectangle{LLX: box.LLX + margin, LLY: top - size, URX: box.LLX + margin + size, URY: top}
		annot := d.Add(Dictionary{
			"Type":     Name("Annot"),
			"Subtype":  Name("FileAttachment"),
			"Rect":     rect.Array(),
			"FS":       spec,
			"Contents": TextString(names[i]),
			"Name":     Name("PushPin"),
			"F":        Integer(4),
			"P":        Reference{ObjectNumber: d.pages[num-1]},
		})
		annots = append(annots, annot)
	}
	page["Annots"] = annots
	return nil
}
