package pdf

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	// image formats accepted by StampImages
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// OverlayOptions controls Overlay
type OverlayOptions struct {
	// Under places the mark below the page content (background); otherwise
	// it is drawn over it (stamp)
	Under bool
	// Multi uses mark page i on page i, repeating the last mark page on
	// the remaining pages; otherwise mark page 1 goes on every page
	Multi bool
}

// Overlay draws pages of mark onto every page of d, scaled to fit the crop
// box and centered, honoring the rotation of both pages
func (d *Document) Overlay(mark *Document, opts OverlayOptions) error {
	if mark == nil || mark.PageCount() == 0 {
		return errors.New("overlay document has no pages")
	}
	markPages := 1
	if opts.Multi {
		markPages = mark.PageCount()
	}

	c := newCopier(mark, d)
	var form Reference
	var markBox Rectangle
	markRotation := 0

	for num := 1; num <= d.PageCount(); num++ {
		if num <= markPages {
			var err error
			form, err = d.importPage(c, num)
			if err != nil {
				return err
			}
			markBox = mark.PageBox(num, "CropBox")
			markRotation, _ = mark.PageRotation(num)
			for r := 0; r < markRotation; r += 90 {
				markBox = markBox.Rotate()
			}
		}

		page, err := d.Page(num)
		if err != nil {
			return err
		}
		docBox := d.PageBox(num, "CropBox")
		docRotation, _ := d.PageRotation(num)
		for r := 0; r < docRotation; r += 90 {
			docBox = docBox.Rotate()
		}
		if markBox.Width() == 0 || markBox.Height() == 0 {
			return fmt.Errorf("overlay page has an empty crop box")
		}

		xobjects := d.pageXObjects(page)
		name := uniqueName(xobjects, "pdftkMark")
		xobjects[name] = form

		m := markMatrix(docBox, markBox, markRotation)
		ops := fmt.Sprintf("q\n%s%s\n%s Do\nQ\n", d.rotationOperator(num, docRotation), m.Operator(), name)
		if opts.Under {
			d.addContent(page, []byte(ops), nil)
		} else {
			d.addContent(page, nil, []byte(ops))
		}
	}
	return nil
}

// markMatrix places a mark of size markBox, rotated by markRotation, into
// docBox
func markMatrix(docBox, markBox Rectangle, markRotation int) Matrix {
	hScale := docBox.Width() / markBox.Width()
	vScale := docBox.Height() / markBox.Height()
	scale := min(hScale, vScale)

	hTrans := docBox.LLX - markBox.LLX*scale + (docBox.Width()-markBox.Width()*scale)/2
	vTrans := docBox.LLY - markBox.LLY*scale + (docBox.Height()-markBox.Height()*scale)/2

	switch markRotation {
	case 90:
		return Matrix{0, -scale, scale, 0, hTrans, vTrans + markBox.Height()*scale}
	case 180:
		return Matrix{-scale, 0, 0, -scale, hTrans + markBox.Width()*scale, vTrans + markBox.Height()*scale}
	case 270:
		return Matrix{0, scale, -scale, 0, hTrans + markBox.Width()*scale, vTrans}
	}
	return Matrix{scale, 0, 0, scale, hTrans, vTrans}
}

// rotationOperator returns the cm operator that maps the rotated page space
// of page num back onto its unrotated space
func (d *Document) rotationOperator(num, rotation int) string {
	box := d.PageBox(num, "MediaBox")
	if rotation == 90 || rotation == 270 {
		box = box.Rotate()
	}
	var m Matrix
	switch rotation {
	case 90:
		m = Matrix{0, 1, -1, 0, box.URY, 0}
	case 180:
		m = Matrix{-1, 0, 0, -1, box.URX, box.URY}
	case 270:
		m = Matrix{0, -1, 1, 0, 0, box.URX}
	default:
		return ""
	}
	return m.Operator() + "\n"
}

// importPage copies page num of the copier's source into d as a form
// XObject
func (d *Document) importPage(c *copier, num int) (Reference, error) {
	page, err := c.src.Page(num)
	if err != nil {
		return Reference{}, err
	}
	data, err := c.src.pageContents(page)
	if err != nil {
		return Reference{}, fmt.Errorf("overlay page %d: %w", num, err)
	}
	dict := Dictionary{
		"Type":     Name("XObject"),
		"Subtype":  Name("Form"),
		"FormType": Integer(1),
		"BBox":     c.src.PageBox(num, "CropBox").Array(),
	}
	if res := page.Get("Resources"); res != nil {
		dict["Resources"] = c.copy(res)
	}
	return d.Add(Stream{Dictionary: dict, Data: data}), nil
}

// StampImages draws base64-encoded images into the rectangles of the
// same-named form fields and removes those fields
func (d *Document) StampImages(images FormData, under bool) error {
	annotPages := d.annotationPages()
	var errs []error
	for _, field := range d.GetFormFields() {
		payload, ok := images[field.Name]
		if !ok || payload == "" {
			continue
		}
		img, err := decodeImage(payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", field.Name, err))
			continue
		}
		imgRef := d.Add(imageXObject(d, img))
		bounds := img.Bounds()

		for _, w := range field.widgets {
			num := annotPages[w.num]
			if num == 0 {
				if p, ok := w.dict.Get("P").(Reference); ok {
					num, _ = d.pageNumber(p.ObjectNumber)
				}
			}
			if num == 0 {
				continue
			}
			page, err := d.Page(num)
			if err != nil {
				continue
			}
			rectArr, _ := resolveArray(d, w.dict.Get("Rect"))
			rect := d.arrayToRectangle(rectArr)

			// scale to fit, centered horizontally on the bottom edge
			scale := min(rect.Width()/float64(bounds.Dx()), rect.Height()/float64(bounds.Dy()))
			sw, sh := float64(bounds.Dx())*scale, float64(bounds.Dy())*scale
			x := (rect.LLX + rect.URX - sw) / 2
			y := rect.LLY

			xobjects := d.pageXObjects(page)
			name := uniqueName(xobjects, "pdftkImg")
			xobjects[name] = imgRef
			ops := fmt.Sprintf("q\n%s\n%s Do\nQ\n", Matrix{sw, 0, 0, sh, x, y}.Operator(), name)
			if under {
				d.addContent(page, []byte(ops), nil)
			} else {
				d.addContent(page, nil, []byte(ops))
			}
		}
		d.removeField(field)
	}
	return errors.Join(errs...)
}

// annotationPages maps annotation object numbers to their page
func (d *Document) annotationPages() map[int]int {
	out := make(map[int]int)
	for num := 1; num <= d.PageCount(); num++ {
		page, err := d.Page(num)
		if err != nil {
			continue
		}
		annots, _ := resolveArray(d, page.Get("Annots"))
		for _, a := range annots {
			if ref, ok := a.(Reference); ok {
				out[ref.ObjectNumber] = num
			}
		}
	}
	return out
}

// removeField removes a terminal field and its widgets
func (d *Document) removeField(field *FormField) {
	drop := make(map[int]bool)
	for _, w := range field.widgets {
		if w.num > 0 {
			drop[w.num] = true
		}
	}
	if field.num > 0 {
		drop[field.num] = true
	}
	keep := func(arr Array) Array {
		out := Array{}
		for _, item := range arr {
			if ref, ok := item.(Reference); ok && drop[ref.ObjectNumber] {
				continue
			}
			out = append(out, item)
		}
		return out
	}

	for num := 1; num <= d.PageCount(); num++ {
		page, err := d.Page(num)
		if err != nil {
			continue
		}
		if annots, ok := resolveArray(d, page.Get("Annots")); ok {
			page["Annots"] = keep(annots)
		}
	}
	if parent, ok := resolveDict(d, field.dict.Get("Parent")); ok {
		if kids, ok := resolveArray(d, parent.Get("Kids")); ok {
			parent["Kids"] = keep(kids)
		}
	}
	if form := d.acroForm(); form != nil {
		if fields, ok := resolveArray(d, form.Get("Fields")); ok {
			form["Fields"] = keep(fields)
		}
	}
}

// decodeImage decodes a base64 image payload
func decodeImage(payload string) (image.Image, error) {
	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if i := strings.Index(payload, ";base64,"); i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unsupported image data: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	return img, nil
}

// imageXObject converts img to an RGB image XObject, with a soft mask when
// it has transparency
func imageXObject(d *Document, img image.Image) Stream {
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for i := 0; i < len(rgba.Pix); i += 4 {
		rgb = append(rgb, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
		alpha = append(alpha, rgba.Pix[i+3])
		if rgba.Pix[i+3] != 0xFF {
			opaque = false
		}
	}

	dict := Dictionary{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            Integer(w),
		"Height":           Integer(h),
		"ColorSpace":       Name("DeviceRGB"),
		"BitsPerComponent": Integer(8),
	}
	data := rgb
	if enc, err := flateEncode(rgb); err == nil {
		data = enc
		dict["Filter"] = Name("FlateDecode")
	}
	if !opaque {
		mask := Dictionary{
			"Type":             Name("XObject"),
			"Subtype":          Name("Image"),
			"Width":            Integer(w),
			"Height":           Integer(h),
			"ColorSpace":       Name("DeviceGray"),
			"BitsPerComponent": Integer(8),
		}
		maskData := alpha
		if enc, err := flateEncode(alpha); err == nil {
			maskData = enc
			mask["Filter"] = Name("FlateDecode")
		}
		dict["SMask"] = d.Add(Stream{Dictionary: mask, Data: maskData})
	}
	return Stream{Dictionary: dict, Data: data}
}
