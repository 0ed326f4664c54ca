package pdf

import (
	"errors"
	"fmt"
	"strconv"
)

// PageSource is one page of an assembled document
type PageSource struct {
	Doc  *Document
	Page int // 1-based page number in Doc
	// Rotation is the final rotation of the page in degrees
	Rotation int
}

// CombineOptions controls page assembly
type CombineOptions struct {
	// Mark stores each page's output position under PageMarker
	Mark bool
	// Unmark removes PageMarker from every page
	Unmark bool
}

// copier copies objects from one source document into the destination,
// each source object once
type copier struct {
	src   *Document
	dst   *Document
	refs  map[int]Reference
	pages map[int]Reference
}

func newCopier(src, dst *Document) *copier {
	return &copier{
		src:   src,
		dst:   dst,
		refs:  make(map[int]Reference),
		pages: make(map[int]Reference),
	}
}

// copy returns obj with every reference translated into the destination.
// References to the page tree or to pages left out of the output become
// null.
func (c *copier) copy(obj Object) Object {
	switch v := obj.(type) {
	case Reference:
		return c.copyRef(v)
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = c.copy(item)
		}
		return out
	case Dictionary:
		out := make(Dictionary, len(v))
		for k, item := range v {
			out[k] = c.copy(item)
		}
		return out
	case Stream:
		return Stream{Dictionary: c.copy(v.Dictionary).(Dictionary), Data: v.Data}
	}
	return obj
}

func (c *copier) copyRef(ref Reference) Object {
	num := ref.ObjectNumber
	if out, ok := c.refs[num]; ok {
		return out
	}
	if out, ok := c.pages[num]; ok {
		return out
	}
	if c.src.treeNodes[num] {
		return Null{}
	}
	if _, isPage := c.src.pageNumber(num); isPage {
		return Null{}
	}

	obj, err := c.src.GetObject(num)
	if err != nil {
		return Null{}
	}
	// reserve the number first so that cycles end here
	out := c.dst.Add(Null{})
	c.refs[num] = out
	c.dst.SetObject(out, c.copy(obj))
	return out
}

// Combine assembles a new document from pages of one or more documents.
// The interactive form of the sources is not carried over.
func Combine(pages []PageSource, opts CombineOptions) (*Document, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages to combine")
	}
	dst := newEmptyDocument()
	pagesRef := dst.Catalog().Get("Pages").(Reference)
	kids := make(Array, 0, len(pages))
	copiers := make(map[*Document]*copier)
	version := 0.0

	// Register every output page first so that links between pages survive
	dstRefs := make([]Reference, len(pages))
	for i, p := range pages {
		if p.Doc == nil {
			return nil, fmt.Errorf("output page %d has no source document", i+1)
		}
		if _, err := p.Doc.PageRef(p.Page); err != nil {
			return nil, err
		}
		c, ok := copiers[p.Doc]
		if !ok {
			c = newCopier(p.Doc, dst)
			copiers[p.Doc] = c
			if v, err := strconv.ParseFloat(p.Doc.Version, 64); err == nil {
				version = max(version, v)
			}
		}
		dstRefs[i] = dst.Add(Null{})
		srcRef, _ := p.Doc.PageRef(p.Page)
		if _, seen := c.pages[srcRef.ObjectNumber]; !seen {
			c.pages[srcRef.ObjectNumber] = dstRefs[i]
		}
	}

	for i, p := range pages {
		c := copiers[p.Doc]
		src, err := p.Doc.Page(p.Page)
		if err != nil {
			return nil, err
		}

		page := make(Dictionary, len(src))
		for k, v := range src {
			switch k {
			case "Parent", "Rotate", PageMarker:
				continue
			}
			page[k] = c.copy(v)
		}
		page["Type"] = Name("Page")
		page["Parent"] = pagesRef
		if r := ((p.Rotation % 360) + 360) % 360; r != 0 {
			page["Rotate"] = Integer(r)
		}
		if opts.Mark && !opts.Unmark {
			page[PageMarker] = Integer(i + 1)
		}

		dst.SetObject(dstRefs[i], page)
		dst.pages = append(dst.pages, dstRefs[i].ObjectNumber)
		kids = append(kids, dstRefs[i])
	}

	root, _ := resolveDict(dst, pagesRef)
	root["Kids"] = kids
	root["Count"] = Integer(len(kids))
	if version > 1.4 {
		dst.Version = strconv.FormatFloat(version, 'f', 1, 64)
	}
	return dst, nil
}

// CopyMetadata copies the information dictionary and the XMP metadata of
// src into dst
func CopyMetadata(dst, src *Document) {
	c := newCopier(src, dst)
	if info := src.Info(); info != nil {
		dst.SetInfo(c.copy(info).(Dictionary))
	}
	if meta := src.Catalog().Get("Metadata"); meta != nil {
		dst.Catalog()["Metadata"] = c.copy(meta)
	}
}
