package session

import (
	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/pagerange"
)

// addRange resolves one page range token into page references, claiming
// every page on an instance that has not supplied it yet
func (g *grammar) addRange(tok string) (state, error) {
	s := g.s

	doc := 0 // defaults to the first input
	if tok != "" && 'A' <= tok[0] && tok[0] <= 'Z' {
		idx, ok := s.registry.Lookup(tok[0])
		if !ok {
			return 0, tkerrors.Newf(tkerrors.KindUnboundHandle, tok, "handle %c has no associated file", tok[0])
		}
		doc = idx
	}

	spec, err := pagerange.Parse(tok)
	if err != nil {
		return 0, err
	}

	if err := s.ensureOpen(doc); err != nil {
		return 0, err
	}

	d := s.registry.Doc(doc)
	pages, err := spec.Pages(d.PageCount)
	if err != nil {
		if list, ok := err.(tkerrors.List); ok {
			for _, e := range list {
				e.Message += " in file " + d.Filename
			}
		}
		return 0, err
	}

	refs := make([]PageRef, 0, len(pages))
	for _, page := range pages {
		id, err := s.claim(doc, page)
		if err != nil {
			return 0, err
		}
		refs = append(refs, PageRef{Doc: doc, Page: page, Rotation: spec.Rotation, Instance: id})
	}
	s.seq = append(s.seq, refs)

	s.log.Debug("page range",
		observability.String("token", tok),
		observability.String("file", d.Filename),
		observability.Int("pages", len(refs)))
	return g.state, nil
}

// wholeDocuments adds one range per input covering all of its pages
func (s *Session) wholeDocuments() error {
	for doc := 0; doc < s.registry.Len(); doc++ {
		d := s.registry.Doc(doc)
		refs := make([]PageRef, 0, d.PageCount)
		for page := 1; page <= d.PageCount; page++ {
			id, err := s.claim(doc, page)
			if err != nil {
				return err
			}
			refs = append(refs, PageRef{Doc: doc, Page: page, Instance: id})
		}
		s.seq = append(s.seq, refs)
	}
	return nil
}
