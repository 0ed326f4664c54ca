package pagerange

import (
	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
)

// maxReported caps the per-page errors collected for one range
const maxReported = 32

// Bounds resolves the symbolic bounds of s against a document of pageCount
// pages. No bounds means the whole document; a missing end means begin.
func (s Spec) Bounds(pageCount int) (begin, end int) {
	begin = s.Begin.resolve(pageCount)
	end = s.End.resolve(pageCount)
	if begin == 0 && end == 0 {
		return 1, pageCount
	}
	if end == 0 {
		end = begin
	}
	return begin, end
}

// Pages expands s into page numbers for a document of pageCount pages.
// Parity filtering happens before a descending range is reversed, so
// "6-1even" yields 6, 4, 2. Every missing page is reported.
func (s Spec) Pages(pageCount int) ([]int, error) {
	begin, end := s.Bounds(pageCount)
	reverse := end < begin
	if reverse {
		begin, end = end, begin
	}

	var errs tkerrors.List
	missing := 0
	for page := max(begin, pageCount+1); page <= end; page++ {
		if !s.Parity.accepts(page) {
			continue
		}
		if len(errs) == maxReported {
			missing += s.Parity.count(page, end)
			break
		}
		missing++
		errs = append(errs, tkerrors.Newf(tkerrors.KindPageOutOfRange, s.Text,
			"page number %d does not exist", page))
	}
	if len(errs) > 0 {
		if missing > len(errs) {
			errs = append(errs, tkerrors.Newf(tkerrors.KindPageOutOfRange, s.Text,
				"%d more missing pages", missing-len(errs)))
		}
		return nil, errs
	}

	var pages []int
	for page := begin; page <= end; page++ {
		if s.Parity.accepts(page) {
			pages = append(pages, page)
		}
	}

	if reverse {
		for i, j := 0, len(pages)-1; i < j; i, j = i+1, j-1 {
			pages[i], pages[j] = pages[j], pages[i]
		}
	}
	return pages, nil
}
