package output

import (
	"context"
	"fmt"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// catenate writes the pages of a cat or shuffle session, in assembled
// order, into one new document
func (r *runner) catenate(ctx context.Context) error {
	inputs := r.sess.Inputs()
	refs := r.sess.Pages()
	sources := make([]pdf.PageSource, 0, len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := r.sess.Instance(ref.Instance)
		if err != nil {
			return r.fail(err, "Internal Error: no document instance found for page: %d in file: %s",
				ref.Page, inputs[ref.Doc].Filename)
		}
		doc, err := document(in.Handle)
		if err != nil {
			return r.fail(err, "Internal Error: %v", err)
		}
		if r.cfg.Verbose {
			fmt.Fprintf(r.stdout, "   Adding page %d X%dX  from %s\n", ref.Page, ref.Rotation.Degrees, inputs[ref.Doc].Filename)
		}
		existing, err := doc.PageRotation(ref.Page)
		if err != nil {
			return r.fail(err, "Internal Error: unable to read page: %d in file: %s", ref.Page, inputs[ref.Doc].Filename)
		}
		sources = append(sources, pdf.PageSource{Doc: doc, Page: ref.Page, Rotation: ref.Rotation.Apply(existing)})
	}

	out, err := pdf.Combine(sources, pdf.CombineOptions{Mark: r.cfg.Uncompress, Unmark: r.cfg.Compress})
	if err != nil {
		return r.fail(err, "Error: unable to assemble the output PDF: %v\n   No output created.", err)
	}
	out.StampProducer(r.creator(), "", r.opts.Now())

	id, err := r.keptID(inputs)
	if err != nil {
		return err
	}
	r.log.Debug("pages assembled", observability.Int("pages", len(sources)), observability.Int("inputs", len(inputs)))
	return r.writeDocument(out, r.cfg.OutputFilename, r.writeOptions(id))
}

// keptID returns the file identifier of the first or final input when
// keep_first_id or keep_final_id was given, and nil otherwise
func (r *runner) keptID(inputs []session.InputDocument) (pdf.Array, error) {
	var idx int
	switch {
	case r.cfg.KeepFirstID:
		idx = 0
	case r.cfg.KeepFinalID:
		idx = len(inputs) - 1
	default:
		return nil, nil
	}
	doc, _, err := r.input(idx)
	if err != nil {
		return nil, r.fail(err, "Internal Error: %v", err)
	}
	return doc.ID(), nil
}
