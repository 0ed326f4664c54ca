package output

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// DefaultBurstPattern names burst pages when no output is given
const DefaultBurstPattern = "pg_%04d.pdf"

// docDataName is the report written alongside burst pages
const docDataName = "doc_data.txt"

// burst writes every page of the single input to its own file
func (r *runner) burst(ctx context.Context) error {
	if len(r.sess.Inputs()) != 1 {
		return r.fail(nil, "Error: Only one input PDF file may be given for \"burst\" op.\n   No output created.")
	}
	doc, _, err := r.input(0)
	if err != nil {
		return r.fail(err, "Internal Error: %v", err)
	}

	pattern := r.cfg.OutputFilename
	if pattern == session.PromptSentinel {
		if pattern, err = r.promptFilename(pattern, "Please enter a filename pattern for the PDF pages (e.g. pg_%04d.pdf):"); err != nil {
			return err
		}
	}
	if pattern == "" {
		pattern = DefaultBurstPattern
	}
	if _, err := burstName(pattern, 1); err != nil {
		return r.fail(err, "Error: %v\n   No output created.", err)
	}

	wo := r.writeOptions(nil)
	for num := 1; num <= doc.PageCount(); num++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rotation, err := doc.PageRotation(num)
		if err != nil {
			return r.fail(err, "Error: unable to read page %d: %v", num, err)
		}
		page, err := pdf.Combine([]pdf.PageSource{{Doc: doc, Page: num, Rotation: rotation}},
			pdf.CombineOptions{Unmark: r.cfg.Compress})
		if err != nil {
			return r.fail(err, "Error: unable to copy page %d: %v", num, err)
		}
		pdf.CopyMetadata(page, doc)
		page.StampProducer(r.creator(), "", r.opts.Now())

		name, _ := burstName(pattern, num)
		if err := r.writeFile(name, func(buf *bytes.Buffer) error { return page.Write(buf, wo) }); err != nil {
			return err
		}
	}
	r.log.Debug("document burst", observability.String("pattern", pattern), observability.Int("pages", doc.PageCount()))

	report := filepath.Join(filepath.Dir(pattern), docDataName)
	return r.writeFile(report, func(buf *bytes.Buffer) error { return doc.DumpData(buf, r.cfg.OutputUTF8) })
}

// burstName formats the filename of page num from a printf pattern
func burstName(pattern string, num int) (string, error) {
	if !strings.Contains(pattern, "%") {
		return "", fmt.Errorf("the filename pattern %q has no page number verb such as %%04d", pattern)
	}
	name := fmt.Sprintf(pattern, num)
	if strings.Contains(name, "%!") {
		return "", fmt.Errorf("the filename pattern %q must take exactly one integer", pattern)
	}
	return name, nil
}

// writeFile renders content and stores it in the named file, bypassing the
// output prompts
func (r *runner) writeFile(name string, content func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := content(&buf); err != nil {
		return r.fail(err, "Error: unable to create %s: %v", name, err)
	}
	w, err := r.opts.FS.Create(name)
	if err != nil {
		return r.fail(err, "Error: unable to open file for output: %s", name)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return r.fail(err, "Error: unable to write file: %s", name)
	}
	if err := w.Close(); err != nil {
		return r.fail(err, "Error: unable to write file: %s", name)
	}
	return nil
}
