package output

import (
	"bytes"
	"fmt"
	"io"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// report writes dump_data or dump_data_fields to standard output, or to
// the output file when one was named
func (r *runner) report() error {
	if len(r.sess.Inputs()) != 1 {
		return r.fail(nil, "Error: Only one input PDF file may be used for the %s operation\n   No output created.", r.cfg.Operation)
	}
	doc, _, err := r.input(0)
	if err != nil {
		return r.fail(err, "Internal Error: %v", err)
	}

	dump := func(w io.Writer) error { return doc.DumpData(w, r.cfg.OutputUTF8) }
	if r.cfg.Operation == session.OpDumpDataFields {
		dump = func(w io.Writer) error { return doc.DumpDataFields(w, r.cfg.OutputUTF8) }
	}

	name := r.cfg.OutputFilename
	if name == session.PromptSentinel {
		if name, err = r.promptFilename(name, "Please enter a name for the report:"); err != nil {
			return err
		}
	}
	if name == "" || name == session.StdioSentinel {
		if err := dump(r.stdout); err != nil {
			return r.fail(err, "Error: unable to write the report: %v", err)
		}
		return nil
	}
	return r.writeFile(name, func(buf *bytes.Buffer) error { return dump(buf) })
}

// generateFDF writes an FDF holding the form fields of the single input
func (r *runner) generateFDF() error {
	if len(r.sess.Inputs()) != 1 {
		return r.fail(nil, "Error: Only one input PDF file may be used for the generate_fdf operation\n   No output created.")
	}
	doc, _, err := r.input(0)
	if err != nil {
		return r.fail(err, "Internal Error: %v", err)
	}
	var buf bytes.Buffer
	if err := doc.GenerateFDF(&buf); err != nil {
		return r.fail(err, "Error: unable to generate FDF: %v\n   No output created.", err)
	}

	w, name, err := r.outputStream(r.cfg.OutputFilename)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return r.fail(err, "Error: unable to write file: %s", name)
	}
	return w.Close()
}

// unpackFiles copies the attachments of the single input into the output
// directory
func (r *runner) unpackFiles() error {
	if len(r.sess.Inputs()) != 1 {
		return r.fail(nil, "Error: Only one input PDF file may be given for \"unpack_files\" op.\n   No output created.")
	}
	doc, _, err := r.input(0)
	if err != nil {
		return r.fail(err, "Internal Error: %v", err)
	}

	dir := r.cfg.OutputFilename
	if dir == session.PromptSentinel {
		if dir, err = r.promptFilename(dir, "Please enter the directory where you want to unpack files:"); err != nil {
			return err
		}
	}
	if dir == "" {
		dir = "."
	}

	written, err := doc.UnpackFiles(dir)
	if err != nil {
		return r.fail(err, "Error: unable to unpack files into %s: %v", dir, err)
	}
	if r.cfg.Verbose {
		for _, path := range written {
			fmt.Fprintf(r.stdout, "   Unpacked %s\n", path)
		}
	}
	r.log.Debug("files unpacked", observability.String("dir", dir), observability.Int("files", len(written)))
	return nil
}
