package output

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// filterInputs holds the auxiliary files of a filter run, loaded before
// the input document is touched
type filterInputs struct {
	form       pdf.FormData
	background *pdf.Document
	stamp      *pdf.Document
	images     pdf.FormData
	info       []pdf.InfoEntry
	hasInfo    bool
}

// filter applies the output options to the single input and writes it
func (r *runner) filter(ctx context.Context) error {
	if len(r.sess.Inputs()) != 1 {
		return r.fail(nil, "Error: Only one input PDF file may be given for this\n"+
			"   operation.  Maybe you meant to use the \"cat\" operator?\n"+
			"   No output created.")
	}
	doc, _, err := r.input(0)
	if err != nil {
		return r.fail(err, "Internal Error: %v", err)
	}
	in, err := r.loadFilterInputs()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.cfg.DropXFA {
		doc.DropXFA()
	}
	if in.hasInfo {
		doc.UpdateInfo(in.info)
	}
	switch {
	case r.cfg.Uncompress:
		doc.MarkPages()
	case r.cfg.Compress:
		doc.UnmarkPages()
	}

	if in.images != nil {
		if err := doc.StampImages(in.images, false); err != nil {
			return r.fail(err, "Error: Failed to open image file: \n   %v\n   No output created.", err)
		}
	}
	if in.form != nil {
		n, err := doc.FillForm(in.form, !r.cfg.Flatten)
		if err != nil {
			return r.fail(err, "Error: unable to fill the form: %v\n   No output created.", err)
		}
		r.log.Debug("form filled", observability.Int("fields", n))
	}
	if r.cfg.Flatten {
		if err := doc.Flatten(); err != nil {
			return r.fail(err, "Error: unable to flatten the form: %v\n   No output created.", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if in.background != nil {
		if err := doc.Overlay(in.background, pdf.OverlayOptions{Under: true, Multi: r.cfg.MultiBackground}); err != nil {
			return r.fail(err, "Error: unable to apply the background: %v\n   No output created.", err)
		}
	}
	if in.stamp != nil {
		if err := doc.Overlay(in.stamp, pdf.OverlayOptions{Multi: r.cfg.MultiStamp}); err != nil {
			return r.fail(err, "Error: unable to apply the stamp: %v\n   No output created.", err)
		}
	}

	if len(r.cfg.AttachFilenames) > 0 {
		page, err := r.attachPage(doc.PageCount())
		if err != nil {
			return err
		}
		if err := doc.AttachFiles(r.cfg.AttachFilenames, page); err != nil {
			return r.fail(err, "Error: %v\n   No output created.", err)
		}
	}

	doc.StampProducer(r.creator(), "", r.opts.Now())
	return r.writeDocument(doc, r.cfg.OutputFilename, r.writeOptions(doc.ID()))
}

// loadFilterInputs reads form data, overlays and Info updates, asking for
// PROMPT filenames
func (r *runner) loadFilterInputs() (*filterInputs, error) {
	in := &filterInputs{}

	if r.cfg.FormDataFilename != "" {
		name, err := r.promptFilename(r.cfg.FormDataFilename, "Please enter a filename for the form data:")
		if err != nil {
			return nil, err
		}
		if in.form, err = r.readFormData(name); err != nil {
			return nil, r.fail(err, "Error: Failed to open form data file: \n   %s\n   No output created.", name)
		}
	}

	if r.cfg.BackgroundFilename != "" {
		name, err := r.promptFilename(r.cfg.BackgroundFilename, "Please enter a filename for the background PDF:")
		if err != nil {
			return nil, err
		}
		if in.background, err = r.opts.Opener.OpenDocument(name, ""); err != nil {
			return nil, r.fail(err, "Error: Failed to open background PDF file: \n   %s\n   No output created.", name)
		}
	}

	if r.cfg.StampDetailedFilename != "" {
		name, err := r.promptFilename(r.cfg.StampDetailedFilename, "Please enter a filename for the detailed stamp file:")
		if err != nil {
			return nil, err
		}
		if in.images, err = r.readFormData(name); err != nil {
			return nil, r.fail(err, "Error: Failed to open detailed stamp file: \n   %s\n   No output created.", name)
		}
	}

	if r.cfg.StampFilename != "" {
		name, err := r.promptFilename(r.cfg.StampFilename, "Please enter a filename for the stamp PDF:")
		if err != nil {
			return nil, err
		}
		if in.stamp, err = r.opts.Opener.OpenDocument(name, ""); err != nil {
			return nil, r.fail(err, "Error: Failed to open stamp PDF file: \n   %s\n   No output created.", name)
		}
	}

	if r.cfg.UpdateInfoFilename != "" {
		name, err := r.promptFilename(r.cfg.UpdateInfoFilename, "Please enter an Info file filename:")
		if err != nil {
			return nil, err
		}
		data, err := r.opts.Opener.ReadFile(name)
		if err != nil {
			return nil, r.fail(err, "Error: unable to open FDF file for input: %s", name)
		}
		in.info, err = pdf.ParseInfo(data, r.cfg.UpdateInfoUTF8)
		if err != nil {
			return nil, r.fail(err, "Warning: no Info added to output PDF.")
		}
		in.hasInfo = true
	}
	return in, nil
}

func (r *runner) readFormData(name string) (pdf.FormData, error) {
	data, err := r.opts.Opener.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return pdf.ParseFormData(data)
}

// attachPage resolves the attachment target page, asking when it was given
// as PROMPT
func (r *runner) attachPage(pageCount int) (int, error) {
	page := r.cfg.AttachPage
	if page != session.AttachPagePrompt {
		return page, nil
	}
	if r.opts.Prompter == nil {
		return 0, r.fail(nil, "Error: no way to ask for the attachment page.\n   No output created.")
	}
	for {
		answer, err := r.opts.Prompter.Filename("Please enter the page number you want to attach these files to.\n" +
			"   The first page is 1.  The final page is \"end\".")
		if err != nil {
			return 0, r.fail(err, "Error: unable to read a page number.\n   No output created.")
		}
		answer = strings.TrimSpace(answer)
		if answer == "end" {
			return session.AttachPageEnd, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= pageCount {
			return n, nil
		}
		if err == nil {
			err = errors.New("page out of range")
		}
		r.log.Debug("attachment page rejected", observability.String("answer", answer), observability.Error("error", err))
	}
}
