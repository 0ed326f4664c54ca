// Package output executes a validated session: it assembles, filters or
// reports on the opened input documents and writes the results.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// ErrNoOutput is wrapped by every error Run returns after reporting a
// failure to the user
var ErrNoOutput = errors.New("no output created")

// ErrInvalidSession is returned when Run is given a session that may not
// produce output
var ErrInvalidSession = errors.New("session is not valid")

// FileSystem is where output files go
type FileSystem interface {
	Exists(name string) bool
	Create(name string) (io.WriteCloser, error)
}

// OSFileSystem writes to the local file system
type OSFileSystem struct{}

// Exists implements FileSystem
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// Create implements FileSystem
func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// Options configures Run
type Options struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Prompter session.Prompter
	// Opener reads auxiliary inputs such as overlay PDFs and form data;
	// it should be the opener the session was parsed with so that "-" is
	// read only once
	Opener *pdf.Opener
	Logger observability.Logger
	FS     FileSystem
	Now    func() time.Time
	// Version is recorded in the Creator entry of written documents
	Version string
}

type runner struct {
	sess   *session.Session
	cfg    session.Config
	opts   Options
	log    observability.Logger
	stdout io.Writer
	stderr io.Writer
}

// Run produces the output of sess
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	if sess == nil || !sess.Valid() {
		return ErrInvalidSession
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.FS == nil {
		opts.FS = OSFileSystem{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Opener == nil {
		opts.Opener = pdf.NewOpener(opts.Stdin, opts.Logger)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	r := &runner{
		sess:   sess,
		cfg:    sess.Config(),
		opts:   opts,
		log:    opts.Logger.With(observability.String("operation", sess.Config().Operation.String())),
		stdout: opts.Stdout,
		stderr: opts.Stderr,
	}
	if r.cfg.Verbose {
		fmt.Fprintln(r.stdout, "\nCreating Output ...")
	}
	if err := r.resolvePasswords(); err != nil {
		return err
	}

	start := opts.Now()
	var err error
	switch r.cfg.Operation {
	case session.OpCat, session.OpShuffle:
		err = r.catenate(ctx)
	case session.OpBurst:
		err = r.burst(ctx)
	case session.OpFilter:
		err = r.filter(ctx)
	case session.OpDumpData, session.OpDumpDataFields:
		err = r.report()
	case session.OpGenerateFDF:
		err = r.generateFDF()
	case session.OpUnpackFiles:
		err = r.unpackFiles()
	default:
		err = fmt.Errorf("unexpected operation %s: %w", r.cfg.Operation, ErrInvalidSession)
	}
	if err != nil {
		r.log.Debug("output failed", observability.Error("error", err))
		return err
	}
	r.log.Debug("output complete", observability.Int64("elapsed_ms", opts.Now().Sub(start).Milliseconds()))
	return nil
}

// fail reports a user-facing message and returns an error wrapping
// ErrNoOutput
func (r *runner) fail(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(r.stderr, msg)
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoOutput, firstLine(msg), cause)
	}
	return fmt.Errorf("%w: %s", ErrNoOutput, firstLine(msg))
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// resolvePasswords asks for PROMPT output passwords and rejects a user
// password equal to the owner password
func (r *runner) resolvePasswords() error {
	var err error
	if r.cfg.OwnerPassword == session.PromptSentinel {
		if r.cfg.OwnerPassword, err = r.promptPassword("owner"); err != nil {
			return err
		}
	}
	if r.cfg.UserPassword == session.PromptSentinel {
		if r.cfg.UserPassword, err = r.promptPassword("user"); err != nil {
			return err
		}
	}
	if r.cfg.OwnerPassword != "" && r.cfg.OwnerPassword == r.cfg.UserPassword {
		return r.fail(nil, "Error: The user and owner passwords are the same.\n"+
			"   PDF Viewers interpret this to mean your PDF has\n"+
			"   no owner password, so they must be different.\n"+
			"   Or, supply no owner password to pdftk if this is\n"+
			"   what you desire.\n"+
			"Exiting.")
	}
	return nil
}

func (r *runner) promptPassword(purpose string) (string, error) {
	if r.opts.Prompter == nil {
		return "", r.fail(nil, "Error: no way to ask for the %s password of the output PDF.", purpose)
	}
	pw, err := r.opts.Prompter.Password(purpose, "the output PDF")
	if err != nil {
		return "", r.fail(err, "Error: unable to read the %s password of the output PDF.", purpose)
	}
	return pw, nil
}

// promptFilename resolves a PROMPT filename
func (r *runner) promptFilename(name, message string) (string, error) {
	if name != session.PromptSentinel && name != "" {
		return name, nil
	}
	if r.opts.Prompter == nil {
		return "", r.fail(nil, "Error: no way to ask: %s", message)
	}
	for {
		answer, err := r.opts.Prompter.Filename(message)
		if err != nil {
			return "", r.fail(err, "Error: unable to read a filename.\n   No output created.")
		}
		if answer != "" && answer != session.PromptSentinel {
			return answer, nil
		}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// outputStream opens the output named by name. PROMPT and an empty name ask
// for one, "-" is standard output, and in ask mode an existing file is only
// overwritten after confirmation.
func (r *runner) outputStream(name string) (io.WriteCloser, string, error) {
	for {
		var err error
		if name, err = r.promptFilename(name, "Please enter a name for the output:"); err != nil {
			return nil, "", err
		}
		if name == session.StdioSentinel {
			return nopWriteCloser{r.stdout}, name, nil
		}
		if r.cfg.Ask && r.opts.FS.Exists(name) && r.opts.Prompter != nil {
			ok, err := r.opts.Prompter.Confirm(fmt.Sprintf("Warning: the output file: %s already exists.  Overwrite? (y/n)", name))
			if err != nil {
				return nil, "", r.fail(err, "Error: unable to read an answer.\n   No output created.")
			}
			if !ok {
				name = session.PromptSentinel
				continue
			}
		}
		w, err := r.opts.FS.Create(name)
		if err != nil {
			return nil, "", r.fail(err, "Error: Failed to open output file: \n   %s\n   No output created.", name)
		}
		return w, name, nil
	}
}

// writeDocument serializes doc to the output named by name
func (r *runner) writeDocument(doc *pdf.Document, name string, wo pdf.WriteOptions) error {
	w, name, err := r.outputStream(name)
	if err != nil {
		return err
	}
	if err := doc.Write(w, wo); err != nil {
		w.Close()
		return r.fail(err, "Error: unable to write the output PDF: %s\n   %v", name, err)
	}
	if err := w.Close(); err != nil {
		return r.fail(err, "Error: unable to close the output PDF: %s", name)
	}
	r.log.Debug("document written", observability.String("file", name), observability.Int("pages", doc.PageCount()))
	return nil
}

// writeOptions derives stream and encryption settings from the session
func (r *runner) writeOptions(id pdf.Array) pdf.WriteOptions {
	wo := pdf.WriteOptions{
		Compress:   r.cfg.Compress && !r.cfg.Uncompress,
		Uncompress: r.cfg.Uncompress,
		ID:         id,
	}
	if r.cfg.Encrypted() {
		wo.Encrypt = &pdf.EncryptOptions{
			OwnerPassword: r.cfg.OwnerPassword,
			UserPassword:  r.cfg.UserPassword,
			Permissions:   uint32(r.cfg.Permissions),
			Bits128:       r.cfg.EncryptionStrength() != session.Encrypt40,
		}
		// uncompress has no effect on encrypted output
		wo.Uncompress = false
	}
	return wo
}

func (r *runner) creator() string {
	return "pdftk-ext " + r.opts.Version
}

// document returns the engine document behind a session handle
func document(h session.Handle) (*pdf.Document, error) {
	doc, ok := h.(*pdf.Document)
	if !ok {
		return nil, fmt.Errorf("unexpected document handle %T", h)
	}
	return doc, nil
}

// input returns the first opened instance of input document i
func (r *runner) input(i int) (*pdf.Document, string, error) {
	inputs := r.sess.Inputs()
	if i < 0 || i >= len(inputs) {
		return nil, "", fmt.Errorf("no input document %d", i)
	}
	h, err := r.sess.First(i)
	if err != nil {
		return nil, inputs[i].Filename, err
	}
	doc, err := document(h)
	return doc, inputs[i].Filename, err
}
