package pdf

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

var (
	_ session.Handle = (*Document)(nil)
	_ session.Opener = (*Opener)(nil)
)

// Opener opens input documents from files, or from standard input for the
// name "-". Standard input is read once and reused for every instance.
type Opener struct {
	Stdin  io.Reader
	Logger observability.Logger

	once  sync.Once
	stdin []byte
	err   error
}

// NewOpener returns an opener reading "-" from stdin
func NewOpener(stdin io.Reader, logger observability.Logger) *Opener {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Opener{Stdin: stdin, Logger: logger}
}

// Open implements session.Opener
func (o *Opener) Open(filename, password string) (session.Handle, error) {
	doc, err := o.OpenDocument(filename, password)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenDocument opens filename and authenticates with password
func (o *Opener) OpenDocument(filename, password string) (*Document, error) {
	data, err := o.read(filename)
	if err != nil {
		return nil, err
	}
	doc, err := NewDocumentWithPassword(data, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if o.Logger != nil {
		o.Logger.Debug("document parsed",
			observability.String("file", filename),
			observability.String("version", doc.Version),
			observability.Int("pages", doc.PageCount()),
			observability.Bool("encrypted", doc.IsEncrypted()))
	}
	return doc, nil
}

// ReadFile returns the contents of filename, or of standard input for "-"
func (o *Opener) ReadFile(filename string) ([]byte, error) {
	return o.read(filename)
}

func (o *Opener) read(filename string) ([]byte, error) {
	if filename != session.StdioSentinel {
		return os.ReadFile(filename)
	}
	o.once.Do(func() {
		if o.Stdin == nil {
			o.err = fmt.Errorf("standard input is not available")
			return
		}
		o.stdin, o.err = io.ReadAll(o.Stdin)
	})
	if o.err != nil {
		return nil, o.err
	}
	// each instance edits its own copy
	return append([]byte(nil), o.stdin...), nil
}
