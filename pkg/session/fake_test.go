package session

import (
	"fmt"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
)

type fakeDoc struct {
	pages    int
	rotation map[int]int
	owner    string
	user     string
}

type fakeHandle struct {
	doc        fakeDoc
	owner      bool
	normalized int
	closed     bool
}

func (h *fakeHandle) PageCount() int { return h.doc.pages }

func (h *fakeHandle) PageRotation(page int) (int, error) {
	if page < 1 || page > h.doc.pages {
		return 0, fmt.Errorf("no page %d", page)
	}
	return h.doc.rotation[page], nil
}

func (h *fakeHandle) OwnerAuthorized() bool { return h.owner }

func (h *fakeHandle) Normalize() error {
	h.normalized++
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

type fakeOpener struct {
	docs    map[string]fakeDoc
	opens   []string
	handles []*fakeHandle
}

func newFakeOpener(docs map[string]fakeDoc) *fakeOpener {
	return &fakeOpener{docs: docs}
}

func (o *fakeOpener) Open(filename, password string) (Handle, error) {
	o.opens = append(o.opens, filename)
	d, ok := o.docs[filename]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file or directory", filename)
	}
	owner := true
	if d.owner != "" {
		switch password {
		case d.owner:
		case d.user:
			owner = false
		default:
			return nil, fmt.Errorf("open %s: %w", filename, tkerrors.ErrBadPassword)
		}
	}
	h := &fakeHandle{doc: d, owner: owner}
	o.handles = append(o.handles, h)
	return h, nil
}

type fakePrompter struct {
	answers []string
	asked   []string
}

func (p *fakePrompter) next(question string) (string, error) {
	p.asked = append(p.asked, question)
	if len(p.answers) == 0 {
		return "", fmt.Errorf("no answer for %q", question)
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *fakePrompter) Password(purpose, target string) (string, error) {
	return p.next(purpose + " password for " + target)
}

func (p *fakePrompter) Filename(message string) (string, error) {
	return p.next(message)
}

func (p *fakePrompter) Confirm(message string) (bool, error) {
	a, err := p.next(message)
	return a == "y", err
}

// pages returns a document with n unrotated pages
func pages(n int) fakeDoc {
	return fakeDoc{pages: n}
}
