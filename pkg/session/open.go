package session

import (
	"errors"
	"fmt"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/observability"
)

// maxPasswordLength is the longest password the standard security handler uses
const maxPasswordLength = 32

var errNotOwner = errors.New("owner password required, but not given (or incorrect)")

// keepArtifacts reports whether opens must leave the input untouched, which
// is the case when filtering a single document
func (s *Session) keepArtifacts() bool {
	return s.cfg.Operation == OpFilter && s.registry.Len() == 1
}

// openAll opens every input that has no instance yet. All inputs are tried
// so that every failure is reported.
func (s *Session) openAll() error {
	var errs tkerrors.List
	for i := 0; i < s.registry.Len(); i++ {
		if err := s.ensureOpen(i); err != nil {
			var e *tkerrors.Error
			if errors.As(err, &e) {
				errs = append(errs, e)
			} else {
				errs = append(errs, tkerrors.Wrap(tkerrors.KindOpenFailure, s.registry.Doc(i).Filename, err, "failed to open PDF file"))
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ensureOpen opens the first instance of document idx if it has none
func (s *Session) ensureOpen(idx int) error {
	if s.registry.Doc(idx).Opened() {
		return nil
	}
	_, err := s.openInstance(idx, s.keepArtifacts())
	return err
}

// openInstance opens a new instance of document idx and adds it to the
// arena. A rejected open is retried with a fresh password from the prompter
// while ask mode is on, until the user enters a blank password or the
// attempt cap is reached.
func (s *Session) openInstance(idx int, keepArtifacts bool) (InstanceID, error) {
	doc := s.registry.Doc(idx)

	if doc.Filename == PromptSentinel {
		name, err := s.promptFilename("Please enter a filename for an input PDF:")
		if err != nil {
			return 0, tkerrors.Wrap(tkerrors.KindOpenFailure, PromptSentinel, err, "failed to read an input filename")
		}
		doc.Filename = name
	}
	if doc.Password == PromptSentinel {
		pw, err := s.promptPassword("open", "the input PDF:\n   "+doc.Filename)
		if err != nil {
			return 0, tkerrors.Wrap(tkerrors.KindOpenFailure, doc.Filename, err, "failed to read a password")
		}
		doc.Password = pw
	}

	for attempt := 1; ; attempt++ {
		h, err := s.tryOpen(doc)
		if err == nil {
			id := s.arena.add(idx, h)
			doc.instances = append(doc.instances, id)
			if doc.PageCount == 0 {
				doc.PageCount = h.PageCount()
			}
			s.log.Debug("opened input",
				observability.String("file", doc.Filename),
				observability.Int("instance", int(id)),
				observability.Int("pages", doc.PageCount),
				observability.Bool("owner", h.OwnerAuthorized()))
			if !keepArtifacts {
				if err := h.Normalize(); err != nil {
					return 0, tkerrors.Wrap(tkerrors.KindOpenFailure, doc.Filename, err, "failed to normalize PDF file")
				}
			}
			s.authorized = s.authorized && doc.Authorized
			return id, nil
		}

		s.log.Debug("open failed",
			observability.String("file", doc.Filename),
			observability.Int("attempt", attempt),
			observability.Error("error", err))

		retry := s.cfg.Ask && (s.opts.MaxPasswordAttempts == 0 || attempt < s.opts.MaxPasswordAttempts)
		if retry {
			fmt.Fprintf(s.opts.Stderr, "The password you supplied for the input PDF:\n   %s\n"+
				"   did not work.  This PDF is encrypted, and you must supply the\n"+
				"   owner password to open it.  If it has no owner password, then\n"+
				"   enter the user password, instead.  To quit, enter a blank password\n"+
				"   at the next prompt.\n", doc.Filename)
			pw, perr := s.promptPassword("open", "the input PDF:\n   "+doc.Filename)
			if perr == nil && pw != "" {
				doc.Password = pw
				doc.Authorized = true
				continue
			}
		}

		s.authorized = s.authorized && doc.Authorized
		msg := "failed to open PDF file"
		if !doc.Authorized {
			msg += ": owner password required, but not given (or incorrect)"
		}
		return 0, tkerrors.Wrap(tkerrors.KindOpenFailure, doc.Filename, err, msg)
	}
}

// tryOpen runs one open attempt and applies the owner authorization rule.
// Read-only report operations accept a user-level open.
func (s *Session) tryOpen(doc *InputDocument) (Handle, error) {
	if s.opts.Opener == nil {
		return nil, errors.New("no document opener configured")
	}
	h, err := s.opts.Opener.Open(doc.Filename, doc.Password)
	if err != nil {
		if errors.Is(err, tkerrors.ErrBadPassword) {
			doc.Authorized = false
		}
		return nil, err
	}
	doc.Authorized = h.OwnerAuthorized()
	if !doc.Authorized && !s.cfg.Operation.IsReport() {
		_ = h.Close()
		return nil, errNotOwner
	}
	return h, nil
}

func (s *Session) promptPassword(purpose, target string) (string, error) {
	if s.opts.Prompter == nil {
		return "", errors.New("interactive input is not available")
	}
	pw, err := s.opts.Prompter.Password(purpose, target)
	if err != nil {
		return "", err
	}
	if len(pw) > maxPasswordLength {
		fmt.Fprintf(s.opts.Stderr, "The password you entered was over %d characters long,\n   so I am dropping: %q\n",
			maxPasswordLength, pw[maxPasswordLength:])
		pw = pw[:maxPasswordLength]
	}
	return pw, nil
}

func (s *Session) promptFilename(message string) (string, error) {
	if s.opts.Prompter == nil {
		return "", errors.New("interactive input is not available")
	}
	return s.opts.Prompter.Filename(message)
}

// claim returns an instance of document doc that has not yet supplied page,
// opening a fresh instance when every existing one already has.
func (s *Session) claim(doc, page int) (InstanceID, error) {
	for _, id := range s.registry.Doc(doc).instances {
		in, err := s.arena.Get(id)
		if err != nil {
			return 0, tkerrors.Wrap(tkerrors.KindInternal, s.registry.Doc(doc).Filename, err, "claim lookup failed")
		}
		if !in.Claimed(page) {
			in.claim(page)
			return id, nil
		}
	}

	id, err := s.openInstance(doc, false)
	if err != nil {
		return 0, err
	}
	in, err := s.arena.Get(id)
	if err != nil {
		return 0, tkerrors.Wrap(tkerrors.KindInternal, s.registry.Doc(doc).Filename, err, "unable to add reader")
	}
	in.claim(page)
	return id, nil
}
