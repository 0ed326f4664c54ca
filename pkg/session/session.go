package session

import (
	"errors"
	"io"

	"github.com/BillGrim/pdftk-ext/pkg/observability"
)

// Options configures a Session
type Options struct {
	Opener   Opener
	Prompter Prompter
	Logger   observability.Logger
	// Stderr receives user-facing notices, such as a rejected password
	Stderr io.Writer
	// Ask is the interactive default; dont_ask and do_ask override it
	Ask bool
	// MaxPasswordAttempts caps password retries; 0 means no limit
	MaxPasswordAttempts int
}

// Session is the result of interpreting one command line
type Session struct {
	opts     Options
	log      observability.Logger
	cfg      Config
	registry *Registry
	arena    Arena
	seq      Sequence

	err        error
	valid      bool
	authorized bool
	warnings   []string
}

// Parse interprets args, the command line without the program name. It
// opens input documents through opts.Opener as ranges require them. The
// returned session is never nil; check Valid before producing output.
func Parse(args []string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	s := &Session{
		opts:       opts,
		log:        opts.Logger,
		registry:   newRegistry(),
		authorized: true,
	}
	s.cfg.Ask = scanAsk(args, opts.Ask)

	g := &grammar{s: s, state: stateInputFiles}
	s.err = g.run(args)

	if s.err != nil {
		s.log.Debug("command line rejected", observability.Error("error", s.err))
		s.valid = false
		_ = s.arena.Close()
		s.registry.reset()
		s.seq = nil
	} else {
		s.valid = true
	}
	return s
}

// Err returns the fatal error that ended parsing, if any
func (s *Session) Err() error {
	return s.err
}

// Config returns a copy of the session configuration
func (s *Session) Config() Config {
	return s.cfg.clone()
}

// Inputs returns copies of the input documents, in registration order
func (s *Session) Inputs() []InputDocument {
	out := make([]InputDocument, s.registry.Len())
	for i := range out {
		out[i] = *s.registry.Doc(i)
		out[i].instances = append([]InstanceID(nil), out[i].instances...)
	}
	return out
}

// Sequence returns the page ranges in command-line order
func (s *Session) Sequence() Sequence {
	out := make(Sequence, len(s.seq))
	for i, r := range s.seq {
		out[i] = append([]PageRef(nil), r...)
	}
	return out
}

// Pages returns the output page order for cat and shuffle
func (s *Session) Pages() []PageRef {
	return Assemble(s.cfg.Operation, s.seq)
}

// Instance returns an opened document instance by arena index
func (s *Session) Instance(id InstanceID) (*Instance, error) {
	return s.arena.Get(id)
}

// First returns the first opened instance of input document doc
func (s *Session) First(doc int) (Handle, error) {
	if doc < 0 || doc >= s.registry.Len() {
		return nil, errors.New("no such input document")
	}
	d := s.registry.Doc(doc)
	if !d.Opened() {
		return nil, errors.New("input document " + d.Filename + " is not open")
	}
	in, err := s.arena.Get(d.instances[0])
	if err != nil {
		return nil, err
	}
	return in.Handle, nil
}

// Warnings returns the non-fatal notices raised while parsing
func (s *Session) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

// Authorized reports whether every input was opened with owner access
func (s *Session) Authorized() bool {
	return s.authorized
}

// Close releases every opened document instance
func (s *Session) Close() error {
	return s.arena.Close()
}

func (s *Session) warn(msg string) {
	s.warnings = append(s.warnings, msg)
}
