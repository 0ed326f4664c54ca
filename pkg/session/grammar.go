package session

import (
	"strconv"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/keyword"
	"github.com/BillGrim/pdftk-ext/pkg/observability"
)

type state int

const (
	stateInputFiles state = iota
	stateInputPasswords
	statePageSeq
	stateExpandFilter
	stateFormDataFilename
	stateAttachFilenames
	stateAttachPage
	stateUpdateInfoFilename
	stateBackgroundFilename
	stateStampFilename
	stateStampDetailedFilename
	stateOutput
	stateOutputFilename
	stateOutputArgs
	stateOwnerPassword
	stateUserPassword
	statePermissions
	stateDone
)

var stateNames = map[state]string{
	stateInputFiles:            "input-files",
	stateInputPasswords:        "input-passwords",
	statePageSeq:               "page-sequence",
	stateExpandFilter:          "expand-filter",
	stateFormDataFilename:      "form-data-filename",
	stateAttachFilenames:       "attachment-filenames",
	stateAttachPage:            "attachment-page",
	stateUpdateInfoFilename:    "update-info-filename",
	stateBackgroundFilename:    "background-filename",
	stateStampFilename:         "stamp-filename",
	stateStampDetailedFilename: "stamp-detailed-filename",
	stateOutput:                "output-keyword",
	stateOutputFilename:        "output-filename",
	stateOutputArgs:            "output-arguments",
	stateOwnerPassword:         "owner-password",
	stateUserPassword:          "user-password",
	statePermissions:           "permissions",
	stateDone:                  "done",
}

func (st state) String() string {
	if s, ok := stateNames[st]; ok {
		return s
	}
	return "unknown"
}

// action consumes one token and returns the next state
type action func(g *grammar, tok string) (state, error)

// rule describes how one state treats a token. Keyword transitions are
// looked up in on; tokens that are no keyword go to text. When any is set
// it consumes every token, keyword or not.
type rule struct {
	on       map[keyword.Keyword]action
	text     action
	any      action
	enter    func(g *grammar) error
	ranges   bool // end, even and odd are range text in this state
	expected []string
}

var table map[state]rule

func init() {
	table = buildTable()
}

func buildTable() map[state]rule {
	inputOps := map[keyword.Keyword]action{
		keyword.InputPW:            goTo(stateInputPasswords),
		keyword.Cat:                operation(OpCat, statePageSeq),
		keyword.Shuffle:            operation(OpShuffle, statePageSeq),
		keyword.Burst:              operation(OpBurst, stateOutputArgs),
		keyword.Filter:             operation(OpFilter, stateOutput),
		keyword.DumpData:           operation(OpDumpData, stateOutput),
		keyword.DumpDataUTF8:       operation(OpDumpData, stateOutput, utf8Output),
		keyword.DumpDataFields:     operation(OpDumpDataFields, stateOutput),
		keyword.DumpDataFieldsUTF8: operation(OpDumpDataFields, stateOutput, utf8Output),
		keyword.GenerateFDF:        operation(OpGenerateFDF, stateOutput, utf8Output),
		keyword.FillForm:           operation(OpFilter, stateFormDataFilename),
		keyword.AttachFile:         operation(OpFilter, stateAttachFilenames),
		keyword.ToPage:             goTo(stateAttachPage),
		keyword.UnpackFiles:        operation(OpUnpackFiles, stateOutput),
		keyword.UpdateInfo:         operation(OpFilter, stateUpdateInfoFilename, func(c *Config) { c.UpdateInfoUTF8 = false }),
		keyword.UpdateInfoUTF8:     operation(OpFilter, stateUpdateInfoFilename, func(c *Config) { c.UpdateInfoUTF8 = true }),
		keyword.Background:         operation(OpFilter, stateBackgroundFilename),
		keyword.MultiBackground:    operation(OpFilter, stateBackgroundFilename, multiBackground),
		keyword.Stamp:              operation(OpFilter, stateStampFilename),
		keyword.MultiStamp:         operation(OpFilter, stateStampFilename, multiStamp),
		keyword.StampDetailed:      operation(OpFilter, stateStampDetailedFilename),
		keyword.Output:             goTo(stateOutputFilename),
	}

	expandFilter := map[keyword.Keyword]action{
		keyword.FillForm:        goTo(stateFormDataFilename),
		keyword.Background:      goTo(stateBackgroundFilename),
		keyword.MultiBackground: configure(stateBackgroundFilename, multiBackground),
		keyword.Stamp:           goTo(stateStampFilename),
		keyword.MultiStamp:      configure(stateStampFilename, multiStamp),
		keyword.StampDetailed:   goTo(stateStampDetailedFilename),
		keyword.Output:          goTo(stateOutputFilename),
	}

	permissions := outputOptions()
	for kw, perms := range permissionBits {
		permissions[kw] = grant(perms)
	}
	permissions[keyword.PermAll] = func(g *grammar, _ string) (state, error) {
		g.s.cfg.Permissions = PermAll
		return g.state, nil
	}

	return map[state]rule{
		stateInputFiles: {
			on:       inputOps,
			text:     (*grammar).addInput,
			expected: []string{"an input PDF filename", `an operation (e.g. "cat")`, `"input_pw"`},
		},
		stateInputPasswords: {
			on:       inputOps,
			text:     (*grammar).addPassword,
			expected: []string{"an input PDF password", `an operation (e.g. "cat")`},
		},
		statePageSeq: {
			on:       map[keyword.Keyword]action{keyword.Output: goTo(stateOutputFilename)},
			text:     (*grammar).addRange,
			enter:    (*grammar).requireInputs,
			ranges:   true,
			expected: []string{"a page range", `"output"`},
		},
		stateExpandFilter: {
			on:       expandFilter,
			expected: []string{`"fill_form"`, `"background"`, `"multibackground"`, `"stamp"`, `"multistamp"`, `"stamp_detailed"`, `"output"`},
		},
		stateFormDataFilename: {
			text:     setOnce("fill_form", func(c *Config) *string { return &c.FormDataFilename }, stateExpandFilter),
			expected: []string{"a form data filename"},
		},
		stateAttachFilenames: {
			on: map[keyword.Keyword]action{
				keyword.ToPage: goTo(stateAttachPage),
				keyword.Output: goTo(stateOutputFilename),
			},
			text:     (*grammar).addAttachment,
			expected: []string{"an attachment filename", `"to_page"`, `"output"`},
		},
		stateAttachPage: {
			any: (*grammar).attachPage,
		},
		stateUpdateInfoFilename: {
			text:     setOnce("update_info", func(c *Config) *string { return &c.UpdateInfoFilename }, stateOutput),
			expected: []string{"an info file filename"},
		},
		stateBackgroundFilename: {
			text:     setOnce("background", func(c *Config) *string { return &c.BackgroundFilename }, stateExpandFilter),
			expected: []string{"a PDF filename for the background operation"},
		},
		stateStampFilename: {
			text:     setOnce("stamp", func(c *Config) *string { return &c.StampFilename }, stateExpandFilter),
			expected: []string{"a PDF filename for the stamp operation"},
		},
		stateStampDetailedFilename: {
			text:     setOnce("detailed stamp", func(c *Config) *string { return &c.StampDetailedFilename }, stateExpandFilter),
			expected: []string{"a data filename for the stamp_detailed operation"},
		},
		stateOutput: {
			on:       map[keyword.Keyword]action{keyword.Output: goTo(stateOutputFilename)},
			enter:    (*grammar).requireInputs,
			expected: []string{`"output"`},
		},
		stateOutputFilename: {
			any: (*grammar).outputFilename,
		},
		stateOutputArgs: {
			on:       outputOptions(),
			expected: []string{"an output option"},
		},
		stateOwnerPassword: {
			any: (*grammar).ownerPassword,
		},
		stateUserPassword: {
			any: (*grammar).userPassword,
		},
		statePermissions: {
			on:       permissions,
			expected: []string{"a permission", "an output option"},
		},
	}
}

// outputOptions returns the keywords accepted anywhere in the output section.
// Options without an argument leave the state unchanged.
func outputOptions() map[keyword.Keyword]action {
	return map[keyword.Keyword]action{
		keyword.Output:      goTo(stateOutputFilename),
		keyword.OwnerPW:     goTo(stateOwnerPassword),
		keyword.UserPW:      goTo(stateUserPassword),
		keyword.Allow:       goTo(statePermissions),
		keyword.Encrypt40:   toggle(func(c *Config) { c.Encryption = Encrypt40 }),
		keyword.Encrypt128:  toggle(func(c *Config) { c.Encryption = Encrypt128 }),
		keyword.Uncompress:  toggle(func(c *Config) { c.Uncompress = true }),
		keyword.Compress:    toggle(func(c *Config) { c.Compress = true }),
		keyword.Flatten:     toggle(func(c *Config) { c.Flatten = true }),
		keyword.DropXFA:     toggle(func(c *Config) { c.DropXFA = true }),
		keyword.KeepFirstID: toggle(func(c *Config) { c.KeepFirstID = true }),
		keyword.KeepFinalID: toggle(func(c *Config) { c.KeepFinalID = true }),
		keyword.Verbose:     toggle(func(c *Config) { c.Verbose = true }),
		keyword.DontAsk:     toggle(func(c *Config) { c.Ask = false }),
		keyword.DoAsk:       toggle(func(c *Config) { c.Ask = true }),
		keyword.Background:  (*grammar).backgroundOption,
	}
}

var permissionBits = map[keyword.Keyword]Permissions{
	keyword.PermPrinting:          PermPrinting,
	keyword.PermModifyContents:    PermModifyContents | PermAssembly,
	keyword.PermCopyContents:      PermCopy | PermScreenReaders,
	keyword.PermModifyAnnotations: PermModifyAnnotations | PermFillIn,
	keyword.PermFillIn:            PermFillIn,
	keyword.PermScreenReaders:     PermScreenReaders,
	keyword.PermAssembly:          PermAssembly,
	keyword.PermDegradedPrinting:  PermDegradedPrinting,
}

func goTo(next state) action {
	return func(*grammar, string) (state, error) { return next, nil }
}

func configure(next state, set ...func(*Config)) action {
	return func(g *grammar, _ string) (state, error) {
		for _, f := range set {
			f(&g.s.cfg)
		}
		return next, nil
	}
}

func operation(op Operation, next state, set ...func(*Config)) action {
	return func(g *grammar, tok string) (state, error) {
		g.s.cfg.Operation = op
		return configure(next, set...)(g, tok)
	}
}

func toggle(set func(*Config)) action {
	return func(g *grammar, _ string) (state, error) {
		set(&g.s.cfg)
		return g.state, nil
	}
}

func grant(perms Permissions) action {
	return func(g *grammar, _ string) (state, error) {
		g.s.cfg.Permissions |= perms
		return g.state, nil
	}
}

func setOnce(what string, field func(*Config) *string, next state) action {
	return func(g *grammar, tok string) (state, error) {
		p := field(&g.s.cfg)
		if *p != "" {
			return 0, tkerrors.Newf(tkerrors.KindGrammar, tok, "multiple %s filenames given: %s and %s", what, *p, tok)
		}
		*p = tok
		return next, nil
	}
}

func utf8Output(c *Config)      { c.OutputUTF8 = true }
func multiBackground(c *Config) { c.MultiBackground = true }
func multiStamp(c *Config)      { c.MultiStamp = true }

// scanAsk finds the last dont_ask or do_ask anywhere on the command line
func scanAsk(args []string, ask bool) bool {
	for _, arg := range args {
		switch kw, _ := keyword.Classify(arg); kw {
		case keyword.DontAsk:
			ask = false
		case keyword.DoAsk:
			ask = true
		}
	}
	return ask
}

type grammar struct {
	s     *Session
	state state

	entered map[state]bool

	// input password bookkeeping
	pwHandles   bool
	pwNoHandles bool
	pwNext      int
}

func (g *grammar) run(args []string) error {
	for _, tok := range args {
		if g.state == stateDone {
			break
		}
		if err := g.step(tok); err != nil {
			return err
		}
	}
	return g.finish()
}

func (g *grammar) step(tok string) error {
	r, ok := table[g.state]
	if !ok {
		return tkerrors.Newf(tkerrors.KindInternal, tok, "unexpected parser state %s", g.state)
	}

	if r.enter != nil && !g.entered[g.state] {
		if err := r.enter(g); err != nil {
			return err
		}
		if g.entered == nil {
			g.entered = make(map[state]bool)
		}
		g.entered[g.state] = true
	}

	kw, _ := keyword.Classify(tok)
	if kw.IsRangeSuffix() && !r.ranges {
		kw = keyword.None
	}

	var act action
	switch {
	case r.any != nil:
		act = r.any
	case r.on[kw] != nil:
		act = r.on[kw]
	case kw == keyword.None || kw.IsRangeSuffix():
		act = r.text
	}
	if act == nil {
		return tkerrors.New(tkerrors.KindGrammar, tok, "unexpected command-line data").WithExpected(r.expected...)
	}

	next, err := act(g, tok)
	if err != nil {
		return err
	}
	if next != g.state {
		g.s.log.Debug("grammar transition",
			observability.String("token", tok),
			observability.String("from", g.state.String()),
			observability.String("to", next.String()))
	}
	g.state = next
	return nil
}

// finish opens any input not yet opened once the tokens run out
func (g *grammar) finish() error {
	return g.s.openAll()
}

func (g *grammar) requireInputs() error {
	if g.s.registry.Len() == 0 {
		return tkerrors.New(tkerrors.KindGrammar, "", "no input files")
	}
	return nil
}

// splitHandle splits "<handle>=<value>". The equals sign only introduces a
// handle when it follows a single upper-case letter.
func splitHandle(tok string) (byte, string, bool) {
	if len(tok) >= 2 && tok[1] == '=' && 'A' <= tok[0] && tok[0] <= 'Z' {
		return tok[0], tok[2:], true
	}
	return 0, tok, false
}

func (g *grammar) addInput(tok string) (state, error) {
	handle, filename, _ := splitHandle(tok)
	if _, err := g.s.registry.Add(handle, filename, tok); err != nil {
		return 0, err
	}
	return g.state, nil
}

func (g *grammar) addPassword(tok string) (state, error) {
	reg := g.s.registry
	handle, password, ok := splitHandle(tok)
	if !reg.HasHandles() {
		ok, password = false, tok
	}

	if !ok {
		if g.pwHandles {
			return 0, tkerrors.New(tkerrors.KindPasswordConflict, tok,
				"expected a handle for this input PDF password; handles must be given with all input passwords or with none")
		}
		g.pwNoHandles = true
		if g.pwNext >= reg.Len() {
			return 0, tkerrors.New(tkerrors.KindPasswordConflict, tok, "more input passwords than input PDF documents")
		}
		reg.Doc(g.pwNext).Password = password
		g.pwNext++
		return g.state, nil
	}

	if g.pwNoHandles {
		return 0, tkerrors.New(tkerrors.KindPasswordConflict, tok,
			"expected no handle for this input PDF password; handles must be given with all input passwords or with none")
	}
	g.pwHandles = true

	idx, found := reg.Lookup(handle)
	if !found {
		return 0, tkerrors.Newf(tkerrors.KindUnboundHandle, tok, "password handle %c is not associated with an input PDF file", handle)
	}
	doc := reg.Doc(idx)
	if doc.Password != "" {
		return 0, tkerrors.Newf(tkerrors.KindPasswordConflict, tok, "handle %c is already associated with a password", handle)
	}
	doc.Password = password
	return g.state, nil
}

func (g *grammar) addAttachment(tok string) (state, error) {
	g.s.cfg.AttachFilenames = append(g.s.cfg.AttachFilenames, tok)
	return g.state, nil
}

func (g *grammar) attachPage(tok string) (state, error) {
	switch tok {
	case PromptSentinel:
		g.s.cfg.AttachPage = AttachPagePrompt
	case "end":
		g.s.cfg.AttachPage = AttachPageEnd
	default:
		n, err := parseDigits(tok)
		if err != nil {
			return 0, tkerrors.New(tkerrors.KindGrammar, tok, "expecting a (1-based) page number")
		}
		g.s.cfg.AttachPage = n
	}
	return stateOutput, nil
}

func parseDigits(tok string) (int, error) {
	if tok == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(tok)
}

// outputFilename closes the input side of the command line: it applies the
// default operation, opens every input and fills in missing page ranges.
func (g *grammar) outputFilename(tok string) (state, error) {
	s := g.s
	cfg := &s.cfg

	if cfg.Operation == OpNone {
		if s.registry.Len() > 1 {
			cfg.Operation = OpCat
		} else {
			cfg.Operation = OpFilter
		}
	}

	if err := s.openAll(); err != nil {
		return 0, err
	}

	if (cfg.Operation == OpCat || cfg.Operation == OpShuffle) && len(s.seq) == 0 {
		if err := s.wholeDocuments(); err != nil {
			return 0, err
		}
	}

	if cfg.OutputFilename != "" {
		return 0, tkerrors.Newf(tkerrors.KindGrammar, tok, "multiple output filenames given: %s and %s", cfg.OutputFilename, tok)
	}
	cfg.OutputFilename = tok

	// input and output may both be stdin and stdout
	if tok != StdioSentinel {
		for i := 0; i < s.registry.Len(); i++ {
			if s.registry.Doc(i).Filename == tok {
				return 0, tkerrors.Newf(tkerrors.KindGrammar, tok, "the output filename %s matches an input filename", tok)
			}
		}
	}
	return stateOutputArgs, nil
}

func (g *grammar) ownerPassword(tok string) (state, error) {
	cfg := &g.s.cfg
	if cfg.OwnerPassword != "" {
		return 0, tkerrors.Newf(tkerrors.KindGrammar, tok, "multiple output owner passwords given: %s and %s", cfg.OwnerPassword, tok)
	}
	if cfg.UserPassword == tok && tok != PromptSentinel {
		return 0, samePasswords(tok)
	}
	cfg.OwnerPassword = tok
	return stateOutputArgs, nil
}

func (g *grammar) userPassword(tok string) (state, error) {
	cfg := &g.s.cfg
	if cfg.UserPassword != "" {
		return 0, tkerrors.Newf(tkerrors.KindGrammar, tok, "multiple output user passwords given: %s and %s", cfg.UserPassword, tok)
	}
	if cfg.OwnerPassword == tok && tok != PromptSentinel {
		return 0, samePasswords(tok)
	}
	cfg.UserPassword = tok
	return stateOutputArgs, nil
}

func samePasswords(tok string) error {
	return tkerrors.New(tkerrors.KindPasswordConflict, tok,
		"the user and owner passwords are the same; PDF viewers read this as no owner password, so they must differ")
}

// backgroundOption handles "background" given after the output filename
func (g *grammar) backgroundOption(tok string) (state, error) {
	if g.s.cfg.Operation != OpFilter {
		g.s.warn(`the "background" output option works only in filter mode; ` +
			`use background as an operation instead: pdftk in.pdf background back.pdf output out.pdf`)
	}
	return stateBackgroundFilename, nil
}
