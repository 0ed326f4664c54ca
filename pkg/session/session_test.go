package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/pagerange"
)

func parse(t *testing.T, opener *fakeOpener, line string) *Session {
	t.Helper()
	return Parse(strings.Fields(line), Options{Opener: opener})
}

func pageNumbers(refs []PageRef) []int {
	out := make([]int, len(refs))
	for i, r := range refs {
		out[i] = r.Page
	}
	return out
}

func TestDefaultCatCoversAllInputs(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(3), "b.pdf": pages(2)})
	s := parse(t, opener, "a.pdf b.pdf output out.pdf")
	require.NoError(t, s.Err())
	require.True(t, s.Valid())

	assert.Equal(t, OpCat, s.Config().Operation)
	refs := s.Pages()
	require.Len(t, refs, 5)
	assert.Equal(t, []int{1, 2, 3, 1, 2}, pageNumbers(refs))
	for i, r := range refs {
		want := 0
		if i >= 3 {
			want = 1
		}
		assert.Equal(t, want, r.Doc)
	}
}

func TestDefaultFilterForSingleInput(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(3)})
	s := parse(t, opener, "a.pdf output out.pdf")
	require.True(t, s.Valid())
	assert.Equal(t, OpFilter, s.Config().Operation)
	assert.Empty(t, s.Sequence())

	// a single filtered input keeps its artifacts
	require.Len(t, opener.handles, 1)
	assert.Equal(t, 0, opener.handles[0].normalized)
}

func TestNormalizeOnCombine(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1), "b.pdf": pages(1)})
	s := parse(t, opener, "a.pdf b.pdf cat output out.pdf")
	require.True(t, s.Valid())
	require.Len(t, opener.handles, 2)
	for _, h := range opener.handles {
		assert.Equal(t, 1, h.normalized)
	}
}

func TestShuffleInterleave(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(3), "b.pdf": pages(2)})
	s := parse(t, opener, "A=a.pdf B=b.pdf shuffle A1-3 B1-2 output out.pdf")
	require.NoError(t, s.Err())
	require.True(t, s.Valid())

	refs := s.Pages()
	type ref struct{ doc, page int }
	got := make([]ref, len(refs))
	for i, r := range refs {
		got[i] = ref{r.Doc, r.Page}
	}
	assert.Equal(t, []ref{{0, 1}, {1, 1}, {0, 2}, {1, 2}, {0, 3}}, got)
}

func TestRepeatedPageGetsFreshInstance(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(6)})
	s := parse(t, opener, "A=a.pdf cat A5 A5E output out.pdf")
	require.NoError(t, s.Err())

	seq := s.Sequence()
	require.Len(t, seq, 2)
	first, second := seq[0][0], seq[1][0]
	assert.NotEqual(t, first.Instance, second.Instance)
	assert.Equal(t, pagerange.Rotation{Degrees: 90, Absolute: true}, second.Rotation)

	for _, id := range []InstanceID{first.Instance, second.Instance} {
		in, err := s.Instance(id)
		require.NoError(t, err)
		assert.True(t, in.Claimed(5))
		assert.Equal(t, 1, in.ClaimCount())
	}
	assert.Len(t, opener.opens, 2)
	assert.Len(t, s.Inputs()[0].Instances(), 2)
}

func TestRangesAgainstDocument(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(6), "b.pdf": pages(4)})

	tests := []struct {
		line string
		want []int
	}{
		{"A=a.pdf cat A6-1 output out.pdf", []int{6, 5, 4, 3, 2, 1}},
		{"A=a.pdf cat A1-6even output out.pdf", []int{2, 4, 6}},
		{"A=a.pdf cat A6-1even output out.pdf", []int{6, 4, 2}},
		{"a.pdf cat 3 output out.pdf", []int{3}},
		{"a.pdf cat end output out.pdf", []int{6}},
		{"a.pdf cat even output out.pdf", []int{2, 4, 6}},
		{"a.pdf cat 1-3 5-end output out.pdf", []int{1, 2, 3, 5, 6}},
		{"A=a.pdf B=b.pdf cat B A1 output out.pdf", []int{1, 2, 3, 4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := parse(t, opener, tt.line)
			require.NoError(t, s.Err())
			assert.Equal(t, tt.want, pageNumbers(s.Pages()))
		})
	}
}

func TestRotationSuffix(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(4)})
	s := parse(t, opener, "A=a.pdf cat A1-endE output out.pdf")
	require.NoError(t, s.Err())
	refs := s.Pages()
	assert.Equal(t, []int{1, 2, 3, 4}, pageNumbers(refs))
	for _, r := range refs {
		assert.Equal(t, pagerange.Rotation{Degrees: 90, Absolute: true}, r.Rotation)
	}
}

func TestParseErrors(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(6), "b.pdf": pages(2)})

	tests := []struct {
		line string
		kind tkerrors.Kind
	}{
		{"A=a.pdf A=b.pdf cat output out.pdf", tkerrors.KindDuplicateHandle},
		{"a.pdf cat B1 output out.pdf", tkerrors.KindUnboundHandle},
		{"a.pdf cat 7 output out.pdf", tkerrors.KindPageOutOfRange},
		{"a.pdf cat 3end output out.pdf", tkerrors.KindMalformedRange},
		{"a.pdf cat burst output out.pdf", tkerrors.KindGrammar},
		{"a.pdf output out.pdf cat", tkerrors.KindGrammar},
		{"a.pdf output a.pdf", tkerrors.KindGrammar},
		{"a.pdf output out.pdf output other.pdf", tkerrors.KindGrammar},
		{"a.pdf output out.pdf owner_pw x user_pw x", tkerrors.KindPasswordConflict},
		{"a.pdf output out.pdf user_pw x owner_pw x", tkerrors.KindPasswordConflict},
		{"a.pdf input_pw x y", tkerrors.KindPasswordConflict},
		{"A=a.pdf B=b.pdf input_pw A=x y", tkerrors.KindPasswordConflict},
		{"A=a.pdf B=b.pdf input_pw x B=y", tkerrors.KindPasswordConflict},
		{"A=a.pdf input_pw A=x A=y", tkerrors.KindPasswordConflict},
		{"A=a.pdf input_pw C=x", tkerrors.KindUnboundHandle},
		{"missing.pdf output out.pdf", tkerrors.KindOpenFailure},
		{"cat output out.pdf", tkerrors.KindGrammar},
		{"a.pdf attach_files x.txt to_page two output out.pdf", tkerrors.KindGrammar},
		{"a.pdf fill_form a.fdf fill_form b.fdf output out.pdf", tkerrors.KindGrammar},
		{"a.pdf fill_form a.fdf cat", tkerrors.KindGrammar},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := parse(t, opener, tt.line)
			require.Error(t, s.Err())
			assert.True(t, tkerrors.Is(s.Err(), tt.kind), "got %v", s.Err())
			assert.False(t, s.Valid())
			assert.Empty(t, s.Inputs())
		})
	}
}

func TestDuplicateHandleRejectedBeforeOpen(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1), "b.pdf": pages(1)})
	s := parse(t, opener, "A=a.pdf A=b.pdf cat A1 output out.pdf")
	assert.True(t, tkerrors.Is(s.Err(), tkerrors.KindDuplicateHandle))
	assert.Empty(t, opener.opens)
}

func TestUnexpectedTokenNamesExpectations(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})
	s := parse(t, opener, "a.pdf output out.pdf shuffle")

	var e *tkerrors.Error
	require.ErrorAs(t, s.Err(), &e)
	assert.Equal(t, "shuffle", e.Token)
	assert.Equal(t, []string{"an output option"}, e.Expected)
}

func TestOutOfRangeReportsEveryPage(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(4)})
	s := parse(t, opener, "a.pdf cat 3-6 output out.pdf")

	list, ok := s.Err().(tkerrors.List)
	require.True(t, ok, "got %T", s.Err())
	require.Len(t, list, 2)
	assert.Equal(t, "page number 5 does not exist in file a.pdf", list[0].Message)
	assert.Equal(t, "page number 6 does not exist in file a.pdf", list[1].Message)
}

func TestPromptPasswordsMayMatch(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})
	s := parse(t, opener, "a.pdf output out.pdf owner_pw PROMPT user_pw PROMPT")
	require.NoError(t, s.Err())
	cfg := s.Config()
	assert.Equal(t, PromptSentinel, cfg.OwnerPassword)
	assert.Equal(t, PromptSentinel, cfg.UserPassword)
	assert.Equal(t, Encrypt128, cfg.EncryptionStrength())
}

func TestHandlesAndFilenames(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{
		"a.pdf": pages(1), "x=y.pdf": pages(1), "AB=c.pdf": pages(1), "even.pdf": pages(1),
	})
	s := parse(t, opener, "A=a.pdf x=y.pdf AB=c.pdf even.pdf cat output out.pdf")
	require.NoError(t, s.Err())

	inputs := s.Inputs()
	require.Len(t, inputs, 4)
	assert.Equal(t, byte('A'), inputs[0].Handle)
	assert.Equal(t, "a.pdf", inputs[0].Filename)
	assert.Equal(t, "x=y.pdf", inputs[1].Filename)
	assert.Equal(t, byte(0), inputs[1].Handle)
	assert.Equal(t, "AB=c.pdf", inputs[2].Filename)
	assert.Equal(t, "even.pdf", inputs[3].Filename)
}

func TestInputPasswords(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1), "b.pdf": pages(1)})

	s := parse(t, opener, "a.pdf b.pdf input_pw p1 A=p2 cat output out.pdf")
	require.NoError(t, s.Err())
	inputs := s.Inputs()
	assert.Equal(t, "p1", inputs[0].Password)
	// no handles were declared, so the equals sign is password text
	assert.Equal(t, "A=p2", inputs[1].Password)

	s = parse(t, opener, "A=a.pdf B=b.pdf input_pw B=p2 A=p1 cat output out.pdf")
	require.NoError(t, s.Err())
	inputs = s.Inputs()
	assert.Equal(t, "p1", inputs[0].Password)
	assert.Equal(t, "p2", inputs[1].Password)
}

func TestOutputOptions(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})
	s := parse(t, opener, "a.pdf output out.pdf encrypt_40bit owner_pw own allow printing verbose copycontents compress flatten drop_xfa keep_first_id")
	require.NoError(t, s.Err())

	cfg := s.Config()
	assert.Equal(t, Encrypt40, cfg.EncryptionStrength())
	assert.Equal(t, "own", cfg.OwnerPassword)
	assert.Equal(t, PermPrinting|PermCopy|PermScreenReaders, cfg.Permissions)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.Compress)
	assert.True(t, cfg.Flatten)
	assert.True(t, cfg.DropXFA)
	assert.True(t, cfg.KeepFirstID)

	s = parse(t, opener, "a.pdf output out.pdf allow AllFeatures")
	require.NoError(t, s.Err())
	assert.Equal(t, PermAll, s.Config().Permissions)
	assert.True(t, s.Config().Permissions.Has(PermAssembly))
}

func TestFilterFamily(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(3)})

	s := parse(t, opener, "a.pdf fill_form data.fdf multibackground bg.pdf stamp st.pdf output out.pdf flatten")
	require.NoError(t, s.Err())
	cfg := s.Config()
	assert.Equal(t, OpFilter, cfg.Operation)
	assert.Equal(t, "data.fdf", cfg.FormDataFilename)
	assert.Equal(t, "bg.pdf", cfg.BackgroundFilename)
	assert.True(t, cfg.MultiBackground)
	assert.Equal(t, "st.pdf", cfg.StampFilename)
	assert.True(t, cfg.Flatten)

	s = parse(t, opener, "a.pdf attach_files x.txt y.txt to_page end output out.pdf")
	require.NoError(t, s.Err())
	cfg = s.Config()
	assert.Equal(t, []string{"x.txt", "y.txt"}, cfg.AttachFilenames)
	assert.Equal(t, AttachPageEnd, cfg.AttachPage)

	s = parse(t, opener, "a.pdf attach_files x.txt to_page PROMPT output out.pdf")
	require.NoError(t, s.Err())
	assert.Equal(t, AttachPagePrompt, s.Config().AttachPage)

	s = parse(t, opener, "a.pdf update_info_utf8 info.txt output out.pdf")
	require.NoError(t, s.Err())
	assert.True(t, s.Config().UpdateInfoUTF8)
	assert.Equal(t, "info.txt", s.Config().UpdateInfoFilename)

	s = parse(t, opener, "a.pdf dump_data_utf8 output report.txt")
	require.NoError(t, s.Err())
	assert.Equal(t, OpDumpData, s.Config().Operation)
	assert.True(t, s.Config().OutputUTF8)
}

func TestBackgroundOutputOptionWarns(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1), "b.pdf": pages(1)})

	s := parse(t, opener, "a.pdf output out.pdf background bg.pdf")
	require.NoError(t, s.Err())
	assert.Empty(t, s.Warnings())
	assert.Equal(t, "bg.pdf", s.Config().BackgroundFilename)

	s = parse(t, opener, "a.pdf b.pdf cat output out.pdf background bg.pdf")
	require.NoError(t, s.Err())
	require.Len(t, s.Warnings(), 1)
	assert.Contains(t, s.Warnings()[0], "filter mode")
}

func TestValidity(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(2), "b.pdf": pages(2)})

	tests := []struct {
		line  string
		valid bool
	}{
		{"a.pdf burst", true},
		{"a.pdf b.pdf burst", false},
		{"a.pdf dump_data", true},
		{"a.pdf unpack_files", true},
		{"a.pdf cat", false},
		{"a.pdf b.pdf", false},
		{"a.pdf output", false},
		{"a.pdf b.pdf filter output out.pdf", false},
		{"a.pdf cat 1 output out.pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := parse(t, opener, tt.line)
			assert.Equal(t, tt.valid, s.Valid(), "err: %v", s.Err())
		})
	}
}

func TestConfigKeptAfterFailure(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})
	s := parse(t, opener, "a.pdf output out.pdf verbose owner_pw x user_pw x")
	require.Error(t, s.Err())
	cfg := s.Config()
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "out.pdf", cfg.OutputFilename)
	assert.Empty(t, s.Inputs())
	for _, h := range opener.handles {
		assert.True(t, h.closed)
	}
}

func TestAskPrePass(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})

	s := Parse(strings.Fields("a.pdf output out.pdf do_ask"), Options{Opener: opener})
	assert.True(t, s.Config().Ask)

	s = Parse(strings.Fields("a.pdf output out.pdf dont_ask"), Options{Opener: opener, Ask: true})
	assert.False(t, s.Config().Ask)

	s = Parse(strings.Fields("a.pdf output out.pdf"), Options{Opener: opener, Ask: true})
	assert.True(t, s.Config().Ask)
}

func encrypted() map[string]fakeDoc {
	return map[string]fakeDoc{"enc.pdf": {pages: 2, owner: "own", user: "usr"}}
}

func TestPasswordRetry(t *testing.T) {
	opener := newFakeOpener(encrypted())
	prompter := &fakePrompter{answers: []string{"bad", "own"}}
	var stderr bytes.Buffer

	s := Parse(strings.Fields("enc.pdf input_pw wrong output out.pdf do_ask"),
		Options{Opener: opener, Prompter: prompter, Stderr: &stderr})
	require.NoError(t, s.Err())
	assert.True(t, s.Valid())
	assert.Len(t, opener.opens, 3)
	assert.Equal(t, "own", s.Inputs()[0].Password)
	assert.Contains(t, stderr.String(), "did not work")
}

func TestPasswordRetryBlankAborts(t *testing.T) {
	opener := newFakeOpener(encrypted())
	prompter := &fakePrompter{answers: []string{""}}

	s := Parse(strings.Fields("enc.pdf input_pw wrong output out.pdf"),
		Options{Opener: opener, Prompter: prompter, Ask: true})
	require.Error(t, s.Err())
	assert.True(t, tkerrors.Is(s.Err(), tkerrors.KindOpenFailure))
	assert.Contains(t, s.Err().Error(), "owner password required")
	assert.Len(t, opener.opens, 1)
	assert.False(t, s.Authorized())
}

func TestPasswordRetryCap(t *testing.T) {
	opener := newFakeOpener(encrypted())
	prompter := &fakePrompter{answers: []string{"bad", "bad", "own"}}

	s := Parse(strings.Fields("enc.pdf output out.pdf"),
		Options{Opener: opener, Prompter: prompter, Ask: true, MaxPasswordAttempts: 2})
	require.Error(t, s.Err())
	assert.Len(t, opener.opens, 2)
	assert.Len(t, prompter.answers, 2)
}

func TestNoRetryWithoutAsk(t *testing.T) {
	opener := newFakeOpener(encrypted())
	prompter := &fakePrompter{}

	s := Parse(strings.Fields("enc.pdf output out.pdf"), Options{Opener: opener, Prompter: prompter})
	require.Error(t, s.Err())
	assert.Empty(t, prompter.asked)
}

func TestUserPasswordAllowsReports(t *testing.T) {
	opener := newFakeOpener(encrypted())

	s := parse(t, opener, "enc.pdf input_pw usr dump_data")
	require.NoError(t, s.Err())
	assert.True(t, s.Valid())
	assert.False(t, s.Authorized())

	s = parse(t, opener, "enc.pdf input_pw usr output out.pdf")
	require.Error(t, s.Err())
	assert.True(t, tkerrors.Is(s.Err(), tkerrors.KindOpenFailure))
}

func TestPromptedFilenameAndPassword(t *testing.T) {
	opener := newFakeOpener(encrypted())
	prompter := &fakePrompter{answers: []string{"enc.pdf", "own"}}

	s := Parse(strings.Fields("PROMPT input_pw PROMPT output out.pdf"),
		Options{Opener: opener, Prompter: prompter})
	require.NoError(t, s.Err())
	in := s.Inputs()[0]
	assert.Equal(t, "enc.pdf", in.Filename)
	assert.Equal(t, "own", in.Password)
}

func TestStdinAndStdout(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"-": pages(1)})
	s := parse(t, opener, "- output -")
	require.NoError(t, s.Err())
	assert.True(t, s.Valid())
}

func TestDump(t *testing.T) {
	opener := newFakeOpener(map[string]fakeDoc{"a.pdf": pages(1)})
	s := parse(t, opener, "a.pdf input_pw secret output out.pdf user_pw u allow printing verbose")
	require.NoError(t, s.Err())

	var buf bytes.Buffer
	s.Dump(&buf)
	out := buf.String()
	for _, want := range []string{
		"Command Line Data is valid.",
		"   a.pdf, secret\n",
		"   filter - Apply 'filters' to a single, input PDF based on output args.",
		"The output file will be named:\n   out.pdf\n",
		"   Output PDF will be encrypted.",
		"   Encryption strength not given. Defaulting to: 128 bits.",
		"   Given user password: u",
		"   No owner password given.",
		"   ALLOW Top Quality Printing",
		"   Assembly NOT Allowed",
		"No compression or uncompression being performed on output.",
	} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	parse(t, opener, "a.pdf output out.pdf").Dump(&buf)
	assert.Empty(t, buf.String())
}

func TestTableCoversStates(t *testing.T) {
	for st := range stateNames {
		if st == stateDone {
			continue
		}
		r, ok := table[st]
		require.True(t, ok, "state %s has no rule", st)
		assert.True(t, r.any != nil || r.text != nil || len(r.on) > 0, "state %s accepts nothing", st)
	}
}
