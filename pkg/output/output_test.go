package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// memFS keeps output files in memory
type memFS struct {
	files    map[string]*bytes.Buffer
	existing map[string]bool
}

func newMemFS(existing ...string) *memFS {
	fs := &memFS{files: map[string]*bytes.Buffer{}, existing: map[string]bool{}}
	for _, name := range existing {
		fs.existing[name] = true
	}
	return fs
}

func (fs *memFS) Exists(name string) bool {
	_, ok := fs.files[name]
	return ok || fs.existing[name]
}

func (fs *memFS) Create(name string) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	fs.files[name] = buf
	return nopWriteCloser{buf}, nil
}

func (fs *memFS) document(t *testing.T, name, password string) *pdf.Document {
	t.Helper()
	buf, ok := fs.files[name]
	require.True(t, ok, "no output file %s", name)
	doc, err := pdf.NewDocumentWithPassword(buf.Bytes(), password)
	require.NoError(t, err)
	return doc
}

// scriptPrompter answers from fixed lists and records the questions
type scriptPrompter struct {
	passwords []string
	filenames []string
	confirms  []bool
	asked     []string
}

func (p *scriptPrompter) Password(purpose, target string) (string, error) {
	p.asked = append(p.asked, "password "+purpose)
	if len(p.passwords) == 0 {
		return "", io.EOF
	}
	pw := p.passwords[0]
	p.passwords = p.passwords[1:]
	return pw, nil
}

func (p *scriptPrompter) Filename(message string) (string, error) {
	p.asked = append(p.asked, message)
	if len(p.filenames) == 0 {
		return "", io.EOF
	}
	name := p.filenames[0]
	p.filenames = p.filenames[1:]
	return name, nil
}

func (p *scriptPrompter) Confirm(message string) (bool, error) {
	p.asked = append(p.asked, message)
	if len(p.confirms) == 0 {
		return false, io.EOF
	}
	ok := p.confirms[0]
	p.confirms = p.confirms[1:]
	return ok, nil
}

// buildPDF numbers objects from 1 and writes a valid cross-reference table
func buildPDF(objects ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// pagesPDF builds a document of n pages of the given width
func pagesPDF(n int, width int) []byte {
	kids := make([]string, n)
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>", ""}
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 792] >>", width))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)
	return buildPDF(objects...)
}

// formPDF builds a one page document with a single text field
func formPDF() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (name) /V (Ann) /Rect [0 0 100 20] /P 3 0 R >>",
	)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

type harness struct {
	fs       *memFS
	prompter *scriptPrompter
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newHarness(existing ...string) *harness {
	return &harness{fs: newMemFS(existing...), prompter: &scriptPrompter{}}
}

// run parses args with a real opener and produces the output
func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	opener := pdf.NewOpener(nil, nil)
	sess := session.Parse(args, session.Options{Opener: opener, Prompter: h.prompter})
	t.Cleanup(func() { sess.Close() })
	require.NoError(t, sess.Err())
	require.True(t, sess.Valid(), "session for %v is not valid", args)

	return Run(context.Background(), sess, Options{
		Stdout:   &h.stdout,
		Stderr:   &h.stderr,
		Prompter: h.prompter,
		Opener:   opener,
		FS:       h.fs,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) },
		Version:  "1.0",
	})
}

func TestCatenate(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(3, 612))
	b := writeFile(t, dir, "b.pdf", pagesPDF(2, 842))

	h := newHarness()
	require.NoError(t, h.run(t, "A="+a, "B="+b, "cat", "A1-2", "Bend", "A3E", "output", "out.pdf"))

	out := h.fs.document(t, "out.pdf", "")
	require.Equal(t, 4, out.PageCount())
	assert.Equal(t, 612.0, out.PageBox(1, "MediaBox").Width())
	assert.Equal(t, 842.0, out.PageBox(3, "MediaBox").Width())
	rot, err := out.PageRotation(4)
	require.NoError(t, err)
	assert.Equal(t, 90, rot)

	creator, _ := out.Info().Get("Creator").(pdf.String)
	assert.Equal(t, "pdftk-ext 1.0", creator.Text())
	assert.Empty(t, h.stderr.String())
}

func TestShuffle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(2, 612))
	b := writeFile(t, dir, "b.pdf", pagesPDF(2, 842))

	h := newHarness()
	require.NoError(t, h.run(t, "A="+a, "B="+b, "shuffle", "A1-2", "B1-2", "output", "out.pdf"))

	out := h.fs.document(t, "out.pdf", "")
	require.Equal(t, 4, out.PageCount())
	var widths []float64
	for num := 1; num <= 4; num++ {
		widths = append(widths, out.PageBox(num, "MediaBox").Width())
	}
	assert.Equal(t, []float64{612, 842, 612, 842}, widths)
}

func TestCatenateVerbose(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	require.NoError(t, h.run(t, a, "cat", "output", "out.pdf", "verbose"))
	assert.Contains(t, h.stdout.String(), "Creating Output ...")
	assert.Contains(t, h.stdout.String(), "Adding page 1 X0X  from "+a)
}

func TestEncryptedOutput(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	require.NoError(t, h.run(t, a, "output", "out.pdf", "owner_pw", "own", "user_pw", "usr", "allow", "printing"))

	assert.False(t, h.fs.document(t, "out.pdf", "usr").OwnerAuthorized())
	assert.True(t, h.fs.document(t, "out.pdf", "own").OwnerAuthorized())
	_, err := pdf.NewDocument(h.fs.files["out.pdf"].Bytes())
	assert.ErrorIs(t, err, pdf.ErrBadPassword)
}

func TestPromptedPasswords(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	h.prompter.passwords = []string{"own", "usr"}
	require.NoError(t, h.run(t, a, "output", "out.pdf", "owner_pw", "PROMPT", "user_pw", "PROMPT"))
	assert.Equal(t, []string{"password owner", "password user"}, h.prompter.asked)
	assert.True(t, h.fs.document(t, "out.pdf", "own").OwnerAuthorized())
}

func TestSamePasswordsRejected(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	h.prompter.passwords = []string{"same", "same"}
	err := h.run(t, a, "output", "out.pdf", "owner_pw", "PROMPT", "user_pw", "PROMPT")
	require.ErrorIs(t, err, ErrNoOutput)
	assert.Contains(t, h.stderr.String(), "The user and owner passwords are the same.")
	assert.Empty(t, h.fs.files)
}

func TestBurst(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(3, 612))
	outDir := filepath.Join(dir, "pages")

	h := newHarness()
	require.NoError(t, h.run(t, a, "burst", "output", filepath.Join(outDir, "page_%02d.pdf")))

	for num := 1; num <= 3; num++ {
		page := h.fs.document(t, filepath.Join(outDir, fmt.Sprintf("page_%02d.pdf", num)), "")
		assert.Equal(t, 1, page.PageCount())
	}
	report, ok := h.fs.files[filepath.Join(outDir, docDataName)]
	require.True(t, ok)
	assert.Contains(t, report.String(), "NumberOfPages: 3\n")
}

func TestBurstBadPattern(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(2, 612))

	h := newHarness()
	err := h.run(t, a, "burst", "output", "pages.pdf")
	require.ErrorIs(t, err, ErrNoOutput)
	assert.Contains(t, h.stderr.String(), "no page number verb")
	assert.Empty(t, h.fs.files)
}

func TestBurstName(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
		wantErr  bool
	}{
		{DefaultBurstPattern, "pg_0007.pdf", false},
		{"out/%d.pdf", "out/7.pdf", false},
		{"plain.pdf", "", true},
		{"%d-%d.pdf", "", true},
		{"%s.pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			name, err := burstName(tt.pattern, 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestReportToStdout(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(2, 612))

	h := newHarness()
	require.NoError(t, h.run(t, a, "dump_data"))
	assert.Contains(t, h.stdout.String(), "NumberOfPages: 2\n")
	assert.Empty(t, h.fs.files)

	h = newHarness()
	require.NoError(t, h.run(t, a, "dump_data", "output", "report.txt"))
	require.Contains(t, h.fs.files, "report.txt")
	assert.Contains(t, h.fs.files["report.txt"].String(), "PageMediaNumber: 2\n")
}

func TestReportWithUserPassword(t *testing.T) {
	dir := t.TempDir()
	var encrypted bytes.Buffer
	src, err := pdf.NewDocument(pagesPDF(1, 612))
	require.NoError(t, err)
	require.NoError(t, src.Write(&encrypted, pdf.WriteOptions{Encrypt: &pdf.EncryptOptions{OwnerPassword: "own", UserPassword: "usr", Bits128: true}}))
	enc := writeFile(t, dir, "enc.pdf", encrypted.Bytes())

	h := newHarness()
	require.NoError(t, h.run(t, enc, "input_pw", "usr", "dump_data"))
	assert.Contains(t, h.stdout.String(), "NumberOfPages: 1\n")
}

func TestFormReports(t *testing.T) {
	dir := t.TempDir()
	form := writeFile(t, dir, "form.pdf", formPDF())

	h := newHarness()
	require.NoError(t, h.run(t, form, "dump_data_fields"))
	assert.Contains(t, h.stdout.String(), "FieldName: name\n")

	h = newHarness()
	require.NoError(t, h.run(t, form, "generate_fdf", "output", "-"))
	fdf := h.stdout.String()
	assert.True(t, strings.HasPrefix(fdf, "%FDF-1.2\n"), fdf)
	assert.Contains(t, fdf, "(name)")
	assert.Contains(t, fdf, "(Ann)")
}

func TestGenerateFDFPromptsForOutput(t *testing.T) {
	dir := t.TempDir()
	form := writeFile(t, dir, "form.pdf", formPDF())

	h := newHarness()
	h.prompter.filenames = []string{"", "data.fdf"}
	require.NoError(t, h.run(t, form, "generate_fdf"))
	assert.Len(t, h.prompter.asked, 2)
	require.Contains(t, h.fs.files, "data.fdf")
}

func TestFillForm(t *testing.T) {
	dir := t.TempDir()
	form := writeFile(t, dir, "form.pdf", formPDF())
	data := writeFile(t, dir, "data.xfdf", []byte(`<?xml version="1.0" encoding="UTF-8"?>
<xfdf xmlns="http://ns.adobe.com/xfdf/"><fields><field name="name"><value>Bea</value></field></fields></xfdf>`))

	h := newHarness()
	require.NoError(t, h.run(t, form, "fill_form", data, "output", "out.pdf"))

	fields := h.fs.document(t, "out.pdf", "").GetFormFields()
	require.Len(t, fields, 1)
	assert.Equal(t, "Bea", fields[0].Value)

	h = newHarness()
	require.NoError(t, h.run(t, form, "fill_form", data, "output", "flat.pdf", "flatten"))
	flat := h.fs.document(t, "flat.pdf", "")
	assert.False(t, flat.HasForm())
}

func TestFilterOverlayAndInfo(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(2, 612))
	bg := writeFile(t, dir, "bg.pdf", pagesPDF(1, 612))
	info := writeFile(t, dir, "info.txt", []byte("InfoBegin\nInfoKey: Title\nInfoValue: Quarterly\n"))

	h := newHarness()
	require.NoError(t, h.run(t, a, "background", bg, "output", "out.pdf"))
	assert.Contains(t, h.fs.files["out.pdf"].String(), "/pdftkMark1 Do")
	assert.Equal(t, 2, h.fs.document(t, "out.pdf", "").PageCount())

	h = newHarness()
	require.NoError(t, h.run(t, a, "update_info", info, "output", "out.pdf"))
	title, _ := h.fs.document(t, "out.pdf", "").Info().Get("Title").(pdf.String)
	assert.Equal(t, "Quarterly", title.Text())
}

func TestFilterMissingAuxiliaryFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	err := h.run(t, a, "stamp", filepath.Join(dir, "missing.pdf"), "output", "out.pdf")
	require.ErrorIs(t, err, ErrNoOutput)
	assert.Contains(t, h.stderr.String(), "Failed to open stamp PDF file")
	assert.Empty(t, h.fs.files)
}

func TestAttachToPromptedPage(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(2, 612))
	note := writeFile(t, dir, "note.txt", []byte("remember"))

	h := newHarness()
	h.prompter.filenames = []string{"9", "end"}
	require.NoError(t, h.run(t, a, "attach_files", note, "to_page", "PROMPT", "output", "out.pdf"))
	assert.Len(t, h.prompter.asked, 2)

	attachments := h.fs.document(t, "out.pdf", "").Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "note.txt", attachments[0].Name)
	assert.Equal(t, 2, attachments[0].Page)
}

func TestUnpackFiles(t *testing.T) {
	dir := t.TempDir()
	note := writeFile(t, dir, "note.txt", []byte("remember"))
	src, err := pdf.NewDocument(pagesPDF(1, 612))
	require.NoError(t, err)
	require.NoError(t, src.AttachFiles([]string{note}, session.AttachDocument))
	var buf bytes.Buffer
	require.NoError(t, src.Write(&buf, pdf.WriteOptions{}))
	attached := writeFile(t, dir, "attached.pdf", buf.Bytes())

	outDir := filepath.Join(dir, "unpacked")
	h := newHarness()
	require.NoError(t, h.run(t, attached, "unpack_files", "output", outDir))

	content, err := os.ReadFile(filepath.Join(outDir, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remember", string(content))
}

func TestOverwriteConfirmation(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness("out.pdf")
	h.prompter.confirms = []bool{false}
	h.prompter.filenames = []string{"other.pdf"}
	require.NoError(t, h.run(t, a, "output", "out.pdf", "do_ask"))
	assert.NotContains(t, h.fs.files, "out.pdf")
	assert.Contains(t, h.fs.files, "other.pdf")

	h = newHarness("out.pdf")
	require.NoError(t, h.run(t, a, "output", "out.pdf", "dont_ask"))
	assert.Contains(t, h.fs.files, "out.pdf")
	assert.Empty(t, h.prompter.asked)
}

func TestOutputToStdout(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", pagesPDF(1, 612))

	h := newHarness()
	require.NoError(t, h.run(t, a, "output", "-"))
	assert.True(t, strings.HasPrefix(h.stdout.String(), "%PDF-1."))
	assert.Empty(t, h.fs.files)
}

func TestRunInvalidSession(t *testing.T) {
	assert.ErrorIs(t, Run(context.Background(), nil, Options{}), ErrInvalidSession)

	sess := session.Parse([]string{"cat"}, session.Options{Opener: pdf.NewOpener(nil, nil)})
	assert.ErrorIs(t, Run(context.Background(), sess, Options{}), ErrInvalidSession)
}

func TestKeepID(t *testing.T) {
	dir := t.TempDir()
	withID := func(name string, id byte) string {
		src, err := pdf.NewDocument(pagesPDF(1, 612))
		require.NoError(t, err)
		ids := pdf.Array{pdf.String{Value: []byte{id, id}, IsHex: true}, pdf.String{Value: []byte{id}, IsHex: true}}
		var buf bytes.Buffer
		require.NoError(t, src.Write(&buf, pdf.WriteOptions{ID: ids}))
		return writeFile(t, dir, name, buf.Bytes())
	}
	a := withID("a.pdf", 0xAA)
	b := withID("b.pdf", 0xBB)

	tests := []struct {
		option string
		first  []byte
	}{
		{"keep_first_id", []byte{0xAA, 0xAA}},
		{"keep_final_id", []byte{0xBB, 0xBB}},
	}
	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			h := newHarness()
			require.NoError(t, h.run(t, a, b, "cat", "output", "out.pdf", tt.option))
			id := h.fs.document(t, "out.pdf", "").ID()
			require.Len(t, id, 2)
			first, _ := id[0].(pdf.String)
			assert.Equal(t, tt.first, first.Value)
		})
	}
}
