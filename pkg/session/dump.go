package session

import (
	"fmt"
	"io"
)

var operationDescriptions = map[Operation]string{
	OpCat:     "   cat - Catenate given page ranges into a new PDF.",
	OpShuffle: "   shuffle - Interleave given page ranges into a new PDF.",
	OpBurst:   "   burst - Split a single, input PDF into individual pages.",
	OpFilter: "   filter - Apply 'filters' to a single, input PDF based on output args.\n" +
		"      (When the operation is omitted, this is the default.)",
	OpDumpData:       "   dump_data - Report statistics on a single, input PDF.",
	OpDumpDataFields: "   dump_data_fields - Report form field data on a single, input PDF.",
	OpGenerateFDF:    "   generate_fdf - Generate a dummy FDF file from a PDF.",
	OpUnpackFiles:    "   unpack_files - Copy PDF file attachments into given directory.",
	OpNone:           "   NONE - No operation has been given.  See usage instructions.",
}

// Dump writes the verbose report of the parsed command line to w. It writes
// nothing unless verbose was given.
func (s *Session) Dump(w io.Writer) {
	if !s.cfg.Verbose {
		return
	}
	if s.valid && !s.inputsOpened() {
		fmt.Fprintln(w, "Input PDF Open Errors")
		return
	}

	if s.Valid() {
		fmt.Fprintln(w, "Command Line Data is valid.")
	} else {
		fmt.Fprintln(w, "Command Line Data is NOT valid.")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input PDF Filenames & Passwords in Order\n( <filename>[, <password>] ) ")
	if s.registry.Len() == 0 {
		fmt.Fprintln(w, "   No input PDF filenames have been given.")
	}
	for i := 0; i < s.registry.Len(); i++ {
		d := s.registry.Doc(i)
		fmt.Fprint(w, "   ", d.Filename)
		if d.Password != "" {
			fmt.Fprint(w, ", ", d.Password)
		}
		if !d.Authorized {
			fmt.Fprint(w, ", OWNER PASSWORD REQUIRED, but not given (or incorrect)")
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "The operation to be performed: ")
	if desc, ok := operationDescriptions[s.cfg.Operation]; ok {
		fmt.Fprintln(w, desc)
	} else {
		fmt.Fprintln(w, "   INTERNAL ERROR - An unexpected operation has been given.")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "The output file will be named:")
	if s.cfg.OutputFilename == "" {
		fmt.Fprintln(w, "   No output filename has been given.")
	} else {
		fmt.Fprintln(w, "   "+s.cfg.OutputFilename)
	}

	s.dumpEncryption(w)

	fmt.Fprintln(w)
	switch {
	case s.cfg.Operation != OpFilter || s.cfg.Encrypted() || !(s.cfg.Compress || s.cfg.Uncompress):
		fmt.Fprintln(w, "No compression or uncompression being performed on output.")
	case s.cfg.Compress:
		fmt.Fprintln(w, "Compression will be applied to some PDF streams.")
	default:
		fmt.Fprintln(w, "Some PDF streams will be uncompressed.")
	}
}

func (s *Session) dumpEncryption(w io.Writer) {
	cfg := s.cfg
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output PDF encryption settings:")
	if !cfg.Encrypted() {
		fmt.Fprintln(w, "   Output PDF will not be encrypted.")
		return
	}
	fmt.Fprintln(w, "   Output PDF will be encrypted.")

	switch cfg.Encryption {
	case EncryptNone:
		fmt.Fprintln(w, "   Encryption strength not given. Defaulting to: 128 bits.")
	case Encrypt40:
		fmt.Fprintln(w, "   Given output encryption strength: 40 bits")
	case Encrypt128:
		fmt.Fprintln(w, "   Given output encryption strength: 128 bits")
	}

	fmt.Fprintln(w)
	if cfg.UserPassword == "" {
		fmt.Fprintln(w, "   No user password given.")
	} else {
		fmt.Fprintln(w, "   Given user password: "+cfg.UserPassword)
	}
	if cfg.OwnerPassword == "" {
		fmt.Fprintln(w, "   No owner password given.")
	} else {
		fmt.Fprintln(w, "   Given owner password: "+cfg.OwnerPassword)
	}

	perms := cfg.Permissions
	switch {
	case perms.Has(PermPrinting):
		fmt.Fprintln(w, "   ALLOW Top Quality Printing")
	case perms&PermPrinting == PermDegradedPrinting:
		fmt.Fprintln(w, "   ALLOW Degraded Printing (Top-Quality Printing NOT Allowed)")
	default:
		fmt.Fprintln(w, "   Printing NOT Allowed")
	}
	for _, p := range []struct {
		bit  Permissions
		name string
	}{
		{PermModifyContents, "Modifying of Contents"},
		{PermCopy, "Copying of Contents"},
		{PermModifyAnnotations, "Modifying of Annotations"},
		{PermFillIn, "Fill-In"},
		{PermScreenReaders, "Screen Readers"},
		{PermAssembly, "Assembly"},
	} {
		if perms.Has(p.bit) {
			fmt.Fprintln(w, "   ALLOW "+p.name)
		} else {
			fmt.Fprintln(w, "   "+p.name+" NOT Allowed")
		}
	}
}
