package session

import (
	"os"
	"strconv"
	"strings"
)

// Operation is the action a session performs
type Operation int

const (
	OpNone Operation = iota
	OpCat
	OpShuffle
	OpBurst
	OpFilter
	OpDumpData
	OpDumpDataFields
	OpGenerateFDF
	OpUnpackFiles
)

const (
	firstOperation = OpCat
	finalOperation = OpUnpackFiles
)

func (op Operation) String() string {
	switch op {
	case OpCat:
		return "cat"
	case OpShuffle:
		return "shuffle"
	case OpBurst:
		return "burst"
	case OpFilter:
		return "filter"
	case OpDumpData:
		return "dump_data"
	case OpDumpDataFields:
		return "dump_data_fields"
	case OpGenerateFDF:
		return "generate_fdf"
	case OpUnpackFiles:
		return "unpack_files"
	case OpNone:
		return "none"
	}
	return "unknown"
}

// IsReport reports whether the operation only reads its input and may
// therefore run without owner authorization
func (op Operation) IsReport() bool {
	return op == OpDumpData || op == OpDumpDataFields || op == OpGenerateFDF
}

// needsOutputFilename reports whether the operation must be given "output <fn>"
func (op Operation) needsOutputFilename() bool {
	switch op {
	case OpBurst, OpDumpData, OpDumpDataFields, OpGenerateFDF, OpUnpackFiles:
		return false
	}
	return true
}

// singleInput reports whether the operation accepts exactly one input
func (op Operation) singleInput() bool {
	return op == OpBurst || op == OpFilter
}

// Encryption is the requested output encryption strength
type Encryption int

const (
	EncryptNone Encryption = iota
	Encrypt40
	Encrypt128
)

// Permissions is the user permission bit set of an encrypted output
type Permissions uint32

const (
	PermDegradedPrinting  Permissions = 4
	PermModifyContents    Permissions = 8
	PermCopy              Permissions = 16
	PermModifyAnnotations Permissions = 32
	PermFillIn            Permissions = 256
	PermScreenReaders     Permissions = 512
	PermAssembly          Permissions = 1024
	PermPrinting          Permissions = 2048 | PermDegradedPrinting

	PermAll = PermPrinting | PermModifyContents | PermCopy | PermModifyAnnotations |
		PermFillIn | PermScreenReaders | PermAssembly
)

// Has reports whether every bit of q is set in p
func (p Permissions) Has(q Permissions) bool {
	return p&q == q
}

// Attachment target pages with a special meaning
const (
	AttachDocument   = 0  // attach at document level
	AttachPagePrompt = -1 // ask for the page later
	AttachPageEnd    = -2 // attach to the final page
)

// Config is the configuration accumulated from the command line
type Config struct {
	Operation      Operation
	OutputFilename string
	OutputUTF8     bool

	OwnerPassword string
	UserPassword  string
	Permissions   Permissions
	Encryption    Encryption

	Uncompress  bool
	Compress    bool
	Flatten     bool
	DropXFA     bool
	KeepFirstID bool
	KeepFinalID bool
	Verbose     bool
	Ask         bool

	FormDataFilename      string
	BackgroundFilename    string
	MultiBackground       bool
	StampFilename         string
	MultiStamp            bool
	StampDetailedFilename string
	UpdateInfoFilename    string
	UpdateInfoUTF8        bool
	AttachFilenames       []string
	AttachPage            int
}

// Encrypted reports whether the output must be encrypted
func (c Config) Encrypted() bool {
	return c.Encryption != EncryptNone || c.OwnerPassword != "" || c.UserPassword != ""
}

// EncryptionStrength returns the effective strength; 128 bits unless 40 was asked for
func (c Config) EncryptionStrength() Encryption {
	if !c.Encrypted() {
		return EncryptNone
	}
	if c.Encryption == Encrypt40 {
		return Encrypt40
	}
	return Encrypt128
}

func (c Config) clone() Config {
	c.AttachFilenames = append([]string(nil), c.AttachFilenames...)
	return c
}

// Environment variables read by OptionsFromEnv
const (
	EnvDebug               = "PDFTK_DEBUG"
	EnvAsk                 = "PDFTK_ASK"
	EnvMaxPasswordAttempts = "PDFTK_MAX_PASSWORD_ATTEMPTS"
)

// EnvSettings holds the process-level knobs taken from the environment
type EnvSettings struct {
	Debug               bool
	Ask                 bool
	MaxPasswordAttempts int
}

// LoadEnv reads EnvSettings through lookup, usually os.LookupEnv
func LoadEnv(lookup func(string) (string, bool)) EnvSettings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var env EnvSettings
	if v, ok := lookup(EnvDebug); ok {
		env.Debug = truthy(v)
	}
	if v, ok := lookup(EnvAsk); ok {
		env.Ask = truthy(v)
	}
	if v, ok := lookup(EnvMaxPasswordAttempts); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			env.MaxPasswordAttempts = n
		}
	}
	return env
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
