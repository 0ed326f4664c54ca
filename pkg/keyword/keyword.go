// Package keyword classifies command-line tokens into operation and option keywords
package keyword

import "strings"

// Keyword identifies a recognized command-line keyword
type Keyword int

const (
	None Keyword = iota

	// operations
	Cat
	Shuffle
	Burst
	Filter
	DumpData
	DumpDataUTF8
	DumpDataFields
	DumpDataFieldsUTF8
	GenerateFDF
	FillForm
	AttachFile
	UnpackFiles
	UpdateInfo
	UpdateInfoUTF8
	Background
	MultiBackground
	Stamp
	MultiStamp
	StampDetailed

	// sections
	InputPW
	ToPage
	Output

	// output options
	OwnerPW
	UserPW
	Allow
	Encrypt40
	Encrypt128
	Uncompress
	Compress
	Flatten
	DropXFA
	KeepFirstID
	KeepFinalID
	Verbose
	DontAsk
	DoAsk

	// permissions
	PermPrinting
	PermModifyContents
	PermCopyContents
	PermModifyAnnotations
	PermFillIn
	PermScreenReaders
	PermAssembly
	PermDegradedPrinting
	PermAll

	// page range suffixes
	End
	Even
	Odd
)

// exact maps lower-cased whole tokens to keywords, aliases included
var exact = map[string]Keyword{
	"cat":     Cat,
	"shuffle": Shuffle,
	"burst":   Burst,
	"filter":  Filter,

	"dump_data": DumpData,
	"dumpdata":  DumpData,
	"data_dump": DumpData,
	"datadump":  DumpData,

	"dump_data_utf8":        DumpDataUTF8,
	"dump_data_fields":      DumpDataFields,
	"dump_data_fields_utf8": DumpDataFieldsUTF8,

	"generate_fdf":         GenerateFDF,
	"fdfgen":               GenerateFDF,
	"fdfdump":              GenerateFDF,
	"dump_data_fields_fdf": GenerateFDF,

	"fill_form": FillForm,
	"fillform":  FillForm,

	"attach_file":  AttachFile,
	"attach_files": AttachFile,
	"attachfile":   AttachFile,

	"unpack_file":  UnpackFiles,
	"unpack_files": UnpackFiles,
	"unpackfiles":  UnpackFiles,

	"update_info":      UpdateInfo,
	"undateinfo":       UpdateInfo,
	"update_info_utf8": UpdateInfoUTF8,
	"undateinfoutf8":   UpdateInfoUTF8,

	"background":      Background,
	"multibackground": MultiBackground,
	"stamp":           Stamp,
	"multistamp":      MultiStamp,
	"stamp_detailed":  StampDetailed,

	"input_pw": InputPW,
	"inputpw":  InputPW,
	"to_page":  ToPage,
	"topage":   ToPage,
	"output":   Output,

	"owner_pw": OwnerPW,
	"ownerpw":  OwnerPW,
	"user_pw":  UserPW,
	"userpw":   UserPW,
	"allow":    Allow,

	"uncompress":    Uncompress,
	"compress":      Compress,
	"flatten":       Flatten,
	"drop_xfa":      DropXFA,
	"keep_first_id": KeepFirstID,
	"keep_final_id": KeepFinalID,
	"verbose":       Verbose,
	"dont_ask":      DontAsk,
	"dontask":       DontAsk,
	"do_ask":        DoAsk,

	"printing":          PermPrinting,
	"modifycontents":    PermModifyContents,
	"copycontents":      PermCopyContents,
	"modifyannotations": PermModifyAnnotations,
	"fillin":            PermFillIn,
	"screenreaders":     PermScreenReaders,
	"assembly":          PermAssembly,
	"degradedprinting":  PermDegradedPrinting,
	"allfeatures":       PermAll,
}

func init() {
	// every spelling of encrypt_<n>bit[s] with optional underscores
	for _, bits := range []string{"40", "128"} {
		kw := Encrypt40
		if bits == "128" {
			kw = Encrypt128
		}
		for _, lead := range []string{"encrypt_", "encrypt"} {
			for _, mid := range []string{"", "_"} {
				for _, tail := range []string{"bit", "bits"} {
					exact[lead+bits+mid+tail] = kw
				}
			}
		}
	}
}

// suffixes are matched on a fixed-length prefix, in this order
var suffixes = []struct {
	text string
	kw   Keyword
}{
	{"end", End},
	{"even", Even},
	{"odd", Odd},
}

// Classify maps a raw token to its keyword and reports how many bytes of the
// token the match consumed. Whole-token keywords consume the entire token.
// The page range suffixes end, even and odd match a prefix of the token, so
// "evenW" yields (Even, 4). Tokens that match nothing yield (None, 0).
func Classify(token string) (Keyword, int) {
	lower := strings.ToLower(token)
	if kw, ok := exact[lower]; ok {
		return kw, len(token)
	}
	for _, s := range suffixes {
		if strings.HasPrefix(lower, s.text) {
			return s.kw, len(s.text)
		}
	}
	return None, 0
}

// IsRangeSuffix reports whether k only has meaning inside a page range
func (k Keyword) IsRangeSuffix() bool {
	return k == End || k == Even || k == Odd
}

// IsPermission reports whether k names an output permission
func (k Keyword) IsPermission() bool {
	return k >= PermPrinting && k <= PermAll
}

var names = map[Keyword]string{
	None:                  "none",
	Cat:                   "cat",
	Shuffle:               "shuffle",
	Burst:                 "burst",
	Filter:                "filter",
	DumpData:              "dump_data",
	DumpDataUTF8:          "dump_data_utf8",
	DumpDataFields:        "dump_data_fields",
	DumpDataFieldsUTF8:    "dump_data_fields_utf8",
	GenerateFDF:           "generate_fdf",
	FillForm:              "fill_form",
	AttachFile:            "attach_files",
	UnpackFiles:           "unpack_files",
	UpdateInfo:            "update_info",
	UpdateInfoUTF8:        "update_info_utf8",
	Background:            "background",
	MultiBackground:       "multibackground",
	Stamp:                 "stamp",
	MultiStamp:            "multistamp",
	StampDetailed:         "stamp_detailed",
	InputPW:               "input_pw",
	ToPage:                "to_page",
	Output:                "output",
	OwnerPW:               "owner_pw",
	UserPW:                "user_pw",
	Allow:                 "allow",
	Encrypt40:             "encrypt_40bit",
	Encrypt128:            "encrypt_128bit",
	Uncompress:            "uncompress",
	Compress:              "compress",
	Flatten:               "flatten",
	DropXFA:               "drop_xfa",
	KeepFirstID:           "keep_first_id",
	KeepFinalID:           "keep_final_id",
	Verbose:               "verbose",
	DontAsk:               "dont_ask",
	DoAsk:                 "do_ask",
	PermPrinting:          "printing",
	PermModifyContents:    "modifycontents",
	PermCopyContents:      "copycontents",
	PermModifyAnnotations: "modifyannotations",
	PermFillIn:            "fillin",
	PermScreenReaders:     "screenreaders",
	PermAssembly:          "assembly",
	PermDegradedPrinting:  "degradedprinting",
	PermAll:               "allfeatures",
	End:                   "end",
	Even:                  "even",
	Odd:                   "odd",
}

// String returns the canonical spelling of the keyword
func (k Keyword) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}
