// Package session interprets a command line into a validated plan: input
// documents, configuration and the ordered page references of the output.
package session

// PromptSentinel is the filename or password value meaning "ask interactively"
const PromptSentinel = "PROMPT"

// StdioSentinel is the filename meaning standard input, or standard output
// when given as the output filename
const StdioSentinel = "-"

// Handle is one opened instance of an input document
type Handle interface {
	// PageCount returns the number of pages in the document
	PageCount() int
	// PageRotation returns the current /Rotate value of a 1-based page
	PageRotation(page int) (int, error)
	// OwnerAuthorized reports whether the document is unencrypted or was
	// opened with its owner password
	OwnerAuthorized() bool
	// Normalize performs one-time cleanup of the document, such as pruning
	// unused objects. It must be idempotent.
	Normalize() error
	Close() error
}

// Opener opens input documents. A wrong password is reported with an error
// wrapping errors.ErrBadPassword.
type Opener interface {
	Open(filename, password string) (Handle, error)
}

// Prompter asks the user for missing values
type Prompter interface {
	// Password asks for a password; purpose is "open", "owner" or "user"
	Password(purpose, target string) (string, error)
	// Filename asks for a filename with the given message
	Filename(message string) (string, error)
	// Confirm asks a yes/no question
	Confirm(message string) (bool, error)
}
