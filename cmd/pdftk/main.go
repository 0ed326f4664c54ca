// pdftk - PDF toolkit command line
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	tkerrors "github.com/BillGrim/pdftk-ext/pkg/errors"
	"github.com/BillGrim/pdftk-ext/pkg/observability"
	"github.com/BillGrim/pdftk-ext/pkg/output"
	"github.com/BillGrim/pdftk-ext/pkg/pdf"
	"github.com/BillGrim/pdftk-ext/pkg/session"
)

// Version information (set by build process)
var version = "dev"

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitInternal = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Internal Error: %v\n", r)
			code = exitInternal
		}
	}()

	code = exitOK
	rootCmd := &cobra.Command{
		Use:                "pdftk <input PDF files | - | PROMPT> [<operation> <operation arguments>] [output <output filename | - | PROMPT>] [<output options>]",
		Short:              "pdftk-ext - a handy tool for manipulating PDF",
		Version:            version,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = execute(cmd.Context(), args, stdin, stdout, stderr)
			return nil
		},
	}
	// a nil slice makes cobra fall back to os.Args
	rootCmd.SetArgs(append([]string{}, args...))
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return code
}

// execute interprets the micro-language after the help and version
// switches have been handled
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	last := ""
	if len(args) > 0 {
		last = args[len(args)-1]
	}
	switch {
	case len(args) == 0:
		fmt.Fprint(stdout, synopsis)
		return exitOK
	case last == "--help" || last == "-h":
		fmt.Fprint(stdout, header(), "\n", synopsis, "\n", description)
		return exitOK
	case hasArg(args, "--version"):
		fmt.Fprint(stdout, header())
		return exitOK
	}

	env := session.LoadEnv(os.LookupEnv)
	logger := newLogger(stderr, env.Debug || hasArg(args, "verbose"))
	opener := pdf.NewOpener(stdin, logger)
	prompter := session.NewConsolePrompter(stdin, stdout)

	sess := session.Parse(args, session.Options{
		Opener:              opener,
		Prompter:            prompter,
		Logger:              logger,
		Stderr:              stderr,
		Ask:                 env.Ask,
		MaxPasswordAttempts: env.MaxPasswordAttempts,
	})
	defer sess.Close()

	for _, w := range sess.Warnings() {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	if err := sess.Err(); err != nil {
		printError(stderr, err)
	}
	sess.Dump(stdout)

	if !sess.Valid() {
		fmt.Fprintln(stderr, "Done.  Input errors, so no output created.")
		return exitFailure
	}

	err := output.Run(ctx, sess, output.Options{
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
		Prompter: prompter,
		Opener:   opener,
		Logger:   logger,
		Version:  version,
	})
	if err != nil {
		if !errors.Is(err, output.ErrNoOutput) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFailure
	}
	return exitOK
}

// printError writes a session error, one line per member of an error list
func printError(w io.Writer, err error) {
	var list tkerrors.List
	if errors.As(err, &list) {
		for _, e := range list {
			fmt.Fprintf(w, "Error: %v\n", e)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func newLogger(w io.Writer, debug bool) observability.Logger {
	if !debug {
		return observability.NopLogger{}
	}
	return observability.NewSlogLogger(w, slog.LevelDebug)
}
