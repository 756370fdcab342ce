// Package repl implements the interactive shell: statements are accumulated
// until a ';', backslash commands control the session, and each parsed query
// goes through one compile+execute cycle.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	dberrors "github.com/rembrandb/rembrandb/internal/errors"
	"github.com/rembrandb/rembrandb/internal/jit"
	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

// Options carries the flag-controlled behavior of the shell.
type Options struct {
	Optimize    bool // run the optimization pipeline
	PrintResult bool // print the result table after execution
	DumpIR      bool // dump the module before execution
}

type Shell struct {
	catalog *table.Catalog
	opts    Options
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	prompt  bool
}

// NewShell creates a shell reading statements from in. The prompt is only
// shown when reading from a terminal.
func NewShell(catalog *table.Catalog, opts Options, in io.Reader, out, errOut io.Writer) *Shell {
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isatty.IsTerminal(f.Fd())
	}
	return &Shell{
		catalog: catalog,
		opts:    opts,
		in:      bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		prompt:  prompt,
	}
}

// Start runs the read-eval-print loop until \q, a ^-prefixed line, or EOF.
func (s *Shell) Start() {
	for {
		statement, quit := s.readStatement()
		if quit {
			return
		}
		if statement == "" {
			continue
		}
		if statement == `\d` {
			s.catalog.PrintTables(s.out)
			continue
		}
		s.Exec(statement)
	}
}

// readStatement accumulates input lines until a ';'. A backslash command or a
// ^-prefixed line is returned on its own as soon as the line is read. The
// second return value reports that the shell should quit.
func (s *Shell) readStatement() (string, bool) {
	var buffer strings.Builder
	for {
		if s.prompt {
			fmt.Fprint(s.out, "> ")
		}
		line, err := s.in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if buffer.Len() == 0 {
			if line == `\q` || strings.HasPrefix(line, "^") {
				return "", true
			}
			if strings.HasPrefix(line, `\`) {
				return line, false
			}
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			buffer.WriteString(line[:i])
			return strings.TrimSpace(buffer.String()), false
		}
		buffer.WriteString(line)
		buffer.WriteString(" ")
		if err != nil {
			// EOF acts as \q; an incomplete statement is dropped.
			return "", true
		}
	}
}

// Exec parses and executes a single statement. Syntax errors re-prompt
// silently; overflow is reported and the shell continues.
func (s *Shell) Exec(statement string) {
	query, err := parser.Parse(statement, s.catalog)
	if err != nil {
		logrus.WithError(err).Debug("statement rejected")
		return
	}

	start := time.Now()
	result, err := jit.Execute(query, jit.Options{
		Optimize: s.opts.Optimize,
		DumpIR:   s.opts.DumpIR,
		Out:      s.out,
	})
	if err != nil {
		msg := err.Error()
		if qe, ok := err.(*dberrors.QueryError); ok {
			msg = qe.Message
		}
		fmt.Fprintf(s.errOut, "ERROR: %s\n", msg)
	}
	fmt.Fprintf(s.out, "Total Runtime: %f seconds\n", time.Since(start).Seconds())

	if result != nil && s.opts.PrintResult {
		result.Print(s.out)
	}
}
