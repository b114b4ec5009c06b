// pkg/shell/reader.go
package shell

import (
	"bufio"
	"io"
	"strings"
)

// LineReader splits shell input into statements. A dot command ends at
// the end of its line; SQL ends at a semicolon outside string literals
// and comments, possibly several lines later.
type LineReader struct {
	// reader reads input lines
	reader *bufio.Reader

	// output receives prompts; nil suppresses them
	output io.Writer

	// prompt is the primary prompt shown for new statements
	prompt string

	// continuePrompt is shown for multi-line statement continuation
	continuePrompt string

	// history stores completed statements for recall
	history []string

	// maxHistory is the maximum number of history entries to keep
	maxHistory int
}

// NewLineReader creates a reader over input. Prompts are written to
// output unless it is nil.
func NewLineReader(input io.Reader, output io.Writer) *LineReader {
	var reader *bufio.Reader
	if input != nil {
		reader = bufio.NewReader(input)
	}

	return &LineReader{
		reader:         reader,
		output:         output,
		prompt:         "bayeslite> ",
		continuePrompt: "      ...> ",
		maxHistory:     1000,
	}
}

// ReadLine reads a single line from input, stripping trailing whitespace.
// It returns the line and whether EOF was reached.
func (r *LineReader) ReadLine() (string, bool) {
	if r.reader == nil {
		return "", true
	}

	line, err := r.reader.ReadString('\n')
	line = strings.TrimRight(line, " \t\r\n")
	return line, err != nil
}

// ReadStatement reads one complete statement. It returns the statement
// and whether EOF was reached; at EOF an unterminated statement is
// returned as is.
func (r *LineReader) ReadStatement() (string, bool) {
	var lines []string

	for {
		if r.output != nil {
			if len(lines) == 0 {
				io.WriteString(r.output, r.prompt)
			} else {
				io.WriteString(r.output, r.continuePrompt)
			}
		}

		line, eof := r.ReadLine()

		if len(lines) == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				if eof {
					return "", true
				}
				continue
			}
			if strings.HasPrefix(trimmed, ".") {
				r.AddHistory(trimmed)
				return trimmed, eof
			}
		}

		lines = append(lines, line)
		combined := strings.Join(lines, "\n")

		if IsComplete(combined) {
			r.AddHistory(strings.TrimSpace(combined))
			return combined, eof
		}

		if eof {
			return combined, true
		}
	}
}

// IsComplete determines if a SQL statement is complete.
// A statement is complete if it contains a semicolon that is
// not inside a string literal or comment, and no literal is left open.
func IsComplete(sql string) bool {
	inSingleQuote := false
	inDoubleQuote := false
	inLineComment := false
	inBlockComment := false
	sawSemicolon := false

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch {
		case inLineComment:
			if c == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlockComment = false
				i++
			}
		case inSingleQuote:
			// A doubled quote is an escaped quote and keeps the literal open.
			if c == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++
				} else {
					inSingleQuote = false
				}
			}
		case inDoubleQuote:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					i++
				} else {
					inDoubleQuote = false
				}
			}
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			inLineComment = true
			i++
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			inBlockComment = true
			i++
		case c == '\'':
			inSingleQuote = true
		case c == '"':
			inDoubleQuote = true
		case c == ';':
			sawSemicolon = true
		}
	}

	return sawSemicolon && !inSingleQuote && !inDoubleQuote && !inBlockComment
}

// AddHistory adds a statement to the command history.
func (r *LineReader) AddHistory(stmt string) {
	if stmt == "" {
		return
	}
	// Don't add duplicates of the last entry
	if len(r.history) > 0 && r.history[len(r.history)-1] == stmt {
		return
	}

	r.history = append(r.history, stmt)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
}

// History returns a copy of the command history.
func (r *LineReader) History() []string {
	result := make([]string, len(r.history))
	copy(result, r.history)
	return result
}
