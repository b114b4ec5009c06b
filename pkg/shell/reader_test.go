// pkg/shell/reader_test.go
package shell

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineReader_ReadLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine string
		wantEOF  bool
	}{
		{
			name:     "simple line",
			input:    "SELECT 1;\n",
			wantLine: "SELECT 1;",
			wantEOF:  false,
		},
		{
			name:     "empty line",
			input:    "\n",
			wantLine: "",
			wantEOF:  false,
		},
		{
			name:     "EOF",
			input:    "",
			wantLine: "",
			wantEOF:  true,
		},
		{
			name:     "line with trailing whitespace",
			input:    "SELECT * FROM t;  \r\n",
			wantLine: "SELECT * FROM t;",
			wantEOF:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLineReader(strings.NewReader(tt.input), nil)

			line, eof := r.ReadLine()

			if line != tt.wantLine {
				t.Errorf("ReadLine() line = %q, want %q", line, tt.wantLine)
			}
			if eof != tt.wantEOF {
				t.Errorf("ReadLine() eof = %v, want %v", eof, tt.wantEOF)
			}
		})
	}
}

func TestLineReader_NilInput(t *testing.T) {
	r := NewLineReader(nil, nil)
	if _, eof := r.ReadLine(); !eof {
		t.Error("expected EOF from nil input")
	}
}

func TestLineReader_ReadStatement(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantEOF bool
	}{
		{"single line", "SELECT 1;\n", "SELECT 1;", false},
		{"multi line", "SELECT *\nFROM users;\n", "SELECT *\nFROM users;", false},
		{"dot command", ".tables\nSELECT 1;\n", ".tables", false},
		{"dot command without newline", ".quit", ".quit", true},
		{"skips blank lines", "\n  \nSELECT 2;\n", "SELECT 2;", false},
		{"skips leading comments", "-- setup\nSELECT 3;\n", "SELECT 3;", false},
		{"incomplete at EOF", "SELECT 1", "SELECT 1", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLineReader(strings.NewReader(tt.input), nil)

			stmt, eof := r.ReadStatement()

			if stmt != tt.want {
				t.Errorf("ReadStatement() = %q, want %q", stmt, tt.want)
			}
			if eof != tt.wantEOF {
				t.Errorf("ReadStatement() eof = %v, want %v", eof, tt.wantEOF)
			}
		})
	}
}

func TestLineReader_Prompts(t *testing.T) {
	output := &bytes.Buffer{}
	r := NewLineReader(strings.NewReader("SELECT\n1;\n"), output)

	r.ReadStatement()

	if got := output.String(); got != "bayeslite>       ...> " {
		t.Errorf("unexpected prompts %q", got)
	}
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		input    string
		complete bool
	}{
		{"SELECT 1;", true},
		{"SELECT 1", false},
		{"", false},
		{";", true},
		{"SELECT * FROM t WHERE a = 'hello;world';", true}, // semicolon inside string doesn't count
		{"SELECT * FROM t WHERE a = 'hello", false},         // unclosed string
		{"SELECT 'it''s';", true},
		{"SELECT \"a;b\"", false},
		{"SELECT * FROM t; SELECT 2;", true},
		{"-- comment;\nSELECT 1", false},
		{"-- comment\nSELECT 1;", true},
		{"SELECT /* ; */ 1", false},
		{"SELECT 1; /* open", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsComplete(tt.input); got != tt.complete {
				t.Errorf("IsComplete(%q) = %v, want %v", tt.input, got, tt.complete)
			}
		})
	}
}

func TestLineReader_History(t *testing.T) {
	r := NewLineReader(strings.NewReader("SELECT 1;\nSELECT 1;\n.tables\n"), nil)
	for {
		if _, eof := r.ReadStatement(); eof {
			break
		}
	}

	history := r.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %v", history)
	}
	if history[0] != "SELECT 1;" || history[1] != ".tables" {
		t.Errorf("unexpected history %v", history)
	}

	// History is a copy.
	history[0] = "changed"
	if r.History()[0] != "SELECT 1;" {
		t.Error("History should return a copy")
	}
}

func TestLineReader_MaxHistory(t *testing.T) {
	r := NewLineReader(nil, nil)
	r.maxHistory = 3

	for _, s := range []string{"a", "b", "c", "d"} {
		r.AddHistory(s)
	}

	history := r.History()
	if len(history) != 3 || history[0] != "b" || history[2] != "d" {
		t.Errorf("expected [b c d], got %v", history)
	}
}
