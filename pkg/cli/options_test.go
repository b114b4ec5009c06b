// pkg/cli/options_test.go
package cli

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func parse(t *testing.T, args ...string) (*Options, error, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	opts, err := ParseArgs(args, stdout, stderr)
	return opts, err, stdout.String() + stderr.String()
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, err, _ := parse(t)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	want := &Options{Path: ":memory:"}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}

func TestParseArgs_AllFlags(t *testing.T) {
	opts, err, _ := parse(t,
		"-j", "4", "--seed", "42", "--batch", "--debug", "--no-init-file", "my.bdb", "-f", "a.sql", "b.sql")
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}

	if opts.Path != "my.bdb" {
		t.Errorf("expected path my.bdb, got %q", opts.Path)
	}
	if opts.Jobs != 4 {
		t.Errorf("expected 4 jobs, got %d", opts.Jobs)
	}
	if opts.Seed == nil || *opts.Seed != 42 {
		t.Errorf("expected seed 42, got %v", opts.Seed)
	}
	if !reflect.DeepEqual(opts.Files, []string{"a.sql", "b.sql"}) {
		t.Errorf("expected files [a.sql b.sql], got %v", opts.Files)
	}
	if !opts.Batch || !opts.Debug || !opts.NoInitFile {
		t.Errorf("expected all boolean flags set, got %+v", opts)
	}
}

func TestParseArgs_Files(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantPath string
		want     []string
	}{
		{"single", []string{"-f", "a.sql"}, ":memory:", []string{"a.sql"}},
		{"greedy", []string{"-f", "a.sql", "b.sql", "c.sql"}, ":memory:", []string{"a.sql", "b.sql", "c.sql"}},
		{"path before files", []string{"db.bdb", "--file", "a.sql"}, "db.bdb", []string{"a.sql"}},
		{"stops at flag", []string{"-f", "a.sql", "--debug", "db.bdb"}, "db.bdb", []string{"a.sql"}},
		{"repeated", []string{"-f", "a.sql", "-f", "b.sql"}, ":memory:", []string{"a.sql", "b.sql"}},
		{"equals form", []string{"--file=a.sql", "db.bdb"}, "db.bdb", []string{"a.sql"}},
		{"none", []string{"db.bdb"}, "db.bdb", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err, _ := parse(t, tt.args...)
			if err != nil {
				t.Fatalf("ParseArgs failed: %v", err)
			}
			if opts.Path != tt.wantPath {
				t.Errorf("expected path %q, got %q", tt.wantPath, opts.Path)
			}
			if !reflect.DeepEqual(opts.Files, tt.want) {
				t.Errorf("expected files %v, got %v", tt.want, opts.Files)
			}
		})
	}
}

func TestParseArgs_ShortFlags(t *testing.T) {
	opts, err, _ := parse(t, "-j1", "-s", "-7")
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if opts.Jobs != 1 {
		t.Errorf("expected 1 job, got %d", opts.Jobs)
	}
	if opts.Seed == nil || *opts.Seed != -7 {
		t.Errorf("expected seed -7, got %v", opts.Seed)
	}
}

func TestParseArgs_SeedZeroIsSet(t *testing.T) {
	opts, err, _ := parse(t, "--seed=0")
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if opts.Seed == nil || *opts.Seed != 0 {
		t.Errorf("explicit zero seed should be kept, got %v", opts.Seed)
	}
}

func TestParseArgs_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad njob", []string{"--njob=notanumber"}},
		{"bad seed", []string{"-s", "x"}},
		{"unknown flag", []string{"--bogus"}},
		{"two paths", []string{"a.bdb", "b.bdb"}},
		{"file without path", []string{"-f"}},
		{"file followed by flag", []string{"-f", "--debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err, out := parse(t, tt.args...)
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected ErrUsage, got %v", err)
			}
			if opts != nil {
				t.Errorf("expected nil options, got %+v", opts)
			}
			if !strings.Contains(out, "Usage:") {
				t.Errorf("expected usage text, got %q", out)
			}
		})
	}
}

func TestParseArgs_Help(t *testing.T) {
	stdout := &bytes.Buffer{}
	_, err := ParseArgs([]string{"--help"}, stdout, &bytes.Buffer{})
	if !errors.Is(err, ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	for _, flag := range []string{"--njob", "--seed", "--file", "--batch", "--debug", "--no-init-file"} {
		if !strings.Contains(stdout.String(), flag) {
			t.Errorf("help should mention %s", flag)
		}
	}
}

func TestExpandFileArgs(t *testing.T) {
	got, err := expandFileArgs([]string{"-f", "a", "-", "--", "-f", "b"})
	if err != nil {
		t.Fatalf("expandFileArgs failed: %v", err)
	}
	want := []string{"-f", "a", "-f", "-", "--", "-f", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
