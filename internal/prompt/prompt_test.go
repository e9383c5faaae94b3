package prompt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// answers returns a file containing s, standing in for a non-terminal stdin.
func answers(t *testing.T, s string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
		t.Fatalf("WriteFile(%q) = %v", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) = %v", path, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestTerminal_Prompt(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminal(answers(t, "admin\n\n"), &out)

	got, err := p.Prompt("Specify the super user name to 'sudo' to", "root")
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if got != "admin" {
		t.Errorf("Prompt() = %q, want %q", got, "admin")
	}
	if !strings.Contains(out.String(), "[root]") {
		t.Errorf("output = %q, want default shown", out.String())
	}

	got, err = p.Prompt("Again", "root")
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if got != "root" {
		t.Errorf("Prompt() on empty answer = %q, want default %q", got, "root")
	}
}

func TestTerminal_PromptLastLineWithoutNewline(t *testing.T) {
	p := NewTerminal(answers(t, "deploy"), &bytes.Buffer{})
	got, err := p.Prompt("User", "root")
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if got != "deploy" {
		t.Errorf("Prompt() = %q, want %q", got, "deploy")
	}
}

func TestTerminal_PromptEOF(t *testing.T) {
	p := NewTerminal(answers(t, ""), &bytes.Buffer{})
	if _, err := p.Prompt("User", "root"); err == nil {
		t.Fatal("Prompt() error = nil, want EOF error")
	}
}

func TestTerminal_PromptPasswordRequiresTerminal(t *testing.T) {
	p := NewTerminal(answers(t, "secret\n"), &bytes.Buffer{})
	_, err := p.PromptPassword("Password")
	if !errors.Is(err, ErrNoTerminal) {
		t.Fatalf("PromptPassword() error = %v, want ErrNoTerminal", err)
	}
}
