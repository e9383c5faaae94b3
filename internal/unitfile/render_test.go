package unitfile

import (
	"errors"
	"strings"
	"testing"
)

var testParams = Params{
	UserName: "alice",
	Runtime:  "/usr/bin/run",
	Artifact: "/opt/w/worker.bin",
	Args:     "-foo bar",
}

func TestRender_RoundTrip(t *testing.T) {
	tmpl := "User={username}\nExecStart={runtime} {artifact} {args}\n"

	got, err := Render(tmpl, testParams)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "User=alice\nExecStart=/usr/bin/run /opt/w/worker.bin -foo bar\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	if placeholderPattern.MatchString(got) {
		t.Errorf("Render() left placeholders in %q", got)
	}
}

func TestRender_Deterministic(t *testing.T) {
	first, err := RenderDefault(testParams)
	if err != nil {
		t.Fatalf("RenderDefault() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := RenderDefault(testParams)
		if err != nil {
			t.Fatalf("RenderDefault() error = %v", err)
		}
		if again != first {
			t.Fatalf("RenderDefault() run %d differs:\n%s\nvs\n%s", i, again, first)
		}
	}
}

func TestRenderDefault(t *testing.T) {
	output, err := RenderDefault(testParams)
	if err != nil {
		t.Fatalf("RenderDefault() error = %v", err)
	}

	for _, want := range []string{
		"[Unit]",
		"[Service]",
		"[Install]",
		"User=alice",
		"ExecStart=/usr/bin/run /opt/w/worker.bin -foo bar",
		"Restart=always",
		"WantedBy=multi-user.target",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "{") {
		t.Errorf("output still contains a brace token:\n%s", output)
	}
}

func TestRenderDefault_NoArgs(t *testing.T) {
	p := testParams
	p.Args = ""

	output, err := RenderDefault(p)
	if err != nil {
		t.Fatalf("RenderDefault() error = %v", err)
	}
	if !strings.Contains(output, "ExecStart=/usr/bin/run /opt/w/worker.bin\n") {
		t.Errorf("ExecStart line not trimmed:\n%s", output)
	}
	for i, line := range strings.Split(output, "\n") {
		if strings.TrimRight(line, " \t") != line {
			t.Errorf("line %d has trailing whitespace: %q", i+1, line)
		}
	}
}

func TestRender_ValuesAreNotReexpanded(t *testing.T) {
	p := testParams
	p.Args = "{username}"

	got, err := Render("{username} {runtime} {artifact} {args}", p)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "alice /usr/bin/run /opt/w/worker.bin {username}" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRender_UnknownPlaceholder(t *testing.T) {
	_, err := Render("{username} {runtime} {artifact} {args} {jvm}", testParams)
	var tplErr *TemplateError
	if !errors.As(err, &tplErr) {
		t.Fatalf("Render() error = %v, want *TemplateError", err)
	}
	if len(tplErr.Unknown) != 1 || tplErr.Unknown[0] != "{jvm}" {
		t.Errorf("Unknown = %v, want [{jvm}]", tplErr.Unknown)
	}
	if !strings.Contains(err.Error(), "{jvm}") {
		t.Errorf("error %q does not name the placeholder", err)
	}
}

func TestRender_MissingPlaceholder(t *testing.T) {
	_, err := Render("ExecStart={runtime} {artifact}", testParams)
	var tplErr *TemplateError
	if !errors.As(err, &tplErr) {
		t.Fatalf("Render() error = %v, want *TemplateError", err)
	}
	want := []string{PlaceholderUserName, PlaceholderArgs}
	if strings.Join(tplErr.Missing, ",") != strings.Join(want, ",") {
		t.Errorf("Missing = %v, want %v", tplErr.Missing, want)
	}
}

func TestRender_IgnoresEnvironmentReferences(t *testing.T) {
	tmpl := "Environment=HOME=${HOME}\nUser={username}\nExecStart={runtime} {artifact} {args}\n"
	got, err := Render(tmpl, testParams)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(got, "${HOME}") {
		t.Errorf("Render() dropped ${HOME}: %q", got)
	}
}

func TestQuoteArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"empty", nil, ""},
		{"plain", []string{"-url", "https://ci.example.com/"}, "-url https://ci.example.com/"},
		{"space", []string{"-name", "build agent"}, `-name "build agent"`},
		{"quote", []string{`say "hi"`}, `"say \"hi\""`},
		{"backslash", []string{`C:\tmp`}, `"C:\\tmp"`},
		{"empty arg", []string{""}, `""`},
		{"percent", []string{"50%"}, "50%%"},
		{"dollar", []string{"$HOME"}, "$$HOME"},
		{"semicolon", []string{"a;b"}, `"a;b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteArgs(tt.args); got != tt.want {
				t.Errorf("QuoteArgs(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestServiceFileName(t *testing.T) {
	if got := ServiceFileName("worker-abcd1234"); got != "worker-abcd1234.service" {
		t.Errorf("ServiceFileName() = %q", got)
	}
}
