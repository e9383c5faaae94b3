package proc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_Success(t *testing.T) {
	var buf bytes.Buffer
	res, err := Run(context.Background(), &buf, "/bin/sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if got := buf.String(); got != "hello\n" {
		t.Errorf("output = %q, want %q", got, "hello\n")
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := Run(context.Background(), io.Discard, "/bin/sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRun_MergesStderr(t *testing.T) {
	var buf bytes.Buffer
	_, err := Run(context.Background(), &buf, "/bin/sh", "-c", "echo out; echo err 1>&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
		t.Errorf("output = %q, want both stdout and stderr lines", out)
	}
}

func TestRun_StdinIsClosed(t *testing.T) {
	// cat exits as soon as its stdin reports EOF.
	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		defer close(done)
		res, err = Run(context.Background(), io.Discard, "cat")
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run(cat) did not return; stdin was not closed")
	}
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRun_DrainsLargeOutput(t *testing.T) {
	var n countingWriter
	done := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), &n, "/bin/sh", "-c", "head -c 1048576 /dev/zero; head -c 1048576 /dev/zero 1>&2")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("Run() hung on large output")
	}
	if n != 2*1048576 {
		t.Errorf("forwarded %d bytes, want %d", n, 2*1048576)
	}
}

func TestRun_KeepsDrainingWhenSinkFails(t *testing.T) {
	res, err := Run(context.Background(), failingWriter{}, "/bin/sh", "-c", "head -c 1048576 /dev/zero")
	if err == nil {
		t.Fatal("Run() error = nil, want forward error")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRun_StartError(t *testing.T) {
	_, err := Run(context.Background(), io.Discard, "/nonexistent/definitely-not-here")
	if err == nil {
		t.Fatal("Run() error = nil, want start error")
	}
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Run() error = %T %v, want *StartError", err, err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, io.Discard, "/bin/sh", "-c", "exec sleep 30")
	if err == nil {
		t.Fatal("Run() error = nil, want context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRun_AlreadyCancelledIsNotStartError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, io.Discard, "/bin/true")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	var startErr *StartError
	if errors.As(err, &startErr) {
		t.Errorf("Run() error = %v, want no *StartError for a cancelled context", err)
	}
}

type countingWriter int

func (w *countingWriter) Write(p []byte) (int, error) {
	*w += countingWriter(len(p))
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("sink closed")
}
