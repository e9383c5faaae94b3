package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/plexsphere/plexinstall/internal/remote"
)

// ErrProbeAborted is returned by the Factory when the capability probe was
// interrupted. Installation cannot proceed.
var ErrProbeAborted = errors.New("installer: capability probe aborted")

// ErrInterrupted is returned when an install was interrupted mid-sequence.
var ErrInterrupted = errors.New("installer: interrupted during install")

// Stage names the step of the elevated sequence that failed.
type Stage string

// Install stages in execution order.
const (
	StageCopy      Stage = "copy"
	StageRender    Stage = "render"
	StageWriteUnit Stage = "write_unit"
	StageActivate  Stage = "activate"
)

// failureKindInstall tags InstallErrors crossing the elevation boundary.
const failureKindInstall = "install"

// InstallError reports a failed step of the elevated sequence. Steps already
// completed are not undone.
type InstallError struct {
	Stage   Stage
	Service string
	// Path is the file being written for StageCopy and StageWriteUnit.
	Path string
	// ExitCode is the systemctl exit status for StageActivate, or -1 if it
	// could not be run.
	ExitCode int
	Err      error
}

func (e *InstallError) Error() string {
	if e.Stage == StageActivate && e.Err == nil {
		return fmt.Sprintf("installer: service %s failed to start: exit status %d", e.Service, e.ExitCode)
	}
	if e.Path != "" {
		return fmt.Sprintf("installer: %s %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("installer: %s %s: %v", e.Stage, e.Service, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Partial reports whether the host was left with files written but the
// service not started. Such a state needs manual attention.
func (e *InstallError) Partial() bool {
	return e.Stage == StageActivate
}

// toFailure encodes an Apply error for the trip back across the elevation
// boundary.
func toFailure(err error) error {
	var ie *InstallError
	switch {
	case errors.As(err, &ie):
		f := &remote.Failure{
			Kind:     failureKindInstall,
			Reason:   string(ie.Stage),
			ExitCode: ie.ExitCode,
		}
		if ie.Err != nil {
			f.Message = ie.Err.Error()
		}
		return f
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &remote.Failure{Kind: remote.KindInterrupted, Message: err.Error()}
	default:
		return err
	}
}

// fromFailure maps a Failure returned by the install task back to the
// error taxonomy of this package.
func fromFailure(f *remote.Failure, task InstallTask) error {
	switch f.Kind {
	case remote.KindInterrupted:
		return fmt.Errorf("%w: %s", ErrInterrupted, f.Message)
	case failureKindInstall:
		ie := &InstallError{
			Stage:    Stage(f.Reason),
			Service:  task.ServiceName,
			ExitCode: f.ExitCode,
		}
		switch ie.Stage {
		case StageCopy:
			ie.Path = task.ArtifactPath()
		case StageWriteUnit:
			ie.Path = task.UnitPath()
		}
		// Activation by exit status has no underlying cause.
		if f.Message != "" {
			ie.Err = errors.New(f.Message)
		}
		return ie
	default:
		return fmt.Errorf("installer: %w", f)
	}
}
