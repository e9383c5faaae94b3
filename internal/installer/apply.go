package installer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plexsphere/plexinstall/internal/fsutil"
	"github.com/plexsphere/plexinstall/internal/proc"
	"github.com/plexsphere/plexinstall/internal/unitfile"
)

// InstallTask is everything the elevated side needs, as plain data.
type InstallTask struct {
	ServiceName    string `json:"service_name"`
	UnitDir        string `json:"unit_dir"`
	Systemctl      string `json:"systemctl"`
	StorageDir     string `json:"storage_dir"`
	ArtifactName   string `json:"artifact_name"`
	SourceArtifact string `json:"source_artifact"`
	UserName       string `json:"user_name"`
	Runtime        string `json:"runtime"`
	Args           string `json:"args"`
}

// ArtifactPath is where the artifact is deployed.
func (t InstallTask) ArtifactPath() string {
	return filepath.Join(t.StorageDir, t.ArtifactName)
}

// UnitPath is where the unit file is written.
func (t InstallTask) UnitPath() string {
	return filepath.Join(t.UnitDir, unitfile.ServiceFileName(t.ServiceName))
}

// Apply performs the privileged install sequence: copy the artifact, render
// and write the unit file, start the service. It must run with enough
// privileges to write UnitDir and StorageDir. Output of "systemctl start" is
// streamed to out as it is produced.
//
// Completed steps are never undone. A non-zero exit from systemctl leaves the
// artifact and unit file on disk and returns an *InstallError with
// StageActivate.
func Apply(ctx context.Context, task InstallTask, out io.Writer, logger *slog.Logger) error {
	logger = logger.With("component", "installer", "service", task.ServiceName)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	// 1. Copy artifact
	artifactPath := task.ArtifactPath()
	if err := os.MkdirAll(task.StorageDir, 0o755); err != nil {
		return &InstallError{Stage: StageCopy, Service: task.ServiceName, Path: task.StorageDir, Err: err}
	}
	if err := fsutil.CopyFileAtomic(task.SourceArtifact, artifactPath, 0o755); err != nil {
		return &InstallError{Stage: StageCopy, Service: task.ServiceName, Path: artifactPath, Err: err}
	}
	logger.Info("artifact installed", "src", task.SourceArtifact, "dst", artifactPath)

	// 2. Render unit
	body, err := unitfile.RenderDefault(unitfile.Params{
		UserName: task.UserName,
		Runtime:  task.Runtime,
		Artifact: artifactPath,
		Args:     task.Args,
	})
	if err != nil {
		return &InstallError{Stage: StageRender, Service: task.ServiceName, Err: err}
	}

	// 3. Write unit file, replacing any previous definition
	unitPath := task.UnitPath()
	if err := fsutil.WriteFileAtomic(task.UnitDir, filepath.Base(unitPath), []byte(body), 0o644); err != nil {
		return &InstallError{Stage: StageWriteUnit, Service: task.ServiceName, Path: unitPath, Err: err}
	}
	logger.Info("unit file written", "path", unitPath)

	// 4. Start service
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	res, err := proc.Run(ctx, out, task.Systemctl, "start", task.ServiceName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
		}
		return &InstallError{Stage: StageActivate, Service: task.ServiceName, ExitCode: res.ExitCode, Err: err}
	}
	if !res.Success() {
		// Too late to recover: the unit file is already in place.
		logger.Error("service failed to start", "exit_code", res.ExitCode)
		return &InstallError{Stage: StageActivate, Service: task.ServiceName, ExitCode: res.ExitCode}
	}

	logger.Info("service started")
	return nil
}
