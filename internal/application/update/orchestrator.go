// Package update runs the self-update pipeline: maintenance, git pull,
// dependency install, migrations and cache rebuild, with compensating
// rollback when a step fails.
package update

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/tenantapp/backend/internal/domain/update"
	"go.uber.org/zap"
)

// Git is the subset of git the pipeline needs.
type Git interface {
	Head(ctx context.Context) (string, error)
	RevParse(ctx context.Context, ref string) (string, error)
	Fetch(ctx context.Context, remote string) error
	Pull(ctx context.Context, remote, branch string) (string, error)
	ResetHard(ctx context.Context, rev string) error
	ChangedFiles(ctx context.Context, from, to string) ([]string, error)
	CountBetween(ctx context.Context, from, to string) (int, error)
	Subject(ctx context.Context, ref string) (string, error)
}

// CommandRunner runs the dependency install command.
type CommandRunner interface {
	Run(ctx context.Context, dir, commandLine string) (string, error)
}

// Maintenance toggles the maintenance flag.
type Maintenance interface {
	Enable(ctx context.Context, reason string) error
	Disable(ctx context.Context) error
}

// Migrator applies and reverts schema migrations. Prev returns the version
// applied before version, or -1 when version is the first one.
type Migrator interface {
	Version() (uint, bool, error)
	Up() error
	Down() error
	GoTo(version uint) error
	Force(version int) error
	Prev(version uint) (int, error)
}

// CacheRebuilder drops caches made stale by the update.
type CacheRebuilder interface {
	Rebuild(ctx context.Context) (int64, error)
}

// RunRecorder counts update outcomes.
type RunRecorder interface {
	RecordUpdateRun(ctx context.Context, outcome string)
}

// OrchestratorConfig contains configuration for Orchestrator
type OrchestratorConfig struct {
	Git         Git
	Runner      CommandRunner
	Maintenance Maintenance
	Migrator    Migrator
	Rebuilder   CacheRebuilder
	Recorder    RunRecorder
	Logger      *zap.Logger

	RepoDir        string
	Remote         string
	Branch         string
	LockFile       string
	InstallCommand string
	PullTimeout    time.Duration
	InstallTimeout time.Duration
}

// Orchestrator runs one update at a time.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger *zap.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LockFile == "" {
		cfg.LockFile = "go.sum"
	}
	if cfg.InstallCommand == "" {
		cfg.InstallCommand = "go mod download"
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 120 * time.Second
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = 300 * time.Second
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger, now: time.Now}
}

// runState carries what later compensations need to know.
type runState struct {
	fromRevision string
	fromVersion  uint
	migrating    bool
}

// A step whose armed func reports true is compensated even when it is the
// step that failed, since it may have half-applied its change.
type step struct {
	name       string
	run        func(ctx context.Context, st *runState) (output string, skipped bool, err error)
	compensate func(ctx context.Context, st *runState) error
	armed      func(st *runState) bool
}

func (o *Orchestrator) steps() []step {
	return []step{
		{
			name: update.StepMaintenance,
			run: func(ctx context.Context, _ *runState) (string, bool, error) {
				return "", false, o.cfg.Maintenance.Enable(ctx, "self-update")
			},
			compensate: func(ctx context.Context, _ *runState) error {
				return o.cfg.Maintenance.Disable(ctx)
			},
		},
		{
			name: update.StepSnapshot,
			run: func(ctx context.Context, st *runState) (string, bool, error) {
				head, err := o.cfg.Git.Head(ctx)
				st.fromRevision = head
				return head, false, err
			},
		},
		{
			name: update.StepPull,
			run: func(ctx context.Context, _ *runState) (string, bool, error) {
				ctx, cancel := context.WithTimeout(ctx, o.cfg.PullTimeout)
				defer cancel()
				out, err := o.cfg.Git.Pull(ctx, o.cfg.Remote, o.cfg.Branch)
				return out, false, err
			},
			compensate: func(ctx context.Context, st *runState) error {
				return o.cfg.Git.ResetHard(ctx, st.fromRevision)
			},
			armed: func(st *runState) bool { return st.fromRevision != "" },
		},
		{
			name: update.StepInstall,
			run:  o.install,
		},
		{
			name: update.StepMigrate,
			run: func(_ context.Context, st *runState) (string, bool, error) {
				v0, err := o.cleanVersion()
				if err != nil {
					return "", false, err
				}
				st.fromVersion = v0
				st.migrating = true
				if err := o.cfg.Migrator.Up(); err != nil {
					return "", false, err
				}
				v1, _, _ := o.cfg.Migrator.Version()
				return fmt.Sprintf("schema version %d -> %d", v0, v1), false, nil
			},
			compensate: o.revertMigrations,
			armed:      func(st *runState) bool { return st.migrating },
		},
		{
			name: update.StepRebuild,
			run: func(ctx context.Context, _ *runState) (string, bool, error) {
				n, err := o.cfg.Rebuilder.Rebuild(ctx)
				return fmt.Sprintf("%d cache keys removed", n), false, err
			},
		},
		{
			name: update.StepResume,
			run: func(ctx context.Context, _ *runState) (string, bool, error) {
				return "", false, o.cfg.Maintenance.Disable(ctx)
			},
		},
	}
}

func (o *Orchestrator) cleanVersion() (uint, error) {
	v, dirty, err := o.cfg.Migrator.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema is dirty at version %d", v)
	}
	return v, nil
}

// revertMigrations returns the schema to the version recorded before Up.
// A dirty version is forced back to its predecessor first: a postgres
// migration file runs as one implicit transaction, so the failed file left
// nothing behind.
func (o *Orchestrator) revertMigrations(_ context.Context, st *runState) error {
	v, dirty, err := o.cfg.Migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		prev, err := o.cfg.Migrator.Prev(v)
		if err != nil {
			return fmt.Errorf("find version before %d: %w", v, err)
		}
		if err := o.cfg.Migrator.Force(prev); err != nil {
			return err
		}
		o.logger.Warn("Cleared dirty schema version", zap.Uint("dirty_version", v), zap.Int("forced_to", prev))
	}
	if st.fromVersion == 0 {
		return o.cfg.Migrator.Down()
	}
	return o.cfg.Migrator.GoTo(st.fromVersion)
}

func (o *Orchestrator) install(ctx context.Context, st *runState) (string, bool, error) {
	changed, err := o.cfg.Git.ChangedFiles(ctx, st.fromRevision, "HEAD")
	if err != nil {
		return "", false, err
	}
	if !lockFileChanged(changed, o.cfg.LockFile) {
		return o.cfg.LockFile + " unchanged", true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.InstallTimeout)
	defer cancel()
	out, err := o.cfg.Runner.Run(ctx, o.cfg.RepoDir, o.cfg.InstallCommand)
	return out, false, err
}

func lockFileChanged(changed []string, lockFile string) bool {
	for _, f := range changed {
		if f == lockFile || path.Base(f) == lockFile {
			return true
		}
	}
	return false
}

// Perform runs the pipeline. A failed step rolls back itself, when it may
// have partially applied, and the completed steps in reverse order, and returns the report with an error wrapping
// update.ErrUpdateFailed.
func (o *Orchestrator) Perform(ctx context.Context) (*update.Report, error) {
	if !o.mu.TryLock() {
		return nil, update.ErrUpdateInProgress
	}
	defer o.mu.Unlock()

	// The pipeline outlives the request that started it.
	ctx = context.WithoutCancel(ctx)

	report := &update.Report{StartedAt: o.now(), Steps: make([]update.StepResult, 0, 8)}
	st := &runState{}
	var completed []step

	o.logger.Info("Self-update started", zap.String("remote", o.cfg.Remote), zap.String("branch", o.cfg.Branch))

	for _, s := range o.steps() {
		start := o.now()
		out, skipped, err := s.run(ctx, st)
		result := update.StepResult{
			Name:     s.name,
			Status:   update.StepStatusDone,
			Duration: o.now().Sub(start),
			Output:   update.TruncateOutput(out),
		}
		if skipped {
			result.Status = update.StepStatusSkipped
		}
		if err != nil {
			result.Status = update.StepStatusFailed
			result.Error = err.Error()
			report.Steps = append(report.Steps, result)

			o.logger.Error("Self-update step failed, rolling back",
				zap.String("step", s.name),
				zap.Error(err),
			)
			undo := completed
			if s.compensate != nil && s.armed != nil && s.armed(st) {
				undo = append(undo, s)
			}
			o.rollback(ctx, report, st, undo)
			report.FromRevision = st.fromRevision
			report.Error = fmt.Sprintf("%s: %v", s.name, err)
			report.FinishedAt = o.now()
			o.record(ctx, report)
			return report, fmt.Errorf("%w: %s: %v", update.ErrUpdateFailed, s.name, err)
		}

		report.Steps = append(report.Steps, result)
		completed = append(completed, s)
	}

	report.Success = true
	report.FromRevision = st.fromRevision
	if head, err := o.cfg.Git.Head(ctx); err == nil {
		report.ToRevision = head
	}
	report.FinishedAt = o.now()
	o.record(ctx, report)

	o.logger.Info("Self-update finished",
		zap.String("from", report.FromRevision),
		zap.String("to", report.ToRevision),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// rollback compensates steps newest first. It keeps going after
// a failed compensation and always ends by leaving maintenance.
func (o *Orchestrator) rollback(ctx context.Context, report *update.Report, st *runState, completed []step) {
	report.RolledBack = true
	var failures []error
	exited := false

	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		if s.compensate == nil {
			continue
		}
		start := o.now()
		err := s.compensate(ctx, st)
		result := update.StepResult{Name: s.name, Status: update.StepStatusCompensated, Duration: o.now().Sub(start)}
		if err != nil {
			result.Status = update.StepStatusFailed
			result.Error = "rollback: " + err.Error()
			failures = append(failures, fmt.Errorf("%s: %w", s.name, err))
		} else if s.name == update.StepMaintenance {
			exited = true
		}
		report.Steps = append(report.Steps, result)
	}

	if !exited {
		if err := o.cfg.Maintenance.Disable(ctx); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", update.StepMaintenance, err))
		}
	}

	if len(failures) > 0 {
		report.RollbackFailed = true
		o.logger.DPanic("update rollback failed; manual intervention required",
			zap.String("from_revision", st.fromRevision),
			zap.Uint("from_schema_version", st.fromVersion),
			zap.Error(errors.Join(failures...)),
		)
	}
}

func (o *Orchestrator) record(ctx context.Context, report *update.Report) {
	if o.cfg.Recorder == nil {
		return
	}
	outcome := "succeeded"
	switch {
	case report.RollbackFailed:
		outcome = "rollback_failed"
	case report.RolledBack:
		outcome = "rolled_back"
	}
	o.cfg.Recorder.RecordUpdateRun(ctx, outcome)
}

// Check fetches the remote and compares HEAD with the tracked branch.
func (o *Orchestrator) Check(ctx context.Context) (*update.Availability, error) {
	if err := o.cfg.Git.Fetch(ctx, o.cfg.Remote); err != nil {
		return nil, err
	}
	upstream := o.cfg.Remote + "/" + o.cfg.Branch

	current, err := o.cfg.Git.Head(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := o.cfg.Git.RevParse(ctx, upstream)
	if err != nil {
		return nil, err
	}
	behind, err := o.cfg.Git.CountBetween(ctx, "HEAD", upstream)
	if err != nil {
		return nil, err
	}
	subject, err := o.cfg.Git.Subject(ctx, upstream)
	if err != nil {
		return nil, err
	}

	return &update.Availability{
		Available:       behind > 0,
		CurrentRevision: current,
		LatestRevision:  latest,
		CommitsBehind:   behind,
		LatestMessage:   subject,
	}, nil
}
