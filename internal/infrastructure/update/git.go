// Package update holds the process-level collaborators of the self-update
// pipeline: git, shell commands, the maintenance flag and cache rebuild.
package update

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GitRepository runs git against a working tree with "git -C <dir>".
type GitRepository struct {
	dir string
}

// NewGitRepository returns a GitRepository for dir.
func NewGitRepository(dir string) *GitRepository {
	return &GitRepository{dir: dir}
}

// Dir returns the repository directory.
func (r *GitRepository) Dir() string {
	return r.dir
}

// Run executes git and returns trimmed stdout. Stderr is folded into the error.
func (r *GitRepository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Head returns the commit hash of HEAD.
func (r *GitRepository) Head(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// RevParse resolves ref to a commit hash.
func (r *GitRepository) RevParse(ctx context.Context, ref string) (string, error) {
	return r.Run(ctx, "rev-parse", ref)
}

// Fetch updates remote-tracking refs.
func (r *GitRepository) Fetch(ctx context.Context, remote string) error {
	_, err := r.Run(ctx, "fetch", remote)
	return err
}

// Pull merges remote/branch into the working tree and returns git's output.
func (r *GitRepository) Pull(ctx context.Context, remote, branch string) (string, error) {
	return r.Run(ctx, "pull", remote, branch)
}

// ResetHard moves the working tree back to rev.
func (r *GitRepository) ResetHard(ctx context.Context, rev string) error {
	_, err := r.Run(ctx, "reset", "--hard", rev)
	return err
}

// ChangedFiles lists paths that differ between two revisions.
func (r *GitRepository) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	out, err := r.Run(ctx, "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CountBetween returns how many commits are reachable from to but not from.
func (r *GitRepository) CountBetween(ctx context.Context, from, to string) (int, error) {
	out, err := r.Run(ctx, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// Subject returns the subject line of the commit at ref.
func (r *GitRepository) Subject(ctx context.Context, ref string) (string, error) {
	return r.Run(ctx, "log", "-1", "--format=%s", ref)
}
