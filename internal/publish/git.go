package publish

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	myerrors "github.com/samhoang/myrepo/internal/errors"
)

// CommitMessage is the fixed message used for every publish commit
const CommitMessage = "update Repo"

// VCS stages, commits and pushes the working tree
type VCS interface {
	Stage(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// Runner executes one command in dir and returns its combined output
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Git drives the git command line in a working tree
type Git struct {
	Dir    string
	Remote string // empty pushes to the upstream of the current branch
	Branch string
	Run    Runner
}

// NewGit creates a git driver for dir
func NewGit(dir, remote, branch string) *Git {
	return &Git{
		Dir:    dir,
		Remote: remote,
		Branch: branch,
		Run:    ExecRunner,
	}
}

func (g *Git) Stage(ctx context.Context) error {
	return g.git(ctx, "add", ".")
}

func (g *Git) Commit(ctx context.Context, message string) error {
	return g.git(ctx, "commit", "-m", message)
}

func (g *Git) Push(ctx context.Context) error {
	args := []string{"push"}
	if g.Remote != "" {
		args = append(args, g.Remote)
		if g.Branch != "" {
			args = append(args, g.Branch)
		}
	}
	return g.git(ctx, args...)
}

func (g *Git) git(ctx context.Context, args ...string) error {
	command := "git " + strings.Join(args, " ")
	out, err := g.Run(ctx, g.Dir, "git", args...)

	logger := log.WithFields(log.Fields{"command": command, "dir": g.Dir})
	if len(out) > 0 {
		logger = logger.WithField("output", strings.TrimSpace(string(out)))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.WithField("status", exitErr.ExitCode()).Debug("git command failed")
			return myerrors.NewCommandError(command, exitErr.ExitCode(), string(out))
		}
		logger.WithError(err).Debug("git command could not run")
		return err
	}

	logger.Debug("git command succeeded")
	return nil
}
