package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSourceDirMissing is returned when an explicitly requested source
// directory does not exist on disk.
var ErrSourceDirMissing = errors.New("source directory does not exist")

// Options controls how a Swift source tree is acquired.
type Options struct {
	// SrcDir is an existing checkout to update in place. Empty means
	// clone into a temporary directory instead.
	SrcDir string
	// Scheme is the branch to check out; scheme names double as branch
	// names in the upstream repository.
	Scheme string
	// RepoURL is the upstream repository to clone when SrcDir is empty.
	RepoURL string
	// Timeout bounds each git invocation.
	Timeout time.Duration
}

// Preparer acquires a source tree for one pipeline run.
type Preparer struct {
	logger *zap.Logger

	// run executes git with a working directory; swapped out in tests.
	run func(ctx context.Context, dir string, args ...string) error
}

// NewPreparer returns a Preparer that shells out to git.
func NewPreparer(logger *zap.Logger) *Preparer {
	return &Preparer{
		logger: logger,
		run:    runGit,
	}
}

// Prepare returns a directory holding the source tree at the scheme's
// branch, plus a cleanup function. When SrcDir is set, the directory is
// fetched and hard-reset to origin and cleanup is a no-op. When SrcDir
// is empty, the tree is cloned into a fresh temporary directory and
// cleanup removes it; the caller must invoke cleanup on every exit
// path, including error and cancellation paths. Prepare itself removes
// the temporary directory when the clone fails.
func (p *Preparer) Prepare(ctx context.Context, opts Options) (dir string, cleanup func(), err error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if opts.SrcDir != "" {
		if _, err := os.Stat(opts.SrcDir); err != nil {
			return "", nil, fmt.Errorf("%w: %s", ErrSourceDirMissing, opts.SrcDir)
		}
		p.logger.Info("Updating existing source directory",
			zap.String("dir", opts.SrcDir),
			zap.String("scheme", opts.Scheme))
		steps := [][]string{
			{"fetch", "origin"},
			{"checkout", opts.Scheme},
			{"reset", "--hard", "origin/" + opts.Scheme},
		}
		for _, args := range steps {
			if err := p.run(ctx, opts.SrcDir, args...); err != nil {
				return "", nil, err
			}
		}
		return opts.SrcDir, func() {}, nil
	}

	p.logger.Info("No source directory specified, cloning into a temporary directory",
		zap.String("repo", opts.RepoURL),
		zap.String("scheme", opts.Scheme))
	tmp, err := os.MkdirTemp("", "swiftpkg-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	remove := func() { _ = os.RemoveAll(tmp) }

	if err := p.run(ctx, "", "clone", "-b", opts.Scheme, opts.RepoURL, tmp); err != nil {
		remove()
		return "", nil, err
	}
	return tmp, remove, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s failed: %w, output: %s",
			strings.Join(args, " "), err, string(output))
	}
	return nil
}
