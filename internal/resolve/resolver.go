// Package resolve turns (owner, repo, branch) triples into immutable
// commit hashes and aggregates the results for one release scheme.
//
// Two strategies exist: an authenticated GitHub API lookup and a
// full-clone fallback for when no token is available. The clone path
// is markedly more expensive and exists purely as a fallback.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidCommitHash is returned when a resolution produces anything
// other than 40 lowercase hex characters.
var ErrInvalidCommitHash = errors.New("invalid commit hash")

var commitHashRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ValidateCommit rejects any commit identifier that is not exactly 40
// lowercase hex characters. This guards against misparsed subprocess
// output and branches with no commits, and runs before any hash is
// placed into a manifest.
func ValidateCommit(hash string) error {
	if !commitHashRe.MatchString(hash) {
		return fmt.Errorf("%w: %q", ErrInvalidCommitHash, hash)
	}
	return nil
}

// Resolver resolves a repository branch to a commit hash.
type Resolver interface {
	Resolve(ctx context.Context, owner, repo, branch string) (string, error)
}

// Pick selects the resolution strategy from credential availability:
// API lookup when a token is present, full clone otherwise.
func Pick(apiURL, token string, resolveTimeout, cloneTimeout time.Duration, logger *zap.Logger) Resolver {
	if token != "" {
		return NewAPIResolver(apiURL, token, resolveTimeout, logger)
	}
	logger.Info("No GitHub token available, falling back to clone-based resolution")
	return NewCloneResolver(cloneTimeout, logger)
}

// APIResolver resolves commits through the GitHub commits endpoint.
type APIResolver struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIResolver creates a token-authenticated resolver against the
// given API base URL (https://api.github.com in production).
func NewAPIResolver(baseURL, token string, timeout time.Duration, logger *zap.Logger) *APIResolver {
	return &APIResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Resolve performs one GET against /repos/{owner}/{repo}/commits/{branch}.
// Any non-2xx response is fatal; there is no retry.
func (r *APIResolver) Resolve(ctx context.Context, owner, repo, branch string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", r.baseURL, owner, repo, branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+r.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	r.logger.Debug("Querying commit endpoint",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("branch", branch))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("commit lookup for %s/%s@%s failed: %w", owner, repo, branch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("commit lookup for %s/%s@%s returned status %d: %s",
			owner, repo, branch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode commit response: %w", err)
	}
	if err := ValidateCommit(payload.SHA); err != nil {
		return "", fmt.Errorf("%s/%s@%s: %w", owner, repo, branch, err)
	}
	return payload.SHA, nil
}

// CloneResolver resolves commits by cloning the branch into a private
// temporary directory and reading HEAD. The directory is removed on
// every exit path.
type CloneResolver struct {
	timeout time.Duration
	logger  *zap.Logger

	// run executes git and returns its stdout; swapped out in tests.
	run func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewCloneResolver creates the no-credential fallback resolver.
func NewCloneResolver(timeout time.Duration, logger *zap.Logger) *CloneResolver {
	return &CloneResolver{
		timeout: timeout,
		logger:  logger,
		run:     runGit,
	}
}

// Resolve clones the branch and reads the head commit. The output is
// validated as a 40-character lowercase hex string before it is
// returned; anything else is an invalid-commit-hash error.
func (r *CloneResolver) Resolve(ctx context.Context, owner, repo, branch string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tmp, err := os.MkdirTemp("", "swiftpkg-clone-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	r.logger.Info("Cloning repository to resolve commit",
		zap.String("url", cloneURL),
		zap.String("branch", branch))

	if _, err := r.run(ctx, "", "clone", "-b", branch, cloneURL, tmp); err != nil {
		return "", err
	}

	out, err := r.run(ctx, tmp, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	hash := strings.TrimSpace(out)
	if err := ValidateCommit(hash); err != nil {
		return "", fmt.Errorf("%s/%s@%s: %w", owner, repo, branch, err)
	}
	return hash, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s failed: %w, stderr: %s",
				strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return string(output), nil
}
