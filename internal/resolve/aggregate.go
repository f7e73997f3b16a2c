package resolve

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"swiftpkg/internal/checkout"

	"go.uber.org/zap"
)

// Resolved is one repository pinned to a concrete commit.
type Resolved struct {
	Name   string `json:"name"`
	Remote string `json:"remote"`
	Commit string `json:"commit"`
}

// ResolveAll resolves every repository in the scheme's repo→branch map
// to a commit. Resolutions are independent and run concurrently up to
// parallelism; the first failure cancels the rest and aborts the whole
// set. The result is sorted lexicographically by repository name, the
// determinism guarantee every downstream consumer relies on.
func ResolveAll(ctx context.Context, doc *checkout.Document, schemeRepos map[string]string, resolver Resolver, parallelism int, logger *zap.Logger) ([]Resolved, error) {
	// Remote lookups are cheap and their errors are configuration
	// errors; surface those before any network work starts.
	type task struct {
		name, owner, repo, branch string
	}
	tasks := make([]task, 0, len(schemeRepos))
	for name, branch := range schemeRepos {
		owner, repo, err := doc.RemoteID(name)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task{name: name, owner: owner, repo: repo, branch: branch})
	}

	var (
		mu       sync.Mutex
		resolved []Resolved
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)

	for _, tk := range tasks {
		tk := tk
		eg.Go(func() error {
			commit, err := resolver.Resolve(egCtx, tk.owner, tk.repo, tk.branch)
			if err != nil {
				return err
			}
			if err := ValidateCommit(commit); err != nil {
				return err
			}
			logger.Debug("Resolved repository",
				zap.String("repo", tk.name),
				zap.String("branch", tk.branch),
				zap.String("commit", commit))
			mu.Lock()
			resolved = append(resolved, Resolved{
				Name:   tk.name,
				Remote: tk.owner + "/" + tk.repo,
				Commit: commit,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Name < resolved[j].Name
	})
	return resolved, nil
}
