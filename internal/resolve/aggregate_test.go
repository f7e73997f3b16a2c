package resolve

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"swiftpkg/internal/checkout"
)

// fakeResolver resolves every branch to a fixed hash, or fails for the
// repositories listed in failFor.
type fakeResolver struct {
	commit  string
	failFor map[string]error
	calls   atomic.Int64
}

func (f *fakeResolver) Resolve(ctx context.Context, owner, repo, branch string) (string, error) {
	f.calls.Add(1)
	if err, ok := f.failFor[repo]; ok {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return f.commit, nil
}

func testDocument() *checkout.Document {
	return &checkout.Document{
		Repos: map[string]checkout.Repo{
			"swift":        {Remote: checkout.Remote{ID: "swiftlang/swift"}},
			"llvm-project": {Remote: checkout.Remote{ID: "swiftlang/llvm-project"}},
			"cmark":        {Remote: checkout.Remote{ID: "swiftlang/swift-cmark"}},
		},
		Schemes: map[string]checkout.Scheme{},
	}
}

func TestResolveAll_SortedOutput(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Map iteration order is random; the output order must not be.
	schemeRepos := map[string]string{
		"swift":        "swift/release/6.0",
		"llvm-project": "swift/release/6.0",
		"cmark":        "gfm",
	}
	resolver := &fakeResolver{commit: strings.Repeat("a", 40)}

	set, err := ResolveAll(context.Background(), testDocument(), schemeRepos, resolver, 4, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, set, 3)

	var names []string
	for _, r := range set {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"cmark", "llvm-project", "swift"}, names)
	require.Equal(t, "swiftlang/swift-cmark", set[0].Remote)
	require.Equal(t, strings.Repeat("a", 40), set[0].Commit)
}

func TestResolveAll_UndeclaredRepository(t *testing.T) {
	schemeRepos := map[string]string{
		"swift":         "swift/release/6.0",
		"swift-testing": "release/6.0",
	}
	resolver := &fakeResolver{commit: strings.Repeat("a", 40)}

	_, err := ResolveAll(context.Background(), testDocument(), schemeRepos, resolver, 4, zap.NewNop())
	require.ErrorIs(t, err, checkout.ErrRepoNotDeclared)
	require.Contains(t, err.Error(), "swift-testing")
	require.Zero(t, resolver.calls.Load(), "configuration errors must surface before any resolution")
}

func TestResolveAll_FailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	resolveErr := errors.New("boom")
	schemeRepos := map[string]string{
		"swift":        "main",
		"llvm-project": "main",
		"cmark":        "gfm",
	}
	resolver := &fakeResolver{
		commit:  strings.Repeat("b", 40),
		failFor: map[string]error{"llvm-project": resolveErr},
	}

	set, err := ResolveAll(context.Background(), testDocument(), schemeRepos, resolver, 2, zap.NewNop())
	require.ErrorIs(t, err, resolveErr)
	require.Nil(t, set, "a failed run must not hand a partial set downstream")
}

func TestResolveAll_RejectsBadHashFromResolver(t *testing.T) {
	schemeRepos := map[string]string{"swift": "main"}
	resolver := &fakeResolver{commit: strings.Repeat("a", 39)}

	_, err := ResolveAll(context.Background(), testDocument(), schemeRepos, resolver, 1, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidCommitHash)
}
