package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"swiftpkg/internal/resolve"
)

var fixedDate = time.Date(2024, 9, 17, 12, 0, 0, 0, time.UTC)

func TestVersion(t *testing.T) {
	commit := strings.Repeat("a", 40)
	got := Version("6.0", fixedDate, commit)
	require.Equal(t, "6.0~pre^20240917gitaaaaaaa", got)
}

func TestVersion_UsesUTCDate(t *testing.T) {
	// 23:30 in UTC+10 is already the next day there; the version string
	// must stick to the UTC date.
	loc := time.FixedZone("UTC+10", 10*3600)
	local := time.Date(2024, 9, 18, 9, 30, 0, 0, loc)
	got := Version("6.0", local, strings.Repeat("b", 40))
	require.Contains(t, got, "20240917")
}

func TestSymbol(t *testing.T) {
	require.Equal(t, "swift", Symbol("swift"))
	require.Equal(t, "llvm_project", Symbol("llvm-project"))
	require.Equal(t, "swift_corelibs_xctest", Symbol("swift-corelibs-xctest"))
}

// Scenario from the single-repository configuration: one repo, known
// commit, fixed date.
func TestRender_SingleRepo(t *testing.T) {
	commit := strings.Repeat("a", 40)
	set := []resolve.Resolved{
		{Name: "swift", Remote: "swiftlang/swift", Commit: commit},
	}

	files, err := Render(set, "6.0", "swift", fixedDate)
	require.NoError(t, err)

	wantVersion := fmt.Sprintf(`%%global swift_version 6.0~pre^20240917gitaaaaaaa
%%global package_version 6.0

%%global swift_commit %s
`, commit)
	if diff := cmp.Diff(wantVersion, files.Version); diff != "" {
		t.Errorf("version.inc mismatch (-want +got):\n%s", diff)
	}

	wantSource := "Source3: https://github.com/swiftlang/swift/archive/%{swift_commit}.tar.gz#/swift-%{swift_commit}.tar.gz\n"
	if diff := cmp.Diff(wantSource, files.Source); diff != "" {
		t.Errorf("source.inc mismatch (-want +got):\n%s", diff)
	}

	wantRename := "mv swift-%{swift_commit} swift\n"
	if diff := cmp.Diff(wantRename, files.Rename); diff != "" {
		t.Errorf("rename.inc mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_MultiRepo(t *testing.T) {
	set := []resolve.Resolved{
		{Name: "llvm-project", Remote: "swiftlang/llvm-project", Commit: strings.Repeat("b", 40)},
		{Name: "swift", Remote: "swiftlang/swift", Commit: strings.Repeat("a", 40)},
	}

	files, err := Render(set, "6.0", "swift", fixedDate)
	require.NoError(t, err)

	// Hyphenated names normalize to underscores in symbols only; the
	// archive filename keeps the original name.
	require.Contains(t, files.Version, "%global llvm_project_commit "+strings.Repeat("b", 40))
	require.Contains(t, files.Source, "Source3: https://github.com/swiftlang/llvm-project/archive/%{llvm_project_commit}.tar.gz#/llvm-project-%{llvm_project_commit}.tar.gz")
	require.Contains(t, files.Source, "Source4: https://github.com/swiftlang/swift/archive/%{swift_commit}.tar.gz")

	// The rename moves the upstream bare repo name onto the local alias.
	require.Contains(t, files.Rename, "mv llvm-project-%{llvm_project_commit} llvm-project\n")
}

func TestRender_RenameUsesBareRepoName(t *testing.T) {
	// Local alias "cmark" vs upstream repo "swift-cmark": the extracted
	// directory carries the upstream name and must be moved to the alias.
	set := []resolve.Resolved{
		{Name: "cmark", Remote: "swiftlang/swift-cmark", Commit: strings.Repeat("c", 40)},
		{Name: "swift", Remote: "swiftlang/swift", Commit: strings.Repeat("a", 40)},
	}

	files, err := Render(set, "6.0", "swift", fixedDate)
	require.NoError(t, err)
	require.Contains(t, files.Rename, "mv swift-cmark-%{cmark_commit} cmark\n")
}

func TestRender_PrimaryRepoMissing(t *testing.T) {
	set := []resolve.Resolved{
		{Name: "llvm-project", Remote: "swiftlang/llvm-project", Commit: strings.Repeat("b", 40)},
	}

	_, err := Render(set, "6.0", "swift", fixedDate)
	require.ErrorIs(t, err, ErrPrimaryRepoMissing)
}

// All three fragments must reference the identical repository set in
// the identical order, and each commit symbol defined in version.inc
// must appear as the reference for the same repository in source.inc
// and rename.inc.
func TestRender_CrossFileConsistency(t *testing.T) {
	set := []resolve.Resolved{
		{Name: "cmark", Remote: "swiftlang/swift-cmark", Commit: strings.Repeat("1", 40)},
		{Name: "llvm-project", Remote: "swiftlang/llvm-project", Commit: strings.Repeat("2", 40)},
		{Name: "swift", Remote: "swiftlang/swift", Commit: strings.Repeat("3", 40)},
		{Name: "swift-syntax", Remote: "swiftlang/swift-syntax", Commit: strings.Repeat("4", 40)},
	}

	files, err := Render(set, "6.0", "swift", fixedDate)
	require.NoError(t, err)

	defined := regexp.MustCompile(`%global (\w+)_commit [0-9a-f]{40}`).FindAllStringSubmatch(files.Version, -1)
	require.Len(t, defined, len(set))

	sourceLines := strings.Split(strings.TrimRight(files.Source, "\n"), "\n")
	renameLines := strings.Split(strings.TrimRight(files.Rename, "\n"), "\n")
	require.Len(t, sourceLines, len(set))
	require.Len(t, renameLines, len(set))

	for i, m := range defined {
		symbol := m[1]
		require.Equal(t, Symbol(set[i].Name), symbol, "definition order must follow the sorted set")

		ref := "%{" + symbol + "_commit}"
		require.Contains(t, sourceLines[i], ref)
		require.Contains(t, renameLines[i], ref)

		// The symbol must reference its own repository and no other.
		for j, line := range sourceLines {
			if j != i {
				require.NotContains(t, line, ref)
			}
		}
	}
}

func TestRender_SourceIndicesStartAtThree(t *testing.T) {
	set := []resolve.Resolved{
		{Name: "a", Remote: "o/a", Commit: strings.Repeat("a", 40)},
		{Name: "b", Remote: "o/b", Commit: strings.Repeat("b", 40)},
		{Name: "swift", Remote: "swiftlang/swift", Commit: strings.Repeat("c", 40)},
	}

	files, err := Render(set, "6.0", "swift", fixedDate)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(files.Source, "Source3: "))
	require.Contains(t, files.Source, "\nSource4: ")
	require.Contains(t, files.Source, "\nSource5: ")
}

func TestWriteTo(t *testing.T) {
	dir := t.TempDir()
	files := &Files{Version: "v\n", Source: "s\n", Rename: "r\n"}
	require.NoError(t, files.WriteTo(dir))

	for name, want := range map[string]string{
		"version.inc": "v\n",
		"source.inc":  "s\n",
		"rename.inc":  "r\n",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, want, string(data))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3, "no temp files may remain after a successful write")
}

func TestWriteTo_NoPartialFilesOnFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	files := &Files{Version: "v\n", Source: "s\n", Rename: "r\n"}
	require.Error(t, files.WriteTo(dir))

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}
