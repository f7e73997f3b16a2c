// Package manifest derives the package version string and renders the
// three RPM include fragments (version.inc, source.inc, rename.inc)
// from one resolved scheme. All three are rendered in memory first and
// only written once every one of them rendered successfully, so a
// failed run never leaves partial files behind.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"swiftpkg/internal/resolve"
)

// ErrPrimaryRepoMissing is returned when the resolution set does not
// contain the repository that anchors the version string.
var ErrPrimaryRepoMissing = errors.New("primary repository missing from resolution set")

// The first three Source slots of the spec file are taken by the .inc
// fragments themselves, so repository archives start at Source3.
const sourceIndexOffset = 3

var (
	versionTmpl = template.Must(template.New("version.inc").Parse(
		`%global swift_version {{.Version}}
%global package_version {{.SchemeVersion}}

{{range .Repos}}%global {{.Symbol}}_commit {{.Commit}}
{{end}}`))

	sourceTmpl = template.Must(template.New("source.inc").Parse(
		`{{range .Repos}}Source{{.Index}}: https://github.com/{{.Remote}}/archive/%{{"{"}}{{.Symbol}}_commit{{"}"}}.tar.gz#/{{.Name}}-%{{"{"}}{{.Symbol}}_commit{{"}"}}.tar.gz
{{end}}`))

	renameTmpl = template.Must(template.New("rename.inc").Parse(
		`{{range .Repos}}mv {{.BareRepo}}-%{{"{"}}{{.Symbol}}_commit{{"}"}} {{.Name}}
{{end}}`))
)

// Version derives the package version string from the scheme's nominal
// version, the current UTC date and the primary repository's commit.
// Pure function; inject a fixed date in tests.
func Version(schemeVersion string, date time.Time, primaryCommit string) string {
	return fmt.Sprintf("%s~pre^%sgit%s",
		schemeVersion, date.UTC().Format("20060102"), primaryCommit[:7])
}

// Symbol normalizes a repository name into the identifier used to
// cross-reference its commit between the three fragments.
func Symbol(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Files holds the three rendered fragments. They always reference the
// same repositories in the same order; both facts are established by
// rendering all three from a single sorted slice.
type Files struct {
	Version string
	Source  string
	Rename  string
}

type repoView struct {
	Name     string
	Remote   string
	BareRepo string
	Commit   string
	Symbol   string
	Index    int
}

// Render produces the three fragments from a sorted resolution set.
// The set must contain primaryRepo; its absence is fatal.
func Render(set []resolve.Resolved, schemeVersion, primaryRepo string, date time.Time) (*Files, error) {
	var primaryCommit string
	views := make([]repoView, 0, len(set))
	for i, r := range set {
		if r.Name == primaryRepo {
			primaryCommit = r.Commit
		}
		_, bare, _ := strings.Cut(r.Remote, "/")
		views = append(views, repoView{
			Name:     r.Name,
			Remote:   r.Remote,
			BareRepo: bare,
			Commit:   r.Commit,
			Symbol:   Symbol(r.Name),
			Index:    i + sourceIndexOffset,
		})
	}
	if primaryCommit == "" {
		return nil, fmt.Errorf("%w: %q", ErrPrimaryRepoMissing, primaryRepo)
	}

	data := struct {
		Version       string
		SchemeVersion string
		Repos         []repoView
	}{
		Version:       Version(schemeVersion, date, primaryCommit),
		SchemeVersion: schemeVersion,
		Repos:         views,
	}

	render := func(tmpl *template.Template) (string, error) {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, data); err != nil {
			return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
		}
		return sb.String(), nil
	}

	var (
		files Files
		err   error
	)
	if files.Version, err = render(versionTmpl); err != nil {
		return nil, err
	}
	if files.Source, err = render(sourceTmpl); err != nil {
		return nil, err
	}
	if files.Rename, err = render(renameTmpl); err != nil {
		return nil, err
	}
	return &files, nil
}

// WriteTo writes the three fragments into dir atomically as a set:
// each is written to a temp file first, and the renames into place
// happen only after all temp writes succeeded.
func (f *Files) WriteTo(dir string) error {
	fragments := []struct {
		name    string
		content string
	}{
		{"version.inc", f.Version},
		{"source.inc", f.Source},
		{"rename.inc", f.Rename},
	}

	tmpPaths := make([]string, 0, len(fragments))
	removeTmps := func() {
		for _, p := range tmpPaths {
			_ = os.Remove(p)
		}
	}

	for _, frag := range fragments {
		tmpPath := filepath.Join(dir, frag.name+".tmp")
		if err := os.WriteFile(tmpPath, []byte(frag.content), 0644); err != nil {
			removeTmps()
			return fmt.Errorf("failed to write %s: %w", frag.name, err)
		}
		tmpPaths = append(tmpPaths, tmpPath)
	}

	for i, frag := range fragments {
		if err := os.Rename(tmpPaths[i], filepath.Join(dir, frag.name)); err != nil {
			removeTmps()
			return fmt.Errorf("failed to move %s into place: %w", frag.name, err)
		}
	}
	return nil
}
