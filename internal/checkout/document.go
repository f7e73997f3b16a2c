// Package checkout loads the upstream update-checkout configuration
// document from a Swift source tree and acquires the tree itself,
// either from an existing directory or a fresh temporary clone.
package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors for the structural checks on the upstream document.
// Each one is terminal for the run; there is no partial output.
var (
	ErrConfigFileMissing = errors.New("update-checkout config file does not exist")
	ErrNoRepos           = errors.New("no repositories found in the config file")
	ErrNoSchemes         = errors.New("no branch-schemes found in the config file")
	ErrSchemeNotFound    = errors.New("scheme not found in the config file")
	ErrRepoNotDeclared   = errors.New("repository not found in the config file")
	ErrMalformedRemote   = errors.New("remote id is not in owner/repo form")
)

// Remote identifies a repository on the forge, e.g. "swiftlang/swift".
type Remote struct {
	ID string `json:"id"`
}

// Repo is one entry of the document's repository table.
type Repo struct {
	Remote Remote `json:"remote"`
}

// Scheme binds each repository name to the branch it tracks for one
// coordinated release.
type Scheme struct {
	Repos map[string]string `json:"repos"`
}

// Document is the upstream update-checkout-config.json, reduced to the
// two sections the pinning pipeline consumes.
type Document struct {
	Repos   map[string]Repo   `json:"repos"`
	Schemes map[string]Scheme `json:"branch-schemes"`
}

// Load reads and unmarshals the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileMissing, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &doc, nil
}

// SchemeRepos returns the repo→branch map for the named scheme.
// It validates, in order, that the repository table exists, that the
// scheme table exists, and that the scheme itself is declared.
func (d *Document) SchemeRepos(scheme string) (map[string]string, error) {
	if len(d.Repos) == 0 {
		return nil, ErrNoRepos
	}
	if len(d.Schemes) == 0 {
		return nil, ErrNoSchemes
	}
	s, ok := d.Schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotFound, scheme)
	}
	return s.Repos, nil
}

// RemoteID resolves a repository name to its (owner, repo) pair,
// splitting the remote id on the first "/" only so that repo names
// containing slashes survive intact. A remote id with no separator is
// a configuration error, not something to guess at.
func (d *Document) RemoteID(name string) (owner, repo string, err error) {
	entry, ok := d.Repos[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrRepoNotDeclared, name)
	}
	owner, repo, found := strings.Cut(entry.Remote.ID, "/")
	if !found || owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: %q has remote id %q", ErrMalformedRemote, name, entry.Remote.ID)
	}
	return owner, repo, nil
}
