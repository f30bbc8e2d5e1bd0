/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package manifest

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// SchemaVersion values accepted by this build.
var SupportedSchemaVersions = []string{"v1"}

// Manifest is the top-level fleet description.
type Manifest struct {
	SchemaVersion string       `yaml:"schemaVersion" json:"schemaVersion"`
	Repositories  []Repository `yaml:"repositories,omitempty" json:"repositories,omitempty"`
	Releases      []Release    `yaml:"releases,omitempty" json:"releases,omitempty"`
}

// Repository pins one Git repository to a revision at a destination path.
type Repository struct {
	Src            string     `yaml:"src" json:"src"`
	Dest           string     `yaml:"dest" json:"dest"`
	Revision       string     `yaml:"revision" json:"revision"`
	ShallowClone   bool       `yaml:"shallow-clone,omitempty" json:"shallow-clone,omitempty"`
	CloneSubmodule bool       `yaml:"clone-submodule,omitempty" json:"clone-submodule,omitempty"`
	CloneSubfleet  bool       `yaml:"clone-subfleet,omitempty" json:"clone-subfleet,omitempty"`
	Copy           []CopyStep `yaml:"copy,omitempty" json:"copy,omitempty"`
}

// CopyStep names a file or directory inside the synced working tree and the
// path it is copied to after a successful sync.
type CopyStep struct {
	RepoPath string `yaml:"repoPath" json:"repoPath"`
	Dest     string `yaml:"dest" json:"dest"`
}

// Release names a GitHub repository release and the assets to fetch from it.
type Release struct {
	URL    string  `yaml:"url" json:"url"`
	Tag    string  `yaml:"tag" json:"tag"`
	Assets []Asset `yaml:"assets" json:"assets"`
}

// Asset is one downloadable file attached to a release. Extract defaults to
// true when unset.
type Asset struct {
	Name    string `yaml:"name" json:"name"`
	Dest    string `yaml:"dest" json:"dest"`
	Extract *bool  `yaml:"extract,omitempty" json:"extract,omitempty"`
}

// ShouldExtract reports whether the asset is extracted after download.
func (a Asset) ShouldExtract() bool {
	return a.Extract == nil || *a.Extract
}

// Name derives a short display name from the repository's src URL: the last
// path element with any .git suffix removed.
func (r Repository) Name() string {
	name := path.Base(strings.TrimSuffix(r.Src, "/"))
	return strings.TrimSuffix(name, ".git")
}

// DestPath resolves the entry's destination against baseDir. Absolute dest
// values are used as-is.
func (r Repository) DestPath(baseDir string) string {
	return ResolvePath(baseDir, r.Dest)
}

// DestPath resolves the asset's destination directory against baseDir.
func (a Asset) DestPath(baseDir string) string {
	return ResolvePath(baseDir, a.Dest)
}

// ResolvePath joins p to baseDir unless p is already absolute. Trailing
// slashes on p are ignored.
func ResolvePath(baseDir, p string) string {
	p = strings.TrimSuffix(p, "/")
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

const githubURLPrefix = "https://github.com/"

// OwnerRepo splits the release URL into its GitHub owner and repository
// parts. Only https://github.com/{owner}/{repo} URLs are supported.
func (r Release) OwnerRepo() (owner, repo string, err error) {
	if !strings.HasPrefix(r.URL, githubURLPrefix) {
		return "", "", fmt.Errorf("only GitHub release URLs are supported: %s", r.URL)
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL, githubURLPrefix), "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub release URL: %s", r.URL)
	}
	return parts[0], parts[1], nil
}

// Name is the release's owner/repo display name, or the raw URL when it does
// not parse.
func (r Release) Name() string {
	owner, repo, err := r.OwnerRepo()
	if err != nil {
		return r.URL
	}
	return owner + "/" + repo
}

// RevisionKind classifies a manifest revision string.
type RevisionKind int

const (
	// RevisionSHA is a 7-40 hex character commit prefix.
	RevisionSHA RevisionKind = iota
	// RevisionTag is a refs/tags/<name> reference.
	RevisionTag
	// RevisionBranch is a refs/heads/<name> reference.
	RevisionBranch
)

func (k RevisionKind) String() string {
	switch k {
	case RevisionTag:
		return "tag"
	case RevisionBranch:
		return "branch"
	default:
		return "sha"
	}
}

var revisionRefPattern = regexp.MustCompile(`^(refs/tags/|refs/heads/)(\S+)$`)

// ParseRevision classifies revision and, for tag and branch revisions,
// returns the short name after the refs/ prefix. Anything that does not
// carry a refs/ prefix is treated as a SHA prefix.
func ParseRevision(revision string) (RevisionKind, string) {
	m := revisionRefPattern.FindStringSubmatch(revision)
	if m == nil {
		return RevisionSHA, revision
	}
	if m[1] == "refs/tags/" {
		return RevisionTag, m[2]
	}
	return RevisionBranch, m[2]
}
