/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrSchemaValidation is wrapped by every validation failure so callers can
// distinguish a bad manifest from I/O and decode problems.
var ErrSchemaValidation = errors.New("manifest validation failed")

var (
	srcPattern      = regexp.MustCompile(`^(https?://|git@).+\.git$`)
	revisionPattern = regexp.MustCompile(`^(refs/tags/|refs/heads/|[0-9a-f]{7,40}).*$`)
)

// Validate checks the manifest against the v1 schema: a supported
// schemaVersion, at least one repository or release, and per-entry required
// fields and value patterns. All problems are reported in one error.
func (m *Manifest) Validate() error {
	var problems []string

	switch {
	case m.SchemaVersion == "":
		problems = append(problems, "schemaVersion is required")
	case !slices.Contains(SupportedSchemaVersions, m.SchemaVersion):
		problems = append(problems, fmt.Sprintf("unsupported schema version %q (supported: %s)",
			m.SchemaVersion, strings.Join(SupportedSchemaVersions, ", ")))
	}

	if len(m.Repositories) == 0 && len(m.Releases) == 0 {
		problems = append(problems, "manifest must contain repositories or releases")
	}

	for i, repo := range m.Repositories {
		problems = append(problems, validateRepository(i, repo)...)
	}
	for i, rel := range m.Releases {
		problems = append(problems, validateRelease(i, rel)...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaValidation, strings.Join(problems, "; "))
	}
	return nil
}

func validateRepository(i int, repo Repository) []string {
	var problems []string
	at := fmt.Sprintf("repository %d", i)

	if repo.Src == "" {
		problems = append(problems, at+": missing required field src")
	} else if !srcPattern.MatchString(repo.Src) {
		problems = append(problems, fmt.Sprintf("%s: src %q must be an https:// or git@ URL ending in .git", at, repo.Src))
	}
	if repo.Dest == "" {
		problems = append(problems, at+": missing required field dest")
	}
	if repo.Revision == "" {
		problems = append(problems, at+": missing required field revision")
	} else if !revisionPattern.MatchString(repo.Revision) {
		problems = append(problems, fmt.Sprintf("%s: revision %q must be a SHA prefix, refs/tags/<name>, or refs/heads/<name>", at, repo.Revision))
	}
	return problems
}

func validateRelease(i int, rel Release) []string {
	var problems []string
	at := fmt.Sprintf("release %d", i)

	if rel.URL == "" {
		problems = append(problems, at+": missing required field url")
	} else if _, _, err := rel.OwnerRepo(); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", at, err))
	}
	if rel.Tag == "" {
		problems = append(problems, at+": missing required field tag")
	}
	if len(rel.Assets) == 0 {
		problems = append(problems, at+": missing required field assets")
	}
	for j, asset := range rel.Assets {
		if asset.Name == "" {
			problems = append(problems, fmt.Sprintf("%s asset %d: missing required field name", at, j))
		}
		if asset.Dest == "" {
			problems = append(problems, fmt.Sprintf("%s asset %d: missing required field dest", at, j))
		}
	}
	return problems
}
