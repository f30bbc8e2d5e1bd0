/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reposyncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/gitfleet/manifest"
)

// ErrCopySourceNotFound reports a copy step whose repoPath does not exist
// inside the synced working tree.
var ErrCopySourceNotFound = errors.New("copy source not found")

// CopyAll publishes the entry's copy steps out of the synced working tree at
// repoDir. Destinations resolve against baseDir. Steps fail independently;
// the returned error joins every step failure. Steps missing repoPath or
// dest are skipped with a warning.
func (s *Syncer) CopyAll(ctx context.Context, steps []manifest.CopyStep, repoDir, baseDir string) error {
	log := clog.FromContext(ctx)

	var errs []error
	for _, step := range steps {
		if step.RepoPath == "" || step.Dest == "" {
			log.Warnf("Skipping copy step with missing repoPath or dest in %s", repoDir)
			continue
		}
		src := filepath.Join(repoDir, step.RepoPath)
		dest := manifest.ResolvePath(baseDir, step.Dest)

		if s.dryRun {
			log.Infof("Would copy %s to %s", src, dest)
			continue
		}
		if err := copyPath(src, dest); err != nil {
			log.Warnf("Copying %s to %s: %v", src, dest, err)
			errs = append(errs, err)
			continue
		}
		log.Infof("Copied %s to %s", src, dest)
	}
	return errors.Join(errs...)
}

func copyPath(src, dest string) error {
	st, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrCopySourceNotFound, src)
	}
	if err != nil {
		return fmt.Errorf("inspecting copy source: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating destination parent: %w", err)
	}
	if st.IsDir() {
		return copyDir(src, dest)
	}
	// A file copied onto an existing directory lands inside it.
	if dst, err := os.Stat(dest); err == nil && dst.IsDir() {
		dest = filepath.Join(dest, filepath.Base(src))
	}
	return copyFile(src, dest, st.Mode())
}

func copyDir(src, dest string) error {
	if st, err := os.Stat(dest); err == nil && !st.IsDir() {
		return fmt.Errorf("cannot copy directory %s over file %s", src, dest)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	// OpenFile's permission argument is subject to the umask; restate the
	// source mode so published files keep their bits.
	return os.Chmod(dest, mode.Perm())
}
