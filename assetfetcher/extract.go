/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package assetfetcher

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/compress/gzip"
)

// ErrUnsupportedArchive reports an asset whose name carries an archive
// extension this build cannot decode.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// unsupportedSuffixes are archive extensions we recognize but do not decode.
// They fail loudly rather than leaving the archive silently unpacked.
// .bz2 also covers .tar.bz2, .xz covers .tar.xz, .zst covers .tar.zst.
var unsupportedSuffixes = []string{".bz2", ".tbz2", ".xz", ".txz", ".zst", ".7z", ".rar"}

// extract unpacks archivePath into destDir based on the file name's
// extension. Names without a recognized archive extension are left alone.
func extract(ctx context.Context, archivePath, destDir string) error {
	log := clog.FromContext(ctx)
	name := filepath.Base(archivePath)

	switch {
	case strings.HasSuffix(name, ".zip"):
		log.Infof("Extracting %s", name)
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		log.Infof("Extracting %s", name)
		return extractTarGz(archivePath, destDir)
	case strings.HasSuffix(name, ".tar"):
		log.Infof("Extracting %s", name)
		return extractTarFile(archivePath, destDir)
	case strings.HasSuffix(name, ".gz"):
		log.Infof("Extracting %s", name)
		return extractGz(archivePath, destDir)
	}

	for _, suffix := range unsupportedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
		}
	}
	log.Debugf("No extraction needed for %s", name)
	return nil
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", filepath.Base(archivePath), err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		target, err := entryPath(destDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", file.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extracting %s: %w", file.Name, err)
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", file.Name, err)
		}
		err = writeEntry(target, rc, file.Mode())
		rc.Close()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", file.Name, err)
		}
	}
	return nil
}

func extractTarGz(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(archivePath), err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("reading gzip %s: %w", filepath.Base(archivePath), err)
	}
	defer gz.Close()

	return extractTar(gz, destDir)
}

func extractTarFile(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(archivePath), err)
	}
	defer in.Close()

	return extractTar(in, destDir)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		target, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			if err := writeEntry(target, tr, fs.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			if err := linkEntry(destDir, target, hdr.Linkname); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		default:
			// Hard links, devices, and fifos have no business in release
			// archives.
			continue
		}
	}
}

// extractGz decompresses a bare gzip member next to the archive, dropping
// the .gz suffix.
func extractGz(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(archivePath), err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("reading gzip %s: %w", filepath.Base(archivePath), err)
	}
	defer gz.Close()

	name := strings.TrimSuffix(filepath.Base(archivePath), ".gz")
	return writeEntry(filepath.Join(destDir, name), gz, 0o644)
}

// entryPath joins an archive member name to destDir, rejecting names that
// would land outside it.
func entryPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return target, nil
}

// linkEntry recreates a symlink, rejecting targets that resolve outside
// destDir.
func linkEntry(destDir, linkPath, linkTarget string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("symlink to absolute path %q", linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(linkTarget))
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("symlink target %q escapes the destination", linkTarget)
	}
	// Re-extraction over an existing tree hits the old link.
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(linkTarget, linkPath)
}

// writeEntry writes one regular file. Zip archives built on other platforms
// can carry a zero mode; those fall back to 0644.
func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile's perm is subject to umask; restore the archive's mode.
	return os.Chmod(target, perm)
}
