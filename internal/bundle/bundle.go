// Package bundle extracts export bundles downloaded from the operations
// portal. A bundle is a ZIP archive containing one or more CSV part-files;
// the archive's internal naming is not significant beyond the .csv extension.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyBundle is returned when the archive extracts cleanly but contains
// no CSV part-files. Callers should treat this as "nothing to process", not
// as a failure.
var ErrEmptyBundle = errors.New("bundle contains no csv files")

// ArchiveError indicates the bundle could not be opened or extracted.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Extract unpacks every member of the ZIP archive at archivePath into
// destDir and returns the paths of the extracted CSV part-files in archive
// order. The extension match is case-insensitive. Member directory structure
// is preserved under destDir so same-named members in different directories
// stay distinct part-files.
//
// The caller owns destDir and must remove it once the part-files have been
// consumed, on success and failure alike.
func Extract(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &ArchiveError{Path: archivePath, Err: err}
	}
	defer r.Close()

	var csvFiles []string
	for _, member := range r.File {
		if member.FileInfo().IsDir() {
			continue
		}

		// Reject absolute and traversing member names
		name := filepath.FromSlash(member.Name)
		if !filepath.IsLocal(name) {
			return nil, &ArchiveError{Path: archivePath, Err: fmt.Errorf("invalid member name %q", member.Name)}
		}

		dest := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, &ArchiveError{Path: archivePath, Err: err}
		}
		if err := extractMember(member, dest); err != nil {
			return nil, &ArchiveError{Path: archivePath, Err: err}
		}

		if strings.EqualFold(filepath.Ext(name), ".csv") {
			csvFiles = append(csvFiles, dest)
		}
	}

	if len(csvFiles) == 0 {
		return nil, ErrEmptyBundle
	}
	return csvFiles, nil
}

func extractMember(member *zip.File, dest string) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %q: %w", member.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %q: %w", member.Name, err)
	}
	return out.Close()
}
