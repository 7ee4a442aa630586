package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIPFlat extracts every non-directory member directly into destDir under its
// base name, discarding any folder structure inside the archive. Members are returned in
// archive order.
func ExtractZIPFlat(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "zip: create destination")
	}

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, err := extractZIPEntry(f, filepath.Base(filepath.FromSlash(f.Name)), destDir)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, path)
	}

	return extracted, nil
}

// extractZIPEntry extracts a single zip.File to destDir/name and returns the path.
func extractZIPEntry(f *zip.File, name, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
