package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ImportFile imports a local CSV file, or the first .csv entry of a .zip archive.
func ImportFile(ctx context.Context, file string, format Format, w Upserter, logger *slog.Logger) (Stats, error) {
	if strings.EqualFold(filepath.Ext(file), ".zip") {
		dir, err := os.MkdirTemp("", "facility-import-*")
		if err != nil {
			return Stats{}, err
		}
		defer os.RemoveAll(dir)
		extracted, err := unzipFile(file, dir)
		if err != nil {
			return Stats{}, err
		}
		file = ""
		for _, p := range extracted {
			if strings.EqualFold(filepath.Ext(p), ".csv") {
				file = p
				break
			}
		}
		if file == "" {
			return Stats{}, fmt.Errorf("no .csv entry in archive")
		}
	}

	f, err := os.Open(file)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	return ImportCSV(ctx, f, format, w, logger)
}

// ImportURL downloads url to a temporary directory, then imports it.
func ImportURL(ctx context.Context, url string, format Format, w Upserter, logger *slog.Logger) (Stats, error) {
	dir, err := os.MkdirTemp("", "facility-download-*")
	if err != nil {
		return Stats{}, err
	}
	defer os.RemoveAll(dir)

	name := path.Base(strings.SplitN(url, "?", 2)[0])
	if name == "" || name == "/" || name == "." {
		name = "facilities.csv"
	}
	dest := filepath.Join(dir, name)
	if err := downloadFile(ctx, url, dest); err != nil {
		return Stats{}, fmt.Errorf("download: %w", err)
	}
	return ImportFile(ctx, dest, format, w, logger)
}

// downloadFile fetches url to dest, retrying with exponential backoff.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			continue
		}

		out, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("create file: %w", err)
		}
		_, copyErr := io.Copy(out, resp.Body)
		resp.Body.Close()
		closeErr := out.Close()
		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		return closeErr
	}
	return fmt.Errorf("download %s failed after 3 attempts: %w", url, lastErr)
}

// unzipFile extracts the regular files of src into destDir, flattening paths.
func unzipFile(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(zf.Name))
		if err := extract(zf, destPath); err != nil {
			return nil, err
		}
		paths = append(paths, destPath)
	}
	return paths, nil
}

func extract(zf *zip.File, destPath string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", zf.Name, err)
	}
	defer rc.Close()
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return out.Close()
}
