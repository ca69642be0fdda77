package importer

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/facility-names/pkg/store"
)

const sampleCSV = "facility_id,country_iso3,raw_name,town,primary_type\n" +
	"ZAF-0001,ZAF,Karee,Rustenburg,mine\n" +
	"AUS-0001,AUS,Koolyanobbing,,mine\n"

func TestDownloadFile(t *testing.T) {
	content := "hello world"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "test.txt")
	if err := downloadFile(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("downloadFile: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != content {
		t.Errorf("content = %q, want %q", string(data), content)
	}
}

func TestDownloadFile_Retry(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "retry.txt")
	if err := downloadFile(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("downloadFile with retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDownloadFile_Cancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := downloadFile(ctx, ts.URL, filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for cancelled download")
	}
}

func TestImportURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer ts.Close()

	s := store.NewMemory()
	stats, err := ImportURL(context.Background(), ts.URL+"/export/facilities.csv?token=x", DefaultFormat(), s, nil)
	if err != nil {
		t.Fatalf("ImportURL: %v", err)
	}
	if stats.Imported != 2 || s.Len() != 2 {
		t.Errorf("imported %d, store has %d", stats.Imported, s.Len())
	}
}

func TestImportFileZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "facilities.zip")
	out, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	readme, _ := zw.Create("README.txt")
	readme.Write([]byte("not data"))
	data, _ := zw.Create("nested/facilities.csv")
	data.Write([]byte(sampleCSV))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	s := store.NewMemory()
	stats, err := ImportFile(context.Background(), archive, DefaultFormat(), s, nil)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if stats.Imported != 2 {
		t.Errorf("imported = %d, want 2", stats.Imported)
	}
}
