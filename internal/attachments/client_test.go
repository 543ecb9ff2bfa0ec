package attachments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newStaging(t *testing.T) *Staging {
	t.Helper()
	staging, err := NewStaging(t.TempDir())
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	return staging
}

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/attachments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		files := r.MultipartForm.File["files[]"]
		if len(files) != 1 {
			t.Fatalf("got %d files, want 1", len(files))
		}
		if files[0].Filename != "invoice.pdf" {
			t.Errorf("filename = %q, want invoice.pdf", files[0].Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"att-123"}]}`))
	}))
	defer server.Close()

	staging := newStaging(t)
	doc, err := staging.Save("invoice.pdf", "application/pdf", strings.NewReader("quote document"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	client := NewClient(server.URL, "test-key")
	id, err := client.Upload(context.Background(), *doc)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "att-123" {
		t.Errorf("attachment id = %q, want att-123", id)
	}
}

func TestUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[],"error":{"message":"unreadable file"}}`))
	}))
	defer server.Close()

	staging := newStaging(t)
	doc, err := staging.Save("broken.pdf", "application/pdf", strings.NewReader("broken"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	client := NewClient(server.URL, "test-key")
	_, err = client.Upload(context.Background(), *doc)
	if !errors.Is(err, ErrFileCorrupt) {
		t.Errorf("Upload() error = %v, want ErrFileCorrupt", err)
	}
}

func TestUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	staging := newStaging(t)
	doc, err := staging.Save("doc.pdf", "application/pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	client := NewClient(server.URL, "")
	_, err = client.Upload(context.Background(), *doc)
	if err == nil {
		t.Fatal("Upload() expected error for HTTP 500")
	}
}

func TestStagingSaveAndRemove(t *testing.T) {
	staging, err := NewStaging(t.TempDir())
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}

	doc, err := staging.Save("photo.jpg", "image/jpeg", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if doc.Size != int64(len("jpeg bytes")) {
		t.Errorf("Size = %d, want %d", doc.Size, len("jpeg bytes"))
	}
	if _, err := os.Stat(doc.Path); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	if err := staging.Remove(*doc); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(doc.Path); !os.IsNotExist(err) {
		t.Errorf("staged file still present after Remove")
	}

	// removing twice is not an error
	if err := staging.Remove(*doc); err != nil {
		t.Errorf("Remove() second call error = %v", err)
	}
}

func TestStagingSweep(t *testing.T) {
	dir := t.TempDir()
	staging, err := NewStaging(dir)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}

	old, err := staging.Save("old.pdf", "application/pdf", strings.NewReader("old"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old.Path, past, past); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	fresh, err := staging.Save("fresh.pdf", "application/pdf", strings.NewReader("fresh"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	removed, err := staging.Sweep(24 * time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old.Path); !os.IsNotExist(err) {
		t.Errorf("old staged file should be swept")
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(fresh.Path))); err != nil {
		t.Errorf("fresh staged file should survive sweep: %v", err)
	}
}
