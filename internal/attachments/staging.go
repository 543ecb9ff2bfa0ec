package attachments

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/homzhub/ticket-engine/internal/models"
)

// Staging holds documents on local disk between the moment they are attached
// to a quote slot and the moment the submission is uploaded
type Staging struct {
	dir string
}

// NewStaging creates the staging area, creating the directory if needed
func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Staging{dir: dir}, nil
}

// Save writes the uploaded content to disk and returns its staged descriptor
func (s *Staging) Save(fileName, contentType string, r io.Reader) (*models.StagedDocument, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	return &models.StagedDocument{
		ID:          id,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		Path:        path,
		StagedAt:    time.Now(),
	}, nil
}

// Remove deletes a staged document from disk
func (s *Staging) Remove(doc models.StagedDocument) error {
	if err := os.Remove(doc.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged file %s: %w", doc.ID, err)
	}
	return nil
}

// Sweep deletes staged files older than the given age and returns how many
// were removed. Sessions expire on their own; this reclaims the disk space
// their orphaned documents left behind.
func (s *Staging) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}

	return removed, nil
}
