package refdata

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed data/*.json
var embeddedDocs embed.FS

// FileStore serves documents from a directory, falling back to the embedded
// defaults for any document the directory does not carry. An empty dir
// serves the embedded documents only.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed document store rooted at dir. dir may
// be empty.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load returns the named document.
func (s *FileStore) Load(name string) ([]byte, error) {
	if s.dir != "" {
		path := filepath.Join(s.dir, name)
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	data, err := embeddedDocs.ReadFile("data/" + name)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", name, ErrNotFound)
	}
	return data, nil
}
