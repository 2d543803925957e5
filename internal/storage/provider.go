// Package storage abstracts the file stores Code Stash reads scan files from
// and exports images to.
package storage

import "time"

// Object describes one stored file.
type Object struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for file operations relative to a store root.
type Provider interface {
	// List returns every regular file under dir. Hidden files are skipped.
	List(dir string) ([]Object, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
