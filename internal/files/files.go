// SPDX-License-Identifier: MIT

// Package files manages the two user-visible file areas: uploads written
// by the browser and outputs written by the agent.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/platform/fs"
)

// Category names one file area.
type Category string

const (
	CategoryUploads Category = "uploads"
	CategoryOutputs Category = "outputs"
)

var (
	ErrUnknownCategory = errors.New("files: unknown category")
	ErrNotFound        = errors.New("files: not found")
	ErrInvalidName     = fmt.Errorf("files: %w", fs.ErrUnsafeName)
	ErrTooLarge        = fmt.Errorf("files: %w", fs.ErrTooLarge)
)

// ParseCategory accepts "uploads" or "outputs".
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryUploads, CategoryOutputs:
		return Category(s), nil
	}
	return "", ErrUnknownCategory
}

// Entry describes one stored file.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Listing is the content of both areas.
type Listing struct {
	Uploads []Entry `json:"uploads"`
	Outputs []Entry `json:"outputs"`
}

// Stored is the result of a successful upload.
type Stored struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Size     int64    `json:"size"`
}

// Config locates the file areas.
type Config struct {
	UploadDir      string
	OutputDir      string
	MaxUploadBytes int64
}

// Store reads and writes the file areas.
type Store struct {
	dirs     map[Category]string
	maxBytes int64
	logger   zerolog.Logger
}

// NewStore creates a Store. Directories are not created here; startup
// checks do that.
func NewStore(cfg Config) *Store {
	return &Store{
		dirs: map[Category]string{
			CategoryUploads: cfg.UploadDir,
			CategoryOutputs: cfg.OutputDir,
		},
		maxBytes: cfg.MaxUploadBytes,
		logger:   rlog.WithComponent("files"),
	}
}

// MaxUploadBytes returns the upload size cap.
func (s *Store) MaxUploadBytes() int64 { return s.maxBytes }

// SanitizeName reduces a client-supplied file name to its final element and
// rejects anything that could address another path.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if err := fs.ValidateName(name); err != nil {
		return "", ErrInvalidName
	}
	return name, nil
}

// Save writes r into the upload area under the sanitised name. The file
// appears atomically; an oversized body leaves nothing behind.
func (s *Store) Save(name string, r io.Reader) (Stored, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return Stored{}, err
	}
	path := filepath.Join(s.dirs[CategoryUploads], clean)

	n, err := fs.WriteAtomic(s.logger, path, r, s.maxBytes)
	if err != nil {
		if errors.Is(err, fs.ErrTooLarge) {
			return Stored{}, ErrTooLarge
		}
		return Stored{}, fmt.Errorf("save upload: %w", err)
	}

	s.logger.Info().
		Str(rlog.FieldEvent, "files.uploaded").
		Str("name", clean).
		Int64("size", n).
		Msg("file uploaded")
	return Stored{Name: clean, Category: CategoryUploads, Size: n}, nil
}

// List returns the regular files of both areas sorted by name. A missing
// directory lists as empty.
func (s *Store) List() (Listing, error) {
	uploads, err := s.list(CategoryUploads)
	if err != nil {
		return Listing{}, err
	}
	outputs, err := s.list(CategoryOutputs)
	if err != nil {
		return Listing{}, err
	}
	return Listing{Uploads: uploads, Outputs: outputs}, nil
}

func (s *Store) list(c Category) ([]Entry, error) {
	entries := []Entry{}
	dirEntries, err := os.ReadDir(s.dirs[c])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Open resolves name inside the category directory, following symlinks
// only while they stay inside it, and opens the regular file found there.
func (s *Store) Open(c Category, name string) (*os.File, os.FileInfo, error) {
	dir, ok := s.dirs[c]
	if !ok {
		return nil, nil, ErrUnknownCategory
	}
	if err := fs.ValidateName(name); err != nil {
		return nil, nil, ErrInvalidName
	}
	path, err := fs.ConfineRelPath(dir, name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := fs.IsRegularFile(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	f, err := os.Open(path) // #nosec G304 -- path confined to the category directory above
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, info, nil
}
