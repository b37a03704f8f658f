// Package avatar copies profile pictures into the application's pictures
// directory.
package avatar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotImage is returned when the source file is not a supported image.
var ErrNotImage = errors.New("not a supported image (png, jpeg, gif, bmp)")

var allowed = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
}

// Store keeps one picture per username in Dir
type Store struct {
	dir   string
	newID func() string
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator replaces uuid.NewString for file names.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the pictures directory.
func (s *Store) Dir() string { return s.dir }

// Save copies src to <dir>/<username>_<id><ext> and returns the new path. When
// previous is a file inside the store it is removed after the copy succeeds.
func (s *Store) Save(username, src, previous string) (string, error) {
	mt, err := mimetype.DetectFile(src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", src, err)
	}
	if !allowed[mt.String()] {
		return "", fmt.Errorf("%s is %s: %w", filepath.Base(src), mt.String(), ErrNotImage)
	}

	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = mt.Extension()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}

	dst := filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", username, s.newID(), ext))
	if err := copyFile(src, dst); err != nil {
		return "", err
	}

	if previous != "" && previous != dst && s.owns(previous) {
		if err := os.Remove(previous); err != nil && !os.IsNotExist(err) {
			return dst, fmt.Errorf("remove previous picture: %w", err)
		}
	}
	return dst, nil
}

func (s *Store) owns(path string) bool {
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(p) == dir
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return nil
}
