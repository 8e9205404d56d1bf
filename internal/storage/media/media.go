// Package media stores item image files.
package media

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// ErrInvalidName is returned for file names that are not a single plain
// path element.
var ErrInvalidName = errors.New("invalid media file name")

var _ catalog.MediaStore = (*Store)(nil)

// Store keeps media files in the root directory of an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a Store rooted at fs.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewDir returns a Store on the OS filesystem rooted at dir. The directory
// is created when missing.
func NewDir(dir string) (*Store, error) {
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create media dir %s", dir)
	}
	return New(afero.NewBasePathFs(osfs, dir)), nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || path.Clean(name) != name {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// Save writes r to the named file, replacing any previous content.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := afero.WriteReader(s.fs, "/"+name, r); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}

// Remove deletes the named file. Removing a missing file is not an error.
func (s *Store) Remove(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.fs.Remove("/"+name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %s", name)
	}
	return nil
}

// Exists reports whether the named file is stored.
func (s *Store) Exists(name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, "/"+name)
}

// Handler serves stored files read-only.
func (s *Store) Handler() http.Handler {
	return http.FileServer(afero.NewHttpFs(afero.NewReadOnlyFs(s.fs)))
}
