/*
Package upload implements the destinations encoded roster images are
published to.

Each image is uploaded to the avatar named by its slot identifier, replacing
whatever image was previously there.
*/
package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/bodgit/patronlink/avatar"
)

// Uploader publishes the image in file to the avatar id.
type Uploader interface {
	Upload(ctx context.Context, id avatar.ID, file string) error
}

// Directory stores images in a local directory named by identifier. It can
// also read them back for decoding.
type Directory struct {
	dir string
}

// NewDirectory returns a Directory rooted at dir, creating it if needed.
func NewDirectory(dir string) (*Directory, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Directory{dir: dir}, nil
}

func (d *Directory) path(id avatar.ID) string {
	return filepath.Join(d.dir, id.String()+".png")
}

// Upload copies file into the directory.
func (d *Directory) Upload(ctx context.Context, id avatar.ID, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(file)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(dst.Name())

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Rename(dst.Name(), d.path(id))
}

// Open returns the image stored for id.
func (d *Directory) Open(_ context.Context, id avatar.ID) (io.ReadCloser, error) {
	return os.Open(d.path(id))
}
