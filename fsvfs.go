package assetcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// FilesystemVfs is a Vfs backed by a root directory on disk. Keys are
// slash-separated paths relative to that root; FilesystemVfs makes a
// best-effort attempt to reject a key that would resolve outside the
// root, primarily to catch caller bugs rather than as a hard security
// boundary (a symlink inside the root can still point outside it).
type FilesystemVfs struct {
	root string
}

// NewFilesystemVfs resolves root to an absolute path and returns a Vfs
// rooted there.
func NewFilesystemVfs(root string) (*FilesystemVfs, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "resolving vfs root %q", root)
	}
	return &FilesystemVfs{root: abs}, nil
}

// resolve maps a key to an absolute path, rejecting any key that would
// escape the root after cleaning.
func (f *FilesystemVfs) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(f.root, filepath.FromSlash(key)))
	if cleaned != f.root && !strings.HasPrefix(cleaned, f.root+string(filepath.Separator)) {
		return "", pkgerrors.New("path is outside the vfs root directory")
	}
	return cleaned, nil
}

// Open implements Vfs.
func (f *FilesystemVfs) Open(_ context.Context, key string) (VfsReader, error) {
	path, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fsVfsReader{file: file}, nil
}

// fsVfsReader adapts *os.File to VfsReader.
type fsVfsReader struct {
	file *os.File
}

func (r *fsVfsReader) Read(p []byte) (int, error) { return r.file.Read(p) }
func (r *fsVfsReader) Close() error               { return r.file.Close() }

func (r *fsVfsReader) Size(_ context.Context) (uint64, bool, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, false, err
	}
	if info.Size() < 0 {
		return 0, false, nil
	}
	return uint64(info.Size()), true, nil
}
