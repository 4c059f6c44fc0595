package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/habiliai/nativeagent/errors"
)

// FileKV stores one file per key under root. Writes go through a temp file
// and a rename so a reader never sees a partial value.
type FileKV struct {
	root string
}

var _ KV = (*FileKV)(nil)

func NewFileKV(root string) *FileKV {
	return &FileKV{root: root}
}

func (s *FileKV) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, key+".json"), nil
}

func (s *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, errors.Wrap(ErrLoadFailed, err.Error())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(ErrLoadFailed, "%s: %v", key, err)
	}
	return data, true, nil
}

func (s *FileKV) Put(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return errors.Wrap(ErrSaveFailed, err.Error())
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(ErrSaveFailed, "%s: %v", key, err)
	}
	return nil
}

func (s *FileKV) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return errors.Wrap(ErrSaveFailed, err.Error())
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(ErrSaveFailed, "delete %s: %v", key, err)
	}
	return nil
}
