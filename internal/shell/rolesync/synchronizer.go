// Package rolesync mirrors the role template tree into a project's role directory.
package rolesync

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/harbor/internal/core/deployment"
)

// =============================================================================
// Synchronizer
// =============================================================================

// Result counts what a synchronization pass did.
type Result struct {
	Directories int
	Rendered    int
	Copied      int
	Skipped     int
}

// Synchronizer copies and renders a template tree into a destination directory.
type Synchronizer struct {
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger}
}

// Sync walks src and mirrors it under destRoot.
//
// Directories are created when missing. Files ending in .tmpl are rendered
// with vars and written without the suffix; other files are copied with their
// permission bits plus owner write. With onlyTemplates set, non-template files are skipped.
//
// The first failure aborts the walk. Files written before the failure are kept.
func (s *Synchronizer) Sync(src fs.FS, destRoot string, vars deployment.VariableSet, onlyTemplates bool) (Result, error) {
	var res Result

	s.logger.Debug("synchronizing structure from template",
		"dest", destRoot,
		"only_templates", onlyTemplates,
	)

	err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &deployment.SyncError{Op: "walk", Path: path, Err: err}
		}

		dest := filepath.Join(destRoot, filepath.FromSlash(path))

		if d.IsDir() {
			if err := mkdirSilent(dest, path == "."); err != nil {
				return err
			}
			res.Directories++
			return nil
		}

		if deployment.IsTemplate(d.Name()) {
			if err := s.renderFile(src, path, deployment.RenderedName(dest), vars); err != nil {
				return err
			}
			res.Rendered++
			return nil
		}

		if onlyTemplates {
			res.Skipped++
			return nil
		}

		if err := s.copyFile(src, path, dest); err != nil {
			return err
		}
		res.Copied++
		return nil
	})
	if err != nil {
		s.logger.Error("cannot synchronize role files", "error", err)
		return res, err
	}

	return res, nil
}

func (s *Synchronizer) renderFile(src fs.FS, path, dest string, vars deployment.VariableSet) error {
	content, err := fs.ReadFile(src, path)
	if err != nil {
		return &deployment.SyncError{Op: "read", Path: path, Err: err}
	}
	info, err := fs.Stat(src, path)
	if err != nil {
		return &deployment.SyncError{Op: "stat", Path: path, Err: err}
	}

	// Rendered fully in memory first: a failing template leaves no output file.
	out, err := deployment.Render(path, content, vars)
	if err != nil {
		return err
	}

	if err := replaceFile(dest, info.Mode().Perm()|0200, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	}); err != nil {
		return &deployment.SyncError{Op: "write", Path: dest, Err: err}
	}

	s.logger.Debug("rendered", "path", dest)
	return nil
}

func (s *Synchronizer) copyFile(src fs.FS, path, dest string) error {
	in, err := src.Open(path)
	if err != nil {
		return &deployment.SyncError{Op: "open", Path: path, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return &deployment.SyncError{Op: "stat", Path: path, Err: err}
	}

	// Embedded trees report read-only files; the owner keeps write access.
	perm := info.Mode().Perm() | 0200
	if err := replaceFile(dest, perm, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return &deployment.SyncError{Op: "copy", Path: dest, Err: err}
	}

	s.logger.Debug("created", "path", dest)
	return nil
}

// mkdirSilent creates a directory, ignoring "already exists". The destination
// root is created with its parents.
func mkdirSilent(dir string, root bool) error {
	var err error
	if root {
		err = os.MkdirAll(dir, 0755)
	} else {
		err = os.Mkdir(dir, 0755)
	}
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return &deployment.SyncError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// replaceFile writes dest from scratch with perm. An existing file is removed
// first so read-only copies from an earlier pass can be replaced.
func replaceFile(dest string, perm fs.FileMode, write func(w io.Writer) error) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile applies the umask; restore the exact source bits.
	return os.Chmod(dest, perm)
}
