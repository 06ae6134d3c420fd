// Package utils provides filesystem and token-counting helpers shared by the session
// manager and the janitor.
package utils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// AtomicReplace swaps source in at target. An existing target is moved to
// target+".old" first and restored if the swap fails. source must be on the same
// filesystem as target; use StageDir otherwise.
func AtomicReplace(target, source string) error {
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("source does not exist: %w", err)
	}

	targetExists := true
	if _, err := os.Lstat(target); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to check target: %w", err)
		}
		targetExists = false
	}

	if !targetExists {
		if err := os.Rename(source, target); err != nil {
			return fmt.Errorf("failed to move source to target: %w", err)
		}
		return nil
	}

	oldPath := target + ".old"
	_ = os.RemoveAll(oldPath)
	if err := os.Rename(target, oldPath); err != nil {
		return fmt.Errorf("failed to move target out of the way: %w", err)
	}
	if err := os.Rename(source, target); err != nil {
		_ = os.Rename(oldPath, target)
		return fmt.Errorf("failed to move source into place: %w", err)
	}
	_ = os.RemoveAll(oldPath)
	return nil
}

// StageDir places a copy of src at dst, renaming when possible and copying across
// filesystems. dst must not exist.
func StageDir(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to stage %s: %w", src, err)
	}
	return CopyDir(src, dst)
}

// CopyDir copies the tree at src to dst, preserving file modes. Symlinks are recreated.
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

// ReplaceFile copies src over dst through a temporary file in dst's directory,
// so readers never observe a partially written dst.
func ReplaceFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source does not exist: %w", err)
	}

	tmp := dst + ".tmp"
	if err := copyFile(src, tmp, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", dst, err)
	}
	return nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
