// Package pathutil provides the filesystem primitives the deployment engine
// is built on: cp-semantics file copy, relative symlink creation, and
// directory listing.
package pathutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/otiai10/copy"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsRegularFile reports whether path exists and is a regular file (symlinks
// are followed).
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// resolveDestination implements the shared "cp"-like rule used by both
// CopyFile and SymlinkRelative: if to ends with a slash or already names a
// directory, the final destination is to/filepath.Base(from).
func resolveDestination(from, to string) string {
	if strings.HasSuffix(to, string(filepath.Separator)) {
		return filepath.Join(to, filepath.Base(from))
	}
	if info, err := os.Stat(to); err == nil && info.IsDir() {
		return filepath.Join(to, filepath.Base(from))
	}
	return to
}

// CopyFile mimics `cp`: see resolveDestination for the directory/trailing
// slash rule. With overwrite=false, an existing target is a successful
// no-op. Missing parent directories are created.
func CopyFile(from, to string, overwrite bool) error {
	dest := resolveDestination(from, to)

	parent := filepath.Dir(dest)
	if parent != "" {
		if info, err := os.Stat(parent); err != nil || !info.IsDir() {
			if err := os.MkdirAll(parent, 0755); err != nil {
				return fmt.Errorf("create parent directory %s: %w", parent, err)
			}
		}
	}

	if !overwrite && Exists(dest) {
		return nil
	}

	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("open source %s: %w", from, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source %s: %w", from, err)
	}

	tmp := dest + ".appdirtool-tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy %s to %s: %w", from, dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close destination %s: %w", dest, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("finalize copy to %s: %w", dest, err)
	}

	return nil
}

// CopyTree copies a whole directory tree, e.g. an icon theme or a
// gdk-pixbuf loader directory. Single file copies must go through CopyFile:
// otiai10/copy's directory-biased semantics don't give the exact
// trailing-slash/existing-dir contract above.
func CopyTree(from, to string) error {
	return copy.Copy(from, to)
}

// SymlinkRelative creates a symlink at linkLocation (or, if linkLocation
// names a directory, at linkLocation/filepath.Base(target)) whose stored
// text is relative to the link's containing directory. Absolute links are
// an explicit unsupported option.
func SymlinkRelative(target, linkLocation string, absolute bool) error {
	if absolute {
		return fmt.Errorf("absolute symlink mode is not supported")
	}

	dest := resolveDestination(target, linkLocation)

	if fi, err := os.Lstat(dest); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("remove existing symlink %s: %w", dest, err)
		}
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", target, err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", dest, err)
	}

	rel, err := filepath.Rel(filepath.Dir(absDest), absTarget)
	if err != nil {
		return fmt.Errorf("compute relative path from %s to %s: %w", absDest, absTarget, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", dest, err)
	}

	if err := os.Symlink(rel, dest); err != nil {
		return fmt.Errorf("create symlink %s -> %s: %w", dest, rel, err)
	}

	return nil
}

// ListFiles returns the regular files under dir. A missing dir yields an
// empty list, not an error.
func ListFiles(dir string, recursive bool) []string {
	var found []string

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return found
	}

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return found
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				found = append(found, filepath.Join(dir, e.Name()))
			}
		}
		return found
	}

	_ = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.Mode().IsRegular() {
			found = append(found, path)
		}
		return nil
	})

	return found
}

// SecureJoin joins root and rel so that the result always stays inside
// root: symlinks and ".." components in rel are resolved as if root were
// the filesystem root, so they cannot climb out of it. The engine uses it
// for copyright paths reported by a package-manager query; other
// bundle-relative destinations are built with filepath.Join.
func SecureJoin(root, rel string) (string, error) {
	return securejoin.SecureJoin(root, rel)
}
