package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Files implements ports.FileDriver on the local filesystem.
// Relative paths are resolved against the base directory.
type Files struct {
	baseDir string
}

// NewFiles creates a file driver rooted at baseDir ("" means the process cwd).
func NewFiles(baseDir string) *Files {
	return &Files{baseDir: baseDir}
}

func (f *Files) abs(p string) string {
	if f.baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.baseDir, p)
}

func fail(op, p string, err error) domain.OperationResult {
	return domain.Failed(nil, "%s %s: %v", op, p, err)
}

func ok(p string) domain.OperationResult {
	return domain.OperationResult{Success: true, Path: p}
}

// Exists succeeds when p is present.
func (f *Files) Exists(_ context.Context, p string) domain.OperationResult {
	info, err := os.Stat(f.abs(p))
	if err != nil {
		return domain.OperationResult{Path: p, Metadata: map[string]any{"exists": false}}
	}
	return domain.OperationResult{Success: true, Path: p, Metadata: map[string]any{"exists": true, "is_dir": info.IsDir()}}
}

// Mkdir creates p and its parents.
func (f *Files) Mkdir(_ context.Context, p string) domain.OperationResult {
	if err := os.MkdirAll(f.abs(p), 0o755); err != nil {
		return fail("mkdir", p, err)
	}
	return ok(p)
}

// Touch creates p or updates its times. Parents are not created.
func (f *Files) Touch(_ context.Context, p string) domain.OperationResult {
	target := f.abs(p)
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) || isDir(target) {
			now := time.Now()
			_ = os.Chtimes(target, now, now)
			return ok(p)
		}
		return fail("touch", p, err)
	}
	if err := file.Close(); err != nil {
		return fail("touch", p, err)
	}
	now := time.Now()
	_ = os.Chtimes(target, now, now)
	return ok(p)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Copy copies a file. When dst is a directory the file keeps its base name.
func (f *Files) Copy(_ context.Context, src, dst string) domain.OperationResult {
	from, to := f.abs(src), f.abs(dst)
	if isDir(to) {
		to = filepath.Join(to, filepath.Base(from))
	}
	if err := copyFile(from, to); err != nil {
		return fail("copy", src, err)
	}
	return ok(dst)
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", from)
	}
	out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyTree copies a directory recursively. dst must not exist; its parents are created.
func (f *Files) CopyTree(_ context.Context, src, dst string) domain.OperationResult {
	from, to := f.abs(src), f.abs(dst)
	if !isDir(from) {
		return fail("copytree", src, errors.New("no such directory"))
	}
	if _, err := os.Stat(to); err == nil {
		return fail("copytree", dst, fs.ErrExist)
	}
	err := filepath.WalkDir(from, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
	if err != nil {
		return fail("copytree", src, err)
	}
	return ok(dst)
}

// Move renames a file or directory. Moving into an existing directory keeps the base name.
func (f *Files) Move(_ context.Context, src, dst string) domain.OperationResult {
	from, to := f.abs(src), f.abs(dst)
	if isDir(to) {
		to = filepath.Join(to, filepath.Base(from))
	}
	if err := os.Rename(from, to); err != nil {
		return fail("move", src, err)
	}
	return ok(dst)
}

// Remove deletes a file.
func (f *Files) Remove(_ context.Context, p string) domain.OperationResult {
	target := f.abs(p)
	if isDir(target) {
		return fail("remove", p, errors.New("is a directory"))
	}
	if err := os.Remove(target); err != nil {
		return fail("remove", p, err)
	}
	return ok(p)
}

// RemoveTree deletes a directory and its contents.
func (f *Files) RemoveTree(_ context.Context, p string) domain.OperationResult {
	target := f.abs(p)
	if !isDir(target) {
		return fail("rmtree", p, errors.New("no such directory"))
	}
	if err := os.RemoveAll(target); err != nil {
		return fail("rmtree", p, err)
	}
	return ok(p)
}

// Read returns a file's content.
func (f *Files) Read(_ context.Context, p string) domain.OperationResult {
	data, err := os.ReadFile(f.abs(p))
	if err != nil {
		return fail("read", p, err)
	}
	res := ok(p)
	res.Content = string(data)
	return res
}

// Write replaces a file's content. Parents are not created.
func (f *Files) Write(_ context.Context, p, content string) domain.OperationResult {
	if err := os.WriteFile(f.abs(p), []byte(content), 0o644); err != nil {
		return fail("write", p, err)
	}
	return ok(p)
}
