package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/stepgraph/pkg/domain"
)

type entry struct {
	dir     bool
	content string
}

// FS implements ports.FileDriver over an in-memory tree.
// Paths are slash separated and cleaned; "." is the root and always exists.
// Safe for concurrent use.
type FS struct {
	mu      sync.RWMutex
	entries map[string]*entry
	calls   []string
}

// NewFS creates an empty filesystem. Directories listed in dirs are created up front.
func NewFS(dirs ...string) *FS {
	fs := &FS{entries: map[string]*entry{".": {dir: true}}}
	for _, d := range dirs {
		fs.mkdirAll(clean(d))
	}
	return fs
}

func clean(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// Calls returns the mutating operations performed so far, as "op path" strings.
func (fs *FS) Calls() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return append([]string(nil), fs.calls...)
}

// Paths returns every path in the tree, sorted.
func (fs *FS) Paths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]string, 0, len(fs.entries))
	for p := range fs.entries {
		if p != "." {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (fs *FS) record(op, p string) {
	fs.calls = append(fs.calls, op+" "+p)
}

func (fs *FS) mkdirAll(p string) bool {
	if p == "." || p == "" {
		return true
	}
	if e, ok := fs.entries[p]; ok {
		return e.dir
	}
	if !fs.mkdirAll(path.Dir(p)) {
		return false
	}
	fs.entries[p] = &entry{dir: true}
	return true
}

func (fs *FS) isDir(p string) bool {
	e, ok := fs.entries[p]
	return ok && e.dir
}

// subtree returns p and everything below it.
func (fs *FS) subtree(p string) []string {
	var out []string
	prefix := p + "/"
	for k := range fs.entries {
		if k == p || (p == "." && k != ".") || strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// CheckState reports what is at p. It never modifies the tree.
func (fs *FS) CheckState(_ context.Context, p string) (domain.PathState, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.entries[clean(p)]
	if !ok {
		return domain.PathState{}, nil
	}
	return domain.PathState{Exists: true, IsDir: e.dir, IsFile: !e.dir}, nil
}

// Exists succeeds when p is present.
func (fs *FS) Exists(_ context.Context, p string) domain.OperationResult {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.entries[clean(p)]
	res := domain.OperationResult{Success: ok, Path: p, Metadata: map[string]any{"exists": ok}}
	if ok {
		res.Metadata["is_dir"] = e.dir
	}
	return res
}

// Mkdir creates p and any missing parents. An existing directory is not an error.
func (fs *FS) Mkdir(_ context.Context, p string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("mkdir", p)
	if !fs.mkdirAll(clean(p)) {
		return domain.Failed(nil, "mkdir %s: not a directory", p)
	}
	return domain.OperationResult{Success: true, Path: p}
}

// Touch creates an empty file or keeps an existing one. The parent must exist.
func (fs *FS) Touch(_ context.Context, p string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("touch", p)
	cp := clean(p)
	if _, ok := fs.entries[cp]; ok {
		return domain.OperationResult{Success: true, Path: p}
	}
	if !fs.isDir(path.Dir(cp)) {
		return domain.Failed(nil, "touch %s: no such file or directory", p)
	}
	fs.entries[cp] = &entry{}
	return domain.OperationResult{Success: true, Path: p}
}

// Copy copies a file. When dst is a directory the file keeps its base name.
func (fs *FS) Copy(_ context.Context, src, dst string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("copy", src+" "+dst)
	cs, cd := clean(src), clean(dst)
	e, ok := fs.entries[cs]
	if !ok || e.dir {
		return domain.Failed(nil, "copy %s: no such file", src)
	}
	if fs.isDir(cd) {
		cd = path.Join(cd, path.Base(cs))
	}
	if !fs.isDir(path.Dir(cd)) {
		return domain.Failed(nil, "copy to %s: no such file or directory", dst)
	}
	fs.entries[cd] = &entry{content: e.content}
	return domain.OperationResult{Success: true, Path: cd}
}

// CopyTree copies a directory recursively, creating dst's parents.
func (fs *FS) CopyTree(_ context.Context, src, dst string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("copytree", src+" "+dst)
	cs, cd := clean(src), clean(dst)
	if !fs.isDir(cs) || cs == "." {
		return domain.Failed(nil, "copytree %s: no such directory", src)
	}
	if _, ok := fs.entries[cd]; ok {
		return domain.Failed(nil, "copytree %s: file exists", dst)
	}
	if !fs.mkdirAll(path.Dir(cd)) {
		return domain.Failed(nil, "copytree %s: not a directory", dst)
	}
	for _, k := range fs.subtree(cs) {
		e := fs.entries[k]
		fs.entries[cd+strings.TrimPrefix(k, cs)] = &entry{dir: e.dir, content: e.content}
	}
	return domain.OperationResult{Success: true, Path: dst}
}

// Move renames a file or directory. Moving into an existing directory keeps the base name.
func (fs *FS) Move(_ context.Context, src, dst string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("move", src+" "+dst)
	cs, cd := clean(src), clean(dst)
	if _, ok := fs.entries[cs]; !ok || cs == "." {
		return domain.Failed(nil, "move %s: no such file or directory", src)
	}
	if fs.isDir(cd) {
		cd = path.Join(cd, path.Base(cs))
	}
	if cd == cs || strings.HasPrefix(cd, cs+"/") {
		return domain.Failed(nil, "move %s: cannot move into itself", src)
	}
	if !fs.isDir(path.Dir(cd)) {
		return domain.Failed(nil, "move to %s: no such file or directory", dst)
	}
	for _, k := range fs.subtree(cs) {
		fs.entries[cd+strings.TrimPrefix(k, cs)] = fs.entries[k]
		delete(fs.entries, k)
	}
	return domain.OperationResult{Success: true, Path: cd}
}

// Remove deletes a file.
func (fs *FS) Remove(_ context.Context, p string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("remove", p)
	cp := clean(p)
	e, ok := fs.entries[cp]
	if !ok {
		return domain.Failed(nil, "remove %s: no such file or directory", p)
	}
	if e.dir {
		return domain.Failed(nil, "remove %s: is a directory", p)
	}
	delete(fs.entries, cp)
	return domain.OperationResult{Success: true, Path: p}
}

// RemoveTree deletes a directory and its contents.
func (fs *FS) RemoveTree(_ context.Context, p string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("rmtree", p)
	cp := clean(p)
	if !fs.isDir(cp) || cp == "." {
		return domain.Failed(nil, "rmtree %s: no such directory", p)
	}
	for _, k := range fs.subtree(cp) {
		delete(fs.entries, k)
	}
	return domain.OperationResult{Success: true, Path: p}
}

// Read returns a file's content.
func (fs *FS) Read(_ context.Context, p string) domain.OperationResult {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.entries[clean(p)]
	if !ok || e.dir {
		return domain.Failed(nil, "read %s: no such file", p)
	}
	return domain.OperationResult{Success: true, Path: p, Content: e.content}
}

// Write replaces a file's content. The parent must exist.
func (fs *FS) Write(_ context.Context, p, content string) domain.OperationResult {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.record("write", p)
	cp := clean(p)
	if e, ok := fs.entries[cp]; ok && e.dir {
		return domain.Failed(nil, "write %s: is a directory", p)
	}
	if !fs.isDir(path.Dir(cp)) {
		return domain.Failed(nil, "write %s: no such file or directory", p)
	}
	fs.entries[cp] = &entry{content: content}
	return domain.OperationResult{Success: true, Path: p}
}
