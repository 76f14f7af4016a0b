package fitting

import (
	"path/filepath"
	"strings"
)

// parentDir returns the directory part of p in p's own spelling, so that
// "./p/main.py" yields "./p". It returns "" when p has no directory part.
func parentDir(p string) string {
	p = strings.TrimRight(p, `/\`)
	idx := strings.LastIndexAny(p, `/\`)
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return p[:1]
	}
	return strings.TrimRight(p[:idx], `/\`)
}

// ancestors lists dir and every parent directory above it, outermost first.
// The current directory, the filesystem root and ".." segments are never included.
func ancestors(dir string) []string {
	var chain []string
	for d := strings.TrimRight(dir, `/\`); !isAnchor(d); d = parentDir(d) {
		chain = append(chain, d)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func isAnchor(d string) bool {
	if d == "" || d == "." || d == "/" || d == `\` || filepath.Base(d) == ".." {
		return true
	}
	// Windows volume roots such as "C:".
	return len(d) == 2 && d[1] == ':'
}

// key normalizes a path for de-duplication.
func key(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func depth(p string) int {
	k := key(p)
	if k == "." || k == "/" {
		return 0
	}
	return strings.Count(strings.Trim(k, "/"), "/") + 1
}

// resolve joins a relative target onto the base path used for inspection.
func resolve(base, p string) string {
	if base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// containerSide extracts the container name from a "name:/path" copy operand.
func containerSide(operand string) (string, bool) {
	name, _, ok := strings.Cut(operand, ":")
	if !ok || name == "" || strings.ContainsAny(name, `/\.`) || len(name) == 1 {
		return "", false
	}
	return name, true
}
