package domain

import "regexp"

// placeholderPattern matches {{step_<ref>.result.<field>}} and the short {{step_<ref>.<field>}}.
var placeholderPattern = regexp.MustCompile(`\{\{step_(\w+)\.(?:result\.)?(\w+)\}\}`)

var refNamePattern = regexp.MustCompile(`^\w+$`)

// Addressable reports whether a step name can appear in a placeholder.
// Only letters, digits and underscores qualify.
func Addressable(name string) bool {
	return refNamePattern.MatchString(name)
}

// Lookup resolves a placeholder reference and field to its value.
type Lookup func(ref, field string) (string, bool)

// Substitute replaces every resolvable placeholder in s.
// Placeholders the lookup cannot resolve are kept verbatim.
func Substitute(s string, lookup Lookup) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholderPattern.FindStringSubmatch(match)
		if v, ok := lookup(m[1], m[2]); ok {
			return v
		}
		return match
	})
}

// PlaceholderRefs returns the <ref> part of every placeholder in s.
func PlaceholderRefs(s string) []string {
	var refs []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// RequestStrings returns the request fields that accept placeholders.
func RequestStrings(req Request) []string {
	switch r := req.(type) {
	case *ShellRequest:
		return append([]string(nil), r.Cmd...)
	case *ContainerRequest:
		return append([]string(nil), r.Cmd...)
	case *InterpreterRequest:
		return append([]string{r.Code}, r.Args...)
	case *FileRequest:
		return []string{r.Path, r.Dst, r.Content}
	case *CompositeRequest:
		var out []string
		for _, sub := range r.Requests {
			out = append(out, RequestStrings(sub)...)
		}
		return out
	}
	return nil
}

// RewriteRequest returns a copy of req with fn applied to every placeholder-bearing field.
// The original request is left untouched.
func RewriteRequest(req Request, fn func(string) string) Request {
	c := CloneRequest(req)
	switch r := c.(type) {
	case *ShellRequest:
		mapStrings(r.Cmd, fn)
	case *ContainerRequest:
		mapStrings(r.Cmd, fn)
	case *InterpreterRequest:
		r.Code = fn(r.Code)
		mapStrings(r.Args, fn)
	case *FileRequest:
		r.Path = fn(r.Path)
		r.Dst = fn(r.Dst)
		r.Content = fn(r.Content)
	case *CompositeRequest:
		for i, sub := range r.Requests {
			r.Requests[i] = RewriteRequest(sub, fn)
		}
	}
	return c
}

func mapStrings(ss []string, fn func(string) string) {
	for i, s := range ss {
		ss[i] = fn(s)
	}
}
