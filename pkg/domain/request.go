package domain

import (
	"fmt"
	"strings"
	"time"
)

// RequestKind tags the Request variants.
type RequestKind string

const (
	KindFile        RequestKind = "file"
	KindShell       RequestKind = "shell"
	KindContainer   RequestKind = "container"
	KindInterpreter RequestKind = "interpreter"
	KindComposite   RequestKind = "composite"
)

// Request is the executable unit produced from a Step.
// The set of variants is closed: FileRequest, ShellRequest, ContainerRequest,
// InterpreterRequest and CompositeRequest.
type Request interface {
	Kind() RequestKind
	Meta() RequestMeta
	isRequest()
}

// RequestMeta carries the fields shared by every variant.
type RequestMeta struct {
	Name         string `json:"name,omitempty"`
	AllowFailure bool   `json:"allow_failure,omitempty"`
	ShowOutput   bool   `json:"show_output,omitempty"`
}

// Meta returns the shared request fields.
func (m RequestMeta) Meta() RequestMeta { return m }

// FileOp enumerates file driver operations.
type FileOp string

const (
	FileMkdir    FileOp = "mkdir"
	FileTouch    FileOp = "touch"
	FileCopy     FileOp = "copy"
	FileCopyTree FileOp = "copytree"
	FileMove     FileOp = "move"
	FileMoveTree FileOp = "movetree"
	FileRemove   FileOp = "remove"
	FileRmtree   FileOp = "rmtree"
	FileRead     FileOp = "read"
	FileWrite    FileOp = "write"
)

// FileRequest targets the File driver.
type FileRequest struct {
	RequestMeta
	Op      FileOp `json:"op"`
	Path    string `json:"path"`
	Dst     string `json:"dst,omitempty"`
	Content string `json:"content,omitempty"`
}

func (*FileRequest) Kind() RequestKind { return KindFile }
func (*FileRequest) isRequest()        {}

// ShellRequest targets the Shell driver.
type ShellRequest struct {
	RequestMeta
	Cmd     []string      `json:"cmd"`
	Cwd     string        `json:"cwd,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

func (*ShellRequest) Kind() RequestKind { return KindShell }
func (*ShellRequest) isRequest()        {}

// ContainerOp enumerates container driver operations.
type ContainerOp string

const (
	ContainerRun    ContainerOp = "run"
	ContainerExec   ContainerOp = "exec"
	ContainerStop   ContainerOp = "stop"
	ContainerRemove ContainerOp = "rm"
	ContainerCopy   ContainerOp = "cp"
)

// ContainerRequest targets the Container driver.
// Src and Dst are only used by ContainerCopy and may use the "name:/path" form.
type ContainerRequest struct {
	RequestMeta
	Op        ContainerOp   `json:"op"`
	Image     string        `json:"image,omitempty"`
	Container string        `json:"container,omitempty"`
	Cmd       []string      `json:"cmd,omitempty"`
	Src       string        `json:"src,omitempty"`
	Dst       string        `json:"dst,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

func (*ContainerRequest) Kind() RequestKind { return KindContainer }
func (*ContainerRequest) isRequest()        {}

// InterpreterRequest targets the Interpreter driver.
// Exactly one of Script and Code is set.
type InterpreterRequest struct {
	RequestMeta
	Script  string        `json:"script,omitempty"`
	Code    string        `json:"code,omitempty"`
	Args    []string      `json:"args,omitempty"`
	Cwd     string        `json:"cwd,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

func (*InterpreterRequest) Kind() RequestKind { return KindInterpreter }
func (*InterpreterRequest) isRequest()        {}

// CompositeRequest is an ordered aggregate executed as one unit.
// Build it with NewComposite, never with a literal.
type CompositeRequest struct {
	RequestMeta
	Requests []Request `json:"requests"`
}

func (*CompositeRequest) Kind() RequestKind { return KindComposite }
func (*CompositeRequest) isRequest()        {}

// NewComposite aggregates requests in order.
// A single request is returned as-is and nil is returned for an empty input.
func NewComposite(name string, requests ...Request) Request {
	switch len(requests) {
	case 0:
		return nil
	case 1:
		return requests[0]
	}
	return &CompositeRequest{
		RequestMeta: RequestMeta{Name: name},
		Requests:    append([]Request(nil), requests...),
	}
}

// LeafCount returns the number of non-composite requests reachable from c.
func (c *CompositeRequest) LeafCount() int {
	n := 0
	for _, r := range c.Requests {
		if sub, ok := r.(*CompositeRequest); ok {
			n += sub.LeafCount()
			continue
		}
		n++
	}
	return n
}

// CloneRequest returns a deep copy so callers can rewrite fields
// without touching the graph that owns the original.
func CloneRequest(r Request) Request {
	switch v := r.(type) {
	case *FileRequest:
		c := *v
		return &c
	case *ShellRequest:
		c := *v
		c.Cmd = append([]string(nil), v.Cmd...)
		return &c
	case *ContainerRequest:
		c := *v
		c.Cmd = append([]string(nil), v.Cmd...)
		return &c
	case *InterpreterRequest:
		c := *v
		c.Args = append([]string(nil), v.Args...)
		return &c
	case *CompositeRequest:
		c := *v
		c.Requests = make([]Request, len(v.Requests))
		for i, sub := range v.Requests {
			c.Requests[i] = CloneRequest(sub)
		}
		return &c
	}
	return r
}

// Describe renders a short human label such as "mkdir ./p" or "shell: make -j4".
func Describe(r Request) string {
	switch v := r.(type) {
	case *FileRequest:
		if v.Dst != "" {
			return fmt.Sprintf("%s %s -> %s", v.Op, v.Path, v.Dst)
		}
		return fmt.Sprintf("%s %s", v.Op, v.Path)
	case *ShellRequest:
		return "shell: " + strings.Join(v.Cmd, " ")
	case *ContainerRequest:
		switch v.Op {
		case ContainerRun:
			return fmt.Sprintf("docker run %s (%s)", v.Container, v.Image)
		case ContainerCopy:
			return fmt.Sprintf("docker cp %s -> %s", v.Src, v.Dst)
		case ContainerExec:
			return fmt.Sprintf("docker exec %s: %s", v.Container, strings.Join(v.Cmd, " "))
		}
		return fmt.Sprintf("docker %s %s", v.Op, v.Container)
	case *InterpreterRequest:
		if v.Script != "" {
			return strings.TrimSpace("python " + v.Script + " " + strings.Join(v.Args, " "))
		}
		return "python -c"
	case *CompositeRequest:
		return fmt.Sprintf("composite of %d", v.LeafCount())
	case nil:
		return "<nil>"
	}
	return string(r.Kind())
}
