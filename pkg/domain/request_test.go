package domain_test

import (
	"testing"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComposite(t *testing.T) {
	a := shell("a", "echo", "a")
	b := &domain.FileRequest{Op: domain.FileMkdir, Path: "./p"}

	t.Run("Single Element Is Returned As-Is", func(t *testing.T) {
		got := domain.NewComposite("one", a)
		assert.Same(t, a, got)
	})

	t.Run("Empty Input", func(t *testing.T) {
		assert.Nil(t, domain.NewComposite("none"))
	})

	t.Run("Aggregates In Order", func(t *testing.T) {
		got := domain.NewComposite("both", a, b)
		c, ok := got.(*domain.CompositeRequest)
		require.True(t, ok)
		assert.Equal(t, domain.KindComposite, c.Kind())
		assert.Equal(t, "both", c.Meta().Name)
		assert.Equal(t, []domain.Request{a, b}, c.Requests)
		assert.Equal(t, 2, c.LeafCount())
	})

	t.Run("Leaf Count Flattens Nested", func(t *testing.T) {
		inner := domain.NewComposite("inner", a, b)
		outer := domain.NewComposite("outer", inner, shell("c", "true")).(*domain.CompositeRequest)
		assert.Equal(t, 3, outer.LeafCount())
	})
}

func TestCloneRequest(t *testing.T) {
	orig := &domain.ShellRequest{Cmd: []string{"echo", "{{step_a.result.stdout}}"}}
	comp := domain.NewComposite("c", orig, &domain.FileRequest{Op: domain.FileTouch, Path: "x"})

	clone := domain.CloneRequest(comp).(*domain.CompositeRequest)
	clone.Requests[0].(*domain.ShellRequest).Cmd[1] = "changed"

	assert.Equal(t, "{{step_a.result.stdout}}", orig.Cmd[1])
	assert.Equal(t, comp, domain.CloneRequest(comp))
}

func TestOperationResult_Field(t *testing.T) {
	r := domain.OperationResult{
		Success:  true,
		Stdout:   "10/10\n",
		Stderr:   "warn\r\n",
		ExitCode: 0,
		Metadata: map[string]any{"score": 100, "empty": nil},
	}

	tests := []struct {
		field string
		want  string
		ok    bool
	}{
		{"stdout", "10/10", true},
		{"stderr", "warn", true},
		{"success", "true", true},
		{"returncode", "0", true},
		{"score", "100", true},
		{"empty", "", true},
		{"nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := r.Field(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStepType(t *testing.T) {
	st, err := domain.ParseStepType("MKDIR")
	require.NoError(t, err)
	assert.Equal(t, domain.StepMkdir, st)
	assert.True(t, st.IsFileOperation())

	_, err = domain.ParseStepType("teleport")
	assert.ErrorIs(t, err, domain.ErrUnknownStepType)
}

func TestWorkflowContext_Format(t *testing.T) {
	c := domain.WorkflowContext{
		ContestName: "abc300",
		ProblemName: "a",
		Extra:       map[string]string{"source_file_name": "main.py"},
	}

	assert.Equal(t, "./abc300/a/main.py", c.Format("./{contest_name}/{problem_name}/{source_file_name}"))
	assert.Equal(t, "{unknown}", c.Format("{unknown}"))
	assert.Equal(t, "echo {{step_test.result.stdout}}", c.Format("echo {{step_test.result.stdout}}"))
}

func TestClassifyFailure(t *testing.T) {
	cat, suggestion := domain.ClassifyFailure("mkdir /root/x: permission denied")
	assert.Equal(t, domain.CategoryPermission, cat)
	assert.NotEmpty(t, suggestion)

	cat, _ = domain.ClassifyFailure(`exec: "nope": executable file not found in $PATH`)
	assert.Equal(t, domain.CategoryCommandNotFound, cat)

	cat, _ = domain.ClassifyFailure("exit status 1")
	assert.Equal(t, domain.CategoryUnknown, cat)
}

func TestReport_Tally(t *testing.T) {
	r := &domain.Report{Nodes: []domain.NodeReport{
		{ID: "a", State: domain.NodeFailed},
		{ID: "b", State: domain.NodeSucceeded},
	}}

	r.Tally(func(id string) bool { return id == "a" })
	assert.True(t, r.Success)
	assert.Equal(t, domain.Counts{Succeeded: 1, Failed: 1}, r.Counts)

	r.Tally(nil)
	assert.False(t, r.Success)
}

func TestDescribe(t *testing.T) {
	cases := map[string]struct {
		req  domain.Request
		want string
	}{
		"Mkdir":     {&domain.FileRequest{Op: domain.FileMkdir, Path: "./p"}, "mkdir ./p"},
		"Copy":      {&domain.FileRequest{Op: domain.FileCopy, Path: "a", Dst: "b"}, "copy a -> b"},
		"Shell":     {&domain.ShellRequest{Cmd: []string{"make", "-j4"}}, "shell: make -j4"},
		"Run":       {&domain.ContainerRequest{Op: domain.ContainerRun, Container: "judge", Image: "python:3.12"}, "docker run judge (python:3.12)"},
		"Stop":      {&domain.ContainerRequest{Op: domain.ContainerStop, Container: "judge"}, "docker stop judge"},
		"Script":    {&domain.InterpreterRequest{Script: "main.py", Args: []string{"x"}}, "python main.py x"},
		"Code":      {&domain.InterpreterRequest{Code: "print(1)"}, "python -c"},
		"Composite": {domain.NewComposite("c", &domain.ShellRequest{}, &domain.ShellRequest{}), "composite of 2"},
		"Nil":       {nil, "<nil>"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.Describe(tc.req))
		})
	}
}

func TestAddressable(t *testing.T) {
	assert.True(t, domain.Addressable("run"))
	assert.True(t, domain.Addressable("solve_2"))
	assert.False(t, domain.Addressable("gen-input"))
	assert.False(t, domain.Addressable("a.b"))
	assert.False(t, domain.Addressable(""))
}
