package compiler_test

import (
	"testing"
	"time"

	"github.com/aretw0/stepgraph/internal/compiler"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BareList(t *testing.T) {
	data := []byte(`[
		{"type": "mkdir", "cmd": ["./p"]},
		{"type": "TOUCH", "cmd": ["./p/main.py"], "allow_failure": true}
	]`)

	wf, err := compiler.NewParser().Parse(data, compiler.FormatJSON)
	require.NoError(t, err)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, domain.StepMkdir, wf.Steps[0].Type)
	assert.Equal(t, domain.StepTouch, wf.Steps[1].Type, "types are lowercased")
	assert.True(t, wf.Steps[1].AllowFailure)
	assert.Nil(t, wf.Steps[0].DependsOn)
}

func TestParse_YAMLDocument(t *testing.T) {
	data := []byte(`
context:
  contest_name: abc300
  language: python
  judge_url: https://example.test
steps:
  - type: shell
    name: build
    cmd: [make, "-j", 4]
    cwd: ./{contest_name}
    timeout: 90s
    show_output: "true"
  - type: test
    cmd: [pytest]
    depends_on: []
    timeout: 2.5
`)

	wf, err := compiler.NewParser().Parse(data, compiler.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "abc300", wf.Context.ContestName)
	assert.Equal(t, "python", wf.Context.Language)
	assert.Equal(t, "https://example.test", wf.Context.Extra["judge_url"])

	require.Len(t, wf.Steps, 2)
	build := wf.Steps[0]
	assert.Equal(t, []string{"make", "-j", "4"}, build.Cmd)
	assert.Equal(t, 90*time.Second, build.Timeout)
	assert.True(t, build.ShowOutput)
	assert.Equal(t, "./{contest_name}", build.Cwd, "context formatting happens in the builder")

	test := wf.Steps[1]
	assert.NotNil(t, test.DependsOn)
	assert.Empty(t, test.DependsOn)
	assert.Equal(t, 2500*time.Millisecond, test.Timeout)
}

func TestParse_TOML(t *testing.T) {
	data := []byte(`
[context]
problem_name = "a"

[[steps]]
type = "python"
cmd = ["main.py"]
timeout = 10
`)

	wf, err := compiler.NewParser().Parse(data, compiler.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "a", wf.Context.ProblemName)
	require.Len(t, wf.Steps, 1)
	assert.Equal(t, domain.StepPython, wf.Steps[0].Type)
	assert.Equal(t, 10*time.Second, wf.Steps[0].Timeout)
}

func TestParse_UnknownTypeIsKept(t *testing.T) {
	wf, err := compiler.NewParser().Parse([]byte(`[{"type": "teleport", "cmd": ["x"]}]`), compiler.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, domain.StepType("teleport"), wf.Steps[0].Type)
}

func TestParse_Errors(t *testing.T) {
	p := compiler.NewParser()
	cases := map[string]struct {
		data   string
		format compiler.Format
	}{
		"Malformed JSON":   {`[{"type":`, compiler.FormatJSON},
		"Scalar Document":  {`42`, compiler.FormatJSON},
		"Scalar Step":      {`["mkdir"]`, compiler.FormatJSON},
		"Misspelled Field": {`[{"type": "shell", "cmd": ["ls"], "allow_faliure": true}]`, compiler.FormatJSON},
		"Bad Timeout":      {`[{"type": "shell", "cmd": ["ls"], "timeout": "soon"}]`, compiler.FormatJSON},
		"Unknown Format":   {`[]`, compiler.Format("ini")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse([]byte(tc.data), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	wf, err := compiler.NewParser().Parse([]byte(""), compiler.FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, wf.Steps)
}
