package dsl_test

import (
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/builder"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Workflow(t *testing.T) {
	b := dsl.New().Contest("abc300").Problem("a").Set("judge", "python:3.12")

	b.Add("setup").Mkdir("./{contest_name}/{problem_name}")
	b.Add("build").Shell("make", "-j4").Cwd("./{contest_name}").Timeout(90 * time.Second)
	b.Add("judge").Python("main.py").After("setup", "build").ShowOutput()
	b.Add("").Shell("echo", "{{step_judge.result.stdout}}").AllowFailure()

	wf, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "abc300", wf.Context.ContestName)
	assert.Equal(t, "python:3.12", wf.Context.Extra["judge"])
	require.Len(t, wf.Steps, 4)

	assert.Equal(t, domain.StepMkdir, wf.Steps[0].Type)
	assert.Nil(t, wf.Steps[0].DependsOn)
	assert.Equal(t, []string{"make", "-j4"}, wf.Steps[1].Cmd)
	assert.Equal(t, 90*time.Second, wf.Steps[1].Timeout)
	assert.Equal(t, []string{"setup", "build"}, wf.Steps[2].DependsOn)
	assert.True(t, wf.Steps[2].ShowOutput)
	assert.True(t, wf.Steps[3].AllowFailure)
	assert.Empty(t, wf.Steps[3].Name)
}

func TestBuilder_GraphShape(t *testing.T) {
	b := dsl.New()
	b.Add("a").Touch("./x")
	b.Add("b").Shell("ls").Root()
	b.Add("c").Python("-c", "print(1)").After("a", "b")

	wf, err := b.Build()
	require.NoError(t, err)

	res := builder.New(nil).Build(wf.Steps, wf.Context)
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"a", "b", "c"}, res.Graph.IDs())

	bNode, _ := res.Graph.Node("b")
	assert.Empty(t, bNode.DependsOn, "root steps drop the implicit edge")
	cNode, _ := res.Graph.Node("c")
	assert.ElementsMatch(t, []string{"a", "b"}, cNode.DependsOn)
}

func TestBuilder_AddReturnsExistingStep(t *testing.T) {
	b := dsl.New()
	b.Add("x").Shell("true")
	b.Add("x").AllowFailure()

	wf, err := b.Build()
	require.NoError(t, err)
	require.Len(t, wf.Steps, 1)
	assert.True(t, wf.Steps[0].AllowFailure)
	assert.Equal(t, domain.StepShell, wf.Steps[0].Type)
}

func TestBuilder_StepWithoutAction(t *testing.T) {
	b := dsl.New()
	b.Add("ok").Shell("true")
	b.Add("empty").Timeout(time.Second)

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"empty"`)
}

func TestBuilder_StepIsACopy(t *testing.T) {
	sb := dsl.New().Add("x").Shell("echo", "a")
	step := sb.Step()
	step.Cmd[1] = "mutated"

	assert.Equal(t, []string{"echo", "a"}, sb.Step().Cmd)
}
