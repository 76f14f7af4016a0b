/*
Package stepgraph builds, prepares and executes workflows of typed steps.

A workflow is an ordered list of Steps (mkdir, copy, shell, python, docker, ...).
The engine converts each step into a Request, wires the requests into an
Execution Graph with sequential edges unless a step names its own dependencies,
checks the environment the graph expects, prepares what is missing and runs the
graph in dependency order.

# Concept

Three pieces do the work and each can be used on its own:

  - pkg/builder turns Steps into a Graph. Conversion errors are collected and the
    steps that converted still form a usable graph.
  - pkg/fitting inspects the environment (directories, containers, images) through
    a read-only Inspector and synthesizes preparation requests for the gaps.
  - internal/runtime walks the graph, skips dependents of failed nodes unless the
    failure was allowed and substitutes {{step_<id>.result.<field>}} placeholders
    with the results of earlier nodes.

Drivers are injected through a ports.DriverSet. pkg/adapters/system talks to the
real host; pkg/adapters/memory simulates everything for tests.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/stepgraph"
		"github.com/aretw0/stepgraph/pkg/adapters/system"
		"github.com/aretw0/stepgraph/pkg/domain"
	)

	func main() {
		drivers, inspector := system.Drivers("./work")
		eng := stepgraph.New(
			stepgraph.WithWorkspace("./work"),
			stepgraph.WithDrivers(drivers),
			stepgraph.WithInspector(inspector),
		)

		wf := &domain.Workflow{Steps: []domain.Step{
			{Type: domain.StepTouch, Cmd: []string{"./p/main.py"}},
			{Type: domain.StepShell, Cmd: []string{"echo", "10/10"}},
			{Type: domain.StepShell, Cmd: []string{"echo", "{{step_1.result.stdout}}"}},
		}}

		report, err := eng.Run(context.Background(), wf, stepgraph.RunOptions{Fit: true})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("success=%t", report.Success)
	}
*/
package stepgraph
