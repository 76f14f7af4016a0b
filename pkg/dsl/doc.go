/*
Package dsl provides a fluent Go API for declaring stepgraph workflows.

It produces the same domain.Workflow that a YAML, JSON or TOML document decodes
into, so graphs can be declared in tests or generated programmatically without
going through a file.

Example usage:

	b := dsl.New().Contest("abc300").Problem("a")

	b.Add("setup").Mkdir("./{contest_name}/{problem_name}")
	b.Add("build").Shell("make", "-j4").Cwd("./{contest_name}").Timeout(90 * time.Second)
	b.Add("judge").Python("main.py").After("build")
	b.Add("").Shell("echo", "{{step_judge.result.stdout}}").AllowFailure()

	wf, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	report, err := engine.Run(ctx, wf, stepgraph.RunOptions{Fit: true})
*/
package dsl
