/*
Package domain contains the core domain models of the stepgraph engine.

It defines the declarative Step, the executable Request variants, the
Execution Graph and the values produced while fitting and executing it.
This package is kept pure and free of I/O, following Hexagonal Architecture
principles: drivers, stores and loaders live behind the interfaces in ports.

# Key Entities

  - Step: what a caller wants done (type, cmd, allow_failure, show_output).
  - Request: the driver-targeted form of a Step (File, Shell, Container, Interpreter, Composite).
  - Graph: nodes keyed by id plus acyclic depends_on edges.
  - OperationResult: the immutable outcome of executing a Request.
  - PreparationPlan / FittingSummary: the environment diff and its repair.
  - Report: per-node states and aggregate counts for one run.
*/
package domain
