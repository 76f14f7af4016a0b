/*
Package ports defines the driven ports (interfaces) of the stepgraph engine.

These interfaces decouple graph construction, fitting and execution from the
side-effecting world, so every engine can run against real drivers in
production and against mocks in tests.

# Key Interfaces

  - FileDriver, ShellDriver, ContainerDriver, InterpreterDriver: perform Request effects.
  - DriverSet: the explicit table of drivers passed to the engines.
  - Inspector: read-only environment queries used by fitting.
  - Dispatcher: executes one Request, used by fitting to run preparations.
  - ReportStore: persists run reports.
  - Locker: serializes runs on one workspace.
*/
package ports
