/*
Package agent defines the worker contract consumed by the orchestrator.

# Overview

A worker is any executor that advertises a capability set and can run a
task body. The orchestrator never implements concrete workers itself; it
only consumes them through the Worker interface:

	type Worker interface {
	    ID() string
	    Name() string
	    Capabilities() types.CapabilitySet
	    Execute(ctx context.Context, task *types.Task, execCtx ExecutionContext) (map[string]any, error)
	    CanHandle(task *types.Task) bool
	    HealthCheck(ctx context.Context) bool
	}

# Lifecycle

The scheduler-side view of a worker is a Record: status, current task and
running performance counters. Records move through a static transition
table (see CanTransition):

	available -> busy        StartTask
	busy      -> available   CompleteTask
	*         -> error       SetError
	error     -> available   ResetError
	*         -> offline     SetOffline
	offline   -> available   SetOnline

A record with status busy always carries a current task id, and a record in
error or offline is never selected for new work.

# Helpers

BaseWorker supplies identity, the default subset-based CanHandle and a
trivial HealthCheck, so concrete workers only implement Execute. FuncWorker
adapts a plain function, which is handy in tests and small deployments.
*/
package agent
