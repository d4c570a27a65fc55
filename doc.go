// Package seqra provides a resumable, single-host workflow execution
// engine. A workflow is an ordered sequence of tasks; after every task
// transition the engine persists an encrypted, tamper-evident checkpoint
// so that a run can survive process crashes and host restarts and resume
// exactly where it left off.
//
// Seqra is designed as a library, not a service. Build a
// workflow.Definition, construct an engine.Engine over a checkpoint
// store, and call Start. On the next process start, Resume picks up any
// in-flight run from its checkpoint.
//
// # Architecture
//
// Each subsystem lives in its own package: seal (account/host-bound blob
// protection), task (task specs and progress accounting), workflow
// (definitions and checkpoint state), checkpoint (atomic persistence and
// locking), sandbox (isolated task body execution), event (the observer
// output stream), ext (lifecycle hooks), engine (the state machine), and
// resume (startup recovery and restart hooks).
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package seqra
