// Package harness executes declarative archiver scenarios.
//
// A scenario is a YAML file naming fixture files and a sequence of
// archiver operations (new, open, save, close, select, set_saved,
// window_close). The runner executes the steps against a Multi engine
// with a fixed ID generator, draining the action queue after every
// step so the recorded event trace is deterministic. Traces are
// compared against golden files.
package harness
