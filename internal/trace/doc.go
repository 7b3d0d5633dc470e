// Package trace provides the tracing subsystem of rbcheck.
//
// It records pipeline phases, per-file work and CFG construction so slow
// or hanging runs can be diagnosed.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	rbcheck check --trace=- --trace-level=phase ./project
//
// # Architecture
//
//   - NopTracer: no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer for crash dumps
//   - MultiTracer: combines several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: per-file events
//   - LevelDebug: everything including per-method spans
//
// # Scopes
//
//   - ScopeDriver: one pipeline run
//   - ScopePass: index, namer, typecheck and merge phases
//   - ScopeFile: per-file processing
//   - ScopeMethod: CFG construction and flow walking
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "namer", parentID)
//	defer span.End("")
package trace
