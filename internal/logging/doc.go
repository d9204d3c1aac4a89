// Package logging provides structured logging for quorum runs.
//
// The package wraps log/slog with a JSON handler and a small set of
// context helpers so every line produced while a task moves through the
// pipeline can be traced back to its run, task and role.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(dataDir, "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID)
//	taskLogger := runLogger.WithTask("t1").WithRole("builder")
//	taskLogger.Info("execution finished", "adapter", "claude", "duration_ms", 1200)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"execution finished","run_id":"...","task_id":"t1","role":"builder","adapter":"claude","duration_ms":1200}
//
// # Rotation
//
// [NewLoggerWithRotation] writes through a [RotatingWriter] which renames
// the active file to quorum.log.1 once it exceeds the size limit, shifting
// older backups up to MaxBackups.
//
// # Reading Logs
//
// [ReadEntries] parses a log file back into [Entry] values and
// [FilterEntries] narrows them by level, task, role, component and time.
// The `quorum logs` command is built on these.
//
// # Testing
//
// Use [NopLogger] to discard output. Components that accept a logger
// option fall back to NopLogger when none is given.
//
// # Thread Safety
//
// Logger and RotatingWriter are safe for concurrent use. Child loggers
// share the parent's handler and file.
package logging
