// Package engine wires the Seqra subsystems together and provides the
// control surface for running workflows: Start, Resume, Cancel, Status,
// and ClearState.
//
// The engine package exists to break an import cycle: the root seqra
// package holds the shared configuration and sentinel errors (imported
// by checkpoint, resume, workflow, etc.) and therefore cannot import
// those packages back. Engine sits above all subsystem packages and
// below the application layer.
//
// # Building an Engine
//
//	cfg, err := seqra.NewConfig(
//	    seqra.WithStateDir("/var/lib/seqra"),
//	    seqra.WithCancelGrace(30*time.Second),
//	)
//
//	eng, err := engine.New(cfg,
//	    engine.WithExtension(observability.NewAuditExtension(logger)),
//	    engine.WithResumeHook(loginHook),
//	)
//
// # Running Workflows
//
//	run, err := eng.Start(ctx, def)
//	state, err := run.Wait(ctx)
//
//	// After an interruption or reboot:
//	run, err = eng.Resume(ctx, def)
//
// # Observing Output
//
//	sub := eng.Subscribe("cli")
//	for rec := range sub.C() {
//	    fmt.Println(rec.Task, rec.Message)
//	}
//
// # Options
//
//   - [WithExtension] — register a lifecycle extension
//   - [WithStore] — replace the file-backed checkpoint store
//   - [WithResumeHook] — set the restart-resume hook
//   - [WithIdentity] — override the identity checkpoints bind to
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
