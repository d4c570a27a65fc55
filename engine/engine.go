package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/checkpoint"
	"github.com/seqra/seqra/event"
	"github.com/seqra/seqra/ext"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/observability"
	"github.com/seqra/seqra/resume"
	"github.com/seqra/seqra/seal"
	"github.com/seqra/seqra/workflow"
)

// Engine executes workflows sequentially with encrypted checkpoints and
// resume-after-interruption semantics. One Engine can run many
// workflows concurrently, but each workflow id has at most one active
// run, enforced through the store's lock.
type Engine struct {
	cfg        seqra.Config
	fs         afero.Fs
	store      checkpoint.Store
	bus        *event.Bus
	extensions *ext.Registry
	hook       resume.Hook
	ident      workflow.Identity
	logger     *slog.Logger

	meterProvider metric.MeterProvider
	pending       []ext.Extension

	mu   sync.Mutex
	runs map[string]*run
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithExtension registers an extension with the engine.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.pending = append(e.pending, x) }
}

// WithStore replaces the default file-backed checkpoint store.
func WithStore(s checkpoint.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithResumeHook sets the restart-resume hook invoked around
// reboot-spanning tasks. Defaults to resume.NopHook.
func WithResumeHook(h resume.Hook) Option {
	return func(e *Engine) { e.hook = h }
}

// WithFs replaces the filesystem used for state and key files.
// Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) { e.fs = fsys }
}

// WithIdentity overrides the identity checkpoints are bound to.
// Defaults to the current user and hostname.
func WithIdentity(ident workflow.Identity) Option {
	return func(e *Engine) { e.ident = ident }
}

// WithMeterProvider sets a custom OTel MeterProvider for the built-in
// metrics extension. If not set, the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New creates an Engine from cfg. Unless overridden with options, state
// lives under cfg.StateDir on the OS filesystem, sealed with a
// per-install key bound to the current user and host.
func New(cfg seqra.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		runs:   make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.ident == (workflow.Identity{}) {
		ident, err := workflow.CurrentIdentity()
		if err != nil {
			return nil, err
		}
		e.ident = ident
	}
	if e.store == nil {
		keyset, err := seal.Open(e.fs, cfg.StateDir, e.ident.String())
		if err != nil {
			return nil, err
		}
		store, err := checkpoint.NewFileStore(e.fs, cfg.StateDir, keyset)
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	if e.hook == nil {
		e.hook = resume.NopHook{}
	}

	e.bus = event.NewBus(cfg.OutputBuffer)
	e.extensions = ext.NewRegistry(e.logger)

	var obsExt *observability.MetricsExtension
	if e.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			e.meterProvider.Meter("github.com/seqra/seqra/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	e.extensions.Register(obsExt)

	for _, x := range e.pending {
		e.extensions.Register(x)
	}
	e.pending = nil

	return e, nil
}

// Start begins a fresh run of def. It fails with
// seqra.ErrWorkflowLocked when another engine holds the workflow and
// with seqra.ErrInvalidState when an in-flight checkpoint exists; an
// in-flight checkpoint must be resumed or cleared, never silently
// overwritten. A checkpoint that cannot be read back (tampered,
// undecryptable, stale) surfaces its load error the same way: Start
// never destroys state it could not verify.
func (e *Engine) Start(ctx context.Context, def *workflow.Definition) (*Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def = def.Clone()

	if err := e.store.Acquire(ctx, def.ID); err != nil {
		return nil, err
	}

	prior, err := e.store.Load(ctx, def.ID)
	switch {
	case err == nil && prior.Outcome.InFlight():
		e.store.Release(def.ID)
		return nil, fmt.Errorf("engine: %s has an in-flight checkpoint (outcome %s), resume or clear it: %w",
			def.ID, prior.Outcome, seqra.ErrInvalidState)
	case err == nil:
		// A terminal checkpoint from a failed run is replaced by the
		// fresh start.
		if err := e.store.Delete(ctx, def.ID); err != nil {
			e.store.Release(def.ID)
			return nil, err
		}
	case !errors.Is(err, seqra.ErrStateNotFound):
		// An unreadable checkpoint is never overwritten; the caller
		// inspects the error and clears it explicitly.
		e.store.Release(def.ID)
		return nil, fmt.Errorf("engine: %s has an unreadable checkpoint, clear it to start over: %w", def.ID, err)
	}

	st := workflow.NewState(def, e.ident)
	return e.launch(def, st), nil
}

// Resume continues the persisted run of def from its checkpoint.
// Completed tasks are not re-executed; a task interrupted mid-flight
// runs again from the beginning. When no checkpoint exists the run
// starts fresh from the first task. A checkpoint that fails validation
// is surfaced as seqra.ErrResume — the caller decides whether to clear
// it and start over; the engine never proceeds on unverified state.
func (e *Engine) Resume(ctx context.Context, def *workflow.Definition) (*Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	def = def.Clone()

	if err := e.store.Acquire(ctx, def.ID); err != nil {
		return nil, err
	}

	ctrl := resume.NewController(e.store, e.logger)
	st, err := ctrl.Prepare(ctx, def, e.ident)
	if errors.Is(err, seqra.ErrStateNotFound) {
		st, err = workflow.NewState(def, e.ident), nil
	}
	if err != nil {
		e.store.Release(def.ID)
		return nil, err
	}

	if err := e.hook.Deregister(ctx, def.ID); err != nil {
		e.logger.WarnContext(ctx, "deregister resume hook failed",
			slog.String("workflow_id", def.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return e.launch(def, st), nil
}

// launch registers the run and starts its loop.
func (e *Engine) launch(def *workflow.Definition, st *workflow.State) *Run {
	r := newRun(e, def, st)

	e.mu.Lock()
	e.runs[def.ID.String()] = r
	e.mu.Unlock()

	go func() {
		r.loop()

		e.mu.Lock()
		delete(e.runs, def.ID.String())
		e.mu.Unlock()

		// The lock is released before done is signalled so a caller
		// observing completion can immediately start or resume.
		e.store.Release(def.ID)
		close(r.done)
	}()

	return &Run{r: r}
}

// Cancel requests cancellation of an active run. The current task gets
// the configured grace period to stop cooperatively before it is
// forcibly terminated. Returns seqra.ErrNotRunning when no run is
// active for the workflow id.
func (e *Engine) Cancel(_ context.Context, wfID id.WorkflowID) error {
	e.mu.Lock()
	r, ok := e.runs[wfID.String()]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine: %s: %w", wfID, seqra.ErrNotRunning)
	}
	r.requestCancel()
	return nil
}

// Status reports the current state of a workflow: the live snapshot for
// an active run, otherwise the persisted checkpoint. Returns
// seqra.ErrStateNotFound when neither exists.
func (e *Engine) Status(ctx context.Context, wfID id.WorkflowID) (*workflow.State, error) {
	e.mu.Lock()
	r, ok := e.runs[wfID.String()]
	e.mu.Unlock()
	if ok {
		return r.snapshot(), nil
	}
	return e.store.Load(ctx, wfID)
}

// ClearState removes the persisted checkpoint and any registered
// restart hook for a workflow. Clearing an active run is refused with
// seqra.ErrInvalidState; clearing a workflow without state is a no-op.
func (e *Engine) ClearState(ctx context.Context, wfID id.WorkflowID) error {
	e.mu.Lock()
	_, active := e.runs[wfID.String()]
	e.mu.Unlock()
	if active {
		return fmt.Errorf("engine: %s is running, cancel it first: %w", wfID, seqra.ErrInvalidState)
	}

	if err := e.store.Delete(ctx, wfID); err != nil {
		return err
	}
	return e.hook.Deregister(ctx, wfID)
}

// Subscribe attaches an observer to the output stream of every run on
// this engine. The subscriber's channel buffer is cfg.OutputBuffer;
// when it fills, publishing blocks rather than dropping records.
func (e *Engine) Subscribe(subID string) *event.Subscriber {
	return e.bus.Subscribe(subID)
}

// Unsubscribe detaches an observer.
func (e *Engine) Unsubscribe(subID string) {
	e.bus.Unsubscribe(subID)
}

// Close cancels all active runs, waits for them to settle, and shuts
// down the subsystems.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	active := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		active = append(active, r)
	}
	e.mu.Unlock()

	for _, r := range active {
		r.requestCancel()
	}
	for _, r := range active {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.extensions.EmitShutdown(ctx)
	e.bus.Close()
	return e.store.Close()
}
