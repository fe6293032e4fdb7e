package usagepoller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/usagebar/internal/applog"
	"github.com/zsprackett/usagebar/internal/claudeusage"
	"github.com/zsprackett/usagebar/internal/events"
	"github.com/zsprackett/usagebar/internal/metrics"
	"github.com/zsprackett/usagebar/internal/ptyrun"
	"github.com/zsprackett/usagebar/internal/quota"
	"github.com/zsprackett/usagebar/internal/usage"
)

const (
	DefaultInterval       = 600 * time.Second
	DefaultAlertThreshold = 0.9
	debugLogLines         = 200
)

// ErrNotConfigured is returned by FetchNow when no working directory is set.
var ErrNotConfigured = errors.New("no working directory configured")

// Fetcher reads the usage screen once. *claudeusage.Client implements it.
type Fetcher interface {
	Fetch(dir string) (*claudeusage.Report, error)
}

// DirStore is the external owner of the working directory. *db.DB implements it.
type DirStore interface {
	WorkingDirectory() (string, error)
	SetWorkingDirectory(dir string) error
}

// Alerter is told when usage first rises above the alert threshold.
type Alerter interface {
	Notify(s usage.Snapshot)
}

type Options struct {
	Interval       time.Duration
	AlertThreshold float64
	Broadcaster    events.Broadcaster
	Alerter        Alerter
	// OnUpdate is called after every state change, from the fetching goroutine.
	OnUpdate func()
}

// Poller owns the published usage state. Create one per process and share it.
type Poller struct {
	fetcher  Fetcher
	dirs     DirStore
	opts     Options
	logger   *slog.Logger
	debug    *applog.Ring
	fetchMu  sync.Mutex
	inFlight atomic.Bool
	mu       sync.RWMutex
	state    usage.State
	alerting bool
	started  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	timeNow  func() time.Time
}

func New(fetcher Fetcher, dirs DirStore, opts Options, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AlertThreshold <= 0 {
		opts.AlertThreshold = DefaultAlertThreshold
	}
	return &Poller{
		fetcher: fetcher,
		dirs:    dirs,
		opts:    opts,
		logger:  logger,
		debug:   applog.NewRing(debugLogLines),
		stop:    make(chan struct{}),
		timeNow: time.Now,
	}
}

// SetBroadcaster attaches b after construction, for servers that need the
// poller to exist first. Call before Start.
func (p *Poller) SetBroadcaster(b events.Broadcaster) {
	p.opts.Broadcaster = b
}

// Start fetches once and then every interval, on a background goroutine. It
// does nothing and returns false when already started or when no working
// directory is configured yet.
func (p *Poller) Start() bool {
	dir, err := p.dirs.WorkingDirectory()
	if err != nil {
		p.logger.Warn("read working directory failed", "err", err)
	}
	p.mu.Lock()
	if p.started || dir == "" {
		p.mu.Unlock()
		return false
	}
	p.started = true
	p.state.Started = true
	p.mu.Unlock()

	p.logger.Info("usage poller starting", "interval", p.opts.Interval, "dir", dir)
	p.trace("starting", "interval", p.opts.Interval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.FetchNow()
		ticker := time.NewTicker(p.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.FetchNow()
			case <-p.stop:
				return
			}
		}
	}()
	return true
}

// Stop halts the timer and waits for an in-progress tick and any pending
// alert notification to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// SetWorkingDirectory saves dir and starts polling if this is the first
// directory ever configured. Later calls only change the directory used by
// subsequent fetches.
func (p *Poller) SetWorkingDirectory(dir string) error {
	if err := p.dirs.SetWorkingDirectory(dir); err != nil {
		return err
	}
	p.trace("working directory set", "dir", dir)
	p.Start()
	return nil
}

// WorkingDirectory reads through to the store.
func (p *Poller) WorkingDirectory() string {
	dir, err := p.dirs.WorkingDirectory()
	if err != nil {
		p.logger.Warn("read working directory failed", "err", err)
	}
	return dir
}

// Refresh starts a fetch in the background and returns true, or returns false
// without doing anything when a fetch is already running.
func (p *Poller) Refresh() bool {
	if p.inFlight.Load() {
		p.trace("refresh dropped: fetch in flight")
		return false
	}
	go p.FetchNow()
	return true
}

// FetchNow runs one fetch on the calling goroutine and publishes the result.
// Concurrent calls run one after another. The returned error is nil on
// success; Classify maps it to a usage.Kind.
func (p *Poller) FetchNow() error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	dir, err := p.dirs.WorkingDirectory()
	if err != nil {
		p.logger.Warn("read working directory failed", "err", err)
		return err
	}
	if dir == "" {
		return ErrNotConfigured
	}

	p.inFlight.Store(true)
	p.mu.Lock()
	p.state.InFlight = true
	st := p.state
	p.mu.Unlock()
	p.emit(events.TypeFetchStarted, st)

	id := uuid.NewString()
	start := p.timeNow()
	p.trace("fetch started", "attempt", id, "dir", dir)

	rep, err := p.fetcher.Fetch(dir)
	took := p.timeNow().Sub(start)
	kind := Classify(err)
	metrics.ObserveFetch(string(kind), took)

	if err != nil {
		p.fail(id, kind, err)
		return err
	}
	p.succeed(id, rep)
	return nil
}

func (p *Poller) succeed(id string, rep *claudeusage.Report) {
	session, weekly := Fold(rep.Quotas)
	snap := usage.Snapshot{
		AttemptID:       id,
		SessionFraction: session,
		WeeklyFraction:  weekly,
		Quotas:          rep.Quotas,
		HasData:         true,
		RawOutput:       string(rep.Raw),
		CapturedAt:      p.timeNow(),
	}
	p.logger.Info("usage fetched", "attempt", id, "session", session, "weekly", weekly, "quotas", len(rep.Quotas))
	p.trace("parsed", "attempt", id, "session", session, "weekly", weekly, "quotas", len(rep.Quotas))
	metrics.SetFractions(session, weekly, snap.CapturedAt)

	alerting := snap.Alerting(p.opts.AlertThreshold)
	p.mu.Lock()
	p.state.Snapshot = snap
	p.state.LastError = nil
	p.state.InFlight = false
	p.inFlight.Store(false)
	rising := alerting && !p.alerting
	p.alerting = alerting
	st := p.state
	p.mu.Unlock()

	if rising && p.opts.Alerter != nil {
		// Notify can block for seconds on webhook posts.
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.opts.Alerter.Notify(snap)
		}()
	}
	p.emit(events.TypeSnapshot, st)
}

func (p *Poller) fail(id string, kind usage.Kind, err error) {
	f := &usage.Failure{
		AttemptID: id,
		Kind:      kind,
		Message:   Describe(err),
		Output:    string(PartialOutput(err)),
		At:        p.timeNow(),
	}
	level := slog.LevelWarn
	if kind == usage.KindBinaryNotFound {
		level = slog.LevelError
	}
	p.logger.Log(context.Background(), level, "usage fetch failed", "attempt", id, "kind", kind, "err", err, "output_bytes", len(f.Output))
	p.trace("error", "attempt", id, "kind", kind, "err", err)

	p.mu.Lock()
	p.state.LastError = f
	p.state.InFlight = false
	p.inFlight.Store(false)
	st := p.state
	p.mu.Unlock()
	p.emit(events.TypeFetchFailed, st)
}

// emit publishes st, which must be a copy taken under the same lock that
// changed it, so every observer sees the same state.
func (p *Poller) emit(typ string, st usage.State) {
	if p.opts.Broadcaster != nil {
		p.opts.Broadcaster.Broadcast(events.Event{Type: typ, State: st})
	}
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate()
	}
}

func (p *Poller) trace(msg string, args ...any) {
	p.debug.Add(msg, args...)
	p.logger.Debug("usagepoller: "+msg, args...)
}

// State returns a copy of the published state.
func (p *Poller) State() usage.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Poller) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// InFlight reports whether a fetch is running. Callers use it to disable
// manual refresh.
func (p *Poller) InFlight() bool {
	return p.inFlight.Load()
}

// DebugLog returns recent timestamped diagnostic lines, oldest first.
func (p *Poller) DebugLog() []string {
	return p.debug.Lines()
}

// Fold reduces quotas to the headline session and weekly fractions used.
// The last quota of each kind wins; a kind that never appears folds to 0.
// Model-specific quotas are ignored.
func Fold(quotas []quota.Quota) (session, weekly float64) {
	for _, q := range quotas {
		used := (100 - q.PercentRemaining) / 100
		switch q.Kind {
		case quota.KindSession:
			session = used
		case quota.KindWeekly:
			weekly = used
		}
	}
	return session, weekly
}

// Classify maps a Fetch error to the kind of outcome it represents.
func Classify(err error) usage.Kind {
	var te *ptyrun.TimeoutError
	var pe *claudeusage.ParseError
	switch {
	case err == nil:
		return usage.KindSuccess
	case errors.Is(err, claudeusage.ErrBinaryNotFound):
		return usage.KindBinaryNotFound
	case errors.Is(err, ptyrun.ErrPTYAllocation):
		return usage.KindPTYFailed
	case errors.As(err, &te):
		return usage.KindTimeout
	case errors.As(err, &pe):
		return usage.KindParseFailed
	default:
		return usage.KindError
	}
}

// PartialOutput returns the output captured before a timeout or parse
// failure, or nil.
func PartialOutput(err error) []byte {
	var te *ptyrun.TimeoutError
	if errors.As(err, &te) {
		return te.Output
	}
	var pe *claudeusage.ParseError
	if errors.As(err, &pe) {
		return pe.Output
	}
	return nil
}

// Describe returns the message shown next to stale values.
func Describe(err error) string {
	switch Classify(err) {
	case usage.KindBinaryNotFound:
		return "Could not find claude CLI binary"
	case usage.KindPTYFailed:
		return "Failed to create pseudo-terminal"
	case usage.KindTimeout:
		return "Claude timed out (possibly waiting for input)"
	case usage.KindParseFailed:
		return "Could not parse usage data from output"
	case usage.KindSuccess:
		return ""
	default:
		return err.Error()
	}
}
