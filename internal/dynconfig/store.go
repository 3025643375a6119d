package dynconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/core/resilience"
	"github.com/packetflow/iccr/internal/infrastructure/cache"
	"github.com/packetflow/iccr/internal/infrastructure/lock"
	"github.com/packetflow/iccr/internal/metrics"
	pkgmetrics "github.com/packetflow/iccr/pkg/metrics"
)

// remoteCacheTimeout bounds every best-effort call into the remote
// version cache, so a slow or unreachable Redis never blocks a config
// update.
const remoteCacheTimeout = 2 * time.Second

// remoteVersionTTL bounds how long a published version marker is
// trusted by other processes before it's treated as stale.
const remoteVersionTTL = 24 * time.Hour

const historyCap = 10

// EventKind names events broadcast to configuration watchers.
type EventKind string

const (
	EventConfigUpdated     EventKind = "config_updated"
	EventConfigRolledBack  EventKind = "config_rolled_back"
)

// Record is one immutable version of a component's configuration.
type Record struct {
	ComponentID string
	Config      map[string]any
	Schema      Schema
	Version     int
	Environment string
	LastUpdated time.Time
	Metadata    map[string]any
}

// Event is broadcast on every config_updated/config_rolled_back transition.
type Event struct {
	Kind   EventKind
	Record Record
}

type entry struct {
	current Record
	history []Record // bounded at historyCap, newest last
}

// Store holds every registered component's configuration, its version
// history, and the template catalog. Internally serialized like every
// other long-lived ICCR component.
type Store struct {
	mu         sync.Mutex
	components map[string]*entry
	templates  map[string]Template
	now        func() time.Time
	watchers   []chan Event

	// remote is an optional cross-process version cache (modeled on
	// internal/infrastructure/cache.Cache/redis.go). When set, every
	// version bump is published there so sibling processes can detect
	// they're holding a stale local copy without a shared database.
	remote cache.Cache

	// locks is an optional distributed lock manager. When set,
	// UpdateConfig/RollbackConfig hold a per-component Redis lock across
	// the merge-validate-commit sequence, so two processes racing to
	// update the same component's configuration serialize instead of
	// silently dropping one writer's change.
	locks *lock.LockManager
}

// New builds an empty configuration Store.
func New() *Store {
	return &Store{
		components: make(map[string]*entry),
		templates:  make(map[string]Template),
		now:        time.Now,
	}
}

// UseRemoteCache attaches a cross-process version cache. Safe to call
// before or after components are registered; it only affects future
// version bumps and staleness checks.
func (s *Store) UseRemoteCache(c cache.Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = c
}

// UseDistributedLock attaches a cross-process lock manager guarding
// per-component configuration updates. Safe to call at any time; it
// only affects future UpdateConfig/RollbackConfig calls.
func (s *Store) UseDistributedLock(lm *lock.LockManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = lm
}

func remoteLockKey(id string) string {
	return "dynconfig:lock:" + id
}

// withComponentLock runs fn while holding id's distributed lock, if a
// lock manager is configured; otherwise it runs fn directly. A failed
// acquisition falls through to running fn unlocked rather than
// blocking a config update indefinitely on a degraded Redis.
func (s *Store) withComponentLock(ctx context.Context, id string, fn func() (Record, error)) (Record, error) {
	s.mu.Lock()
	lm := s.locks
	s.mu.Unlock()
	if lm == nil {
		return fn()
	}

	dl, err := lm.AcquireLock(ctx, remoteLockKey(id))
	if err != nil {
		return fn()
	}
	defer lm.ReleaseLock(ctx, remoteLockKey(id))
	_ = dl
	return fn()
}

func remoteVersionKey(id string) string {
	return "dynconfig:version:" + id
}

// publishVersionRetryPolicy retries a transient remote-cache publish
// failure a couple of times before giving up, so a single dropped
// packet to Redis doesn't understate another process's view of
// staleness. Validation/application failures never reach here.
var publishVersionRetryPolicy = &resilience.RetryPolicy{
	MaxRetries:    2,
	BaseDelay:     20 * time.Millisecond,
	MaxDelay:      200 * time.Millisecond,
	Multiplier:    2.0,
	OperationName: "dynconfig_publish_version",
	Metrics:       pkgmetrics.NewRetryMetrics(),
	// DefaultErrorChecker treats every error as retryable except
	// ErrNonRetryable, a non-temporary DNS error, or one whose
	// Temporary() reports false; a marshal error is retried too.
	ErrorChecker: &resilience.DefaultErrorChecker{},
}

// publishVersionLocked best-effort publishes id's new version to the
// remote cache. Failures are swallowed: the remote cache is a
// staleness hint for other processes, never the source of truth.
func (s *Store) publishVersionLocked(id string, version int) {
	if s.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteCacheTimeout)
	defer cancel()
	_ = resilience.WithRetry(ctx, publishVersionRetryPolicy, func() error {
		return s.remote.Set(ctx, remoteVersionKey(id), version, remoteVersionTTL)
	})
}

// RemoteVersion returns the version another process most recently
// published for id, if a remote cache is configured and has a value.
func (s *Store) RemoteVersion(ctx context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()
	if remote == nil {
		return 0, false, nil
	}
	var version int
	if err := remote.Get(ctx, remoteVersionKey(id), &version); err != nil {
		if cache.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return version, true, nil
}

// IsStale reports whether id's locally held configuration is behind
// the version another process has published to the remote cache. A
// false positive (no remote cache, or a cache miss) never blocks a
// caller: it simply reports "not known to be stale".
func (s *Store) IsStale(ctx context.Context, id string) (bool, error) {
	rec, ok := s.Current(id)
	if !ok {
		return false, core.New(core.KindComponentNotFound, "no configuration registered for %q", id)
	}
	remoteVersion, found, err := s.RemoteVersion(ctx, id)
	if err != nil {
		return false, fmt.Errorf("checking remote config version for %q: %w", id, err)
	}
	if !found {
		return false, nil
	}
	return remoteVersion > rec.Version, nil
}

// Watch subscribes to configuration events.
func (s *Store) Watch() <-chan Event {
	ch := make(chan Event, 32)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) broadcast(ev Event) {
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// RegisterComponentConfig validates config against schema and, on
// success, records version 1.
func (s *Store) RegisterComponentConfig(id string, config map[string]any, schema Schema) (Record, error) {
	start := time.Now()
	full := applyDefaults(config, schema)
	if errs := Validate(full, schema); len(errs) > 0 {
		metrics.ConfigReloadTotal.WithLabelValues("validation_failed").Inc()
		metrics.ConfigReloadErrors.WithLabelValues("validation_failed").Inc()
		return Record{}, validationErrsToErr(id, errs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ComponentID: id,
		Config:      full,
		Schema:      schema,
		Version:     1,
		LastUpdated: s.now(),
	}
	s.components[id] = &entry{current: rec}
	s.publishVersionLocked(id, rec.Version)

	metrics.ConfigReloadTotal.WithLabelValues("success").Inc()
	metrics.ConfigReloadDuration.Observe(time.Since(start).Seconds())
	metrics.ConfigReloadLastSuccess.SetToCurrentTime()
	metrics.ConfigReloadVersion.Set(float64(rec.Version))
	return rec, nil
}

// UpdateConfig merges partial atop id's current configuration,
// re-validates, assigns a new version, and appends to history. When a
// distributed lock manager is attached, the whole merge-validate-commit
// sequence runs under id's cross-process lock.
func (s *Store) UpdateConfig(id string, partial map[string]any) (Record, error) {
	return s.withComponentLock(context.Background(), id, func() (Record, error) {
		return s.updateConfig(id, partial)
	})
}

func (s *Store) updateConfig(id string, partial map[string]any) (Record, error) {
	start := time.Now()
	s.mu.Lock()
	e, ok := s.components[id]
	if !ok {
		s.mu.Unlock()
		return Record{}, core.New(core.KindComponentNotFound, "no configuration registered for %q", id)
	}
	merged := deepMerge(e.current.Config, partial)
	s.mu.Unlock()

	if errs := Validate(merged, e.current.Schema); len(errs) > 0 {
		metrics.ConfigReloadTotal.WithLabelValues("validation_failed").Inc()
		metrics.ConfigReloadErrors.WithLabelValues("validation_failed").Inc()
		return Record{}, validationErrsToErr(id, errs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ComponentID: id,
		Config:      merged,
		Schema:      e.current.Schema,
		Version:     e.current.Version + 1,
		Environment: e.current.Environment,
		LastUpdated: s.now(),
	}
	s.pushVersionLocked(e, rec)
	s.publishVersionLocked(id, rec.Version)
	s.broadcast(Event{Kind: EventConfigUpdated, Record: rec})

	metrics.ConfigReloadTotal.WithLabelValues("success").Inc()
	metrics.ConfigReloadDuration.Observe(time.Since(start).Seconds())
	metrics.ConfigReloadLastSuccess.SetToCurrentTime()
	metrics.ConfigReloadVersion.Set(float64(rec.Version))
	return rec, nil
}

// UpdateConfigValue sets a single, possibly nested (dot-separated)
// key to value and otherwise behaves like UpdateConfig.
func (s *Store) UpdateConfigValue(id, path string, value any) (Record, error) {
	partial := nestedFromPath(path, value)
	return s.UpdateConfig(id, partial)
}

func nestedFromPath(path string, value any) map[string]any {
	parts := strings.Split(path, ".")
	out := map[string]any{}
	cur := out
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			break
		}
		next := map[string]any{}
		cur[p] = next
		cur = next
	}
	return out
}

// deepMerge overlays partial atop base, recursing into nested maps and
// overwriting scalar/list leaves. Neither input is mutated.
func deepMerge(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		if nested, ok := v.(map[string]any); ok {
			if baseNested, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(baseNested, nested)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// RollbackConfig restores version to the current record verbatim, with
// a fresh LastUpdated timestamp, appended as a new version so the
// audit trail is never rewritten. Runs under id's distributed lock when
// one is attached, like UpdateConfig.
func (s *Store) RollbackConfig(id string, version int) (Record, error) {
	return s.withComponentLock(context.Background(), id, func() (Record, error) {
		return s.rollbackConfig(id, version)
	})
}

func (s *Store) rollbackConfig(id string, version int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.components[id]
	if !ok {
		return Record{}, core.New(core.KindComponentNotFound, "no configuration registered for %q", id)
	}
	target, ok := findVersion(e, version)
	if !ok {
		metrics.ConfigReloadErrors.WithLabelValues("rollback_failed").Inc()
		return Record{}, core.New(core.KindVersionNotFound, "version %d not found for %q", version, id)
	}

	rec := target
	rec.Version = e.current.Version + 1
	rec.LastUpdated = s.now()
	s.pushVersionLocked(e, rec)
	s.publishVersionLocked(id, rec.Version)
	s.broadcast(Event{Kind: EventConfigRolledBack, Record: rec})

	metrics.ConfigReloadTotal.WithLabelValues("rolled_back").Inc()
	metrics.ConfigReloadRollbacks.WithLabelValues("manual").Inc()
	metrics.ConfigReloadVersion.Set(float64(rec.Version))
	return rec, nil
}

func findVersion(e *entry, version int) (Record, bool) {
	if e.current.Version == version {
		return e.current, true
	}
	for _, r := range e.history {
		if r.Version == version {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) pushVersionLocked(e *entry, rec Record) {
	e.history = append(e.history, e.current)
	if len(e.history) > historyCap {
		e.history = e.history[len(e.history)-historyCap:]
	}
	e.current = rec
}

// Current returns id's current configuration record.
func (s *Store) Current(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.components[id]
	if !ok {
		return Record{}, false
	}
	return e.current, true
}

// History returns id's bounded version history, oldest first,
// excluding the current record.
func (s *Store) History(id string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.components[id]
	if !ok {
		return nil
	}
	return append([]Record(nil), e.history...)
}

// ExportJSON serializes id's current configuration to JSON.
func (s *Store) ExportJSON(id string) ([]byte, error) {
	rec, ok := s.Current(id)
	if !ok {
		return nil, core.New(core.KindComponentNotFound, "no configuration registered for %q", id)
	}
	return json.MarshalIndent(rec.Config, "", "  ")
}

// ImportReport is the structured result of ImportJSON, listing every
// validation failure found rather than stopping at the first.
type ImportReport struct {
	Valid  bool
	Errors []ValidationError
}

// ImportJSON parses data and validates it against id's current schema,
// returning a full validation report. On success the configuration is
// applied as a new version via UpdateConfig.
func (s *Store) ImportJSON(id string, data []byte) (ImportReport, error) {
	var imported map[string]any
	if err := json.Unmarshal(data, &imported); err != nil {
		return ImportReport{}, core.New(core.KindValidationFailed, "invalid JSON: %v", err)
	}

	s.mu.Lock()
	e, ok := s.components[id]
	s.mu.Unlock()
	if !ok {
		return ImportReport{}, core.New(core.KindComponentNotFound, "no configuration registered for %q", id)
	}

	full := applyDefaults(imported, e.current.Schema)
	if errs := Validate(full, e.current.Schema); len(errs) > 0 {
		return ImportReport{Valid: false, Errors: errs}, nil
	}

	if _, err := s.UpdateConfig(id, imported); err != nil {
		return ImportReport{Valid: false}, err
	}
	return ImportReport{Valid: true}, nil
}
