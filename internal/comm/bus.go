package comm

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/packetflow/iccr/internal/capability"
	"github.com/packetflow/iccr/internal/core"
	"github.com/packetflow/iccr/internal/infrastructure/cache"
	"github.com/packetflow/iccr/internal/plugin"
	"github.com/packetflow/iccr/internal/registry"
)

// pendingSetKey names the remote-cache SET tracking every outstanding
// request's id, so a restarted process can enumerate what it lost.
const pendingSetKey = "comm:bus:pending"

// remoteCacheTimeout bounds every best-effort remote-cache call a
// SendRequest/reply/timeout makes, so a slow or unreachable Redis never
// blocks message delivery.
const remoteCacheTimeout = 2 * time.Second

// PendingMarker is what SendRequest publishes to the remote cache for
// the lifetime of one outstanding request, and what RecoverPending
// reads back after a process restart.
type PendingMarker struct {
	ID       string
	From     string
	To       string
	Type     string
	Deadline time.Time
}

// RouteStrategy selects how Route picks among several eligible targets.
type RouteStrategy string

const (
	RouteRoundRobin     RouteStrategy = "round_robin"
	RouteLoadBalanced   RouteStrategy = "load_balanced"
	RouteCapabilityAware RouteStrategy = "capability_aware"
	RouteByHealth       RouteStrategy = "route_by_health"
)

type pendingRequest struct {
	reply chan Message
	done  bool
}

// Bus is the component-to-component message bus: validated delivery,
// synchronous request/reply with timeout, broadcast, subscriptions,
// routing, and running-average latency stats. Serialized internally
// like every other long-lived ICCR component (mu guards all state).
type Bus struct {
	mu sync.Mutex

	reg   *registry.Registry
	graph *capability.Graph

	deliver map[string]func(Message) error // target id -> inbound handler

	pending map[string]*pendingRequest

	subs map[string][]string // from id -> list of subscriber ids

	advertised map[string][]capability.Capability // id -> capabilities it advertises, for capability_aware routing

	transforms *plugin.Registry

	avgLatencyMS float64
	completed    int64

	// remote is an optional cross-process pending-request cache
	// (modeled on internal/infrastructure/cache/redis.go). It doesn't
	// make an in-flight channel survive a restart -- nothing can -- but
	// it lets RecoverPending tell an operator, or a retry loop, which
	// requests were outstanding when the process died.
	remote cache.Cache
}

// New builds a Bus routed over reg for target discovery/health and
// graph for capability-aware routing.
func New(reg *registry.Registry, graph *capability.Graph) *Bus {
	return &Bus{
		reg:        reg,
		graph:      graph,
		deliver:    make(map[string]func(Message) error),
		pending:    make(map[string]*pendingRequest),
		subs:       make(map[string][]string),
		advertised: make(map[string][]capability.Capability),
		transforms: plugin.NewRegistry(),
	}
}

// UseRemoteCache attaches a cross-process pending-request cache.
func (b *Bus) UseRemoteCache(c cache.Cache) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remote = c
}

// AdvertiseCapabilities records the capabilities id advertises, consulted
// by the capability_aware routing strategy.
func (b *Bus) AdvertiseCapabilities(id string, caps []capability.Capability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advertised[id] = caps
}

// RegisterTransform adds a protocol-transformation plugin run over
// every outbound message before delivery, if one is registered.
func (b *Bus) RegisterTransform(p plugin.Plugin) error {
	return b.transforms.Register(p)
}

// RegisterTarget binds an inbound handler for a component id so it can
// receive delivered messages.
func (b *Bus) RegisterTarget(id string, handler func(Message) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliver[id] = handler
}

// SendMessage validates m, verifies the target exists, runs any
// registered protocol transformation, and delivers it. If m carries a
// pending request's correlation id in metadata.request_id (and is not
// that request itself), the message is handed to the waiting
// SendRequest instead of to the target's inbound handler.
func (b *Bus) SendMessage(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	handler, ok := b.deliver[m.To]
	b.mu.Unlock()
	if !ok {
		return core.New(core.KindTargetNotFound, "target %q not found", m.To)
	}

	transformed, err := b.applyTransform(m)
	if err != nil {
		return err
	}

	if reqID, ok := requestID(transformed); ok && reqID != transformed.ID {
		if b.reply(reqID, transformed) {
			return nil
		}
	}

	return handler(transformed)
}

func (b *Bus) applyTransform(m Message) (Message, error) {
	pipeline := b.transforms.Pipeline(plugin.FamilyWeb)
	if len(pipeline) == 0 {
		return m, nil
	}
	out, err := plugin.Run(pipeline, &m)
	if err != nil {
		return Message{}, core.New(core.KindValidationFailed, "protocol transform: %v", err)
	}
	return *out.(*Message), nil
}

// SendRequest sends m and blocks until a matching reply arrives
// (correlated via metadata.request_id == m.ID) or timeout elapses, in
// which case it returns core.KindTimeout and purges the pending entry.
func (b *Bus) SendRequest(m Message, timeout time.Duration) (Message, error) {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	m.Metadata["request_id"] = m.ID

	pr := &pendingRequest{reply: make(chan Message, 1)}
	b.mu.Lock()
	b.pending[m.ID] = pr
	b.mu.Unlock()

	deadline := time.Now().Add(timeout)
	b.publishPending(PendingMarker{ID: m.ID, From: m.From, To: m.To, Type: m.Type, Deadline: deadline})

	start := time.Now()
	if err := b.SendMessage(m); err != nil {
		b.mu.Lock()
		delete(b.pending, m.ID)
		b.mu.Unlock()
		b.clearPending(m.ID)
		return Message{}, err
	}

	select {
	case reply := <-pr.reply:
		b.recordLatency(time.Since(start))
		b.clearPending(m.ID)
		return reply, nil
	case <-time.After(timeout):
		b.mu.Lock()
		delete(b.pending, m.ID)
		b.mu.Unlock()
		b.clearPending(m.ID)
		return Message{}, core.New(core.KindTimeout, "request %q timed out after %s", m.ID, timeout)
	}
}

// publishPending best-effort publishes marker to the remote cache, if
// configured. Failures are swallowed: the remote record is a recovery
// aid, never the source of truth for whether the request is pending.
func (b *Bus) publishPending(marker PendingMarker) {
	b.mu.Lock()
	remote := b.remote
	b.mu.Unlock()
	if remote == nil {
		return
	}
	ttl := time.Until(marker.Deadline)
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteCacheTimeout)
	defer cancel()
	_ = remote.Set(ctx, pendingKey(marker.ID), marker, ttl)
	_ = remote.SAdd(ctx, pendingSetKey, marker.ID)
}

func (b *Bus) clearPending(id string) {
	b.mu.Lock()
	remote := b.remote
	b.mu.Unlock()
	if remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteCacheTimeout)
	defer cancel()
	_ = remote.Delete(ctx, pendingKey(id))
	_ = remote.SRem(ctx, pendingSetKey, id)
}

func pendingKey(id string) string {
	return "comm:bus:pending:" + id
}

// RecoverPending lists every request marker still tracked in the
// remote cache -- the requests that were outstanding, from this or any
// sibling process, when whoever published them stopped running. Expired
// markers (the cache entry aged out past its deadline) are reconciled
// out of the tracking set as they're found.
func (b *Bus) RecoverPending(ctx context.Context) ([]PendingMarker, error) {
	b.mu.Lock()
	remote := b.remote
	b.mu.Unlock()
	if remote == nil {
		return nil, nil
	}

	ids, err := remote.SMembers(ctx, pendingSetKey)
	if err != nil {
		return nil, err
	}

	var markers []PendingMarker
	for _, id := range ids {
		var marker PendingMarker
		if err := remote.Get(ctx, pendingKey(id), &marker); err != nil {
			if cache.IsNotFound(err) {
				_ = remote.SRem(ctx, pendingSetKey, id)
				continue
			}
			return markers, err
		}
		markers = append(markers, marker)
	}
	return markers, nil
}

// reply delivers m to the pending request identified by reqID, if
// still outstanding, and reports whether it did.
func (b *Bus) reply(reqID string, m Message) bool {
	b.mu.Lock()
	pr, ok := b.pending[reqID]
	if ok {
		delete(b.pending, reqID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	pr.reply <- m
	return true
}

func (b *Bus) recordLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ms := float64(d.Milliseconds())
	b.completed++
	if b.completed == 1 {
		b.avgLatencyMS = ms
		return
	}
	b.avgLatencyMS += (ms - b.avgLatencyMS) / float64(b.completed)
}

// AvgLatencyMS returns the running-average completed-request latency.
func (b *Bus) AvgLatencyMS() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avgLatencyMS
}

// BroadcastMessage delivers payload to every target, returning the
// count of failed deliveries as a core.KindPartialFailure error when
// nonzero, nil otherwise.
func (b *Bus) BroadcastMessage(from, typ string, payload map[string]any, targets []string) error {
	failed := 0
	for _, target := range targets {
		m := NewMessage(from, target, typ, payload)
		if err := b.SendMessage(m); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return core.WithPayload(core.KindPartialFailure, failed, "%d of %d deliveries failed", failed, len(targets))
	}
	return nil
}

// Subscribe records that subscriber wants to receive messages sent by
// from; the bus's notifier forwards matching traffic via Notify.
func (b *Bus) Subscribe(from, subscriber string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[from] {
		if s == subscriber {
			return
		}
	}
	b.subs[from] = append(b.subs[from], subscriber)
}

// Notify forwards m, sent by from, to every subscriber of from.
func (b *Bus) Notify(from string, m Message) {
	b.mu.Lock()
	subs := append([]string(nil), b.subs[from]...)
	b.mu.Unlock()
	for _, s := range subs {
		forwarded := m
		forwarded.To = s
		_ = b.SendMessage(forwarded)
	}
}

// Route picks a target among the registry's live components under
// strategy, given the message's required capabilities (consulted only
// by capability_aware).
func (b *Bus) Route(msgID string, required []capability.Capability, strategy RouteStrategy) (string, error) {
	candidates := b.reg.List()
	if len(candidates) == 0 {
		return "", core.New(core.KindNoComponentsWithCapability, "no components registered")
	}

	switch strategy {
	case RouteRoundRobin:
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
		idx := hashString(msgID) % uint64(len(candidates))
		return candidates[idx].ID, nil

	case RouteLoadBalanced:
		return pickMinLoad(candidates)

	case RouteCapabilityAware:
		b.mu.Lock()
		advertised := make(map[string][]capability.Capability, len(b.advertised))
		for k, v := range b.advertised {
			advertised[k] = v
		}
		b.mu.Unlock()

		var eligible []registry.Info
		for _, c := range candidates {
			if advertisesAll(b.graph, advertised[c.ID], required) {
				eligible = append(eligible, c)
			}
		}
		if len(eligible) == 0 {
			return "", core.New(core.KindNoComponentsWithCapability, "no component advertises required capabilities")
		}
		return pickMinLoad(eligible)

	case RouteByHealth:
		var healthy []registry.Info
		for _, c := range candidates {
			if c.Health == registry.Healthy || c.Health == registry.Degraded {
				healthy = append(healthy, c)
			}
		}
		if len(healthy) == 0 {
			return "", core.New(core.KindNoHealthyComponents, "no healthy or degraded components")
		}
		return pickMinLoad(healthy)

	default:
		return "", core.New(core.KindValidationFailed, "unknown routing strategy %q", strategy)
	}
}

func pickMinLoad(candidates []registry.Info) (string, error) {
	if len(candidates) == 0 {
		return "", core.New(core.KindNoComponentsWithCapability, "no candidates")
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LoadFactor != candidates[j].LoadFactor {
			return candidates[i].LoadFactor < candidates[j].LoadFactor
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0].ID, nil
}

func advertisesAll(graph *capability.Graph, advertised, required []capability.Capability) bool {
	for _, req := range required {
		ok := false
		for _, have := range advertised {
			if graph.Implies(have, req) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
