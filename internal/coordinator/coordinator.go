// Package coordinator multiplexes observer keys onto per-group schedulers.
//
// Every distinct key gets one channel, reference counted by its observers.
// Keys resolve to a group; the first channel of a group creates and starts
// the group's scheduler and the last one to go stops it. Fetch results are
// published per group and each key receives only the values whose entity id
// it asked for.
package coordinator

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("coordinator closed")

// Key is an observer key. EntityIDs returning nothing means the key wants
// every value of its group.
type Key[G comparable] interface {
	comparable
	Group() G
	EntityIDs() []string
}

type Entity interface {
	EntityID() string
}

// Scheduler is the per-group poll loop the coordinator owns.
type Scheduler interface {
	Start()
	AutoSchedule()
	ForceSchedule()
	Stop()
}

// SchedulerFactory builds the scheduler of a group. It is called with the
// coordinator lock held and must not call back into the coordinator.
type SchedulerFactory[G comparable] func(group G) Scheduler

type Config struct {
	// Buffer is the per-observer channel capacity.
	Buffer int
	// FailureRetention is how long a permanently failed key short-circuits
	// new subscriptions with its error.
	FailureRetention time.Duration
	Clock            clockwork.Clock
	Logger           *slog.Logger
}

type channel[V Entity] struct {
	subs map[string]*Subscription[V]
}

type group[K comparable, V Entity] struct {
	sched Scheduler
	keys  map[K]*channel[V]
}

type failure struct {
	err error
	at  time.Time
}

// Stats is a snapshot of the coordinator's maps.
type Stats struct {
	Channels  int `json:"channels"`
	Groups    int `json:"groups"`
	Observers int `json:"observers"`
}

type Coordinator[K Key[G], G comparable, V Entity] struct {
	newScheduler SchedulerFactory[G]
	cfg          Config
	clock        clockwork.Clock
	logger       *slog.Logger

	mu       sync.Mutex
	channels map[K]*channel[V]
	groups   map[G]*group[K, V]
	failed   map[K]failure
	closed   bool
}

func New[K Key[G], G comparable, V Entity](factory SchedulerFactory[G], cfg Config) *Coordinator[K, G, V] {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator[K, G, V]{
		newScheduler: factory,
		cfg:          cfg,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		channels:     make(map[K]*channel[V]),
		groups:       make(map[G]*group[K, V]),
		failed:       make(map[K]failure),
	}
}

// Subscribe attaches a new observer to k. The group's scheduler is created
// on first use, and forced when k asks for an entity no active key covers.
// A key that failed permanently within FailureRetention gets a subscription
// that carries only the remembered error.
func (c *Coordinator[K, G, V]) Subscribe(k K) (*Subscription[V], error) {
	id := uuid.NewString()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	if f, ok := c.failed[k]; ok {
		if c.clock.Since(f.at) < c.cfg.FailureRetention {
			sub := newSubscription[V](id, 1, func() {})
			sub.terminate(f.err)
			c.mu.Unlock()
			return sub, nil
		}
		delete(c.failed, k)
	}

	gk := k.Group()
	g, exists := c.groups[gk]
	force := exists && c.introducesLocked(g, k)
	if !exists {
		g = &group[K, V]{keys: make(map[K]*channel[V])}
		c.groups[gk] = g
	}

	ch, ok := c.channels[k]
	if !ok {
		ch = &channel[V]{subs: make(map[string]*Subscription[V])}
		c.channels[k] = ch
		g.keys[k] = ch
	}
	sub := newSubscription[V](id, c.cfg.Buffer, func() { c.unsubscribe(k, id) })
	ch.subs[id] = sub

	if !exists {
		g.sched = c.newScheduler(gk)
	}
	sched := g.sched
	c.mu.Unlock()

	switch {
	case !exists:
		c.logger.Debug("group started", "group", gk)
		sched.Start()
	case force:
		c.logger.Debug("new entity joined group", "group", gk, "key", k)
		sched.ForceSchedule()
	}
	return sub, nil
}

// introducesLocked reports whether k names an entity id not covered by any
// active key of g.
func (c *Coordinator[K, G, V]) introducesLocked(g *group[K, V], k K) bool {
	ids := k.EntityIDs()
	if len(ids) == 0 {
		return false
	}
	if _, ok := g.keys[k]; ok {
		return false
	}
	covered := make(map[string]struct{})
	for other := range g.keys {
		for _, id := range other.EntityIDs() {
			covered[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := covered[id]; !ok {
			return true
		}
	}
	return false
}

func (c *Coordinator[K, G, V]) unsubscribe(k K, id string) {
	c.mu.Lock()
	ch, ok := c.channels[k]
	if !ok {
		c.mu.Unlock()
		return
	}
	sub, ok := ch.subs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(ch.subs, id)
	sub.terminate(nil)

	var stop Scheduler
	if len(ch.subs) == 0 {
		delete(c.channels, k)
		gk := k.Group()
		if g, ok := c.groups[gk]; ok {
			delete(g.keys, k)
			if len(g.keys) == 0 {
				delete(c.groups, gk)
				stop = g.sched
			}
		}
	}
	c.mu.Unlock()

	if stop != nil {
		c.logger.Debug("group stopped", "group", k.Group())
		stop.Stop()
	}
}

// Publish delivers values to every key of group, each key receiving only the
// values whose entity id it names. Receivers must not modify the slice.
func (c *Coordinator[K, G, V]) Publish(gk G, values []V) {
	if len(values) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[gk]
	if !ok {
		return
	}
	for k, ch := range g.keys {
		slice := filter(values, k.EntityIDs())
		if len(slice) == 0 {
			continue
		}
		for _, sub := range ch.subs {
			sub.offer(Update[V]{Values: slice})
		}
	}
}

func filter[V Entity](values []V, ids []string) []V {
	if len(ids) == 0 {
		return slices.Clone(values)
	}
	var out []V
	for _, v := range values {
		if slices.Contains(ids, v.EntityID()) {
			out = append(out, v)
		}
	}
	return out
}

// Fail ends every channel of group with err, remembers err per key and tears
// the group down.
func (c *Coordinator[K, G, V]) Fail(gk G, err error) {
	c.failWhere(gk, err, func(K) bool { return true })
}

// FailEntities ends the channels of group whose key names any of ids and
// remembers err for those keys. Other keys keep their channels; the group's
// scheduler is stopped only when no channel is left.
func (c *Coordinator[K, G, V]) FailEntities(gk G, ids []string, err error) {
	if len(ids) == 0 {
		return
	}
	c.failWhere(gk, err, func(k K) bool {
		return slices.ContainsFunc(k.EntityIDs(), func(id string) bool {
			return slices.Contains(ids, id)
		})
	})
}

func (c *Coordinator[K, G, V]) failWhere(gk G, err error, match func(K) bool) {
	c.mu.Lock()
	g, ok := c.groups[gk]
	if !ok {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	var failed []K
	for k, ch := range g.keys {
		if !match(k) {
			continue
		}
		c.failed[k] = failure{err: err, at: now}
		for _, sub := range ch.subs {
			sub.terminate(err)
		}
		delete(c.channels, k)
		delete(g.keys, k)
		failed = append(failed, k)
	}
	var stop Scheduler
	if len(g.keys) == 0 {
		delete(c.groups, gk)
		stop = g.sched
	}
	c.mu.Unlock()

	if len(failed) > 0 {
		c.logger.Warn("keys failed permanently", "group", gk, "keys", len(failed), "err", err)
	}
	if stop != nil {
		stop.Stop()
	}
}

// EntityIDs returns the sorted union of the ids active keys of group ask for.
func (c *Coordinator[K, G, V]) EntityIDs(gk G) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[gk]
	if !ok {
		return nil
	}
	set := make(map[string]struct{})
	for k := range g.keys {
		for _, id := range k.EntityIDs() {
			set[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Groups returns the groups that currently own a scheduler.
func (c *Coordinator[K, G, V]) Groups() []G {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Collect(maps.Keys(c.groups))
}

// ForceRefresh forces the scheduler of group and reports whether it exists.
func (c *Coordinator[K, G, V]) ForceRefresh(gk G) bool {
	c.mu.Lock()
	g, ok := c.groups[gk]
	c.mu.Unlock()
	if !ok {
		return false
	}
	g.sched.ForceSchedule()
	return true
}

func (c *Coordinator[K, G, V]) RefreshAll() {
	for _, s := range c.schedulers() {
		s.ForceSchedule()
	}
}

// AutoScheduleAll recomputes every group's next fire, e.g. after the network
// came back.
func (c *Coordinator[K, G, V]) AutoScheduleAll() {
	for _, s := range c.schedulers() {
		s.AutoSchedule()
	}
}

func (c *Coordinator[K, G, V]) schedulers() []Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Scheduler, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g.sched)
	}
	return out
}

func (c *Coordinator[K, G, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Channels: len(c.channels), Groups: len(c.groups)}
	for _, ch := range c.channels {
		st.Observers += len(ch.subs)
	}
	return st
}

// Close ends all subscriptions and stops all schedulers. Subscribe fails
// afterwards.
func (c *Coordinator[K, G, V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var stop []Scheduler
	for _, g := range c.groups {
		stop = append(stop, g.sched)
		for _, ch := range g.keys {
			for _, sub := range ch.subs {
				sub.terminate(nil)
			}
		}
	}
	clear(c.groups)
	clear(c.channels)
	c.mu.Unlock()

	for _, s := range stop {
		s.Stop()
	}
}
