package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrAlreadyRegistered = errors.New("connection already registered")

// TeardownFunc observes a connection leaving the registry. It runs after the
// registry lock is released.
type TeardownFunc func(identity domain.IdentityCode, conn core.Conn)

type connEntry struct {
	identity domain.IdentityCode
	conn     core.Conn
}

// Registry maps identities to their live connections.
type Registry struct {
	mu         sync.RWMutex
	conns      map[core.ConnID]connEntry
	byIdentity map[domain.IdentityCode]map[core.ConnID]core.Conn

	hooksMu sync.RWMutex
	hooks   []TeardownFunc

	policy  Policy
	metrics *observability.Metrics
}

func NewRegistry(policy Policy, metrics *observability.Metrics) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		conns:      make(map[core.ConnID]connEntry),
		byIdentity: make(map[domain.IdentityCode]map[core.ConnID]core.Conn),
		policy:     policy,
		metrics:    metrics,
	}
}

// OnTeardown adds a hook called once per unregistered connection.
func (r *Registry) OnTeardown(fn TeardownFunc) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Registry) Register(identity domain.IdentityCode, conn core.Conn) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", domain.ErrUnauthenticated)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[conn.ID()]; ok {
		return ErrAlreadyRegistered
	}
	r.conns[conn.ID()] = connEntry{identity: identity, conn: conn}
	set, ok := r.byIdentity[identity]
	if !ok {
		set = make(map[core.ConnID]core.Conn)
		r.byIdentity[identity] = set
	}
	set[conn.ID()] = conn
	r.metrics.ConnOpened()
	log.Info().Str("module", "app.registry").Str("conn", string(conn.ID())).Str("user", string(identity)).Int("conns", len(set)).Msg("registered")
	return nil
}

// Unregister is idempotent; it reports whether id was registered.
func (r *Registry) Unregister(id core.ConnID) bool {
	r.mu.Lock()
	e, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
		if set := r.byIdentity[e.identity]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byIdentity, e.identity)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.metrics.ConnClosed()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(e.identity)).Msg("unregistered")

	r.hooksMu.RLock()
	hooks := append([]TeardownFunc(nil), r.hooks...)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(e.identity, e.conn)
	}
	return true
}

// Kick unregisters and closes conn.
func (r *Registry) Kick(conn core.Conn) {
	if r.Unregister(conn.ID()) {
		r.metrics.Kicked()
		log.Warn().Str("module", "app.registry").Str("conn", string(conn.ID())).Msg("kicked")
	}
	conn.Close()
}

func (r *Registry) Lookup(id core.ConnID) (domain.IdentityCode, core.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	return e.identity, e.conn, ok
}

func (r *Registry) ConnectionCount(identity domain.IdentityCode) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity])
}

func (r *Registry) ConnectionsOf(identity domain.IdentityCode) []core.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byIdentity[identity]
	out := make([]core.Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SendToIdentity delivers ev to every connection of identity. No connection
// means nothing is sent and nothing is queued.
func (r *Registry) SendToIdentity(identity domain.IdentityCode, ev core.Event) core.PublishResult {
	return r.Deliver(r.ConnectionsOf(identity), ev)
}

// Deliver encodes ev once and offers it to each conn without blocking.
// Refusing connections are handled by the policy after the fanout.
func (r *Registry) Deliver(conns []core.Conn, ev core.Event) core.PublishResult {
	res := core.PublishResult{}
	if len(conns) == 0 {
		return res
	}
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("event", ev.EventName()).Msg("encode failed")
		return res
	}
	var errs []error
	for _, c := range conns {
		if err := c.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, c)
			errs = append(errs, err)
			continue
		}
		res.SendTo++
	}
	r.metrics.Published(ev.EventName(), res.SendTo, len(res.Dropped))
	for i, c := range res.Dropped {
		switch r.policy.OnBackPressure(c, errs[i]) {
		case KickMember:
			r.Kick(c)
		case DropFrame:
			log.Debug().Str("module", "app.registry").Str("conn", string(c.ID())).Str("event", ev.EventName()).Msg("frame dropped")
		}
	}
	return res
}

// CloseAll kicks every live connection.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]core.Conn, 0, len(r.conns))
	for _, e := range r.conns {
		all = append(all, e.conn)
	}
	r.mu.RUnlock()
	for _, c := range all {
		if r.Unregister(c.ID()) {
			c.Close()
		}
	}
}
