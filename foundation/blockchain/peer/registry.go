package peer

import (
	"sync"
)

// EventHandler defines a function that is called when events
// occur in the processing of peers.
type EventHandler func(v string, args ...any)

// Storer interface represents the behavior required to persist the
// set of known peers.
type Storer interface {
	SavePeers(hosts []string) error
}

// Announcer interface represents the behavior required to tell the known
// peers about a newly registered peer. Implementations must not block.
type Announcer interface {
	AnnouncePeer(newPeer Peer, to []Peer)
}

// RegistryConfig represents the configuration required to construct
// a peer registry.
type RegistryConfig struct {
	Self      Identity
	Known     []string
	Storer    Storer
	Announcer Announcer
	EvHandler EventHandler
}

// Registry manages the set of known peers for this node. The node's own
// identity is resolved once and never admitted into the set.
type Registry struct {
	self      Identity
	set       *PeerSet
	storer    Storer
	announcer Announcer
	evHandler EventHandler

	persistMu sync.Mutex
}

// NewRegistry constructs a registry seeded with the known peers. Seeding
// does not persist or announce anything.
func NewRegistry(cfg RegistryConfig) *Registry {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	r := Registry{
		self:      cfg.Self,
		set:       NewPeerSet(),
		storer:    cfg.Storer,
		announcer: cfg.Announcer,
		evHandler: ev,
	}

	for _, host := range cfg.Known {
		p := New(host)
		if p.Host == "" || r.self.Matches(p.Host) {
			continue
		}
		r.set.Add(p)
	}

	return &r
}

// Self returns the identity of this node.
func (r *Registry) Self() Identity {
	return r.self
}

// Register adds the endpoint to the set of known peers. It returns false
// when the endpoint is this node or is already known. A new peer causes the
// set to be persisted and the peer to be announced to every other known peer.
func (r *Registry) Register(endpoint string) bool {
	p := New(endpoint)
	if p.Host == "" {
		return false
	}

	if r.self.Matches(p.Host) {
		r.evHandler("peer: Register: ignored self peer[%s]", p.Host)
		return false
	}

	if !r.set.Add(p) {
		return false
	}

	r.evHandler("peer: Register: registered peer[%s]: known[%d]", p.Host, r.set.Len())

	r.persist()

	if r.announcer != nil {
		if others := r.set.Copy(p.Host); len(others) > 0 {
			r.announcer.AnnouncePeer(p, others)
		}
	}

	return true
}

// List returns a snapshot of the known peers.
func (r *Registry) List() []Peer {
	return r.set.Copy("")
}

// persist writes the current set. Writes are serialized so an older copy
// never lands after a newer one.
func (r *Registry) persist() {
	if r.storer == nil {
		return
	}

	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	if err := r.storer.SavePeers(Hosts(r.set.Copy(""))); err != nil {
		r.evHandler("peer: persist: WARNING: %s", err)
	}
}
