// Package peer maintains the peer related information such as the set
// of known peers and the identity of this node.
package peer

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Peer represents information about a Node in the network. Host is the base
// endpoint of the node, for example http://1.2.3.4:8080.
type Peer struct {
	Host string
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: strings.TrimSpace(host),
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// URL joins the peer's base endpoint with the specified path.
func (p Peer) URL(path string) string {
	return strings.TrimSuffix(p.Host, "/") + path
}

// =============================================================================

// Identity represents the network identity of this node. An empty Port
// matches any port on Host.
type Identity struct {
	Host string
	Port string
}

// Matches compares the endpoint's resolved host and port against the
// identity by equality.
func (id Identity) Matches(endpoint string) bool {
	host, port, ok := splitEndpoint(endpoint)
	if !ok {
		return false
	}

	if host != id.Host {
		return false
	}

	return id.Port == "" || id.Port == port
}

// String implements the Stringer interface.
func (id Identity) String() string {
	if id.Port == "" {
		return id.Host
	}
	return id.Host + ":" + id.Port
}

// splitEndpoint parses an endpoint with or without a scheme.
func splitEndpoint(endpoint string) (host string, port string, ok bool) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", "", false
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "", "", false
	}

	return u.Hostname(), u.Port(), true
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers, excluding the specified host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	// Stable output for persistence and responses.
	sort.Slice(peers, func(i, j int) bool { return peers[i].Host < peers[j].Host })

	return peers
}

// Hosts returns the host of every peer in the list.
func Hosts(peers []Peer) []string {
	hosts := make([]string, len(peers))
	for i, peer := range peers {
		hosts[i] = peer.Host
	}
	return hosts
}
