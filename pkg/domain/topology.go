package domain

import "strings"

// NetworkTopology holds the peers as vertices and the connections between them as edges.
type NetworkTopology struct {
	Edges   []Edge `json:"edges"`
	PeerID  string `json:"peerID"`
	Peers   []Peer `json:"peers"`
	TxCount int    `json:"tx_count"`
}

// Peer combines peer diagnostics with information from the peer's DID document.
type Peer struct {
	PeerID           string  `json:"peer_id"`
	NodeDID          *string `json:"node_did,omitempty"`
	Address          string  `json:"address"`
	Authenticated    bool    `json:"authenticated"`
	CN               string  `json:"cn"`
	TransactionCount int     `json:"tx_count"`
	ContactName      string  `json:"contact_name"`
	ContactPhone     string  `json:"contact_phone"`
	ContactWeb       string  `json:"contact_web"`
	ContactEmail     string  `json:"contact_email"`
	SoftwareVersion  string  `json:"software_version"`
	SoftwareID       string  `json:"software_id"`
}

// Edge is an undirected connection between two peers.
type Edge [2]string

// Equals reports whether both edges connect the same peers, in either direction.
func (e Edge) Equals(other Edge) bool {
	return (e[0] == other[0] && e[1] == other[1]) ||
		(e[0] == other[1] && e[1] == other[0])
}

// RealPeerID strips the -bootstrap suffix peers use on bootstrap connections.
func RealPeerID(peerID string) string {
	id, _, _ := strings.Cut(peerID, "-bootstrap")
	return id
}

// Peer returns the peer with the given ID.
func (t *NetworkTopology) Peer(peerID string) (*Peer, bool) {
	for i := range t.Peers {
		if t.Peers[i].PeerID == peerID {
			return &t.Peers[i], true
		}
	}
	return nil, false
}

// AddPeer adds a peer unless it is already known and returns the stored peer.
func (t *NetworkTopology) AddPeer(peerID string) *Peer {
	if p, ok := t.Peer(peerID); ok {
		return p
	}
	t.Peers = append(t.Peers, Peer{PeerID: peerID})
	return &t.Peers[len(t.Peers)-1]
}

// AddEdge adds an edge unless the same connection is already present.
func (t *NetworkTopology) AddEdge(e Edge) bool {
	for _, existing := range t.Edges {
		if existing.Equals(e) {
			return false
		}
	}
	t.Edges = append(t.Edges, e)
	return true
}
