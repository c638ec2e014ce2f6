package domain

// Health status values reported by the node and by the monitor itself.
const (
	StatusUp      = "UP"
	StatusDown    = "DOWN"
	StatusUnknown = "UNKNOWN"
)

// Diagnostics is the node's /status/diagnostics document.
type Diagnostics struct {
	Status  StatusDiagnostics  `json:"status"`
	Network NetworkDiagnostics `json:"network"`
	VDR     VDRDiagnostics     `json:"vdr"`
}

type StatusDiagnostics struct {
	Uptime          string `json:"uptime,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty"`
	GitCommit       string `json:"git_commit,omitempty"`
	OSArch          string `json:"os_arch,omitempty"`
}

type NetworkDiagnostics struct {
	Connections ConnectionsDiagnostics `json:"connections"`
	State       StateDiagnostics       `json:"state"`
}

type ConnectionsDiagnostics struct {
	ConnectedPeers      []ConnectedPeer `json:"connected_peers"`
	ConnectedPeersCount int             `json:"connected_peers_count"`
	PeerID              string          `json:"peer_id"`
}

// ConnectedPeer is a peer the node holds a connection with.
type ConnectedPeer struct {
	ID            string  `json:"id"`
	Address       string  `json:"address"`
	NodeDID       *string `json:"nodedid,omitempty"`
	Authenticated bool    `json:"authenticated"`
}

type StateDiagnostics struct {
	TransactionCount int `json:"transaction_count"`
	DAGLamportClock  int `json:"dag_lc_high,omitempty"`
}

type VDRDiagnostics struct {
	DocumentsCount           int `json:"did_documents_count"`
	ConflictedDocumentsCount int `json:"conflicted_did_documents_count,omitempty"`
}

// Health is the result of a health check, of the node or of the monitor.
type Health struct {
	Status  string                       `json:"status"`
	Details map[string]HealthCheckResult `json:"details,omitempty"`
}

type HealthCheckResult struct {
	Status  string `json:"status"`
	Details any    `json:"details,omitempty"`
}

// Up reports whether the health status is UP.
func (h Health) Up() bool {
	return h.Status == StatusUp
}

// PeerDiagnostics is what a peer shares about itself over the network.
type PeerDiagnostics struct {
	Address         *string   `json:"address,omitempty"`
	Certificate     *string   `json:"certificate,omitempty"`
	NodeDID         *string   `json:"nodeDID,omitempty"`
	Peers           *[]string `json:"peers,omitempty"`
	SoftwareID      *string   `json:"softwareID,omitempty"`
	SoftwareVersion *string   `json:"softwareVersion,omitempty"`
	TransactionNum  *float32  `json:"transactionNum,omitempty"`
	Uptime          *float32  `json:"uptime,omitempty"`
}
