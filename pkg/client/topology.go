package client

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
	"github.com/nuts-foundation/nuts-monitor/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// CertificateFunc returns the subject of the certificate presented at a NutsComm address.
type CertificateFunc func(ctx context.Context, address string) (string, error)

// TopologyService combines several node calls into a single topology for the browser.
type TopologyService struct {
	client      ports.NodeClient
	certificate CertificateFunc
	logger      *slog.Logger
}

// TopologyOption configures the TopologyService.
type TopologyOption func(*TopologyService)

// WithTopologyLogger sets the logger for enrichment failures.
func WithTopologyLogger(logger *slog.Logger) TopologyOption {
	return func(s *TopologyService) {
		s.logger = logger
	}
}

// WithCertificateFunc replaces the TLS dial used to read peer certificates.
func WithCertificateFunc(fn CertificateFunc) TopologyOption {
	return func(s *TopologyService) {
		s.certificate = fn
	}
}

// NewTopologyService creates a TopologyService on top of a node client.
func NewTopologyService(client ports.NodeClient, opts ...TopologyOption) *TopologyService {
	s := &TopologyService{
		client:      client,
		certificate: DialCertificate,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NetworkTopology returns the connected peers and the peers of those peers.
// The own node is always a vertex, so a standalone node yields a single peer and no edges.
func (s *TopologyService) NetworkTopology(ctx context.Context) (domain.NetworkTopology, error) {
	topology := domain.NetworkTopology{
		Edges: []domain.Edge{},
	}
	diagnostics, err := s.client.Diagnostics(ctx)
	if err != nil {
		return topology, err
	}
	topology.PeerID = diagnostics.Network.Connections.PeerID
	topology.TxCount = diagnostics.Network.State.TransactionCount

	self := topology.AddPeer(topology.PeerID)
	self.TransactionCount = topology.TxCount

	peerDiagnostics, err := s.client.PeerDiagnostics(ctx)
	if err != nil {
		return topology, err
	}

	for id, d := range peerDiagnostics {
		peerID := domain.RealPeerID(id)
		peer := topology.AddPeer(peerID)
		if d.TransactionNum != nil {
			peer.TransactionCount = int(*d.TransactionNum)
		}
		if d.SoftwareVersion != nil {
			peer.SoftwareVersion = *d.SoftwareVersion
		}
		if d.SoftwareID != nil {
			peer.SoftwareID = *d.SoftwareID
		}
		if d.Peers == nil {
			continue
		}
		for _, connected := range *d.Peers {
			otherID := domain.RealPeerID(connected)
			topology.AddEdge(domain.Edge{otherID, peerID})
			topology.AddPeer(otherID)
		}
	}

	for _, cp := range diagnostics.Network.Connections.ConnectedPeers {
		peer := topology.AddPeer(domain.RealPeerID(cp.ID))
		peer.NodeDID = cp.NodeDID
		peer.Address = cp.Address
		peer.Authenticated = cp.Authenticated
	}

	s.enrich(ctx, topology.Peers)

	return topology, nil
}

// enrich adds contact information from the DID document and the certificate CN to authenticated peers.
// Failures are logged and leave the peer as is.
func (s *TopologyService) enrich(ctx context.Context, peers []domain.Peer) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i := range peers {
		peer := &peers[i]
		if !peer.Authenticated || peer.NodeDID == nil {
			continue
		}
		g.Go(func() error {
			result, err := s.client.DIDDocument(ctx, *peer.NodeDID)
			if err != nil {
				s.logger.Error("Failed to retrieve DID document", "did", *peer.NodeDID, "error", err)
				return nil
			}
			info := result.Document.ContactInfo()
			peer.ContactName = info.Name
			peer.ContactEmail = info.Email
			peer.ContactWeb = info.Web
			peer.ContactPhone = info.Phone

			address, err := result.Document.NutsCommAddress()
			if err != nil {
				s.logger.Warn("No NutsComm address", "did", *peer.NodeDID, "error", err)
				return nil
			}
			cn, err := s.certificate(ctx, address)
			if err != nil {
				s.logger.Error("Failed to read peer certificate", "address", address, "error", err)
				return nil
			}
			peer.CN = cn
			return nil
		})
	}
	_ = g.Wait()
}

// DialCertificate opens a TLS connection and returns the subject of the leaf certificate.
// The certificate is not verified; it is only displayed.
func DialCertificate(ctx context.Context, address string) (string, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 5 * time.Second},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return "", nil
	}
	return certs[0].Subject.String(), nil
}
