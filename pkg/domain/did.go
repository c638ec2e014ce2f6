package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Service types the monitor reads from DID documents.
const (
	ServiceTypeContactInfo = "node-contact-info"
	ServiceTypeNutsComm    = "NutsComm"
)

// DIDResolutionResult is returned by the node's VDR when resolving a DID.
type DIDResolutionResult struct {
	Document         DIDDocument    `json:"document"`
	DocumentMetadata map[string]any `json:"documentMetadata,omitempty"`
}

// DIDDocument holds the parts of a DID document the monitor uses.
type DIDDocument struct {
	ID         string      `json:"id"`
	Controller Controllers `json:"controller,omitempty"`
	Service    []Service   `json:"service,omitempty"`
}

// Controllers accepts both a single DID and a list of DIDs.
type Controllers []string

func (c *Controllers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*c = Controllers{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	*c = list
	return nil
}

type Service struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ServiceEndpoint json.RawMessage `json:"serviceEndpoint"`
}

// NodeContactInfo is the endpoint of a node-contact-info service.
type NodeContactInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Web   string `json:"url"`
	Email string `json:"email"`
}

// ContactInfo returns the contact details of the first node-contact-info service.
// A document without one yields the zero value.
func (d DIDDocument) ContactInfo() NodeContactInfo {
	var info NodeContactInfo
	for _, s := range d.Service {
		if s.Type == ServiceTypeContactInfo {
			_ = json.Unmarshal(s.ServiceEndpoint, &info)
			break
		}
	}
	return info
}

// NutsCommAddress returns the host:port of the NutsComm endpoint, without the grpc:// scheme.
// References to other documents cannot be followed and yield ErrNoEndpoint.
func (d DIDDocument) NutsCommAddress() (string, error) {
	for _, s := range d.Service {
		if s.Type != ServiceTypeNutsComm {
			continue
		}
		var endpoint string
		if err := json.Unmarshal(s.ServiceEndpoint, &endpoint); err != nil {
			return "", fmt.Errorf("%w: %s endpoint is not a string", ErrNoEndpoint, ServiceTypeNutsComm)
		}
		if strings.HasPrefix(endpoint, "did:") {
			return "", fmt.Errorf("%w: %s endpoint is a reference (%s)", ErrNoEndpoint, ServiceTypeNutsComm, endpoint)
		}
		return strings.TrimPrefix(endpoint, "grpc://"), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoEndpoint, ServiceTypeNutsComm)
}
