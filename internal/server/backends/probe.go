// Package backends decides, per request, which of the partially available
// backends serves an operation.
package backends

import (
	"github.com/dmitrijs2005/pilosopo/internal/server/identity"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
)

type Kind int

const (
	None Kind = iota
	Records
	Documents
	Identity
)

func (k Kind) String() string {
	switch k {
	case Records:
		return "records"
	case Documents:
		return "documents"
	case Identity:
		return "identity"
	default:
		return "none"
	}
}

// Capability is what an operation needs from the selected backend.
type Capability int

const (
	Read Capability = iota
	Write
	Delete
	List
)

// Availability is a snapshot of usable backends.
type Availability struct {
	Identity  bool
	Documents bool
	Records   bool
	WebKey    bool
}

// Resolve applies the single precedence order records → documents →
// identity-derived view. The identity view can only serve reads and lists.
func Resolve(a Availability, c Capability) Kind {
	switch {
	case a.Records:
		return Records
	case a.Documents:
		return Documents
	case a.Identity && (c == Read || c == List):
		return Identity
	default:
		return None
	}
}

// RecordSource is the live record-store connection.
type RecordSource interface {
	Connected() bool
	Profiles() profiles.Repository
}

// Probe reports backend availability. Identity and document-store presence
// are fixed at startup; the record store is checked on every call.
type Probe struct {
	identity  identity.Provider
	grant     identity.PasswordGrant
	documents profiles.Repository
	records   RecordSource
}

// NewProbe takes nil for any backend that failed to initialize.
func NewProbe(provider identity.Provider, grant identity.PasswordGrant, documents profiles.Repository, records RecordSource) *Probe {
	return &Probe{identity: provider, grant: grant, documents: documents, records: records}
}

func (p *Probe) Availability() Availability {
	return Availability{
		Identity:  p.identity != nil,
		Documents: p.documents != nil,
		Records:   p.records != nil && p.records.Connected(),
		WebKey:    p.grant != nil,
	}
}

// Identity returns the provider, or nil when it is not initialized.
func (p *Probe) Identity() identity.Provider {
	return p.identity
}

// Grant returns the delegated password check, or nil when no usable web key
// is configured.
func (p *Probe) Grant() identity.PasswordGrant {
	return p.grant
}

// Store returns the profile repository for k, or nil when k is not a store
// or is unavailable.
func (p *Probe) Store(k Kind) profiles.Repository {
	switch k {
	case Records:
		if p.records == nil {
			return nil
		}
		return p.records.Profiles()
	case Documents:
		return p.documents
	default:
		return nil
	}
}

// ResolveStore resolves c and returns the chosen backend with its profile
// repository (nil for Identity and None). A record store that drops between
// the snapshot and the lookup falls through to the document store.
func (p *Probe) ResolveStore(c Capability) (Kind, profiles.Repository) {
	a := p.Availability()
	k := Resolve(a, c)
	if k == Records {
		if repo := p.Store(Records); repo != nil {
			return Records, repo
		}
		a.Records = false
		k = Resolve(a, c)
	}
	return k, p.Store(k)
}

// Stores returns every available profile store in precedence order.
func (p *Probe) Stores() []Kind {
	var out []Kind
	for _, k := range []Kind{Records, Documents} {
		if p.Store(k) != nil {
			out = append(out, k)
		}
	}
	return out
}
