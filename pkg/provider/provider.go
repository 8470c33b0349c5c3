// Package provider defines the contract between dnsbot and the remote DNS
// management API that holds the authoritative record set for each zone.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeSRV   RecordType = "SRV"
)

// AutoTTL is the provider's "automatic" TTL sentinel. Every record is created
// with it; custom TTLs are not exposed.
const AutoTTL = 1

// supportedTypes is the set of record types the remote client accepts.
var supportedTypes = map[RecordType]bool{
	RecordTypeA:     true,
	RecordTypeAAAA:  true,
	RecordTypeCNAME: true,
	RecordTypeTXT:   true,
	RecordTypeSRV:   true,
}

// ParseRecordType converts a user supplied type name into a RecordType.
// Names are matched case-insensitively against the DNS type registry first, so
// well-known but unsupported types (MX, NS...) get a precise error.
func ParseRecordType(s string) (RecordType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if _, known := dns.StringToType[name]; !known {
		return "", fmt.Errorf("unknown record type %q", s)
	}
	t := RecordType(name)
	if !supportedTypes[t] {
		return "", fmt.Errorf("record type %s is not supported", name)
	}
	return t, nil
}

// Proxiable reports whether the proxied flag is meaningful for the type.
// The provider rejects or ignores it for everything except A, AAAA and CNAME.
func Proxiable(t RecordType) bool {
	switch t {
	case RecordTypeA, RecordTypeAAAA, RecordTypeCNAME:
		return true
	default:
		return false
	}
}

// Record is a DNS record as reported by the provider. It is fetched for a
// single request or flow and never cached.
type Record struct {
	ID      string
	Type    RecordType
	Name    string
	Content string
	Data    map[string]any // structured payload (SRV)
	Proxied bool
	TTL     int
}

// String returns "TYPE name -> content".
func (r Record) String() string {
	return fmt.Sprintf("%s %s -> %s", r.Type, r.Name, r.Content)
}

// Filter narrows ListRecords. Empty fields match everything.
type Filter struct {
	Name string
	Type RecordType
}

// RecordSpec describes a record to create.
type RecordSpec struct {
	Type    RecordType
	Name    string
	Content string
	Data    map[string]any
	TTL     int
	Proxied bool
}

// Normalize applies the provider constraints to a record spec: proxied is forced off
// for types that cannot be proxied and the TTL is always AutoTTL.
func (s RecordSpec) Normalize() RecordSpec {
	if !Proxiable(s.Type) {
		s.Proxied = false
	}
	s.TTL = AutoTTL
	return s
}

// SRVData is the structured payload of an SRV record.
type SRVData struct {
	Service  string
	Proto    string
	Name     string
	Priority int
	Weight   int
	Port     int
	Target   string
}

// Map returns the payload in the provider's wire shape.
func (d SRVData) Map() map[string]any {
	return map[string]any{
		"service":  d.Service,
		"proto":    d.Proto,
		"name":     d.Name,
		"priority": d.Priority,
		"weight":   d.Weight,
		"port":     d.Port,
		"target":   d.Target,
	}
}

// Client is a zone-scoped DNS management client. Implementations must not
// retry on their own: a failed call surfaces immediately.
type Client interface {
	// Ping checks that the credential is accepted by the provider.
	Ping(ctx context.Context) error

	// ListRecords returns the zone's records matching filter, in provider order.
	ListRecords(ctx context.Context, filter Filter) ([]Record, error)

	// CreateRecord creates a record and returns its provider-assigned id.
	CreateRecord(ctx context.Context, spec RecordSpec) (string, error)

	// DeleteRecord removes a record by id.
	DeleteRecord(ctx context.Context, id string) error
}

// Factory builds a Client for one zone from its id and credential.
type Factory func(zoneID, credential string) (Client, error)
