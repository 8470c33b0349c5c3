package lifecycle

import (
	"net/netip"
	"strings"

	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/registry"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// maxTXTLength is the provider's limit on TXT content.
const maxTXTLength = 2048

// SRV parameters for composite records.
const (
	minecraftService = "_minecraft"
	minecraftProto   = "_tcp"
)

// MinecraftSRVName returns the SRV owner name backing a composite record.
func MinecraftSRVName(fqdn string) string {
	return minecraftService + "." + minecraftProto + "." + fqdn
}

// CreateRequest is the user input for Create.
type CreateRequest struct {
	Domain    string
	Type      string
	Subdomain string
	Content   string
	Port      int
	Proxied   bool
}

// plan is a validated CreateRequest.
type plan struct {
	kind      string
	subdomain string
	fqdn      string
	specs     []provider.RecordSpec
}

func buildPlan(req CreateRequest, domain string) (plan, error) {
	kind := strings.ToUpper(strings.TrimSpace(req.Type))

	sub, err := registry.NormalizeSubdomain(req.Subdomain)
	if err != nil {
		return plan{}, invalidInput("subdomain: %v", err)
	}
	fqdn := registry.JoinFQDN(sub, domain)
	content := strings.TrimSpace(req.Content)

	p := plan{kind: kind, subdomain: sub, fqdn: fqdn}

	if kind == ledger.TypeMinecraft {
		addr, err := netip.ParseAddr(content)
		if err != nil || !addr.Is4() {
			return plan{}, invalidInput("a Minecraft record needs an IPv4 address, got %q", content)
		}
		if req.Port < 1 || req.Port > 65535 {
			return plan{}, invalidInput("a Minecraft record needs a port between 1 and 65535")
		}
		srv := provider.SRVData{
			Service:  minecraftService,
			Proto:    minecraftProto,
			Name:     sub,
			Priority: 0,
			Weight:   0,
			Port:     req.Port,
			Target:   fqdn,
		}
		p.specs = []provider.RecordSpec{
			{Type: provider.RecordTypeA, Name: fqdn, Content: addr.String(), TTL: provider.AutoTTL},
			{Type: provider.RecordTypeSRV, Name: MinecraftSRVName(fqdn), Data: srv.Map(), TTL: provider.AutoTTL},
		}
		return p, nil
	}

	rtype, err := provider.ParseRecordType(kind)
	if err != nil {
		return plan{}, invalidInput("%v", err)
	}
	if rtype == provider.RecordTypeSRV {
		return plan{}, invalidInput("SRV records can only be created as part of a Minecraft record")
	}
	if content == "" {
		return plan{}, invalidInput("content is required for %s records", rtype)
	}

	switch rtype {
	case provider.RecordTypeA:
		addr, err := netip.ParseAddr(content)
		if err != nil || !addr.Is4() {
			return plan{}, invalidInput("%q is not an IPv4 address", content)
		}
		content = addr.String()
	case provider.RecordTypeAAAA:
		addr, err := netip.ParseAddr(content)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			return plan{}, invalidInput("%q is not an IPv6 address", content)
		}
		content = addr.String()
	case provider.RecordTypeCNAME:
		target, err := registry.NormalizeDomain(content)
		if err != nil {
			return plan{}, invalidInput("%q is not a valid CNAME target", content)
		}
		if target == fqdn {
			return plan{}, invalidInput("a CNAME cannot point at itself")
		}
		content = target
	case provider.RecordTypeTXT:
		if len(content) > maxTXTLength {
			return plan{}, invalidInput("TXT content is longer than %d characters", maxTXTLength)
		}
	}

	p.kind = string(rtype)
	p.specs = []provider.RecordSpec{{
		Type:    rtype,
		Name:    fqdn,
		Content: content,
		TTL:     provider.AutoTTL,
		Proxied: req.Proxied && provider.Proxiable(rtype),
	}}
	return p, nil
}
