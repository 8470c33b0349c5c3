package bot

import (
	"context"

	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
)

// Command names.
const (
	CmdCreateDNS    = "createdns"
	CmdRemoveDNS    = "removedns"
	CmdListDNS      = "listdns"
	CmdListDomains  = "listdomains"
	CmdViewDNS      = "viewdns"
	CmdRemoveRecord = "removerecord"
	CmdAddDomain    = "adddomain"
	CmdRemoveDomain = "removedomain"
	CmdClearDNS     = "cleardns"
	CmdLockDNS      = "lockdns"
	CmdUnlockDNS    = "unlockdns"
	CmdPing         = "ping"
	CmdUptime       = "uptime"
)

// maxChoices is the most fixed choices an option may carry.
const maxChoices = 25

// OptionType is the value type of a command option.
type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionBoolean
)

// Choice is a fixed option value.
type Choice struct {
	Name  string
	Value string
}

// OptionSpec declares a command option.
type OptionSpec struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []Choice
}

// CommandSpec declares a slash command.
type CommandSpec struct {
	Name        string
	Description string
	Options     []OptionSpec
}

// Commands returns the command definitions. Domain options list the
// currently registered domains as choices.
func (b *Bot) Commands(ctx context.Context) []CommandSpec {
	var domains []Choice
	for _, d := range b.manager.Domains(ctx) {
		if len(domains) == maxChoices {
			break
		}
		domains = append(domains, Choice{Name: d.Name, Value: d.Name})
	}
	domain := func(desc string) OptionSpec {
		return OptionSpec{Name: "domain", Description: desc, Type: OptionString, Required: true, Choices: domains}
	}

	return []CommandSpec{
		{
			Name:        CmdCreateDNS,
			Description: "Create a DNS record or Minecraft subdomain",
			Options: []OptionSpec{
				domain("Select the base domain"),
				{
					Name:        "type",
					Description: "Record type (A, AAAA, CNAME, TXT, or MINECRAFT for A+SRV)",
					Type:        OptionString,
					Required:    true,
					Choices: []Choice{
						{Name: "A", Value: "A"},
						{Name: "AAAA", Value: "AAAA"},
						{Name: "CNAME", Value: "CNAME"},
						{Name: "TXT", Value: "TXT"},
						{Name: "Minecraft (A + SRV)", Value: ledger.TypeMinecraft},
					},
				},
				{Name: "subdomain", Description: "Subdomain to create", Type: OptionString, Required: true},
				{Name: "content", Description: "Record content (IP or other)", Type: OptionString},
				{Name: "port", Description: "Minecraft server port (for Minecraft type only)", Type: OptionInteger},
				{Name: "proxied", Description: "Proxy through Cloudflare (A, AAAA and CNAME only)", Type: OptionBoolean},
			},
		},
		{
			Name:        CmdRemoveDNS,
			Description: "Remove one of your DNS records",
			Options: []OptionSpec{
				domain("Base domain"),
				{Name: "subdomain", Description: "Subdomain to remove", Type: OptionString},
				{Name: "index", Description: "Record number from /listdns", Type: OptionInteger},
			},
		},
		{Name: CmdListDNS, Description: "List all your DNS records created via the bot"},
		{Name: CmdListDomains, Description: "Lists all configured domains"},
		{Name: CmdViewDNS, Description: "View DNS records for a specific domain (owner only)"},
		{
			Name:        CmdRemoveRecord,
			Description: "Remove a DNS record from a selected domain (owner only)",
			Options:     []OptionSpec{domain("Pick a domain to remove a record from")},
		},
		{
			Name:        CmdAddDomain,
			Description: "Add a domain (owner only)",
			Options: []OptionSpec{
				{Name: "name", Description: "Domain name (e.g., example.com)", Type: OptionString, Required: true},
				{Name: "zoneid", Description: "Cloudflare Zone ID", Type: OptionString, Required: true},
				{Name: "token", Description: "Cloudflare API Token", Type: OptionString, Required: true},
			},
		},
		{
			Name:        CmdRemoveDomain,
			Description: "Remove a domain from the domain list (owner only)",
			Options:     []OptionSpec{domain("Select the domain to remove")},
		},
		{
			Name:        CmdClearDNS,
			Description: "⚠️ Owner only: Clear ALL DNS records on a domain.",
			Options:     []OptionSpec{domain("The base domain to clear")},
		},
		{Name: CmdLockDNS, Description: "Locks the /createdns command (owner only)"},
		{Name: CmdUnlockDNS, Description: "Unlocks the /createdns command (owner only)"},
		{Name: CmdPing, Description: "Replies with bot latency in ms"},
		{Name: CmdUptime, Description: "Replies with how long the bot has been online"},
	}
}
