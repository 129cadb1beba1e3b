// Package wizard holds the user-entered setup configuration and its
// per-session persistence.
package wizard

import (
	"encoding/json"
	"fmt"
	"net/netip"
)

// Deployment modes.
const (
	DeploymentDocker    = "docker"
	DeploymentBareMetal = "bare-metal"
)

// Upstream DNS choices.
const (
	UpstreamUnbound    = "unbound"
	UpstreamCloudflare = "cloudflare"
	UpstreamGoogle     = "google"
	UpstreamQuad9      = "quad9"
	UpstreamCustom     = "custom"
)

// CustomBlocklist is a user-created blocklist.
type CustomBlocklist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Domains     []string `json:"domains"`
}

// State is the wizard configuration for one session. Last write wins; the
// store keeps no history.
type State struct {
	Deployment       string `json:"deployment,omitempty"`
	OS               string `json:"os,omitempty"`
	PiholeIP         string `json:"pihole_ip,omitempty"`
	NetworkInterface string `json:"network_interface,omitempty"`

	UpstreamDNS   string `json:"upstream_dns"`
	EnableUnbound bool   `json:"enable_unbound"`
	CustomDNS     string `json:"custom_dns,omitempty"`

	// WebPassword is write-only towards clients: accepted on update, stripped
	// from exports.
	WebPassword string `json:"web_password,omitempty"`

	IPv6        bool   `json:"ipv6"`
	DHCPEnabled bool   `json:"dhcp_enabled"`
	DHCPStart   string `json:"dhcp_start,omitempty"`
	DHCPEnd     string `json:"dhcp_end,omitempty"`
	DHCPRouter  string `json:"dhcp_router,omitempty"`

	Blocklists          []string            `json:"blocklists"`
	BlocklistExclusions map[string][]string `json:"blocklist_exclusions,omitempty"`
	BlocklistAdditions  map[string][]string `json:"blocklist_additions,omitempty"`
	CustomBlocklists    []CustomBlocklist   `json:"custom_blocklists,omitempty"`
}

// Defaults returns the state a fresh session starts with.
func Defaults() State {
	return State{
		UpstreamDNS:   UpstreamUnbound,
		EnableUnbound: true,
		Blocklists:    []string{},
	}
}

// Validate checks field-level constraints. The DHCP invariant: when enabled,
// start/end/router must be valid, ordered IPv4 addresses in the same /24 as
// the router.
func (s *State) Validate() error {
	switch s.Deployment {
	case "", DeploymentDocker, DeploymentBareMetal:
	default:
		return fmt.Errorf("deployment must be %q or %q", DeploymentDocker, DeploymentBareMetal)
	}

	switch s.UpstreamDNS {
	case UpstreamUnbound, UpstreamCloudflare, UpstreamGoogle, UpstreamQuad9:
	case UpstreamCustom:
		if s.CustomDNS == "" {
			return fmt.Errorf("custom_dns is required when upstream_dns is %q", UpstreamCustom)
		}
	default:
		return fmt.Errorf("unknown upstream_dns %q", s.UpstreamDNS)
	}

	if s.PiholeIP != "" {
		if _, err := netip.ParseAddr(s.PiholeIP); err != nil {
			return fmt.Errorf("pihole_ip: %w", err)
		}
	}

	if s.DHCPEnabled {
		start, err := parseIPv4("dhcp_start", s.DHCPStart)
		if err != nil {
			return err
		}
		end, err := parseIPv4("dhcp_end", s.DHCPEnd)
		if err != nil {
			return err
		}
		router, err := parseIPv4("dhcp_router", s.DHCPRouter)
		if err != nil {
			return err
		}
		if end.Less(start) {
			return fmt.Errorf("dhcp_start %s must not be above dhcp_end %s", s.DHCPStart, s.DHCPEnd)
		}
		subnet := netip.PrefixFrom(router, 24).Masked()
		if !subnet.Contains(start) || !subnet.Contains(end) {
			return fmt.Errorf("dhcp range %s-%s must be in the router's /24 (%s)", s.DHCPStart, s.DHCPEnd, subnet)
		}
	}

	return nil
}

func parseIPv4(field, value string) (netip.Addr, error) {
	if value == "" {
		return netip.Addr{}, fmt.Errorf("%s is required when dhcp is enabled", field)
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s: %w", field, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s must be an IPv4 address", field)
	}
	return addr, nil
}

// Merge applies a partial update on top of s and returns the validated result.
// Unknown keys are ignored so newer frontends degrade gracefully.
func (s State) Merge(updates map[string]json.RawMessage) (State, error) {
	current, err := json.Marshal(s)
	if err != nil {
		return State{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		return State{}, err
	}
	for k, v := range updates {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return State{}, err
	}

	var out State
	if err := json.Unmarshal(merged, &out); err != nil {
		return State{}, fmt.Errorf("invalid update: %w", err)
	}
	if out.Blocklists == nil {
		out.Blocklists = []string{}
	}
	if err := out.Validate(); err != nil {
		return State{}, err
	}
	return out, nil
}
