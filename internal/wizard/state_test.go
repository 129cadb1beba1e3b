package wizard

import (
	"encoding/json"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	st := Defaults()
	if err := st.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
}

func TestValidateDHCPRange(t *testing.T) {
	base := func() State {
		st := Defaults()
		st.DHCPEnabled = true
		st.DHCPStart = "192.168.1.100"
		st.DHCPEnd = "192.168.1.200"
		st.DHCPRouter = "192.168.1.1"
		return st
	}

	st := base()
	if err := st.Validate(); err != nil {
		t.Fatalf("valid dhcp range rejected: %v", err)
	}

	st = base()
	st.DHCPStart = "192.168.1.201"
	if err := st.Validate(); err == nil {
		t.Error("expected error for start above end")
	}

	st = base()
	st.DHCPEnd = "192.168.2.10"
	if err := st.Validate(); err == nil {
		t.Error("expected error for end outside router /24")
	}

	st = base()
	st.DHCPRouter = ""
	if err := st.Validate(); err == nil {
		t.Error("expected error for missing router")
	}

	st = base()
	st.DHCPStart = "not-an-ip"
	if err := st.Validate(); err == nil {
		t.Error("expected error for invalid start address")
	}

	// Fields are free-form when dhcp is disabled.
	st = base()
	st.DHCPEnabled = false
	st.DHCPStart = ""
	if err := st.Validate(); err != nil {
		t.Errorf("disabled dhcp should skip range checks, got %v", err)
	}
}

func TestValidateCustomUpstreamNeedsAddress(t *testing.T) {
	st := Defaults()
	st.UpstreamDNS = UpstreamCustom
	if err := st.Validate(); err == nil {
		t.Error("expected error for custom upstream without custom_dns")
	}
	st.CustomDNS = "10.0.0.2"
	if err := st.Validate(); err != nil {
		t.Errorf("custom upstream with address rejected: %v", err)
	}
}

func TestMergePartialUpdate(t *testing.T) {
	st := Defaults()
	updates := map[string]json.RawMessage{
		"pihole_ip":  json.RawMessage(`"192.168.1.50"`),
		"deployment": json.RawMessage(`"docker"`),
	}

	merged, err := st.Merge(updates)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.PiholeIP != "192.168.1.50" {
		t.Errorf("pihole_ip = %q", merged.PiholeIP)
	}
	if merged.Deployment != DeploymentDocker {
		t.Errorf("deployment = %q", merged.Deployment)
	}
	// Untouched fields survive.
	if !merged.EnableUnbound || merged.UpstreamDNS != UpstreamUnbound {
		t.Error("merge clobbered unrelated fields")
	}
}

func TestMergeRejectsInvalidResult(t *testing.T) {
	st := Defaults()
	updates := map[string]json.RawMessage{
		"dhcp_enabled": json.RawMessage(`true`),
	}
	if _, err := st.Merge(updates); err == nil {
		t.Error("expected validation error for dhcp without range")
	}
}

func TestMergeIgnoresUnknownKeys(t *testing.T) {
	st := Defaults()
	updates := map[string]json.RawMessage{
		"future_field": json.RawMessage(`"whatever"`),
	}
	if _, err := st.Merge(updates); err != nil {
		t.Errorf("unknown keys should be ignored, got %v", err)
	}
}
