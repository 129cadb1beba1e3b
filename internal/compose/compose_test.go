package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

func findFile(t *testing.T, files []File, name string) File {
	t.Helper()
	for _, f := range files {
		if f.Filename == name {
			return f
		}
	}
	t.Fatalf("file %q not rendered; got %d files", name, len(files))
	return File{}
}

func TestRenderDHCPBlock(t *testing.T) {
	st := wizard.Defaults()
	st.DHCPEnabled = true
	st.DHCPStart = "192.168.1.100"
	st.DHCPEnd = "192.168.1.200"
	st.DHCPRouter = "192.168.1.1"

	comp := findFile(t, Render(st), "docker-compose.yml").Content
	for _, want := range []string{"192.168.1.100", "192.168.1.200", "192.168.1.1", "DHCP_ACTIVE", "67:67/udp"} {
		if !strings.Contains(comp, want) {
			t.Errorf("compose file missing %q", want)
		}
	}

	st.DHCPEnabled = false
	comp = findFile(t, Render(st), "docker-compose.yml").Content
	if strings.Contains(comp, "DHCP") {
		t.Error("compose file contains a DHCP block with dhcp disabled")
	}
}

func TestRenderUnboundToggle(t *testing.T) {
	st := wizard.Defaults() // unbound on by default

	files := Render(st)
	comp := findFile(t, files, "docker-compose.yml").Content
	if !strings.Contains(comp, "unbound:") {
		t.Error("unbound service missing from compose file")
	}
	if !strings.Contains(comp, `PIHOLE_DNS_: "unbound#5335"`) {
		t.Error("pihole not pointed at unbound")
	}
	findFile(t, files, "unbound/unbound.conf")

	st.EnableUnbound = false
	st.UpstreamDNS = wizard.UpstreamCloudflare
	files = Render(st)
	comp = findFile(t, files, "docker-compose.yml").Content
	if strings.Contains(comp, "mvance/unbound") {
		t.Error("unbound service rendered while disabled")
	}
	if !strings.Contains(comp, "1.1.1.1;1.0.0.1") {
		t.Error("cloudflare upstream missing")
	}
	for _, f := range files {
		if f.Filename == "unbound/unbound.conf" {
			t.Error("unbound.conf rendered while disabled")
		}
	}
}

func TestRenderCustomUpstream(t *testing.T) {
	st := wizard.Defaults()
	st.EnableUnbound = false
	st.UpstreamDNS = wizard.UpstreamCustom
	st.CustomDNS = "10.0.0.2"

	comp := findFile(t, Render(st), "docker-compose.yml").Content
	if !strings.Contains(comp, `PIHOLE_DNS_: "10.0.0.2"`) {
		t.Error("custom upstream missing")
	}
}

func TestRenderBlocklistFiles(t *testing.T) {
	st := wizard.Defaults()
	st.Blocklists = []string{"stevenblack", "nocoin", "not-a-preset"}
	st.BlocklistExclusions = map[string][]string{
		"stevenblack": {"good.example.com"},
		"nocoin":      {"good.example.com", "ok.example.org"},
	}
	st.BlocklistAdditions = map[string][]string{"stevenblack": {"bad.example.net"}}
	st.CustomBlocklists = []wizard.CustomBlocklist{
		{ID: "homelab", Name: "Homelab", Domains: []string{"tracker.lan"}},
	}

	files := Render(st)

	adlists := findFile(t, files, "adlists.list").Content
	if !strings.Contains(adlists, "StevenBlack/hosts") || !strings.Contains(adlists, "nocoin") {
		t.Errorf("adlists missing preset URLs:\n%s", adlists)
	}
	if strings.Contains(adlists, "not-a-preset") {
		t.Error("unknown preset leaked into adlists")
	}

	allow := findFile(t, files, "whitelist.txt").Content
	// De-duplicated and sorted.
	if allow != "good.example.com\nok.example.org\n" {
		t.Errorf("whitelist = %q", allow)
	}

	deny := findFile(t, files, "blacklist.txt").Content
	if deny != "bad.example.net\n" {
		t.Errorf("blacklist = %q", deny)
	}

	custom := findFile(t, files, "blocklists/homelab.txt").Content
	if custom != "tracker.lan\n" {
		t.Errorf("custom list = %q", custom)
	}
}

func TestRenderDeterministic(t *testing.T) {
	st := wizard.Defaults()
	st.BlocklistExclusions = map[string][]string{
		"a": {"z.example", "b.example"},
		"b": {"m.example"},
		"c": {"b.example"},
	}

	first := Render(st)
	for i := 0; i < 10; i++ {
		again := Render(st)
		if len(again) != len(first) {
			t.Fatal("file count varies between renders")
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("render %d differs at %s", i, first[j].Filename)
			}
		}
	}
}

func TestWriteAllAndList(t *testing.T) {
	dir := t.TempDir()
	st := wizard.Defaults()

	written, err := WriteAll(st, dir)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(written) == 0 {
		t.Fatal("nothing written")
	}

	if _, err := os.Stat(filepath.Join(dir, "unbound", "unbound.conf")); err != nil {
		t.Errorf("unbound.conf not on disk: %v", err)
	}

	listed, err := ListWritten(dir)
	if err != nil {
		t.Fatalf("ListWritten: %v", err)
	}
	if len(listed) != len(written) {
		t.Errorf("listed %d files, wrote %d", len(listed), len(written))
	}
}

func TestRenderSettingsSnapshot(t *testing.T) {
	st := wizard.Defaults()
	st.PiholeIP = "192.168.1.53"
	st.WebPassword = "hunter2"

	snap := findFile(t, Render(st), "wizard-config.json").Content
	if strings.Contains(snap, "hunter2") {
		t.Error("settings snapshot contains the web password")
	}

	got, err := wizard.Import([]byte(snap))
	if err != nil {
		t.Fatalf("snapshot does not reimport: %v", err)
	}
	if got.PiholeIP != "192.168.1.53" {
		t.Errorf("pihole_ip = %q after reimport", got.PiholeIP)
	}
}

func TestListWrittenMissingDir(t *testing.T) {
	files, err := ListWritten(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want empty", files)
	}
}

func TestCommands(t *testing.T) {
	st := wizard.Defaults()
	cmds := Commands(st)
	if len(cmds) != 2 || !strings.Contains(cmds[1], "up -d") {
		t.Errorf("commands = %v", cmds)
	}
}
