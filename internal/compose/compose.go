// Package compose renders the deployment files for a wizard configuration:
// the compose file, the unbound config, and the blocklist inputs. Rendering
// is pure and deterministic; writing to disk is a separate step.
package compose

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

// File is a single rendered configuration file.
type File struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Default images; the engine can override via service config, but previews
// always use these.
const (
	PiholeImage  = "pihole/pihole:latest"
	UnboundImage = "mvance/unbound:latest"
)

// blocklistURLs maps preset blocklist IDs to their source URLs.
var blocklistURLs = map[string]string{
	"stevenblack":    "https://raw.githubusercontent.com/StevenBlack/hosts/master/hosts",
	"oisd":           "https://big.oisd.nl/domainswild",
	"hagezi":         "https://raw.githubusercontent.com/hagezi/dns-blocklists/main/wildcard/pro.txt",
	"firebog-ticked": "https://v.firebog.net/hosts/lists.php?type=tick",
	"adguard-dns":    "https://adguardteam.github.io/AdGuardSDNSFilter/Filters/filter.txt",
	"nocoin":         "https://raw.githubusercontent.com/hoshsadiq/adblock-nocoin-list/master/hosts.txt",
}

// upstreamServers maps preset upstream choices to Pi-hole's PIHOLE_DNS_ value.
var upstreamServers = map[string]string{
	wizard.UpstreamCloudflare: "1.1.1.1;1.0.0.1",
	wizard.UpstreamGoogle:     "8.8.8.8;8.8.4.4",
	wizard.UpstreamQuad9:      "9.9.9.9;149.112.112.112",
}

// Render produces every configuration file for the given state, in a stable
// order. It never touches the filesystem.
func Render(st wizard.State) []File {
	files := []File{
		{
			Filename:    "docker-compose.yml",
			Content:     renderCompose(st),
			Description: "Container definitions for Pi-hole" + unboundSuffix(st),
		},
	}

	if st.EnableUnbound {
		files = append(files, File{
			Filename:    "unbound/unbound.conf",
			Content:     renderUnbound(st),
			Description: "Recursive resolver configuration for Unbound",
		})
	}

	if adlists := renderAdlists(st); adlists != "" {
		files = append(files, File{
			Filename:    "adlists.list",
			Content:     adlists,
			Description: "Blocklist subscription URLs for Pi-hole",
		})
	}

	for _, list := range st.CustomBlocklists {
		files = append(files, File{
			Filename:    "blocklists/" + list.ID + ".txt",
			Content:     renderDomainFile(list.Domains),
			Description: "Custom blocklist: " + list.Name,
		})
	}

	if allow := collectDomains(st.BlocklistExclusions); len(allow) > 0 {
		files = append(files, File{
			Filename:    "whitelist.txt",
			Content:     renderDomainFile(allow),
			Description: "Domains excluded from the selected blocklists",
		})
	}
	if deny := collectDomains(st.BlocklistAdditions); len(deny) > 0 {
		files = append(files, File{
			Filename:    "blacklist.txt",
			Content:     renderDomainFile(deny),
			Description: "Extra domains added to the selected blocklists",
		})
	}

	files = append(files, File{
		Filename:    "wizard-config.json",
		Content:     renderSettings(st),
		Description: "Wizard settings snapshot, reimportable via the settings import",
	})

	return files
}

// renderSettings serializes the state in the import envelope format. The web
// password never lands on disk.
func renderSettings(st wizard.State) string {
	st.WebPassword = ""
	snap := struct {
		Version  string       `json:"version"`
		Settings wizard.State `json:"settings"`
	}{wizard.ExportVersion, st}
	b, _ := json.MarshalIndent(snap, "", "  ")
	return string(b) + "\n"
}

// Commands returns the shell commands the user (or the installer) runs from
// the output directory.
func Commands(st wizard.State) []string {
	cmds := []string{"docker compose pull"}
	if st.EnableUnbound {
		cmds = append(cmds, "docker compose up -d unbound pihole")
	} else {
		cmds = append(cmds, "docker compose up -d")
	}
	return cmds
}

func unboundSuffix(st wizard.State) string {
	if st.EnableUnbound {
		return " and Unbound"
	}
	return ""
}

func upstream(st wizard.State) string {
	if st.EnableUnbound || st.UpstreamDNS == wizard.UpstreamUnbound {
		// Unbound listens on its container name inside the compose network.
		return "unbound#5335"
	}
	if st.UpstreamDNS == wizard.UpstreamCustom {
		return st.CustomDNS
	}
	if servers, ok := upstreamServers[st.UpstreamDNS]; ok {
		return servers
	}
	return upstreamServers[wizard.UpstreamCloudflare]
}

func renderCompose(st wizard.State) string {
	var b strings.Builder

	b.WriteString("services:\n")
	b.WriteString("  pihole:\n")
	b.WriteString("    container_name: pihole\n")
	fmt.Fprintf(&b, "    image: %s\n", PiholeImage)
	b.WriteString("    ports:\n")
	b.WriteString("      - \"53:53/tcp\"\n")
	b.WriteString("      - \"53:53/udp\"\n")
	b.WriteString("      - \"80:80/tcp\"\n")
	if st.DHCPEnabled {
		b.WriteString("      - \"67:67/udp\"\n")
	}
	b.WriteString("    environment:\n")
	b.WriteString("      TZ: \"UTC\"\n")
	if st.WebPassword != "" {
		fmt.Fprintf(&b, "      WEBPASSWORD: %q\n", st.WebPassword)
	}
	fmt.Fprintf(&b, "      PIHOLE_DNS_: %q\n", upstream(st))
	if st.PiholeIP != "" {
		fmt.Fprintf(&b, "      FTLCONF_LOCAL_IPV4: %q\n", st.PiholeIP)
	}
	fmt.Fprintf(&b, "      IPV6: %q\n", boolString(st.IPv6))
	if st.DHCPEnabled {
		b.WriteString("      DHCP_ACTIVE: \"true\"\n")
		fmt.Fprintf(&b, "      DHCP_START: %q\n", st.DHCPStart)
		fmt.Fprintf(&b, "      DHCP_END: %q\n", st.DHCPEnd)
		fmt.Fprintf(&b, "      DHCP_ROUTER: %q\n", st.DHCPRouter)
	}
	b.WriteString("    volumes:\n")
	b.WriteString("      - ./etc-pihole:/etc/pihole\n")
	b.WriteString("      - ./etc-dnsmasq.d:/etc/dnsmasq.d\n")
	b.WriteString("    cap_add:\n")
	b.WriteString("      - NET_ADMIN\n")
	b.WriteString("    restart: unless-stopped\n")

	if st.EnableUnbound {
		b.WriteString("\n")
		b.WriteString("  unbound:\n")
		b.WriteString("    container_name: unbound\n")
		fmt.Fprintf(&b, "    image: %s\n", UnboundImage)
		b.WriteString("    volumes:\n")
		b.WriteString("      - ./unbound:/opt/unbound/etc/unbound\n")
		b.WriteString("    restart: unless-stopped\n")
	}

	return b.String()
}

func renderUnbound(st wizard.State) string {
	var b strings.Builder

	b.WriteString("server:\n")
	b.WriteString("    verbosity: 0\n")
	b.WriteString("    interface: 0.0.0.0\n")
	b.WriteString("    port: 5335\n")
	b.WriteString("    do-ip4: yes\n")
	fmt.Fprintf(&b, "    do-ip6: %s\n", yesNo(st.IPv6))
	b.WriteString("    do-udp: yes\n")
	b.WriteString("    do-tcp: yes\n")
	b.WriteString("    prefer-ip6: no\n")
	b.WriteString("    harden-glue: yes\n")
	b.WriteString("    harden-dnssec-stripped: yes\n")
	b.WriteString("    use-caps-for-id: no\n")
	b.WriteString("    edns-buffer-size: 1232\n")
	b.WriteString("    prefetch: yes\n")
	b.WriteString("    num-threads: 1\n")
	b.WriteString("    so-rcvbuf: 1m\n")
	b.WriteString("    private-address: 192.168.0.0/16\n")
	b.WriteString("    private-address: 169.254.0.0/16\n")
	b.WriteString("    private-address: 172.16.0.0/12\n")
	b.WriteString("    private-address: 10.0.0.0/8\n")
	b.WriteString("    private-address: fd00::/8\n")
	b.WriteString("    private-address: fe80::/10\n")

	return b.String()
}

func renderAdlists(st wizard.State) string {
	var urls []string
	for _, id := range st.Blocklists {
		if url, ok := blocklistURLs[id]; ok {
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return ""
	}
	return strings.Join(urls, "\n") + "\n"
}

func renderDomainFile(domains []string) string {
	if len(domains) == 0 {
		return ""
	}
	return strings.Join(domains, "\n") + "\n"
}

// collectDomains flattens a per-list domain map into one sorted, de-duplicated
// slice so rendering stays deterministic regardless of map iteration order.
func collectDomains(byList map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, domains := range byList {
		for _, d := range domains {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
