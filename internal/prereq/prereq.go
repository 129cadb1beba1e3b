// Package prereq checks the host for everything an install needs before the
// wizard lets the user start one: docker, a compose flavor, free ports, and
// a usable network interface.
package prereq

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pihole-wizard/pihole-wizard/internal/runner"
)

// Check is one named prerequisite result.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Network describes the interface the install should bind Pi-hole to.
type Network struct {
	Interface   string `json:"interface,omitempty"`
	LocalIP     string `json:"local_ip,omitempty"`
	Gateway     string `json:"gateway,omitempty"`
	SuggestedIP string `json:"suggested_ip,omitempty"`
}

// Report is the full prerequisite sweep. Ready is true only when every check
// passed.
type Report struct {
	Ready   bool    `json:"ready"`
	Checks  []Check `json:"checks"`
	Network Network `json:"network"`
}

// Checker runs the sweep. Run and ProbePort are injectable for tests.
type Checker struct {
	Run       runner.Runner
	ProbePort func(port int) bool
}

func New(r runner.Runner) *Checker {
	return &Checker{Run: r, ProbePort: defaultProbePort}
}

func defaultProbePort(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Report runs all checks concurrently and aggregates the results in a fixed
// order.
func (c *Checker) Report(ctx context.Context) *Report {
	var docker, compose, port53, port80 Check
	var network Network

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { docker = c.checkDocker(ctx); return nil })
	g.Go(func() error { compose = c.checkCompose(ctx); return nil })
	g.Go(func() error { port53 = c.checkPort(ctx, 53); return nil })
	g.Go(func() error { port80 = c.checkPort(ctx, 80); return nil })
	g.Go(func() error { network = detectNetwork(); return nil })
	g.Wait()

	rep := &Report{
		Checks:  []Check{docker, compose, port53, port80},
		Network: network,
	}
	rep.Ready = true
	for _, ch := range rep.Checks {
		if !ch.OK {
			rep.Ready = false
		}
	}
	return rep
}

func (c *Checker) command(ctx context.Context, argv ...string) (*runner.Result, error) {
	return c.Run.Run(ctx, runner.Command{Argv: argv, Timeout: 15 * time.Second}, nil)
}

func (c *Checker) checkDocker(ctx context.Context) Check {
	ch := Check{Name: "docker"}
	res, err := c.command(ctx, "docker", "--version")
	if err != nil {
		ch.Detail = "docker not found; install Docker first"
		return ch
	}
	if res.ExitCode != 0 {
		ch.Detail = "docker --version failed"
		return ch
	}
	version := strings.TrimSpace(res.Stdout)

	res, err = c.command(ctx, "docker", "info")
	if err != nil || res.ExitCode != 0 {
		ch.Detail = version + "; daemon not running"
		return ch
	}
	ch.OK = true
	ch.Detail = version
	return ch
}

func (c *Checker) checkCompose(ctx context.Context) Check {
	ch := Check{Name: "compose"}
	if res, err := c.command(ctx, "docker", "compose", "version"); err == nil && res.ExitCode == 0 {
		ch.OK = true
		ch.Detail = strings.TrimSpace(res.Stdout)
		return ch
	}
	if res, err := c.command(ctx, "docker-compose", "--version"); err == nil && res.ExitCode == 0 {
		ch.OK = true
		ch.Detail = strings.TrimSpace(res.Stdout)
		return ch
	}
	ch.Detail = "neither docker compose nor docker-compose found"
	return ch
}

func (c *Checker) checkPort(ctx context.Context, port int) Check {
	ch := Check{Name: fmt.Sprintf("port-%d", port)}
	probe := c.ProbePort
	if probe == nil {
		probe = defaultProbePort
	}
	if !probe(port) {
		ch.OK = true
		return ch
	}
	ch.Detail = fmt.Sprintf("port %d is in use", port)
	if holder := c.portHolder(ctx, port); holder != "" {
		ch.Detail = fmt.Sprintf("port %d is in use by %s", port, holder)
	}
	return ch
}

func (c *Checker) portHolder(ctx context.Context, port int) string {
	res, err := c.command(ctx, "lsof", "-nP", "-i", fmt.Sprintf(":%d", port))
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) < 2 {
		return ""
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// detectNetwork picks the first up, non-loopback interface with a private
// IPv4 address and guesses the gateway as .1 of its /24.
func detectNetwork() Network {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Network{}
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP.To4())
			if !ok || !ip.Is4() || !ip.IsPrivate() {
				continue
			}
			gw := netip.PrefixFrom(ip, 24).Masked().Addr().Next()
			return Network{
				Interface:   iface.Name,
				LocalIP:     ip.String(),
				Gateway:     gw.String(),
				SuggestedIP: ip.String(),
			}
		}
	}
	return Network{}
}
