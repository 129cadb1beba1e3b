package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/pihole-wizard/pihole-wizard/internal/compose"
	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

const piholeContainer = "pihole"

// requiredPorts must be free of foreign listeners before containers start.
var requiredPorts = []int{53, 80}

// StartInstall validates the wizard state, renders the deployment files, and
// launches the install pipeline. Returns ErrRunActive when an install is
// already in flight and a *PortInUseError (wrapped in the failed run) when a
// required port is held by another process.
func (e *Engine) StartInstall(st wizard.State) (Run, error) {
	if err := st.Validate(); err != nil {
		return Run{}, fmt.Errorf("wizard state: %w", err)
	}
	return e.start(e.install, func(p *pipeline) {
		p.runInstall(st)
	})
}

func (p *pipeline) runInstall(st wizard.State) {
	outDir := p.eng.cfg.Paths.OutputDir

	p.logf("Writing deployment files to %s", outDir)
	if _, err := compose.WriteAll(st, outDir); err != nil {
		p.fail(ReasonPrecondition, fmt.Sprintf("failed to write deployment files: %v", err))
		return
	}

	// Fast path: a healthy existing installation short-circuits straight to
	// success, no steps, no intermediate percentages.
	if p.containerRunning(piholeContainer) {
		p.logf("Found an existing running Pi-hole container")
		p.succeed("Pi-hole is already installed and running")
		return
	}

	// Port preflight before anything is pulled or started, so the run fails
	// at 0% with a reason the frontend can act on.
	for _, port := range requiredPorts {
		if p.eng.probePort(port) {
			err := &PortInUseError{Port: port, Process: p.portHolder(port)}
			p.fail(ReasonPortInUse, err.Error())
			return
		}
	}

	p.runSteps([]step{
		{"Checking Docker...", 10, func(p *pipeline) error { return p.checkDocker() }},
		{"Pulling Docker images...", 40, func(p *pipeline) error { return p.pullImages(st) }},
		{"Starting containers...", 70, func(p *pipeline) error { return p.startContainers(outDir) }},
		{"Verifying installation...", 90, func(p *pipeline) error { return p.verifyInstall() }},
	}, "Installation complete! Pi-hole is running.")
}

// containerRunning reports whether a container by that name exists and is up.
func (p *pipeline) containerRunning(name string) bool {
	res, err := p.command([]string{"docker", "inspect", "-f", "{{.State.Running}}", name}, "")
	if err != nil || res.ExitCode != 0 {
		return false
	}
	return strings.TrimSpace(res.Stdout) == "true"
}

// portHolder asks lsof who owns the port, for the error message. Best effort.
func (p *pipeline) portHolder(port int) string {
	res, err := p.command([]string{"lsof", "-nP", "-i", fmt.Sprintf(":%d", port)}, "")
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	// First line is the header; the command name is the first field after it.
	if len(lines) < 2 {
		return ""
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (p *pipeline) checkDocker() error {
	res, err := p.command([]string{"docker", "info"}, "")
	if err != nil {
		return fmt.Errorf("docker not found: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("Docker is not running. Please start Docker and try again")
	}
	return nil
}

func (p *pipeline) pullImages(st wizard.State) error {
	images := []string{p.eng.cfg.Install.PiholeImage}
	if st.EnableUnbound {
		images = append(images, p.eng.cfg.Install.UnboundImage)
	}
	for _, image := range images {
		p.logf("Pulling %s...", image)
		res, err := p.command([]string{"docker", "pull", image}, "")
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("failed to pull %s: %s", image, tail(res.Stderr))
		}
	}
	return nil
}

// composeArgv picks the compose flavor available on the host: the v2 plugin
// first, the legacy standalone binary as fallback.
func (p *pipeline) composeArgv() []string {
	res, err := p.command([]string{"docker", "compose", "version"}, "")
	if err == nil && res.ExitCode == 0 {
		return []string{"docker", "compose"}
	}
	return []string{"docker-compose"}
}

func (p *pipeline) startContainers(dir string) error {
	argv := append(p.composeArgv(), "up", "-d")
	res, err := p.command(argv, dir)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("compose up failed: %s", tail(res.Stderr))
	}
	return nil
}

func (p *pipeline) verifyInstall() error {
	// Give the containers a moment to settle before inspecting them.
	if err := p.settle(3 * time.Second); err != nil {
		return err
	}
	if !p.containerRunning(piholeContainer) {
		return fmt.Errorf("pihole container is not running after start")
	}
	return nil
}

// tail returns the last few lines of command output, trimmed, for error
// messages that would otherwise swallow pages of docker noise.
func tail(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return "no output"
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
