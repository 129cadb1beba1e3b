package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UpdateCheck describes what an update run would act on.
type UpdateCheck struct {
	HasExistingInstall bool     `json:"has_existing_install"`
	InstallPath        string   `json:"install_path,omitempty"`
	RunningContainers  []string `json:"running_containers"`
	CurrentVersion     string   `json:"current_version,omitempty"`
	UpdateAvailable    bool     `json:"update_available"`
	Message            string   `json:"message"`
}

// installDirCandidates are the places a compose-based Pi-hole install is
// looked for, in order. The service's own output directory is checked first.
func (e *Engine) installDirCandidates() []string {
	dirs := []string{e.cfg.Paths.OutputDir}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "pihole"), filepath.Join(home, "pi-hole"))
	}
	return append(dirs, "/opt/pihole", "/opt/pi-hole")
}

// findInstallDir returns the first candidate containing a docker-compose.yml.
func (e *Engine) findInstallDir() string {
	for _, dir := range e.installDirCandidates() {
		for _, name := range []string{"docker-compose.yml", "docker-compose.yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
	}
	return ""
}

// CheckUpdate inspects the host for an existing installation without
// changing anything.
func (e *Engine) CheckUpdate(p *pipeline) UpdateCheck {
	check := UpdateCheck{RunningContainers: []string{}}
	check.InstallPath = e.findInstallDir()
	check.HasExistingInstall = check.InstallPath != ""

	if res, err := p.command([]string{"docker", "ps", "--format", "{{.Names}}"}, ""); err == nil && res.ExitCode == 0 {
		for _, name := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if strings.Contains(name, "pihole") || strings.Contains(name, "unbound") {
				check.RunningContainers = append(check.RunningContainers, name)
			}
		}
	}

	if res, err := p.command([]string{"docker", "images", "pihole/pihole", "--format", "{{.Tag}}"}, ""); err == nil && res.ExitCode == 0 {
		if lines := strings.Split(strings.TrimSpace(res.Stdout), "\n"); len(lines) > 0 {
			check.CurrentVersion = strings.TrimSpace(lines[0])
		}
	}

	// Without pulling we cannot compare against the registry; an existing
	// install is always eligible for a pull-and-restart update.
	check.UpdateAvailable = check.HasExistingInstall

	switch {
	case !check.HasExistingInstall:
		check.Message = "No existing Pi-hole installation found"
	case len(check.RunningContainers) == 0:
		check.Message = "Installation found but no containers are running"
	default:
		check.Message = fmt.Sprintf("Installation found at %s with %d running container(s)", check.InstallPath, len(check.RunningContainers))
	}
	return check
}

// Check runs an update check outside any run, streaming nothing.
func (e *Engine) Check() UpdateCheck {
	p := &pipeline{eng: e, slot: e.update, ctx: context.Background()}
	return e.CheckUpdate(p)
}

// StartUpdate launches the update pipeline against the discovered install
// directory. Separate singleton from install: one update at a time, but an
// update may run while no install is active and vice versa.
func (e *Engine) StartUpdate() (Run, error) {
	dir := e.findInstallDir()
	if dir == "" {
		return Run{}, fmt.Errorf("no existing installation found to update")
	}
	return e.start(e.update, func(p *pipeline) {
		p.runUpdate(dir)
	})
}

func (p *pipeline) runUpdate(dir string) {
	p.logf("Updating installation at %s", dir)
	p.runSteps([]step{
		{"Pulling latest Pi-hole image...", 30, func(p *pipeline) error {
			res, err := p.command([]string{"docker", "pull", p.eng.cfg.Install.PiholeImage}, "")
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("failed to pull %s: %s", p.eng.cfg.Install.PiholeImage, tail(res.Stderr))
			}
			return nil
		}},
		{"Pulling latest Unbound image...", 50, func(p *pipeline) error {
			// Best effort: not every install runs unbound.
			res, err := p.command([]string{"docker", "pull", p.eng.cfg.Install.UnboundImage}, "")
			switch {
			case err != nil:
				p.logf("Unbound image pull skipped: %v", err)
			case res.ExitCode != 0:
				p.logf("Unbound image pull skipped: %s", tail(res.Stderr))
			}
			return nil
		}},
		{"Stopping containers...", 70, func(p *pipeline) error {
			argv := append(p.composeArgv(), "down")
			res, err := p.command(argv, dir)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("compose down failed: %s", tail(res.Stderr))
			}
			return nil
		}},
		{"Starting updated containers...", 90, func(p *pipeline) error {
			return p.startContainers(dir)
		}},
		{"Verifying update...", 100, func(p *pipeline) error {
			if err := p.settle(5 * time.Second); err != nil {
				return err
			}
			if !p.containerRunning(piholeContainer) {
				return fmt.Errorf("pihole container is not running after update")
			}
			return nil
		}},
	}, "Update complete! Pi-hole is running the latest images.")
}
