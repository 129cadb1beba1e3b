// Package setup is the interactive first-run configurator: it asks where the
// service should listen, whether it needs a password, and writes config.yml.
package setup

import (
	"fmt"
	"net"

	"golang.org/x/crypto/bcrypt"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
)

// Run walks the operator through the service configuration and saves it to
// configPath.
func Run(configPath string) error {
	answers := defaultAnswers()
	form := BuildForm(answers)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if !answers.Confirmed {
		fmt.Println("Setup cancelled.")
		return nil
	}

	port, err := answers.ParsePort()
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := checkPortAvailable(answers.BindAddress, port); err != nil {
		return fmt.Errorf("port %d is already in use: %w", port, err)
	}

	cfg := config.Default()
	cfg.Service.BindAddress = answers.BindAddress
	cfg.Service.Port = port
	cfg.Paths.DataDir = answers.DataDir
	cfg.Paths.OutputDir = answers.OutputDir
	cfg.Auth.Mode = answers.AuthMode
	if answers.AuthMode == config.AuthModePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(answers.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		cfg.Auth.PasswordHash = string(hash)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	displayAddr := answers.BindAddress
	if displayAddr == "0.0.0.0" || displayAddr == "" {
		if ip := primaryIP(); ip != "" {
			displayAddr = ip
		}
	}

	fmt.Println()
	fmt.Println("Setup complete!")
	fmt.Println()
	fmt.Printf("  Config:  %s\n", configPath)
	fmt.Printf("  Start:   pihole-wizard serve --config %s\n", configPath)
	fmt.Printf("  Web UI:  http://%s:%d\n", displayAddr, port)
	fmt.Println()

	return nil
}

// checkPortAvailable tries to listen on the port to verify it's free.
func checkPortAvailable(addr string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

// primaryIP returns the first non-loopback IPv4 address of the host.
func primaryIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}
