package setup

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
)

// Answers collects the form inputs. Numeric fields stay strings until
// ParsePort; huh validates them as the user types.
type Answers struct {
	BindAddress string
	PortStr     string
	DataDir     string
	OutputDir   string

	AuthMode        string
	Password        string
	PasswordConfirm string

	Confirmed bool
}

func defaultAnswers() *Answers {
	return &Answers{
		BindAddress: config.DefaultBindAddress,
		PortStr:     strconv.Itoa(config.DefaultPort),
		DataDir:     config.DefaultDataDir,
		OutputDir:   filepath.Join(config.DefaultDataDir, "output"),
		AuthMode:    config.AuthModePassword,
	}
}

// ParsePort converts the port field after the form has validated it.
func (a *Answers) ParsePort() (int, error) {
	return strconv.Atoi(strings.TrimSpace(a.PortStr))
}

func validatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validateNotEmpty(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		return nil
	}
}

// BuildForm assembles the setup form.
func BuildForm(answers *Answers) *huh.Form {
	return huh.NewForm(
		welcomeGroup(),
		serviceGroup(answers),
		pathsGroup(answers),
		authModeGroup(answers),
		passwordGroup(answers),
		confirmGroup(answers),
	).WithTheme(huh.ThemeCatppuccin())
}

func welcomeGroup() *huh.Group {
	return huh.NewGroup(
		huh.NewNote().
			Title("Pi-hole Wizard Setup").
			Description("Configures the guided-setup service that installs and manages\nPi-hole (and optionally Unbound) with Docker."),
	)
}

func serviceGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Bind Address").
			Description("IP address to listen on. Use 0.0.0.0 for all interfaces.").
			Value(&answers.BindAddress).
			Validate(validateNotEmpty("bind address")),
		huh.NewInput().
			Title("Port").
			Value(&answers.PortStr).
			Validate(validatePort),
	)
}

func pathsGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Data Directory").
			Description("Holds the wizard databases and anonymous stats.").
			Value(&answers.DataDir).
			Validate(validateNotEmpty("data directory")),
		huh.NewInput().
			Title("Output Directory").
			Description("Where generated docker-compose and Pi-hole files are written.").
			Value(&answers.OutputDir).
			Validate(validateNotEmpty("output directory")),
	)
}

func authModeGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().
			Title("Authentication Mode").
			Options(
				huh.NewOption("Password (recommended)", config.AuthModePassword),
				huh.NewOption("None", config.AuthModeNone),
			).
			Value(&answers.AuthMode),
	)
}

func passwordGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.Password).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("password must be at least 8 characters")
				}
				return nil
			}),
		huh.NewInput().
			Title("Confirm Password").
			EchoMode(huh.EchoModePassword).
			Value(&answers.PasswordConfirm).
			Validate(func(s string) error {
				if s != answers.Password {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	).WithHideFunc(func() bool { return answers.AuthMode != config.AuthModePassword })
}

func confirmGroup(answers *Answers) *huh.Group {
	return huh.NewGroup(
		huh.NewConfirm().
			Title("Write configuration?").
			Value(&answers.Confirmed),
	)
}
