package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultLowFloorMaxFloor = 2
	defaultEmailConcurrency = 4
)

// Config represents the application configuration
type Config struct {
	GmailUserID string `yaml:"gmailUserID" validate:"required"`
	GmailSender string `yaml:"gmailSender,omitempty"`

	// LowFloorMaxFloor is the highest floor offered to applicants with
	// special-housing evidence. Defaults to 2.
	LowFloorMaxFloor *int `yaml:"lowFloorMaxFloor,omitempty" validate:"omitempty,min=0"`

	// Languages are the questionnaire language codes in grouping-preference
	// order, e.g. [kz, ru].
	Languages []string `yaml:"languages" validate:"required,min=1,dive,required"`

	// PaymentReminderRule is the recurring payment deadline schedule in
	// RRULE syntax.
	PaymentReminderRule string `yaml:"paymentReminderRule" validate:"required"`

	EmailConcurrency *int `yaml:"emailConcurrency,omitempty" validate:"omitempty,min=1"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LowFloor returns the configured low-floor bound or its default.
func (c *Config) LowFloor() int {
	if c.LowFloorMaxFloor != nil {
		return *c.LowFloorMaxFloor
	}
	return defaultLowFloorMaxFloor
}

// Concurrency returns the configured email concurrency or its default.
func (c *Config) Concurrency() int {
	if c.EmailConcurrency != nil {
		return *c.EmailConcurrency
	}
	return defaultEmailConcurrency
}

// ReminderSchedule parses the payment reminder rule. Validation has already
// checked the syntax, so this only fails on a config bypassing Load.
func (c *Config) ReminderSchedule() (*rrule.RRule, error) {
	rule, err := rrule.StrToRRule(c.PaymentReminderRule)
	if err != nil {
		return nil, fmt.Errorf("invalid paymentReminderRule: %w", err)
	}
	return rule, nil
}

// LoadWithEnv loads and validates the configuration with an environment
// suffix. For example, env="test" looks for "dormassign_config.test.yaml".
// The file is searched in the current directory first, then in the user's
// home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := rrule.StrToRRule(cfg.PaymentReminderRule); err != nil {
		return fmt.Errorf("invalid paymentReminderRule: %w", err)
	}

	return nil
}

// DatabaseURL resolves the PostgreSQL connection string from the
// environment, loading a .env file first when one exists.
func DatabaseURL() (string, error) {
	// A missing .env is fine; real deployments set the variable directly.
	_ = godotenv.Load()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL is not set")
	}
	return url, nil
}

// findConfigFile searches for the config file in current directory and home
// directory. If env is provided it is added as an extension
// (e.g. "dormassign_config.test.yaml").
func findConfigFile(env string) (string, error) {
	configFileName := "dormassign_config.yaml"
	if env != "" {
		configFileName = "dormassign_config." + env + ".yaml"
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
