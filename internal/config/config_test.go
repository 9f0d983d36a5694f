package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dormassign_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromPath_Valid(t *testing.T) {
	path := writeConfig(t, `
gmailUserID: admin@university.example
gmailSender: "Dorm Administration <dorm@university.example>"
lowFloorMaxFloor: 3
languages: [kz, ru]
paymentReminderRule: "FREQ=MONTHLY;BYMONTHDAY=25"
emailConcurrency: 8
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "admin@university.example", cfg.GmailUserID)
	assert.Equal(t, []string{"kz", "ru"}, cfg.Languages)
	assert.Equal(t, 3, cfg.LowFloor())
	assert.Equal(t, 8, cfg.Concurrency())

	rule, err := cfg.ReminderSchedule()
	require.NoError(t, err)
	assert.NotNil(t, rule)
}

func TestLoadFromPath_Defaults(t *testing.T) {
	path := writeConfig(t, `
gmailUserID: admin@university.example
languages: [kz]
paymentReminderRule: "FREQ=MONTHLY;BYMONTHDAY=25"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.LowFloor())
	assert.Equal(t, 4, cfg.Concurrency())
}

func TestLoadFromPath_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
gmailUserID: admin@university.example
paymentReminderRule: "FREQ=MONTHLY;BYMONTHDAY=25"
`)

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadFromPath_InvalidReminderRule(t *testing.T) {
	path := writeConfig(t, `
gmailUserID: admin@university.example
languages: [kz, ru]
paymentReminderRule: "EVERY 25TH"
`)

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "paymentReminderRule")
}

func TestLoadFromPath_FileMissing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
