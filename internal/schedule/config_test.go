package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ClinicID:            "clinic-1",
		Name:                "Smile Dental",
		OperatingHours:      Hours{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("12:00")},
		BookingMode:         ModeScheduled,
		SlotDurationMinutes: 30,
		Doctors: []Doctor{
			{ID: "doc-a", Name: "Dr. Alvarez", IsAvailable: true},
			{ID: "doc-b", Name: "Dr. Brooks", IsAvailable: false},
		},
		Services: []Service{
			{ID: "cleaning", Label: "Cleaning", DurationMinutes: 45},
			{ID: "checkup", Label: "Checkup"},
			{ID: "teleconsulta", Label: "Online consultation", DurationMinutes: 20, Online: true},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"start after end", func(c *Config) { c.OperatingHours.Start, c.OperatingHours.End = c.OperatingHours.End, c.OperatingHours.Start }},
		{"start equals end", func(c *Config) { c.OperatingHours.End = c.OperatingHours.Start }},
		{"unknown mode", func(c *Config) { c.BookingMode = "WALK_IN" }},
		{"zero slot duration", func(c *Config) { c.SlotDurationMinutes = 0 }},
		{"duplicate doctor", func(c *Config) { c.Doctors = append(c.Doctors, Doctor{ID: "doc-a"}) }},
		{"empty service id", func(c *Config) { c.Services = append(c.Services, Service{Label: "x"}) }},
		{"negative duration", func(c *Config) { c.Services[0].DurationMinutes = -5 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Nowhere/Land" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig().Clone()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDurationFor(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 45, cfg.DurationFor("cleaning"))
	assert.Equal(t, 30, cfg.DurationFor("checkup"), "zero catalog duration falls back to slot duration")
	assert.Equal(t, 30, cfg.DurationFor("unknown"))
	assert.Equal(t, map[string]int{"cleaning": 45, "checkup": 0, "teleconsulta": 20}, cfg.ServiceDurations())
}

func TestCatalogLookups(t *testing.T) {
	cfg := testConfig()

	svc, ok := cfg.Service("cleaning")
	require.True(t, ok)
	assert.Equal(t, "Cleaning", svc.Label)

	_, ok = cfg.Service("whitening")
	assert.False(t, ok)

	assert.True(t, cfg.IsTeleconsult("teleconsulta"))
	assert.False(t, cfg.IsTeleconsult("cleaning"))

	avail := cfg.AvailableDoctors()
	require.Len(t, avail, 1)
	assert.Equal(t, "doc-a", avail[0].ID)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	cfg := testConfig()
	cp := cfg.Clone()
	cp.Doctors[0].IsAvailable = false
	assert.True(t, cfg.Doctors[0].IsAvailable)
}

func TestLoadFile(t *testing.T) {
	doc := `
clinic_id: clinic-1
name: Smile Dental
timezone: Europe/Madrid
operating_hours:
  start: "09:00"
  end: "13:00"
slot_duration_minutes: 30
doctors:
  - id: doc-a
    name: Dr. Alvarez
    is_available: true
services:
  - id: cleaning
    label: Cleaning
    duration_minutes: 45
`
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeScheduled, cfg.BookingMode, "mode defaults to scheduled")
	assert.Equal(t, MustTimeOfDay("13:00"), cfg.OperatingHours.End)
	assert.Equal(t, "Europe/Madrid", cfg.Location(nil).String())
	assert.Len(t, cfg.Doctors, 1)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operating_hours:\n  start: \"12:00\"\n  end: \"09:00\"\nslot_duration_minutes: 30\n"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
