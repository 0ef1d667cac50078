// Package config normalizes and validates the bridge's static configuration
// (site list plus tunables) into the Group set the rest of the daemon
// consumes, per the grouping rules of component C1.
package config

import (
	"time"
)

// State is a logical work-site state.
type State string

const (
	// StateEmpty is the logical EMPTY state.
	StateEmpty State = "EMPTY"
	// StateFilled is the logical FILLED state.
	StateFilled State = "FILLED"
)

// Bit reports the raw-bit encoding of a State: FILLED == true.
func (s State) Bit() bool {
	return s == StateFilled
}

// Opposite returns the other state.
func (s State) Opposite() State {
	if s == StateFilled {
		return StateEmpty
	}
	return StateFilled
}

// Site is a static configuration entry for one sensor-backed work-site.
type Site struct {
	ID      string `koanf:"id" validate:"required"`
	Host    string `koanf:"host" validate:"required"`
	Port    int    `koanf:"port" validate:"required,min=1,max=65535"`
	UnitID  uint8  `koanf:"unit_id"`
	Offset  int    `koanf:"offset" validate:"min=0"`
	Default State  `koanf:"default" validate:"required,oneof=EMPTY FILLED"`
}

// RDS holds connection details for the dispatch server.
type RDS struct {
	Host     string `koanf:"host" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Pass     string `koanf:"pass" validate:"required"`
	Language string `koanf:"language"`
}

// Config is the full, validated, immutable-after-load process configuration.
type Config struct {
	RDS                  RDS           `koanf:"rds"`
	PollInterval         time.Duration `koanf:"poll_interval"`
	ModbusRequestTimeout time.Duration `koanf:"modbus_request_timeout"`
	ReconnectBackoff     time.Duration `koanf:"reconnect_backoff"`
	FillDebounce         time.Duration `koanf:"fill_debounce"`
	DebugLog             bool          `koanf:"debug_log"`
	Sites                []Site        `koanf:"sites" validate:"required,min=1,dive"`
	Log                  Log           `koanf:"log"`
	Metrics              Metrics       `koanf:"metrics"`
}

// Log configures the logging sink (see internal/logging).
type Log struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Output     string `koanf:"output"`
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Group is the set of sites sharing one Modbus TCP endpoint, derived at
// startup by grouping sites by (host, port, unitId). Group membership never
// changes once computed.
type Group struct {
	Key       string
	Host      string
	Port      int
	UnitID    uint8
	Sites     []Site
	MinOffset int
	MaxOffset int
}

// Length is the discrete-input read length for the group: the span between
// MinOffset and MaxOffset, forced to 1 for single-site groups.
func (g *Group) Length() uint16 {
	if len(g.Sites) == 1 {
		return 1
	}
	return uint16(g.MaxOffset - g.MinOffset + 1)
}
