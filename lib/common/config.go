package common

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/rKV/lib/store"
)

// Backend types selectable with --backend
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
)

// Config holds the settings shared by all rkv commands.
type Config struct {
	// Persistence
	Backend string
	DataDir string
	Codec   string

	// Stores
	Namespace  store.Namespace
	RacePolicy string

	// HTTP api settings (serve only)
	Endpoint string

	// Output
	LogLevel string
	Output   string
}

// Validate checks the fields that have a fixed set of values
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendLocal, BackendSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("backend %s requires a data dir", c.Backend)
		}
	default:
		return fmt.Errorf("invalid backend: %s. must be one of memory, local, sqlite", c.Backend)
	}

	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format: %s. must be one of text, json, yaml", c.Output)
	}

	return c.Namespace.Validate()
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Persistence")
	addField("Backend", c.Backend)
	if c.Backend != BackendMemory {
		addField("Data Directory", c.DataDir)
	}
	addField("Codec", c.Codec)

	addSection("Stores")
	addField("Default Namespace", c.Namespace.String())
	addField("Race Policy", c.RacePolicy)

	if c.Endpoint != "" {
		addSection("HTTP API")
		addField("Endpoint", c.Endpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
