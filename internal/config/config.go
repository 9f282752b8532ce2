// Package config centralizes the tunables of the relay and bot
// binaries. Values come from the environment, optionally overlaid from
// a .env file, with flags in main able to override the result.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotenv overlays a .env file onto the environment when one is
// present. A missing file is not an error; deployments usually set
// real environment variables instead.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		return
	}
	log.Println("Loaded environment overrides from .env")
}

// EnvStr returns the named variable or def when unset or empty
func EnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns the named variable parsed as an int, or def when
// unset or unparseable.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, v, err)
		return def
	}
	return n
}

// EnvFloat returns the named variable parsed as a float64, or def when
// unset or unparseable.
func EnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, v, err)
		return def
	}
	return f
}

// EnvBool returns the named variable parsed as a bool, or def when
// unset or unparseable. Accepts the strconv forms (1/0, t/f, true/false).
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, v, err)
		return def
	}
	return b
}

// Relay holds the relay daemon's tunables
type Relay struct {
	Addr       string // HTTP listen address
	StaticDir  string // client files to serve, empty disables
	JournalDSN string // sqlite path for the event journal, empty disables
	PublicURL  string // externally reachable ws:// URL for invites
}

// RelayFromEnv builds a relay config from the environment
func RelayFromEnv() Relay {
	return Relay{
		Addr:       EnvStr("GRIDFIRE_ADDR", ":8080"),
		StaticDir:  EnvStr("GRIDFIRE_STATIC_DIR", ""),
		JournalDSN: EnvStr("GRIDFIRE_JOURNAL", "gridfire.db"),
		PublicURL:  EnvStr("GRIDFIRE_PUBLIC_URL", ""),
	}
}

// Session holds a simulating session's tunables
type Session struct {
	RelayURL   string  // ws:// endpoint of the relay
	TickHz     int     // simulation rate
	PublishDiv int     // publish every Nth tick
	EnemyCount int     // Host population target
	HitDedup   bool    // drop redelivered hit events instead of reapplying them
	Speed      float64 // bot movement speed multiplier
}

// SessionFromEnv builds a session config from the environment
func SessionFromEnv() Session {
	return Session{
		RelayURL:   EnvStr("GRIDFIRE_RELAY_URL", "ws://localhost:8080/ws"),
		TickHz:     EnvInt("GRIDFIRE_TICK_HZ", 60),
		PublishDiv: EnvInt("GRIDFIRE_PUBLISH_DIV", 3),
		EnemyCount: EnvInt("GRIDFIRE_ENEMY_COUNT", 4),
		HitDedup:   EnvBool("GRIDFIRE_HIT_DEDUP", false),
		Speed:      EnvFloat("GRIDFIRE_BOT_SPEED", 1.0),
	}
}
