// Package config loads the node configuration from TOML with STE_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
)

// Duration decodes TOML strings such as "30s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type SRS struct {
	// Path is an SRS file written by `silentctl setup` or kzg.SRS.Save.
	Path string `toml:"path"`
	// Transcript is a ceremony JSON file; TranscriptIndex picks the sub-ceremony.
	Transcript      string `toml:"transcript"`
	TranscriptIndex int    `toml:"transcript_index"`
	// Dev generates a throwaway SRS at startup. Never use outside tests.
	Dev bool `toml:"dev"`
}

type Config struct {
	Listen    string `toml:"listen"`
	LogLevel  string `toml:"log_level"`
	Committee int    `toml:"committee"`
	PartyID   int    `toml:"party_id"`
	Strategy  string `toml:"strategy"`

	SRS SRS `toml:"srs"`

	Keystore struct {
		Path string `toml:"path"`
	} `toml:"keystore"`

	Roster struct {
		Path string `toml:"path"`
	} `toml:"roster"`

	Session struct {
		GatherTimeout Duration `toml:"gather_timeout"`
	} `toml:"session"`
}

func Default() Config {
	var c Config
	c.Listen = "127.0.0.1:4700"
	c.LogLevel = "info"
	c.Committee = 16
	c.PartyID = 1
	c.Strategy = string(ste.StrategyOnline)
	c.Keystore.Path = "ste_secret.dat"
	c.Roster.Path = "ste_roster.db"
	c.Session.GatherTimeout = Duration{30 * time.Second}
	return c
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &c)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if extra := md.Undecoded(); len(extra) > 0 {
			keys := make([]string, len(extra))
			for i, k := range extra {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"STE_LISTEN":         &c.Listen,
		"STE_LOG_LEVEL":      &c.LogLevel,
		"STE_STRATEGY":       &c.Strategy,
		"STE_SRS_PATH":       &c.SRS.Path,
		"STE_SRS_TRANSCRIPT": &c.SRS.Transcript,
		"STE_KEYSTORE_PATH":  &c.Keystore.Path,
		"STE_ROSTER_PATH":    &c.Roster.Path,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok {
			*dst = v
		}
	}
	num := map[string]*int{
		"STE_COMMITTEE": &c.Committee,
		"STE_PARTY_ID":  &c.PartyID,
	}
	for k, dst := range num {
		if v, ok := os.LookupEnv(k); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", k, err)
			}
			*dst = n
		}
	}
	if v, ok := os.LookupEnv("STE_SRS_DEV"); ok {
		c.SRS.Dev = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("STE_GATHER_TIMEOUT"); ok {
		if err := c.Session.GatherTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: STE_GATHER_TIMEOUT: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.Committee < 4 || !poly.IsPowerOfTwo(c.Committee) {
		errs = append(errs, fmt.Errorf("committee size %d is not a power of two >= 4 (no threshold fits a smaller committee)", c.Committee))
	}
	if c.PartyID < 1 || c.PartyID >= c.Committee {
		errs = append(errs, fmt.Errorf("party_id %d outside [1, %d)", c.PartyID, c.Committee))
	}
	switch ste.Strategy(c.Strategy) {
	case ste.StrategyOnline, ste.StrategyTable:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	sources := 0
	for _, set := range []bool{c.SRS.Path != "", c.SRS.Transcript != "", c.SRS.Dev} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		errs = append(errs, errors.New("exactly one of srs.path, srs.transcript, srs.dev must be set"))
	}
	if c.SRS.TranscriptIndex < 0 {
		errs = append(errs, fmt.Errorf("srs.transcript_index %d is negative", c.SRS.TranscriptIndex))
	}
	if c.Keystore.Path == "" {
		errs = append(errs, errors.New("keystore.path is empty"))
	}
	if c.Roster.Path == "" {
		errs = append(errs, errors.New("roster.path is empty"))
	}
	if c.Session.GatherTimeout.Duration <= 0 {
		errs = append(errs, errors.New("session.gather_timeout must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
