// Package config handles .loopconsole configuration file parsing.
//
// The .loopconsole file lives next to wherever the console is run (or in the
// home directory) and contains:
//
//	api_url: "https://..."                 - Loop API base URL
//	loop_id: "uuid"                        - Loop identifier
//	thread_id: "uuid"                      - Shared thread identifier
//	bot_profile_id: "uuid"                 - Operator (bot) profile id
//	operator_token: "..."                  - Operator bearer token (optional)
//	legacy_auth: true                      - Use X-User-Id headers when no token
//	limit: 10                              - Bot processing page size (1-100)
//	preview_on_send: true                  - Refresh previews after a send
//	preview_after_publish: false           - Refresh previews after a publish
//	participants:                          - Participant key -> identity
//	  a: {profile_id: "uuid", token: "...", label: "Anna"}
//	  b: {profile_id: "uuid", thread_id: "uuid"}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".loopconsole"

// DefaultLimit is the bot processing page size used when limit is unset.
const DefaultLimit = 10

// customPath holds an optional custom config file path.
// When empty, Load() uses the default FileName.
var customPath string

// SetPath sets a custom config file path for Load() to use.
// Pass an empty string to reset to the default path.
func SetPath(path string) {
	customPath = path
}

// GetPath returns the current config file path.
// Returns the custom path if set, otherwise the default FileName.
func GetPath() string {
	if customPath != "" {
		return customPath
	}
	return FileName
}

// Validation patterns (matching the backend's expectations)
var (
	uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	urlPattern  = regexp.MustCompile(`^https?://[^\s]+$`)
	keyPattern  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
)

// Participant is one logical console participant.
type Participant struct {
	ProfileID string `yaml:"profile_id"`
	Token     string `yaml:"token,omitempty"`
	ThreadID  string `yaml:"thread_id,omitempty"`
	Label     string `yaml:"label,omitempty"`
}

// Config represents the .loopconsole configuration file.
type Config struct {
	APIURL              string                 `yaml:"api_url"`
	LoopID              string                 `yaml:"loop_id"`
	ThreadID            string                 `yaml:"thread_id"`
	BotProfileID        string                 `yaml:"bot_profile_id"`
	OperatorToken       string                 `yaml:"operator_token,omitempty"`
	LegacyAuth          *bool                  `yaml:"legacy_auth,omitempty"`
	Limit               int                    `yaml:"limit,omitempty"`
	PreviewOnSend       *bool                  `yaml:"preview_on_send,omitempty"`
	PreviewAfterPublish *bool                  `yaml:"preview_after_publish,omitempty"`
	Participants        map[string]Participant `yaml:"participants"`
}

// LegacyAuthEnabled reports whether X-User-Id header auth may be used for
// identities without a bearer token. Defaults to true, matching backends that
// run without a token system.
func (c *Config) LegacyAuthEnabled() bool {
	if c.LegacyAuth == nil {
		return true
	}
	return *c.LegacyAuth
}

// PreviewOnSendEnabled defaults to true.
func (c *Config) PreviewOnSendEnabled() bool {
	if c.PreviewOnSend == nil {
		return true
	}
	return *c.PreviewOnSend
}

// PreviewAfterPublishEnabled defaults to false.
func (c *Config) PreviewAfterPublishEnabled() bool {
	if c.PreviewAfterPublish == nil {
		return false
	}
	return *c.PreviewAfterPublish
}

// EffectiveLimit returns the configured page size or the default.
func (c *Config) EffectiveLimit() int {
	if c.Limit == 0 {
		return DefaultLimit
	}
	return c.Limit
}

// ThreadFor resolves the thread identifier for a participant key. Resolution
// is total: unknown keys and participants without an override fall back to
// the shared thread.
func (c *Config) ThreadFor(key string) string {
	if p, ok := c.Participants[key]; ok && p.ThreadID != "" {
		return p.ThreadID
	}
	return c.ThreadID
}

// Load reads and parses the .loopconsole configuration file.
// Uses the custom path if set via SetPath(), otherwise uses the default path.
func Load() (*Config, error) {
	if customPath != "" {
		return LoadFrom(customPath)
	}

	path, err := findDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses a .loopconsole configuration file from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err // Return unwrapped for os.IsNotExist() checks
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &cfg, nil
}

func findDefaultConfigPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return FileName, nil
	}

	candidate := filepath.Join(cwd, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeCandidate := filepath.Join(home, FileName)
		if _, err := os.Stat(homeCandidate); err == nil {
			return homeCandidate, nil
		}
	}

	// Return an IsNotExist error with the cwd path so callers can rely on
	// os.IsNotExist(err).
	return candidate, &os.PathError{Op: "open", Path: candidate, Err: os.ErrNotExist}
}

// Save writes the configuration to the config file.
// Uses the custom path if set via SetPath(), otherwise uses the default FileName.
func (c *Config) Save() error {
	path := GetPath()
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Write with header comment
	header := "# Generated by: loopconsole init\n# Contains credentials - DO NOT COMMIT\n\n"
	content := header + string(data)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if !urlPattern.MatchString(c.APIURL) {
		return fmt.Errorf("api_url must be a valid HTTP(S) URL")
	}
	if c.LoopID != "" && !uuidPattern.MatchString(c.LoopID) {
		return fmt.Errorf("loop_id must be a valid UUID")
	}
	if c.ThreadID == "" {
		return fmt.Errorf("thread_id is required")
	}
	if !uuidPattern.MatchString(c.ThreadID) {
		return fmt.Errorf("thread_id must be a valid UUID")
	}
	if c.BotProfileID != "" && !uuidPattern.MatchString(c.BotProfileID) {
		return fmt.Errorf("bot_profile_id must be a valid UUID")
	}
	if c.Limit < 0 || c.Limit > 100 {
		return fmt.Errorf("limit must be between 1 and 100")
	}
	for key, p := range c.Participants {
		if !keyPattern.MatchString(key) {
			return fmt.Errorf("participant key %q must start with an alphanumeric and contain only alphanumerics, dashes, or underscores (max 64 chars)", key)
		}
		if p.ProfileID == "" {
			return fmt.Errorf("participant %q: profile_id is required", key)
		}
		if !uuidPattern.MatchString(p.ProfileID) {
			return fmt.Errorf("participant %q: profile_id must be a valid UUID", key)
		}
		if p.ThreadID != "" && !uuidPattern.MatchString(p.ThreadID) {
			return fmt.Errorf("participant %q: thread_id must be a valid UUID", key)
		}
	}

	return nil
}

// IsValidUUID reports whether s is a lowercase hex UUID.
func IsValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}
