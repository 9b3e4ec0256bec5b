package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jaclearn/runbox/config"
	"github.com/jaclearn/runbox/lang"
)

// Policy is a read-only snapshot of the administrator-configured security
// policy. It is loaded once per process from configuration and never
// mutated by the execution path; administrative updates happen out of band.
type Policy struct {
	BlockedImports         []string  `yaml:"blocked_imports"`
	BlockedFunctions       []string  `yaml:"blocked_functions"`
	AllowedLanguages       []lang.ID `yaml:"allowed_languages"`
	SandboxingEnabled      bool      `yaml:"sandboxing_enabled"`
	NetworkAccessEnabled   bool      `yaml:"network_access_enabled"`
	MaxExecutionsPerMinute int       `yaml:"max_executions_per_minute"`
	MaxExecutionsPerHour   int       `yaml:"max_executions_per_hour"`
}

// LanguageAllowed reports whether the policy permits the given language.
func (p Policy) LanguageAllowed(id lang.ID) bool {
	for _, allowed := range p.AllowedLanguages {
		if allowed == id {
			return true
		}
	}
	return false
}

// CallerIdentity identifies the requester for rate limiting and policy
// checks. It is an explicit, minimal value type: never a partial stand-in
// object carrying only some of a real user's fields.
type CallerIdentity struct {
	UserID     string
	RemoteAddr string
}

// Key returns the rate-counter key for this caller.
func (c CallerIdentity) Key() string {
	if c.UserID != "" {
		return "user:" + c.UserID
	}
	return "addr:" + c.RemoteAddr
}

// FromConfig builds a policy snapshot from the application configuration.
// When a snapshot path is configured, the YAML snapshot file wins.
func FromConfig(cfg config.PolicyConfig) (Policy, error) {
	if cfg.SnapshotPath != "" {
		return LoadSnapshot(cfg.SnapshotPath)
	}

	languages := make([]lang.ID, 0, len(cfg.AllowedLanguages))
	for _, name := range cfg.AllowedLanguages {
		id, err := lang.Parse(name)
		if err != nil {
			return Policy{}, err
		}
		languages = append(languages, id)
	}

	return Policy{
		BlockedImports:         cfg.BlockedImports,
		BlockedFunctions:       cfg.BlockedFunctions,
		AllowedLanguages:       languages,
		SandboxingEnabled:      cfg.SandboxingEnabled,
		NetworkAccessEnabled:   cfg.NetworkAccessEnabled,
		MaxExecutionsPerMinute: cfg.MaxExecutionsPerMinute,
		MaxExecutionsPerHour:   cfg.MaxExecutionsPerHour,
	}, nil
}

// LoadSnapshot reads a policy snapshot from a YAML file.
func LoadSnapshot(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy snapshot: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy snapshot: %w", err)
	}

	for _, id := range p.AllowedLanguages {
		if _, err := lang.Parse(string(id)); err != nil {
			return Policy{}, fmt.Errorf("invalid policy snapshot: %w", err)
		}
	}
	return p, nil
}
