package config

import (
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpress/internal/docs"
)

// Validate checks the configuration for structural problems. Called by Load
// so commands never see a half-usable config.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Root == "" && (c.Source.Git == nil || c.Source.Git.URL == "") {
		errs = append(errs, errors.New("source.root or source.git.url is required"))
	}
	if c.Source.Root != "" && c.Source.Git != nil && c.Source.Git.URL != "" {
		errs = append(errs, errors.New("source.root and source.git.url are mutually exclusive"))
	}

	if len(c.Types) == 0 {
		errs = append(errs, errors.New("at least one entry under types is required"))
	}
	if _, err := docs.NewTypeRegistry(c.Types); err != nil {
		errs = append(errs, err)
	}

	for _, tok := range RequiredTokens {
		if c.Tokens[tok] == "" {
			errs = append(errs, fmt.Errorf("tokens.%s is required", tok))
		}
	}

	for _, name := range c.Formats {
		if _, err := docs.ParseFormat(name); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	if c.Server.ReadyTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ReadyTimeout); err != nil {
			errs = append(errs, fmt.Errorf("server.ready_timeout: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RequestedFormats resolves the formats to dispatch this run: the
// configured subset, or every format when none are listed.
func (c *Config) RequestedFormats() ([]docs.Format, error) {
	if len(c.Formats) == 0 {
		return docs.AllFormats(), nil
	}
	out := make([]docs.Format, 0, len(c.Formats))
	seen := make(map[docs.Format]struct{}, len(c.Formats))
	for _, name := range c.Formats {
		f, err := docs.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// TypeRegistry builds the typed registry from the configured table.
func (c *Config) TypeRegistry() (*docs.TypeRegistry, error) {
	return docs.NewTypeRegistry(c.Types)
}
