package config

import (
	"fmt"
	"os"
	"time"
)

const (
	DefaultPort         = 8993
	DefaultApp          = "docs"
	DefaultReadyTimeout = 15 * time.Second
	DefaultFooterFont   = "DejaVu Sans"
)

// Default returns a configuration with converter and server defaults
// applied. Loaded files override individual fields.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory: "./site",
			Clean:     true,
		},
		Templates: TemplatesConfig{
			Directory: "./templates",
		},
		Converters: ConvertersConfig{
			Pandoc:       "pandoc",
			EbookConvert: "ebook-convert",
			WKHTMLToPDF:  "wkhtmltopdf",
			FooterFont:   DefaultFooterFont,
		},
		Server: ServerConfig{
			Port:         DefaultPort,
			App:          DefaultApp,
			ReadyTimeout: DefaultReadyTimeout.String(),
		},
	}
}

// applyDefaults fills zero values left after unmarshalling a partial file.
func (c *Config) applyDefaults() {
	if c.Converters.Pandoc == "" {
		c.Converters.Pandoc = "pandoc"
	}
	if c.Converters.EbookConvert == "" {
		c.Converters.EbookConvert = "ebook-convert"
	}
	if c.Converters.WKHTMLToPDF == "" {
		c.Converters.WKHTMLToPDF = "wkhtmltopdf"
	}
	if c.Converters.FooterFont == "" {
		c.Converters.FooterFont = DefaultFooterFont
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.App == "" {
		c.Server.App = DefaultApp
	}
	if c.Server.ReadyTimeout == "" {
		c.Server.ReadyTimeout = DefaultReadyTimeout.String()
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./site"
	}
	if c.Templates.Directory == "" {
		c.Templates.Directory = "./templates"
	}
	if c.Notify != nil && c.Notify.Subject == "" {
		c.Notify.Subject = "docpress.builds"
	}
}

const defaultConfigTemplate = `# docpress configuration
source:
  root: ./docs

output:
  directory: ./site
  clean: true

templates:
  directory: ./templates

tokens:
  documentVersion: "%s"
  projectVersion: "0.1.0"

types:
  articles: [html]
  tutorials: [html, ebook, pdf]

server:
  port: 8993
  app: docs
`

// Init writes a starter configuration file. Refuses to overwrite an
// existing file unless force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	content := fmt.Sprintf(defaultConfigTemplate, time.Now().Format("January 2006"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
