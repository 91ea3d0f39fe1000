// pkg/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds everything the invoice server needs. It is built once at
// startup and passed by value; handlers never mutate it.
type Config struct {
	// Server
	Host string
	Port string

	// Files
	TemplateFile string
	OutputFile   string
	HistoryFile  string
	StateFile    string
	BatchPDFFile string

	// Billing
	Rate          decimal.Decimal
	SGSTRate      decimal.Decimal
	CGSTRate      decimal.Decimal
	InvoicePrefix string
	DateLayout    string

	// Optional PostgreSQL mirror of the history log
	DatabaseURL string

	LogLevel string
}

// fileConfig is the YAML shape. Rates are strings so they stay exact.
type fileConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	TemplateFile  string `yaml:"template_file"`
	OutputFile    string `yaml:"output_file"`
	HistoryFile   string `yaml:"history_file"`
	StateFile     string `yaml:"state_file"`
	BatchPDFFile  string `yaml:"batch_pdf_file"`
	Rate          string `yaml:"rate"`
	SGSTRate      string `yaml:"sgst_rate"`
	CGSTRate      string `yaml:"cgst_rate"`
	InvoicePrefix string `yaml:"invoice_prefix"`
	DateLayout    string `yaml:"date_layout"`
	DatabaseURL   string `yaml:"database_url"`
	LogLevel      string `yaml:"log_level"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          "5000",
		TemplateFile:  "invoice.docx",
		OutputFile:    "latest_invoice.docx",
		HistoryFile:   "invoice_history.csv",
		StateFile:     "app_state.json",
		BatchPDFFile:  "selected_invoices.pdf",
		Rate:          decimal.RequireFromString("950.00"),
		SGSTRate:      decimal.RequireFromString("0.09"),
		CGSTRate:      decimal.RequireFromString("0.09"),
		InvoicePrefix: "LSG/2526",
		DateLayout:    "02/01/2006",
		LogLevel:      "info",
	}
}

// LoadFile overlays the YAML file at path on top of Default.
// Keys missing from the file keep their default value.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Host, fc.Host)
	setString(&cfg.Port, fc.Port)
	setString(&cfg.TemplateFile, fc.TemplateFile)
	setString(&cfg.OutputFile, fc.OutputFile)
	setString(&cfg.HistoryFile, fc.HistoryFile)
	setString(&cfg.StateFile, fc.StateFile)
	setString(&cfg.BatchPDFFile, fc.BatchPDFFile)
	setString(&cfg.InvoicePrefix, fc.InvoicePrefix)
	setString(&cfg.DateLayout, fc.DateLayout)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.LogLevel, fc.LogLevel)

	rates := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"rate", fc.Rate, &cfg.Rate},
		{"sgst_rate", fc.SGSTRate, &cfg.SGSTRate},
		{"cgst_rate", fc.CGSTRate, &cfg.CGSTRate},
	}
	for _, r := range rates {
		if r.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(r.raw)
		if err != nil {
			return cfg, fmt.Errorf("config %s: invalid decimal %q: %w", r.name, r.raw, err)
		}
		*r.dst = d
	}

	return cfg, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// SeedInvoice is suggested when no previous invoice number is known.
func (c Config) SeedInvoice() string {
	return c.InvoicePrefix + "/1"
}

// DefaultLastInvoice stands in for a missing or unreadable state file.
func (c Config) DefaultLastInvoice() string {
	return c.InvoicePrefix + "/0"
}

// Validate reports the first problem that would make the server unusable.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	paths := map[string]string{
		"template_file":  c.TemplateFile,
		"output_file":    c.OutputFile,
		"history_file":   c.HistoryFile,
		"state_file":     c.StateFile,
		"batch_pdf_file": c.BatchPDFFile,
	}
	for name, p := range paths {
		if p == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if c.InvoicePrefix == "" {
		return errors.New("invoice_prefix is required")
	}
	if c.DateLayout == "" {
		return errors.New("date_layout is required")
	}
	if c.Rate.IsNegative() || c.SGSTRate.IsNegative() || c.CGSTRate.IsNegative() {
		return errors.New("rates must not be negative")
	}
	return nil
}
