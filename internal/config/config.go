// Package config loads the downloader configuration from YAML and applies
// REDCAPDL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"redcapdl/internal/accumulator"
	"redcapdl/internal/blob"
	"redcapdl/internal/cleaning"
	"redcapdl/internal/export"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REDCAPDL_"

// Config is the full downloader configuration.
type Config struct {
	// Tokens are REDCap API tokens, one per project, processed in order.
	Tokens         []string `yaml:"tokens"`
	APIURL         string   `yaml:"api_url"`
	DownloadFolder string   `yaml:"download_folder"`
	// LogLevel is DEBUG or INFO.
	LogLevel string `yaml:"log_level"`

	IDTag             string       `yaml:"id_tag"`
	ReportTextColumns []string     `yaml:"report_text_columns"`
	Replacements      Replacements `yaml:"replacements"`

	DataTypes []accumulator.Rule `yaml:"data_types"`

	Export  ExportConfig  `yaml:"export"`
	Blob    BlobConfig    `yaml:"blob"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ExportConfig selects artifact formats and the key prefix.
type ExportConfig struct {
	Formats []string `yaml:"formats"`
	Prefix  string   `yaml:"prefix"`
}

// BlobConfig selects where artifacts are written. The fs driver writes to the
// download folder.
type BlobConfig struct {
	Driver string        `yaml:"driver"`
	S3     blob.S3Config `yaml:"s3"`
}

// LedgerConfig selects the run ledger backend.
type LedgerConfig struct {
	// Driver is none, memory, sqlite or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Replacements is an ordered list of literal substitutions. In YAML it is a
// mapping whose key order is kept.
type Replacements []cleaning.Replacement

// UnmarshalYAML decodes a mapping node pair by pair so document order survives.
func (r *Replacements) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("replacements: expected mapping at line %d", node.Line)
	}
	out := make(Replacements, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var oldS, newS string
		if err := node.Content[i].Decode(&oldS); err != nil {
			return fmt.Errorf("replacements key at line %d: %w", node.Content[i].Line, err)
		}
		if err := node.Content[i+1].Decode(&newS); err != nil {
			return fmt.Errorf("replacements value at line %d: %w", node.Content[i+1].Line, err)
		}
		out = append(out, cleaning.Replacement{Old: oldS, New: newS})
	}
	*r = out
	return nil
}

// MarshalYAML writes the list back as an ordered mapping.
func (r Replacements) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, rep := range r {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: rep.Old},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: rep.New})
	}
	return node, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		APIURL:         "https://redcap.usher.ed.ac.uk/api/",
		DownloadFolder: "./downloads",
		LogLevel:       "INFO",
		IDTag:          cleaning.DefaultIDTag,
		DataTypes:      append([]accumulator.Rule(nil), accumulator.DefaultRules...),
		Export:         ExportConfig{Formats: []string{string(export.FormatCSV)}},
		Blob:           BlobConfig{Driver: string(blob.DriverFilesystem)},
		Ledger:         LedgerConfig{Driver: "none"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvPrefix + "TOKENS"); v != "" {
		c.Tokens = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvPrefix + "DOWNLOAD_FOLDER"); v != "" {
		c.DownloadFolder = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "EXPORT_FORMATS"); v != "" {
		c.Export.Formats = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "BLOB_DRIVER"); v != "" {
		c.Blob.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "BLOB_S3_BUCKET"); v != "" {
		c.Blob.S3.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "BLOB_S3_REGION"); v != "" {
		c.Blob.S3.Region = v
	}
	if v := os.Getenv(EnvPrefix + "BLOB_S3_ENDPOINT"); v != "" {
		c.Blob.S3.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "BLOB_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v := os.Getenv(EnvPrefix + "LEDGER_DRIVER"); v != "" {
		c.Ledger.Driver = v
	}
	if v := os.Getenv(EnvPrefix + "LEDGER_DSN"); v != "" {
		c.Ledger.DSN = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Tokens) == 0 {
		errs = append(errs, errors.New("no REDCap tokens configured"))
	}
	for i, tok := range c.Tokens {
		if strings.TrimSpace(tok) == "" {
			errs = append(errs, fmt.Errorf("token %d is empty", i))
		}
	}
	if strings.TrimSpace(c.DownloadFolder) == "" {
		errs = append(errs, errors.New("download_folder is empty"))
	}
	if _, err := c.Formats(); err != nil {
		errs = append(errs, err)
	}
	switch blob.Driver(c.Blob.Driver) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Ledger.Driver {
	case "", "none", "memory", "sqlite":
	case "postgres":
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}
	for i, rule := range c.DataTypes {
		if strings.TrimSpace(rule.Keyword) == "" || strings.TrimSpace(rule.Label) == "" {
			errs = append(errs, fmt.Errorf("data_types[%d] needs keyword and label", i))
		}
	}
	return errors.Join(errs...)
}

// Debug reports whether debug logging is requested.
func (c *Config) Debug() bool { return strings.EqualFold(c.LogLevel, "DEBUG") }

// Formats parses the configured export formats.
func (c *Config) Formats() ([]export.Format, error) {
	out := make([]export.Format, 0, len(c.Export.Formats))
	for _, s := range c.Export.Formats {
		f, err := export.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// BlobStore returns the blob factory configuration. The fs driver is rooted
// at the download folder.
func (c *Config) BlobStore() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.DownloadFolder, S3: c.Blob.S3}
}

// CleaningOptions returns the report cleaning options.
func (c *Config) CleaningOptions() cleaning.Options {
	return cleaning.Options{
		IDTag:        c.IDTag,
		TextColumns:  append([]string(nil), c.ReportTextColumns...),
		Replacements: append([]cleaning.Replacement(nil), c.Replacements...),
	}
}
