// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/aptpublish/lib/archive"
	"github.com/bureau-foundation/aptpublish/lib/index"
)

// EnvVar names the environment variable [Load] reads the config path
// from.
const EnvVar = "APTPUBLISH_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the publisher configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths      PathsConfig      `yaml:"paths"`
	Logging    LoggingConfig    `yaml:"logging"`
	Publishing PublishingConfig `yaml:"publishing"`

	Distributions []DistributionConfig `yaml:"distributions"`
	Archives      []ArchiveConfig      `yaml:"archives"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Empty fields leave the base value alone.
type ConfigOverrides struct {
	Paths      *PathsConfig      `yaml:"paths,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty"`
	Publishing *PublishingConfig `yaml:"publishing,omitempty"`
}

// PathsConfig configures directory locations. Every path may use
// ${APTPUBLISH_ROOT}, ${HOME} and ${VAR:-default}.
type PathsConfig struct {
	// Root is the base directory the defaults below are relative to.
	Root string `yaml:"root"`

	DistroRoot     string `yaml:"distro_root"`
	PPARoot        string `yaml:"ppa_root"`
	PrivatePPARoot string `yaml:"private_ppa_root"`
	PPAMetaRoot    string `yaml:"ppa_meta_root"`
	CopyRoot       string `yaml:"copy_root"`

	// CatalogDB is the SQLite publication catalog.
	CatalogDB string `yaml:"catalog_db"`

	// Keyring is the directory of OpenPGP secret keys used to sign
	// Release files.
	Keyring string `yaml:"keyring"`

	// AgeIdentity is the age identity file that decrypts *.asc.age
	// keys in Keyring. Optional when no key is sealed.
	AgeIdentity string `yaml:"age_identity"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text, json or auto (text on a terminal).
	Format string `yaml:"format"`
}

// PublishingConfig holds settings shared by every archive.
type PublishingConfig struct {
	// Encodings are compressed index forms written in addition to
	// gzip and bzip2: any of gzip, bzip2, xz, zstd.
	Encodings []index.Encoding `yaml:"encodings"`

	// CreateAliases maintains development series aliases after each
	// run.
	CreateAliases *bool `yaml:"create_aliases,omitempty"`
}

// DistributionConfig describes one distribution and its series.
type DistributionConfig struct {
	Name                   string         `yaml:"name"`
	DisplayName            string         `yaml:"display_name"`
	DevelopmentSeriesAlias string         `yaml:"development_series_alias"`
	Series                 []SeriesConfig `yaml:"series"`
}

// SeriesConfig describes one series.
type SeriesConfig struct {
	Name        string               `yaml:"name"`
	DisplayName string               `yaml:"display_name"`
	Version     string               `yaml:"version"`
	Status      archive.SeriesStatus `yaml:"status"`
	Components  []string             `yaml:"components"`

	Architectures         []string `yaml:"architectures"`
	DisabledArchitectures []string `yaml:"disabled_architectures"`

	BackportsNotAutomatic bool `yaml:"backports_not_automatic"`

	// IncludeLongDescriptions defaults to true.
	IncludeLongDescriptions *bool `yaml:"include_long_descriptions,omitempty"`
}

// ArchiveConfig describes one archive. The catalog's archive state
// overrides Owner, Name, Status and Publish once the archive has been
// registered.
type ArchiveConfig struct {
	ID           int64           `yaml:"id"`
	Distribution string          `yaml:"distribution"`
	Purpose      archive.Purpose `yaml:"purpose"`
	Owner        string          `yaml:"owner"`
	Name         string          `yaml:"name"`
	DisplayName  string          `yaml:"display_name"`
	Private      bool            `yaml:"private"`

	// Publish defaults to true.
	Publish *bool `yaml:"publish,omitempty"`

	PublishDebugSymbols bool   `yaml:"publish_debug_symbols"`
	SigningKey          string `yaml:"signing_key"`

	// BuilddSecretFile holds the password of the buildd user of a
	// private archive.
	BuilddSecretFile string `yaml:"buildd_secret_file"`

	// SubscribersFile is a YAML map of user name to token.
	SubscribersFile string `yaml:"subscribers_file"`
}

// Ref returns the archive reference used on the command line:
// "primary", "partner", "copy/<name>" or "ppa:<owner>/<name>".
func (a ArchiveConfig) Ref() string {
	switch a.Purpose {
	case archive.PPA:
		return "ppa:" + a.Owner + "/" + a.Name
	case archive.Copy:
		return "copy/" + a.Name
	default:
		return a.Purpose.String()
	}
}

// Default returns the default configuration. Paths are templates
// expanded against the root after the file is loaded.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:           "/srv/aptpublish",
			DistroRoot:     "${APTPUBLISH_ROOT}/archive",
			PPARoot:        "${APTPUBLISH_ROOT}/ppa",
			PrivatePPARoot: "${APTPUBLISH_ROOT}/private-ppa",
			PPAMetaRoot:    "${APTPUBLISH_ROOT}/ppa-meta",
			CopyRoot:       "${APTPUBLISH_ROOT}/copy",
			CatalogDB:      "${APTPUBLISH_ROOT}/catalog.db",
			Keyring:        "${APTPUBLISH_ROOT}/keyring",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by APTPUBLISH_CONFIG.
// There is no fallback location.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your aptpublish.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The result
// is not validated; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults, applies the
// environment overrides and expands path variables.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if paths := overrides.Paths; paths != nil {
		override(&c.Paths.Root, paths.Root)
		override(&c.Paths.DistroRoot, paths.DistroRoot)
		override(&c.Paths.PPARoot, paths.PPARoot)
		override(&c.Paths.PrivatePPARoot, paths.PrivatePPARoot)
		override(&c.Paths.PPAMetaRoot, paths.PPAMetaRoot)
		override(&c.Paths.CopyRoot, paths.CopyRoot)
		override(&c.Paths.CatalogDB, paths.CatalogDB)
		override(&c.Paths.Keyring, paths.Keyring)
		override(&c.Paths.AgeIdentity, paths.AgeIdentity)
	}
	if logging := overrides.Logging; logging != nil {
		override(&c.Logging.Level, logging.Level)
		override(&c.Logging.Format, logging.Format)
	}
	if publishing := overrides.Publishing; publishing != nil {
		if len(publishing.Encodings) > 0 {
			c.Publishing.Encodings = publishing.Encodings
		}
		if publishing.CreateAliases != nil {
			c.Publishing.CreateAliases = publishing.CreateAliases
		}
	}
}

func override(field *string, value string) {
	if value != "" {
		*field = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"APTPUBLISH_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["APTPUBLISH_ROOT"] = c.Paths.Root

	for _, field := range []*string{
		&c.Paths.DistroRoot,
		&c.Paths.PPARoot,
		&c.Paths.PrivatePPARoot,
		&c.Paths.PPAMetaRoot,
		&c.Paths.CopyRoot,
		&c.Paths.CatalogDB,
		&c.Paths.Keyring,
		&c.Paths.AgeIdentity,
	} {
		*field = expandVars(*field, vars)
	}
	for i := range c.Archives {
		c.Archives[i].BuilddSecretFile = expandVars(c.Archives[i].BuilddSecretFile, vars)
		c.Archives[i].SubscribersFile = expandVars(c.Archives[i].SubscribersFile, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"auto", "text", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of auto, text, json; got %q", c.Logging.Format))
	}

	distributions := make(map[string]bool)
	for i, distribution := range c.Distributions {
		where := fmt.Sprintf("distributions[%d]", i)
		if distribution.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if distributions[distribution.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate distribution %q", where, distribution.Name))
		}
		distributions[distribution.Name] = true
		errs = append(errs, validateSeries(where, distribution.Series)...)
	}

	ids := make(map[int64]bool)
	refs := make(map[string]bool)
	for i, a := range c.Archives {
		where := fmt.Sprintf("archives[%d]", i)
		if a.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive", where))
		} else if ids[a.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %d", where, a.ID))
		}
		ids[a.ID] = true
		if !distributions[a.Distribution] {
			errs = append(errs, fmt.Errorf("%s: unknown distribution %q", where, a.Distribution))
		}
		key := a.Distribution + " " + a.Ref()
		if refs[key] {
			errs = append(errs, fmt.Errorf("%s: duplicate archive %s in %s", where, a.Ref(), a.Distribution))
		}
		refs[key] = true
		errs = append(errs, c.validateArchive(where, a)...)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateSeries(where string, series []SeriesConfig) []error {
	var errs []error
	if len(series) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one series is required", where))
	}
	names := make(map[string]bool)
	for j, s := range series {
		seriesWhere := fmt.Sprintf("%s.series[%d]", where, j)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", seriesWhere))
		} else if names[s.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate series %q", seriesWhere, s.Name))
		}
		names[s.Name] = true
		if s.Version == "" {
			errs = append(errs, fmt.Errorf("%s: version is required", seriesWhere))
		}
		if len(s.Components) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one component is required", seriesWhere))
		}
		if len(s.Architectures) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one architecture is required", seriesWhere))
		}
		for _, disabled := range s.DisabledArchitectures {
			if !slices.Contains(s.Architectures, disabled) {
				errs = append(errs, fmt.Errorf("%s: disabled architecture %q is not listed in architectures", seriesWhere, disabled))
			}
		}
	}
	return errs
}

func (c *Config) validateArchive(where string, a ArchiveConfig) []error {
	var errs []error
	switch a.Purpose {
	case archive.Primary, archive.Partner:
		if c.Paths.DistroRoot == "" {
			errs = append(errs, fmt.Errorf("%s: paths.distro_root is required", where))
		}
	case archive.Copy:
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("%s: copy archives need a name", where))
		}
		if c.Paths.CopyRoot == "" {
			errs = append(errs, fmt.Errorf("%s: paths.copy_root is required", where))
		}
	case archive.PPA:
		if a.Owner == "" || a.Name == "" {
			errs = append(errs, fmt.Errorf("%s: PPAs need an owner and a name", where))
		}
		root := c.Paths.PPARoot
		if a.Private {
			root = c.Paths.PrivatePPARoot
		}
		if root == "" || c.Paths.PPAMetaRoot == "" {
			errs = append(errs, fmt.Errorf("%s: PPA roots are not configured", where))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: purpose is required", where))
	}
	if a.Private && a.BuilddSecretFile == "" {
		errs = append(errs, fmt.Errorf("%s: private archives need buildd_secret_file", where))
	}
	return errs
}

// SlogLevel parses Logging.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Encodings returns the index encodings to write: gzip and bzip2
// followed by any configured extras, without duplicates.
func (c *Config) Encodings() []index.Encoding {
	encodings := slices.Clone(index.DefaultEncodings)
	for _, encoding := range c.Publishing.Encodings {
		if !slices.Contains(encodings, encoding) {
			encodings = append(encodings, encoding)
		}
	}
	return encodings
}

// CreateAliases reports whether series aliases are maintained. It
// defaults to true.
func (c *Config) CreateAliases() bool {
	return c.Publishing.CreateAliases == nil || *c.Publishing.CreateAliases
}

// Roots returns the archive roots for layout computation.
func (c *Config) Roots() archive.Roots {
	return archive.Roots{
		DistroRoot:     c.Paths.DistroRoot,
		PPARoot:        c.Paths.PPARoot,
		PrivatePPARoot: c.Paths.PrivatePPARoot,
		PPAMetaRoot:    c.Paths.PPAMetaRoot,
		CopyRoot:       c.Paths.CopyRoot,
	}
}

// DefaultDistribution returns the name of the only configured
// distribution, or "" when there are several.
func (c *Config) DefaultDistribution() string {
	if len(c.Distributions) == 1 {
		return c.Distributions[0].Name
	}
	return ""
}

// Distribution builds the model of a configured distribution with its
// series ordered newest version first.
func (c *Config) Distribution(name string) (*archive.Distribution, error) {
	position := slices.IndexFunc(c.Distributions, func(d DistributionConfig) bool { return d.Name == name })
	if position < 0 {
		return nil, fmt.Errorf("unknown distribution %q", name)
	}
	dc := c.Distributions[position]
	distribution := &archive.Distribution{
		Name:                   dc.Name,
		DisplayName:            dc.DisplayName,
		DevelopmentSeriesAlias: dc.DevelopmentSeriesAlias,
	}
	if distribution.DisplayName == "" {
		distribution.DisplayName = strings.ToUpper(dc.Name[:1]) + dc.Name[1:]
	}
	for _, sc := range dc.Series {
		series := &archive.Series{
			Name:                    sc.Name,
			DisplayName:             sc.DisplayName,
			Version:                 sc.Version,
			Status:                  sc.Status,
			Components:              slices.Clone(sc.Components),
			BackportsNotAutomatic:   sc.BackportsNotAutomatic,
			IncludeLongDescriptions: sc.IncludeLongDescriptions == nil || *sc.IncludeLongDescriptions,
		}
		if series.DisplayName == "" {
			series.DisplayName = sc.Name
		}
		for _, tag := range sc.Architectures {
			series.Architectures = append(series.Architectures, archive.Architecture{
				Tag:     tag,
				Enabled: !slices.Contains(sc.DisabledArchitectures, tag),
			})
		}
		distribution.Series = append(distribution.Series, series)
	}
	distribution.Series = distribution.NewestFirst()
	return distribution, nil
}
