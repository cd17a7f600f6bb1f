package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Normalize expands paths, trims values and fills empty fields with defaults.
// It is idempotent, so callers re-run it after applying flag overrides.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProject()
	c.normalizeProcessing()
	c.normalizeFilter()
	c.normalizeDisplay()
	c.normalizeDownload()
	c.normalizeThermo()
	c.normalizeMerge()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(strings.TrimSpace(c.Paths.StorageDir)); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	c.Paths.LogFile = strings.TrimSpace(c.Paths.LogFile)
	return nil
}

func (c *Config) normalizeProject() {
	c.Project.ID = strings.TrimSpace(c.Project.ID)
	c.Project.BaseURL = strings.TrimRight(strings.TrimSpace(c.Project.BaseURL), "/")
	if c.Project.BaseURL == "" {
		c.Project.BaseURL = defaultPrideBaseURL
	}
	c.Project.IndexURL = strings.TrimSpace(c.Project.IndexURL)
	versions := dedupe(c.Project.APIVersions, strings.ToLower)
	if len(versions) == 0 {
		versions = append([]string(nil), DefaultAPIVersions...)
	}
	c.Project.APIVersions = versions
}

func (c *Config) normalizeProcessing() {
	fold := cases.Fold()
	c.Processing.ValidExtensions = dedupe(c.Processing.ValidExtensions, func(ext string) string {
		return strings.TrimPrefix(fold.String(ext), ".")
	})
	filters := make([]string, 0, len(c.Processing.Filters))
	for _, expr := range c.Processing.Filters {
		if expr = strings.TrimSpace(expr); expr != "" {
			filters = append(filters, expr)
		}
	}
	c.Processing.Filters = filters
}

func (c *Config) normalizeFilter() {
	if c.Filter.OrSeparator == "" {
		c.Filter.OrSeparator = defaultOrSeparator
	}
	if c.Filter.Comparator == "" {
		c.Filter.Comparator = defaultComparator
	}
}

func (c *Config) normalizeDisplay() {
	columns := make([]string, 0, len(c.Display.ShownColumns))
	for _, col := range c.Display.ShownColumns {
		if col = strings.TrimSpace(col); col != "" {
			columns = append(columns, col)
		}
	}
	c.Display.ShownColumns = columns
	if c.Display.PreviewRows < 0 {
		c.Display.PreviewRows = 0
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultTimeoutSeconds
	}
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeThermo() {
	c.Thermo.DockerBinary = strings.TrimSpace(c.Thermo.DockerBinary)
	if c.Thermo.DockerBinary == "" {
		c.Thermo.DockerBinary = defaultDockerBinary
	}
	c.Thermo.Image = strings.TrimSpace(c.Thermo.Image)
	if c.Thermo.Image == "" {
		c.Thermo.Image = defaultThermoImage
	}
	c.Thermo.ContainerName = strings.TrimSpace(c.Thermo.ContainerName)
	if c.Thermo.ContainerName == "" {
		c.Thermo.ContainerName = defaultThermoContainer
	}
	c.Thermo.OutputFormat = strings.ToLower(strings.TrimSpace(c.Thermo.OutputFormat))
	if c.Thermo.OutputFormat == "" {
		c.Thermo.OutputFormat = defaultThermoFormat
	}
}

func (c *Config) normalizeMerge() {
	if strings.TrimSpace(c.Merge.Suffix) == "" {
		c.Merge.Suffix = defaultMergeSuffix
	}
	if len(c.Merge.MzMLKeys) == 0 {
		c.Merge.MzMLKeys = []string{"id"}
	}
	if len(c.Merge.MzIDKeys) == 0 {
		c.Merge.MzIDKeys = []string{"spectrumID"}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// dedupe trims, maps and removes empty or repeated values keeping the first occurrence.
func dedupe(values []string, mapper func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := mapper(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
