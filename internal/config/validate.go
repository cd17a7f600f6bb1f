package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var knownAPIVersions = map[string]struct{}{"1": {}, "2": {}, "index": {}}

// Validate ensures the configuration is usable. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateProject()...)
	errs = append(errs, c.validateProcessing()...)
	errs = append(errs, c.validateFilter()...)
	errs = append(errs, c.validateThermo()...)
	errs = append(errs, c.validateMerge()...)
	errs = append(errs, c.validateLogging()...)
	return errors.Join(errs...)
}

// RequireProject reports a missing PRIDE project id.
func (c *Config) RequireProject() error {
	if strings.TrimSpace(c.Project.ID) == "" {
		return errors.New("project.id is missing; pass --project or set it in the config file")
	}
	return nil
}

func (c *Config) validatePaths() []error {
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		return []error{errors.New("paths.storage_dir must not be empty")}
	}
	return nil
}

func (c *Config) validateProject() []error {
	var errs []error
	for _, version := range c.Project.APIVersions {
		if _, ok := knownAPIVersions[version]; !ok {
			errs = append(errs, fmt.Errorf("project.api_versions: unknown version %q", version))
		}
		if version == "index" && c.Project.IndexURL == "" {
			errs = append(errs, errors.New("project.index_url is required for the index listing source"))
		}
	}
	if _, err := url.Parse(c.Project.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("project.base_url: %w", err))
	}
	if c.Project.IndexURL != "" && strings.Count(c.Project.IndexURL, "%s") != 1 {
		errs = append(errs, errors.New("project.index_url must contain exactly one %s placeholder"))
	}
	return errs
}

func (c *Config) validateProcessing() []error {
	var errs []error
	if c.Processing.MaxItems < 0 {
		errs = append(errs, errors.New("processing.max_items must be >= 0"))
	}
	if c.Processing.ThreadCount < 0 {
		errs = append(errs, errors.New("processing.thread_count must be >= 0"))
	}
	return errs
}

func (c *Config) validateFilter() []error {
	var errs []error
	if strings.TrimSpace(c.Filter.OrSeparator) == "" {
		errs = append(errs, errors.New("filter.or_separator must not be blank"))
	}
	if _, err := regexp.Compile(c.Filter.Comparator); err != nil {
		errs = append(errs, fmt.Errorf("filter.comparator: %w", err))
	}
	return errs
}

func (c *Config) validateThermo() []error {
	if _, ok := ThermoOutputFormats[c.Thermo.OutputFormat]; !ok {
		return []error{fmt.Errorf("thermo.output_format: unsupported format %q", c.Thermo.OutputFormat)}
	}
	return nil
}

func (c *Config) validateMerge() []error {
	var errs []error
	if c.Merge.PrefixTolerance < 0 {
		errs = append(errs, errors.New("merge.prefix_tolerance must be >= 0"))
	}
	if len(c.Merge.MzMLKeys) != len(c.Merge.MzIDKeys) {
		errs = append(errs, errors.New("merge.mzml_keys and merge.mzid_keys must have the same length"))
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported level %q", c.Logging.Level))
	}
	return errs
}
