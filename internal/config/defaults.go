package config

const (
	defaultStorageDir      = "."
	defaultLogFile         = "mmproteo.log"
	defaultPrideBaseURL    = "https://www.ebi.ac.uk"
	defaultThreadCount     = 1
	defaultOrSeparator     = "||"
	defaultComparator      = "[!=]="
	defaultTimeoutSeconds  = 600
	defaultUserAgent       = "mmproteo/dev"
	defaultDockerBinary    = "docker"
	defaultThermoImage     = "quay.io/biocontainers/thermorawfileparser:1.2.3--1"
	defaultThermoContainer = "thermorawfileparser"
	defaultThermoFormat    = "mgf"
	defaultMergeSuffix     = "_mzmlid.sqlite"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// DefaultBaseURL is the PRIDE archive host.
const DefaultBaseURL = defaultPrideBaseURL

// ThermoOutputFormats maps ThermoRawFileParser output format names to the ids
// accepted by its -f option.
var ThermoOutputFormats = map[string]int{
	"mgf":     0,
	"mzml":    1,
	"imzml":   2,
	"parquet": 3,
}

// DefaultAPIVersions lists the PRIDE listing sources tried when none are configured.
var DefaultAPIVersions = []string{"2", "1"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogFile:    defaultLogFile,
		},
		Project: Project{
			APIVersions: append([]string(nil), DefaultAPIVersions...),
			BaseURL:     defaultPrideBaseURL,
		},
		Processing: Processing{
			ThreadCount:  defaultThreadCount,
			CountFailed:  false,
			CountSkipped: true,
			SkipExisting: true,
			FailEarly:    true,
		},
		Filter: Filter{
			OrSeparator:    defaultOrSeparator,
			Comparator:     defaultComparator,
			UnknownMatches: true,
		},
		Display: Display{
			URLEncodeLinks: true,
		},
		Download: Download{
			TimeoutSeconds: defaultTimeoutSeconds,
			RewriteFTP:     true,
			UserAgent:      defaultUserAgent,
		},
		Thermo: Thermo{
			DockerBinary:  defaultDockerBinary,
			Image:         defaultThermoImage,
			ContainerName: defaultThermoContainer,
			OutputFormat:  defaultThermoFormat,
		},
		Merge: Merge{
			Suffix:   defaultMergeSuffix,
			MzMLKeys: []string{"id"},
			MzIDKeys: []string{"spectrumID"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
