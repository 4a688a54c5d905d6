package common

// Environment variable keys
const (
	EnvConfig        = "CLASSY_CONFIG"
	EnvLogLevel      = "CLASSY_LOG_LEVEL"
	EnvLogFormat     = "CLASSY_LOG_FORMAT"
	EnvPython        = "CLASSY_PYTHON"
	EnvModelTimeout  = "CLASSY_MODEL_TIMEOUT"
	EnvRemoteRetries = "CLASSY_REMOTE_RETRIES"
	EnvMetricsFile   = "CLASSY_METRICS_FILE"
)

// Defaults
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = LogFormatConsole
	DefaultModelTimeout  = "30s"
	DefaultRemoteRetries = 2
	DefaultEnvFile       = ".env"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)
