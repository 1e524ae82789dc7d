package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/propdesk/prop-pipeline/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	DBURL              string
	InternalJobToken   string

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string

	SportsfeedBaseURL               string
	SportsfeedToken                 string
	SportsfeedTimeout               time.Duration
	SportsfeedMaxRetries            int
	SportsfeedCircuitEnabled        bool
	SportsfeedCircuitFailureCount   int
	SportsfeedCircuitOpenTimeout    time.Duration
	SportsfeedCircuitHalfOpenMaxReq int

	OddsboardBaseURL        string
	OddsboardToken          string
	OddsboardTimeout        time.Duration
	OddsboardMaxRetries     int
	OddsboardMonthlyCalls   int
	OddsboardDailyCalls     int
	OddsboardHourlyCalls    int
	OddsboardMinInterval    time.Duration
	OddsboardCircuitEnabled bool

	ValidationWorkers        int
	ValidationMaxAttempts    int
	ValidationFinalityWindow time.Duration

	SyncSports       []string
	SyncDaysAhead    int
	CronEnabled      bool
	CronSyncSpec     string
	CronValidateSpec string
	CronSweepSpec    string

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	logLevel, err := logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	readTimeout, err := getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	pprofEnabled, err := getEnvAsBool("PPROF_ENABLED", appEnv != EnvProd)
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := getEnvAsBool("PYROSCOPE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}

	sportsfeedTimeout, err := getEnvAsDuration("SPORTSFEED_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, err
	}
	sportsfeedMaxRetries, err := getEnvAsInt("SPORTSFEED_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse SPORTSFEED_MAX_RETRIES: %w", err)
	}
	sportsfeedCircuitEnabled, err := getEnvAsBool("SPORTSFEED_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	sportsfeedCircuitFailureCount, err := getEnvAsInt("SPORTSFEED_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse SPORTSFEED_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	sportsfeedCircuitOpenTimeout, err := getEnvAsDuration("SPORTSFEED_CIRCUIT_OPEN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	sportsfeedCircuitHalfOpenMaxReq, err := getEnvAsInt("SPORTSFEED_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse SPORTSFEED_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	oddsboardTimeout, err := getEnvAsDuration("ODDSBOARD_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	oddsboardMaxRetries, err := getEnvAsInt("ODDSBOARD_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDSBOARD_MAX_RETRIES: %w", err)
	}
	oddsboardMonthly, err := getEnvAsInt("ODDSBOARD_MONTHLY_CALLS", 450)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDSBOARD_MONTHLY_CALLS: %w", err)
	}
	oddsboardDaily, err := getEnvAsInt("ODDSBOARD_DAILY_CALLS", 15)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDSBOARD_DAILY_CALLS: %w", err)
	}
	oddsboardHourly, err := getEnvAsInt("ODDSBOARD_HOURLY_CALLS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDSBOARD_HOURLY_CALLS: %w", err)
	}
	oddsboardMinInterval, err := getEnvAsDuration("ODDSBOARD_MIN_INTERVAL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	oddsboardCircuitEnabled, err := getEnvAsBool("ODDSBOARD_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	validationWorkers, err := getEnvAsInt("VALIDATION_WORKERS", 8)
	if err != nil {
		return Config{}, fmt.Errorf("parse VALIDATION_WORKERS: %w", err)
	}
	validationMaxAttempts, err := getEnvAsInt("VALIDATION_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse VALIDATION_MAX_ATTEMPTS: %w", err)
	}
	validationFinalityWindow, err := getEnvAsDuration("VALIDATION_FINALITY_WINDOW", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	syncDaysAhead, err := getEnvAsInt("SYNC_DAYS_AHEAD", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_DAYS_AHEAD: %w", err)
	}
	cronEnabled, err := getEnvAsBool("CRON_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("SERVICE_NAME", "prop-pipeline"),
		ServiceVersion:     getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DBURL:              strings.TrimSpace(getEnv("DB_URL", "")),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),

		PprofEnabled: pprofEnabled,
		PprofAddr:    getEnv("PPROF_ADDR", "localhost:6060"),

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAppName:           getEnv("PYROSCOPE_APP_NAME", "prop-pipeline"),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),

		SportsfeedBaseURL:               strings.TrimSpace(getEnv("SPORTSFEED_BASE_URL", "")),
		SportsfeedToken:                 strings.TrimSpace(getEnv("SPORTSFEED_TOKEN", "")),
		SportsfeedTimeout:               sportsfeedTimeout,
		SportsfeedMaxRetries:            sportsfeedMaxRetries,
		SportsfeedCircuitEnabled:        sportsfeedCircuitEnabled,
		SportsfeedCircuitFailureCount:   sportsfeedCircuitFailureCount,
		SportsfeedCircuitOpenTimeout:    sportsfeedCircuitOpenTimeout,
		SportsfeedCircuitHalfOpenMaxReq: sportsfeedCircuitHalfOpenMaxReq,

		OddsboardBaseURL:        strings.TrimSpace(getEnv("ODDSBOARD_BASE_URL", "")),
		OddsboardToken:          strings.TrimSpace(getEnv("ODDSBOARD_TOKEN", "")),
		OddsboardTimeout:        oddsboardTimeout,
		OddsboardMaxRetries:     oddsboardMaxRetries,
		OddsboardMonthlyCalls:   oddsboardMonthly,
		OddsboardDailyCalls:     oddsboardDaily,
		OddsboardHourlyCalls:    oddsboardHourly,
		OddsboardMinInterval:    oddsboardMinInterval,
		OddsboardCircuitEnabled: oddsboardCircuitEnabled,

		ValidationWorkers:        validationWorkers,
		ValidationMaxAttempts:    validationMaxAttempts,
		ValidationFinalityWindow: validationFinalityWindow,

		SyncSports:       splitCSV(strings.ToLower(getEnv("SYNC_SPORTS", "nfl,nba"))),
		SyncDaysAhead:    syncDaysAhead,
		CronEnabled:      cronEnabled,
		CronSyncSpec:     getEnv("CRON_SYNC_SPEC", "0 */6 * * *"),
		CronValidateSpec: getEnv("CRON_VALIDATE_SPEC", "30 * * * *"),
		CronSweepSpec:    getEnv("CRON_SWEEP_SPEC", "*/15 * * * *"),

		LogLevel: logLevel,
	}, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}

	return out, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}
