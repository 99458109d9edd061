package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/model-registry-backend/api"
	"github.com/ruteri/model-registry-backend/common"
	"github.com/ruteri/model-registry-backend/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads the --config file. Without the flag an empty config is returned.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	path := cCtx.String(ConfigFlag.Name)
	if path == "" {
		return &config.Config{}, nil
	}
	return config.LoadFile(path)
}

// ConfigureServer builds the HTTP server config from the common flags,
// letting explicitly set flags win over values from the config file.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, cfg *config.Config, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := String(cCtx, MetricsAddrFlag.Name, cfg.MetricsAddr)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	enableCORS := cCtx.Bool(CORSFlag.Name) || (!cCtx.IsSet(CORSFlag.Name) && cfg.CORS != nil)
	origins := cCtx.StringSlice(CORSOriginFlag.Name)
	if !cCtx.IsSet(CORSOriginFlag.Name) && cfg.CORS != nil {
		origins = cfg.CORS.AllowedOrigins
	}

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		ServiceName:              cCtx.String("log-service"),
		Log:                      logger,
		EnablePprof:              enablePprof,
		EnableCORS:               enableCORS,
		CORSAllowedOrigins:       origins,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              10 * time.Minute,
		WriteTimeout:             10 * time.Minute,
	}
}

// String returns the flag value if it was set explicitly, otherwise the
// non-empty file value, otherwise the flag default.
func String(cCtx *cli.Context, name string, fileValue string) string {
	if cCtx.IsSet(name) || fileValue == "" {
		return cCtx.String(name)
	}
	return fileValue
}

// StringSlice follows the same precedence as String.
func StringSlice(cCtx *cli.Context, name string, fileValue []string) []string {
	if cCtx.IsSet(name) || len(fileValue) == 0 {
		return cCtx.StringSlice(name)
	}
	return fileValue
}

// Int64 follows the same precedence as String; zero counts as unset.
func Int64(cCtx *cli.Context, name string, fileValue int64) int64 {
	if cCtx.IsSet(name) || fileValue == 0 {
		return cCtx.Int64(name)
	}
	return fileValue
}

// Bool returns the flag if set explicitly, otherwise flag default || fileValue.
func Bool(cCtx *cli.Context, name string, fileValue bool) bool {
	if cCtx.IsSet(name) {
		return cCtx.Bool(name)
	}
	return cCtx.Bool(name) || fileValue
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"MODEL_REGISTRY_CONFIG"},
	Usage:   "optional HCL config file, explicitly set flags take precedence",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 5,
	Usage: "seconds to report not ready before shutting down",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}
var CORSFlag = &cli.BoolFlag{
	Name:  "cors",
	Value: false,
	Usage: "add CORS headers for browser dashboards",
}
var CORSOriginFlag = &cli.StringSliceFlag{
	Name:  "cors-origin",
	Usage: "allowed CORS origin, repeatable; any origin if omitted",
}

var CommonFlags = []cli.Flag{
	ConfigFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
	CORSFlag,
	CORSOriginFlag,
}
