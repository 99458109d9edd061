package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/model-registry-backend/api/modelhandler"
	"github.com/ruteri/model-registry-backend/cmd/flags"
	"github.com/ruteri/model-registry-backend/httpserver"
	"github.com/ruteri/model-registry-backend/interfaces"
	"github.com/ruteri/model-registry-backend/registry"
	"github.com/ruteri/model-registry-backend/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}
var flagStorage = &cli.StringSliceFlag{
	Name:  "storage",
	Value: cli.NewStringSlice("file:///app/model_storage"),
	Usage: "storage backend URI (file://, s3://, ipfs://, vault://, memory://), repeat to replicate",
}
var flagNamespace = &cli.StringFlag{
	Name:  "namespace",
	Usage: "bucket / namespace artifacts are stored under (default: bucket of the first s3:// storage, else ml-platform-models)",
}
var flagCascadeDelete = &cli.BoolFlag{
	Name:  "cascade-delete",
	Value: false,
	Usage: "delete the stored artifact together with the model record",
}
var flagMaxUploadBytes = &cli.Int64Flag{
	Name:  "max-upload-bytes",
	Value: modelhandler.DefaultMaxUploadBytes,
	Usage: "maximum size of an upload request body",
}
var flagEncryptionPassphrase = &cli.StringFlag{
	Name:    "encryption-passphrase",
	EnvVars: []string{"MODEL_REGISTRY_ENCRYPTION_PASSPHRASE"},
	Usage:   "encrypt artifacts at rest with a key derived from this passphrase",
}

func main() {
	app := &cli.App{
		Name:  "model-registry",
		Usage: "Serve the model registry API",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagStorage,
			flagNamespace,
			flagCascadeDelete,
			flagMaxUploadBytes,
			flagEncryptionPassphrase,
			flags.LogServiceFlagFn("model-registry"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Failed to load config file", "err", err)
				return err
			}

			listenAddr := flags.String(cCtx, flagListenAddr.Name, cfg.ListenAddr)
			namespace := flags.String(cCtx, flagNamespace.Name, cfg.Namespace)
			cascadeDelete := flags.Bool(cCtx, flagCascadeDelete.Name, cfg.CascadeDelete)
			maxUploadBytes := flags.Int64(cCtx, flagMaxUploadBytes.Name, cfg.MaxUploadBytes)
			passphrase := flags.String(cCtx, flagEncryptionPassphrase.Name, cfg.EncryptionPassphrase)
			storageURIs := flags.StringSlice(cCtx, flagStorage.Name, cfg.Storage)

			locations, err := parseLocations(storageURIs)
			if err != nil {
				logger.Error("Invalid storage URI", "err", err)
				return err
			}
			if namespace == "" {
				namespace = storage.NamespaceFor(locations)
			}

			backend, err := openStorage(logger, locations, passphrase)
			if err != nil {
				logger.Error("Failed to configure storage", "err", err)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if !backend.Available(ctx) {
				logger.Warn("Storage backend not available at startup", slog.String("backend", backend.LocationURI()))
			}
			cancel()

			reg := registry.New(backend, logger,
				registry.WithNamespace(namespace),
				registry.WithCascadeDelete(cascadeDelete),
			)
			handler := modelhandler.NewHandler(reg, maxUploadBytes, logger)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg, listenAddr), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting model registry",
				slog.String("storage", backend.LocationURI()),
				slog.String("namespace", namespace),
				slog.Bool("cascadeDelete", cascadeDelete))
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func parseLocations(uris []string) ([]interfaces.StorageBackendLocation, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: at least one storage URI is required", interfaces.ErrInvalidLocationURI)
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, nil
}

func openStorage(logger *slog.Logger, locations []interfaces.StorageBackendLocation, passphrase string) (interfaces.StorageBackend, error) {
	var opts []storage.FactoryOption
	if passphrase != "" {
		opts = append(opts, storage.WithEncryptionPassphrase(passphrase))
	}
	factory := storage.NewStorageBackendFactory(logger, opts...)

	if len(locations) == 1 {
		return factory.StorageBackendFor(locations[0])
	}
	return factory.CreateMultiBackend(locations)
}
