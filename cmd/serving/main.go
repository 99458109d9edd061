package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/model-registry-backend/api/servinghandler"
	"github.com/ruteri/model-registry-backend/cmd/flags"
	"github.com/ruteri/model-registry-backend/httpserver"
	"github.com/ruteri/model-registry-backend/serving"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "0.0.0.0:8080",
	Usage: "address to listen on for API",
}
var flagModelsDir = &cli.StringFlag{
	Name:  "models-dir",
	Value: "/app/model_storage/models",
	Usage: "directory holding {model_id}/*.model files",
}

func main() {
	app := &cli.App{
		Name:  "model-serving",
		Usage: "Serve predictions from a model stored by the registry",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagModelsDir,
			flags.LogServiceFlagFn("model-serving"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Failed to load config file", "err", err)
				return err
			}

			listenAddr := flags.String(cCtx, flagListenAddr.Name, cfg.ListenAddr)
			modelsDir := flags.String(cCtx, flagModelsDir.Name, cfg.ModelsDir)

			srv, err := serving.NewServer(modelsDir, logger)
			if err != nil {
				logger.Error("Failed to prepare models directory", "err", err)
				return err
			}

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg, listenAddr), servinghandler.NewHandler(srv, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting model serving", slog.String("modelsDir", modelsDir))
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
