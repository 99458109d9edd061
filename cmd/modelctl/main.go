package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ruteri/model-registry-backend/api/modelhandler"
	"github.com/ruteri/model-registry-backend/api/servinghandler"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"MODEL_REGISTRY_ADDR"},
	Usage:   "model registry API address",
}
var flagServingAddr = &cli.StringFlag{
	Name:    "serving-addr",
	Value:   "http://127.0.0.1:8081",
	EnvVars: []string{"MODEL_SERVING_ADDR"},
	Usage:   "model serving API address",
}

func registryClient(cCtx *cli.Context) *modelhandler.Client {
	return modelhandler.NewClient(cCtx.String(flagServerAddr.Name))
}

func servingClient(cCtx *cli.Context) *servinghandler.Client {
	return servinghandler.NewClient(cCtx.String(flagServingAddr.Name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArgs(cCtx *cli.Context, n int, usage string) error {
	if cCtx.NArg() != n {
		return fmt.Errorf("usage: %s %s", cCtx.Command.Name, usage)
	}
	return nil
}

// idCommand builds a command taking a single model id argument.
func idCommand(name, usage string, action func(cCtx *cli.Context, id string) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<model-id>",
		Action: func(cCtx *cli.Context) error {
			if err := requireArgs(cCtx, 1, "<model-id>"); err != nil {
				return err
			}
			return action(cCtx, cCtx.Args().First())
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "modelctl",
		Usage: "Manage models in the registry and the serving process",
		Flags: []cli.Flag{
			flagServerAddr,
			flagServingAddr,
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "register a new model",
				ArgsUsage: "<name> <version>",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 2, "<name> <version>"); err != nil {
						return err
					}
					model, err := registryClient(cCtx).CreateModel(cCtx.Context, cCtx.Args().Get(0), cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					return printJSON(model)
				},
			},
			{
				Name:  "list",
				Usage: "list registered models",
				Action: func(cCtx *cli.Context) error {
					models, err := registryClient(cCtx).ListModels(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(models)
				},
			},
			idCommand("get", "show one model", func(cCtx *cli.Context, id string) error {
				model, err := registryClient(cCtx).GetModel(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(model)
			}),
			idCommand("delete", "delete a model record", func(cCtx *cli.Context, id string) error {
				if err := registryClient(cCtx).DeleteModel(cCtx.Context, id); err != nil {
					return err
				}
				fmt.Printf("Model %s deleted\n", id)
				return nil
			}),
			{
				Name:      "upload",
				Usage:     "upload the artifact of a model",
				ArgsUsage: "<model-id> <file>",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 2, "<model-id> <file>"); err != nil {
						return err
					}
					resp, err := registryClient(cCtx).UploadModel(cCtx.Context, cCtx.Args().Get(0), cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "download",
				Usage:     "download the artifact of a model",
				ArgsUsage: "<model-id> <file>",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 2, "<model-id> <file>"); err != nil {
						return err
					}
					f, err := os.Create(cCtx.Args().Get(1))
					if err != nil {
						return err
					}
					defer f.Close()

					n, err := registryClient(cCtx).DownloadArtifact(cCtx.Context, cCtx.Args().Get(0), f)
					if err != nil {
						return err
					}
					fmt.Printf("Wrote %d bytes to %s\n", n, f.Name())
					return nil
				},
			},
			idCommand("activate", "mark an inactive model active", func(cCtx *cli.Context, id string) error {
				model, err := registryClient(cCtx).Activate(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(model)
			}),
			idCommand("deactivate", "mark an active model inactive", func(cCtx *cli.Context, id string) error {
				model, err := registryClient(cCtx).Deactivate(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(model)
			}),
			idCommand("verify", "check that the stored artifact still exists", func(cCtx *cli.Context, id string) error {
				model, err := registryClient(cCtx).Verify(cCtx.Context, id)
				if err != nil {
					return err
				}
				return printJSON(model)
			}),
			idCommand("load", "load a model into the serving process", func(cCtx *cli.Context, id string) error {
				msg, err := servingClient(cCtx).LoadModel(cCtx.Context, id)
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			}),
			idCommand("unload", "unload the model from the serving process", func(cCtx *cli.Context, id string) error {
				msg, err := servingClient(cCtx).UnloadModel(cCtx.Context, id)
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			}),
			{
				Name:      "predict",
				Usage:     "classify four features with the loaded model",
				ArgsUsage: "<sepal-length> <sepal-width> <petal-length> <petal-width>",
				Action: func(cCtx *cli.Context) error {
					features := make([]float32, 0, cCtx.NArg())
					for _, arg := range cCtx.Args().Slice() {
						v, err := strconv.ParseFloat(arg, 32)
						if err != nil {
							return fmt.Errorf("invalid feature %q: %w", arg, err)
						}
						features = append(features, float32(v))
					}
					prediction, err := servingClient(cCtx).Predict(cCtx.Context, features)
					if err != nil {
						return err
					}
					return printJSON(prediction)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
