// Package config loads the optional HCL configuration file of the registry
// and serving processes.
//
// Values may reference the process environment through the env object:
//
//	listen_addr = "0.0.0.0:8080"
//	storage     = ["s3://${env.AWS_ACCESS_KEY_ID}:${env.AWS_SECRET_ACCESS_KEY}@ml-platform-models/?region=us-east-1"]
//	namespace   = "ml-platform-models"
//
//	cors {
//	  allowed_origins = ["http://localhost:3000"]
//	}
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config mirrors the command line flags. Zero values mean "not set".
type Config struct {
	ListenAddr           string      `hcl:"listen_addr,optional"`
	MetricsAddr          string      `hcl:"metrics_addr,optional"`
	Storage              []string    `hcl:"storage,optional"`
	Namespace            string      `hcl:"namespace,optional"`
	CascadeDelete        bool        `hcl:"cascade_delete,optional"`
	EncryptionPassphrase string      `hcl:"encryption_passphrase,optional"`
	MaxUploadBytes       int64       `hcl:"max_upload_bytes,optional"`
	ModelsDir            string      `hcl:"models_dir,optional"`
	CORS                 *CORSConfig `hcl:"cors,block"`
}

// CORSConfig enables CORS. An empty origin list allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

// LoadFile parses and decodes the HCL file at path.
func LoadFile(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse decodes HCL source held in memory. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Config, error) {
	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, EvalContext(os.Environ()), &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	if cfg.MaxUploadBytes < 0 {
		return nil, fmt.Errorf("invalid config %s: max_upload_bytes must not be negative", filename)
	}
	return &cfg, nil
}

// EvalContext exposes environ (KEY=value pairs) as the env object.
func EvalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = cty.StringVal(value)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
