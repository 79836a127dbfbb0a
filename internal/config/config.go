// Package config resolves the settings the stack assembler needs.
//
// Secrets come from the process environment, falling back to a dotenv file
// (../image/.env by default). The process environment always wins. Nothing
// here performs network I/O.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Secret names read from the environment.
const (
	PineconeAPIKey = "PINECONE_API_KEY"
	APIKey         = "API_KEY"
)

// Defaults for non-secret settings.
const (
	DefaultEnvFile    = "../image/.env"
	DefaultStackName  = "TaCdkInfraStack"
	DefaultImageDir   = "../image"
	DefaultEntryPoint = "main.handler"
	DefaultQualifier  = "hnb659fds"
)

// Environment variables for non-secret settings.
const (
	envStackName  = "TASTACK_STACK_NAME"
	envImageDir   = "TASTACK_IMAGE_DIR"
	envImageURI   = "TASTACK_IMAGE_URI"
	envEntryPoint = "TASTACK_ENTRY_POINT"
	envQualifier  = "TASTACK_QUALIFIER"
)

// ErrMissingSecret is matched by every *MissingSecretError.
var ErrMissingSecret = errors.New("missing required secret")

// MissingSecretError names a required secret that is unset or empty.
type MissingSecretError struct {
	Name string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("%s environment variable is not set", e.Name)
}

// Is reports whether target is ErrMissingSecret.
func (e *MissingSecretError) Is(target error) bool {
	return target == ErrMissingSecret
}

// RequiredSecrets returns the required secret names in resolution order.
func RequiredSecrets() []string {
	return []string{PineconeAPIKey, APIKey}
}

// Options controls where Load looks. Non-empty fields override the
// environment and the dotenv file.
type Options struct {
	// EnvFile is the dotenv file. Empty means DefaultEnvFile.
	EnvFile string
	// RequireEnvFile turns a missing EnvFile into an error.
	RequireEnvFile bool

	StackName  string
	ImageDir   string
	ImageURI   string
	EntryPoint string
	Qualifier  string
}

// Config is the resolved input of one assembly.
type Config struct {
	Secrets map[string]string

	StackName string
	// ImageDir is the container build context fingerprinted for the image asset.
	ImageDir string
	// ImageURI, when set, replaces the asset-derived image URI.
	ImageURI   string
	EntryPoint string
	Qualifier  string
}

// Secret returns the value of a named secret.
func (c Config) Secret(name string) string {
	return c.Secrets[name]
}

// Validate returns a *MissingSecretError for the first required secret that
// is absent or empty.
func (c Config) Validate() error {
	for _, name := range RequiredSecrets() {
		if c.Secrets[name] == "" {
			return &MissingSecretError{Name: name}
		}
	}
	return nil
}

// Redacted returns every setting with secret values masked, suitable for logs.
func (c Config) Redacted() map[string]string {
	out := map[string]string{
		"stack_name":  c.StackName,
		"image_dir":   c.ImageDir,
		"image_uri":   c.ImageURI,
		"entry_point": c.EntryPoint,
		"qualifier":   c.Qualifier,
	}
	for name, value := range c.Secrets {
		out[name] = redact(value)
	}
	return out
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("<redacted:%d>", len(value))
}

// Load resolves the configuration and validates the required secrets.
func Load(opts Options) (Config, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("stack_name", DefaultStackName)
	v.SetDefault("image_dir", DefaultImageDir)
	v.SetDefault("entry_point", DefaultEntryPoint)
	v.SetDefault("qualifier", DefaultQualifier)
	for key, env := range map[string]string{
		"stack_name":  envStackName,
		"image_dir":   envImageDir,
		"image_uri":   envImageURI,
		"entry_point": envEntryPoint,
		"qualifier":   envQualifier,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := readEnvFile(v, envFile, opts.RequireEnvFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Secrets:    make(map[string]string, len(RequiredSecrets())),
		StackName:  pick(opts.StackName, v.GetString("stack_name")),
		ImageDir:   pick(opts.ImageDir, v.GetString("image_dir")),
		ImageURI:   pick(opts.ImageURI, v.GetString("image_uri")),
		EntryPoint: pick(opts.EntryPoint, v.GetString("entry_point")),
		Qualifier:  pick(opts.Qualifier, v.GetString("qualifier")),
	}
	for _, name := range RequiredSecrets() {
		cfg.Secrets[name] = v.GetString(name)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if e := log.Debug(); e.Enabled() {
		redacted := cfg.Redacted()
		keys := make([]string, 0, len(redacted))
		for k := range redacted {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e = e.Str(strings.ToLower(k), redacted[k])
		}
		e.Str("env_file", envFile).Msg("configuration resolved")
	}
	return cfg, nil
}

func readEnvFile(v *viper.Viper, path string, strict bool) error {
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) && !strict {
			log.Debug().Str("path", path).Msg("env file not found, using process environment only")
			return nil
		}
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	return nil
}

func pick(override, resolved string) string {
	if override != "" {
		return override
	}
	return resolved
}
