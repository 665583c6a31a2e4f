package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretLoader resolves sensitive settings by dotted key ("database.url")
type SecretLoader interface {
	LoadSecret(key string) (string, error)
}

// EnvSecretLoader reads PREFIX_DOTTED_KEY environment variables
type EnvSecretLoader struct {
	Prefix string
}

func (e *EnvSecretLoader) LoadSecret(key string) (string, error) {
	envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if e.Prefix != "" {
		envKey = e.Prefix + "_" + envKey
	}

	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not found or empty", envKey)
	}
	return value, nil
}

// FileSecretLoader reads a flat JSON object of dotted keys, once
type FileSecretLoader struct {
	FilePath string

	once    sync.Once
	secrets map[string]string
	err     error
}

func (f *FileSecretLoader) LoadSecret(key string) (string, error) {
	f.once.Do(func() {
		data, err := os.ReadFile(f.FilePath)
		if err != nil {
			f.err = fmt.Errorf("failed to read secrets file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &f.secrets); err != nil {
			f.err = fmt.Errorf("failed to parse secrets file: %w", err)
		}
	})
	if f.err != nil {
		return "", f.err
	}

	value, ok := f.secrets[key]
	if !ok {
		return "", fmt.Errorf("secret key %s not found in secrets file", key)
	}
	return value, nil
}

// ChainedSecretLoader returns the first hit among Loaders
type ChainedSecretLoader struct {
	Loaders []SecretLoader
}

func (c *ChainedSecretLoader) LoadSecret(key string) (string, error) {
	var lastErr error
	for _, loader := range c.Loaders {
		value, err := loader.LoadSecret(key)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("secret %s not found in any loader: %w", key, lastErr)
}

// DefaultSecretLoader checks LOOKUP_* environment variables
// (LOOKUP_DATABASE_URL, LOOKUP_AUTH_JWT_SECRET), then the optional secrets file.
func DefaultSecretLoader(secretsFilePath string) SecretLoader {
	loaders := []SecretLoader{
		&EnvSecretLoader{Prefix: "LOOKUP"},
	}
	if secretsFilePath != "" {
		loaders = append(loaders, &FileSecretLoader{FilePath: secretsFilePath})
	}
	return &ChainedSecretLoader{Loaders: loaders}
}
