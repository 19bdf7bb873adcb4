package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/weberc2/vsfs/pkg/pgutil"
	"github.com/weberc2/vsfs/pkg/server"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "VSFS"
	appName      = "vsfs"
)

type Config struct {
	Addr           string        `envconfig:"VSFS_ADDR" yaml:"addr"`
	AccessKey      PublicKey     `envconfig:"VSFS_ACCESS_KEY" yaml:"accessKey"`
	InodeCount     uint32        `envconfig:"VSFS_INODE_COUNT" yaml:"inodeCount"`
	DataBlockCount uint32        `envconfig:"VSFS_DATA_BLOCK_COUNT" yaml:"dataBlockCount"`
	CacheCapacity  int           `envconfig:"VSFS_CACHE_CAPACITY" yaml:"cacheCapacity"`
	Bucket         string        `envconfig:"VSFS_BUCKET" yaml:"bucket"`
	Prefix         string        `envconfig:"VSFS_PREFIX" yaml:"prefix"`
	Region         string        `envconfig:"VSFS_REGION" yaml:"region"`
	Postgres       pgutil.Params `ignored:"true" yaml:"postgres"`
}

// DefaultConfig holds the values used when neither the config file nor the
// environment sets a field.
var DefaultConfig = Config{
	Addr:           "127.0.0.1:8080",
	InodeCount:     1024,
	DataBlockCount: 4096,
	CacheCapacity:  64,
	Prefix:         "snapshots",
}

func configFile() string {
	if configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE"); configFile != "" {
		return configFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// LoadConfig reads `path` (a missing file is not an error) and then
// overlays the environment. The postgres settings use the plain `PG_*`
// variables shared with other postgres tooling.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := envconfig.Process("", &c.Postgres); err != nil {
		return nil, fmt.Errorf("parsing postgres environment variables: %w", err)
	}

	return &c, nil
}

func missing(yamlKey, envKey string) error {
	return fmt.Errorf(
		"missing required configuration: %s / %s_%s",
		yamlKey,
		envVarPrefix,
		envKey,
	)
}

func (c *Config) ValidateServe() error {
	if c.Addr == "" {
		return missing("addr", "ADDR")
	}
	if c.AccessKey == (PublicKey{}) {
		return missing("accessKey", "ACCESS_KEY")
	}
	return nil
}

func (c *Config) ValidateSnapshots() error {
	if c.Bucket == "" {
		return missing("bucket", "BUCKET")
	}
	return nil
}

type PublicKey ecdsa.PublicKey

func (pk *PublicKey) Decode(value string) error {
	key, err := server.ParsePublicKey([]byte(value))
	if err != nil {
		return err
	}
	*pk = PublicKey(*key)
	return nil
}

func (pk *PublicKey) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *PublicKey: %w", err)
	}

	if err := pk.Decode(s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *PublicKey: %w", err)
	}

	return nil
}

func (pk *PublicKey) Std() *ecdsa.PublicKey {
	return (*ecdsa.PublicKey)(pk)
}
