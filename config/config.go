/*
Package config loads the deployment configuration of the escrow contract.

Values are read from an optional YAML file and can be overridden with
ESCROW_ prefixed environment variables (ESCROW_FEE_BASIS_POINTS etc), a .env
file is loaded into the environment first.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/nerwo/escrow-go/txsystem/escrow"
	"github.com/nerwo/escrow-go/types"
)

const EnvPrefix = "ESCROW"

type Config struct {
	// Platform receives the fee of the payments made to receivers.
	Platform       string `yaml:"platform" mapstructure:"platform"`
	FeeBasisPoints uint64 `yaml:"fee_basis_points" mapstructure:"fee_basis_points"`
	// Court is the owner of the arbitrator contract, the only address allowed to give rulings.
	Court    string `yaml:"court" mapstructure:"court"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		FeeBasisPoints: 250,
		LogLevel:       logrus.InfoLevel.String(),
	}
}

/*
Load returns the configuration read from the file at path (may be empty) with
environment overrides applied. The envFiles are loaded with godotenv, variables
already set in the environment take precedence over them.
*/
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// env vars are only consulted for the keys viper knows about
	v.SetDefault("platform", cfg.Platform)
	v.SetDefault("fee_basis_points", cfg.FeeBasisPoints)
	v.SetDefault("court", cfg.Court)
	v.SetDefault("log_level", cfg.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) PlatformAddress() (types.Address, error) {
	return parseAddress("platform", c.Platform)
}

func (c *Config) CourtAddress() (types.Address, error) {
	return parseAddress("court", c.Court)
}

// Escrow returns the configuration of escrow contract using arbitrator
// deployed to the given address.
func (c *Config) Escrow(arbitrator types.Address) (escrow.Config, error) {
	platform, err := c.PlatformAddress()
	if err != nil {
		return escrow.Config{}, err
	}
	ec := escrow.Config{Platform: platform, FeeBasisPoints: c.FeeBasisPoints, Arbitrator: arbitrator}
	if err := ec.Validate(); err != nil {
		return escrow.Config{}, err
	}
	return ec, nil
}

func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

func parseAddress(name, s string) (types.Address, error) {
	if s == "" {
		return types.ZeroAddress, fmt.Errorf("%s address is not set", name)
	}
	if !types.IsHexAddress(s) {
		return types.ZeroAddress, fmt.Errorf("invalid %s address %q", name, s)
	}
	return types.HexToAddress(s), nil
}
