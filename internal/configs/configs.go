// Package configs contains the system configurations.
package configs

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseDriver       = "postgres"
	defaultTimezone             = "UTC"
	defaultCallCredentialTTLMin = 60
)

type configData struct {
	ServerPort              int32  `json:"port"`
	DatabaseDSN             string `json:"database_dsn"`
	DatabaseDriver          string `json:"database_driver"`
	PrivateKeyFile          string `json:"private_key_file"`
	RedisAddr               string `json:"redis_addr"`
	RedisPassword           string `json:"redis_password"`
	Timezone                string `json:"timezone"`
	CallProviderSecret      string `json:"call_provider_secret"`
	CallCredentialTTLMinute int    `json:"call_credential_ttl_minutes"`
	SecureCookies           bool   `json:"secure_cookies"`
}

// Config holds the system configuration.
type Config interface {
	ServerPort() int32
	DatabaseDSN() string
	DatabaseDriver() string
	PrivateKeyFile() string
	PrivateKey() rsa.PrivateKey
	RedisAddr() string
	RedisPassword() string
	// Location is the clinic timezone, used to interpret scheduled dates and times.
	Location() *time.Location
	CallProviderSecret() string
	CallCredentialTTL() time.Duration
	SecureCookies() bool
}

type defaultConfig struct {
	data       *configData
	privateKey *rsa.PrivateKey
	location   *time.Location
}

func (c *defaultConfig) ServerPort() int32 {
	return c.data.ServerPort
}

func (c *defaultConfig) DatabaseDSN() string {
	return c.data.DatabaseDSN
}

func (c *defaultConfig) DatabaseDriver() string {
	return c.data.DatabaseDriver
}

func (c *defaultConfig) PrivateKeyFile() string {
	return c.data.PrivateKeyFile
}

func (c *defaultConfig) PrivateKey() rsa.PrivateKey {
	return *c.privateKey
}

func (c *defaultConfig) RedisAddr() string {
	return c.data.RedisAddr
}

func (c *defaultConfig) RedisPassword() string {
	return c.data.RedisPassword
}

func (c *defaultConfig) Location() *time.Location {
	return c.location
}

func (c *defaultConfig) CallProviderSecret() string {
	return c.data.CallProviderSecret
}

func (c *defaultConfig) CallCredentialTTL() time.Duration {
	return time.Duration(c.data.CallCredentialTTLMinute) * time.Minute
}

func (c *defaultConfig) SecureCookies() bool {
	return c.data.SecureCookies
}

func (c *defaultConfig) loadPrivateKey(configPath string) error {
	path := c.PrivateKeyFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Join(filepath.Dir(configPath), path)
	}
	pemFile, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	privatePem, _ := pem.Decode(pemFile)
	if privatePem == nil {
		return errors.New("the given private key is not a PEM file")
	}
	pk, err := x509.ParsePKCS1PrivateKey(privatePem.Bytes)
	if err != nil {
		return err
	}
	c.privateKey = pk
	return nil
}

// overrideFromEnv replaces file values by the ones found in the environment.
func (c *defaultConfig) overrideFromEnv() error {
	if port, ok := os.LookupEnv("PORT"); ok {
		parsed, err := strconv.ParseInt(port, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.data.ServerPort = int32(parsed)
	}
	overrides := map[string]*string{
		"DATABASE_DSN":         &c.data.DatabaseDSN,
		"REDIS_ADDR":           &c.data.RedisAddr,
		"REDIS_PASSWORD":       &c.data.RedisPassword,
		"CALL_PROVIDER_SECRET": &c.data.CallProviderSecret,
		"CLINIC_TIMEZONE":      &c.data.Timezone,
	}
	for key, target := range overrides {
		if value, ok := os.LookupEnv(key); ok {
			*target = value
		}
	}
	return nil
}

func (c *defaultConfig) validate() error {
	if c.data.ServerPort <= 0 || c.data.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.data.ServerPort)
	}
	if c.data.DatabaseDriver == "" {
		c.data.DatabaseDriver = defaultDatabaseDriver
	}
	if c.data.Timezone == "" {
		c.data.Timezone = defaultTimezone
	}
	if c.data.CallCredentialTTLMinute <= 0 {
		c.data.CallCredentialTTLMinute = defaultCallCredentialTTLMin
	}
	location, err := time.LoadLocation(c.data.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.data.Timezone, err)
	}
	c.location = location
	return nil
}

// LoadEnvFile loads the given dotenv file into the process environment, so its values can
// override the configuration file.
func LoadEnvFile(envPath string) error {
	if envPath == "" {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("an error occurred while loading env file: %w", err)
	}
	return nil
}

// Load loads the given configuration file.
func Load(configPath string) (Config, error) {
	data := &configData{}
	configFile, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("an occurred while loading config file: %w", err)
	}
	defer configFile.Close()
	err = json.NewDecoder(configFile).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("an occurred while parsing config file: %w", err)
	}
	configuration := &defaultConfig{data: data}
	if err = configuration.overrideFromEnv(); err != nil {
		return nil, err
	}
	if err = configuration.validate(); err != nil {
		return nil, err
	}
	if configuration.PrivateKeyFile() == "" {
		return nil, errors.New("a private key file is required to sign sessions")
	}
	if err = configuration.loadPrivateKey(configPath); err != nil {
		return nil, err
	}
	return configuration, nil
}

// MustLoad loads the given configuration file and if any error occurs, will panic.
func MustLoad(configPath string) Config {
	config, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	return config
}
