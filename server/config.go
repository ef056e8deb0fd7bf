package server

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/sqlstore"
	"github.com/janelia-flyem/catvol/storage"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// DefaultWebAddress is the default listen address of the HTTP server.
	DefaultWebAddress = "localhost:8000"

	// DefaultTileCacheMB is the encoded tile cache size if unset.
	DefaultTileCacheMB = 64

	// DefaultBuildsPerMinute limits volume builds per client if unset.
	DefaultBuildsPerMinute = 6

	// Environment overrides, usually given through a .env file beside the config.
	EnvDatabaseDSN = "CATVOL_DATABASE_DSN"
	EnvHTTPAddress = "CATVOL_HTTP_ADDRESS"
)

// DefaultHost is the default most understandable alias for this server.
var DefaultHost = "localhost"

func init() {
	// Assumes Linux or Mac.
	cmd := exec.Command("/bin/hostname", "-f")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return
	}
	if host := strings.TrimSpace(out.String()); host != "" {
		DefaultHost = host
	}
}

type serverConfig struct {
	HTTPAddress string   `toml:"httpAddress"`
	Host        string   `toml:"host"`
	Note        string   `toml:"note"`
	CorsDomains []string `toml:"corsDomains"`
	TileCacheMB int      `toml:"tileCacheMB"`
}

type databaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type volumeConfig struct {
	Workers int `toml:"workers"`
}

type rateLimitConfig struct {
	BuildPerMinute int `toml:"build_per_minute"`
}

type classificationConfig struct {
	Workspace int64 `toml:"workspace"`
}

// Config is the parsed TOML configuration.
type Config struct {
	Server         serverConfig
	Logging        catvol.LogConfig
	Database       databaseConfig
	Store          storage.Config
	Volume         volumeConfig
	Ratelimit      rateLimitConfig
	Kafka          storage.KafkaConfig
	Classification classificationConfig

	location string
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = catvol.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path: %v", err)
		}
	}

	// [store].path
	if c.Store.Path != "" {
		c.Store.Path, err = catvol.ConvertToAbsolute(c.Store.Path, configDir)
		if err != nil {
			return fmt.Errorf("error converting store path to absolute path: %v", err)
		}
	}

	// [database].dsn is a file path for sqlite
	if c.Database.Driver == sqlstore.DriverSQLite && c.Database.DSN != "" && !strings.HasPrefix(c.Database.DSN, "file:") {
		c.Database.DSN, err = catvol.ConvertToAbsolute(c.Database.DSN, configDir)
		if err != nil {
			return fmt.Errorf("error converting sqlite database to absolute path: %v", err)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = DefaultWebAddress
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.TileCacheMB == 0 {
		c.Server.TileCacheMB = DefaultTileCacheMB
	}
	if c.Database.Driver == "" {
		c.Database.Driver = sqlstore.DriverSQLite
	}
	if c.Store.Engine == "" {
		c.Store.Engine = "badger"
	}
	if c.Ratelimit.BuildPerMinute == 0 {
		c.Ratelimit.BuildPerMinute = DefaultBuildsPerMinute
	}
}

// LoadConfig reads a TOML file.  A .env file in the same directory, if present, may
// override the database DSN and listen address.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename

	envFile := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("could not read %s: %v", envFile, err)
	}
	c.applyEnv()
	c.setDefaults()
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	catvol.Infof("Loaded configuration from %s\n", filename)
	return c, nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		c.Database.DSN = dsn
	}
	if addr := os.Getenv(EnvHTTPAddress); addr != "" {
		c.Server.HTTPAddress = addr
	}
}

// Location returns the file the config was loaded from.
func (c *Config) Location() string {
	return c.location
}

// Host returns the most understandable host alias + any port.
func (c *Config) Host() string {
	parts := strings.Split(c.Server.HTTPAddress, ":")
	host := c.Server.Host
	if len(parts) > 1 {
		host = host + ":" + parts[len(parts)-1]
	}
	return host
}

// TileCacheBytes returns the tile cache size in bytes.  A negative tileCacheMB
// disables the cache.
func (c *Config) TileCacheBytes() int {
	if c.Server.TileCacheMB < 0 {
		return 0
	}
	return c.Server.TileCacheMB * catvol.Mega
}
