// Package config loads the broker's configuration from an optional .env
// file and from prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBConfig describes one named back-end database entry (db.<name>.*).
type DBConfig struct {
	Type       string `mapstructure:"type"`    // "postgresql", "mysql", ...
	Factory    string `mapstructure:"factory"` // registry name of the ResourceFactory
	Connection string `mapstructure:"connection"`
	PoolMin    int    `mapstructure:"poolmin"`
	PoolMax    int    `mapstructure:"poolmax"`
}

// DataSourceConfig is the dataSource.* section.
type DataSourceConfig struct {
	Path               string `mapstructure:"path"`
	PoolMin            int    `mapstructure:"poolmin"`
	PoolMax            int    `mapstructure:"poolmax"`
	StrictSQLFiltering bool   `mapstructure:"strictsqlfiltering"`
}

// RESTConfig is the rest.* section.
type RESTConfig struct {
	JSONPrefix             string `mapstructure:"jsonprefix"`
	JSONSuffix             string `mapstructure:"jsonsuffix"`
	WrapJSONResponses      bool   `mapstructure:"wrapjsonresponses"`
	DynamicDataFormatParam string `mapstructure:"dynamicdataformatparamname"`
}

// RPCConfig is the rpc.* section.
type RPCConfig struct {
	ExceptionStacktrace bool `mapstructure:"exception.stacktrace"`
}

// RouterConfig is the server.router.* section.
type RouterConfig struct {
	IDACallPath          string `mapstructure:"idacall.path"`
	RESTCallPath         string `mapstructure:"restcall.path"`
	DataSourceLoaderPath string `mapstructure:"datasourceloader.path"`
}

// LoggingConfig is the logging.* section.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the root configuration object.
type Config struct {
	Port           int                 `mapstructure:"port"`
	DB             map[string]DBConfig `mapstructure:"db"`
	DefaultDatabase string             `mapstructure:"db.defaultdatabase"`
	DataSource     DataSourceConfig    `mapstructure:"datasource"`
	REST           RESTConfig          `mapstructure:"rest"`
	RPC            RPCConfig           `mapstructure:"rpc"`
	Router         RouterConfig        `mapstructure:"server.router"`
	Logging        LoggingConfig       `mapstructure:"logging"`
	AcquireTimeout time.Duration       `mapstructure:"acquiretimeout"`
}

// Default returns a Config populated with the defaults a fresh install needs.
func Default() *Config {
	return &Config{
		Port: 8080,
		DB:   map[string]DBConfig{},
		DataSource: DataSourceConfig{
			Path:               "./datasources",
			PoolMin:            1,
			PoolMax:            20,
			StrictSQLFiltering: false,
		},
		REST: RESTConfig{
			WrapJSONResponses:      false,
			DynamicDataFormatParam: "isc_dataFormat",
		},
		Router: RouterConfig{
			IDACallPath:          "/idacall",
			RESTCallPath:         "/rest",
			DataSourceLoaderPath: "/loadDS",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
		AcquireTimeout: 5 * time.Second,
	}
}

// Load loads configuration from an optional .env file and from
// environment variables sharing the given prefix (e.g. "BUNBASE_"),
// layered on top of Default(): collect prefixed env vars, turn
// "FOO_BAR_BAZ" into "foo.bar.baz", and Unmarshal into the target
// struct.
func Load(prefix string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read .env: %w", err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		propKey = strings.TrimPrefix(propKey, ".")
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Lookup resolves a named db.<name> entry, falling back to
// db.defaultDatabase when name is empty, per ConnectionPool.acquire.
func (c *Config) Lookup(name string) (DBConfig, string, bool) {
	if name == "" {
		name = c.DefaultDatabase
	}
	if name == "" {
		return DBConfig{}, "", false
	}
	dbc, ok := c.DB[name]
	return dbc, name, ok
}
