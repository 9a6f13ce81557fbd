// Package config holds the settings shared by every import component. A Config is built once
// by the command line and handed to each component at construction.
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "BOOKIMPORT"

	// StateInDB keeps step records in the target database.
	StateInDB = "db"
)

var (
	ErrDataDirMustBeSet  = errors.New("data-dir must be set")
	ErrDBURLMustBeSet    = errors.New("db-url must be set")
	ErrToolMustBeSet     = errors.New("tool path must be set")
	ErrInvalidLogFormat  = errors.New("log-format must be text or json")
	ErrInvalidConfigFile = errors.New("invalid option in configuration file")
)

type Config struct {
	// DataDir holds the raw dataset files, LOC ones under LOC/.
	DataDir string `toml:"data-dir"`
	// ScriptDir holds the .sql scripts.
	ScriptDir string `toml:"script-dir"`
	// BookTool is the bookdata executable providing parse-marc, import-ntriples and hash.
	BookTool string `toml:"bookdata-tool"`
	PSQL     string `toml:"psql"`
	DBURL    string `toml:"db-url"`
	// StateDSN selects the step record store, "db" meaning DBURL.
	StateDSN  string `toml:"state-dsn"`
	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DataDir:   "data",
		ScriptDir: "schemas",
		BookTool:  "bookdata",
		PSQL:      "psql",
		DBURL:     "postgres://localhost/bookdata?sslmode=disable",
		StateDSN:  StateInDB,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Flags registers one flag per option, pointing at the config fields.
func (c *Config) Flags(flags *pflag.FlagSet) {
	flags.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding the raw dataset files")
	flags.StringVar(&c.ScriptDir, "script-dir", c.ScriptDir, "directory holding the SQL scripts")
	flags.StringVar(&c.BookTool, "bookdata-tool", c.BookTool, "path to the bookdata conversion tool")
	flags.StringVar(&c.PSQL, "psql", c.PSQL, "path to the psql client")
	flags.StringVar(&c.DBURL, "db-url", c.DBURL, "PostgreSQL connection URL")
	flags.StringVar(&c.StateDSN, "state-dsn", c.StateDSN, `step state store: "db", postgres://..., file:<path> or mem:`)
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (text or json)")
}

// Load applies, in priority order, command line flags, BOOKIMPORT_* environment variables and
// the TOML file named by the "config" flag, if any. Each flag holds a pointer to the value it
// sets, so loading modifies the config the flags were registered from.
func Load(v *viper.Viper, flags *pflag.FlagSet) error {
	err := v.BindPFlags(flags)
	if err != nil {
		return errors.Wrap(err, "unable to bind flags")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")

		err := v.ReadInConfig()
		if err != nil {
			return errors.Wrapf(err, "error reading configuration file '%s'", file)
		}

		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return errors.Wrap(ErrInvalidConfigFile, key)
			}
		}
	}

	var flagErr error

	flags.VisitAll(func(f *pflag.Flag) {
		// a flag set on the command line wins over everything else.
		if flagErr != nil || f.Changed {
			return
		}

		if !v.IsSet(f.Name) {
			return
		}

		flagErr = f.Value.Set(v.GetString(f.Name))
	})

	return errors.Wrap(flagErr, "unable to apply configuration")
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirMustBeSet
	}

	if c.BookTool == "" || c.PSQL == "" {
		return ErrToolMustBeSet
	}

	if c.StateDSN == StateInDB && c.DBURL == "" {
		return ErrDBURLMustBeSet
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Wrap(ErrInvalidLogFormat, c.LogFormat)
	}

	_, err := logrus.ParseLevel(c.LogLevel)

	return errors.Wrap(err, "invalid log-level")
}

// StateStoreDSN resolves the "db" shorthand.
func (c *Config) StateStoreDSN() string {
	if c.StateDSN == StateInDB {
		return c.DBURL
	}

	return c.StateDSN
}

// LOCDir is where the Library of Congress files live.
func (c *Config) LOCDir() string {
	return filepath.Join(c.DataDir, "LOC")
}

// Script returns the path of a SQL script.
func (c *Config) Script(name string) string {
	return filepath.Join(c.ScriptDir, name)
}

// NewLogger builds the logger described by the config.
func (c *Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log-level")
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Wrap(ErrInvalidLogFormat, c.LogFormat)
	}

	return logger, nil
}

// TOML renders the config as a configuration file.
func (c *Config) TOML() (string, error) {
	out, err := toml.Marshal(*c)
	if err != nil {
		return "", errors.Wrap(err, "unable to encode config")
	}

	return string(out), nil
}

func (c *Config) String() string {
	return fmt.Sprintf("data-dir=%s script-dir=%s bookdata-tool=%s state-dsn=%s", c.DataDir, c.ScriptDir, c.BookTool, c.StateDSN)
}
