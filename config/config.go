package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// ErrInvalidConfig is returned for configuration files that parse but make
// no sense
var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultListen   = ":8080"
	DefaultDatabase = "formula.db"
	DefaultSheet    = "Sheet1"
)

// Config is the service configuration, usually read from a YAML file:
//
//	server:
//	  listen: ":8080"
//	  database: sheets.db
//	engine:
//	  max_depth: 1024
//	  sheets: [Inputs, Report]
//	  final_sheets: [Inputs]
//	log:
//	  level: debug
//	functions:
//	  - name: HYPOT
//	    expr: (arg1 ** 2 + arg2 ** 2) ** 0.5
//	    min_args: 2
//	    max_args: 2
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Engine    EngineConfig     `yaml:"engine"`
	Log       LogConfig        `yaml:"log"`
	Functions []FunctionConfig `yaml:"functions"`
}

type ServerConfig struct {
	Listen   string `yaml:"listen"`
	Database string `yaml:"database"`
}

type EngineConfig struct {
	MaxDepth int `yaml:"max_depth"`
	// worksheets created when the database is empty
	Sheets []string `yaml:"sheets"`
	// worksheets whose cells never change during a session
	FinalSheets []string `yaml:"final_sheets"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// FunctionConfig declares an add-in function whose body is an expr
// expression over arg1..argN (see formula.NewExprFunction)
type FunctionConfig struct {
	Name    string `yaml:"name"`
	Expr    string `yaml:"expr"`
	MinArgs int    `yaml:"min_args"`
	MaxArgs int    `yaml:"max_args"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML configuration. unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.Database == "" {
		c.Server.Database = DefaultDatabase
	}
	if c.Engine.MaxDepth == 0 {
		c.Engine.MaxDepth = formula.DefaultMaxDepth
	}
	if len(c.Engine.Sheets) == 0 {
		c.Engine.Sheets = []string{DefaultSheet}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks values that the decoder cannot
func (c *Config) Validate() error {
	if c.Engine.MaxDepth < 0 {
		return fmt.Errorf("%w: engine.max_depth must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	for i, fn := range c.Functions {
		if fn.Name == "" || fn.Expr == "" {
			return fmt.Errorf("%w: functions[%d] needs a name and an expr", ErrInvalidConfig, i)
		}
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, l.Level)
	}
	return level, nil
}

// NewLogger builds the structured logger writing to w
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Registry returns the built-in functions plus the configured add-ins
func (c *Config) Registry() (*formula.Registry, error) {
	registry := formula.NewBuiltinRegistry()
	for _, fn := range c.Functions {
		def, err := formula.NewExprFunction(fn.Name, fn.Expr, fn.MinArgs, fn.MaxArgs)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}
	return registry, nil
}

// Stability classifies the cells of the configured final worksheets as
// final. sheetName resolves worksheet IDs at evaluation time, so the
// worksheets may be created after the classifier.
func (e EngineConfig) Stability(sheetName func(id uint32) (string, bool)) formula.StabilityClassifier {
	if len(e.FinalSheets) == 0 {
		return nil
	}
	final := make(map[string]struct{}, len(e.FinalSheets))
	for _, name := range e.FinalSheets {
		final[strings.ToUpper(name)] = struct{}{}
	}
	return formula.SheetFunc(func(sheet uint32) bool {
		name, ok := sheetName(sheet)
		if !ok {
			return false
		}
		_, isFinal := final[strings.ToUpper(name)]
		return isFinal
	})
}

// EvalOptions converts the configuration to evaluator options
func (c *Config) EvalOptions(logger *slog.Logger, sheetName func(id uint32) (string, bool)) ([]formula.Option, error) {
	registry, err := c.Registry()
	if err != nil {
		return nil, err
	}
	opts := []formula.Option{
		formula.WithLogger(logger),
		formula.WithFunctions(registry),
		formula.WithMaxDepth(c.Engine.MaxDepth),
	}
	if classifier := c.Engine.Stability(sheetName); classifier != nil {
		opts = append(opts, formula.WithStabilityClassifier(classifier))
	}
	return opts, nil
}
