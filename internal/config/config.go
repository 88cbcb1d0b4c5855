package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datacheck-cli/internal/engine"
	"github.com/KaramelBytes/datacheck-cli/internal/loader"
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

// Global configuration structure.
type Global struct {
	// Checks to run by default; empty runs all of them.
	Checks        []string `mapstructure:"checks" yaml:"checks" validate:"dive,required"`
	Target        string   `mapstructure:"target" yaml:"target"`
	WarnThreshold float64  `mapstructure:"warn_threshold" yaml:"warn_threshold" validate:"gte=0,lte=1"`
	FailFast      bool     `mapstructure:"fail_fast" yaml:"fail_fast"`
	Parallel      bool     `mapstructure:"parallel" yaml:"parallel"`
	Seed          int64    `mapstructure:"seed" yaml:"seed"`
	LogLevel      string   `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	// Isolation forest anomaly share.
	Contamination float64 `mapstructure:"contamination" yaml:"contamination" validate:"gt=0,lte=0.5"`

	// Per-check overrides, keyed by check name.
	Thresholds map[string]float64 `mapstructure:"thresholds" yaml:"thresholds,omitempty" validate:"dive,keys,required,endkeys,gte=0"`
	Weights    map[string]float64 `mapstructure:"weights" yaml:"weights,omitempty" validate:"dive,keys,required,endkeys,gte=0"`
	// Methods names the default method per operation; see MethodKeys.
	Methods map[string]string `mapstructure:"methods" yaml:"methods" validate:"dive,keys,required,endkeys,required"`

	// Loading
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	MaxRows   int    `mapstructure:"max_rows" yaml:"max_rows" validate:"gte=0"`
}

// MethodKeys are the recognised keys of Global.Methods with their defaults.
var MethodKeys = map[string]string{
	"outliers":    quality.ZScore.String(),
	"missing":     quality.FillAuto.String(),
	"outlier_fix": quality.RemoveRows.String(),
	"duplicates":  quality.KeepFirst.String(),
	"balance":     quality.Undersample.String(),
	"transform":   quality.TransformAuto.String(),
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".datacheck"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datacheck/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing file is not an error.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATACHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("checks", []string{})
	v.SetDefault("target", "")
	v.SetDefault("warn_threshold", scoring.DefaultWarnThreshold)
	v.SetDefault("fail_fast", false)
	v.SetDefault("parallel", false)
	v.SetDefault("seed", 42)
	v.SetDefault("log_level", "warn")
	v.SetDefault("contamination", quality.DefaultOutlierOptions().Contamination)
	v.SetDefault("delimiter", "")
	v.SetDefault("max_rows", loader.DefaultOptions().MaxRows)
	for k, d := range MethodKeys {
		v.SetDefault("methods."+k, d)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate checks field ranges, then check names, weights and method names.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &quality.ConfigError{Field: strings.TrimPrefix(fe.Namespace(), "Global."),
				Reason: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value())}
		}
		return &quality.ConfigError{Reason: err.Error()}
	}
	if _, err := c.checkKinds(); err != nil {
		return err
	}
	if _, err := c.thresholds(); err != nil {
		return err
	}
	if len(c.Weights) > 0 {
		if _, err := scoring.ParseWeights(c.Weights); err != nil {
			return err
		}
	}
	for k, m := range c.Methods {
		if err := validateMethod(k, m); err != nil {
			return err
		}
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	return nil
}

func validateMethod(key, name string) error {
	var err error
	switch key {
	case "outliers":
		_, err = quality.ParseOutlierMethod(name)
	case "missing":
		_, err = quality.ParseMissingStrategy(name)
	case "outlier_fix":
		_, err = quality.ParseOutlierStrategy(name)
	case "duplicates":
		_, err = quality.ParseKeep(name)
	case "balance":
		_, err = quality.ParseBalanceMethod(name)
	case "transform":
		_, err = quality.ParseTransformMethod(name)
	default:
		return &quality.ConfigError{Field: "methods." + key, Reason: "unknown method key"}
	}
	if err != nil {
		return &quality.ConfigError{Field: "methods." + key, Reason: err.Error()}
	}
	return nil
}

// Method returns the configured method name for key, or its default.
func (c *Global) Method(key string) string {
	if m := c.Methods[key]; m != "" {
		return m
	}
	return MethodKeys[key]
}

func (c *Global) checkKinds() ([]quality.CheckKind, error) {
	out := make([]quality.CheckKind, 0, len(c.Checks))
	for _, name := range c.Checks {
		k, err := quality.ParseCheckKind(name)
		if err != nil {
			return nil, &quality.ConfigError{Field: "checks", Reason: err.Error()}
		}
		out = append(out, k)
	}
	return out, nil
}

func (c *Global) thresholds() (map[quality.CheckKind]float64, error) {
	if len(c.Thresholds) == 0 {
		return nil, nil
	}
	out := make(map[quality.CheckKind]float64, len(c.Thresholds))
	for name, v := range c.Thresholds {
		k, err := quality.ParseCheckKind(name)
		if err != nil {
			return nil, &quality.ConfigError{Field: "thresholds." + name, Reason: "unknown check"}
		}
		out[k] = v
	}
	return out, nil
}

// DelimiterRune returns the configured CSV delimiter; empty means sniff.
// "tab" and `\t` name the tab character.
func (c *Global) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(c.Delimiter)
	if len(r) != 1 {
		return 0, &quality.ConfigError{Field: "delimiter", Reason: fmt.Sprintf("must be a single character, got %q", c.Delimiter)}
	}
	return r[0], nil
}

// Engine converts the configuration into an engine run configuration.
func (c *Global) Engine() (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	ec := engine.DefaultConfig()
	ec.Checks, _ = c.checkKinds()
	ec.Thresholds, _ = c.thresholds()
	if len(c.Weights) > 0 {
		ec.Weights, _ = scoring.ParseWeights(c.Weights)
	}
	ec.OutlierMethod = c.Method("outliers")
	ec.Target = c.Target
	ec.Contamination = c.Contamination
	ec.WarnThreshold = c.WarnThreshold
	ec.FailFast = c.FailFast
	ec.Parallel = c.Parallel
	ec.Seed = c.Seed
	return ec, nil
}

// Loader returns ingestion options.
func (c *Global) Loader() loader.Options {
	opt := loader.DefaultOptions()
	opt.Delimiter, _ = c.DelimiterRune()
	opt.MaxRows = c.MaxRows
	return opt
}

// Level maps LogLevel onto a slog level; unknown names mean warn.
func (c *Global) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// Set assigns one key from its string form, as used by `config set`, and
// validates the result. Map entries are addressed as thresholds.<check>,
// weights.<check> and methods.<key>; weights and thresholds also accept a
// whole "check=value,..." list, since weights only validate as a set.
func (c *Global) Set(key, val string) error {
	prev := c.clone()
	err := c.set(key, val)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		*c = prev
	}
	return err
}

func (c *Global) set(key, val string) error {
	bad := func(err error) error {
		return &quality.ConfigError{Field: key, Reason: err.Error()}
	}
	if head, sub, ok := strings.Cut(key, "."); ok {
		switch head {
		case "thresholds", "weights":
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return bad(err)
			}
			if head == "thresholds" {
				c.Thresholds = setFloat(c.Thresholds, sub, f)
			} else {
				c.Weights = setFloat(c.Weights, sub, f)
			}
			return nil
		case "methods":
			if c.Methods == nil {
				c.Methods = map[string]string{}
			}
			c.Methods[sub] = val
			return nil
		}
		return &quality.ConfigError{Field: key, Reason: "unknown key"}
	}
	var err error
	switch key {
	case "checks":
		c.Checks = nil
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Checks = append(c.Checks, s)
			}
		}
	case "weights", "thresholds":
		m := map[string]float64{}
		for _, pair := range strings.Split(val, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return &quality.ConfigError{Field: key, Reason: fmt.Sprintf("want check=value pairs, got %q", pair)}
			}
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				return bad(err)
			}
			m[strings.TrimSpace(k)] = f
		}
		if key == "weights" {
			c.Weights = m
		} else {
			c.Thresholds = m
		}
	case "target":
		c.Target = val
	case "warn_threshold":
		c.WarnThreshold, err = cast.ToFloat64E(val)
	case "fail_fast":
		c.FailFast, err = cast.ToBoolE(val)
	case "parallel":
		c.Parallel, err = cast.ToBoolE(val)
	case "seed":
		c.Seed, err = cast.ToInt64E(val)
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "contamination":
		c.Contamination, err = cast.ToFloat64E(val)
	case "delimiter":
		c.Delimiter = val
	case "max_rows":
		c.MaxRows, err = cast.ToIntE(val)
	default:
		return &quality.ConfigError{Field: key, Reason: "unknown key"}
	}
	if err != nil {
		return bad(err)
	}
	return nil
}

func setFloat(m map[string]float64, k string, v float64) map[string]float64 {
	if m == nil {
		m = map[string]float64{}
	}
	m[k] = v
	return m
}

func (c *Global) clone() Global {
	out := *c
	out.Checks = append([]string(nil), c.Checks...)
	out.Thresholds = copyMap(c.Thresholds)
	out.Weights = copyMap(c.Weights)
	out.Methods = copyMap(c.Methods)
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Lines renders the effective configuration as sorted key: value lines.
func (c *Global) Lines() []string {
	lines := []string{
		fmt.Sprintf("checks: %s", strings.Join(c.Checks, ",")),
		fmt.Sprintf("target: %s", c.Target),
		fmt.Sprintf("warn_threshold: %.3f", c.WarnThreshold),
		fmt.Sprintf("fail_fast: %t", c.FailFast),
		fmt.Sprintf("parallel: %t", c.Parallel),
		fmt.Sprintf("seed: %d", c.Seed),
		fmt.Sprintf("log_level: %s", c.LogLevel),
		fmt.Sprintf("contamination: %.3f", c.Contamination),
		fmt.Sprintf("delimiter: %q", c.Delimiter),
		fmt.Sprintf("max_rows: %d", c.MaxRows),
	}
	for k, v := range c.Thresholds {
		lines = append(lines, fmt.Sprintf("thresholds.%s: %g", k, v))
	}
	for k, v := range c.Weights {
		lines = append(lines, fmt.Sprintf("weights.%s: %g", k, v))
	}
	for k := range MethodKeys {
		lines = append(lines, fmt.Sprintf("methods.%s: %s", k, c.Method(k)))
	}
	sort.Strings(lines)
	return lines
}
