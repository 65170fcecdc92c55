package appconfig

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. VIBAVERIFY_APP_URL.
const EnvPrefix = "VIBAVERIFY"

// Load resolves the harness config: defaults, then the YAML file at path
// (DefaultConfigPath when empty, silently skipped when absent), then
// VIBAVERIFY_* environment overrides.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("app.url", cfg.App.URL)
	v.SetDefault("app.repo", cfg.App.Repo)
	v.SetDefault("app.title", cfg.App.Title)
	v.SetDefault("app.title_placeholder", cfg.App.TitlePlaceholder)
	v.SetDefault("app.submit_name", cfg.App.SubmitName)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.exec_path", cfg.Browser.ExecPath)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("timeouts.launch", cfg.Timeouts.Launch)
	v.SetDefault("timeouts.navigate", cfg.Timeouts.Navigate)
	v.SetDefault("timeouts.element", cfg.Timeouts.Element)
	v.SetDefault("timeouts.run", cfg.Timeouts.Run)
	v.SetDefault("transition.path_pattern", cfg.Transition.PathPattern)
	v.SetDefault("transition.require_query", cfg.Transition.RequireQuery)
	v.SetDefault("transition.timeout", cfg.Transition.Timeout)
	v.SetDefault("settle.selector", cfg.Settle.Selector)
	v.SetDefault("settle.timeout", cfg.Settle.Timeout)
	v.SetDefault("settle.delay", cfg.Settle.Delay)
	v.SetDefault("sessions.dir", cfg.Sessions.Dir)
	v.SetDefault("sessions.suffix", cfg.Sessions.Suffix)
	v.SetDefault("sessions.require_new", cfg.Sessions.RequireNew)
	v.SetDefault("sessions.wait", cfg.Sessions.Wait)
	v.SetDefault("evidence.dir", cfg.Evidence.Dir)
	v.SetDefault("evidence.success_name", cfg.Evidence.SuccessName)
	v.SetDefault("evidence.failure_name", cfg.Evidence.FailureName)
	v.SetDefault("evidence.failure_html", cfg.Evidence.FailureHTML)
}

// Validate checks a fully populated config.
func Validate(cfg Config) error {
	parsed, err := url.Parse(strings.TrimSpace(cfg.App.URL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("app.url must be an http(s) URL with a host (got %q)", cfg.App.URL)
	}
	if strings.TrimSpace(cfg.App.Repo) == "" {
		return fmt.Errorf("app.repo is required")
	}
	if strings.TrimSpace(cfg.App.Title) == "" {
		return fmt.Errorf("app.title is required")
	}
	if strings.TrimSpace(cfg.App.TitlePlaceholder) == "" {
		return fmt.Errorf("app.title_placeholder is required")
	}
	if strings.TrimSpace(cfg.App.SubmitName) == "" {
		return fmt.Errorf("app.submit_name is required")
	}
	if cfg.Timeouts.Element <= 0 {
		return fmt.Errorf("timeouts.element must be positive")
	}
	if cfg.Timeouts.Launch <= 0 {
		return fmt.Errorf("timeouts.launch must be positive")
	}
	if cfg.Timeouts.Navigate <= 0 {
		return fmt.Errorf("timeouts.navigate must be positive")
	}
	if cfg.Transition.Timeout <= 0 {
		return fmt.Errorf("transition.timeout must be positive")
	}
	if cfg.Settle.Delay < 0 || cfg.Settle.Timeout < 0 || cfg.Sessions.Wait < 0 || cfg.Timeouts.Run < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	pattern := strings.TrimPrefix(strings.TrimSpace(cfg.Transition.PathPattern), "/")
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("transition.path_pattern is not a valid glob: %q", cfg.Transition.PathPattern)
	}
	if strings.TrimSpace(cfg.Sessions.Dir) == "" {
		return fmt.Errorf("sessions.dir is required")
	}
	if strings.TrimSpace(cfg.Sessions.Suffix) == "" {
		return fmt.Errorf("sessions.suffix is required")
	}
	if strings.TrimSpace(cfg.Evidence.Dir) == "" {
		return fmt.Errorf("evidence.dir is required")
	}
	for _, name := range []string{cfg.Evidence.SuccessName, cfg.Evidence.FailureName} {
		if strings.TrimSpace(name) == "" || filepath.Base(name) != name {
			return fmt.Errorf("evidence file names must be plain file names (got %q)", name)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Browser.ExecPath = expandPath(cfg.Browser.ExecPath)
	cfg.Sessions.Dir = expandPath(cfg.Sessions.Dir)
	cfg.Evidence.Dir = expandPath(cfg.Evidence.Dir)
}

func expandPath(value string) string {
	value = expandEnv(value)
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	if key == "HOME" {
		if home, err := os.UserHomeDir(); err == nil {
			return home, true
		}
	}
	return "", false
}

// WriteDefault renders DefaultConfig as YAML at path and returns where it went.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s exists; pass overwrite to replace it", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Marshal renders cfg as YAML with durations written as strings such as
// "30s" rather than nanosecond counts.
func Marshal(cfg Config) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return nil, err
	}
	humanizeDurations(reflect.ValueOf(cfg), &node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func humanizeDurations(v reflect.Value, node *yaml.Node) {
	if v.Kind() != reflect.Struct || node.Kind != yaml.MappingNode {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		val := mappingValue(node, key)
		if val == nil {
			continue
		}
		field := v.Field(i)
		if field.Type() == durationType {
			val.Kind = yaml.ScalarNode
			val.Tag = "!!str"
			val.Style = 0
			val.Value = time.Duration(field.Int()).String()
			continue
		}
		humanizeDurations(field, val)
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
