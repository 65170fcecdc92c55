package appconfig

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level harness configuration.
type Config struct {
	ConfigVersion int              `mapstructure:"config_version" yaml:"config_version"`
	App           AppConfig        `mapstructure:"app" yaml:"app"`
	Browser       BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Timeouts      TimeoutsConfig   `mapstructure:"timeouts" yaml:"timeouts"`
	Transition    TransitionConfig `mapstructure:"transition" yaml:"transition"`
	Settle        SettleConfig     `mapstructure:"settle" yaml:"settle"`
	Sessions      SessionsConfig   `mapstructure:"sessions" yaml:"sessions"`
	Evidence      EvidenceConfig   `mapstructure:"evidence" yaml:"evidence"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// AppConfig describes the application under test and the UI contract it exposes.
type AppConfig struct {
	URL              string `mapstructure:"url" yaml:"url"`
	Repo             string `mapstructure:"repo" yaml:"repo"`
	Title            string `mapstructure:"title" yaml:"title"`
	TitlePlaceholder string `mapstructure:"title_placeholder" yaml:"title_placeholder"`
	SubmitName       string `mapstructure:"submit_name" yaml:"submit_name"`
}

// BrowserConfig controls the automated browser.
type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless" yaml:"headless"`
	NoSandbox    bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath     string `mapstructure:"exec_path" yaml:"exec_path"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
}

// TimeoutsConfig bounds every blocking wait.
type TimeoutsConfig struct {
	Launch   time.Duration `mapstructure:"launch" yaml:"launch"`
	Navigate time.Duration `mapstructure:"navigate" yaml:"navigate"`
	Element  time.Duration `mapstructure:"element" yaml:"element"`
	Run      time.Duration `mapstructure:"run" yaml:"run"`
}

// TransitionConfig describes the session-view URL the app must navigate to.
type TransitionConfig struct {
	PathPattern  string        `mapstructure:"path_pattern" yaml:"path_pattern"`
	RequireQuery bool          `mapstructure:"require_query" yaml:"require_query"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SettleConfig controls the stability wait after navigation.
type SettleConfig struct {
	Selector string        `mapstructure:"selector" yaml:"selector"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
}

// SessionsConfig points at the directory the app persists sessions to.
type SessionsConfig struct {
	Dir        string        `mapstructure:"dir" yaml:"dir"`
	Suffix     string        `mapstructure:"suffix" yaml:"suffix"`
	RequireNew bool          `mapstructure:"require_new" yaml:"require_new"`
	Wait       time.Duration `mapstructure:"wait" yaml:"wait"`
}

// EvidenceConfig controls where screenshots and DOM snapshots go.
type EvidenceConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	SuccessName string `mapstructure:"success_name" yaml:"success_name"`
	FailureName string `mapstructure:"failure_name" yaml:"failure_name"`
	FailureHTML bool   `mapstructure:"failure_html" yaml:"failure_html"`
}

// DefaultConfig returns a config matching the stock Viba development setup.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		App: AppConfig{
			URL:              "http://localhost:3000",
			Repo:             "test-repo",
			Title:            "Test Session",
			TitlePlaceholder: "Task Title",
			SubmitName:       "Start Session",
		},
		Browser: BrowserConfig{
			Headless:     true,
			NoSandbox:    true,
			WindowWidth:  1280,
			WindowHeight: 720,
		},
		Timeouts: TimeoutsConfig{
			Launch:   30 * time.Second,
			Navigate: 30 * time.Second,
			Element:  5 * time.Second,
			Run:      2 * time.Minute,
		},
		Transition: TransitionConfig{
			PathPattern:  "**/session",
			RequireQuery: true,
			Timeout:      30 * time.Second,
		},
		Settle: SettleConfig{
			Timeout: 10 * time.Second,
			Delay:   2 * time.Second,
		},
		Sessions: SessionsConfig{
			Dir:        filepath.Join(home, ".viba", "sessions"),
			Suffix:     ".json",
			RequireNew: true,
		},
		Evidence: EvidenceConfig{
			Dir:         "verification",
			SuccessName: "session_created.png",
			FailureName: "failure.png",
			FailureHTML: true,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".viba", "verify.yaml"), nil
}
