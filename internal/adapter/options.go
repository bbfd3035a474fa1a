package adapter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Options is the per-category structured configuration accepted by
// Configure. Each category has exactly one option type; unknown or missing
// keys fail fast with a *ConfigurationError instead of being ignored.
type Options interface {
	Category() Category
	Validate() error
}

// WebOptions configures the web adapter.
type WebOptions struct {
	Browser        string        `yaml:"browser"`
	Headless       bool          `yaml:"headless"`
	GridURL        string        `yaml:"grid_url"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	ScreenshotDir  string        `yaml:"screenshot_dir"`
	BaselineDir    string        `yaml:"baseline_dir"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Category implements Options.
func (o *WebOptions) Category() Category { return CategoryWeb }

// Validate implements Options.
func (o *WebOptions) Validate() error {
	switch o.Browser {
	case "chromium", "firefox", "webkit", "chrome", "edge":
	case "":
		return &ConfigurationError{Option: "browser", Reason: "required"}
	default:
		return &ConfigurationError{Option: "browser", Reason: fmt.Sprintf("unsupported browser %q", o.Browser)}
	}

	if o.GridURL == "" {
		return &ConfigurationError{Option: "grid_url", Reason: "required"}
	}

	if o.ViewportWidth < 0 || o.ViewportHeight < 0 {
		return &ConfigurationError{Option: "viewport", Reason: "dimensions must be non-negative"}
	}

	return nil
}

// WindowsOptions configures the Windows desktop adapter.
type WindowsOptions struct {
	WinAppDriverURL string        `yaml:"winappdriver_url"`
	AppArguments    []string      `yaml:"app_arguments"`
	StartupTimeout  time.Duration `yaml:"startup_timeout"`
	ScreenshotDir   string        `yaml:"screenshot_dir"`
}

// Category implements Options.
func (o *WindowsOptions) Category() Category { return CategoryWindows }

// Validate implements Options.
func (o *WindowsOptions) Validate() error {
	if o.WinAppDriverURL == "" {
		return &ConfigurationError{Option: "winappdriver_url", Reason: "required"}
	}

	if o.StartupTimeout < 0 {
		return &ConfigurationError{Option: "startup_timeout", Reason: "must be non-negative"}
	}

	for _, arg := range o.AppArguments {
		if strings.ContainsAny(arg, "|&;`$") {
			return &ConfigurationError{
				Option: "app_arguments",
				Reason: fmt.Sprintf("argument %q contains shell metacharacters", arg),
			}
		}
	}

	return nil
}

// VSTOptions configures the audio plugin adapter.
type VSTOptions struct {
	DAWType       string `yaml:"daw_type"`
	DAWPath       string `yaml:"daw_path"`
	PluginFormat  string `yaml:"plugin_format"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// Category implements Options.
func (o *VSTOptions) Category() Category { return CategoryVST }

// Validate implements Options.
func (o *VSTOptions) Validate() error {
	switch o.DAWType {
	case "reaper", "ableton", "logic", "bitwig":
	case "":
		return &ConfigurationError{Option: "daw_type", Reason: "required"}
	default:
		return &ConfigurationError{Option: "daw_type", Reason: fmt.Sprintf("unsupported DAW %q", o.DAWType)}
	}

	switch o.PluginFormat {
	case "", "vst3", "au", "clap":
	default:
		return &ConfigurationError{Option: "plugin_format", Reason: fmt.Sprintf("unsupported format %q", o.PluginFormat)}
	}

	return nil
}

// GameOptions configures the game adapter.
type GameOptions struct {
	Platform       string        `yaml:"platform"`
	AirtestEnabled bool          `yaml:"airtest_enabled"`
	Resolution     string        `yaml:"resolution"`
	Fullscreen     bool          `yaml:"fullscreen"`
	StartupDelay   time.Duration `yaml:"startup_delay"`
	ScreenshotDir  string        `yaml:"screenshot_dir"`
}

// Category implements Options.
func (o *GameOptions) Category() Category { return CategoryGame }

// Validate implements Options.
func (o *GameOptions) Validate() error {
	switch o.Platform {
	case "windows", "android", "ios":
	case "":
		return &ConfigurationError{Option: "platform", Reason: "required"}
	default:
		return &ConfigurationError{Option: "platform", Reason: fmt.Sprintf("unsupported platform %q", o.Platform)}
	}

	if o.StartupDelay < 0 {
		return &ConfigurationError{Option: "startup_delay", Reason: "must be non-negative"}
	}

	return nil
}

// UnmarshalOptions decodes a YAML options node into the structured option
// type for the given category. Decoding is strict: unknown keys fail with a
// *ConfigurationError rather than being silently dropped.
func UnmarshalOptions(category Category, node *yaml.Node) (Options, error) {
	var opts Options

	switch category {
	case CategoryWeb:
		opts = &WebOptions{}
	case CategoryWindows:
		opts = &WindowsOptions{}
	case CategoryVST:
		opts = &VSTOptions{}
	case CategoryGame:
		opts = &GameOptions{}
	default:
		return nil, &UnknownCategoryError{Category: category}
	}

	if node != nil {
		if err := decodeStrict(node, opts); err != nil {
			return nil, &ConfigurationError{Option: string(category), Reason: err.Error()}
		}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func decodeStrict(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	return dec.Decode(out)
}
