package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	yaml "go.yaml.in/yaml/v3"

	"github.com/dimfu/clack/v2/internal/logx"
	"github.com/dimfu/clack/v2/internal/metronome"
	"github.com/dimfu/clack/v2/internal/sound"
)

// Preset is a named tempo and signature pair selected with --preset.
type Preset struct {
	Key     string `json:"key"`
	Tempo   int    `json:"tempo"`
	Timesig string `json:"timesig"`
}

type AudioConfig struct {
	SampleRate  int    `json:"sample_rate,omitempty"`
	Buffer      string `json:"buffer,omitempty"`
	IdleRelease string `json:"idle_release,omitempty"`
}

type LogConfig struct {
	Level   string `json:"level,omitempty"`
	File    string `json:"file,omitempty"`
	Console bool   `json:"console,omitempty"`
}

type Config struct {
	Tempo     int               `json:"tempo,omitempty"`
	Timesig   string            `json:"timesig,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	SoundsDir string            `json:"sounds_dir,omitempty"`
	Sounds    map[string]string `json:"sounds,omitempty"`
	Presets   []Preset          `json:"presets,omitempty"`
	Audio     AudioConfig       `json:"audio"`
	Log       LogConfig         `json:"log"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Tempo == 0 {
		c.Tempo = metronome.DefaultTempo
	}
	if strings.TrimSpace(c.Timesig) == "" {
		c.Timesig = metronome.DefaultSignature
	}
	if strings.TrimSpace(c.Sound) == "" {
		c.Sound = DEFAULT_PROFILE
	}
	if len(c.Sounds) == 0 {
		c.Sounds = make(map[string]string, len(DEFAULT_SOUNDS))
		for k, v := range DEFAULT_SOUNDS {
			c.Sounds[k] = v
		}
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = DEFAULT_SAMPLE_RATE
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

// GetPreset returns the preset stored under key, or nil.
func (c *Config) GetPreset(key string) *Preset {
	for i := range c.Presets {
		if c.Presets[i].Key == key {
			return &c.Presets[i]
		}
	}
	return nil
}

func (c *Config) ApplyPreset(key string) error {
	p := c.GetPreset(key)
	if p == nil {
		return errors.Errorf("`%v` preset not found", key)
	}
	if p.Tempo != 0 {
		c.Tempo = p.Tempo
	}
	if p.Timesig != "" {
		c.Timesig = p.Timesig
	}
	return nil
}

func (c *Config) Validate() error {
	if _, ok := metronome.Lookup(c.Timesig); !ok {
		return errors.Errorf("timesig: unknown time signature %q (want one of %s)", c.Timesig, strings.Join(metronome.Names(), ", "))
	}
	for i, p := range c.Presets {
		if strings.TrimSpace(p.Key) == "" {
			return errors.Errorf("presets[%d]: key is required", i)
		}
		if p.Timesig != "" {
			if _, ok := metronome.Lookup(p.Timesig); !ok {
				return errors.Errorf("presets[%d]: unknown time signature %q", i, p.Timesig)
			}
		}
	}
	for profile, loc := range c.Sounds {
		if strings.TrimSpace(loc) == "" {
			return errors.Errorf("sounds.%s: location is required", profile)
		}
	}
	if _, err := c.BufferDuration(); err != nil {
		return err
	}
	if _, err := c.IdleRelease(); err != nil {
		return err
	}
	return nil
}

// Profiles lists the configured sound profiles in sorted order.
func (c *Config) Profiles() []string {
	out := make([]string, 0, len(c.Sounds))
	for p := range c.Sounds {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (c *Config) Sources() []sound.Source {
	out := make([]sound.Source, 0, len(c.Sounds))
	for _, p := range c.Profiles() {
		out = append(out, sound.Source{Profile: p, Location: c.Sounds[p]})
	}
	return out
}

func (c *Config) BufferDuration() (time.Duration, error) {
	return parseDurationOrDefault("audio.buffer", c.Audio.Buffer, DEFAULT_BUFFER)
}

// IdleRelease is how long the output stays open while paused. Zero keeps it
// open for good.
func (c *Config) IdleRelease() (time.Duration, error) {
	if strings.TrimSpace(c.Audio.IdleRelease) == "" {
		return DEFAULT_IDLE, nil
	}
	return parseDuration("audio.idle_release", c.Audio.IdleRelease)
}

func (c *Config) LogConfig(interactive bool) logx.Config {
	return logx.Config{
		Level:   c.Log.Level,
		File:    c.Log.File,
		Console: c.Log.Console || !interactive,
	}
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: invalid duration %q", path, raw)
	}
	if d < 0 {
		return 0, errors.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// ConfigManager reads the config file. The file is never written.
type ConfigManager struct {
	ConfigPath string
	// Required makes a missing file an error instead of a default config.
	Required bool

	log logx.Logger

	mu   sync.Mutex
	last []byte
}

func NewConfigManager(path string, required bool) *ConfigManager {
	if path == "" {
		path = UserHomeDir() + DEFAULT_CONFIG_NAME
	}
	return &ConfigManager{ConfigPath: path, Required: required, log: logx.Nop()}
}

func (cm *ConfigManager) SetLogger(log logx.Logger) { cm.log = log }

// LoadConfig parses the file, applies defaults and validates the result.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(cm.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) && !cm.Required {
			cm.log.Debug("no config file, using defaults", logx.String("path", cm.ConfigPath))
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := parseConfig(cm.ConfigPath, data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", cm.ConfigPath)
	}
	cm.mu.Lock()
	cm.last = data
	cm.mu.Unlock()
	return cfg, nil
}

func parseConfig(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		jb, err := coerceToJSONBytes(path, data)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(jb))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "decode")
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return nil, errors.New("trailing data")
			}
			return nil, errors.Wrap(err, "decode")
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// coerceToJSONBytes turns YAML into JSON so both formats share the strict
// decoder. Files without a .yaml/.yml extension are taken as JSON.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "yaml unmarshal")
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, errors.Wrap(err, "yaml to json")
	}
	return j, nil
}

func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// Watch calls fn with the new config whenever the file content changes. Bad
// edits are logged and skipped. It returns when ctx is done.
func (cm *ConfigManager) Watch(ctx context.Context, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "config watch")
	}
	defer w.Close()

	dir, file := filepath.Dir(cm.ConfigPath), filepath.Base(cm.ConfigPath)
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "config watch %s", dir)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		// editors write in several steps
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if ctx.Err() != nil {
				return
			}
			cm.reload(fn)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	cm.log.Debug("config watcher started", logx.String("path", cm.ConfigPath))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cm.log.Warn("config watch error", logx.Err(err))
		}
	}
}

func (cm *ConfigManager) reload(fn func(*Config)) {
	data, err := os.ReadFile(cm.ConfigPath)
	if err != nil {
		cm.log.Warn("config reload failed", logx.String("path", cm.ConfigPath), logx.Err(err))
		return
	}
	cm.mu.Lock()
	unchanged := bytes.Equal(data, cm.last)
	cm.mu.Unlock()
	if unchanged {
		return
	}
	cfg, err := parseConfig(cm.ConfigPath, data)
	if err != nil {
		cm.log.Warn("config rejected", logx.String("path", cm.ConfigPath), logx.Err(err))
		return
	}
	cm.mu.Lock()
	cm.last = data
	cm.mu.Unlock()
	cm.log.Info("config reloaded", logx.String("path", cm.ConfigPath))
	fn(cfg)
}
