package umbra

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the effective umbra configuration.
type Config struct {
	Log      LogConfig       `mapstructure:"log"`
	Shadow   shadow.Settings `mapstructure:"shadow"`
	Lighting LightingConfig  `mapstructure:"lighting"`
	Render   RenderConfig    `mapstructure:"render"`
	Simulate SimulateConfig  `mapstructure:"simulate"`
	Lights   []LightConfig   `mapstructure:"lights"`
}

type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	JSON  bool `mapstructure:"json"`
}

type LightingConfig struct {
	ShadowFilterMode string `mapstructure:"shadow_filter_mode"`
	PSSMDebugRender  bool   `mapstructure:"pssm_debug_render"`
}

type RenderConfig struct {
	Width  int     `mapstructure:"width"`
	Height int     `mapstructure:"height"`
	FovY   float32 `mapstructure:"fov_y"` // degrees
	Near   float32 `mapstructure:"near"`
	Far    float32 `mapstructure:"far"`
}

type SimulateConfig struct {
	Frames      int           `mapstructure:"frames"`
	Lights      int           `mapstructure:"lights"`
	Seed        uint64        `mapstructure:"seed"`
	FrameTime   time.Duration `mapstructure:"frame_time"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// LightConfig declares one light. Shadow holds ShadowMapParams fields by
// name, e.g. texSize or shadowType.
type LightConfig struct {
	Name        string         `mapstructure:"name"`
	Type        string         `mapstructure:"type"`
	Position    []float32      `mapstructure:"position"`
	Direction   []float32      `mapstructure:"direction"`
	Color       []float32      `mapstructure:"color"`
	Brightness  float32        `mapstructure:"brightness"`
	Range       float32        `mapstructure:"range"`
	InnerCone   float32        `mapstructure:"inner_cone"`
	OuterCone   float32        `mapstructure:"outer_cone"`
	CastShadows bool           `mapstructure:"cast_shadows"`
	Priority    float32        `mapstructure:"priority"`
	Shadow      map[string]any `mapstructure:"shadow"`
}

func DefaultConfig() *Config {
	return &Config{
		Shadow: shadow.DefaultSettings(),
		Lighting: LightingConfig{
			ShadowFilterMode: shadow.FilterSoftShadow.String(),
		},
		Render: RenderConfig{
			Width:  1280,
			Height: 720,
			FovY:   60,
			Near:   0.1,
			Far:    500,
		},
		Simulate: SimulateConfig{
			Frames:    120,
			Lights:    16,
			Seed:      1,
			FrameTime: 16 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("shadow.render_budget", d.Shadow.RenderBudget)
	v.SetDefault("shadow.purge_window", d.Shadow.PurgeWindow)
	v.SetDefault("shadow.disable_shadows", d.Shadow.DisableShadows)
	v.SetDefault("shadow.lod_normalization", d.Shadow.LODNormalization)
	v.SetDefault("shadow.lod_cutoff", d.Shadow.LODCutoff)
	v.SetDefault("shadow.lod_threshold", d.Shadow.LODThreshold)

	v.SetDefault("lighting.shadow_filter_mode", d.Lighting.ShadowFilterMode)
	v.SetDefault("lighting.pssm_debug_render", d.Lighting.PSSMDebugRender)

	v.SetDefault("render.width", d.Render.Width)
	v.SetDefault("render.height", d.Render.Height)
	v.SetDefault("render.fov_y", d.Render.FovY)
	v.SetDefault("render.near", d.Render.Near)
	v.SetDefault("render.far", d.Render.Far)

	v.SetDefault("simulate.frames", d.Simulate.Frames)
	v.SetDefault("simulate.lights", d.Simulate.Lights)
	v.SetDefault("simulate.seed", d.Simulate.Seed)
	v.SetDefault("simulate.frame_time", d.Simulate.FrameTime)
	v.SetDefault("simulate.metrics_addr", d.Simulate.MetricsAddr)
}

// FilterMode parses the configured shadow filter.
func (c *Config) FilterMode() (shadow.FilterMode, error) {
	return shadow.ParseFilterMode(c.Lighting.ShadowFilterMode)
}

// Validate reports settings no component could run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.FilterMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Errorf("render size %dx%d must be positive", c.Render.Width, c.Render.Height))
	}
	if c.Render.Near <= 0 || c.Render.Far <= c.Render.Near {
		errs = append(errs, fmt.Errorf("render near/far %v/%v out of order", c.Render.Near, c.Render.Far))
	}
	for i, lc := range c.Lights {
		if _, err := parseLightType(lc.Type); err != nil {
			errs = append(errs, fmt.Errorf("lights[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func parseLightType(s string) (core.LightType, error) {
	for _, t := range []core.LightType{core.LightTypePoint, core.LightTypeSpot, core.LightTypeVector, core.LightTypeAmbient} {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown light type %q", s)
}

func vec3(v []float32, def mgl32.Vec3) mgl32.Vec3 {
	if len(v) < 3 {
		return def
	}
	return mgl32.Vec3{v[0], v[1], v[2]}
}

// Build creates the light. Shadow overrides are applied separately by
// ApplyShadowOverrides once the light manager attached its params.
func (lc LightConfig) Build() (*core.LightInfo, error) {
	t, err := parseLightType(lc.Type)
	if err != nil {
		return nil, err
	}
	l := core.NewLightInfo(t)
	l.CastShadows = lc.CastShadows
	if lc.Range > 0 {
		l.Range = lc.Range
	}
	if lc.Brightness > 0 {
		l.Brightness = lc.Brightness
	}
	if lc.Priority > 0 {
		l.Priority = lc.Priority
	}
	if lc.OuterCone > 0 {
		l.OuterConeAngle = lc.OuterCone
	}
	if lc.InnerCone > 0 {
		l.InnerConeAngle = lc.InnerCone
	}
	if len(lc.Color) >= 3 {
		l.Color = mgl32.Vec4{lc.Color[0], lc.Color[1], lc.Color[2], 1}
	}
	if len(lc.Direction) >= 3 {
		l.SetDirection(vec3(lc.Direction, mgl32.Vec3{0, 0, -1}))
	}
	l.SetPosition(vec3(lc.Position, mgl32.Vec3{}))
	return l, nil
}

// ApplyShadowOverrides sets every configured shadow field on l's params,
// in name order. The light must already carry ShadowMapParams.
func (lc LightConfig) ApplyShadowOverrides(l *core.LightInfo) error {
	if len(lc.Shadow) == 0 {
		return nil
	}
	params := shadow.ParamsFor(l)
	if params == nil {
		return fmt.Errorf("light %q has no shadow params", lc.Name)
	}
	names := make([]string, 0, len(lc.Shadow))
	for name := range lc.Shadow {
		names = append(names, name)
	}
	sort.Strings(names)

	// Config keys may arrive lowercased.
	canonical := make(map[string]string)
	for _, f := range shadow.Fields() {
		canonical[strings.ToLower(f.Name)] = f.Name
	}

	var errs []error
	for _, name := range names {
		field, ok := canonical[strings.ToLower(name)]
		if !ok {
			field = name
		}
		if err := params.SetField(field, lc.Shadow[name]); err != nil {
			errs = append(errs, fmt.Errorf("light %q: %w", lc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ConfigLoader reads the configuration through viper and can watch the
// file for changes.
type ConfigLoader struct {
	v   *viper.Viper
	log Logger

	mu  sync.Mutex
	cfg *Config
}

// NewConfigLoader reads path when set, otherwise umbra.yaml from the
// working directory or $HOME/.umbra. Environment variables prefixed with
// UMBRA_ override file values.
func NewConfigLoader(path string, log Logger) *ConfigLoader {
	if log == nil {
		log = NewNopLogger()
	}
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("umbra")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.umbra")
	}
	v.SetEnvPrefix("UMBRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &ConfigLoader{v: v, log: log}
}

// Viper exposes the underlying instance for flag binding.
func (l *ConfigLoader) Viper() *viper.Viper { return l.v }

// Load reads the file if one exists and decodes the result. A missing
// default file is not an error; a missing explicit file is.
func (l *ConfigLoader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		l.log.Debugf("no config file found, using defaults")
	} else {
		l.log.Infof("loaded config from %s", l.v.ConfigFileUsed())
	}
	return l.decode()
}

func (l *ConfigLoader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully decoded configuration.
func (l *ConfigLoader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Watch calls fn with the new configuration every time the file changes.
// Invalid edits are logged and the previous configuration stays current.
func (l *ConfigLoader) Watch(fn func(old, updated *Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		old := l.Current()
		cfg, err := l.decode()
		if err != nil {
			l.log.Warnf("config change in %s ignored: %v", e.Name, err)
			return
		}
		l.log.Infof("config reloaded after %s on %s", e.Op, e.Name)
		fn(old, cfg)
	})
	l.v.WatchConfig()
}

// DumpYAML renders the effective settings, defaults included.
func (l *ConfigLoader) DumpYAML() ([]byte, error) {
	return yaml.Marshal(l.v.AllSettings())
}
