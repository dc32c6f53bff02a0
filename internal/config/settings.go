package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AEGYPTUS"

type ServerConfig struct {
	Addr                string `mapstructure:"addr"`
	ShutdownTimeoutSecs int    `mapstructure:"shutdown_timeout_secs"`
	MaxMultipartMB      int64  `mapstructure:"max_multipart_mb"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Pass    string `mapstructure:"pass"`
	DB      int    `mapstructure:"db"`
}

// ProbeConfig controls the python environment check run before each transcription.
type ProbeConfig struct {
	Interpreter  string   `mapstructure:"interpreter"`
	Modules      []string `mapstructure:"modules"`
	TimeoutSecs  int      `mapstructure:"timeout_secs"`
	CacheTTLSecs int      `mapstructure:"cache_ttl_secs"`
}

// WorkerProfile describes one flavour of whisper worker and its limits.
// Args is the script's argument template, see whisper.Worker.
type WorkerProfile struct {
	Name           string   `mapstructure:"name"`
	Interpreter    string   `mapstructure:"interpreter"`
	Script         string   `mapstructure:"script"`
	Args           []string `mapstructure:"args"`
	ModelSize      string   `mapstructure:"model_size"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	TimeoutSecs    int      `mapstructure:"timeout_secs"`
}

func (p WorkerProfile) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

type SpeechConfig struct {
	ScratchRoot          string        `mapstructure:"scratch_root"`
	Namespace            string        `mapstructure:"namespace"`
	SweepAfterMins       int           `mapstructure:"sweep_after_mins"`
	MaxConcurrentWorkers int           `mapstructure:"max_concurrent_workers"`
	CancelOnDisconnect   bool          `mapstructure:"cancel_on_disconnect"`
	StderrTailBytes      int           `mapstructure:"stderr_tail_bytes"`
	Probe                ProbeConfig   `mapstructure:"probe"`
	Baseline             WorkerProfile `mapstructure:"baseline"`
	Enhanced             WorkerProfile `mapstructure:"enhanced"`
}

func (p ProbeConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

func (p ProbeConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSecs) * time.Second
}

type Settings struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Speech SpeechConfig `mapstructure:"speech"`
	Env    string       `mapstructure:"env"`
	Debug  bool         `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout_secs", 5)
	v.SetDefault("server.max_multipart_mb", 64)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("speech.namespace", "aegyptus-whisper")
	v.SetDefault("speech.sweep_after_mins", 60)
	v.SetDefault("speech.max_concurrent_workers", 4)
	v.SetDefault("speech.cancel_on_disconnect", true)
	v.SetDefault("speech.stderr_tail_bytes", 64*1024)

	v.SetDefault("speech.probe.interpreter", "python3")
	v.SetDefault("speech.probe.modules", []string{"whisper", "torch"})
	v.SetDefault("speech.probe.timeout_secs", 10)
	v.SetDefault("speech.probe.cache_ttl_secs", 0)

	v.SetDefault("speech.baseline.name", "baseline")
	v.SetDefault("speech.baseline.interpreter", "python3")
	v.SetDefault("speech.baseline.script", "scripts/whisper_service.py")
	v.SetDefault("speech.baseline.args", []string{"{audio}", "{language}", "{model}"})
	v.SetDefault("speech.baseline.model_size", "base")
	v.SetDefault("speech.baseline.max_upload_bytes", 25*1024*1024)
	v.SetDefault("speech.baseline.timeout_secs", 60)

	v.SetDefault("speech.enhanced.name", "enhanced")
	v.SetDefault("speech.enhanced.interpreter", "python3")
	v.SetDefault("speech.enhanced.script", "scripts/enhanced_whisper.py")
	v.SetDefault("speech.enhanced.args", []string{"{audio}", "{scratch}", "{id}"})
	v.SetDefault("speech.enhanced.model_size", "large-v3")
	v.SetDefault("speech.enhanced.max_upload_bytes", 50*1024*1024)
	v.SetDefault("speech.enhanced.timeout_secs", 300)
}

// Load reads config_<env>.yaml from the working directory (or ./config) and
// overlays AEGYPTUS_* environment variables. A missing file leaves defaults in place.
func Load() (*Settings, error) {
	return LoadFrom(".", "./config")
}

func LoadFrom(paths ...string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config_" + genEnv(v))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}

// ValidationError reports one invalid settings field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Server.Addr) == "" {
		return &ValidationError{"server.addr", "must not be empty"}
	}
	if strings.TrimSpace(s.Speech.Namespace) == "" || strings.ContainsAny(s.Speech.Namespace, `/\`) {
		return &ValidationError{"speech.namespace", "must be a single path element"}
	}
	if s.Speech.MaxConcurrentWorkers < 0 {
		return &ValidationError{"speech.max_concurrent_workers", "must be >= 0"}
	}
	if s.Speech.Probe.TimeoutSecs < 1 {
		return &ValidationError{"speech.probe.timeout_secs", "must be >= 1"}
	}
	if s.Speech.Probe.CacheTTLSecs < 0 {
		return &ValidationError{"speech.probe.cache_ttl_secs", "must be >= 0"}
	}
	for _, p := range []WorkerProfile{s.Speech.Baseline, s.Speech.Enhanced} {
		prefix := "speech." + p.Name
		if p.Interpreter == "" || p.Script == "" {
			return &ValidationError{prefix, "interpreter and script are required"}
		}
		if len(p.Args) > 0 && !hasAudioArg(p.Args) {
			return &ValidationError{prefix + ".args", "must pass {audio}"}
		}
		if p.MaxUploadBytes <= 0 {
			return &ValidationError{prefix + ".max_upload_bytes", "must be > 0"}
		}
		if p.TimeoutSecs < 1 {
			return &ValidationError{prefix + ".timeout_secs", "must be >= 1"}
		}
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return &ValidationError{"redis.addr", "required when redis is enabled"}
	}
	return nil
}

func hasAudioArg(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "{audio}") {
			return true
		}
	}
	return false
}
