package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/rtcworker/internal/adapters/rtc"
)

const (
	ModePipe      = "pipe"
	ModeWebSocket = "websocket"
)

type Config struct {
	LogLevel         string        `mapstructure:"log_level"`
	RTCConfiguration string        `mapstructure:"rtc_configuration"`
	Channel          ChannelConfig `mapstructure:"channel"`
	Monitor          MonitorConfig `mapstructure:"monitor"`
	Media            MediaConfig   `mapstructure:"media"`
	HTTP             HTTPConfig    `mapstructure:"http"`
}

type ChannelConfig struct {
	Mode           string `mapstructure:"mode"`
	ReadFD         int    `mapstructure:"read_fd"`
	WriteFD        int    `mapstructure:"write_fd"`
	URL            string `mapstructure:"url"`
	MaxMessageSize int    `mapstructure:"max_message_size"`
}

type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MediaConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads defaults, the optional config file, WORKER_* env and args, in
// increasing order of precedence.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	fs.StringP("logLevel", "l", "", "log level (debug, info, warn, error, none)")
	fs.StringP("rtcConfiguration", "c", "", "RTCConfiguration JSON string")
	configFile := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("log_level", "info")
	v.SetDefault("rtc_configuration", "")
	v.SetDefault("channel.mode", ModePipe)
	v.SetDefault("channel.read_fd", 3)
	v.SetDefault("channel.write_fd", 4)
	v.SetDefault("channel.url", "")
	v.SetDefault("channel.max_message_size", 4<<20)
	v.SetDefault("monitor.interval", "1s")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("http.addr", "")

	v.SetEnvPrefix("WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("log_level", fs.Lookup("logLevel")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("rtc_configuration", fs.Lookup("rtcConfiguration")); err != nil {
		return nil, err
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", *configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first setting the worker cannot start with.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Channel.Mode {
	case ModePipe:
		if c.Channel.ReadFD < 0 || c.Channel.WriteFD < 0 {
			return fmt.Errorf("invalid channel fds %d/%d", c.Channel.ReadFD, c.Channel.WriteFD)
		}
	case ModeWebSocket:
		if c.Channel.URL == "" {
			return fmt.Errorf("channel.url is required in %s mode", ModeWebSocket)
		}
	default:
		return fmt.Errorf("invalid channel mode %q", c.Channel.Mode)
	}
	if c.Channel.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid channel.max_message_size %d", c.Channel.MaxMessageSize)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("invalid monitor.interval %s", c.Monitor.Interval)
	}
	if _, err := c.WebRTC(); err != nil {
		return err
	}
	return nil
}

// Level maps log_level onto zerolog; "none" disables logging.
func (c *Config) Level() (zerolog.Level, error) {
	switch c.LogLevel {
	case "none":
		return zerolog.Disabled, nil
	case "debug", "info", "warn", "error":
		return zerolog.ParseLevel(c.LogLevel)
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
}

type iceServer struct {
	URLs           json.RawMessage `json:"urls"`
	Username       string          `json:"username"`
	Credential     string          `json:"credential"`
	CredentialType string          `json:"credentialType"`
}

type rtcConfiguration struct {
	ICEServers []iceServer `json:"iceServers"`
}

// WebRTC turns the RTCConfiguration JSON into an engine configuration. An
// empty string, or a document without iceServers, keeps the defaults.
func (c *Config) WebRTC() (webrtc.Configuration, error) {
	if strings.TrimSpace(c.RTCConfiguration) == "" {
		return rtc.DefaultWebRTCConfig(), nil
	}

	var raw rtcConfiguration
	if err := json.Unmarshal([]byte(c.RTCConfiguration), &raw); err != nil {
		return webrtc.Configuration{}, fmt.Errorf("invalid RTCConfiguration: %w", err)
	}
	if raw.ICEServers == nil {
		return rtc.DefaultWebRTCConfig(), nil
	}

	servers := make([]webrtc.ICEServer, 0, len(raw.ICEServers))
	for i, s := range raw.ICEServers {
		server, err := s.toEngine()
		if err != nil {
			return webrtc.Configuration{}, fmt.Errorf("invalid RTCConfiguration: iceServers[%d]: %w", i, err)
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}, nil
}

func (s iceServer) toEngine() (webrtc.ICEServer, error) {
	urls, err := s.urls()
	if err != nil {
		return webrtc.ICEServer{}, err
	}
	for _, u := range urls {
		if _, err := stun.ParseURI(u); err != nil {
			return webrtc.ICEServer{}, fmt.Errorf("url %q: %w", u, err)
		}
	}

	out := webrtc.ICEServer{URLs: urls, Username: s.Username}
	if s.Credential != "" {
		out.Credential = s.Credential
	}
	switch s.CredentialType {
	case "", "password":
		out.CredentialType = webrtc.ICECredentialTypePassword
	default:
		return webrtc.ICEServer{}, fmt.Errorf("unsupported credentialType %q", s.CredentialType)
	}
	return out, nil
}

// urls accepts either a single string or a list, as browsers do.
func (s iceServer) urls() ([]string, error) {
	if len(s.URLs) == 0 {
		return nil, fmt.Errorf("urls is required")
	}
	var one string
	if err := json.Unmarshal(s.URLs, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(s.URLs, &many); err != nil {
		return nil, fmt.Errorf("urls must be a string or a list of strings")
	}
	if len(many) == 0 {
		return nil, fmt.Errorf("urls is empty")
	}
	return many, nil
}
