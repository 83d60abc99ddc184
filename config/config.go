// Package config loads daemon configuration from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"

	"xdao.co/wxmsg/archive/archiveconfig"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvToken    = "WXMSG_TOKEN"
	EnvAPIKey   = "WXMSG_API_KEY"
	EnvHTTPAddr = "WXMSG_HTTP_ADDR"
	EnvLogLevel = "WXMSG_LOG_LEVEL"
	// EnvEndpoints is a comma-separated endpoint list.
	EnvEndpoints = "WXMSG_ENDPOINTS"
)

// Callback endpoints. EndpointWeChat needs a token, EndpointPay an api key.
const (
	EndpointWeChat = "wechat"
	EndpointPay    = "pay"
)

type Config struct {
	HTTPAddr string `json:"http_addr"`
	// Token verifies server callbacks.
	Token string `json:"token"`
	// APIKey verifies payment notifications.
	APIKey   string `json:"api_key"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`
	// Endpoints lists the callback endpoints to serve.
	Endpoints []string `json:"endpoints"`
	// Archive is optional; without it callbacks are not archived.
	Archive *archiveconfig.Config `json:"archive,omitempty"`
}

func Default() Config {
	return Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		Endpoints: []string{EndpointWeChat, EndpointPay},
	}
}

// LoadFile reads path over Default. It does not validate.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set and
// non-empty. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Token, EnvToken)
	set(&c.APIKey, EnvAPIKey)
	set(&c.HTTPAddr, EnvHTTPAddr)
	set(&c.LogLevel, EnvLogLevel)
	if v, ok := lookup(EnvEndpoints); ok && v != "" {
		c.Endpoints = nil
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				c.Endpoints = append(c.Endpoints, e)
			}
		}
	}
}

// Enabled reports whether endpoint is listed in Endpoints.
func (c Config) Enabled(endpoint string) bool {
	for _, e := range c.Endpoints {
		if e == endpoint {
			return true
		}
	}
	return false
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http_addr is required")
	}
	if len(c.Endpoints) == 0 {
		return errors.New("config: no endpoints enabled")
	}
	for _, e := range c.Endpoints {
		switch e {
		case EndpointWeChat:
			if c.Token == "" {
				return errors.New("config: endpoint wechat requires token")
			}
		case EndpointPay:
			if c.APIKey == "" {
				return errors.New("config: endpoint pay requires api_key")
			}
		default:
			return fmt.Errorf("config: unknown endpoint %q", e)
		}
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("config: log_level: %w", err)
		}
	}
	if c.Archive != nil {
		if err := c.Archive.Validate(); err != nil {
			return fmt.Errorf("config: archive: %w", err)
		}
	}
	return nil
}
