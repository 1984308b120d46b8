package config

import "time"

// Config holds runtime settings for the credkeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gRPC endpoint of the server.
//   - OnlineCheckInterval: how often the prompt checks server reachability.
//   - RequestTimeout: deadline applied to every call made by a command.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with defaults matching a local server.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then the JSON file, then flags. Later
// sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
