package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Product string `yaml:"product"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Feed struct {
		// Source selects the transport: "ws" for the live websocket,
		// "kafka" for replaying a recorded stream.
		Source string `yaml:"source"`
		WSURL  string `yaml:"ws_url"`
		Kafka  struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
			GroupID string   `yaml:"group_id"`
		} `yaml:"kafka"`
	} `yaml:"feed"`
	Snapshot struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"snapshot"`
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"journal"`
	Broadcast struct {
		Enabled    bool     `yaml:"enabled"`
		Brokers    []string `yaml:"brokers"`
		Topic      string   `yaml:"topic"`
		IntervalMS int      `yaml:"interval_ms"`
	} `yaml:"broadcast"`
	Server struct {
		Addr                string `yaml:"addr"`
		ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	} `yaml:"server"`
	Replica struct {
		// Strict halts event application on a consistency fault until
		// the next resync instead of skipping the event.
		Strict bool `yaml:"strict"`
	} `yaml:"replica"`
}

func defaultConfig() Config {
	var c Config
	c.Product = "BTC-USD"
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Feed.Source = "ws"
	c.Feed.WSURL = "wss://ws-feed.exchange.coinbase.com"
	c.Feed.Kafka.Brokers = []string{"localhost:9092"}
	c.Feed.Kafka.Topic = "fullbook.events"
	c.Feed.Kafka.GroupID = "fullbook-replay"
	c.Snapshot.BaseURL = "https://api.exchange.coinbase.com"
	c.Snapshot.TimeoutSeconds = 10
	c.Journal.Enabled = true
	c.Journal.Dir = "./journal"
	c.Broadcast.Enabled = false
	c.Broadcast.Brokers = []string{"localhost:9092"}
	c.Broadcast.Topic = "fullbook.events"
	c.Broadcast.IntervalMS = 250
	c.Server.Addr = ":9090"
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Replica.Strict = false
	return c
}

// Load builds the config from defaults, an optional YAML file named by
// FULLBOOK_CONFIG, then env overrides.
func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("FULLBOOK_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	if v := os.Getenv("FULLBOOK_PRODUCT"); v != "" {
		c.Product = v
	}
	if v := os.Getenv("FULLBOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FULLBOOK_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("FULLBOOK_FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("FULLBOOK_FEED_WS_URL"); v != "" {
		c.Feed.WSURL = v
	}
	if v := os.Getenv("FULLBOOK_SNAPSHOT_URL"); v != "" {
		c.Snapshot.BaseURL = v
	}
	if v := os.Getenv("FULLBOOK_JOURNAL_DIR"); v != "" {
		c.Journal.Dir = v
	}
	if v := os.Getenv("FULLBOOK_JOURNAL_ENABLED"); v != "" {
		c.Journal.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("FULLBOOK_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FULLBOOK_STRICT"); v == "1" || v == "true" {
		c.Replica.Strict = true
	}
	if v := os.Getenv("FULLBOOK_SNAPSHOT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Snapshot.TimeoutSeconds = n
		}
	}
	return c
}
