package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuleConfig is one pattern->ticker entry. Order in the yaml list is the
// evaluation order: the first matching pattern wins.
type RuleConfig struct {
	Pattern string `yaml:"pattern"`
	Ticker  string `yaml:"ticker"`
}

type Config struct {
	Mode    string `yaml:"mode"` // DRY_RUN or LIVE (order simulation)
	Watcher struct {
		Username       string       `yaml:"username"`
		Rules          []RuleConfig `yaml:"rules"`
		UseImageSignal bool         `yaml:"use_image_signal"`
		TweetText      string       `yaml:"tweet_text"` // literal payload: process once, no trade
		TimeoutHours   int          `yaml:"timeout_hours"`
		BackoffSeconds int          `yaml:"backoff_seconds"`
	} `yaml:"watcher"`
	Trade struct {
		Bridge           string `yaml:"bridge"`
		OrderSize        string `yaml:"order_size"`  // "max" or a fraction like "0.5"
		MarginType       string `yaml:"margin_type"` // cross or isolated
		BuyDelaySeconds  int    `yaml:"buy_delay_seconds"`
		SellDelaySeconds int    `yaml:"sell_delay_seconds"`
	} `yaml:"trade"`
	Guard struct {
		StartupDelaySeconds int    `yaml:"startup_delay_seconds"`
		LockDir             string `yaml:"lock_dir"`
	} `yaml:"guard"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Watcher.Rules) == 0 {
		return errors.New("watcher.rules cannot be empty")
	}
	for i, r := range c.Watcher.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("watcher.rules[%d]: pattern cannot be empty", i)
		}
		if r.Ticker == "" {
			return fmt.Errorf("watcher.rules[%d]: ticker cannot be empty", i)
		}
	}
	if c.Watcher.Username == "" && c.Watcher.TweetText == "" {
		return errors.New("watcher.username is required unless watcher.tweet_text is set")
	}
	if c.Trade.Bridge == "" {
		return errors.New("trade.bridge cannot be empty")
	}
	if c.Trade.MarginType != "cross" && c.Trade.MarginType != "isolated" {
		return fmt.Errorf("trade.margin_type must be 'cross' or 'isolated', got '%s'", c.Trade.MarginType)
	}
	if c.Trade.OrderSize != "max" {
		f, err := strconv.ParseFloat(c.Trade.OrderSize, 64)
		if err != nil {
			return fmt.Errorf("trade.order_size must be 'max' or a fraction, got '%s'", c.Trade.OrderSize)
		}
		if f <= 0 {
			return fmt.Errorf("trade.order_size must be positive, got %s", c.Trade.OrderSize)
		}
	}
	if c.Trade.BuyDelaySeconds < 0 || c.Trade.SellDelaySeconds < 0 {
		return errors.New("trade delays cannot be negative")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Watcher.TimeoutHours == 0 {
		c.Watcher.TimeoutHours = 24
	}
	if c.Watcher.BackoffSeconds == 0 {
		c.Watcher.BackoffSeconds = 60
	}
	if c.Trade.Bridge == "" {
		c.Trade.Bridge = "USDT"
	}
	if c.Trade.OrderSize == "" {
		c.Trade.OrderSize = "max"
	}
	if c.Trade.MarginType == "" {
		c.Trade.MarginType = "cross"
	}
	if c.Trade.BuyDelaySeconds == 0 {
		c.Trade.BuyDelaySeconds = 10
	}
	if c.Trade.SellDelaySeconds == 0 {
		c.Trade.SellDelaySeconds = 600
	}
	if c.Guard.StartupDelaySeconds == 0 {
		c.Guard.StartupDelaySeconds = 10
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
