package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type ListingConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type UsersConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type WSConfig struct {
	PingIntervalSeconds   int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds  int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes   int64 `mapstructure:"max_message_size_bytes"`
	SendRatePerMinute     int   `mapstructure:"send_rate_per_minute"`
	PublishTimeoutSeconds int   `mapstructure:"publish_timeout_seconds"`
}

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	NATS    NATSConfig    `mapstructure:"nats"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Listing ListingConfig `mapstructure:"listing"`
	Users   UsersConfig   `mapstructure:"users"`
	WS      WSConfig      `mapstructure:"ws"`

	// derived
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	PublishTimeout time.Duration
	ListingTimeout time.Duration
	UsersTimeout   time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	if c.WS.SendRatePerMinute == 0 {
		c.WS.SendRatePerMinute = 120
	}
	if c.WS.PublishTimeoutSeconds == 0 {
		c.WS.PublishTimeoutSeconds = 5
	}
	if c.Listing.TimeoutSeconds == 0 {
		c.Listing.TimeoutSeconds = 5
	}
	if c.Users.TimeoutSeconds == 0 {
		c.Users.TimeoutSeconds = 5
	}
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PublishTimeout = time.Duration(c.WS.PublishTimeoutSeconds) * time.Second
	c.ListingTimeout = time.Duration(c.Listing.TimeoutSeconds) * time.Second
	c.UsersTimeout = time.Duration(c.Users.TimeoutSeconds) * time.Second
	return &c, nil
}
