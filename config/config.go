package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/vultisig/schedpay/internal/logging"
	"github.com/vultisig/schedpay/internal/metrics"
)

const configNameEnv = "SCHEDPAY_CONFIG_NAME"

type APIConfig struct {
	Server struct {
		Host string `mapstructure:"host" json:"host,omitempty"`
		Port int64  `mapstructure:"port" json:"port,omitempty"`
	} `mapstructure:"server" json:"server"`
	Reconcile ReconcileConfig   `mapstructure:"reconcile" json:"reconcile"`
	Database  DatabaseConfig    `mapstructure:"database" json:"database,omitempty"`
	Redis     RedisConfig       `mapstructure:"redis" json:"redis,omitempty"`
	Rpc       RpcConfig         `mapstructure:"rpc" json:"rpc,omitempty"`
	Metrics   metrics.Config    `mapstructure:"metrics" json:"metrics,omitempty"`
	LogFormat logging.LogFormat `mapstructure:"log_format" json:"log_format,omitempty"`
}

type WorkerConfig struct {
	Worker    WorkerSettings    `mapstructure:"worker" json:"worker"`
	Reconcile ReconcileConfig   `mapstructure:"reconcile" json:"reconcile"`
	Database  DatabaseConfig    `mapstructure:"database" json:"database,omitempty"`
	Redis     RedisConfig       `mapstructure:"redis" json:"redis,omitempty"`
	Rpc       RpcConfig         `mapstructure:"rpc" json:"rpc,omitempty"`
	Metrics   metrics.Config    `mapstructure:"metrics" json:"metrics,omitempty"`
	LogFormat logging.LogFormat `mapstructure:"log_format" json:"log_format,omitempty"`
}

// ReconcileConfig tunes the resolution engine shared by the api and the worker.
type ReconcileConfig struct {
	Cadence          time.Duration `mapstructure:"cadence" json:"cadence,omitempty"`
	SnapshotCacheTTL time.Duration `mapstructure:"snapshot_cache_ttl" json:"snapshot_cache_ttl,omitempty"`
}

type WorkerSettings struct {
	Queue            string        `mapstructure:"queue" json:"queue,omitempty"`
	Concurrency      int           `mapstructure:"concurrency" json:"concurrency,omitempty"`
	Interval         time.Duration `mapstructure:"interval" json:"interval,omitempty"`
	IterationTimeout time.Duration `mapstructure:"iteration_timeout" json:"iteration_timeout,omitempty"`
	HealthPort       int           `mapstructure:"health_port" json:"health_port,omitempty"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
}

type RedisConfig struct {
	ConnURI  string `mapstructure:"conn_uri" json:"conn_uri,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     string `mapstructure:"port" json:"port,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db,omitempty"`
}

func (r RedisConfig) GetRedisOptions() (*redis.Options, error) {
	if r.ConnURI != "" {
		opts, err := redis.ParseURL(r.ConnURI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URI: %w", err)
		}
		return opts, nil
	}

	if r.Host == "" {
		return nil, fmt.Errorf("redis host is required when conn_uri is not provided")
	}

	return &redis.Options{
		Addr:     r.Host + ":" + r.Port,
		Username: r.User,
		Password: r.Password,
		DB:       r.DB,
	}, nil
}

// RpcItem is a single EVM endpoint. FromBlock bounds the payment log scan.
type RpcItem struct {
	URL       string `mapstructure:"url" json:"url,omitempty"`
	FromBlock uint64 `mapstructure:"from_block" json:"from_block,omitempty"`
}

type RpcConfig struct {
	Ethereum  RpcItem `mapstructure:"ethereum" json:"ethereum,omitempty"`
	Avalanche RpcItem `mapstructure:"avalanche" json:"avalanche,omitempty"`
	BscChain  RpcItem `mapstructure:"bsc" json:"bsc,omitempty"`
	Arbitrum  RpcItem `mapstructure:"arbitrum" json:"arbitrum,omitempty"`
	Base      RpcItem `mapstructure:"base" json:"base,omitempty"`
	Optimism  RpcItem `mapstructure:"optimism" json:"optimism,omitempty"`
	Polygon   RpcItem `mapstructure:"polygon" json:"polygon,omitempty"`

	Retries     int `mapstructure:"retries" json:"retries,omitempty"`
	Concurrency int `mapstructure:"concurrency" json:"concurrency,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_format", string(logging.FormatText))
	v.SetDefault("reconcile.cadence", 30*24*time.Hour)
	v.SetDefault("reconcile.snapshot_cache_ttl", 30*time.Second)
	v.SetDefault("rpc.retries", 3)
	v.SetDefault("rpc.concurrency", 8)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 8088)
	v.SetDefault("server.port", 8080)
	v.SetDefault("worker.queue", "schedpay")
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.interval", time.Minute)
	v.SetDefault("worker.iteration_timeout", 30*time.Second)
	v.SetDefault("worker.health_port", 8089)
}

func configName() string {
	name := os.Getenv(configNameEnv)
	if name == "" {
		name = "config"
	}
	return name
}

func read(name string, out any) error {
	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("fail to reading config file, %w", err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unable to decode into struct, %w", err)
	}
	return nil
}

func ReadAPIConfig() (*APIConfig, error) {
	var cfg APIConfig
	if err := read(configName(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ReadWorkerConfig() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := read(configName(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AsynqOpt returns the queue connection for the same redis instance.
func (r RedisConfig) AsynqOpt() (asynq.RedisConnOpt, error) {
	if r.ConnURI != "" {
		opt, err := asynq.ParseRedisURI(r.ConnURI)
		if err != nil {
			return nil, fmt.Errorf("asynq.ParseRedisURI: %w", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{
		Addr:     r.Host + ":" + r.Port,
		Username: r.User,
		Password: r.Password,
		DB:       r.DB,
	}, nil
}
