package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Generation struct {
		Endpoint        string `yaml:"endpoint"`
		APIKey          string `yaml:"api_key"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
		PollTimeoutMin  int    `yaml:"poll_timeout_min"`
		ImageCount      int    `yaml:"image_count"`
		BaseUnitSec     int    `yaml:"base_unit_sec"`
		AspectRatio     string `yaml:"aspect_ratio"`
		SeedMin         int64  `yaml:"seed_min"`
		SeedMax         int64  `yaml:"seed_max"`
	} `yaml:"generation"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
}

// Load 读取并解析配置文件，返回配置实例（由 main 注入各组件，不使用全局变量）
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("配置文件读取失败: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	g := &c.Generation
	if g.PollIntervalSec <= 0 {
		g.PollIntervalSec = 3
	}
	if g.PollTimeoutMin <= 0 {
		g.PollTimeoutMin = 30
	}
	if g.ImageCount <= 0 {
		g.ImageCount = 3
	}
	if g.BaseUnitSec <= 0 {
		g.BaseUnitSec = 8
	}
	if g.AspectRatio == "" {
		g.AspectRatio = "16:9"
	}
	if g.SeedMin <= 0 {
		g.SeedMin = 1
	}
	if g.SeedMax <= g.SeedMin {
		g.SeedMax = 2147483647
	}
}
