package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"SobeSobe/internal/game/table"
)

type Config struct {
	Server struct {
		Port string
		Mode string
	}
	Log struct {
		Level string
	}
	// Store.Driver 取值 memory / redis / postgres
	Store struct {
		Driver string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Auth struct {
		NonceTTL time.Duration `mapstructure:"nonce_ttl"`
	}
	Lobby struct {
		PlayerTTL time.Duration `mapstructure:"player_ttl"`
	}
	Game struct {
		StartingPoints int    `mapstructure:"starting_points"`
		BuyIn          int    `mapstructure:"buy_in"`
		DealerRotation string `mapstructure:"dealer_rotation"`
		SitOutLimit    int    `mapstructure:"sit_out_limit"`
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	rules := table.DefaultRules()

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("auth.nonce_ttl", 5*time.Minute)
	v.SetDefault("lobby.player_ttl", 5*time.Minute)
	v.SetDefault("game.starting_points", rules.StartingPoints)
	v.SetDefault("game.buy_in", rules.BuyIn)
	v.SetDefault("game.dealer_rotation", string(rules.DealerRotation))
	v.SetDefault("game.sit_out_limit", rules.SitOutLimit)
}

// Load 读取 .env、配置文件与 SOBE_ 前缀的环境变量（如 SOBE_REDIS_ADDR），
// 结果同时写入全局 C。配置文件不存在时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SOBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	C = cfg
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("store.driver postgres needs database.dsn")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	switch table.DealerRotation(c.Game.DealerRotation) {
	case table.RotatePreviousParty, table.RotateDealerSuccessor:
	default:
		return fmt.Errorf("unknown game.dealer_rotation %q", c.Game.DealerRotation)
	}
	if c.Game.StartingPoints <= 0 {
		return errors.New("game.starting_points must be positive")
	}
	return nil
}

// Rules 将配置映射为牌桌规则，未配置的常量保持默认
func (c *Config) Rules() table.Rules {
	r := table.DefaultRules()
	r.StartingPoints = c.Game.StartingPoints
	r.BuyIn = c.Game.BuyIn
	r.DealerRotation = table.DealerRotation(c.Game.DealerRotation)
	r.SitOutLimit = c.Game.SitOutLimit
	return r
}
