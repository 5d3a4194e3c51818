// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"shooterarena/protocol"
)

// Config 服务端运行配置
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	HTTPAddr string `json:"httpAddr"`

	WireCodec string `json:"wireCodec"`
	LogFile   string `json:"logFile"`
	LogLevel  string `json:"logLevel"`

	MapWidth  int `json:"mapWidth"`
	MapHeight int `json:"mapHeight"`

	BulletTick           time.Duration `json:"bulletTick"`
	PowerupSpawnInterval time.Duration `json:"powerupSpawnInterval"`
	PickupTick           time.Duration `json:"pickupTick"`

	DebugLocks bool `json:"debugLocks"`
}

// Default 返回默认配置
func Default() Config {
	return Config{
		Host:                 "0.0.0.0",
		Port:                 5555,
		HTTPAddr:             ":8080",
		WireCodec:            "json",
		LogFile:              "app.log",
		LogLevel:             "info",
		MapWidth:             1280,
		MapHeight:            720,
		BulletTick:           20 * time.Millisecond,
		PowerupSpawnInterval: 5 * time.Second,
		PickupTick:           100 * time.Millisecond,
	}
}

// TCPAddr 原始 TCP 监听地址；Port 为 0 时不开启
func (c Config) TCPAddr() string {
	if c.Port == 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load 读取 envFile（可不存在）后，从环境变量覆盖默认值
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	var err error
	cfg.Host = GetEnv("HOST", cfg.Host)
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return Config{}, err
	}
	cfg.HTTPAddr = GetEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.WireCodec = GetEnv("WIRE_CODEC", cfg.WireCodec)
	cfg.LogFile = GetEnv("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	if cfg.MapWidth, err = envInt("MAP_WIDTH", cfg.MapWidth); err != nil {
		return Config{}, err
	}
	if cfg.MapHeight, err = envInt("MAP_HEIGHT", cfg.MapHeight); err != nil {
		return Config{}, err
	}
	if cfg.BulletTick, err = envDuration("BULLET_TICK", cfg.BulletTick); err != nil {
		return Config{}, err
	}
	if cfg.PowerupSpawnInterval, err = envDuration("POWERUP_SPAWN_INTERVAL", cfg.PowerupSpawnInterval); err != nil {
		return Config{}, err
	}
	if cfg.PickupTick, err = envDuration("PICKUP_TICK", cfg.PickupTick); err != nil {
		return Config{}, err
	}
	if cfg.DebugLocks, err = envBool("DEBUG_LOCKS", cfg.DebugLocks); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	// 出生区域 [100,500] 与道具边距 50 都必须落在地图内
	if c.MapWidth < 500 || c.MapHeight < 500 {
		return fmt.Errorf("map %dx%d is smaller than the 500x500 spawn area", c.MapWidth, c.MapHeight)
	}
	if c.BulletTick <= 0 || c.PowerupSpawnInterval <= 0 || c.PickupTick <= 0 {
		return errors.New("tick periods must be positive")
	}
	if _, err := protocol.ByName(c.WireCodec); err != nil {
		return err
	}
	return nil
}

// GetEnv 返回环境变量 key 的值，未设置时返回 fallback
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
