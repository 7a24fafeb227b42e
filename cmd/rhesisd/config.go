package main

import (
	"time"

	"github.com/rhesis-ai/rhesis-backend/cfgmng"
)

type TokenConfig struct {
	// Hash is fieldcrypt.HashToken of the bearer token
	Hash           string `mapstructure:"hash"`
	UserID         string `mapstructure:"user_id"`
	OrganizationID string `mapstructure:"organization_id"`
	Admin          bool   `mapstructure:"admin"`
}

type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// An empty DSN keeps every table in memory
	Database struct {
		DSN     string `mapstructure:"dsn"`
		Migrate bool   `mapstructure:"migrate"`
	} `mapstructure:"database"`

	Redis struct {
		Addr string        `mapstructure:"addr"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	NATS struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"nats"`

	Crypto struct {
		// Key is a base64 encoded 32 byte key for encrypted columns
		Key string `mapstructure:"key"`
	} `mapstructure:"crypto"`

	Workers struct {
		Count  int `mapstructure:"count"`
		Buffer int `mapstructure:"buffer"`
	} `mapstructure:"workers"`

	Admin struct {
		// Token bootstraps one admin principal acting on all organizations
		Token string `mapstructure:"token"`
	} `mapstructure:"admin"`

	Auth struct {
		Tokens []TokenConfig `mapstructure:"tokens"`
	} `mapstructure:"auth"`
}

var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.shutdown_timeout": "15s",
	"log.level":               "info",
	"database.dsn":            "",
	"database.migrate":        true,
	"redis.addr":              "",
	"redis.ttl":               "5m",
	"nats.url":                "",
	"crypto.key":              "",
	"workers.count":           8,
	"workers.buffer":          64,
	"admin.token":             "",
}

func loadConfig(path, name string) (*Config, error) {
	return cfgmng.LoadConfig[Config](path, name,
		cfgmng.WithEnvPrefix("RHESIS"),
		cfgmng.WithDefaults(defaults),
		cfgmng.Optional(),
	)
}
