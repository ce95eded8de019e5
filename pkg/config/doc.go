// Package config loads environment-based configuration structs.
//
// It combines godotenv (optional .env file support for development) with
// github.com/caarlos0/env tag-driven parsing. Every package in this module
// declares its own Config struct with `env` tags and default values; this
// package only provides the loading entry points.
package config
