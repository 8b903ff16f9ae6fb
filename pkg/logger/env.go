package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// ParseEnv приводит имя среды к одному из Env; неизвестное значение: dev.
func ParseEnv(s string) Env {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage
	default:
		return EnvDev
	}
}

// DetectEnv читает CHAT_ENV, затем общий APP_ENV.
func DetectEnv() Env {
	if v := os.Getenv("CHAT_ENV"); strings.TrimSpace(v) != "" {
		return ParseEnv(v)
	}
	return ParseEnv(os.Getenv("APP_ENV"))
}
