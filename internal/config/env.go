package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// FromEnv returns the option string from GCQUAKE_OPTIONS, loading a .env file
// from the working directory first if one exists. ok is false when the
// variable is unset.
func FromEnv() (options string, ok bool) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	return os.LookupEnv(types.EnvOptions)
}

// LogLevel returns the level named by GCQUAKE_LOG_LEVEL, defaulting to info.
func LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(strings.TrimSpace(os.Getenv(types.EnvLogLevel)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// YAML renders the resolved options as a YAML document.
func (o *Options) YAML() ([]byte, error) {
	return yaml.Marshal(o)
}
