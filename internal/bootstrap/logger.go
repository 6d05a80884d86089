package bootstrap

import (
	"tab-inspector/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(config *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if config.AppConfig.Debug {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.DisableStacktrace = true
	// stdout belongs to the console reporter.
	zapConfig.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(config.AppConfig.LogLevel)
	if err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	return zapConfig.Build()
}
