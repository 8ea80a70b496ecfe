package logger

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	ServiceName   string
	IsDevelopment bool
	IsDebug       bool
	// EnableOTel ships log records to the configured OpenTelemetry
	// logger provider through the zap bridge, in addition to stdout.
	EnableOTel    bool
	InitialFields []zap.Field

	Cores []zapcore.Core
}

func NewLogger(ctx context.Context, loggerConfig LoggerConfig) (*zap.Logger, error) {
	var level zap.AtomicLevel
	if loggerConfig.IsDebug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Interactive runs get the console encoder, services keep JSON.
	encoding := "json"
	if loggerConfig.IsDevelopment {
		encoding = "console"
	}

	config := zap.Config{
		Level:             level,
		Development:       loggerConfig.IsDevelopment,
		DisableStacktrace: !loggerConfig.IsDebug,
		Sampling:          nil,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig(loggerConfig.IsDevelopment),
		OutputPaths: []string{
			"stdout",
		},
		ErrorOutputPaths: []string{
			"stderr",
		},
	}

	cores := make([]zapcore.Core, 0)

	if loggerConfig.EnableOTel {
		provider := global.GetLoggerProvider()
		cores = append(cores,
			otelzap.NewCore(loggerConfig.ServiceName, otelzap.WithLoggerProvider(provider)),
		)
	}

	cores = append(cores, loggerConfig.Cores...)

	logger, err := config.Build(
		zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			cores = append(cores, c)

			return zapcore.NewTee(cores...)
		}),
		zap.Fields(
			zap.String("service", loggerConfig.ServiceName),
			zap.Int("pid", os.Getpid()),
		),
		zap.Fields(loggerConfig.InitialFields...),
	)
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}

	return logger, nil
}

func encoderConfig(isDevelopment bool) zapcore.EncoderConfig {
	encodeLevel := zapcore.LowercaseLevelEncoder
	if isDevelopment {
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	return zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		MessageKey:    "message",
		LevelKey:      "level",
		EncodeLevel:   encodeLevel,
		NameKey:       "logger",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339TimeEncoder,
		LineEnding:    zapcore.DefaultLineEnding,
	}
}
