package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ZapLoggerConfig struct {
	IsDevelopment     bool
	Encoding          string
	Level             string
	DisableCaller     bool
	DisableStacktrace bool
}

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"panic": zapcore.PanicLevel,
	"fatal": zapcore.FatalLevel,
}

// NewZapLogger builds a logger writing to stderr. Unknown levels fall back to info.
func NewZapLogger(cfg *ZapLoggerConfig) *zap.Logger {
	level, ok := levels[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}

	var encCfg zapcore.EncoderConfig
	if cfg.IsDevelopment {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(level))

	var opts []zap.Option
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.IsDevelopment {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...)
}

// FromEnv maps APP_ENV and the LOGGER_* settings onto a config.
func FromEnv(appEnv, level, encoding string, disableCaller, disableStacktrace bool) *ZapLoggerConfig {
	cfg := &ZapLoggerConfig{
		Encoding:          encoding,
		Level:             level,
		DisableCaller:     disableCaller,
		DisableStacktrace: disableStacktrace,
	}
	if appEnv == "development" {
		cfg.IsDevelopment = true
		cfg.Encoding = "console"
		cfg.Level = "debug"
	}
	return cfg
}
