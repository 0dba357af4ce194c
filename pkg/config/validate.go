package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Validate 检查配置中的枚举项和必填项，一次性返回全部问题
func Validate() error {
	var result *multierror.Error

	switch t := viper.GetString("storage.type"); t {
	case "disk":
		if viper.GetString("storage.path") == "" {
			result = multierror.Append(result, fmt.Errorf("storage.path is required for disk storage"))
		}
	case "s3":
		if viper.GetString("storage.s3.bucket") == "" {
			result = multierror.Append(result, fmt.Errorf("storage.s3.bucket is required for s3 storage"))
		}
	case "memory":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported storage type %q", t))
	}

	switch c := viper.GetString("storage.compression"); c {
	case "", "none", "zstd":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported storage.compression %q", c))
	}

	switch d := viper.GetString("database.driver"); d {
	case "sqlite", "postgres":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported database.driver %q", d))
	}

	if _, err := parseLevel(viper.GetString("log.level")); err != nil {
		result = multierror.Append(result, err)
	}
	switch f := viper.GetString("log.format"); f {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported log.format %q", f))
	}

	if _, err := ImporterOptions(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// SetupLogger 按 log.level / log.format 安装默认 slog handler
func SetupLogger(w io.Writer) error {
	level, err := parseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch viper.GetString("log.format") {
	case "json":
		h = slog.NewJSONHandler(w, handlerOpts)
	default:
		h = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unsupported log.level %q", s)
	}
	return level, nil
}

func joinErrors(errs ...error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
