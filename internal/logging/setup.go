package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// UnmarshalText implements encoding.TextUnmarshaler for type-safe config parsing
func (f *LogFormat) UnmarshalText(text []byte) error {
	value := LogFormat(strings.ToLower(string(text)))
	switch value {
	case FormatText, FormatJSON:
		*f = value
		return nil
	default:
		return fmt.Errorf("invalid log format %q, must be %q or %q", string(text), FormatText, FormatJSON)
	}
}

func formatter(format LogFormat) logrus.Formatter {
	if strings.EqualFold(string(format), string(FormatJSON)) {
		return &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "_msg",
			},
		}
	}
	return &logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	}
}

// NewLogger configures the global logrus logger so dependencies log in the same
// format, and returns it.
func NewLogger(format LogFormat) *logrus.Logger {
	return configure(logrus.StandardLogger(), format, os.Stdout)
}

func configure(logger *logrus.Logger, format LogFormat, out io.Writer) *logrus.Logger {
	logger.SetFormatter(formatter(format))
	logger.SetOutput(out)

	level := logrus.DebugLevel
	if raw := os.Getenv("SCHEDPAY_LOG_LEVEL"); raw != "" {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)
	return logger
}
