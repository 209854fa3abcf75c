package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

var formatters = map[string]log.Formatter{
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
	"text":   log.TextFormatter,
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg *config.Log) *slog.Logger {
	slogger := newLogger(os.Stdout, cfg)
	slog.SetDefault(slogger)
	return slogger
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text", TimeFormat: "2006-01-02 15:04:05"}
	}
	formatter, ok := formatters[cfg.Format]
	if !ok {
		formatter = log.TextFormatter
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(ledgerStyles())
	return slog.New(logger)
}

// ledgerStyles colors levels with an icon and highlights the attributes the
// ledger logs most: card references, idempotency keys and errors.
func ledgerStyles() *log.Styles {
	styles := log.DefaultStyles()
	levels := []struct {
		level log.Level
		icon  string
		color lipgloss.AdaptiveColor
	}{
		{log.ErrorLevel, "❌", errorColor},
		{log.WarnLevel, "⚠️", warnColor},
		{log.InfoLevel, "ℹ️", infoColor},
		{log.DebugLevel, "🐛", debugColor},
	}
	for _, l := range levels {
		styles.Levels[l.level] = lipgloss.NewStyle().
			SetString(l.icon).
			Bold(true).
			Padding(0, 1).
			Foreground(l.color)
	}

	bold := lipgloss.NewStyle().Bold(true)
	keys := map[string]lipgloss.AdaptiveColor{
		"error":           errorColor,
		"card":            infoColor,
		"from":            infoColor,
		"to":              infoColor,
		"amount":          infoColor,
		"idempotency_key": warnColor,
		"operation":       warnColor,
		"prefix":          debugColor,
		"caller":          debugColor,
		"time":            debugColor,
	}
	for k, c := range keys {
		styles.Keys[k] = lipgloss.NewStyle().Foreground(c)
		styles.Values[k] = bold
	}
	return styles
}
