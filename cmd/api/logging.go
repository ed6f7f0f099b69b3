package main

import (
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel maps LOG_LEVEL onto slog. Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	switch v := strings.ToLower(strings.TrimSpace(level)); v {
	case "warning":
		l = slog.LevelWarn
	default:
		if err := l.UnmarshalText([]byte(v)); err != nil {
			l = slog.LevelInfo
		}
	}
	return l
}

// redactURL keeps scheme, user name, host and path of a connection URL.
// A password-only userinfo (redis://:pw@host) becomes "redacted".
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	if u.User != nil {
		name := u.User.Username()
		if name == "" {
			name = "redacted"
		}
		u.User = url.User(name)
	}
	return u.String()
}

var inlinePassword = regexp.MustCompile(`(?i)password=\S+`)

// sanitizeError renders err with every secret URL replaced by its redacted
// form and any key=value password masked.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		if s != "" {
			pairs = append(pairs, s, redactURL(s))
		}
	}
	msg := strings.NewReplacer(pairs...).Replace(err.Error())
	return inlinePassword.ReplaceAllString(msg, "password=redacted")
}
