package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var statusNames = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
	"rejected":     {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if _, ok := statusNames[s]; ok {
		return s
	}
	return status
}

// defaultKeyOrder pins the leading keys of every line; other keys follow sorted.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"cb_key",
	"workflow",
	"step",
	"duration_ms",
	"subject_id",
	"lab_id",
	"file_id",
	"files",
	"count",
	"sent",
	"failed",
	"bytes",
	"ext",
	"mode",
	"listen",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempt",
	"attempts",
	"backoff_ms",
}
