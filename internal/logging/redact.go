package logging

import (
	"log/slog"
	"strings"
)

const redactedValue = "[redacted]"

// secretKeys are attribute keys whose values never reach a log sink. Provider
// credentials travel through config structs that are easy to log by accident.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"token":         {},
	"refresh_token": {},
	"client_secret": {},
	"authorization": {},
	"password":      {},
}

// redact replaces secret values and strips the password from DSN-like values.
func redact(attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	if _, ok := secretKeys[key]; ok {
		return slog.String(attr.Key, redactedValue)
	}
	if key == "dsn" && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, redactDSNPassword(attr.Value.String()))
	}
	return attr
}

func redactDSNPassword(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":" + redactedValue + "@" + host
}
