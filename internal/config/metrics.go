package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricOnce sync.Once
	loadCounter    metric.Int64Counter
)

// recordConfigLoad counts startup configuration outcomes, so a deployment
// crash-looping on bad settings shows up in metrics with the failing setting
// group attached.
func recordConfigLoad(ctx context.Context, env, outcome string, err error) {
	loadMetricOnce.Do(func() {
		counter, cerr := otel.Meter("ticketdesk-auth-service").Int64Counter("config.load.outcomes")
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("environment", normalizeEnvName(env)),
		attribute.String("outcome", outcome),
		attribute.String("setting_group", classifyConfigError(err)),
	))
}

func normalizeEnvName(env string) string {
	v := strings.TrimSpace(strings.ToLower(env))
	if v == "" {
		return "unknown"
	}
	return v
}

// classifyConfigError buckets a Load failure by the group of settings that
// caused it, without putting the offending value on a metric label.
func classifyConfigError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "load env file"):
		return "env_file"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	case strings.Contains(msg, "DATABASE_"):
		return "database"
	case strings.Contains(msg, "SECRET"), strings.Contains(msg, "PEPPER"), strings.Contains(msg, "secrets"):
		return "secrets"
	case strings.Contains(msg, "TTL"):
		return "ttl"
	case strings.HasPrefix(msg, "validate config:"):
		return "limits"
	default:
		return "other"
	}
}
