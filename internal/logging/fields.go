package logging

import "log/slog"

// Relay identifiers

func Username(name string) slog.Attr {
	return slog.String("username", name)
}

func ConnID(id string) slog.Attr {
	return slog.String("conn_id", id)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
