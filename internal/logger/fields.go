package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldResumeID is the structured log field key for the resume record id.
	FieldResumeID = "resume_id"
	// FieldStatus is the structured log field key for the job fetch status.
	FieldStatus = "job_fetch_status"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RecordFields returns the standard zap fields that describe a record's
// identity and lifecycle position. Empty values are ignored to keep log
// entries compact when information is missing.
func RecordFields(id, status string) []zap.Field {
	return StringFields(
		StringField{Key: FieldResumeID, Value: id},
		StringField{Key: FieldStatus, Value: status},
	)
}

// WithRecordFields attaches the common record fields to the provided logger.
// If the logger is nil, a no-op logger is created to avoid panics.
func WithRecordFields(logger *zap.Logger, id, status string) *zap.Logger {
	fields := RecordFields(id, status)
	return WithFields(logger, fields...)
}
