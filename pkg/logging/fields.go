package logging

import "time"

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates an unsigned integer field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field. A nil error becomes the string "nil".
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Latency creates a duration field in milliseconds.
func Latency(d time.Duration) Field {
	return Field{Key: "latency_ms", Value: float64(d.Microseconds()) / 1000.0}
}

// Path creates a file-path field.
func Path(value string) Field {
	return Field{Key: "path", Value: value}
}

// MergeLevel creates a merge-level field.
func MergeLevel(level int) Field {
	return Field{Key: "level", Value: level}
}

// Records creates a record-count field.
func Records(n uint64) Field {
	return Field{Key: "records", Value: n}
}

// Blocks creates a block-count field.
func Blocks(n int) Field {
	return Field{Key: "blocks", Value: n}
}
