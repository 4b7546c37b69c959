package wire

import (
	"strconv"
	"strings"
)

// Fields holds one decoded telemetry datagram as named string values.
// Field names follow the firmware ("bat", "h", "baro", "pitch", ...).
type Fields map[string]string

// ParseTelemetry decodes a telemetry datagram. Pairs that are not of
// the form "key:value" are skipped: telemetry is advisory and partial
// datagrams are common on a lossy link. The second return value is
// false when the datagram carried no usable fields at all (including
// the "ok" bodies some firmware versions emit on the telemetry port).
func ParseTelemetry(raw string) (Fields, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, AckOK) {
		return nil, false
	}
	fields := make(Fields)
	for _, part := range strings.Split(trimmed, ";") {
		key, value, found := strings.Cut(part, ":")
		if !found || key == "" {
			continue
		}
		fields[key] = value
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// Int returns the named field as an integer.
func (f Fields) Int(key string) (int, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float returns the named field as a float64.
func (f Fields) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
