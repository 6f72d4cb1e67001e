// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://127.0.0.1:4096", []string{"http"}, false},
		{"with path", "http://example.com/path", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Durations(t *testing.T) {
	v := New()
	v.Positive("a", time.Second)
	v.NonNegative("b", 0)
	assert.True(t, v.IsValid())

	v.Positive("c", 0)
	v.NonNegative("d", -time.Millisecond)
	require.False(t, v.IsValid())

	var verr ValidationError
	require.True(t, errors.As(v.Err(), &verr))
	require.Len(t, verr.Errors(), 2)
	assert.Equal(t, "c", verr.Errors()[0].Field)
	assert.Equal(t, "d", verr.Errors()[1].Field)
}

func TestValidator_RangeAndOneOf(t *testing.T) {
	v := New()
	v.Range("port", 8080, 1, 65535)
	v.OneOf("exporter", "grpc", []string{"grpc", "http"})
	assert.True(t, v.IsValid())

	v.Range("port", 0, 1, 65535)
	v.OneOf("exporter", "zipkin", []string{"grpc", "http"})
	v.NotEmpty("name", "   ")
	err := v.Err()
	require.Error(t, err)
	assert.Equal(t, 3, strings.Count(err.Error(), "validation failed for"))
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_LogLevel(t *testing.T) {
	for _, lvl := range []string{"trace", "debug", "info", "warn", "error", "INFO"} {
		v := New()
		v.LogLevel("logLevel", lvl)
		assert.True(t, v.IsValid(), lvl)
	}

	v := New()
	v.LogLevel("logLevel", "verbose")
	assert.False(t, v.IsValid())
}

func TestValidator_ErrIsSnapshot(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.AddError("x", "bad", 1)
	err := v.Err()
	v.AddError("y", "bad", 2)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors(), 1)
}
