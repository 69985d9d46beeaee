package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNew_Redaction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("redis connected", "redis_password", "hunter2", "aws_secret_access_key", "abc", "rules", 12)

	m := decode(t, &buf)
	assert.Equal(t, "[REDACTED]", m["redis_password"])
	assert.Equal(t, "[REDACTED]", m["aws_secret_access_key"])
	assert.Equal(t, float64(12), m["rules"])
}

func TestMaskSheetURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://docs.google.com/spreadsheets/d/e/2PACX-1vQabcdefghijklmnop/pub?output=csv",
			"https://docs.google.com/spreadsheets/d/e/2PACX-1v.../pub?output=csv",
		},
		{
			"https://docs.google.com/spreadsheets/d/1AbCdEfGhIjKlMnOp/edit#gid=0",
			"https://docs.google.com/spreadsheets/d/1AbCdEfG.../edit#gid=0",
		},
		{"s3://bucket/rules.csv", "s3://bucket/rules.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskSheetURL(tt.in))
	}
}

func TestNew_URLAttrsMasked(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})

	log.Info("fetching sheet", "sheet_url", "https://docs.google.com/spreadsheets/d/1AbCdEfGhIjKlMnOp/edit")

	m := decode(t, &buf)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/1AbCdEfG.../edit", m["sheet_url"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyDatasetID, "ds-9")
	log.WithContext(ctx).WithError(errors.New("boom")).Warn("refresh failed")

	m := decode(t, &buf)
	assert.Equal(t, "req-1", m["request_id"])
	assert.Equal(t, "ds-9", m["dataset_id"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "WARN", m["level"])
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info("hidden")
	assert.Zero(t, buf.Len())
}
