package logger_test

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torosent/querymeter/internal/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "console default", format: "console", want: zapcore.DebugLevel},
		{name: "empty format is console", format: "", level: "warn", want: zapcore.WarnLevel},
		{name: "json default", format: "json", want: zapcore.InfoLevel},
		{name: "json debug", format: "JSON", level: "debug", want: zapcore.DebugLevel},
		{name: "unknown format", format: "xml", wantErr: true},
		{name: "bad level", format: "json", level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := logger.New(tt.format, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %v not enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %v enabled, want minimum %v", tt.want-1, tt.want)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	if logger.FromContext(context.Background()) == nil {
		t.Fatal("FromContext() on empty context returned nil")
	}

	l := zap.NewExample()
	ctx := logger.ContextWithLogger(context.Background(), l)
	if got := logger.FromContext(ctx); got != l {
		t.Error("FromContext() did not return the stored logger")
	}
}
