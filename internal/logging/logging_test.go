package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		format  string
		want    logrus.Level
		wantErr bool
	}{
		{name: "info text", level: "info", format: "text", want: logrus.InfoLevel},
		{name: "debug json", level: "debug", format: "json", want: logrus.DebugLevel},
		{name: "default format", level: "warn", format: "", want: logrus.WarnLevel},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestComponent(t *testing.T) {
	t.Parallel()

	logger, _ := New("info", "text")
	entry := Component(logger, "bot")
	if entry.Data["component"] != "bot" {
		t.Errorf("component = %v, want bot", entry.Data["component"])
	}
}
