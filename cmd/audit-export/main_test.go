package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestExportRange_Defaults(t *testing.T) {
	viper.Set("start", "")
	viper.Set("end", "")
	viper.Set("days-back", 7)
	t.Cleanup(viper.Reset)

	start, end, err := exportRange()
	if err != nil {
		t.Fatalf("exportRange: %v", err)
	}
	if got := end.Sub(start); got != 7*24*time.Hour {
		t.Errorf("default range length = %v, want 7 days", got)
	}
}

func TestExportRange_ExplicitDates(t *testing.T) {
	viper.Set("start", "2026-03-01")
	viper.Set("end", "2026-03-05")
	t.Cleanup(viper.Reset)

	start, end, err := exportRange()
	if err != nil {
		t.Fatalf("exportRange: %v", err)
	}
	if start.Format(dateFormat) != "2026-03-01" {
		t.Errorf("start = %s", start)
	}
	if end.Format(dateFormat) != "2026-03-05" {
		t.Errorf("end = %s", end)
	}
}

func TestExportRange_BadDate(t *testing.T) {
	viper.Set("start", "01.03.2026")
	t.Cleanup(viper.Reset)

	if _, _, err := exportRange(); err == nil {
		t.Error("malformed --start should fail")
	}
}
