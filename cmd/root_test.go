package cmd

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/tern-dl/tern/internal/config"
)

func rateLimitCmd(t *testing.T, value string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{}
	c.Flags().StringVarP(&rateLimitStr, "rate-limit", "r", "", "")
	if err := c.Flags().Set("rate-limit", value); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestApplyFlagOverridesRateLimit(t *testing.T) {
	settings = config.Default()
	if err := applyFlagOverrides(rateLimitCmd(t, "2M")); err != nil {
		t.Fatalf("applyFlagOverrides() error: %v", err)
	}
	if settings.RateLimit != 2*1024*1024 {
		t.Errorf("RateLimit = %d, want %d", settings.RateLimit, 2*1024*1024)
	}
}

func TestApplyFlagOverridesRejectsBadRateLimit(t *testing.T) {
	settings = config.Default()
	if err := applyFlagOverrides(rateLimitCmd(t, "fast")); err == nil {
		t.Fatal("applyFlagOverrides() accepted an unparsable rate limit")
	}
	if settings.RateLimit != config.Default().RateLimit {
		t.Errorf("RateLimit changed to %d on a rejected value", settings.RateLimit)
	}
}
