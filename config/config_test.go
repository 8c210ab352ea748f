package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, 5, cfg.Pipeline.ReportCadence)
	assert.True(t, cfg.Pipeline.InitialCash.Equal(decimal.NewFromInt(50000)))
	assert.True(t, cfg.Pricing.MarginMultiplier.Equal(decimal.RequireFromString("1.4")))
	assert.Equal(t, 90*24*time.Hour, cfg.Pipeline.CoordinatorConfig(5).HistoryLookback)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("PIPELINE_INITIAL_CASH", "1234.50")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("NEGOTIATION_EDUCATION_JOBS", "school, library")
	t.Setenv("NEGOTIATION_MAX_RATE", "0.15")
	t.Setenv("PRICING_HISTORY_SAMPLE", "not-a-number")

	cfg := LoadEnv()

	assert.True(t, cfg.Pipeline.InitialCash.Equal(decimal.RequireFromString("1234.5")))
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pricing.HistorySample)

	p := cfg.Negotiation.Policy()
	assert.Equal(t, []string{"school", "library"}, p.EducationJobs)
	assert.True(t, p.MaxDiscount.Equal(decimal.RequireFromString("0.15")))
	assert.Len(t, p.VolumeTiers, 3)
}
