package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sajinavi2006/julomvp-sub029/internal/domain"
	"github.com/sajinavi2006/julomvp-sub029/internal/errval"
)

var today = time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)

func baseConfig() *domain.CampaignConfiguration {
	return &domain.CampaignConfiguration{
		Bucket:      domain.BucketB1,
		Vendor:      domain.Predictive,
		IsActive:    true,
		TimeToStart: "09:00",
	}
}

func at(clock string) time.Time {
	parsed, _ := time.Parse("15:04", clock)
	return time.Date(2024, 5, 20, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

func TestComputeWindow_Defaults(t *testing.T) {
	w, err := ComputeWindow(baseConfig(), today, 0)

	assert.NoError(t, err)
	assert.Equal(t, at("09:00"), w.StartAt)
	assert.Equal(t, at("08:50"), w.PrepareAt)
	assert.Equal(t, at("10:00"), w.EndAt)
	assert.Equal(t, at("10:10"), w.QueryAt)
}

func TestComputeWindow_ExplicitOverrides(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeToPrepare = "08:30"
	cfg.TimeToEnd = "11:00"
	cfg.TimeToQueryResult = "11:45"

	w, err := ComputeWindow(cfg, today, 0)

	assert.NoError(t, err)
	assert.Equal(t, at("08:30"), w.PrepareAt)
	assert.Equal(t, at("11:00"), w.EndAt)
	assert.Equal(t, at("11:45"), w.QueryAt)
}

func TestComputeWindow_DynamicLateDPD(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeToQueryResult = "11:45" // ignored when the bucket is dynamic
	cfg.DynamicLateDPD = true

	w, err := ComputeWindow(cfg, today, 120)

	assert.NoError(t, err)
	// start + 120m + 10m
	assert.Equal(t, at("11:10"), w.QueryAt)
}

func TestComputeWindow_MissingStartIsIntegrityError(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeToStart = ""

	_, err := ComputeWindow(cfg, today, 0)

	assert.Error(t, err)
	assert.True(t, errval.IsIntegrity(err))
}

func TestComputeWindow_MalformedClockIsIntegrityError(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeToEnd = "25:99"

	_, err := ComputeWindow(cfg, today, 0)

	assert.Error(t, err)
	assert.True(t, errval.IsIntegrity(err))
}
