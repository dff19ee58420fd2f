package domain

import (
	"fmt"
	"time"
)

type Vendor string

const (
	Robocall   Vendor = "robocall"
	Predictive Vendor = "predictive"
	PDS        Vendor = "pds"
)

func (v Vendor) IsValid() bool {
	switch v {
	case Robocall, Predictive, PDS:
		return true
	}
	return false
}

type BucketName string

const (
	BucketT0      BucketName = "T0"
	BucketTMinus1 BucketName = "T-1"
	BucketTMinus3 BucketName = "T-3"
	BucketB1      BucketName = "B1"
	BucketB2      BucketName = "B2"
	BucketB3      BucketName = "B3"
	BucketB4      BucketName = "B4"
)

func (b BucketName) IsValid() bool {
	switch b {
	case BucketT0, BucketTMinus1, BucketTMinus3, BucketB1, BucketB2, BucketB3, BucketB4:
		return true
	}
	return false
}

type Stage string

const (
	StagePopulate Stage = "populate"
	StageUpload   Stage = "upload"
	StageQuery    Stage = "query"
)

// VendorStages maps each vendor to the pipeline stages it participates in.
// The robocall vendor has no result-download phase: its upload stage
// terminates with SUCCESS instead of walking into DOWNLOADED.
var VendorStages = map[Vendor][]Stage{
	Robocall:   {StagePopulate, StageUpload},
	Predictive: {StagePopulate, StageUpload, StageQuery},
	PDS:        {StagePopulate, StageUpload, StageQuery},
}

// StageType builds the ledger key for one bucket stage, e.g. "B1.upload".
func StageType(bucket BucketName, stage Stage) string {
	return fmt.Sprintf("%s.%s", bucket, stage)
}

// CampaignConfiguration is one bucket's dialer settings. It is loaded once
// per scheduling cycle and treated as read-only for the cycle's duration.
type CampaignConfiguration struct {
	ID                int64      `json:"id"`
	Bucket            BucketName `json:"bucket"`
	Vendor            Vendor     `json:"vendor"`
	Strategy          string     `json:"strategy"`
	IsActive          bool       `json:"is_active"`
	TimeToPrepare     string     `json:"time_to_prepare"`      // "HH:MM", empty = start - 10m
	TimeToStart       string     `json:"time_to_start"`        // "HH:MM", required
	TimeToEnd         string     `json:"time_to_end"`          // "HH:MM", empty = start + 1h
	TimeToQueryResult string     `json:"time_to_query_result"` // "HH:MM", empty = end + 10m
	DynamicLateDPD    bool       `json:"dynamic_late_dpd"`
	SplitThreshold    int32      `json:"split_threshold"` // 0 = default
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (c CampaignConfiguration) StageType(stage Stage) string {
	return StageType(c.Bucket, stage)
}
