package domain

import "time"

// Batch is an ordered chunk of eligible account ids for one bucket. Batch
// numbers start at 1 and membership is fully determined by input order and
// threshold, so re-running construction can never reshuffle a batch.
type Batch struct {
	Bucket     BucketName `json:"bucket"`
	Number     int32      `json:"number"`
	AccountIDs []int64    `json:"account_ids"`
}

func (b Batch) Size() int32 {
	return int32(len(b.AccountIDs))
}

// EligibilityRecord is one candidate account with the contact fields vendors
// require. FilterID records the last exclusion filter the record passed, or
// the one it failed, for audit reporting.
type EligibilityRecord struct {
	AccountID         int64      `json:"account_id"`
	Bucket            BucketName `json:"bucket"`
	CustomerName      string     `json:"customer_name"`
	PhoneNumber       string     `json:"phone_number"`
	AccountStatus     int32      `json:"account_status"`
	DPD               int32      `json:"dpd"`
	OutstandingAmount int64      `json:"outstanding_amount"`
	PTPDate           *time.Time `json:"ptp_date,omitempty"`
	DoNotCall         bool       `json:"do_not_call"`
	FilterID          string     `json:"filter_id"`
}

// CallOutcome is the canonical cross-vendor call-result taxonomy. Vendor
// vocabulary never crosses the adapter boundary; adapters translate into
// these codes.
type CallOutcome string

const (
	OutcomeRPCRegular       CallOutcome = "RPC_REGULAR"
	OutcomeRPCPTP           CallOutcome = "RPC_PTP"
	OutcomeRPCHTP           CallOutcome = "RPC_HTP"
	OutcomeRPCBrokenPTP     CallOutcome = "RPC_BROKEN_PTP"
	OutcomeWPCRegular       CallOutcome = "WPC_REGULAR"
	OutcomeWPCLeftMessage   CallOutcome = "WPC_LEFT_MESSAGE"
	OutcomeNotConnected     CallOutcome = "NOT_CONNECTED"
	OutcomeAnsweringMachine CallOutcome = "ANSWERING_MACHINE"
	OutcomeNull             CallOutcome = "NULL"
)

// VendorCallResult is one raw per-record outcome returned by a vendor poll,
// already normalized by the adapter. RawOutcome keeps the vendor string for
// audit logging only.
type VendorCallResult struct {
	ExternalTaskID string      `json:"external_task_id"`
	AccountID      int64       `json:"account_id"`
	PhoneNumber    string      `json:"phone_number"`
	Outcome        CallOutcome `json:"outcome"`
	RawOutcome     string      `json:"raw_outcome"`
	HangupReason   string      `json:"hangup_reason,omitempty"`
	CalledAt       time.Time   `json:"called_at"`
}

// ContactHistory is the normalized downstream record the result consumer
// upserts, unique per (account, external task).
type ContactHistory struct {
	ID             int64       `json:"-"`
	AccountID      int64       `json:"account_id"`
	ExternalTaskID string      `json:"external_task_id"`
	Vendor         Vendor      `json:"vendor"`
	Outcome        CallOutcome `json:"outcome"`
	CalledAt       time.Time   `json:"called_at"`
}
