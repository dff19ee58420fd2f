package errval

import (
	"errors"
	"fmt"
)

var (
	ErrInternal = errors.New("internal server error")
	ErrNotFound = errors.New("not found")
)

// TransientVendorError marks a vendor call worth retrying: HTTP 5xx, timeout
// or connection reset. The retry controller re-enqueues these.
type TransientVendorError struct {
	Vendor string
	Op     string
	Err    error
}

func (e *TransientVendorError) Error() string {
	return fmt.Sprintf("transient vendor error: vendor=%s op=%s: %v", e.Vendor, e.Op, e.Err)
}

func (e *TransientVendorError) Unwrap() error { return e.Err }

// PermanentVendorError marks a vendor call that must not be retried: HTTP 4xx
// or a 2xx carrying a vendor-reported failure.
type PermanentVendorError struct {
	Vendor string
	Op     string
	Err    error
}

func (e *PermanentVendorError) Error() string {
	return fmt.Sprintf("permanent vendor error: vendor=%s op=%s: %v", e.Vendor, e.Op, e.Err)
}

func (e *PermanentVendorError) Unwrap() error { return e.Err }

// IntegrityError marks a broken pipeline invariant: duplicate task creation
// or a missing/invalid campaign window. The affected bucket's stage is
// skipped for the cycle after alerting; the rest of the pipeline continues.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("integrity error: %s", e.Reason)
	}
	return fmt.Sprintf("integrity error: %s: %v", e.Reason, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ParsingError marks a vendor result record that does not match the expected
// shape. It is never dropped: the record is logged raw and the owning task
// lands on PARTIAL_STORED.
type ParsingError struct {
	RawPayload string
	Err        error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing error: %v: raw=%s", e.Err, e.RawPayload)
}

func (e *ParsingError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientVendorError
	return errors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p *PermanentVendorError
	return errors.As(err, &p)
}

func IsIntegrity(err error) bool {
	var i *IntegrityError
	return errors.As(err, &i)
}
