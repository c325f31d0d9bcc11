// Package vterrors defines the error-kind taxonomy shared by every layer of
// the partitioner module, from DDL parsing down to the DML dispatcher.
package vterrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval: interval string not "<n> hour" or "<n> day", or n <= 0.
	ErrInvalidInterval = errors.New("invalid interval specification")

	// ErrNoPartitionColumn: CREATE without a column marked partition_column.
	ErrNoPartitionColumn = errors.New("no partition_column marked in schema")

	// ErrMultiplePartitionColumns: more than one column marked partition_column.
	ErrMultiplePartitionColumns = errors.New("more than one partition_column marked in schema")

	// ErrUnsupportedPartitionColumnType: marked column's declared type is not timestamp.
	ErrUnsupportedPartitionColumnType = errors.New("partition column must be declared as timestamp")

	// ErrPartitionColumnTypeMismatch: insert/update value is neither parseable text nor integer epoch.
	ErrPartitionColumnTypeMismatch = errors.New("partition column value is not a timestamp or epoch integer")

	// ErrTimestampOutOfRange: timestamp does not fit int64 epoch seconds, or bucket+interval overflows.
	ErrTimestampOutOfRange = errors.New("timestamp out of representable range")

	// ErrCatalogCorrupt: CONNECT read a shadow table that is missing, malformed, or inconsistent.
	ErrCatalogCorrupt = errors.New("catalog shadow tables are corrupt or inconsistent")

	// ErrPartitionMissing: lookup row references a partition table that does not exist.
	ErrPartitionMissing = errors.New("partition referenced by lookup table does not exist")

	// ErrPartitionCreateFailed: DDL for a new partition failed.
	ErrPartitionCreateFailed = errors.New("partition creation failed")

	// ErrAmbiguousDelete: DML fallback found more than one candidate row across partitions.
	ErrAmbiguousDelete = errors.New("ambiguous delete: more than one candidate row")

	// ErrPushdownUnsupported is internal to the planner and never surfaced to the host.
	ErrPushdownUnsupported = errors.New("predicate not usable for partition pruning")
)

// PartitionCreateError wraps ErrPartitionCreateFailed with the bucket and
// underlying host-engine cause, so callers can both errors.Is(ErrPartitionCreateFailed)
// and recover the bucket/cause via errors.As.
type PartitionCreateError struct {
	Bucket int64
	Cause  error
}

func (e *PartitionCreateError) Error() string {
	return fmt.Sprintf("partition creation failed for bucket %d: %v", e.Bucket, e.Cause)
}

func (e *PartitionCreateError) Unwrap() error {
	return ErrPartitionCreateFailed
}

// NewPartitionCreateError builds a PartitionCreateError. Use errors.As to
// recover it and errors.Is(err, ErrPartitionCreateFailed) to classify it.
func NewPartitionCreateError(bucket int64, cause error) *PartitionCreateError {
	return &PartitionCreateError{Bucket: bucket, Cause: cause}
}

// AmbiguousDeleteError wraps ErrAmbiguousDelete with the set of partitions
// that each hold a row with the given rowid.
type AmbiguousDeleteError struct {
	Partitions []string
}

func (e *AmbiguousDeleteError) Error() string {
	return fmt.Sprintf("ambiguous delete: %d candidate rows across partitions %v", len(e.Partitions), e.Partitions)
}

func (e *AmbiguousDeleteError) Unwrap() error {
	return ErrAmbiguousDelete
}
