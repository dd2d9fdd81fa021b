package model

import "time"

// EpochPolicy describes the billing unit of one storage network. It is
// loaded once per process and never mutated.
type EpochPolicy struct {
	Network     NetworkName   `json:"network" yaml:"network"`
	EpochLength time.Duration `json:"epoch_length" yaml:"epoch_length"`
}

// EpochLengthSeconds returns the epoch length in whole seconds.
func (p EpochPolicy) EpochLengthSeconds() uint64 {
	return uint64(p.EpochLength / time.Second)
}

// BlobExpiration is a point-in-time view of a blob's validity window. It is
// fetched fresh before every extension decision.
type BlobExpiration struct {
	ObjectID     ObjectID `json:"object_id"`
	CurrentEpoch uint64   `json:"current_epoch"`
	EndEpoch     uint64   `json:"end_epoch"`
}

// RemainingEpochs is max(0, EndEpoch-CurrentEpoch).
func (b BlobExpiration) RemainingEpochs() uint64 {
	if b.CurrentEpoch >= b.EndEpoch {
		return 0
	}
	return b.EndEpoch - b.CurrentEpoch
}

// Expired reports whether the blob has no remaining epochs.
func (b BlobExpiration) Expired() bool {
	return b.RemainingEpochs() == 0
}

// ExtensionPlan is the outcome of comparing blob coverage with a lease end.
type ExtensionPlan struct {
	ObjectID        ObjectID `json:"object_id"`
	NeedExtend      bool     `json:"need_extend"`
	EpochsToAdd     uint64   `json:"epochs_to_add"`
	CurrentEndEpoch uint64   `json:"current_end_epoch"`
	TargetEndEpoch  uint64   `json:"target_end_epoch"`
	// CoverageSeconds is what the blob already covers from now.
	CoverageSeconds uint64 `json:"coverage_seconds"`
	// RequiredSeconds is the lease window from now to the new lease end.
	RequiredSeconds uint64 `json:"required_seconds"`
	// ExtensionSeconds is the renewal length that produced the new lease end.
	ExtensionSeconds uint64 `json:"extension_seconds"`
}
