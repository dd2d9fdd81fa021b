// Package lifecycle keeps a stored blob alive for at least as long as the
// lease that displays it.
package lifecycle

import (
	"github.com/adslot/leasekeeper/internal/epoch"
	"github.com/adslot/leasekeeper/pkg/model"
)

// PlanExtension compares what the blob still covers from now with the
// window up to the new lease end, and returns the fewest whole epochs that
// close the gap. When coverage already suffices the plan is a no-op.
// extensionDurationSeconds only annotates the plan.
func PlanExtension(current model.BlobExpiration, p model.EpochPolicy, nowSeconds, newLeaseEndSeconds, extensionDurationSeconds uint64) model.ExtensionPlan {
	coverage := epoch.EpochsToSeconds(current.RemainingEpochs(), p)

	var required uint64
	if newLeaseEndSeconds > nowSeconds {
		required = newLeaseEndSeconds - nowSeconds
	}

	plan := model.ExtensionPlan{
		ObjectID:         current.ObjectID,
		CurrentEndEpoch:  current.EndEpoch,
		TargetEndEpoch:   current.EndEpoch,
		CoverageSeconds:  coverage,
		RequiredSeconds:  required,
		ExtensionSeconds: extensionDurationSeconds,
	}
	if required <= coverage {
		return plan
	}

	add := epoch.SecondsToEpochs(required-coverage, p)
	if add < 1 {
		add = 1
	}
	plan.NeedExtend = true
	plan.EpochsToAdd = add
	plan.TargetEndEpoch = current.EndEpoch + add
	return plan
}
