// Package epoch converts between wall-clock durations and storage epochs.
package epoch

import (
	"time"

	"github.com/adslot/leasekeeper/pkg/model"
)

// Built-in epoch lengths per network.
const (
	TestnetEpochLength = 24 * time.Hour
	MainnetEpochLength = 14 * 24 * time.Hour
)

// PolicyFor returns the built-in policy for network. Unknown networks get
// the testnet length and ok=false.
func PolicyFor(network model.NetworkName) (model.EpochPolicy, bool) {
	switch network {
	case model.NetworkMainnet:
		return model.EpochPolicy{Network: network, EpochLength: MainnetEpochLength}, true
	case model.NetworkTestnet:
		return model.EpochPolicy{Network: network, EpochLength: TestnetEpochLength}, true
	default:
		return model.EpochPolicy{Network: network, EpochLength: TestnetEpochLength}, false
	}
}

// SecondsToEpochs rounds a duration up to whole epochs. A positive duration
// always needs at least one epoch; zero needs none.
func SecondsToEpochs(durationSeconds uint64, p model.EpochPolicy) uint64 {
	if durationSeconds == 0 {
		return 0
	}
	l := p.EpochLengthSeconds()
	if l == 0 {
		return 0
	}
	n := durationSeconds / l
	if durationSeconds%l != 0 {
		n++
	}
	return n
}

// EpochsToSeconds is the exact wall-clock length of n epochs.
func EpochsToSeconds(epochs uint64, p model.EpochPolicy) uint64 {
	return epochs * p.EpochLengthSeconds()
}

// DurationToEpochs is SecondsToEpochs for a time.Duration. Sub-second
// remainders round up; negative durations need no epochs.
func DurationToEpochs(d time.Duration, p model.EpochPolicy) uint64 {
	if d <= 0 {
		return 0
	}
	secs := uint64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return SecondsToEpochs(secs, p)
}
