package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

func TestNormalizeObjectID(t *testing.T) {
	hex := "ABCDEF0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

	id, ok := model.NormalizeObjectID(hex)
	assert.True(t, ok)
	assert.Equal(t, model.ObjectID("0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"), id)

	id2, ok := model.NormalizeObjectID("0x" + hex)
	assert.True(t, ok)
	assert.Equal(t, id, id2)

	_, ok = model.NormalizeObjectID("0x1234")
	assert.False(t, ok)
	_, ok = model.NormalizeObjectID("")
	assert.False(t, ok)
}

func TestBlobExpiration_RemainingEpochs(t *testing.T) {
	assert.Equal(t, uint64(5), model.BlobExpiration{CurrentEpoch: 10, EndEpoch: 15}.RemainingEpochs())
	assert.Equal(t, uint64(0), model.BlobExpiration{CurrentEpoch: 15, EndEpoch: 15}.RemainingEpochs())
	assert.Equal(t, uint64(0), model.BlobExpiration{CurrentEpoch: 20, EndEpoch: 15}.RemainingEpochs())
	assert.True(t, model.BlobExpiration{CurrentEpoch: 20, EndEpoch: 15}.Expired())
}

func TestLeaseRecord_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := model.LeaseRecord{LeaseEnd: now.Add(time.Hour)}
	assert.False(t, l.Expired(now))
	assert.Equal(t, time.Hour, l.Remaining(now))

	l.LeaseEnd = now
	assert.True(t, l.Expired(now))
	assert.Equal(t, time.Duration(0), l.Remaining(now))
}

func TestEpochPolicy_EpochLengthSeconds(t *testing.T) {
	p := model.EpochPolicy{EpochLength: 14 * 24 * time.Hour}
	assert.Equal(t, uint64(1209600), p.EpochLengthSeconds())
}

func TestContentRef_Decentralized(t *testing.T) {
	assert.True(t, model.ContentRef{Kind: model.StorageDecentralized}.Decentralized())
	assert.False(t, model.ContentRef{Kind: model.StorageExternal}.Decentralized())
}

func TestFrame(t *testing.T) {
	assert.Equal(t, model.FramingSuccess, model.Frame(model.OutcomeConfirmed, nil))
	assert.Equal(t, model.FramingInfo, model.Frame(model.OutcomePartial, errclass.ErrConfirmationTimedOut))
	assert.Equal(t, model.FramingInfo, model.Frame(model.OutcomeFailed, errclass.ErrUserRejected))
	assert.Equal(t, model.FramingError, model.Frame(model.OutcomeFailed, errclass.ErrInsufficientFunds))
	assert.Equal(t, model.FramingError, model.Frame(model.OutcomeFailed, nil))
}
