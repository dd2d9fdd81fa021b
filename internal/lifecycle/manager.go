package lifecycle

import (
	"context"
	"time"

	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/inspect"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Manager extends and deletes blobs on the storage network.
type Manager struct {
	net       walrus.Network
	inspector *inspect.Inspector
	sink      events.Sink
	log       *logging.Logger
	now       func() time.Time
}

// NewManager creates a manager. inspector supplies fresh expirations for
// EnsureCoverage.
func NewManager(net walrus.Network, inspector *inspect.Inspector, sink events.Sink, log *logging.Logger) *Manager {
	return &Manager{
		net:       net,
		inspector: inspector,
		sink:      events.Or(sink),
		log:       logging.OrDefault(log).Named("lifecycle"),
		now:       time.Now,
	}
}

// Extend buys epochs more storage for id.
func (m *Manager) Extend(ctx context.Context, id model.ObjectID, epochs uint64, signer ledger.Signer) (model.TxDigest, error) {
	if epochs == 0 {
		return "", errclass.ErrInvalidRequest.WithMessage("extend by zero epochs")
	}
	digest, err := m.net.ExtendBlob(ctx, id, epochs, signer)
	if err != nil {
		cerr := Classify(err)
		m.log.WarnErr("extend blob failed", cerr, map[string]any{
			"object_id": id.String(),
			"epochs":    epochs,
			"code":      errclass.Code(cerr),
		})
		return "", cerr
	}
	m.log.Info("blob extended", map[string]any{"object_id": id.String(), "epochs": epochs, "digest": string(digest)})
	return digest, nil
}

// Delete removes id from the storage network. Callers must only delete a
// blob once no confirmed lease references it.
func (m *Manager) Delete(ctx context.Context, id model.ObjectID, signer ledger.Signer) (model.TxDigest, error) {
	digest, err := m.net.DeleteBlob(ctx, id, signer)
	if err != nil {
		cerr := Classify(err)
		m.log.WarnErr("delete blob failed", cerr, map[string]any{
			"object_id": id.String(),
			"code":      errclass.Code(cerr),
		})
		return "", cerr
	}
	m.sink.Emit(model.Event{
		Type:      model.EventStorageDeleted,
		Timestamp: m.now(),
		ObjectID:  id,
		Digest:    digest,
	})
	return digest, nil
}

// Coverage is the result of EnsureCoverage.
type Coverage struct {
	Expiration model.BlobExpiration `json:"expiration"`
	Plan       model.ExtensionPlan  `json:"plan"`
	// Digest is set when an extension was submitted.
	Digest model.TxDigest `json:"digest,omitempty"`
}

// EnsureCoverage inspects id and extends it when it would expire before
// newLeaseEnd. An already expired blob cannot be extended and fails with
// E_BLOB_EXPIRED; its content has to be uploaded again.
func (m *Manager) EnsureCoverage(ctx context.Context, id model.ObjectID, policy model.EpochPolicy, now, newLeaseEnd time.Time, extension time.Duration, signer ledger.Signer) (Coverage, error) {
	cov, err := m.Plan(ctx, id, policy, now, newLeaseEnd, extension)
	if err != nil {
		return cov, err
	}
	fields := map[string]any{
		"object_id":         id.String(),
		"current_end_epoch": cov.Plan.CurrentEndEpoch,
		"coverage_seconds":  cov.Plan.CoverageSeconds,
		"required_seconds":  cov.Plan.RequiredSeconds,
	}

	if !cov.Plan.NeedExtend {
		m.log.Info("blob coverage sufficient", fields)
		m.sink.Emit(model.Event{
			Type:      model.EventStorageSufficient,
			Timestamp: m.now(),
			ObjectID:  id,
			Details:   planDetails(cov.Plan),
		})
		return cov, nil
	}

	fields["epochs_to_add"] = cov.Plan.EpochsToAdd
	fields["target_end_epoch"] = cov.Plan.TargetEndEpoch
	m.log.Info("extending blob", fields)

	digest, err := m.Extend(ctx, id, cov.Plan.EpochsToAdd, signer)
	if err != nil {
		return cov, err
	}
	cov.Digest = digest
	m.sink.Emit(model.Event{
		Type:      model.EventStorageExtended,
		Timestamp: m.now(),
		ObjectID:  id,
		Digest:    digest,
		Details:   planDetails(cov.Plan),
	})
	return cov, nil
}

// Plan inspects id and computes the extension a lease ending at
// newLeaseEnd needs. Nothing is submitted. An expired blob fails with
// E_BLOB_EXPIRED.
func (m *Manager) Plan(ctx context.Context, id model.ObjectID, policy model.EpochPolicy, now, newLeaseEnd time.Time, extension time.Duration) (Coverage, error) {
	exp, err := m.inspector.Inspect(ctx, id)
	if err != nil {
		return Coverage{}, err
	}
	cov := Coverage{Expiration: exp}
	if exp.Expired() {
		return cov, errclass.ErrBlobExpired.WithMessagef("blob %s expired at epoch %d (current %d)", id, exp.EndEpoch, exp.CurrentEpoch)
	}
	cov.Plan = PlanExtension(exp, policy, unixSeconds(now), unixSeconds(newLeaseEnd), uint64(extension/time.Second))
	return cov, nil
}

func planDetails(p model.ExtensionPlan) map[string]any {
	return map[string]any{
		"epochs_added":      p.EpochsToAdd,
		"current_end_epoch": p.CurrentEndEpoch,
		"target_end_epoch":  p.TargetEndEpoch,
		"coverage_seconds":  p.CoverageSeconds,
		"required_seconds":  p.RequiredSeconds,
	}
}

func unixSeconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}
