package walrus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adslot/leasekeeper/internal/epoch"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Upload is a stored blob and the URL it is displayed under.
type Upload struct {
	BlobID   string         `json:"blob_id"`
	ObjectID model.ObjectID `json:"object_id"`
	URL      string         `json:"url"`
	Epochs   uint64         `json:"epochs"`
	EndEpoch uint64         `json:"end_epoch"`
}

// Uploader stores new content blobs sized to a lease duration.
type Uploader struct {
	net        Network
	policy     model.EpochPolicy
	aggregator string
	sink       events.Sink
	log        *logging.Logger
	now        func() time.Time
}

// NewUploader creates an uploader storing on net and rendering URLs under
// aggregatorBase.
func NewUploader(net Network, policy model.EpochPolicy, aggregatorBase string, sink events.Sink, log *logging.Logger) *Uploader {
	return &Uploader{
		net:        net,
		policy:     policy,
		aggregator: aggregatorBase,
		sink:       events.Or(sink),
		log:        logging.OrDefault(log).Named("uploader"),
		now:        time.Now,
	}
}

// Upload stores data for at least duration. Attributes are recorded on
// the blob next to the upload time and size. A retryable client error is
// retried once.
func (u *Uploader) Upload(ctx context.Context, data []byte, duration time.Duration, signer ledger.Signer, attrs map[string]string) (Upload, error) {
	if len(data) == 0 {
		return Upload{}, errclass.ErrInvalidRequest.WithMessage("empty upload")
	}
	epochs := epoch.DurationToEpochs(duration, u.policy)
	if epochs == 0 {
		return Upload{}, errclass.ErrInvalidRequest.WithMessagef("storage duration %s is not positive", duration)
	}

	req := WriteRequest{
		Data:       data,
		Epochs:     epochs,
		Deletable:  true,
		Attributes: map[string]string{},
	}
	for k, v := range attrs {
		req.Attributes[k] = v
	}
	req.Attributes["size"] = strconv.Itoa(len(data))
	req.Attributes["uploadTime"] = u.now().UTC().Format(time.RFC3339)

	u.log.Info("uploading blob", map[string]any{
		"bytes":        len(data),
		"epochs":       epochs,
		"covers_hours": epoch.EpochsToSeconds(epochs, u.policy) / 3600,
	})

	res, err := u.net.WriteBlob(ctx, req, signer)
	if errors.Is(err, ErrRetryable) {
		u.log.Warn("retryable storage error, retrying upload once")
		res, err = u.net.WriteBlob(ctx, req, signer)
	}
	if err != nil {
		if ledger.IsUserRejected(err) {
			return Upload{}, errclass.ErrUserRejected.Wrap(err)
		}
		return Upload{}, errclass.ErrStorageOpFailed.WithMessagef("write blob: %s", err.Error()).Wrap(err)
	}
	if res.ObjectID == "" {
		return Upload{}, errclass.ErrStorageOpFailed.WithMessage("write blob: no object id returned")
	}

	out := Upload{
		BlobID:   res.BlobID,
		ObjectID: res.ObjectID,
		URL:      objectid.DisplayURL(u.aggregator, res.ObjectID),
		Epochs:   epochs,
		EndEpoch: res.EndEpoch,
	}
	u.sink.Emit(model.Event{
		Type:      model.EventStorageUploaded,
		Timestamp: u.now(),
		ObjectID:  res.ObjectID,
		Digest:    res.Digest,
		Details: map[string]any{
			"bytes":     len(data),
			"epochs":    epochs,
			"end_epoch": res.EndEpoch,
			"blob_id":   res.BlobID,
		},
	})
	return out, nil
}

// String renders an upload for logs.
func (u Upload) String() string {
	return fmt.Sprintf("%s (%d epochs, ends at %d)", u.ObjectID, u.Epochs, u.EndEpoch)
}
