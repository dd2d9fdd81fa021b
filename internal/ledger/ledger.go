// Package ledger defines the channel to the smart-contract ledger: object
// reads, transaction builders and submission, and decoding of lease records.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Reader reads ledger objects. Reads may lag behind confirmed writes.
type Reader interface {
	GetObject(ctx context.Context, id string) (model.ObjectSnapshot, error)
	// GetOwnedObjects lists objects owned by owner whose type matches
	// typeFilter. An empty cursor starts from the beginning.
	GetOwnedObjects(ctx context.Context, owner, typeFilter, cursor string) (model.Page, error)
}

// Signer signs and submits transactions on behalf of the user.
type Signer interface {
	Address() string
	SignAndSubmit(ctx context.Context, tx Transaction) (model.TxDigest, error)
}

// ErrUserRejected is returned by a Signer when the user declines to sign.
var ErrUserRejected = errclass.ErrUserRejected.WithMessage("user rejected the request")

var rejectionPhrases = []string{
	"user rejected",
	"user cancelled",
	"user canceled",
	"user denied",
	"rejected by user",
}

// IsUserRejected recognises a declined signature, either as ErrUserRejected
// or as one of the messages wallets return.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errclass.ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range rejectionPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Submit sends tx and classifies the failure. User rejection, permission
// and funds failures keep their class; anything else becomes
// E_SUBMIT_FAILED. The cause stays attached either way.
func Submit(ctx context.Context, s Signer, tx Transaction) (model.TxDigest, error) {
	digest, err := s.SignAndSubmit(ctx, tx)
	if err == nil {
		return digest, nil
	}
	if IsUserRejected(err) {
		return "", errclass.ErrUserRejected.Wrap(err)
	}
	if class, ok := FailureClass(err); ok {
		return "", class.WithMessagef("%s: %s", tx.Function, err.Error()).Wrap(err)
	}
	return "", errclass.ErrSubmitFailed.WithMessagef("%s: %s", tx.Function, err.Error()).Wrap(err)
}
