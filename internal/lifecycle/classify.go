package lifecycle

import (
	"errors"
	"strings"

	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/pkg/errclass"
)

var incompatibleMarkers = []string{"toJSON is not a function", "Cannot destructure property"}

// Classify maps a storage-network failure to its error class. The original
// text is kept as the message and the cause stays reachable. Errors that
// already carry a class are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *errclass.Error
	if errors.As(err, &classified) {
		return err
	}
	msg := err.Error()
	switch {
	case ledger.IsUserRejected(err):
		return errclass.ErrUserRejected.Wrap(err)
	case containsAny(msg, incompatibleMarkers):
		return errclass.ErrIncompatibleClient.Wrap(err)
	}
	if class, ok := ledger.FailureClass(err); ok {
		return class.Wrap(err)
	}
	return errclass.ErrStorageOpFailed.Wrap(err)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
