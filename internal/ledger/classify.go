package ledger

import (
	"strings"

	"github.com/adslot/leasekeeper/pkg/errclass"
)

var (
	permissionMarkers = []string{"authority", "permission", "owner"}
	fundsMarkers      = []string{"gas", "budget", "insufficient", "balance"}
)

// FailureClass reports whether err's text names a permission or funds
// failure, and which. Matching is case-insensitive; permission wins.
func FailureClass(err error) (*errclass.Error, bool) {
	if err == nil {
		return nil, false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, permissionMarkers):
		return errclass.ErrPermissionDenied, true
	case containsAny(msg, fundsMarkers):
		return errclass.ErrInsufficientFunds, true
	}
	return nil, false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
