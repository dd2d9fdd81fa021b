package model

import (
	"regexp"
	"strings"
)

// StorageKind identifies where a lease's content lives.
type StorageKind string

const (
	StorageExternal      StorageKind = "external"
	StorageDecentralized StorageKind = "walrus"
)

// ObjectID is the durable handle of a stored blob on the ledger, always
// "0x" followed by 64 lowercase hex digits once normalised.
type ObjectID string

var objectIDPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// NormalizeObjectID returns id in canonical form, or false if id does not
// match the identifier pattern.
func NormalizeObjectID(id string) (ObjectID, bool) {
	if !objectIDPattern.MatchString(id) {
		return "", false
	}
	id = strings.ToLower(strings.TrimPrefix(id, "0x"))
	return ObjectID("0x" + id), true
}

func (id ObjectID) String() string {
	return string(id)
}

// TxDigest identifies a submitted ledger transaction.
type TxDigest string

// NetworkName selects the active network profile.
type NetworkName string

const (
	NetworkTestnet NetworkName = "testnet"
	NetworkMainnet NetworkName = "mainnet"
)
