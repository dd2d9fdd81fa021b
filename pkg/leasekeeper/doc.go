// Package leasekeeper keeps ad-slot leases and the stored content they
// display alive for the same period.
//
// A lease is a ledger record with a wall-clock end. Its content may live on
// a storage network that expires blobs by epoch. Renewing the lease without
// extending the blob leaves a paid slot pointing at deleted content, so
// Client.Renew extends storage first and only then submits the renewal.
// Every ledger mutation is followed by a bounded confirmation poll because
// reads lag behind writes.
//
//	c, err := leasekeeper.New(cfg, leasekeeper.Backends{Ledger: reader, Storage: net})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	res, err := c.Renew(ctx, leasekeeper.RenewRequest{LeaseID: id, Days: 30}, signer)
//
// Outcomes are Confirmed, PartiallyConfirmed (submitted but not yet
// observed, not an error) or Failed.
package leasekeeper
