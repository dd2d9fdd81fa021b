package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

var testContract = Contract{PackageID: "0xpkg", Module: "nft_billboard", FactoryID: "0xfactory", ClockID: "0x6"}

func TestContract_Target(t *testing.T) {
	assert.Equal(t, "0xpkg::nft_billboard::renew_lease", testContract.Target(FnRenewLease))
	assert.Equal(t, "0xpkg::nft::AdBoardNFT", testContract.LeaseType())
}

func TestContract_Validate(t *testing.T) {
	assert.NoError(t, testContract.Validate())
	assert.ErrorIs(t, Contract{Module: "m", ClockID: "0x6"}.Validate(), errclass.ErrConfigInvalid)
	assert.ErrorIs(t, Contract{PackageID: "p", Module: "m"}.Validate(), errclass.ErrConfigInvalid)
}

func TestRenewLease(t *testing.T) {
	tx := testContract.RenewLease(RenewLeaseParams{AdSpaceID: "0xad", LeaseID: "0xnft", Price: 2, Days: 30})

	assert.Equal(t, FnRenewLease, tx.Function)
	require.Len(t, tx.Arguments, 6)
	assert.Equal(t, Arg{Kind: ArgObject, Value: "0xfactory"}, tx.Arguments[0])
	assert.Equal(t, ArgPayment, tx.Arguments[3].Kind)
	assert.Equal(t, uint64(2*MistPerSui), tx.Arguments[3].Value)

	days, ok := tx.UintArg(4)
	assert.True(t, ok)
	assert.Equal(t, uint64(30), days)

	clock, ok := tx.StringArg(5)
	assert.True(t, ok)
	assert.Equal(t, "0x6", clock)
}

func TestUpdateAdContent_DefaultSource(t *testing.T) {
	tx := testContract.UpdateAdContent(UpdateContentParams{LeaseID: "0xnft", ContentURL: "https://x/y.png"})
	src, _ := tx.StringArg(3)
	assert.Equal(t, "none", src)
	nft, _ := tx.StringArg(0)
	assert.Equal(t, "0xnft", nft)
}

func TestPurchaseAdSpace(t *testing.T) {
	tx := testContract.PurchaseAdSpace(PurchaseParams{AdSpaceID: "0xad", Price: 5_000_000, Days: 7, StorageSource: "walrus"})
	require.Len(t, tx.Arguments, 11)
	assert.Equal(t, uint64(5_000_000), tx.Arguments[2].Value)
	src, _ := tx.StringArg(10)
	assert.Equal(t, "walrus", src)
}

func TestAdminBuilders(t *testing.T) {
	price := testContract.UpdateAdSpacePrice("0xad", 99)
	assert.Equal(t, "0xpkg::nft_billboard::update_ad_space_price", price.Target)
	v, _ := price.UintArg(1)
	assert.Equal(t, uint64(99), v)

	reg := testContract.RegisterGameDev("0xfactory", "0xdev")
	assert.Equal(t, "address", reg.Arguments[1].Type)
	_, ok := reg.UintArg(7)
	assert.False(t, ok)
}

func TestPriceInMist(t *testing.T) {
	assert.Equal(t, uint64(3*MistPerSui), PriceInMist(3))
	assert.Equal(t, uint64(1_000_000), PriceInMist(1_000_000))
}

type stubSigner struct{ err error }

func (s stubSigner) Address() string { return "0xme" }
func (s stubSigner) SignAndSubmit(ctx context.Context, tx Transaction) (model.TxDigest, error) {
	if s.err != nil {
		return "", s.err
	}
	return "digest", nil
}

func TestSubmit(t *testing.T) {
	tx := testContract.UpdateAdSpacePrice("0xad", 1)

	d, err := Submit(context.Background(), stubSigner{}, tx)
	require.NoError(t, err)
	assert.Equal(t, model.TxDigest("digest"), d)

	_, err = Submit(context.Background(), stubSigner{err: errors.New("User rejected the request.")}, tx)
	assert.ErrorIs(t, err, errclass.ErrUserRejected)

	_, err = Submit(context.Background(), stubSigner{err: ErrUserRejected}, tx)
	assert.ErrorIs(t, err, errclass.ErrUserRejected)

	_, err = Submit(context.Background(), stubSigner{err: errors.New("InsufficientGas: insufficient balance for gas budget")}, tx)
	assert.ErrorIs(t, err, errclass.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "update_ad_space_price: InsufficientGas")

	denied := errors.New("sender is not the owner: permission denied")
	_, err = Submit(context.Background(), stubSigner{err: denied}, tx)
	assert.ErrorIs(t, err, errclass.ErrPermissionDenied)
	assert.ErrorIs(t, err, denied)

	cause := errors.New("rpc unavailable")
	_, err = Submit(context.Background(), stubSigner{err: cause}, tx)
	assert.ErrorIs(t, err, errclass.ErrSubmitFailed)
	assert.ErrorIs(t, err, cause)
}

func TestFailureClass(t *testing.T) {
	class, ok := FailureClass(errors.New("missing Authority capability"))
	assert.True(t, ok)
	assert.Equal(t, errclass.ErrPermissionDenied, class)

	class, ok = FailureClass(errors.New("wallet Balance too low"))
	assert.True(t, ok)
	assert.Equal(t, errclass.ErrInsufficientFunds, class)

	_, ok = FailureClass(errors.New("rpc unavailable"))
	assert.False(t, ok)
	_, ok = FailureClass(nil)
	assert.False(t, ok)
}

func TestIsUserRejected(t *testing.T) {
	assert.True(t, IsUserRejected(errors.New("User cancelled")))
	assert.True(t, IsUserRejected(errors.New("wallet: User denied transaction signature")))
	assert.False(t, IsUserRejected(errors.New("insufficient gas")))
	assert.False(t, IsUserRejected(nil))
}
