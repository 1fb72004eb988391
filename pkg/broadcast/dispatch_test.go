package broadcast

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
	"github.com/kinecosystem/nostrbtc/pkg/testutil"
)

func generateTxs(n int) []*btcutil.Tx {
	txs := make([]*btcutil.Tx, n)
	for i := 0; i < n; i++ {
		txs[i] = btcutil.NewTx(testutil.GenerateTransaction(i))
	}
	return txs
}

func TestDispatch_None(t *testing.T) {
	node := rpc.NewMockNode()

	r, err := Dispatch(context.Background(), node, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeNone, r.Mode)
	assert.Empty(t, r.TxIDs)
	assert.Nil(t, r.Single)
	assert.Nil(t, r.Package)

	node.AssertNotCalled(t, "SendRawTransaction", mock.Anything)
	node.AssertNotCalled(t, "SubmitPackage", mock.Anything)
}

func TestDispatch_Single(t *testing.T) {
	txs := generateTxs(1)
	txid := txs[0].Hash().String()

	node := rpc.NewMockNode()
	node.On("SendRawTransaction", txs[0].MsgTx()).Return(txid, nil).Once()

	r, err := Dispatch(context.Background(), node, txs)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, r.Mode)
	assert.Equal(t, []string{txid}, r.TxIDs)
	require.NotNil(t, r.Single)
	assert.True(t, r.Single.Accepted)
	assert.Empty(t, r.Single.Reason)
	assert.Equal(t, "Submitted transactions: "+txid, r.Summary())

	node.AssertExpectations(t)
	node.AssertNumberOfCalls(t, "SendRawTransaction", 1)
	node.AssertNotCalled(t, "SubmitPackage", mock.Anything)
}

func TestDispatch_SingleRejected(t *testing.T) {
	txs := generateTxs(1)

	node := rpc.NewMockNode()
	node.On("SendRawTransaction", txs[0].MsgTx()).Return("", &rpc.RPCError{Code: -26, Message: "dust"}).Once()

	r, err := Dispatch(context.Background(), node, txs)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, r.Mode)
	require.NotNil(t, r.Single)
	assert.False(t, r.Single.Accepted)
	assert.Contains(t, r.Single.Reason, "dust")

	// The summary lists the transaction regardless of the outcome.
	assert.Equal(t, "Submitted transactions: "+txs[0].Hash().String(), r.Summary())

	node.AssertNumberOfCalls(t, "SendRawTransaction", 1)
	node.AssertNotCalled(t, "SubmitPackage", mock.Anything)
}

func TestDispatch_Package(t *testing.T) {
	txs := generateTxs(3)
	msgs := []*wire.MsgTx{txs[0].MsgTx(), txs[1].MsgTx(), txs[2].MsgTx()}
	result := &rpc.PackageResult{PackageMsg: "success"}

	node := rpc.NewMockNode()
	node.On("SubmitPackage", msgs).Return(result, nil).Once()

	r, err := Dispatch(context.Background(), node, txs)
	require.NoError(t, err)
	assert.Equal(t, ModePackage, r.Mode)
	assert.Equal(t, result, r.Package)
	assert.Nil(t, r.Single)
	assert.Equal(t, []string{
		txs[0].Hash().String(),
		txs[1].Hash().String(),
		txs[2].Hash().String(),
	}, r.TxIDs)

	node.AssertExpectations(t)
	node.AssertNumberOfCalls(t, "SubmitPackage", 1)
	node.AssertNotCalled(t, "SendRawTransaction", mock.Anything)

	// Transactions are passed through untouched and in order.
	submitted := node.Calls[0].Arguments.Get(0).([]*wire.MsgTx)
	for i := range txs {
		assert.True(t, submitted[i] == txs[i].MsgTx())
	}
}

func TestDispatch_PackageFailure(t *testing.T) {
	txs := generateTxs(2)
	rpcErr := &rpc.RPCError{Code: -25, Message: "package-not-child-with-unconfirmed-parents"}

	node := rpc.NewMockNode()
	node.On("SubmitPackage", mock.Anything).Return(nil, rpcErr).Once()

	r, err := Dispatch(context.Background(), node, txs)
	require.Error(t, err)
	assert.Equal(t, rpcErr, errors.Cause(err))
	require.NotNil(t, r)
	assert.Equal(t, ModePackage, r.Mode)
	assert.Nil(t, r.Package)

	node.AssertNumberOfCalls(t, "SubmitPackage", 1)
	node.AssertNotCalled(t, "SendRawTransaction", mock.Anything)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", ModeNone.String())
	assert.Equal(t, "single", ModeSingle.String())
	assert.Equal(t, "package", ModePackage.String())
	assert.Equal(t, "unknown", Mode(10).String())
}
