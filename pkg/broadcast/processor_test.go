package broadcast

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	xrate "golang.org/x/time/rate"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
	"github.com/kinecosystem/nostrbtc/pkg/events/memory"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
	"github.com/kinecosystem/nostrbtc/pkg/rate"
	"github.com/kinecosystem/nostrbtc/pkg/testutil"
)

type testEnv struct {
	key       *btcec.PrivateKey
	node      *rpc.MockNode
	processor *Processor
}

func setup(t *testing.T, limiter rate.Limiter) *testEnv {
	env := &testEnv{
		key:  testutil.GenerateKey(t),
		node: rpc.NewMockNode(),
	}
	env.processor = NewProcessor(Config{Kind: DefaultKind, Network: bitcoin.Mainnet}, env.node, limiter)
	return env
}

func (e *testEnv) event(t *testing.T, kind int, tags ...nostr.Tag) *nostr.Event {
	return testutil.NewSignedEvent(t, e.key, kind, tags...)
}

func (e *testEnv) assertNoNodeCalls(t *testing.T) {
	e.node.AssertNotCalled(t, "SendRawTransaction", mock.Anything)
	e.node.AssertNotCalled(t, "SubmitPackage", mock.Anything)
}

func TestProcess_OtherKind(t *testing.T) {
	env := setup(t, nil)
	tx := testutil.GenerateTransaction(1)

	for _, kind := range []int{0, 1, 28334, 20000} {
		r, err := env.processor.Process(context.Background(), env.event(
			t,
			kind,
			testutil.MagicTag("f9beb4d9"),
			testutil.TransactionsTag(testutil.EncodeTransaction(t, tx)),
		))
		assert.NoError(t, err)
		assert.Nil(t, r)
	}

	env.assertNoNodeCalls(t)
}

func TestProcess_NetworkMismatch(t *testing.T) {
	env := setup(t, nil)
	payload := testutil.TransactionsTag(testutil.EncodeTransaction(t, testutil.GenerateTransaction(1)))

	for _, tags := range [][]nostr.Tag{
		{payload},
		{testutil.MagicTag("not-a-magic"), payload},
		{testutil.MagicTag(bitcoin.Testnet.Magic().String()), payload},
		{testutil.MagicTag(bitcoin.Regtest.Magic().String()), payload},
		{{"magic"}, payload},
	} {
		r, err := env.processor.Process(context.Background(), env.event(t, DefaultKind, tags...))
		assert.NoError(t, err)
		assert.Nil(t, r)
	}

	env.assertNoNodeCalls(t)
}

func TestProcess_NoTransactions(t *testing.T) {
	env := setup(t, nil)

	r, err := env.processor.Process(context.Background(), env.event(t, DefaultKind, testutil.MagicTag("f9beb4d9")))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, ModeNone, r.Mode)

	env.assertNoNodeCalls(t)
}

func TestProcess_Single(t *testing.T) {
	env := setup(t, nil)
	tx := testutil.GenerateTransaction(1)

	env.node.On("SendRawTransaction", mock.Anything).Return(tx.TxHash().String(), nil).Once()

	r, err := env.processor.Process(context.Background(), env.event(
		t,
		DefaultKind,
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag("zz", testutil.EncodeTransaction(t, tx)),
	))
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, r.Mode)
	assert.True(t, r.Single.Accepted)

	env.node.AssertNumberOfCalls(t, "SendRawTransaction", 1)
	env.node.AssertNotCalled(t, "SubmitPackage", mock.Anything)

	submitted := env.node.Calls[0].Arguments.Get(0).(*wire.MsgTx)
	assert.Equal(t, tx.TxHash(), submitted.TxHash())
}

func TestProcess_Package(t *testing.T) {
	env := setup(t, nil)
	txA := testutil.GenerateTransaction(1)
	txB := testutil.GenerateWitnessTransaction(2)

	env.node.On("SubmitPackage", mock.Anything).Return(&rpc.PackageResult{PackageMsg: "success"}, nil).Once()

	r, err := env.processor.Process(context.Background(), env.event(
		t,
		DefaultKind,
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag(
			testutil.EncodeTransaction(t, txA),
			"not-hex",
			testutil.EncodeTransaction(t, txB),
		),
	))
	require.NoError(t, err)
	assert.Equal(t, ModePackage, r.Mode)
	assert.Equal(t, []string{txA.TxHash().String(), txB.TxHash().String()}, r.TxIDs)

	env.node.AssertNumberOfCalls(t, "SubmitPackage", 1)
	env.node.AssertNotCalled(t, "SendRawTransaction", mock.Anything)

	submitted := env.node.Calls[0].Arguments.Get(0).([]*wire.MsgTx)
	require.Len(t, submitted, 2)
	assert.Equal(t, txA.TxHash(), submitted[0].TxHash())
	assert.Equal(t, txB.TxHash(), submitted[1].TxHash())
}

func TestOnEvent_ContinuesAfterFailure(t *testing.T) {
	env := setup(t, nil)

	first := env.event(
		t,
		DefaultKind,
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag(
			testutil.EncodeTransaction(t, testutil.GenerateTransaction(1)),
			testutil.EncodeTransaction(t, testutil.GenerateTransaction(2)),
		),
	)
	second := env.event(
		t,
		DefaultKind,
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag(
			testutil.EncodeTransaction(t, testutil.GenerateTransaction(3)),
			testutil.EncodeTransaction(t, testutil.GenerateTransaction(4)),
		),
	)

	env.node.On("SubmitPackage", mock.Anything).Return(nil, &rpc.RPCError{Code: -25, Message: "failed"}).Once()
	env.node.On("SubmitPackage", mock.Anything).Return(&rpc.PackageResult{PackageMsg: "success"}, nil).Once()

	// Delivered the same way the relay pool delivers events.
	ps := memory.New(env.processor.OnEvent)
	assert.NoError(t, ps.Submit(context.Background(), first))
	assert.NoError(t, ps.Submit(context.Background(), second))

	env.node.AssertExpectations(t)
	env.node.AssertNumberOfCalls(t, "SubmitPackage", 2)

	submitted := env.node.Calls[1].Arguments.Get(0).([]*wire.MsgTx)
	assert.Equal(t, testutil.GenerateTransaction(3).TxHash(), submitted[0].TxHash())
}

func TestProcess_RateLimited(t *testing.T) {
	limiter, err := rate.NewLocalRateLimiter(xrate.Limit(1), 10)
	require.NoError(t, err)
	env := setup(t, limiter)

	tx := testutil.GenerateTransaction(1)
	env.node.On("SendRawTransaction", mock.Anything).Return(tx.TxHash().String(), nil)

	tags := []nostr.Tag{
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag(testutil.EncodeTransaction(t, tx)),
	}

	r, err := env.processor.Process(context.Background(), env.event(t, DefaultKind, tags...))
	require.NoError(t, err)
	assert.NotNil(t, r)

	// Same publisher, within the same second.
	r, err = env.processor.Process(context.Background(), env.event(t, DefaultKind, tags...))
	require.NoError(t, err)
	assert.Nil(t, r)

	// Other publishers are unaffected.
	other := testutil.NewSignedEvent(t, testutil.GenerateKey(t), DefaultKind, tags...)
	r, err = env.processor.Process(context.Background(), other)
	require.NoError(t, err)
	assert.NotNil(t, r)

	env.node.AssertNumberOfCalls(t, "SendRawTransaction", 2)
}
