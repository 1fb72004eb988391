package rpc

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

// MockNode is a testify backed Node. Expectations are set without the
// context argument, e.g.:
//
//   node.On("SendRawTransaction", tx).Return("txid", nil)
type MockNode struct {
	mock.Mock
}

// NewMockNode returns a new MockNode.
func NewMockNode() *MockNode {
	return &MockNode{}
}

// GetNetworkInfo implements Node.GetNetworkInfo.
func (m *MockNode) GetNetworkInfo(_ context.Context) (*NetworkInfo, error) {
	args := m.Called()

	info, _ := args.Get(0).(*NetworkInfo)
	return info, args.Error(1)
}

// SendRawTransaction implements Submitter.SendRawTransaction.
func (m *MockNode) SendRawTransaction(_ context.Context, tx *wire.MsgTx) (string, error) {
	args := m.Called(tx)
	return args.String(0), args.Error(1)
}

// SubmitPackage implements Submitter.SubmitPackage.
func (m *MockNode) SubmitPackage(_ context.Context, txs []*wire.MsgTx) (*PackageResult, error) {
	args := m.Called(txs)

	result, _ := args.Get(0).(*PackageResult)
	return result, args.Error(1)
}
