package testutil

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// GenerateTransaction returns a small, deterministic transaction. Different
// seeds produce different txids.
func GenerateTransaction(seed int) *wire.MsgTx {
	tx := wire.NewMsgTx(2)

	prev := chainhash.DoubleHashH([]byte{byte(seed), byte(seed >> 8)})
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, uint32(seed)), []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(int64(1000+seed), []byte{0x51}))

	return tx
}

// GenerateWitnessTransaction returns a transaction carrying witness data.
func GenerateWitnessTransaction(seed int) *wire.MsgTx {
	tx := GenerateTransaction(seed)
	tx.TxIn[0].SignatureScript = nil
	tx.TxIn[0].Witness = wire.TxWitness{[]byte{0x01, byte(seed)}, []byte{0x02}}
	return tx
}

// EncodeTransaction returns the hex encoded serialization of tx.
func EncodeTransaction(t *testing.T, tx *wire.MsgTx) string {
	buf := &bytes.Buffer{}
	require.NoError(t, tx.Serialize(buf))
	return hex.EncodeToString(buf.Bytes())
}
