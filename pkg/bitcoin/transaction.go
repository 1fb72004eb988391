package bitcoin

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

var (
	ErrInvalidHex         = errors.New("payload is not valid hex")
	ErrInvalidTransaction = errors.New("payload is not a valid transaction")
)

// DecodeTransaction decodes a hex encoded, consensus serialized transaction.
//
// Both legacy and segwit serializations are accepted. Bytes left over after
// the transaction are rejected.
func DecodeTransaction(s string) (*btcutil.Tx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHex, err.Error())
	}
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidTransaction, "empty payload")
	}

	r := bytes.NewReader(raw)
	msg := &wire.MsgTx{}
	if err := msg.Deserialize(r); err != nil {
		return nil, errors.Wrap(ErrInvalidTransaction, err.Error())
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrInvalidTransaction, "%d trailing bytes", r.Len())
	}

	return btcutil.NewTx(msg), nil
}

// EncodeTransaction returns the hex encoded consensus serialization of tx,
// including witness data.
func EncodeTransaction(tx *wire.MsgTx) (string, error) {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(buf); err != nil {
		return "", errors.Wrap(err, "failed to serialize transaction")
	}

	return hex.EncodeToString(buf.Bytes()), nil
}
