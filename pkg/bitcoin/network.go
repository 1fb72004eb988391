package bitcoin

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// Network selects the bitcoin network the bridge relays for.
type Network string

const (
	Mainnet Network = "bitcoin"
	Testnet Network = "testnet"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

var (
	ErrUnknownNetwork = errors.New("unknown network")
	ErrInvalidMagic   = errors.New("invalid network magic")
)

// Networks lists every supported network.
var Networks = []Network{Mainnet, Testnet, Signet, Regtest}

// ParseNetwork parses a network name. "main" and "mainnet" are accepted as
// aliases for "bitcoin", and "testnet3" for "testnet".
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bitcoin", "main", "mainnet":
		return Mainnet, nil
	case "testnet", "testnet3", "test":
		return Testnet, nil
	case "signet":
		return Signet, nil
	case "regtest":
		return Regtest, nil
	default:
		return "", errors.Wrap(ErrUnknownNetwork, s)
	}
}

// Params returns the chain parameters of the network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Signet:
		return &chaincfg.SigNetParams
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return nil
	}
}

// Magic returns the message start bytes of the network.
func (n Network) Magic() Magic {
	p := n.Params()
	if p == nil {
		return 0
	}
	return Magic(p.Net)
}

func (n Network) String() string {
	return string(n)
}

// Magic identifies a bitcoin network by its four message start bytes.
type Magic wire.BitcoinNet

// ParseMagic parses a magic from exactly eight hex characters, in the order
// the bytes appear on the wire (e.g. "f9beb4d9" for mainnet).
func ParseMagic(s string) (Magic, error) {
	if len(s) != 8 {
		return 0, errors.Wrapf(ErrInvalidMagic, "expected 8 hex characters, got %d", len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidMagic, err.Error())
	}

	return Magic(binary.LittleEndian.Uint32(b)), nil
}

// Bytes returns the magic in wire order.
func (m Magic) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(m))
	return b
}

// String returns the magic as lower case hex, in wire order.
func (m Magic) String() string {
	b := m.Bytes()
	return hex.EncodeToString(b[:])
}
