package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"
)

const (
	maxKind = 65535

	idSize     = sha256.Size
	pubKeySize = 32
	sigSize    = schnorr.SignatureSize
)

var (
	ErrInvalidID        = errors.New("event id does not match event contents")
	ErrInvalidSignature = errors.New("invalid event signature")
)

// Event is a single message delivered by a relay.
//
// Events are treated as immutable once received; nothing in this module
// mutates an event after it has been decoded.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Validate checks the structural well-formedness of the event. It does not
// check the id or the signature; see Verify.
func (e *Event) Validate() error {
	if e == nil {
		return errors.New("event is nil")
	}
	if e.Kind < 0 || e.Kind > maxKind {
		return errors.Errorf("invalid kind: %d", e.Kind)
	}
	if err := validateHex(e.ID, idSize); err != nil {
		return errors.Wrap(err, "invalid id")
	}
	if err := validateHex(e.PubKey, pubKeySize); err != nil {
		return errors.Wrap(err, "invalid pubkey")
	}
	for i, t := range e.Tags {
		if len(t) == 0 {
			return errors.Errorf("empty tag at %d", i)
		}
	}

	return nil
}

// Serialize returns the canonical commitment form of the event:
//
//   [0,<pubkey>,<created_at>,<kind>,<tags>,<content>]
//
// Strings are escaped as NIP-01 requires, which differs from encoding/json:
// only quotes, backslashes and control characters are escaped, and all
// other characters (including U+2028 and U+2029) are written as is.
func (e *Event) Serialize() []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("[0,")
	writeString(buf, e.PubKey)
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	buf.WriteByte(',')
	buf.WriteString(strconv.Itoa(e.Kind))
	buf.WriteString(",[")
	for i, t := range e.Tags {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, v := range t {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, v)
		}
		buf.WriteByte(']')
	}
	buf.WriteString("],")
	writeString(buf, e.Content)
	buf.WriteByte(']')

	return buf.Bytes()
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte('"')
}

// ComputeID returns the hex encoded sha256 of the serialized event.
func (e *Event) ComputeID() string {
	h := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(h[:])
}

// Verify checks that the event id commits to the event contents, and that
// the signature over the id is valid for the event pubkey.
func (e *Event) Verify() error {
	if e.ComputeID() != e.ID {
		return ErrInvalidID
	}

	rawID, err := hex.DecodeString(e.ID)
	if err != nil {
		return ErrInvalidID
	}
	rawPub, err := hex.DecodeString(e.PubKey)
	if err != nil || len(rawPub) != pubKeySize {
		return errors.Wrap(ErrInvalidSignature, "malformed pubkey")
	}
	rawSig, err := hex.DecodeString(e.Sig)
	if err != nil || len(rawSig) != sigSize {
		return errors.Wrap(ErrInvalidSignature, "malformed signature")
	}

	pub, err := schnorr.ParsePubKey(rawPub)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, err.Error())
	}
	if !sig.Verify(rawID, pub) {
		return ErrInvalidSignature
	}

	return nil
}

// Sign sets the pubkey, id and signature of the event using the provided key.
func (e *Event) Sign(key *btcec.PrivateKey) error {
	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))

	id := e.ComputeID()
	e.ID = id

	rawID, err := hex.DecodeString(id)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(key, rawID)
	if err != nil {
		return errors.Wrap(err, "failed to sign event")
	}
	e.Sig = hex.EncodeToString(sig.Serialize())

	return nil
}

func validateHex(s string, size int) error {
	if len(s) != 2*size {
		return errors.Errorf("expected %d hex characters, got %d", 2*size, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return err
	}
	return nil
}
