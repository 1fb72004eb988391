package nostr

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignedEvent(t *testing.T) *Event {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	e := &Event{
		CreatedAt: 1700000000,
		Kind:      28333,
		Tags: Tags{
			{"magic", "f9beb4d9"},
			{"transactions", "00", "01"},
		},
		Content: "<hello & \"world\">",
	}
	require.NoError(t, e.Sign(key))
	return e
}

func TestSerialize(t *testing.T) {
	e := &Event{
		PubKey:    strings.Repeat("ab", 32),
		CreatedAt: 1,
		Kind:      28333,
		Tags:      Tags{{"magic", "0b110907"}},
		Content:   "a<b>&c\n",
	}

	assert.Equal(t, `[0,"`+strings.Repeat("ab", 32)+`",1,28333,[["magic","0b110907"]],"a<b>&c\n"]`, string(e.Serialize()))

	e.Tags = nil
	assert.Contains(t, string(e.Serialize()), `,28333,[],`)
}

func TestSerialize_Escaping(t *testing.T) {
	e := &Event{
		PubKey:    "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		CreatedAt: 1700000000,
		Kind:      28333,
		Tags: Tags{
			{"transactions", "0100\u2028"},
			{"note", "\x00"},
		},
		Content: "line1\nline2\ttab \"quoted\" back\\slash\r\b\f\x01\x1f\x7f <a>&\u2028\u2029\u00e9\u20bf",
	}

	// Only quotes, backslashes and control characters are escaped. Line and
	// paragraph separators, DEL, HTML characters and non-ASCII text are not.
	expected := `[0,"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",1700000000,28333,` +
		`[["transactions","0100` + "\u2028" + `"],["note","\u0000"]],` +
		`"line1\nline2\ttab \"quoted\" back\\slash\r\b\f\u0001\u001f` + "\x7f <a>&\u2028\u2029\u00e9\u20bf" + `"]`
	assert.Equal(t, expected, string(e.Serialize()))
	assert.Equal(t, "cc2a883b7a4ec26c6896812919c1a4e95982a3f6e61e3b2843d156d5387f84b5", e.ComputeID())

	// Events carrying these characters still sign and verify.
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	require.NoError(t, e.Sign(key))
	assert.NoError(t, e.Verify())
}

func TestSignVerify(t *testing.T) {
	e := newSignedEvent(t)
	assert.NoError(t, e.Validate())
	assert.NoError(t, e.Verify())

	// Survives a JSON round trip, as if delivered by a relay.
	b, err := json.Marshal(e)
	require.NoError(t, err)
	decoded := &Event{}
	require.NoError(t, json.Unmarshal(b, decoded))
	assert.NoError(t, decoded.Verify())
}

func TestVerify_Tampered(t *testing.T) {
	e := newSignedEvent(t)
	e.Tags = append(e.Tags, Tag{"transactions", "02"})
	assert.Equal(t, ErrInvalidID, e.Verify())

	e = newSignedEvent(t)
	e.Content = "changed"
	assert.Equal(t, ErrInvalidID, e.Verify())

	e = newSignedEvent(t)
	sig := []byte(e.Sig)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	e.Sig = string(sig)
	assert.Equal(t, ErrInvalidSignature, errors.Cause(e.Verify()))

	e = newSignedEvent(t)
	e.Sig = "zz"
	assert.Equal(t, ErrInvalidSignature, errors.Cause(e.Verify()))

	// Signed by someone else.
	other := newSignedEvent(t)
	e = newSignedEvent(t)
	e.PubKey = other.PubKey
	e.ID = e.ComputeID()
	assert.Equal(t, ErrInvalidSignature, errors.Cause(e.Verify()))
}

func TestValidate(t *testing.T) {
	valid := newSignedEvent(t)
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(e *Event){
		"negative kind": func(e *Event) { e.Kind = -1 },
		"large kind":    func(e *Event) { e.Kind = 70000 },
		"short id":      func(e *Event) { e.ID = "abcd" },
		"non-hex id":    func(e *Event) { e.ID = strings.Repeat("zz", 32) },
		"short pubkey":  func(e *Event) { e.PubKey = "abcd" },
		"empty tag":     func(e *Event) { e.Tags = append(e.Tags, Tag{}) },
	} {
		e := *valid
		e.Tags = append(Tags{}, valid.Tags...)
		mutate(&e)
		assert.Error(t, e.Validate(), name)
	}

	var nilEvent *Event
	assert.Error(t, nilEvent.Validate())
}
