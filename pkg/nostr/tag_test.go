package nostr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTag(t *testing.T) {
	assert.Equal(t, "", Tag{}.Key())
	assert.Nil(t, Tag{}.Values())
	assert.Nil(t, Tag{"magic"}.Values())

	tag := Tag{"transactions", "a", "b"}
	assert.Equal(t, "transactions", tag.Key())
	assert.Equal(t, []string{"a", "b"}, tag.Values())
}

func TestTagsFind(t *testing.T) {
	tags := Tags{
		{},
		{"p", "abc"},
		{"magic", "first"},
		{"magic", "second"},
	}

	tag, ok := tags.Find(WithKey("magic"))
	assert.True(t, ok)
	assert.Equal(t, Tag{"magic", "first"}, tag)

	tag, ok = tags.Find(WithKey("transactions"))
	assert.False(t, ok)
	assert.Nil(t, tag)

	tag, ok = tags.Find(func(t Tag) bool { return len(t) == 2 && t[1] == "second" })
	assert.True(t, ok)
	assert.Equal(t, Tag{"magic", "second"}, tag)

	_, ok = Tags(nil).Find(WithKey("magic"))
	assert.False(t, ok)
}
