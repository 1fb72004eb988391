package nostr

// Tag is a small ordered list of strings. The first element is the tag key.
type Tag []string

// Key returns the tag key, or an empty string for an empty tag.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Values returns every element after the key.
func (t Tag) Values() []string {
	if len(t) < 2 {
		return nil
	}
	return t[1:]
}

// Tags is the ordered tag list of an event.
type Tags []Tag

// Find returns the first tag satisfying pred. Later matches are ignored.
func (tags Tags) Find(pred func(Tag) bool) (Tag, bool) {
	for _, t := range tags {
		if pred(t) {
			return t, true
		}
	}
	return nil, false
}

// WithKey returns a predicate matching tags with the provided key.
func WithKey(key string) func(Tag) bool {
	return func(t Tag) bool {
		return len(t) > 0 && t[0] == key
	}
}
