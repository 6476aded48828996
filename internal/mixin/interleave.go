package mixin

import "feedmix/internal/model"

// Entry is one element of a mixed rendering sequence: either a post or a
// mixin, tagged by Type.
type Entry struct {
	Type  string       `json:"type"`
	Post  *model.Post  `json:"post,omitempty"`
	Mixin *model.Mixin `json:"mixin,omitempty"`
}

// Entry types.
const (
	EntryPost  = "post"
	EntryMixin = "mixin"
)

// Interleave merges an ordered post sequence with a selected mixin
// sequence. With M posts and K mixins, mixin i is inserted at index
// (i+1)*step of the growing sequence, step = ceil(M/(K+1)). Because each
// insertion shifts later elements right, consecutive mixins land step
// posts apart in the original stream, spreading them evenly.
func Interleave(posts []model.Post, mixins []model.Mixin) []Entry {
	mixed := make([]Entry, 0, len(posts)+len(mixins))
	for i := range posts {
		mixed = append(mixed, Entry{Type: EntryPost, Post: &posts[i]})
	}
	if len(mixins) == 0 {
		return mixed
	}

	step := (len(posts) + len(mixins)) / (len(mixins) + 1) // ceil(M/(K+1))
	for i := range mixins {
		at := (i + 1) * step
		if at > len(mixed) {
			at = len(mixed)
		}
		mixed = append(mixed, Entry{})
		copy(mixed[at+1:], mixed[at:])
		mixed[at] = Entry{Type: EntryMixin, Mixin: &mixins[i]}
	}
	return mixed
}
