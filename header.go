package fits

import (
	"fmt"
	"strings"
)

// Card is one header entry: a (key, value, comment) triple. Keys are stored
// verbatim; all lookups compare case-insensitively.
type Card struct {
	Key     string
	Value   Value
	Comment string
}

// Seq is a restartable iterator over header cards in stored order.
//
// It matches the shape of iter.Seq[Card] so callers can use slices.Collect:
//
//	cards := slices.Collect(iter.Seq[fits.Card](hdr.Cards()))
type Seq func(yield func(Card) bool)

// Header is an ordered collection of cards with dictionary-style lookup.
//
// FITS permits repeated keys (HISTORY, COMMENT, and in malformed files any
// key), so Header keeps the on-disk card order as the source of truth and
// maintains a side index mapping each key to its first occurrence. Key-based
// operations always act on the first occurrence unless an explicit
// occurrence is requested with [Header.Occurrence].
//
// The index is maintained on every mutation, never recomputed lazily.
type Header struct {
	cards []Card
	index map[string]int // uppercased key -> position of first occurrence
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// HeaderFromSlices builds a header from parallel key, value, and comment
// slices in order. Fails with [ErrLengthMismatch] if the slices differ in
// length; on failure nothing is constructed.
func HeaderFromSlices(keys []string, values []Value, comments []string) (*Header, error) {
	if len(keys) != len(values) || len(keys) != len(comments) {
		return nil, fmt.Errorf("%w: %d keys, %d values, %d comments",
			ErrLengthMismatch, len(keys), len(values), len(comments))
	}

	h := NewHeader()
	for i := range keys {
		h.AppendCard(Card{Key: keys[i], Value: values[i], Comment: comments[i]})
	}

	return h, nil
}

func fold(key string) string {
	return strings.ToUpper(key)
}

// Len returns the number of cards.
func (h *Header) Len() int {
	return len(h.cards)
}

// AppendCard appends a card at the end, even when the key already exists.
// This is the path for loading existing cards from a file and for commentary
// keys that repeat by design.
func (h *Header) AppendCard(c Card) {
	k := fold(c.Key)
	if _, ok := h.index[k]; !ok {
		h.index[k] = len(h.cards)
	}

	h.cards = append(h.cards, c)
}

// Get returns the value of the first card matching key.
// Fails with [ErrKeyNotFound] if no card matches.
func (h *Header) Get(key string) (Value, error) {
	i, ok := h.index[fold(key)]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	return h.cards[i].Value, nil
}

// Comment returns the comment of the first card matching key.
// Fails with [ErrKeyNotFound] if no card matches.
func (h *Header) Comment(key string) (string, error) {
	i, ok := h.index[fold(key)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	return h.cards[i].Comment, nil
}

// Set updates the value of the first card matching key in place, preserving
// its position and comment. If no card matches, a new card with an empty
// comment is appended.
func (h *Header) Set(key string, v Value) {
	if i, ok := h.index[fold(key)]; ok {
		h.cards[i].Value = v

		return
	}

	h.AppendCard(Card{Key: key, Value: v})
}

// SetCard behaves like [Header.Set] but also replaces the comment.
func (h *Header) SetCard(key string, v Value, comment string) {
	if i, ok := h.index[fold(key)]; ok {
		h.cards[i].Value = v
		h.cards[i].Comment = comment

		return
	}

	h.AppendCard(Card{Key: key, Value: v, Comment: comment})
}

// SetComment updates only the comment of the first card matching key.
// Fails with [ErrKeyNotFound] if no card matches.
func (h *Header) SetComment(key, comment string) error {
	i, ok := h.index[fold(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	h.cards[i].Comment = comment

	return nil
}

// Delete removes the first card matching key, shifting later cards up one
// position. When duplicates exist only the first occurrence is removed and
// lookups then resolve to the next one. Fails with [ErrKeyNotFound] if no
// card matches; the header is unchanged on failure.
func (h *Header) Delete(key string) error {
	i, ok := h.index[fold(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	h.cards = append(h.cards[:i], h.cards[i+1:]...)
	h.rebuildIndex()

	return nil
}

// rebuildIndex recomputes the first-occurrence index from the card order.
func (h *Header) rebuildIndex() {
	h.index = make(map[string]int, len(h.cards))
	for i, c := range h.cards {
		k := fold(c.Key)
		if _, ok := h.index[k]; !ok {
			h.index[k] = i
		}
	}
}

// At returns the card at position i (0-based, stored order).
// Returns (Card{}, false) when i is out of range.
func (h *Header) At(i int) (Card, bool) {
	if i < 0 || i >= len(h.cards) {
		return Card{}, false
	}

	return h.cards[i], true
}

// Occurrence returns the n-th card (0-based) matching key, counting
// duplicates in stored order. Fails with [ErrKeyNotFound] when fewer than
// n+1 cards match.
func (h *Header) Occurrence(key string, n int) (Card, error) {
	k := fold(key)
	seen := 0

	for _, c := range h.cards {
		if fold(c.Key) != k {
			continue
		}

		if seen == n {
			return c, nil
		}

		seen++
	}

	return Card{}, fmt.Errorf("%w: %s (occurrence %d)", ErrKeyNotFound, key, n)
}

// Keys returns all keys in stored order, duplicates included.
func (h *Header) Keys() []string {
	keys := make([]string, len(h.cards))
	for i, c := range h.cards {
		keys[i] = c.Key
	}

	return keys
}

// Cards returns a restartable iterator over all cards in stored order.
func (h *Header) Cards() Seq {
	return func(yield func(Card) bool) {
		for _, c := range h.cards {
			if !yield(c) {
				return
			}
		}
	}
}
