package arena

import (
	"fmt"
)

// HashBytes exposes the arena's MurmurHash3-based digest function so that
// higher-level interners (the ir package's node and node-list sets) can
// key their own dedup maps with the same deterministic hash
// spec §3.2 mandates for all four intern sets.
func HashBytes(data []byte) uint32 {
	return hashBytes(data)
}

// InternString deduplicates a string by byte content, returning a stable
// pointer: two calls with equal content return the same *string, so
// downstream comparisons may use pointer identity (arena.c's string()).
func (a *Arena) InternString(s string) *string {
	key := hashBytes([]byte(s))
	for _, candidate := range a.strings[key] {
		if *candidate == s {
			return candidate
		}
	}
	// Copy into arena-owned storage so the arena, not the caller, owns
	// the backing bytes for the lifetime argument in spec §3.1.
	buf := a.Alloc(len(s))
	copy(buf, s)
	owned := string(buf)
	ptr := &owned
	a.strings[key] = append(a.strings[key], ptr)
	return ptr
}

// FormatString renders a message with fmt.Sprintf semantics and interns
// the result (arena.c's format_string).
func (a *Arena) FormatString(format string, args ...interface{}) *string {
	return a.InternString(fmt.Sprintf(format, args...))
}

// UniqueName returns "<prefix>_<fresh id>", interned (arena.c's unique_name).
func (a *Arena) UniqueName(prefix string) *string {
	return a.FormatString("%s_%d", prefix, a.FreshID())
}

// StringList is an interned, arena-owned sequence of interned strings.
// Two StringLists built from the same pointer sequence compare equal by
// identity once both are interned (spec §3.2).
type StringList struct {
	Items []*string
}

func stringListKey(items []*string) []byte {
	buf := make([]byte, 0, len(items)*8)
	for _, p := range items {
		buf = appendPtrBytes(buf, p)
	}
	return buf
}

// InternStringList deduplicates a slice of already-interned strings by
// their pointer sequence.
func (a *Arena) InternStringList(items []*string) *StringList {
	key := hashBytes(stringListKey(items))
	for _, candidate := range a.stringLists[key] {
		if sameStringPointers(candidate.Items, items) {
			return candidate
		}
	}
	owned := make([]*string, len(items))
	copy(owned, items)
	list := &StringList{Items: owned}
	a.stringLists[key] = append(a.stringLists[key], list)
	return list
}

func sameStringPointers(a, b []*string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// appendPtrBytes appends a pointer's identity (its %p text form) to buf.
// This is the Go stand-in for the original arena's raw memcmp over a
// C pointer array: two equal addresses produce equal text, two distinct
// addresses overwhelmingly (murmur-hash-collision-probability) do not.
func appendPtrBytes[T any](buf []byte, p *T) []byte {
	return fmt.Appendf(buf, "%p|", p)
}
