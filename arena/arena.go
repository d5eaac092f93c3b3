package arena

const defaultBlockSize = 1 << 20 // 1 MiB, matching original_source/src/arena.c's alloc_size
const defaultBlockSlots = 256    // matches arena.c's initial maxblocks

const maxAlign = 8 // platform max_align_t stand-in (alignof(uint64) / alignof(pointer))

// Config mirrors shady's ArenaConfig: the only tunable today is the
// block size, exposed so tests can exercise block-growth without
// allocating a real megabyte per test.
type Config struct {
	BlockSize int
}

// DefaultConfig returns the block size the original compiler used.
func DefaultConfig() Config {
	return Config{BlockSize: defaultBlockSize}
}

// Arena is a bump allocator plus the string/string-list intern sets
// described in spec §3.1–3.2. The node and node-list intern sets live
// one layer up, in package ir, since they need to key on *ir.Node shapes
// this package has no knowledge of. All nodes and interned strings/lists
// returned by an Arena share its lifetime; Go's GC reclaims them once
// the Arena itself is unreachable, so Destroy only drops the arena's own
// references to its blocks and intern sets, kept for symmetry with the
// teacher's explicit lifecycle (see DESIGN.md).
type Arena struct {
	config Config

	blocks    [][]byte
	available int

	nextFreeID uint32

	strings     map[uint32][]*string // content digest -> candidates
	stringLists map[uint32][]*StringList
}

// New creates an arena with the default 1 MiB block size.
func New() *Arena {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an arena with an explicit configuration.
func NewWithConfig(cfg Config) *Arena {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = defaultBlockSize
	}
	return &Arena{
		config:      cfg,
		blocks:      make([][]byte, 0, defaultBlockSlots),
		strings:     make(map[uint32][]*string),
		stringLists: make(map[uint32][]*StringList),
	}
}

// Destroy releases the arena's intern sets. Go's GC does the actual
// freeing; this exists so callers can write the same
// "arena := New(); defer arena.Destroy()" shape the C API requires.
func (a *Arena) Destroy() {
	a.blocks = nil
	a.strings = nil
	a.stringLists = nil
}

func roundUp(n, align int) int {
	return ((n + align - 1) / align) * align
}

// Alloc bump-allocates a zeroed region of n bytes, aligned to the
// platform's maximum scalar alignment, from the arena's current block,
// growing the block list on overflow (arena.c's arena_alloc).
func (a *Arena) Alloc(n int) []byte {
	size := roundUp(n, maxAlign)
	if size == 0 {
		return nil
	}
	if size > a.available {
		a.blocks = append(a.blocks, make([]byte, a.config.BlockSize))
		a.available = a.config.BlockSize
	}
	block := a.blocks[len(a.blocks)-1]
	offset := len(block) - a.available
	region := block[offset : offset+size : offset+size]
	a.available -= size
	return region[:n]
}

// FreshID returns the next value from the arena's monotone variable-ID
// counter (spec §3.1, arena.c's fresh_id).
func (a *Arena) FreshID() uint32 {
	id := a.nextFreeID
	a.nextFreeID++
	return id
}
