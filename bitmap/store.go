package bitmap

import (
	"fmt"
	"sync"

	"github.com/imazen-go/imageflow/ferr"
)

// Key is an opaque handle into a Store, standing in for imageflow_core's
// BitmapKey (a generational index into its bitmap slab).
type Key uint64

type borrowState int

const (
	free borrowState = iota
	sharedBorrow
	exclusiveBorrow
)

type slot struct {
	bmp         *Bitmap
	state       borrowState
	sharedCount int
}

// Store owns a set of Bitmaps and enforces RefCell-style borrow checking:
// at most one exclusive (mutable) borrow, or any number of shared
// (read-only) borrows, never both at once (spec §4.A, §8). Unlike Rust's
// RefCell, Go has no destructor, so callers release a borrow explicitly by
// calling Window.Close() (or ReadWindow.Close()); the engine always does
// this via defer immediately after taking a borrow.
//
// Store assumes the single-threaded-per-Context usage model spec.md
// describes ("within a single Context, no implicit thread-safety... the
// borrow checker... is single-threaded"); the mutex here only guards the
// map structure so that Drop/Create from a owning goroutine is safe to
// race with diagnostic reads, not to allow two goroutines to operate on
// one Context concurrently.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*slot
	next    uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[Key]*slot)}
}

func (s *Store) insert(b *Bitmap) Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	k := Key(s.next)
	s.entries[k] = &slot{bmp: b}
	return k
}

// CreateU8 allocates a new zero-filled U8 bitmap and returns its key.
func (s *Store) CreateU8(w, h int, layout PixelLayout, alphaMeaningful bool, cs ColorSpace, compositing Compositing) (Key, error) {
	b, err := newU8(w, h, layout, alphaMeaningful, cs, compositing)
	if err != nil {
		return 0, ferr.New(ferr.InvalidDimensions, "bitmap.CreateU8", err)
	}
	return s.insert(b), nil
}

// CreateF32 allocates a new zero-filled F32 bitmap (an intermediate
// floatspace buffer used by the scaling kernels) and returns its key.
func (s *Store) CreateF32(w, h, channels int) (Key, error) {
	b, err := newF32(w, h, channels)
	if err != nil {
		return 0, ferr.New(ferr.InvalidDimensions, "bitmap.CreateF32", err)
	}
	return s.insert(b), nil
}

func (s *Store) lookup(key Key) (*slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ferr.New(ferr.InvalidArgument, "bitmap.lookup", fmt.Errorf("unknown bitmap key %d", key))
	}
	return e, nil
}

// Describe returns read-only metadata about key's bitmap without taking a
// borrow; safe to call regardless of current borrow state.
func (s *Store) Describe(key Key) (*Bitmap, error) {
	e, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return e.bmp, nil
}

// TryBorrowMut takes an exclusive, mutable borrow on key's bitmap. It fails
// with BitmapBorrowConflict if any borrow (shared or exclusive) is
// currently outstanding.
func (s *Store) TryBorrowMut(key Key) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ferr.New(ferr.InvalidArgument, "bitmap.TryBorrowMut", fmt.Errorf("unknown bitmap key %d", key))
	}
	if e.state != free {
		return nil, ferr.New(ferr.BitmapBorrowConflict, "bitmap.TryBorrowMut", fmt.Errorf("key %d already borrowed", key))
	}
	e.state = exclusiveBorrow
	return newWindow(e.bmp, 0, e.bmp.h, func() { s.releaseExclusive(key) }), nil
}

// TryBorrow takes a shared, read-only borrow on key's bitmap. It fails with
// BitmapBorrowConflict if an exclusive borrow is currently outstanding.
func (s *Store) TryBorrow(key Key) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ferr.New(ferr.InvalidArgument, "bitmap.TryBorrow", fmt.Errorf("unknown bitmap key %d", key))
	}
	if e.state == exclusiveBorrow {
		return nil, ferr.New(ferr.BitmapBorrowConflict, "bitmap.TryBorrow", fmt.Errorf("key %d exclusively borrowed", key))
	}
	e.state = sharedBorrow
	e.sharedCount++
	return newWindow(e.bmp, 0, e.bmp.h, func() { s.releaseShared(key) }), nil
}

func (s *Store) releaseExclusive(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.state = free
		e.bmp.generation++
	}
}

func (s *Store) releaseShared(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.sharedCount--
	if e.sharedCount <= 0 {
		e.sharedCount = 0
		e.state = free
	}
}

// Drop removes key's bitmap from the store. It fails with
// BitmapBorrowConflict if a borrow is currently outstanding.
func (s *Store) Drop(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if e.state != free {
		return ferr.New(ferr.BitmapBorrowConflict, "bitmap.Drop", fmt.Errorf("key %d still borrowed", key))
	}
	delete(s.entries, key)
	return nil
}

// Len reports how many bitmaps are currently live in the store, used by
// diagnostics (job.Diagnostics) to report peak bitmap count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
