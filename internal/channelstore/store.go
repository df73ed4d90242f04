// Package channelstore owns the ordered channel list and its persistence as a
// single JSON record in a namespaced key/value store.
package channelstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/store"
)

var (
	// ErrCorruptData is returned by Load when the persisted record could not be
	// parsed. The record has already been cleared when it is returned.
	ErrCorruptData = errors.New("corrupt channel data")
	// ErrWriteFailed wraps storage errors from a mutation. The in-memory list
	// keeps the mutation.
	ErrWriteFailed = errors.New("channel list write failed")
)

// ChangeKind identifies a structural change of the list.
type ChangeKind int

const (
	Inserted ChangeKind = iota
	Changed
	Removed
	Reset
)

func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is emitted after every applied mutation. Index is the position the
// mutation happened at; it is -1 for Reset.
type Change struct {
	Kind    ChangeKind
	Index   int
	Channel models.Channel
}

// Store holds the ordered channel list. Every mutation rewrites the whole record.
type Store struct {
	kv  store.Store
	key string
	log logrus.FieldLogger

	mu       sync.RWMutex
	channels []models.Channel
	subs     []func(Change)
}

// New creates a channel store over kv. Call Load before use.
func New(kv store.Store, log logrus.FieldLogger) *Store {
	return &Store{kv: kv, key: models.StorageKeyChannelList, log: log}
}

// Subscribe registers fn for change notifications. Callbacks run synchronously
// on the goroutine that performed the mutation, after the write.
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Load reads the persisted record into memory and returns a copy of it.
// A missing record yields an empty list. A malformed record is cleared from
// storage and ErrCorruptData is returned together with an empty list.
func (s *Store) Load(ctx context.Context) ([]models.Channel, error) {
	raw, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.replaceAll(nil)
		return []models.Channel{}, nil
	case errors.Is(err, store.ErrCorrupt):
		return s.reset(ctx, err)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}

	channels, assigned, decErr := decode(raw)
	if decErr != nil {
		return s.reset(ctx, decErr)
	}

	s.replaceAll(channels)
	if assigned {
		// Records written without ids get them once, so they stay stable across restarts.
		if err := s.Save(ctx, channels); err != nil {
			s.log.WithError(err).Warn("could not persist assigned channel ids")
		}
	}
	return s.Channels(), nil
}

// reset clears the namespace after cause made the stored list unreadable.
func (s *Store) reset(ctx context.Context, cause error) ([]models.Channel, error) {
	s.log.WithError(cause).Warn("channel list is corrupt, resetting storage")
	s.replaceAll(nil)
	if err := s.kv.Clear(ctx); err != nil {
		return []models.Channel{}, fmt.Errorf("%w: %v (reset failed: %v)", ErrCorruptData, cause, err)
	}
	return []models.Channel{}, fmt.Errorf("%w: %v", ErrCorruptData, cause)
}

// Save serializes channels and overwrites the stored record.
func (s *Store) Save(ctx context.Context, channels []models.Channel) error {
	data, err := encode(channels)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// Channels returns a copy of the in-memory list.
func (s *Store) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Len returns the number of channels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// At returns the channel at index.
func (s *Store) At(index int) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.channels) {
		return models.Channel{}, false
	}
	return s.channels[index], true
}

// Get returns the channel with the given id.
func (s *Store) Get(id string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.channels[i], true
	}
	return models.Channel{}, false
}

// IndexOf returns the position of the channel with the given id, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

// IndexOfValue returns the position of the first channel with the same
// name, url and logo as ch, or -1. With duplicates this is the first match,
// which may not be the entry the caller had in mind; prefer IndexOf.
func (s *Store) IndexOfValue(ch models.Channel) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, c := range s.channels {
		if c.SameContent(ch) {
			return i
		}
	}
	return -1
}

// Append adds ch at the end of the list and persists it. An id is generated
// when ch has none. The returned channel is what was stored.
func (s *Store) Append(ctx context.Context, ch models.Channel) (models.Channel, error) {
	if ch.ID == "" {
		ch.ID = models.NewChannelID()
	}
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	index := len(s.channels) - 1
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(ctx, snapshot)
	s.emit(Change{Kind: Inserted, Index: index, Channel: ch})
	return ch, err
}

// AppendAll adds chs at the end of the list with a single write and signals
// one insertion per channel. Missing ids are generated.
func (s *Store) AppendAll(ctx context.Context, chs []models.Channel) ([]models.Channel, error) {
	if len(chs) == 0 {
		return nil, nil
	}
	added := make([]models.Channel, len(chs))
	s.mu.Lock()
	first := len(s.channels)
	for i, ch := range chs {
		if ch.ID == "" {
			ch.ID = models.NewChannelID()
		}
		added[i] = ch
		s.channels = append(s.channels, ch)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(ctx, snapshot)
	for i, ch := range added {
		s.emit(Change{Kind: Inserted, Index: first + i, Channel: ch})
	}
	return added, err
}

// ReplaceAt replaces the channel at index with ch and persists the list. The
// existing id is kept. An out-of-range index is a no-op and returns false.
func (s *Store) ReplaceAt(ctx context.Context, index int, ch models.Channel) (models.Channel, bool, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.channels) {
		s.mu.Unlock()
		return models.Channel{}, false, nil
	}
	ch.ID = s.channels[index].ID
	s.channels[index] = ch
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(ctx, snapshot)
	s.emit(Change{Kind: Changed, Index: index, Channel: ch})
	return ch, true, err
}

// RemoveAt removes the channel at index and persists the list. An
// out-of-range index is a no-op and returns false.
func (s *Store) RemoveAt(ctx context.Context, index int) (models.Channel, bool, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.channels) {
		s.mu.Unlock()
		return models.Channel{}, false, nil
	}
	removed := s.channels[index]
	s.channels = append(s.channels[:index], s.channels[index+1:]...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(ctx, snapshot)
	s.emit(Change{Kind: Removed, Index: index, Channel: removed})
	return removed, true, err
}

// Update replaces the content of the channel with the given id.
// An unknown id is a no-op and returns false.
func (s *Store) Update(ctx context.Context, id string, ch models.Channel) (models.Channel, bool, error) {
	i := s.IndexOf(id)
	if i < 0 {
		return models.Channel{}, false, nil
	}
	return s.ReplaceAt(ctx, i, ch)
}

// Delete removes the channel with the given id.
// An unknown id is a no-op and returns false.
func (s *Store) Delete(ctx context.Context, id string) (models.Channel, bool, error) {
	i := s.IndexOf(id)
	if i < 0 {
		return models.Channel{}, false, nil
	}
	return s.RemoveAt(ctx, i)
}

// --- helpers ---

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.channels {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []models.Channel {
	out := make([]models.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

func (s *Store) replaceAll(channels []models.Channel) {
	s.mu.Lock()
	s.channels = channels
	s.mu.Unlock()
	s.emit(Change{Kind: Reset, Index: -1})
}

// persist writes snapshot. Failures leave memory as is and are returned as ErrWriteFailed.
func (s *Store) persist(ctx context.Context, snapshot []models.Channel) error {
	if err := s.Save(ctx, snapshot); err != nil {
		s.log.WithError(err).WithField("channels", len(snapshot)).Warn("channel list not persisted")
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *Store) emit(c Change) {
	s.mu.RLock()
	subs := make([]func(Change), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}
