package downloads

import (
	"errors"
	"sync"
	"time"

	"mov-converter/internal/logging"
	"mov-converter/internal/metrics"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("download not found or expired")

// Item is a converted file awaiting download.
type Item struct {
	Token    string
	Filename string
	MIMEType string
	Data     []byte
	Created  time.Time
	Expires  time.Time
}

// Store is an in-memory, TTL-bounded set of downloadable items.
type Store struct {
	mu    sync.Mutex
	items map[string]*Item
	bytes int64
	ttl   time.Duration
	now   func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStore creates a store whose items expire ttl after they are added.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		items:  make(map[string]*Item),
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// TTL returns how long items stay downloadable.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put adds data to the store and returns the new item.
func (s *Store) Put(data []byte, filename, mimeType string) *Item {
	now := s.now()
	item := &Item{
		Token:    uuid.NewString(),
		Filename: filename,
		MIMEType: mimeType,
		Data:     data,
		Created:  now,
		Expires:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.items[item.Token] = item
	s.bytes += int64(len(data))
	s.updateGauges()
	s.mu.Unlock()

	return item
}

// Get returns the item for token. Items stay available until they expire
// so the same result can be downloaded more than once.
func (s *Store) Get(token string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[token]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(item.Expires) {
		s.removeLocked(token)
		return nil, ErrNotFound
	}
	return item, nil
}

// Sweep drops expired items and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, item := range s.items {
		if !now.Before(item.Expires) {
			s.removeLocked(token)
			removed++
		}
	}
	return removed
}

// Len returns the number of items currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Start runs Sweep every interval until Stop is called.
func (s *Store) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					logging.Debug("Expired %d downloads", n)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop ends the sweeper started by Start and releases every held item.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	s.mu.Lock()
	for token := range s.items {
		s.removeLocked(token)
	}
	s.mu.Unlock()
}

func (s *Store) removeLocked(token string) {
	item, ok := s.items[token]
	if !ok {
		return
	}
	delete(s.items, token)
	s.bytes -= int64(len(item.Data))
	s.updateGauges()
}

func (s *Store) updateGauges() {
	metrics.DownloadsHeld.Set(float64(len(s.items)))
	metrics.DownloadsHeldBytes.Set(float64(s.bytes))
}
