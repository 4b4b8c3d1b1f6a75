package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// BucketName for storing scan records
	BucketName = "scans"

	// MetaBucket for storing metadata
	MetaBucket = "meta"

	// CountKey for tracking total records ever written
	CountKey = "count"
)

// ScanRecord is one recognition run.
type ScanRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Placement  string    `json:"placement"`
	Strategy   string    `json:"strategy,omitempty"`
	Fallback   bool      `json:"fallback"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScanStore keeps the most recent scans in a fixed-size ring buffer.
type ScanStore struct {
	mu       sync.Mutex
	db       *bbolt.DB
	dbPath   string
	maxSize  int
	count    uint64
	isClosed bool
}

// NewScanStore opens (or creates) the history database.
func NewScanStore(dbPath string, maxSize int) (*ScanStore, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("invalid max size: %d (must be >= 1)", maxSize)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketName)); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(MetaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &ScanStore{
		db:      db,
		dbPath:  dbPath,
		maxSize: maxSize,
	}

	count, err := store.readCount()
	if err != nil {
		db.Close()
		return nil, err
	}
	store.count = count

	return store, nil
}

func slotKey(slot uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, slot)
	return key
}

// Record appends a scan, overwriting the oldest once the buffer is full.
func (s *ScanStore) Record(rec ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return fmt.Errorf("store is closed")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if err := b.Put(slotKey(s.count%uint64(s.maxSize)), data); err != nil {
			return err
		}

		next := s.count + 1
		if err := meta.Put([]byte(CountKey), slotKey(next)); err != nil {
			return err
		}
		s.count = next
		return nil
	})
}

// Count returns the number of scans ever recorded.
func (s *ScanStore) Count() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return 0, fmt.Errorf("store is closed")
	}
	return s.readCount()
}

func (s *ScanStore) readCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		if v := meta.Get([]byte(CountKey)); v != nil {
			count = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return count, err
}

// Recent returns up to n records, newest first.
func (s *ScanStore) Recent(n int) ([]ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return nil, fmt.Errorf("store is closed")
	}

	held := s.held()
	if n <= 0 || n > held {
		n = held
	}

	records := make([]ScanRecord, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		for i := 1; i <= n; i++ {
			slot := (s.count - uint64(i)) % uint64(s.maxSize)
			data := b.Get(slotKey(slot))
			if data == nil {
				continue
			}

			var rec ScanRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				continue // Skip corrupted records
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ScanStore) held() int {
	if s.count > uint64(s.maxSize) {
		return s.maxSize
	}
	return int(s.count)
}

// Clear removes every record and resets the counter.
func (s *ScanStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return fmt.Errorf("store is closed")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(BucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte(BucketName)); err != nil {
			return err
		}

		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		if err := meta.Put([]byte(CountKey), slotKey(0)); err != nil {
			return err
		}
		s.count = 0
		return nil
	})
}

// Close closes the database connection
func (s *ScanStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return nil
	}
	s.isClosed = true
	return s.db.Close()
}

// Stats summarizes the history.
type Stats struct {
	TotalScans uint64
	Held       int
	Fallbacks  int
	MaxSize    int
	DBPath     string
	IsWrapped  bool
}

// GetStats returns current statistics. Fallbacks counts only held records.
func (s *ScanStore) GetStats() (Stats, error) {
	records, err := s.Recent(0)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		TotalScans: s.count,
		Held:       len(records),
		MaxSize:    s.maxSize,
		DBPath:     s.dbPath,
		IsWrapped:  s.count > uint64(s.maxSize),
	}
	for _, r := range records {
		if r.Fallback {
			st.Fallbacks++
		}
	}
	return st, nil
}
