package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/models"
)

// TranscriptStorage keeps chat transcripts as raw badger entries with a TTL.
// Key format: transcript:{sessionID}:{sequence}
type TranscriptStorage struct {
	db     *BadgerDB
	ttl    time.Duration
	logger arbor.ILogger

	mu      sync.Mutex
	lastSeq int64
}

// NewTranscriptStorage creates a transcript store. A ttl of zero keeps entries forever.
func NewTranscriptStorage(db *BadgerDB, ttl time.Duration, logger arbor.ILogger) interfaces.TranscriptStorage {
	return &TranscriptStorage{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *TranscriptStorage) prefix(sessionID string) []byte {
	return []byte(fmt.Sprintf("transcript:%s:", sessionID))
}

// nextSeq returns a strictly increasing sequence so keys sort in append order
func (s *TranscriptStorage) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func (s *TranscriptStorage) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	key := append(s.prefix(sessionID), []byte(fmt.Sprintf("%020d", s.nextSeq()))...)

	err = s.db.Badger().Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (s *TranscriptStorage) LoadTranscript(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	prefix := s.prefix(sessionID)
	messages := []models.ChatMessage{}

	err := s.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg models.ChatMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Skipping unreadable transcript entry")
				continue
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	return messages, nil
}

func (s *TranscriptStorage) DeleteTranscript(ctx context.Context, sessionID string) error {
	prefix := s.prefix(sessionID)

	err := s.db.Badger().Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
