//go:generate go run go.uber.org/mock/mockgen -source=outcome.go -destination=../mocks/mock_outcome_repository.go -package=mocks
package repositories

import (
	"conference-bot/domain"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const outcomePrefix = "outcome:"

// OutcomeRepository journals completed session outcomes in BadgerDB. The key
// is "outcome:{ts_padded}:{conv_id}" so that a reverse scan yields the most
// recent sessions first. This is history for the status surface, not job
// persistence: scheduled jobs stay in memory.
type OutcomeRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewOutcomeRepository(db *badger.DB, log *slog.Logger) *OutcomeRepository {
	return &OutcomeRepository{db: db, log: log}
}

func (r *OutcomeRepository) Save(rec domain.OutcomeRecord) error {
	key := fmt.Sprintf("%s%020d:%s", outcomePrefix, rec.FinishedAt.UnixNano(), rec.ConversationID)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling outcome record: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns up to limit outcomes, newest first.
func (r *OutcomeRepository) Recent(limit int) ([]domain.OutcomeRecord, error) {
	var records []domain.OutcomeRecord

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(outcomePrefix)
		// Reverse iteration needs a seek past the last possible key.
		seek := append(append([]byte{}, prefix...), 0xFF)

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec domain.OutcomeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					r.log.Warn("Skipping corrupt outcome record", "key", string(it.Item().Key()), "error", err)
					return nil
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
