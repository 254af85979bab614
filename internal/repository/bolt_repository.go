package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

const invocationsBucket = "tool_invocations"

// ErrDuplicateInvocation is returned when an invocation ID is recorded twice.
var ErrDuplicateInvocation = errors.New("invocation already recorded")

// BoltRepository keeps the audit trail in a local BoltDB file for
// deployments without PostgreSQL.
type BoltRepository struct {
	db *bolt.DB
}

func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(invocationsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRepository) Record(_ context.Context, inv *models.Invocation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(invocationsBucket))
		if b.Get([]byte(inv.ID)) != nil {
			return ErrDuplicateInvocation
		}
		return b.Put([]byte(inv.ID), data)
	})
}

// List returns every recorded invocation ordered by creation time.
func (r *BoltRepository) List(_ context.Context) ([]models.Invocation, error) {
	items := []models.Invocation{}

	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(invocationsBucket))
		return b.ForEach(func(_, v []byte) error {
			var inv models.Invocation
			if err := json.Unmarshal(v, &inv); err != nil {
				return err
			}
			items = append(items, inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *BoltRepository) ListByIdempotencyKey(ctx context.Context, key string) ([]models.Invocation, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Invocation
	for _, inv := range all {
		if inv.IdempotencyKey == key {
			out = append(out, inv)
		}
	}
	return out, nil
}
