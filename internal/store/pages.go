package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/output"
)

const pagesBucket = "pages"

// ErrNotFound is returned when no page has the requested id.
var ErrNotFound = errors.New("page not found")

// PageStore persists processed pages.
type PageStore interface {
	SavePage(p *output.PageOutput) error
	GetPage(id string) (*output.PageOutput, error)
	ListPages() ([]PageSummary, error)
	DeletePage(id string) error
	Close() error
}

// PageSummary is the listing entry of a stored page.
type PageSummary struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"template_id"`
	Outcome    output.Outcome `json:"outcome"`
	StartTime  time.Time      `json:"start"`
	Answers    int            `json:"answers"`
}

// BoltStore implements PageStore on a bbolt file. Pages are stored as JSON
// keyed by page id.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the page database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, omrerrors.NewStorageFailedError(path, fmt.Errorf("opening boltdb: %w", err))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pagesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, omrerrors.NewStorageFailedError(path, fmt.Errorf("creating buckets: %w", err))
	}

	return &BoltStore{db: db}, nil
}

// SavePage stores p, replacing any page with the same id.
func (b *BoltStore) SavePage(p *output.PageOutput) error {
	if p == nil || p.ID == "" {
		return omrerrors.NewStorageFailedError("", errors.New("page has no id"))
	}
	data, err := json.Marshal(p)
	if err != nil {
		return omrerrors.NewStorageFailedError(p.ID, fmt.Errorf("marshaling page: %w", err))
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(pagesBucket)).Put([]byte(p.ID), data)
	})
	if err != nil {
		return omrerrors.NewStorageFailedError(p.ID, err)
	}
	return nil
}

// GetPage loads the page with the given id. A missing page yields an error
// wrapping ErrNotFound.
func (b *BoltStore) GetPage(id string) (*output.PageOutput, error) {
	var page *output.PageOutput
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(pagesBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		page = &output.PageOutput{}
		return json.Unmarshal(data, page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ListPages summarizes every stored page in id order.
func (b *BoltStore) ListPages() ([]PageSummary, error) {
	pages := make([]PageSummary, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(pagesBucket)).ForEach(func(k, v []byte) error {
			var p output.PageOutput
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshaling page %s: %w", k, err)
			}
			pages = append(pages, PageSummary{
				ID:         p.ID,
				TemplateID: p.TemplateID,
				Outcome:    p.Outcome,
				StartTime:  p.StartTime,
				Answers:    len(p.Bubbles()) + len(p.Barcodes()),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// DeletePage removes a page. Deleting a missing page is not an error.
func (b *BoltStore) DeletePage(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(pagesBucket)).Delete([]byte(id))
	})
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
