package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/signdesk/internal/adapters/driven/secrets"
	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SignedDocumentStore = (*SignedDocumentStore)(nil)

const (
	docPrefix         = "doc:"
	docHandoffPrefix  = "doc-handoff:"
	docTemplatePrefix = "doc-template:"
)

// documentRecord is the stored form; Values may be sealed
type documentRecord struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	HandoffID  string    `json:"handoff_id,omitempty"`
	Values     string    `json:"values"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignedDocumentStore implements driven.SignedDocumentStore on badger.
// A per-template index keyed by inverted creation time gives newest-first scans.
type SignedDocumentStore struct {
	db     *DB
	sealer driven.ValueSealer
}

// NewSignedDocumentStore creates a new SignedDocumentStore. sealer may be nil.
func NewSignedDocumentStore(db *DB, sealer driven.ValueSealer) *SignedDocumentStore {
	return &SignedDocumentStore{db: db, sealer: sealer}
}

// templateIndexKey sorts newest first under a template prefix
func templateIndexKey(templateID string, createdAt time.Time, id string) string {
	return fmt.Sprintf("%s%s:%019d:%s", docTemplatePrefix, templateID, math.MaxInt64-createdAt.UnixNano(), id)
}

// Insert writes the document and its indexes in one transaction
func (s *SignedDocumentStore) Insert(ctx context.Context, doc *domain.SignedDocument) error {
	values, err := secrets.MarshalValues(s.sealer, doc.Values)
	if err != nil {
		return err
	}
	data, err := json.Marshal(documentRecord{
		ID:         doc.ID,
		TemplateID: doc.TemplateID,
		HandoffID:  doc.HandoffID,
		Values:     values,
		Source:     string(doc.Source),
		CreatedAt:  doc.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal signed document: %w", err)
	}

	return s.db.update(func(txn *badgerdb.Txn) error {
		if taken, err := exists(txn, docPrefix+doc.ID); err != nil || taken {
			if taken {
				return domain.ErrAlreadyExists
			}
			return err
		}
		if doc.HandoffID != "" {
			taken, err := exists(txn, docHandoffPrefix+doc.HandoffID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrAlreadyExists
			}
			if err := txn.Set([]byte(docHandoffPrefix+doc.HandoffID), []byte(doc.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(templateIndexKey(doc.TemplateID, doc.CreatedAt, doc.ID)), []byte(doc.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(docPrefix+doc.ID), data)
	})
}

// Get retrieves a signed document by ID
func (s *SignedDocumentStore) Get(ctx context.Context, id string) (*domain.SignedDocument, error) {
	var rec documentRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return getJSON(txn, docPrefix+id, &rec)
	})
	if err != nil {
		return nil, err
	}
	return s.decode(&rec)
}

// ListByTemplate returns documents for a template, newest first
func (s *SignedDocumentStore) ListByTemplate(ctx context.Context, templateID string, limit int) ([]*domain.SignedDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []documentRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(docTemplatePrefix + templateID + ":")
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec documentRecord
			if err := getJSON(txn, docPrefix+string(id), &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.SignedDocument, 0, len(records))
	for i := range records {
		doc, err := s.decode(&records[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *SignedDocumentStore) decode(rec *documentRecord) (*domain.SignedDocument, error) {
	values, err := secrets.UnmarshalValues(s.sealer, rec.Values)
	if err != nil {
		return nil, fmt.Errorf("signed document %s: %w", rec.ID, err)
	}
	return &domain.SignedDocument{
		ID:         rec.ID,
		TemplateID: rec.TemplateID,
		HandoffID:  rec.HandoffID,
		Values:     values,
		Source:     domain.DocumentSource(rec.Source),
		CreatedAt:  rec.CreatedAt,
	}, nil
}
