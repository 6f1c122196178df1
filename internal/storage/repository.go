package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"barbearia/internal/clients"
	"barbearia/internal/ledger"
	"barbearia/internal/schedule"

	"github.com/rs/zerolog"
)

// Repository encodes the domain documents. After each save it backs up every
// document it has seen, under one timestamp.
type Repository struct {
	store  DocumentStore
	backup *BackupService
	logger *zerolog.Logger

	mu   sync.Mutex
	last map[string][]byte // latest body per document, loaded or saved
}

func NewRepository(store DocumentStore, backup *BackupService, logger *zerolog.Logger) *Repository {
	l := logger.With().Str("component", "repository").Logger()
	return &Repository{store: store, backup: backup, logger: &l, last: make(map[string][]byte)}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Repository) SaveAgenda(ctx context.Context, doc schedule.Document) error {
	return r.save(ctx, AgendaDocument, doc)
}

// LoadAgenda returns an empty document when nothing was saved yet.
func (r *Repository) LoadAgenda(ctx context.Context) (schedule.Document, error) {
	doc := schedule.Document{}
	if err := r.load(ctx, AgendaDocument, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Repository) SaveClients(ctx context.Context, doc clients.Document) error {
	return r.save(ctx, ClientsDocument, doc)
}

func (r *Repository) LoadClients(ctx context.Context) (clients.Document, error) {
	doc := clients.Document{}
	if err := r.load(ctx, ClientsDocument, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Repository) SaveSales(ctx context.Context, doc ledger.SalesDocument) error {
	return r.save(ctx, SalesDocument, doc)
}

func (r *Repository) LoadSales(ctx context.Context) (ledger.SalesDocument, error) {
	doc := ledger.SalesDocument{}
	if err := r.load(ctx, SalesDocument, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Repository) save(ctx context.Context, name string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Save(ctx, name, body); err != nil {
		return err
	}
	r.last[name] = body
	if r.backup != nil {
		if _, err := r.backup.PerformBackup(maps.Clone(r.last)); err != nil {
			// the save itself succeeded
			r.logger.Error().Err(err).Str("document", name).Msg("Backup failed")
		}
	}
	return nil
}

func (r *Repository) load(ctx context.Context, name string, out any) error {
	body, err := r.store.Load(ctx, name)
	if errors.Is(err, ErrNotExist) {
		r.logger.Info().Str("document", name).Msg("No saved document, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}

	r.mu.Lock()
	r.last[name] = body
	r.mu.Unlock()
	return nil
}
