// Package storage persists whole JSON documents (agenda, clients, sales)
// in SQLite or Redis and keeps timestamped backups of every save.
package storage

import (
	"context"
	"errors"
)

var ErrNotExist = errors.New("document does not exist")

// Document names.
const (
	AgendaDocument  = "agenda"
	ClientsDocument = "clientes"
	SalesDocument   = "vendas"
)

// DocumentStore loads and saves named documents as opaque bytes.
type DocumentStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, body []byte) error
	Ping(ctx context.Context) error
	Close() error
}
