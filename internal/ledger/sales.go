package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"barbearia/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrSaleNotFound = errors.New("sale not found")
	ErrInvalidSale  = errors.New("invalid sale")
)

// SalesDocument is the persisted form of the sales store.
type SalesDocument map[model.Date][]model.SaleRecord

// Sales keeps standalone product sales per date.
type Sales struct {
	mu    sync.RWMutex
	byDay map[model.Date][]model.SaleRecord
	now   func() time.Time
}

func NewSales() *Sales {
	return &Sales{byDay: make(map[model.Date][]model.SaleRecord), now: time.Now}
}

// Add records a sale on date and returns it with its new identity.
func (s *Sales) Add(date model.Date, client, product string, value decimal.Decimal, paid bool) (model.SaleRecord, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return model.SaleRecord{}, fmt.Errorf("%w: product is required", ErrInvalidSale)
	}
	if value.IsNegative() {
		return model.SaleRecord{}, fmt.Errorf("%w: value must not be negative", ErrInvalidSale)
	}

	rec := model.SaleRecord{
		ID:        uuid.New(),
		Client:    strings.TrimSpace(client),
		Product:   product,
		Value:     value,
		Paid:      paid,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDay[date] = append(s.byDay[date], rec)
	return rec, nil
}

func (s *Sales) SetPaid(date model.Date, id uuid.UUID, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.byDay[date] {
		if s.byDay[date][i].ID == id {
			s.byDay[date][i].Paid = paid
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrSaleNotFound, id, date)
}

func (s *Sales) Remove(date model.Date, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byDay[date]
	for i := range list {
		if list[i].ID == id {
			s.byDay[date] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrSaleNotFound, id, date)
}

// SalesOn returns a copy of the sales recorded on date.
func (s *Sales) SalesOn(date model.Date) []model.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SaleRecord(nil), s.byDay[date]...)
}

// Dates lists dates with at least one sale, ascending.
func (s *Sales) Dates() []model.Date {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Date, 0, len(s.byDay))
	for d, list := range s.byDay {
		if len(list) > 0 {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *Sales) Document() SalesDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := make(SalesDocument, len(s.byDay))
	for d, list := range s.byDay {
		if len(list) > 0 {
			doc[d] = append([]model.SaleRecord(nil), list...)
		}
	}
	return doc
}

// Load replaces the store content. Records without identity get one.
func (s *Sales) Load(doc SalesDocument) {
	byDay := make(map[model.Date][]model.SaleRecord, len(doc))
	for d, list := range doc {
		cp := append([]model.SaleRecord(nil), list...)
		for i := range cp {
			if cp[i].ID == uuid.Nil {
				cp[i].ID = uuid.New()
			}
		}
		byDay[d] = cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDay = byDay
}
