// Package clients keeps the client registry: names, phones and birthdays.
package clients

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"barbearia/internal/model"
)

var (
	ErrInvalidClient = errors.New("invalid client")
	ErrNotFound      = errors.New("client not found")
)

// Document is the persisted registry, keyed by normalized name.
type Document map[string]model.ClientRecord

type Registry struct {
	mu      sync.RWMutex
	records map[string]model.ClientRecord
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]model.ClientRecord)}
}

// Key normalizes a client name for lookups.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Upsert inserts or replaces a client. The phone is normalized; an empty
// phone or birthday keeps the stored one.
func (r *Registry) Upsert(rec model.ClientRecord) (model.ClientRecord, error) {
	rec.Name = strings.Join(strings.Fields(rec.Name), " ")
	if rec.Name == "" {
		return model.ClientRecord{}, fmt.Errorf("%w: name is required", ErrInvalidClient)
	}
	if rec.Phone != "" {
		phone, ok := NormalizePhone(rec.Phone)
		if !ok {
			return model.ClientRecord{}, fmt.Errorf("%w: phone %q", ErrInvalidClient, rec.Phone)
		}
		rec.Phone = phone
	}
	if rec.Birthday != nil {
		if err := rec.Birthday.Validate(); err != nil {
			return model.ClientRecord{}, fmt.Errorf("%w: %v", ErrInvalidClient, err)
		}
		b := *rec.Birthday
		rec.Birthday = &b
	}

	key := Key(rec.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.records[key]; ok {
		if rec.Phone == "" {
			rec.Phone = old.Phone
		}
		if rec.Birthday == nil {
			rec.Birthday = old.Birthday
		}
	}
	r.records[key] = rec
	return rec, nil
}

func (r *Registry) Get(name string) (model.ClientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[Key(name)]
	if !ok {
		return model.ClientRecord{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rec, nil
}

func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key(name)
	if _, ok := r.records[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.records, key)
	return nil
}

// Match returns clients whose name starts with prefix, or contains it when
// no name starts with it. Results are sorted by name.
func (r *Registry) Match(prefix string) []model.ClientRecord {
	p := Key(prefix)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var starts, contains []model.ClientRecord
	for key, rec := range r.records {
		switch {
		case strings.HasPrefix(key, p):
			starts = append(starts, rec)
		case strings.Contains(key, p):
			contains = append(contains, rec)
		}
	}
	out := starts
	if len(out) == 0 {
		out = contains
	}
	sortByName(out)
	return out
}

// All returns every client sorted by name.
func (r *Registry) All() []model.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ClientRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sortByName(out)
	return out
}

// BirthdaysOn lists clients celebrating on date.
func (r *Registry) BirthdaysOn(date model.Date) []model.ClientRecord {
	return r.filter(func(rec model.ClientRecord) bool {
		return rec.Birthday != nil && rec.Birthday.On(date)
	})
}

// BirthdaysInMonth lists clients born in month, ordered by day.
func (r *Registry) BirthdaysInMonth(month time.Month) []model.ClientRecord {
	out := r.filter(func(rec model.ClientRecord) bool {
		return rec.Birthday != nil && rec.Birthday.Month == month
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Birthday.Day < out[j].Birthday.Day })
	return out
}

func (r *Registry) filter(keep func(model.ClientRecord) bool) []model.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ClientRecord
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sortByName(out)
	return out
}

func (r *Registry) Document() Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc := make(Document, len(r.records))
	for k, v := range r.records {
		doc[k] = v
	}
	return doc
}

// Load replaces the registry. Keys are recomputed from names.
func (r *Registry) Load(doc Document) {
	records := make(map[string]model.ClientRecord, len(doc))
	for _, rec := range doc {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		records[Key(rec.Name)] = rec
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
}

func sortByName(list []model.ClientRecord) {
	sort.Slice(list, func(i, j int) bool { return Key(list[i].Name) < Key(list[j].Name) })
}

// NormalizePhone strips separators and keeps an optional leading "+".
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	repl := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")
	s = repl.Replace(s)
	if strings.HasPrefix(s, "+") {
		s = "+" + filterDigits(s[1:])
	} else {
		s = filterDigits(s)
	}
	digits := strings.TrimPrefix(s, "+")
	// DDD + 8 or 9 digits locally, up to E.164 length with country code
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	return s, true
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
