package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"barbearia/internal/clients"
	"barbearia/internal/config"
	"barbearia/internal/ledger"
	"barbearia/internal/model"
	"barbearia/internal/schedule"
	"barbearia/internal/timegrid"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := zerolog.Nop()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "agenda.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := zerolog.Nop()
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", &logger)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestDocumentStores(t *testing.T) {
	redisStore, _ := newRedis(t)
	stores := map[string]DocumentStore{
		"sqlite": newSQLite(t),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Ping(ctx))

			_, err := store.Load(ctx, AgendaDocument)
			assert.ErrorIs(t, err, ErrNotExist)

			require.NoError(t, store.Save(ctx, AgendaDocument, []byte(`{"a":1}`)))
			require.NoError(t, store.Save(ctx, AgendaDocument, []byte(`{"a":2}`)))

			body, err := store.Load(ctx, AgendaDocument)
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(body))

			_, err = store.Load(ctx, SalesDocument)
			assert.ErrorIs(t, err, ErrNotExist)
		})
	}
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	store, mr := newRedis(t)
	require.NoError(t, store.Save(context.Background(), ClientsDocument, []byte(`{}`)))
	assert.True(t, mr.Exists("barbearia:clientes"))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "agenda.db")

	s, err := NewSQLiteStore(path, &logger)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), SalesDocument, []byte(`{}`)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, &logger)
	require.NoError(t, err)
	defer s.Close()
	body, err := s.Load(context.Background(), SalesDocument)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	backupDir := t.TempDir()
	backup := NewBackupService(config.BackupConfig{Enabled: true, Path: backupDir, RetentionDays: 7}, &logger)
	clock := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC)
	backup.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	store := newSQLite(t)
	repo := NewRepository(store, backup, &logger)

	agenda, err := repo.LoadAgenda(ctx)
	require.NoError(t, err)
	assert.Empty(t, agenda)

	grid, err := timegrid.Generate(9*60, 12*60, 30)
	require.NoError(t, err)
	book := schedule.NewBook(grid)
	day := model.NewDate(2024, time.March, 4)
	b := &model.Booking{
		ID:       uuid.New(),
		Client:   "Ana",
		Service:  "Cabelo e Barba",
		Duration: 60,
		Price:    decimal.NewFromInt(80),
	}
	require.NoError(t, book.PlaceRun(day, timegrid.Run{Start: 2, Count: 2}, b))
	require.NoError(t, repo.SaveAgenda(ctx, book.Document()))

	agenda, err = repo.LoadAgenda(ctx)
	require.NoError(t, err)
	restored := schedule.FromDocument(agenda, grid, &logger)
	got, err := restored.Occupancy(day, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, timegrid.Slot(2), got.Start)

	require.NoError(t, repo.SaveClients(ctx, clients.Document{
		"ana": {Name: "Ana", Phone: "5511999990000"},
	}))
	cl, err := repo.LoadClients(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana", cl["ana"].Name)

	sale := model.SaleRecord{ID: uuid.New(), Client: "Ana", Product: "Pomada", Value: decimal.NewFromInt(30)}
	require.NoError(t, repo.SaveSales(ctx, ledger.SalesDocument{day: {sale}}))
	sales, err := repo.LoadSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales[day], 1)
	assert.Equal(t, sale.ID, sales[day][0].ID)

	// one snapshot per save, each carrying every document seen so far
	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1+2+3)
	for _, name := range []string{AgendaDocument, ClientsDocument, SalesDocument} {
		assert.FileExists(t, filepath.Join(backupDir, name+"_20240304_103003.000.json"))
	}
	assert.NoFileExists(t, filepath.Join(backupDir, SalesDocument+"_20240304_103002.000.json"))

	// a fresh repository backs up what it loaded alongside what it saves
	reopened := NewRepository(store, backup, &logger)
	_, err = reopened.LoadAgenda(ctx)
	require.NoError(t, err)
	require.NoError(t, reopened.SaveSales(ctx, ledger.SalesDocument{day: {sale}}))
	snapAgenda, err := os.ReadFile(filepath.Join(backupDir, AgendaDocument+"_20240304_103004.000.json"))
	require.NoError(t, err)
	stored, err := store.Load(ctx, AgendaDocument)
	require.NoError(t, err)
	assert.Equal(t, stored, snapAgenda)
	assert.NoFileExists(t, filepath.Join(backupDir, ClientsDocument+"_20240304_103004.000.json"))
}

func TestRepository_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	store := newSQLite(t)
	require.NoError(t, store.Save(ctx, AgendaDocument, []byte("not json")))

	repo := NewRepository(store, nil, &logger)
	_, err := repo.LoadAgenda(ctx)
	assert.ErrorContains(t, err, "decode agenda")
}

func TestBackupService(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()
	s := NewBackupService(config.BackupConfig{
		Enabled:       true,
		Path:          dir,
		RetentionDays: 7,
		Schedule:      "0 3 * * *",
	}, &logger)
	s.now = func() time.Time { return time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC) }

	paths, err := s.PerformBackup(map[string][]byte{
		SalesDocument:  []byte(`{}`),
		AgendaDocument: []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "agenda_20240304_103000.000.json"),
		filepath.Join(dir, "vendas_20240304_103000.000.json"),
	}, paths)
	path := paths[0]
	assert.FileExists(t, path)

	old := filepath.Join(dir, "vendas_20240101_000000.000.json")
	require.NoError(t, os.WriteFile(old, []byte(`{}`), 0o644))
	stale := s.now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(path, s.now(), s.now()))

	assert.Equal(t, 1, s.CleanupOldBackups())
	assert.NoFileExists(t, old)
	assert.FileExists(t, path)

	c := cron.New()
	require.NoError(t, s.Schedule(c))
	assert.Len(t, c.Entries(), 1)
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	dir := filepath.Join(t.TempDir(), "backups")
	s := NewBackupService(config.BackupConfig{Path: dir}, &logger)

	paths, err := s.PerformBackup(map[string][]byte{AgendaDocument: []byte(`{}`)})
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.NoDirExists(t, dir)

	c := cron.New()
	require.NoError(t, s.Schedule(c))
	assert.Empty(t, c.Entries())
}

func TestBackupService_BadSchedule(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(config.BackupConfig{Enabled: true, Path: t.TempDir(), Schedule: "whenever"}, &logger)
	assert.Error(t, s.Schedule(cron.New()))
}
