package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_REDIS_PASSWORD", "s3cret")
	path := writeFile(t, dir, "config.yaml", `
grid:
  open: "08:00"
  close: "18:00"
  interval_minutes: 30
storage:
  driver: sqlite
  sqlite:
    path: `+filepath.Join(dir, "db", "agenda.db")+`
  redis:
    password: ${TEST_REDIS_PASSWORD}
engine:
  auto_persist: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "08:00", cfg.Grid.Open)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "s3cret", cfg.Storage.Redis.Password)
	assert.True(t, cfg.Engine.AutoPersist)
	assert.Equal(t, "barbearia:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 8090, cfg.Monitoring.HealthCheckPort)
	assert.DirExists(t, filepath.Join(dir, "db"))

	g, err := cfg.BuildGrid()
	require.NoError(t, err)
	assert.Equal(t, 21, g.Len())
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "storage:\n  driver: sqlite\n")
	t.Setenv("AGENDA_STORAGE_DRIVER", "redis")
	t.Setenv("AGENDA_REDIS_ADDRESS", "localhost:6379")
	t.Setenv("AGENDA_CATALOG_PATH", "/etc/agenda/catalog.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Address)
	assert.Equal(t, "/etc/agenda/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, "09:00", cfg.Grid.Open)
	assert.Equal(t, "20:30", cfg.Grid.Close)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad interval", body: "grid:\n  interval_minutes: -30\n"},
		{name: "close off step", body: "grid:\n  open: \"09:00\"\n  close: \"09:45\"\n  interval_minutes: 30\n"},
		{name: "unknown driver", body: "storage:\n  driver: postgres\n"},
		{name: "redis without address", body: "storage:\n  driver: redis\n"},
		{name: "negative retention", body: "backup:\n  retention_days: -1\n"},
		{name: "not yaml", body: "grid: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("AGENDA_DATABASE_PATH", filepath.Join(dir, "agenda.db"))
			_, err := Load(writeFile(t, dir, "config.yaml", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_GridConfigError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeFile(t, dir, "config.yaml", "grid:\n  open: \"18:00\"\n  close: \"09:00\"\n"))
	assert.ErrorIs(t, err, timegrid.ErrConfig)
}

const catalogYAML = `
services:
  - name: Cabelo
    duration_minutes: 30
    price: "40.00"
  - name: Cabelo e Barba
    duration_minutes: 60
    price: "80.00"
products:
  - name: Pomada
    price: "30.00"
holidays:
  - date: "2024-12-25"
    name: Natal
days_off: [7]
`

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)
	c, err := LoadCatalog(path)
	require.NoError(t, err)

	svc, ok := c.Service("cabelo e barba")
	require.True(t, ok)
	assert.Equal(t, "Cabelo e Barba", svc.Name)
	assert.Equal(t, 60, svc.Duration)
	assert.True(t, decimal.RequireFromString("80").Equal(svc.Price))

	_, ok = c.Service("Pomada")
	assert.False(t, ok, "products are not bookable")
	p, ok := c.Product("POMADA")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("30").Equal(p.Price))

	holiday, name := c.IsHoliday(model.NewDate(2024, time.December, 25))
	assert.True(t, holiday)
	assert.Equal(t, "Natal", name)
	assert.True(t, c.Holiday(model.NewDate(2024, time.December, 25)))
	assert.False(t, c.Holiday(model.NewDate(2024, time.December, 26)))
	assert.True(t, c.IsDayOff(time.Sunday))
	assert.False(t, c.IsDayOff(time.Monday))
	assert.True(t, c.IsClosed(model.NewDate(2024, time.March, 3)))
	assert.False(t, c.IsClosed(model.NewDate(2024, time.March, 4)))

	assert.Len(t, c.Services(), 2)
	assert.Len(t, c.Products(), 1)
	assert.Equal(t, "Catalog: 2 services, 1 products, 1 holidays", c.String())
}

func TestCatalogConfig_Build(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CatalogConfig)
		wantErr string
	}{
		{name: "default", mutate: func(*CatalogConfig) {}},
		{name: "no services", mutate: func(c *CatalogConfig) { c.Services = nil }, wantErr: "no services"},
		{name: "duplicate service", mutate: func(c *CatalogConfig) {
			c.Services = append(c.Services, ServiceConfig{Name: "cabelo", DurationMinutes: 30})
		}, wantErr: "duplicate name"},
		{name: "zero duration", mutate: func(c *CatalogConfig) { c.Services[0].DurationMinutes = 0 }, wantErr: "duration_minutes"},
		{name: "bad price", mutate: func(c *CatalogConfig) { c.Services[0].Price = "abc" }, wantErr: "invalid price"},
		{name: "negative product price", mutate: func(c *CatalogConfig) { c.Products[0].Price = "-1" }, wantErr: "negative"},
		{name: "bad holiday", mutate: func(c *CatalogConfig) {
			c.Holidays = []HolidayConfig{{Date: "25/12/2024"}}
		}, wantErr: "holiday[0]"},
		{name: "bad day off", mutate: func(c *CatalogConfig) { c.DaysOff = []int{0} }, wantErr: "days_off[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCatalogConfig()
			tt.mutate(cfg)
			_, err := cfg.Build()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalog_CheckGrid(t *testing.T) {
	c, err := DefaultCatalogConfig().Build()
	require.NoError(t, err)

	g30, err := timegrid.Generate(9*60, 18*60, 30)
	require.NoError(t, err)
	assert.NoError(t, c.CheckGrid(g30))

	g60, err := timegrid.Generate(9*60, 18*60, 60)
	require.NoError(t, err)
	assert.ErrorIs(t, c.CheckGrid(g60), timegrid.ErrConfig)
}

func TestCatalogWatcher(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.yaml", catalogYAML)
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *Catalog, 4)
	w := NewCatalogWatcher(path, 10*time.Millisecond, &logger, func(c *Catalog) error {
		updates <- c
		return nil
	})
	require.NoError(t, w.Start(ctx))

	first := <-updates
	assert.Len(t, first.Services(), 2)
	assert.Same(t, first, w.Current())

	updated := `
services:
  - name: Barba
    duration_minutes: 30
    price: "35.00"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case c := <-updates:
		_, ok := c.Service("Barba")
		assert.True(t, ok)
		assert.Len(t, c.Services(), 1)
	case <-time.After(2 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
}

func TestCatalogWatcher_MissingFile(t *testing.T) {
	logger := zerolog.Nop()
	w := NewCatalogWatcher(filepath.Join(t.TempDir(), "none.yaml"), time.Second, &logger, nil)
	assert.ErrorIs(t, w.Start(context.Background()), fs.ErrNotExist)
	assert.Nil(t, w.Current())
}

func TestCatalogWatcher_RejectedUpdate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.yaml", catalogYAML)
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errNoCabelo := errors.New("no Cabelo service")
	seen := make(chan *Catalog, 4)
	w := NewCatalogWatcher(path, 10*time.Millisecond, &logger, func(c *Catalog) error {
		seen <- c
		if _, ok := c.Service("Cabelo"); !ok {
			return errNoCabelo
		}
		return nil
	})
	require.NoError(t, w.Start(ctx))
	first := <-seen
	assert.Same(t, first, w.Current())

	updated := `
services:
  - name: Barba
    duration_minutes: 30
    price: "35.00"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case rejected := <-seen:
		assert.NotSame(t, rejected, w.Current())
	case <-time.After(2 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.Same(t, first, w.Current())
}

func TestCatalogWatcher_KeepsPreviousOnBrokenEdit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.yaml", catalogYAML)
	logger := zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Catalog, 4)
	w := NewCatalogWatcher(path, 10*time.Millisecond, &logger, func(c *Catalog) error {
		reloads <- c
		return nil
	})
	require.NoError(t, w.Start(ctx))
	<-reloads
	first := w.Current()
	require.NotNil(t, first)

	require.NoError(t, os.WriteFile(path, []byte("services: []\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case <-reloads:
		t.Fatal("invalid catalog was published")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Same(t, first, w.Current())
}
