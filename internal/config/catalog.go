package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ServiceConfig is a bookable service.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Price           string `yaml:"price"` // "80.00"
}

// ProductConfig is a retail product, sold as an extra or standalone.
type ProductConfig struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// HolidayConfig represents a holiday configuration.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"` // "Confraternização Universal"
}

// CatalogConfig is the root configuration for catalog.yaml.
type CatalogConfig struct {
	Services []ServiceConfig `yaml:"services"`
	Products []ProductConfig `yaml:"products"`
	Holidays []HolidayConfig `yaml:"holidays"`
	DaysOff  []int           `yaml:"days_off"` // 1=Mon, 7=Sun
}

// Catalog is the validated, indexed form of CatalogConfig.
type Catalog struct {
	services []model.Service
	products []model.Product
	byName   map[string]int
	prodName map[string]int
	holidays map[model.Date]string
	daysOff  map[time.Weekday]bool
}

// DefaultCatalogConfig is used when no catalog file exists.
func DefaultCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		Services: []ServiceConfig{
			{Name: "Cabelo", DurationMinutes: 30, Price: "40.00"},
			{Name: "Barba", DurationMinutes: 30, Price: "35.00"},
			{Name: "Cabelo e Barba", DurationMinutes: 60, Price: "80.00"},
			{Name: "Outro", DurationMinutes: 30, Price: "0"},
		},
		Products: []ProductConfig{
			{Name: "Pomada", Price: "30.00"},
			{Name: "Óleo para barba", Price: "35.00"},
			{Name: "Refrigerante", Price: "6.00"},
		},
		DaysOff: []int{7},
	}
}

// LoadCatalog loads and validates catalog configuration from YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog config: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog config: %w", err)
	}

	c, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("validate catalog config: %w", err)
	}
	return c, nil
}

// Build validates the configuration and indexes it.
func (cfg *CatalogConfig) Build() (*Catalog, error) {
	if len(cfg.Services) == 0 {
		return nil, fmt.Errorf("no services defined")
	}

	c := &Catalog{
		byName:   make(map[string]int),
		prodName: make(map[string]int),
		holidays: make(map[model.Date]string),
		daysOff:  make(map[time.Weekday]bool),
	}

	for i, s := range cfg.Services {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("service[%d]: name is required", i)
		}
		if _, dup := c.byName[nameKey(name)]; dup {
			return nil, fmt.Errorf("service[%d]: duplicate name '%s'", i, name)
		}
		if s.DurationMinutes <= 0 {
			return nil, fmt.Errorf("service[%d]: duration_minutes must be positive", i)
		}
		price, err := parsePrice(s.Price)
		if err != nil {
			return nil, fmt.Errorf("service[%d]: %w", i, err)
		}
		c.byName[nameKey(name)] = len(c.services)
		c.services = append(c.services, model.Service{Name: name, Duration: s.DurationMinutes, Price: price})
	}

	for i, p := range cfg.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("product[%d]: name is required", i)
		}
		if _, dup := c.prodName[nameKey(name)]; dup {
			return nil, fmt.Errorf("product[%d]: duplicate name '%s'", i, name)
		}
		price, err := parsePrice(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product[%d]: %w", i, err)
		}
		c.prodName[nameKey(name)] = len(c.products)
		c.products = append(c.products, model.Product{Name: name, Price: price})
	}

	for i, h := range cfg.Holidays {
		if h.Date == "" {
			return nil, fmt.Errorf("holiday[%d]: date is required", i)
		}
		d, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		c.holidays[d] = h.Name
	}

	for i, d := range cfg.DaysOff {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("days_off[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, d)
		}
		// Convert our format (1=Mon, 7=Sun) to Go's weekday (0=Sun)
		c.daysOff[time.Weekday(d%7)] = true
	}

	return c, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	p, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price '%s'", s)
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("price cannot be negative")
	}
	return p, nil
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckGrid verifies every service fits the grid's interval.
func (c *Catalog) CheckGrid(g *timegrid.Grid) error {
	for _, s := range c.services {
		if _, err := g.SlotCount(s.Duration); err != nil {
			return fmt.Errorf("service '%s': %w", s.Name, err)
		}
	}
	return nil
}

// Service looks up a service by name, ignoring case.
func (c *Catalog) Service(name string) (model.Service, bool) {
	i, ok := c.byName[nameKey(name)]
	if !ok {
		return model.Service{}, false
	}
	return c.services[i], true
}

// Product looks up a product by name, ignoring case.
func (c *Catalog) Product(name string) (model.Product, bool) {
	i, ok := c.prodName[nameKey(name)]
	if !ok {
		return model.Product{}, false
	}
	return c.products[i], true
}

// Services returns the services in file order.
func (c *Catalog) Services() []model.Service {
	return append([]model.Service(nil), c.services...)
}

func (c *Catalog) Products() []model.Product {
	return append([]model.Product(nil), c.products...)
}

// IsHoliday checks if a date is a holiday.
func (c *Catalog) IsHoliday(d model.Date) (bool, string) {
	name, ok := c.holidays[d]
	return ok, name
}

// Holiday has the shape of engine.HolidayPredicate.
func (c *Catalog) Holiday(d model.Date) bool {
	_, ok := c.holidays[d]
	return ok
}

// IsDayOff checks if a weekday is a day off.
func (c *Catalog) IsDayOff(wd time.Weekday) bool {
	return c.daysOff[wd]
}

// IsClosed reports whether the shop is closed on d.
func (c *Catalog) IsClosed(d model.Date) bool {
	if ok, _ := c.IsHoliday(d); ok {
		return true
	}
	return c.IsDayOff(d.Weekday())
}

// String returns a summary of the configuration.
func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog: %d services, %d products, %d holidays",
		len(c.services), len(c.products), len(c.holidays))
}
