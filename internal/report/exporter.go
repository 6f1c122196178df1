// Package report writes the monthly workbook of bookings and sales.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barbearia/internal/config"
	"barbearia/internal/ledger"
	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MonthNames in Portuguese for filename generation.
var MonthNames = map[time.Month]string{
	time.January:   "Janeiro",
	time.February:  "Fevereiro",
	time.March:     "Março",
	time.April:     "Abril",
	time.May:       "Maio",
	time.June:      "Junho",
	time.July:      "Julho",
	time.August:    "Agosto",
	time.September: "Setembro",
	time.October:   "Outubro",
	time.November:  "Novembro",
	time.December:  "Dezembro",
}

// GenerateFilename creates a filename like "Março_2024.xlsx".
func GenerateFilename(year int, month time.Month) string {
	return fmt.Sprintf("%s_%d.xlsx", MonthNames[month], year)
}

// Agenda is the booking side of the export.
type Agenda interface {
	ledger.BookingSource
	Grid() *timegrid.Grid
}

type Exporter struct {
	cfg    config.ReportsConfig
	agenda Agenda
	sales  ledger.SaleSource
	writer func() ExcelWriter
	logger *zerolog.Logger
	now    func() time.Time
}

// NewExporter builds an exporter. A nil writer factory uses excelize.
func NewExporter(cfg config.ReportsConfig, agenda Agenda, sales ledger.SaleSource, writerFactory func() ExcelWriter, logger *zerolog.Logger) *Exporter {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	l := logger.With().Str("component", "report").Logger()
	return &Exporter{
		cfg:    cfg,
		agenda: agenda,
		sales:  sales,
		writer: writerFactory,
		logger: &l,
		now:    time.Now,
	}
}

// Schedule registers the export of the previous month on c.
func (e *Exporter) Schedule(c *cron.Cron) error {
	if !e.cfg.ExportEnabled {
		e.logger.Info().Msg("Monthly export is disabled")
		return nil
	}
	_, err := c.AddFunc(e.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		prev := e.now().AddDate(0, -1, 0)
		if _, err := e.ExportMonth(ctx, prev.Year(), prev.Month()); err != nil {
			e.logger.Error().Err(err).Msg("Failed to export monthly report")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule export %q: %w", e.cfg.Schedule, err)
	}
	e.logger.Info().Str("schedule", e.cfg.Schedule).Msg("Monthly export scheduled")
	return nil
}

// ExportMonth writes the workbook of the month into the reports directory
// and returns its path.
func (e *Exporter) ExportMonth(ctx context.Context, year int, month time.Month) (string, error) {
	if err := os.MkdirAll(e.cfg.Path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	xl := e.writer()
	defer xl.Close()

	if err := e.Write(ctx, xl, ledger.MonthDates(year, month)); err != nil {
		return "", err
	}

	path := filepath.Join(e.cfg.Path, GenerateFilename(year, month))
	if err := xl.SaveToFile(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	e.logger.Info().Str("path", path).Msg("Monthly report written")
	return path, nil
}

// Write fills xl with the summary, bookings and sales sheets of dates.
func (e *Exporter) Write(ctx context.Context, xl ExcelWriter, dates []model.Date) error {
	summary := ledger.Summarize(e.agenda, e.sales, dates)
	if err := writeSummary(xl, summary); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := xl.AddSheet("Atendimentos"); err != nil {
		return err
	}
	if err := xl.WriteHeader([]string{"Data", "Horário", "Cliente", "Serviço", "Duração", "Valor", "Extras", "Total", "Pago", "Pacote", "Obs"}); err != nil {
		return err
	}
	grid := e.agenda.Grid()
	rows := 0
	for _, d := range dates {
		for _, b := range e.agenda.BookingsOn(d) {
			pkg := ""
			if b.Package != nil {
				pkg = b.Package.Name
			}
			err := xl.WriteRow([]any{
				d.BR(), grid.Label(b.Start), b.Client, b.Service,
				timegrid.FormatDuration(b.Duration), money(b.Price), money(b.ExtrasTotal()),
				money(b.Total()), yesNo(b.Paid), pkg, b.Note,
			})
			if err != nil {
				return err
			}
			rows++
		}
	}
	e.logger.Debug().Int("rows", rows).Msg("Exported bookings")

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := xl.AddSheet("Vendas"); err != nil {
		return err
	}
	if err := xl.WriteHeader([]string{"Data", "Cliente", "Produto", "Valor", "Pago"}); err != nil {
		return err
	}
	if e.sales == nil {
		return nil
	}
	for _, d := range dates {
		for _, s := range e.sales.SalesOn(d) {
			if err := xl.WriteRow([]any{d.BR(), s.Client, s.Product, money(s.Value), yesNo(s.Paid)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummary(xl ExcelWriter, s ledger.Summary) error {
	if err := xl.AddSheet("Resumo"); err != nil {
		return err
	}
	if err := xl.WriteHeader([]string{"Item", "Valor"}); err != nil {
		return err
	}
	rows := [][]any{
		{"Atendimentos", s.Attendance},
		{"Serviços pagos", money(s.BookingsPaid)},
		{"Serviços pendentes", money(s.BookingsPending)},
		{"Vendas pagas", money(s.SalesPaid)},
		{"Vendas pendentes", money(s.SalesPending)},
		{"Total pago", money(s.TotalPaid)},
		{"Total pendente", money(s.TotalPending)},
		{"Total", money(s.Total)},
	}
	for _, c := range s.TopServices(0) {
		rows = append(rows, []any{"Serviço: " + c.Name, c.Count})
	}
	for _, c := range s.TopProducts(0) {
		rows = append(rows, []any{"Produto: " + c.Name, c.Count})
	}
	for _, r := range rows {
		if err := xl.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}
