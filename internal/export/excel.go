package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"playcourt/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Store is the subset of the persistence layer the exporter reads from.
type Store interface {
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	BookingsByCourtRange(ctx context.Context, courtID int64, from, to time.Time) ([]*models.Booking, error)
	GetWalletByUser(ctx context.Context, userID int64) (*models.Wallet, error)
	TransactionHistory(ctx context.Context, userID int64, page, pageSize int) ([]*models.Transaction, error)
}

// Excel renders booking schedules and wallet ledgers as xlsx workbooks.
// When dir is non-empty every export is also archived there.
type Excel struct {
	store  Store
	dir    string
	logger zerolog.Logger
}

func NewExcel(store Store, dir string, logger *zerolog.Logger) *Excel {
	return &Excel{
		store:  store,
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// archive keeps a copy on disk. Failures are logged, never fatal: the
// caller already has the workbook.
func (e *Excel) archive(f *excelize.File, name string) {
	if e.dir == "" {
		return
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		e.logger.Warn().Err(err).Str("dir", e.dir).Msg("create export directory failed")
		return
	}
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("archive export failed")
		return
	}
	e.logger.Info().Str("path", path).Msg("export archived")
}

// WriteBookingSchedule writes one row per booking on the court whose slot
// starts inside [from, to).
func (e *Excel) WriteBookingSchedule(ctx context.Context, w io.Writer, courtID int64, from, to time.Time) error {
	court, err := e.store.GetCourt(ctx, courtID)
	if err != nil {
		return fmt.Errorf("load court: %w", err)
	}
	bookings, err := e.store.BookingsByCourtRange(ctx, courtID, from, to)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Schedule"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	title := fmt.Sprintf("%s: %s to %s", court.Name, from.Format("2006-01-02"), to.Format("2006-01-02"))
	_ = f.SetCellValue(sheet, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(7)
	_ = f.MergeCell(sheet, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	writeHeaderRow(f, sheet, 2, []string{"Booking", "User", "Slot start", "Slot end", "Status", "Price", "Paid"})

	row := 3
	for _, b := range bookings {
		setRow(f, sheet, row,
			b.ID,
			b.UserID,
			b.SlotStart.Format("2006-01-02 15:04"),
			b.SlotEnd.Format("2006-01-02 15:04"),
			b.Status,
			b.PriceLocked,
			b.AmountPaid,
		)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "G", 18)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	e.archive(f, fmt.Sprintf("schedule_court%d_%s.xlsx", courtID, from.Format("2006-01-02")))
	e.logger.Info().Int64("court_id", courtID).Int("bookings", len(bookings)).Msg("schedule exported")
	return nil
}

// ledgerPageSize bounds each history fetch while paging the full ledger.
const ledgerPageSize = 500

// WriteLedger writes the user's full transaction history plus the current
// balance.
func (e *Excel) WriteLedger(ctx context.Context, w io.Writer, userID int64) error {
	wallet, err := e.store.GetWalletByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	var txs []*models.Transaction
	for page := 1; ; page++ {
		batch, err := e.store.TransactionHistory(ctx, userID, page, ledgerPageSize)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		txs = append(txs, batch...)
		if len(batch) < ledgerPageSize {
			break
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Ledger"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("User %d, balance %.2f", userID, wallet.Balance))
	lastCol, _ := excelize.ColumnNumberToName(6)
	_ = f.MergeCell(sheet, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	writeHeaderRow(f, sheet, 2, []string{"When", "Type", "Amount", "Balance after", "Description", "Reference"})

	row := 3
	for _, tx := range txs {
		setRow(f, sheet, row,
			tx.CreatedAt.Format("2006-01-02 15:04:05"),
			tx.Type,
			tx.Amount,
			tx.BalanceAfter,
			tx.Description,
			tx.ReferenceID,
		)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "F", 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	e.archive(f, fmt.Sprintf("ledger_user%d.xlsx", userID))
	e.logger.Info().Int64("user_id", userID).Int("transactions", len(txs)).Msg("ledger exported")
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, row int, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
