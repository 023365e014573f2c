// Package export writes a user's expense history to a spreadsheet file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrxmium/expense-bot/internal/application/port"
	"github.com/chrxmium/expense-bot/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var headers = []string{"Date", "Description", "Category", "Price", "Currency"}

// Service implements port.Exporter, producing CSV or XLSX files.
type Service struct {
	expenses  port.ExpenseRepository
	outputDir string
	format    string
	logger    *zap.Logger
}

// NewService creates an export service. format is "csv" or "xlsx".
func NewService(expenses port.ExpenseRepository, outputDir, format string, logger *zap.Logger) *Service {
	return &Service{
		expenses:  expenses,
		outputDir: outputDir,
		format:    format,
		logger:    logger,
	}
}

// Export writes every expense the user owns to a file named after the
// label and returns its path, or an empty path when there is nothing to
// export. The caller owns the file and removes it after sending.
func (s *Service) Export(ctx context.Context, userID, label string) (string, error) {
	expenses, err := s.expenses.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load expenses: %w", err)
	}
	if len(expenses) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(s.outputDir, fmt.Sprintf("%s_expenses.%s", label, s.format))
	switch s.format {
	case "xlsx":
		err = writeXLSX(path, expenses)
	default:
		err = writeCSV(path, expenses)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("Exported expenses",
		zap.String("user_id", userID),
		zap.String("path", path),
		zap.Int("count", len(expenses)))
	return path, nil
}

func writeCSV(path string, expenses []*entity.Expense) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range expenses {
		record := []string{
			e.Date.Format(entity.DateLayout),
			e.Description,
			e.Category,
			entity.FormatAmount(e.Amount),
			e.Currency,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(path string, expenses []*entity.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Expenses"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, e := range expenses {
		values := []interface{}{
			e.Date.Format(entity.DateLayout),
			e.Description,
			e.Category,
			entity.FormatAmount(e.Amount),
			e.Currency,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

var _ port.Exporter = (*Service)(nil)
