package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

const sheetName = "Movements"

var header = []string{
	"Movement ID", "Recorded At", "Shelf", "Product", "Type", "Direction",
	"Quantity", "Before", "After", "Order", "Route", "Source Shelf", "Target Shelf",
	"Reference", "User", "Notes",
}

// XLSXExporter renders ledger rows as a single-sheet workbook
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) FileExtension() string {
	return "xlsx"
}

func (e *XLSXExporter) Export(w io.Writer, movements []*domain.StockMovement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := writeRow(f, 1, toCells(header)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, m := range movements {
		row := []interface{}{
			m.ID,
			m.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			m.ShelfID,
			m.ProductID,
			string(m.Type),
			string(m.Direction),
			m.Quantity,
			m.QuantityBefore,
			m.QuantityAfter,
			m.OrderID,
			m.RouteID,
			m.SourceShelfID,
			m.TargetShelfID,
			m.ReferenceNumber,
			m.UserID,
			m.Notes,
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "B", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
