package sales

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	dailySheet   = "Daily"
	itemsSheet   = "Top Items"
)

// Export streams the sales report as an XLSX workbook
func (h *Handler) Export(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}

	f, err := buildWorkbook(report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build sales workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export sales report"})
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("sales_%s_%s.xlsx", report.StartDate, report.EndDate)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("Failed to write sales workbook")
	}
}

// columnWidth sets the width of a column range on one sheet.
type columnWidth struct {
	sheet      string
	start, end string
	width      float64
}

var columnWidths = []columnWidth{
	{summarySheet, "A", "A", 16},
	{dailySheet, "A", "C", 14},
	{itemsSheet, "A", "A", 24},
}

// buildWorkbook lays the report out over three sheets. The caller closes the
// returned file; on error it is already closed.
func buildWorkbook(report *Report) (f *excelize.File, err error) {
	f = excelize.NewFile()
	defer func() {
		if err == nil {
			return
		}
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close sales workbook")
		}
		f = nil
	}()

	if err = f.SetSheetName("Sheet1", summarySheet); err != nil {
		return f, err
	}

	summary := [][]interface{}{
		{"Start Date", report.StartDate},
		{"End Date", report.EndDate},
		{"Total Orders", report.TotalOrders},
		{"Total Revenue", report.TotalRevenue.InexactFloat64()},
	}
	if err = writeRows(f, summarySheet, summary); err != nil {
		return f, err
	}

	if _, err = f.NewSheet(dailySheet); err != nil {
		return f, err
	}
	daily := [][]interface{}{{"Date", "Orders", "Revenue"}}
	for _, d := range report.DailySales {
		daily = append(daily, []interface{}{d.Date, d.Orders, d.Revenue.InexactFloat64()})
	}
	if err = writeRows(f, dailySheet, daily); err != nil {
		return f, err
	}

	if _, err = f.NewSheet(itemsSheet); err != nil {
		return f, err
	}
	items := [][]interface{}{{"Item", "Quantity", "Revenue"}}
	for _, it := range report.TopItems {
		items = append(items, []interface{}{it.Name, it.Quantity, it.Revenue.InexactFloat64()})
	}
	if err = writeRows(f, itemsSheet, items); err != nil {
		return f, err
	}

	for _, w := range columnWidths {
		if err = f.SetColWidth(w.sheet, w.start, w.end, w.width); err != nil {
			return f, fmt.Errorf("failed to size %s columns: %w", w.sheet, err)
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
