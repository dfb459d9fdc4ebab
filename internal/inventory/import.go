package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

type ImportHandler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewImportHandler(db *gorm.DB, logger *activitylog.Logger) *ImportHandler {
	return &ImportHandler{db: db, logger: logger}
}

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

// ImportRow is one parsed spreadsheet line. Line is the 1-based sheet row.
type ImportRow struct {
	Line      int
	Name      string
	Stock     *int
	Threshold *int
}

var (
	nameColumns      = []string{"name", "item", "menu item", "item name"}
	stockColumns     = []string{"stock", "stock quantity", "stock_quantity", "qty", "quantity"}
	thresholdColumns = []string{"threshold", "low stock threshold", "low_stock_threshold", "min stock"}
)

// ImportStock sets stock levels of existing menu items from an uploaded .xlsx or .csv
func (h *ImportHandler) ImportStock(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(fileName, ".xlsx"):
		rows, err = parseExcel(file)
	case strings.HasSuffix(fileName, ".csv"):
		rows, err = parseCSV(file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format. Please upload .xlsx or .csv"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to parse file: %v", err)})
		return
	}

	result := h.apply(c, rows)
	h.logger.LogActivity(c, "import", "inventory", "", map[string]interface{}{
		"file":    header.Filename,
		"success": result.SuccessCount,
		"failed":  result.FailedCount,
	})

	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) apply(c *gin.Context, rows []ImportRow) ImportResult {
	result := ImportResult{TotalRows: len(rows), Errors: []string{}}
	db := h.db.WithContext(c.Request.Context())
	now := time.Now()

	for _, row := range rows {
		if row.Name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: name is required", row.Line))
			result.FailedCount++
			continue
		}

		updates := map[string]interface{}{}
		if row.Stock != nil {
			updates["stock_quantity"] = *row.Stock
			updates["last_restocked"] = now
		}
		if row.Threshold != nil {
			updates["low_stock_threshold"] = *row.Threshold
		}
		if len(updates) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: no stock or threshold value for %s", row.Line, row.Name))
			result.FailedCount++
			continue
		}

		res := db.Model(&database.MenuItem{}).Where("name = ?", row.Name).Updates(updates)
		if res.Error != nil {
			log.Error().Err(res.Error).Str("name", row.Name).Msg("Failed to import stock row")
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: failed to update %s", row.Line, row.Name))
			result.FailedCount++
			continue
		}
		if res.RowsAffected == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: menu item %s not found", row.Line, row.Name))
			result.FailedCount++
			continue
		}
		result.SuccessCount++
	}
	return result
}

func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

func parseCSV(file io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return parseRecords(records)
}

// parseRecords maps a header row plus data rows onto ImportRows. Header
// names are matched case-insensitively against a few aliases.
func parseRecords(records [][]string) ([]ImportRow, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have header row and at least one data row")
	}

	colMap := make(map[string]int)
	for i, cell := range records[0] {
		colMap[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	nameIdx, ok := lookup(colMap, nameColumns)
	if !ok {
		return nil, fmt.Errorf("missing name column")
	}
	stockIdx, hasStock := lookup(colMap, stockColumns)
	thresholdIdx, hasThreshold := lookup(colMap, thresholdColumns)
	if !hasStock && !hasThreshold {
		return nil, fmt.Errorf("missing stock or threshold column")
	}

	var rows []ImportRow
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		row := ImportRow{Line: i + 2, Name: cell(record, nameIdx)}
		if hasStock {
			row.Stock = parseCount(cell(record, stockIdx))
		}
		if hasThreshold {
			row.Threshold = parseCount(cell(record, thresholdIdx))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func lookup(colMap map[string]int, aliases []string) (int, bool) {
	for _, alias := range aliases {
		if idx, ok := colMap[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

func cell(record []string, idx int) string {
	if idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseCount accepts non-negative whole numbers, including "12.0" as written by spreadsheets.
func parseCount(s string) *int {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	n := int(f)
	return &n
}

// DownloadTemplate generates a sample workbook for stock import
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	rows := [][]interface{}{
		{"Name", "Stock", "Threshold"},
		{"Masala Chai", 50, 10},
		{"Cold Coffee", 30, 5},
		{"Veg Sandwich", 20, 5},
	}
	for r, row := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, r+1)
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			log.Error().Err(err).Msg("Failed to build import template")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate template"})
			return
		}
	}
	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "C", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=stock_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("Failed to write import template")
	}
}
