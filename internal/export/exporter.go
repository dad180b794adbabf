package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"media-resolver/pkg/models"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// ExportConfig holds configuration for history export
type ExportConfig struct {
	Format     ExportFormat
	FilePath   string
	DateFormat string
}

// HistoryExporter writes resolution history to different formats
type HistoryExporter struct {
	config ExportConfig
}

// NewHistoryExporter creates a new history exporter
func NewHistoryExporter(config ExportConfig) *HistoryExporter {
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}
	return &HistoryExporter{config: config}
}

var historyColumns = []string{
	"ID", "URL", "Platform", "Format", "Status", "Failure Class",
	"Provider", "Download URL", "Filename", "File Size", "Duration (ms)", "Created At",
}

// Export writes the records to the configured format
func (he *HistoryExporter) Export(records []*models.ResolutionRecord) error {
	if err := os.MkdirAll(filepath.Dir(he.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch he.config.Format {
	case FormatCSV:
		return he.exportToCSV(records)
	case FormatXLSX:
		return he.exportToXLSX(records)
	case FormatJSON:
		return he.exportToJSON(records)
	default:
		return fmt.Errorf("unsupported export format: %s", he.config.Format)
	}
}

// recordToRow converts a record to a string row
func (he *HistoryExporter) recordToRow(rec *models.ResolutionRecord) []string {
	return []string{
		rec.ID,
		rec.URL,
		string(rec.Platform),
		string(rec.Format),
		rec.Status,
		string(rec.FailureClass),
		rec.Provider,
		rec.DownloadURL,
		rec.Filename,
		rec.FileSize,
		fmt.Sprintf("%d", rec.Duration),
		rec.CreatedAt.Format(he.config.DateFormat),
	}
}

// exportToCSV exports records to CSV format
func (he *HistoryExporter) exportToCSV(records []*models.ResolutionRecord) error {
	file, err := os.Create(he.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(historyColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		if err := writer.Write(he.recordToRow(rec)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// exportToXLSX exports records to Excel format
func (he *HistoryExporter) exportToXLSX(records []*models.ResolutionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Resolutions"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range historyColumns {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	columnWidths := map[string]float64{
		"A": 36, // ID
		"B": 60, // URL
		"C": 12, // Platform
		"D": 10, // Format
		"E": 10, // Status
		"F": 20, // Failure Class
		"G": 12, // Provider
		"H": 60, // Download URL
		"I": 40, // Filename
		"J": 12, // File Size
		"K": 14, // Duration
		"L": 20, // Created At
	}
	for col, width := range columnWidths {
		f.SetColWidth(sheetName, col, col, width)
	}

	for i, rec := range records {
		for j, value := range he.recordToRow(rec) {
			cell := fmt.Sprintf("%c%d", 'A'+j, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	endRange := fmt.Sprintf("%c%d", 'A'+len(historyColumns)-1, len(records)+1)
	f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{})

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true,
		YSplit: 1,
	})

	if err := f.SaveAs(he.config.FilePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}

	return nil
}

// exportToJSON exports records to JSON format
func (he *HistoryExporter) exportToJSON(records []*models.ResolutionRecord) error {
	exportData := struct {
		ExportedAt time.Time                  `json:"exported_at"`
		Count      int                        `json:"count"`
		Records    []*models.ResolutionRecord `json:"records"`
	}{
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(he.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}
