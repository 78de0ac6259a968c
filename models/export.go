package models

// ExportFormat selects the artifact type produced by the export engine.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

func (f ExportFormat) String() string {
	return string(f)
}

func (f ExportFormat) IsValid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatXLSX, ExportFormatPDF:
		return true
	}
	return false
}

func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatJSON:
		return "application/json"
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func (f ExportFormat) FileExtension() string {
	return string(f)
}

// Artifact is a named, downloadable export result. The caller is
// responsible for presenting it to the user.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportRow is the flat per-report shape shared by the CSV and JSON
// serializers and the PDF summary table.
type ExportRow struct {
	Site           string `json:"site"`
	Comment        string `json:"comment"`
	CreatedAt      string `json:"created_at"`
	Status         string `json:"status"`
	ClosingComment string `json:"closing_comment"`
	CompletedAt    string `json:"completed_at"`
	Latitude       string `json:"latitude,omitempty"`
	Longitude      string `json:"longitude,omitempty"`
}
