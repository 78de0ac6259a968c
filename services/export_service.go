package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"

	"github.com/marangon/faultlog/config"
	"github.com/marangon/faultlog/errors"
	"github.com/marangon/faultlog/models"
)

const (
	pdfLeftMargin  = 40.0
	pdfRightEdge   = 555.0
	pdfTopMargin   = 60.0
	pdfBreakAt     = 700.0
	pdfPhotoSize   = 100.0
	pdfPhotoStride = 112.0
	pdfGridColumns = 4

	xlsxSheet     = "Reports"
	xlsxRowHeight = 80.0
	thumbnailPx   = 160
)

type ExportService interface {
	// Generate serializes the reports matching the filter into an artifact
	// of the requested format. Listing goes through the same filter code
	// path the UI uses, so export and on-screen filtering cannot diverge.
	Generate(format models.ExportFormat, filter models.ReportFilter) (*models.Artifact, error)
}

type exportService struct {
	Config  *config.Config
	reports ReportService
	media   MediaService
}

func NewExportService(reports ReportService, media MediaService, conf *config.Config) ExportService {
	return &exportService{Config: conf, reports: reports, media: media}
}

func (e *exportService) Generate(format models.ExportFormat, filter models.ReportFilter) (*models.Artifact, error) {
	if !format.IsValid() {
		return nil, errors.ErrBadRequest
	}
	pool := e.reports.List(filter)

	var data []byte
	var err error
	switch format {
	case models.ExportFormatCSV:
		data, err = e.generateCSV(pool)
	case models.ExportFormatJSON:
		data, err = e.generateJSON(pool)
	case models.ExportFormatXLSX:
		data, err = e.generateXLSX(pool)
	case models.ExportFormatPDF:
		data, err = e.generatePDF(pool, filter)
	}
	if err != nil {
		return nil, err
	}

	return &models.Artifact{
		Filename:    exportFilename(filter, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// exportFilename encodes the active site and status filter, e.g.
// export_all.csv or export_Villacidro_1_completed.pdf.
func exportFilename(filter models.ReportFilter, format models.ExportFormat) string {
	site := filter.Site
	if site == "" || site == models.FilterAll {
		site = "all"
	}
	name := "export_" + strings.ReplaceAll(site, " ", "_")
	if filter.Status != "" && filter.Status != models.FilterAll {
		name += "_" + filter.Status
	}
	return name + "." + format.FileExtension()
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func toExportRow(r *models.Report, withCoordinates bool) models.ExportRow {
	row := models.ExportRow{
		Site:           r.Site,
		Comment:        r.Comment,
		CreatedAt:      formatTime(r.CreatedAt),
		Status:         string(r.Status),
		ClosingComment: r.ClosingComment,
	}
	if r.CompletedAt != nil {
		row.CompletedAt = formatTime(*r.CompletedAt)
	}
	if withCoordinates {
		if lat, lng, ok := r.Coordinates(); ok {
			row.Latitude = models.FormatCoordinate(lat)
			row.Longitude = models.FormatCoordinate(lng)
		}
	}
	return row
}

func (e *exportService) generateCSV(pool []models.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"site", "comment", "created_at", "status", "closing_comment", "completed_at", "latitude", "longitude"}); err != nil {
		return nil, err
	}
	for i := range pool {
		row := toExportRow(&pool[i], true)
		record := []string{row.Site, row.Comment, row.CreatedAt, row.Status, row.ClosingComment, row.CompletedAt, row.Latitude, row.Longitude}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exportService) generateJSON(pool []models.Report) ([]byte, error) {
	rows := make([]models.ExportRow, 0, len(pool))
	for i := range pool {
		rows = append(rows, toExportRow(&pool[i], false))
	}
	return json.MarshalIndent(rows, "", "  ")
}

// generateXLSX writes one header row plus one row per report, embedding
// the first report photo (column F) and the first closing photo (column G)
// as thumbnails anchored to the row.
func (e *exportService) generateXLSX(pool []models.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		log.Printf("export: unable to prepare worksheet: %v", err)
		return nil, errors.ErrExportDependency
	}

	widths := []struct {
		col   string
		width float64
	}{
		{"A", 20}, {"B", 40}, {"C", 20}, {"D", 12}, {"E", 40}, {"F", 18}, {"G", 18},
	}
	for _, w := range widths {
		if err := f.SetColWidth(xlsxSheet, w.col, w.col, w.width); err != nil {
			return nil, err
		}
	}

	headers := []string{"Site", "Comment", "Created", "Status", "Closing comment", "Photo", "Closing photo"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i := range pool {
		r := &pool[i]
		rowIndex := i + 2
		row := toExportRow(r, false)
		values := []interface{}{row.Site, row.Comment, row.CreatedAt, row.Status, row.ClosingComment}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIndex)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return nil, err
			}
		}
		if err := f.SetRowHeight(xlsxSheet, rowIndex, xlsxRowHeight); err != nil {
			return nil, err
		}

		if len(r.Photos) > 0 {
			e.anchorPicture(f, fmt.Sprintf("F%d", rowIndex), r.Photos[0])
		}
		if len(r.ClosingPhotos) > 0 {
			e.anchorPicture(f, fmt.Sprintf("G%d", rowIndex), r.ClosingPhotos[0])
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		log.Printf("export: xlsx writer failed: %v", err)
		return nil, errors.ErrExportDependency
	}
	return buf.Bytes(), nil
}

// anchorPicture embeds a photo thumbnail at the given cell. Decode
// failures skip the image; they never abort the export.
func (e *exportService) anchorPicture(f *excelize.File, cell string, photo models.Photo) {
	thumb, err := e.photoThumbnail(photo)
	if err != nil {
		log.Printf("export: skipping photo %q: %v", photo.Filename, err)
		return
	}
	pic := &excelize.Picture{
		Extension: ".jpg",
		File:      thumb,
		Format:    &excelize.GraphicOptions{AutoFit: true, OffsetX: 2, OffsetY: 2},
	}
	if err := f.AddPictureFromBytes(xlsxSheet, cell, pic); err != nil {
		log.Printf("export: unable to anchor photo %q: %v", photo.Filename, err)
	}
}

// photoThumbnail resolves a stored photo into JPEG thumbnail bytes,
// running the ordered codec attempts (jpeg, then png) on the payload.
func (e *exportService) photoThumbnail(photo models.Photo) ([]byte, error) {
	raw, err := DecodeDataURL(photo.DataURL)
	if err != nil {
		return nil, err
	}
	return e.media.Thumbnail(raw, thumbnailPx)
}

func (e *exportService) generatePDF(pool []models.Report, filter models.ReportFilter) ([]byte, error) {
	siteLabel := filter.Site
	if siteLabel == "" || siteLabel == models.FilterAll {
		siteLabel = "all sites"
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Title block.
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(pdfLeftMargin, 40, "Construction Fault - Report")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(pdfLeftMargin, 58, "Site: "+siteLabel)
	pdf.Text(pdfLeftMargin, 72, "Generated: "+formatTime(time.Now()))

	y := e.summaryTable(pdf, pool, 90)
	y += 30

	for i := range pool {
		y = e.reportBlock(pdf, &pool[i], i, y)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		log.Printf("export: pdf writer failed: %v", err)
		return nil, errors.ErrExportDependency
	}
	return buf.Bytes(), nil
}

// summaryTable renders the green overview grid, one row per report, and
// returns the y cursor below it.
func (e *exportService) summaryTable(pdf *fpdf.Fpdf, pool []models.Report, startY float64) float64 {
	headers := []string{"Site", "Comment", "Created", "Status", "Closing", "Completed"}
	widths := []float64{70, 135, 85, 55, 85, 85}
	const rowHeight = 14.0

	pdf.SetXY(pdfLeftMargin, startY)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(46, 204, 113)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(rowHeight)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	y := startY + rowHeight
	for i := range pool {
		if y+rowHeight > pdfBreakAt {
			pdf.AddPage()
			y = pdfTopMargin
		}
		row := toExportRow(&pool[i], false)
		completed := row.CompletedAt
		if completed == "" {
			completed = "-"
		}
		cells := []string{row.Site, row.Comment, row.CreatedAt, row.Status, row.ClosingComment, completed}
		pdf.SetXY(pdfLeftMargin, y)
		for j, c := range cells {
			pdf.CellFormat(widths[j], rowHeight, truncate(c, 28), "1", 0, "L", false, 0, "")
		}
		y += rowHeight
	}
	return y
}

// reportBlock renders one per-report detail block (banner, metadata, QR
// map link, photo grids, divider) and returns the new y cursor.
func (e *exportService) reportBlock(pdf *fpdf.Fpdf, r *models.Report, index int, y float64) float64 {
	y = e.ensureRoom(pdf, y, 120)

	// Status banner, colored by lifecycle state.
	if r.IsCompleted() {
		pdf.SetFillColor(34, 197, 94)
	} else {
		pdf.SetFillColor(249, 115, 22)
	}
	pdf.Rect(pdfLeftMargin, y, pdfRightEdge-pdfLeftMargin, 18, "F")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(255, 255, 255)
	pdf.Text(pdfLeftMargin+6, y+13, strings.ToUpper(string(r.Status))+" - "+r.Site)
	pdf.SetTextColor(0, 0, 0)
	y += 28

	pdf.SetFont("Helvetica", "", 10)
	lines := []string{
		"Comment: " + orDash(r.Comment),
		"Created: " + formatTime(r.CreatedAt),
	}
	if r.CompletedAt != nil {
		lines = append(lines, "Completed: "+formatTime(*r.CompletedAt))
	}
	if r.ClosingComment != "" {
		lines = append(lines, "Closing: "+r.ClosingComment)
	}
	for _, line := range lines {
		pdf.Text(pdfLeftMargin, y, line)
		y += 12
	}

	if lat, lng, ok := r.Coordinates(); ok {
		y = e.mapLinkBlock(pdf, r, index, lat, lng, y)
	}
	y += 6

	if len(r.Photos) > 0 {
		y = e.ensureRoom(pdf, y, pdfPhotoStride+20)
		pdf.Text(pdfLeftMargin, y, "Report photos:")
		y += 8
		y = e.photoGrid(pdf, r.Photos, fmt.Sprintf("r%d", index), y)
	}
	if len(r.ClosingPhotos) > 0 {
		y = e.ensureRoom(pdf, y, pdfPhotoStride+20)
		pdf.Text(pdfLeftMargin, y, "Closing photos:")
		y += 8
		y = e.photoGrid(pdf, r.ClosingPhotos, fmt.Sprintf("c%d", index), y)
	}

	y = e.ensureRoom(pdf, y, 20)
	pdf.SetDrawColor(180, 180, 180)
	pdf.SetLineWidth(0.5)
	pdf.Line(pdfLeftMargin, y, pdfRightEdge, y)
	return y + 20
}

// mapLinkBlock prints the coordinates as text and a QR code encoding the
// map-link URL built from them.
func (e *exportService) mapLinkBlock(pdf *fpdf.Fpdf, r *models.Report, index int, lat, lng float64, y float64) float64 {
	coords := models.FormatCoordinate(lat) + "," + models.FormatCoordinate(lng)
	pdf.Text(pdfLeftMargin, y, "Location: "+coords)
	y += 6

	link := fmt.Sprintf("%s?q=%s", e.Config.MapLinkBase, coords)
	png, err := qrcode.Encode(link, qrcode.Medium, 110)
	if err != nil {
		log.Printf("export: unable to encode map link QR for report %s: %v", r.ID, err)
		return y + 6
	}

	y = e.ensureRoom(pdf, y, 80)
	name := fmt.Sprintf("qr-%d", index)
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions(name, pdfLeftMargin, y, 70, 70, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return y + 76
}

// photoGrid lays thumbnails out in fixed-size cells, wrapping to a new
// row after pdfGridColumns images and breaking pages as needed. Photos
// that cannot be decoded are skipped.
func (e *exportService) photoGrid(pdf *fpdf.Fpdf, photos []models.Photo, prefix string, y float64) float64 {
	x := pdfLeftMargin
	col := 0
	placed := 0
	for i, p := range photos {
		thumb, err := e.photoThumbnail(p)
		if err != nil {
			log.Printf("export: skipping photo %q: %v", p.Filename, err)
			continue
		}
		if y+pdfPhotoSize > pdfBreakAt {
			pdf.AddPage()
			y = pdfTopMargin
			x = pdfLeftMargin
			col = 0
		}
		name := fmt.Sprintf("%s-%d", prefix, i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPEG"}, bytes.NewReader(thumb))
		pdf.ImageOptions(name, x, y, pdfPhotoSize, pdfPhotoSize, false, fpdf.ImageOptions{ImageType: "JPEG"}, 0, "")
		placed++
		col++
		x += pdfPhotoStride
		if col == pdfGridColumns {
			col = 0
			x = pdfLeftMargin
			y += pdfPhotoStride
		}
	}
	if placed == 0 {
		return y + 10
	}
	if col != 0 {
		y += pdfPhotoStride
	}
	return y + 10
}

func (e *exportService) ensureRoom(pdf *fpdf.Fpdf, y, need float64) float64 {
	if y+need > pdfBreakAt {
		pdf.AddPage()
		return pdfTopMargin
	}
	return y
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
