package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/username/kabutax/backend/src/models"
)

type reportServiceImpl struct{}

func NewReportService() ReportService {
	return &reportServiceImpl{}
}

// RenderReport lays out the per-year summary and the remaining holdings as a
// single-page A4 document.
func (s *reportServiceImpl) RenderReport(result *models.CalcResult, email string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Capital Gains Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Capital Gains Report (Moving-Average Cost)", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Prepared for: %s", email), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Symbol: %s    Currency: %s", result.Symbol, result.Currency), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Realized Gains by Tax Year", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(25, 7, "Year", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Sold Quantity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 7, "Proceeds (JPY)", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 7, "Realized Gain (JPY)", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, summary := range result.Summaries {
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", summary.Year), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.0f", summary.SellQuantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(55, 7, formatYen(summary.ProceedsJPY), "1", 0, "R", false, 0, "")
		pdf.CellFormat(55, 7, formatYen(summary.RealizedGainJPY), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Remaining Holdings", "", 1, "L", false, 0, "")

	if len(result.FinalHoldings) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, "No open positions at the end of the period.", "", 1, "L", false, 0, "")
	} else {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 7, "Purchase Date", "1", 0, "C", true, 0, "")
		pdf.CellFormat(40, 7, "Quantity", "1", 0, "C", true, 0, "")
		pdf.CellFormat(55, 7, "Unit Cost (JPY)", "1", 1, "C", true, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		for _, lot := range result.FinalHoldings {
			pdf.CellFormat(45, 7, lot.PurchaseDate, "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 7, fmt.Sprintf("%.0f", lot.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(55, 7, formatYen(lot.UnitCostJPY), "1", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "Cost basis follows the moving-average method. Proceeds are converted at the TTB rate and acquisition costs (including fees) at the TTS rate effective on each transaction date.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func formatYen(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}
