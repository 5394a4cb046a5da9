package export

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"workit/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah formats an amount the way id-ID locales print money:
// "Rp 1.500.000", "Rp 1.500,5". Fractions beyond two digits are rounded.
func FormatRupiah(d decimal.Decimal) string {
	return "Rp " + FormatNumber(d)
}

// FormatNumber groups thousands with '.' and uses ',' as decimal separator.
func FormatNumber(d decimal.Decimal) string {
	return idPrinter.Sprintf("%v", number.Decimal(d.Round(2).InexactFloat64(), number.MaxFractionDigits(2)))
}

// FormatDate renders t as an id-ID short date (day/month/year, unpadded).
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2/1/2006")
}

func formatDeadline(deadline string) string {
	deadline = strings.TrimSpace(deadline)
	if deadline == "" {
		return "-"
	}
	t, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return deadline
	}
	return FormatDate(t)
}

var unsafeFileChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)

// SafeFileName replaces characters that are unsafe in a file name with '_'.
func SafeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// InvoiceFileName is the download name of a project's invoice.
func InvoiceFileName(p *models.Project) string {
	return SafeFileName(fmt.Sprintf("Invoice-%s-%s.pdf", p.ClientName, p.ProjectTitle))
}

// InvoiceLine is one priced feature row.
type InvoiceLine struct {
	Name  string
	Price string
}

// InvoiceData is the view model of the invoice template.
type InvoiceData struct {
	ClientName     string
	ProjectTitle   string
	Deadline       string
	Created        string
	Generated      string
	Paid           bool
	Hourly         bool
	Features       []InvoiceLine
	HourlyRate     string
	EstimatedHours string
	Total          string
}

// NewInvoiceData prepares a project for the invoice template.
func NewInvoiceData(p *models.Project, now time.Time) InvoiceData {
	data := InvoiceData{
		ClientName:   p.ClientName,
		ProjectTitle: p.ProjectTitle,
		Deadline:     formatDeadline(p.Deadline),
		Created:      FormatDate(p.CreatedAt),
		Generated:    FormatDate(now),
		Paid:         p.IsPaid,
		Hourly:       p.RateType == models.RateHourly,
		Total:        FormatRupiah(p.TotalAmount),
	}
	if data.Hourly {
		data.HourlyRate = FormatRupiah(p.HourlyRate)
		data.EstimatedHours = FormatNumber(p.EstimatedHours)
		return data
	}
	for _, f := range p.Features {
		data.Features = append(data.Features, InvoiceLine{Name: f.Name, Price: FormatRupiah(f.Price)})
	}
	return data
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice {{.ClientName}} - {{.ProjectTitle}}</title>
<style>
body { margin: 0; background: #ffffff; }
.invoice { padding: 20px; font-family: Arial, sans-serif; max-width: 800px; color: #111827; }
.head { text-align: center; margin-bottom: 20px; }
.head h1 { color: #3B82F6; margin-bottom: 5px; }
.muted { color: #6B7280; }
.split { display: flex; justify-content: space-between; margin-bottom: 30px; }
h3 { margin-bottom: 10px; color: #374151; }
.badge { color: #ffffff; padding: 5px 10px; border-radius: 20px; display: inline-block; }
.paid { background-color: #10B981; }
.pending { background-color: #F59E0B; }
.total { margin-top: 10px; font-size: 18px; font-weight: bold; }
.section h3 { border-bottom: 2px solid #E5E7EB; padding-bottom: 10px; }
table { width: 100%; border-collapse: collapse; margin-top: 15px; }
th { background-color: #F9FAFB; padding: 12px; border-bottom: 1px solid #E5E7EB; text-align: left; }
td { padding: 12px; border-bottom: 1px solid #E5E7EB; }
.num { text-align: right; }
.foot { margin-top: 40px; padding-top: 20px; border-top: 1px solid #E5E7EB; text-align: center; }
</style>
</head>
<body>
<div class="invoice">
  <div class="head">
    <h1>WorkIt! Invoice</h1>
    <p class="muted">Freelance Project Management</p>
  </div>
  <div class="split">
    <div>
      <h3>Project Details</h3>
      <p><strong>Client:</strong> {{.ClientName}}</p>
      <p><strong>Project:</strong> {{.ProjectTitle}}</p>
      <p><strong>Deadline:</strong> {{.Deadline}}</p>
      <p><strong>Created:</strong> {{.Created}}</p>
    </div>
    <div class="num">
      <h3>Payment Status</h3>
      {{if .Paid}}<p class="badge paid">PAID</p>{{else}}<p class="badge pending">PENDING</p>{{end}}
      <p class="total">Total: {{.Total}}</p>
    </div>
  </div>
  <div class="section">
  {{if .Hourly}}
    <h3>Work Details</h3>
    <p><strong>Hourly Rate:</strong> {{.HourlyRate}}</p>
    <p><strong>Estimated Hours:</strong> {{.EstimatedHours}} hours</p>
    <p><strong>Total Amount:</strong> {{.Total}}</p>
  {{else}}
    <h3>Project Features</h3>
    <table>
      <thead><tr><th>Feature</th><th class="num">Price</th></tr></thead>
      <tbody>
      {{range .Features}}<tr><td>{{.Name}}</td><td class="num">{{.Price}}</td></tr>
      {{end}}</tbody>
      <tfoot><tr><td class="num" colspan="2"><strong>Total: {{.Total}}</strong></td></tr></tfoot>
    </table>
  {{end}}
  </div>
  <div class="foot muted">
    <p>Thank you for your business!</p>
    <p>Generated on {{.Generated}}</p>
  </div>
</div>
</body>
</html>
`))

// RenderInvoiceHTML renders the invoice document for a project.
func RenderInvoiceHTML(p *models.Project, now time.Time) (string, error) {
	if p == nil {
		return "", NewRenderError(ErrCodeInvalidInput, "project is required", nil)
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, NewInvoiceData(p, now)); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "invoice template failed", err)
	}
	return buf.String(), nil
}
