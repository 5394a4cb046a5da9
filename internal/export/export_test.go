package export

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"workit/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1500000", "Rp 1.500.000"},
		{"0", "Rp 0"},
		{"999", "Rp 999"},
		{"1500.50", "Rp 1.500,5"},
		{"2750000.25", "Rp 2.750.000,25"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRupiah(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestInvoiceFileName(t *testing.T) {
	p := &models.Project{ClientName: "Acme/Corp", ProjectTitle: `Shop: "v2"?`}
	assert.Equal(t, "Invoice-Acme_Corp-Shop_ _v2__.pdf", InvoiceFileName(p))

	p = &models.Project{ClientName: "Budi", ProjectTitle: "Landing Page"}
	assert.Equal(t, "Invoice-Budi-Landing Page.pdf", InvoiceFileName(p))
}

func TestRenderInvoiceHTML_FeatureProject(t *testing.T) {
	p := &models.Project{
		ClientName:   "Acme <script>",
		ProjectTitle: "Shop",
		Deadline:     "2025-03-05",
		RateType:     models.RateFeature,
		Features: []models.Feature{
			{Name: "Cart", Price: decimal.NewFromInt(1000000)},
			{Name: "Checkout", Price: decimal.NewFromInt(500000)},
		},
		TotalAmount: decimal.NewFromInt(1500000),
		IsPaid:      true,
		CreatedAt:   time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
	}

	html, err := RenderInvoiceHTML(p, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, html, "WorkIt! Invoice")
	assert.Contains(t, html, "PAID")
	assert.NotContains(t, html, "PENDING")
	assert.Contains(t, html, "Project Features")
	assert.Contains(t, html, "Rp 1.000.000")
	assert.Contains(t, html, "Total: Rp 1.500.000")
	assert.Contains(t, html, "5/3/2025")
	assert.Contains(t, html, "9/1/2025")
	assert.Contains(t, html, "Generated on 1/4/2025")
	assert.Contains(t, html, "Thank you for your business!")
	assert.NotContains(t, html, "<script>", "client text is escaped")
}

func TestRenderInvoiceHTML_HourlyProject(t *testing.T) {
	p := &models.Project{
		ClientName:     "Budi",
		ProjectTitle:   "Retainer",
		RateType:       models.RateHourly,
		HourlyRate:     decimal.NewFromInt(150000),
		EstimatedHours: decimal.NewFromInt(12),
		TotalAmount:    decimal.NewFromInt(1800000),
	}
	html, err := RenderInvoiceHTML(p, time.Now())
	require.NoError(t, err)

	assert.Contains(t, html, "PENDING")
	assert.Contains(t, html, "Work Details")
	assert.Contains(t, html, "Rp 150.000")
	assert.Contains(t, html, "12 hours")
	assert.Contains(t, html, "<strong>Deadline:</strong> -")
	assert.NotContains(t, html, "Project Features")
}

func TestRenderInvoiceHTML_NilProject(t *testing.T) {
	_, err := RenderInvoiceHTML(nil, time.Now())
	assert.Equal(t, ErrCodeInvalidInput, RenderErrorCode(err))
}

func TestPageSize(t *testing.T) {
	w, h := PageSize(1600, 2400)
	assert.InDelta(t, 8.2677, w, 0.001)
	assert.InDelta(t, w*1.5, h, 0.001)

	w, h = PageSize(0, 10)
	assert.Equal(t, w, h)
}

func TestImagePageHTML(t *testing.T) {
	html := imagePageHTML([]byte{0x89, 'P', 'N', 'G'})
	assert.Contains(t, html, `src="data:image/png;base64,iVBORw==`)
	assert.Contains(t, html, "@page{margin:0}")
}

func TestChromedpRenderer_RejectsEmptyHTML(t *testing.T) {
	r := NewChromedpRenderer(ChromedpConfig{NoSandbox: true})
	defer r.Close()

	assert.Equal(t, DeviceScale, r.config.Scale)
	assert.Equal(t, defaultRenderTimeout, r.config.Timeout)

	_, err := r.RenderPDF(context.Background(), "   ")
	assert.Equal(t, ErrCodeInvalidInput, RenderErrorCode(err))
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := NewRenderError(ErrCodeRenderFailed, "print failed", cause)
	assert.EqualError(t, err, "print failed: boom")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "", RenderErrorCode(cause))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"hello world", "again"}, WrapText("hello world again", 11))
	assert.Equal(t, []string{"abcd", "efgh", "ij x"}, WrapText("abcdefghij x", 4))
	assert.Equal(t, []string{"one", "", "two"}, WrapText("one\n\ntwo\n", 10))
	assert.Empty(t, WrapText("   ", 10))
}

func TestRenderCard_Scales(t *testing.T) {
	data := CardData{Username: "alice", Avatar: "A", TimeAgo: "just now", Content: strings.Repeat("word ", 40)}

	base := RenderCard(data, 1)
	assert.Equal(t, CardWidth, base.Bounds().Dx())

	mobile := RenderCard(data, MobileScale)
	assert.Equal(t, 600, mobile.Bounds().Dx())
	assert.InDelta(t, float64(base.Bounds().Dy())*MobileScale, float64(mobile.Bounds().Dy()), 1)

	desktop := RenderCard(data, DesktopScale)
	assert.Equal(t, 800, desktop.Bounds().Dx())

	longer := RenderCard(CardData{Username: "alice", Content: strings.Repeat("word ", 200)}, 1)
	assert.Greater(t, longer.Bounds().Dy(), base.Bounds().Dy())
}

func TestEncodeImage(t *testing.T) {
	img := RenderCard(CardData{Username: "bob", Avatar: "B", Content: "hi"}, 1)

	raw, err := EncodeImage(img, FormatPNG)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	raw, err = EncodeImage(img, FormatWebP)
	require.NoError(t, err)
	require.Greater(t, len(raw), 12)
	assert.Equal(t, "RIFF", string(raw[:4]))
	assert.Equal(t, "WEBP", string(raw[8:12]))

	_, err = EncodeImage(img, ImageFormat("gif"))
	assert.Equal(t, ErrCodeInvalidInput, RenderErrorCode(err))
}

func TestNewCardData(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Post{
		Content:   "hello",
		CreatedAt: now.Add(-2 * time.Minute),
		User:      models.User{Username: "carol"},
	}
	assert.Equal(t, CardData{Username: "carol", Avatar: "C", TimeAgo: "2 minutes ago", Content: "hello"}, NewCardData(p, now))
}
