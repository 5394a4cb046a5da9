package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/png" // PNG screenshots are decoded for their dimensions.
	"log/slog"
	"strings"
	"time"

	"workit/internal/middleware"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	defaultRenderTimeout = 30 * time.Second
	// DeviceScale is the bitmap density of invoice screenshots.
	DeviceScale = 2.0
	// A4WidthInches is the page width of generated invoices.
	A4WidthInches = 210 / 25.4

	viewportWidth  = 840
	viewportHeight = 600
)

// ChromedpConfig configures the headless Chrome renderer.
type ChromedpConfig struct {
	// RemoteURL points at an already running Chrome's DevTools endpoint.
	// Empty launches a local headless browser.
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
	Scale     float64
}

// ChromedpRenderer rasterizes HTML in headless Chrome and prints the bitmap
// into a PDF.
type ChromedpRenderer struct {
	config      ChromedpConfig
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)

// NewChromedpRenderer prepares a browser allocator. The browser itself starts
// on the first render.
func NewChromedpRenderer(cfg ChromedpConfig) *ChromedpRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRenderTimeout
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DeviceScale
	}

	r := &ChromedpRenderer{config: cfg}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// RenderPDF screenshots the full page at the configured device scale, then
// prints that bitmap as one A4-wide page whose height follows the bitmap's
// aspect ratio.
func (r *ChromedpRenderer) RenderPDF(ctx context.Context, html string) (*RenderResult, error) {
	if strings.TrimSpace(html) == "" {
		return nil, NewRenderError(ErrCodeInvalidInput, "HTML content is empty", nil)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			middleware.Logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// Tie the browser tab to the caller's deadline.
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var shot []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(viewportWidth, viewportHeight, chromedp.EmulateScale(r.config.Scale)),
		chromedp.Navigate("about:blank"),
		setDocument(html),
		chromedp.FullScreenshot(&shot, 100),
	)
	if err != nil {
		return nil, r.wrapRunError(ctx, "screenshot", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(shot))
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "screenshot is not a valid PNG", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "screenshot is empty", nil)
	}

	widthIn, heightIn := PageSize(cfg.Width, cfg.Height)
	var (
		pdf    []byte
		loaded bool
	)
	err = chromedp.Run(browserCtx,
		setDocument(imagePageHTML(shot)),
		chromedp.Poll(`document.images.length > 0 && document.images[0].complete`, &loaded),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(widthIn).
				WithPaperHeight(heightIn).
				WithMarginTop(0).
				WithMarginRight(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, r.wrapRunError(ctx, "print", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	return &RenderResult{
		PDF:      pdf,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Duration: time.Since(start),
	}, nil
}

func (r *ChromedpRenderer) wrapRunError(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewRenderError(ErrCodeRenderTimeout,
			fmt.Sprintf("invoice %s timed out after %v", stage, r.config.Timeout), err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return NewRenderError(ErrCodeRenderTimeout, "invoice render was cancelled", err)
	}
	middleware.Logger.Error("chromedp render failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return NewRenderError(ErrCodeRenderFailed, "chromedp "+stage+" failed", err)
}

// Close shuts the browser allocator down.
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func setDocument(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// PageSize returns the paper size in inches for a bitmap of the given pixel
// dimensions: A4 width, height scaled by the aspect ratio.
func PageSize(widthPx, heightPx int) (widthIn, heightIn float64) {
	if widthPx <= 0 || heightPx <= 0 {
		return A4WidthInches, A4WidthInches
	}
	return A4WidthInches, A4WidthInches * float64(heightPx) / float64(widthPx)
}

func imagePageHTML(png []byte) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><style>`)
	b.WriteString(`@page{margin:0}html,body{margin:0;padding:0}img{display:block;width:100%;height:auto}`)
	b.WriteString(`</style></head><body><img alt="" src="data:image/png;base64,`)
	b.WriteString(base64.StdEncoding.EncodeToString(png))
	b.WriteString(`"></body></html>`)
	return b.String()
}
