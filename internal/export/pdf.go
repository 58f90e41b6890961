package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// percentEncodeForDataURL encodes the report HTML for embedding in a
// data URL. url.QueryEscape is unusable here: it turns spaces into +,
// which data URLs read literally.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			// RFC 3986 unreserved set
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range string(r) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}

// exportPDF renders the board report HTML to PDF through headless Chrome.
func exportPDF(html string, title string) (*Result, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Flags for running Chrome headless inside the API container.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var pdfData []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// Letter paper so column headers land where the report
			// stylesheet expects them.
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11.0).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("chrome pdf generation failed: %w", err)
	}

	return &Result{
		Data:     pdfData,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

// sanitizeFilename derives a download filename from the board name:
// spaces become hyphens, anything outside [A-Za-z0-9-_] is dropped, and
// the result is capped at 50 characters.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "board"
	}
	return result
}
