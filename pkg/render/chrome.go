package render

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// ChromeRenderer prints HTML through a headless Chrome instance.
type ChromeRenderer struct {
	execPath string
}

// NewChrome resolves the browser binary once. An explicit path wins over the
// well-known names searched on PATH.
func NewChrome(path string) *ChromeRenderer {
	return &ChromeRenderer{execPath: resolveChrome(path)}
}

func resolveChrome(path string) string {
	if path != "" {
		if resolved, err := exec.LookPath(path); err == nil {
			return resolved
		}
		return ""
	}
	for _, name := range chromeCandidates {
		if resolved, err := exec.LookPath(name); err == nil {
			return resolved
		}
	}
	return ""
}

func (r *ChromeRenderer) Available() bool {
	return r != nil && r.execPath != ""
}

func (r *ChromeRenderer) Render(ctx context.Context, html string, opts map[string]string) ([]byte, error) {
	if !r.Available() {
		return nil, fmt.Errorf("chrome executable not found")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(r.execPath),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	width, height := paperSize(opts)
	var pdf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(width).
				WithPaperHeight(height).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print to pdf: %w", err)
	}
	return pdf, nil
}
