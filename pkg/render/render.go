// Package render turns report HTML into PDF bytes.
package render

import (
	"context"

	"github.com/noah-isme/survey-review-api/pkg/config"
)

// Option keys understood by the renderers.
const (
	OptLandscape = "landscape"
	OptPaper     = "paper"
	OptTitle     = "title"
)

// Renderer converts an HTML document into a PDF. Available reports whether
// the renderer's external dependency can be used at all.
type Renderer interface {
	Render(ctx context.Context, html string, opts map[string]string) ([]byte, error)
	Available() bool
}

// New selects the renderer named in cfg. It returns nil when rendering is
// disabled, which callers treat as a missing dependency.
func New(cfg config.ReportsConfig) Renderer {
	switch cfg.Renderer {
	case config.RendererNone:
		return nil
	case config.RendererBasic:
		return NewBasic()
	default:
		return NewChrome(cfg.ChromePath)
	}
}

// paperSize returns width and height in inches.
func paperSize(opts map[string]string) (float64, float64) {
	w, h := 8.27, 11.69
	if opts[OptPaper] == "letter" {
		w, h = 8.5, 11
	}
	if opts[OptLandscape] == "true" {
		w, h = h, w
	}
	return w, h
}
