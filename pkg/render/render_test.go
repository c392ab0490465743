package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/survey-review-api/pkg/config"
)

func TestNewSelectsRenderer(t *testing.T) {
	assert.Nil(t, New(config.ReportsConfig{Renderer: config.RendererNone}))
	assert.IsType(t, &BasicRenderer{}, New(config.ReportsConfig{Renderer: config.RendererBasic}))
	assert.IsType(t, &ChromeRenderer{}, New(config.ReportsConfig{Renderer: config.RendererChrome}))
}

func TestChromeUnavailableWithBogusPath(t *testing.T) {
	r := NewChrome("/nonexistent/chrome-binary")
	assert.False(t, r.Available())

	_, err := r.Render(context.Background(), "<p>x</p>", nil)
	require.Error(t, err)
}

func TestBasicRendererProducesPDF(t *testing.T) {
	r := NewBasic()
	require.True(t, r.Available())

	out, err := r.Render(context.Background(), "<h1>Report</h1><p>Hello <b>world</b></p>", map[string]string{OptTitle: "Student report"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestBasicRendererHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBasic().Render(ctx, "<p>x</p>", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimplify(t *testing.T) {
	in := `<html><head><style>p{color:red}</style></head><body><h2>Math</h2><table><tr><th>Q</th><td>Yes &amp; no</td></tr></table><script>x()</script></body></html>`
	assert.Equal(t, "<b>Math</b><br> | <b>Q</b> | Yes &amp; no<br><br>", Simplify(in))
}

func TestPaperSize(t *testing.T) {
	w, h := paperSize(map[string]string{OptPaper: "letter", OptLandscape: "true"})
	assert.Equal(t, 11.0, w)
	assert.Equal(t, 8.5, h)
}
