package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lidarscan/internal/httputil"
	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

const (
	echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"
	maxChartPoints      = 5000
)

// chartStride returns the sampling step that keeps at most max points.
func chartStride(n, max int) int {
	if max <= 0 || n <= max {
		return 1
	}
	return (n + max - 1) / max
}

func hexColor(c scan.Color) string {
	q := c.NRGBA()
	return fmt.Sprintf("#%02x%02x%02x", q.R, q.G, q.B)
}

// handleLatestChart renders the latest committed pass as a 3D scatter. Each
// point keeps its sample colour.
func (ws *WebServer) handleLatestChart(w http.ResponseWriter, r *http.Request) {
	batch, _, uploads := ws.latest.Latest()
	n := batch.Len()
	stride := chartStride(n, maxChartPoints)

	data := make([]opts.Chart3DData, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		p := batch.PositionAt(i)
		data = append(data, opts.Chart3DData{
			Value:     []interface{}{p.X, p.Y, p.Z},
			ItemStyle: &opts.ItemStyle{Color: hexColor(batch.ColorAt(i))},
		})
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Latest scan pass", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Latest scan pass", Subtitle: fmt.Sprintf("scanner=%s points=%d stride=%d uploads=%d", ws.driver.Status().ScannerID, n, stride, uploads)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X (forward)"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y (right)"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z (up)"}),
	)
	scatter.AddSeries("samples", data)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLatestPlot renders the latest pass as a PNG. Query params:
//
//	size (optional) - image edge in inches, default 6
func (ws *WebServer) handleLatestPlot(w http.ResponseWriter, r *http.Request) {
	size := 6.0
	if raw := r.URL.Query().Get("size"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 30 {
			httputil.BadRequest(w, "size must be in (0, 30]")
			return
		}
		size = v
	}

	batch, _, _ := ws.latest.Latest()
	p, err := latestPlot(batch)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build plot: %v", err))
		return
	}

	wt, err := p.WriterTo(vg.Length(size)*vg.Inch, vg.Length(size)*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func latestPlot(batch scan.Batch) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Latest pass (%d samples)", batch.Len())
	p.X.Label.Text = "Y (right)"
	p.Y.Label.Text = "X (forward)"

	n := batch.Len()
	if n == 0 {
		return p, nil
	}
	stride := chartStride(n, maxChartPoints)
	pts := make(plotter.XYs, 0, n/stride+1)
	cols := make([]color.Color, 0, cap(pts))
	for i := 0; i < n; i += stride {
		pos := batch.PositionAt(i)
		pts = append(pts, plotter.XY{X: pos.Y, Y: pos.X})
		cols = append(cols, batch.ColorAt(i).NRGBA())
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: cols[i], Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	}
	p.Add(s)
	return p, nil
}
