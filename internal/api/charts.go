package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/seaway-data/shiptrace/internal/export"
	"github.com/seaway-data/shiptrace/internal/httputil"
)

// handleSeriesChart renders a quick line chart (HTML) of the trajectory
// series using go-echarts. This is a debugging-only endpoint to eyeball the
// data without the globe frontend.
// Query params:
//   - fields (optional; comma-separated field names, default all)
func (s *Server) handleSeriesChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	t, err := s.pipeline.Result(r.Context())
	if err != nil {
		s.writeTrajectoryError(w, err)
		return
	}
	payload, err := export.Build(t)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	want := requestedFields(r)
	selected := payload.ECharts.Series
	if len(want) > 0 {
		selected = selected[:0:0]
		for _, name := range want {
			idx := t.FieldIndex(name)
			if idx < 0 {
				httputil.BadRequest(w, fmt.Sprintf("unknown field %q", name))
				return
			}
			selected = append(selected, payload.ECharts.Series[idx])
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trajectory Series", Theme: "dark", Width: "1400px", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectory Series", Subtitle: fmt.Sprintf("source=%s points=%d", t.Source, t.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	line.SetXAxis(payload.ECharts.Timestamps)
	for _, series := range selected {
		data := make([]opts.LineData, len(series.Data))
		for i, v := range series.Data {
			if v == nil {
				// echarts skips null points, keeping the gap visible
				data[i] = opts.LineData{Value: nil}
			} else {
				data[i] = opts.LineData{Value: *v}
			}
		}
		line.AddSeries(series.Title, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
