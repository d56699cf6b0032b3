package api

import (
	"fmt"
	"image/color"
	"math"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/seaway-data/shiptrace/internal/geo"
	"github.com/seaway-data/shiptrace/internal/httputil"
)

// handleWindFieldPlot renders the trajectory track with a wind vector at
// each point as a PNG. Vector length is proportional to wind speed, vector
// direction follows the meteorological u/v components.
// Query params:
//   - level (optional; default 10) selects the wind level, e.g. 10 or 100
func (s *Server) handleWindFieldPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	level := 10
	if v := r.URL.Query().Get("level"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &level); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid level %q", v))
			return
		}
	}

	t, err := s.pipeline.Result(r.Context())
	if err != nil {
		s.writeTrajectoryError(w, err)
		return
	}

	uIdx := t.FieldIndex(fmt.Sprintf("u%d", level))
	vIdx := t.FieldIndex(fmt.Sprintf("v%d", level))
	if uIdx < 0 || vIdx < 0 {
		httputil.NotFound(w, fmt.Sprintf("no wind components for level %d", level))
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track Wind Field (%dm)", level)
	p.X.Label.Text = "Longitude (deg)"
	p.Y.Label.Text = "Latitude (deg)"

	track := make(plotter.XYs, 0, t.Len())
	maxSpeed := 0.0
	for i := range t.Points {
		pt := &t.Points[i]
		track = append(track, plotter.XY{X: pt.Lon, Y: pt.Lat})
		if speed := math.Hypot(pt.Value(uIdx), pt.Value(vIdx)); speed > maxSpeed {
			maxSpeed = speed
		}
	}
	if maxSpeed == 0 {
		maxSpeed = 1
	}

	trackLine, err := plotter.NewLine(track)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build track line: %v", err))
		return
	}
	trackLine.Color = color.RGBA{R: 0, G: 180, B: 180, A: 255}
	trackLine.Width = vg.Points(1.5)
	p.Add(trackLine)
	p.Legend.Add("track", trackLine)

	// scale the longest vector to roughly a tenth of the track extent; the
	// vector is a metric displacement so arrows keep their aspect at any
	// latitude
	span := trackSpanMeters(track)
	scale := span * 0.1 / maxSpeed

	for i := range t.Points {
		pt := &t.Points[i]
		u := pt.Value(uIdx)
		v := pt.Value(vIdx)
		if math.IsNaN(u) || math.IsNaN(v) {
			continue
		}
		tipLat, tipLon := geo.DisplacementToLatLon(pt.Lat, pt.Lon, u*scale, v*scale)
		seg := plotter.XYs{
			{X: pt.Lon, Y: pt.Lat},
			{X: tipLon, Y: tipLat},
		}
		arrow, err := plotter.NewLine(seg)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to build wind vector: %v", err))
			return
		}
		arrow.Color = color.RGBA{R: 230, G: 120, B: 0, A: 255}
		arrow.Width = vg.Points(1)
		p.Add(arrow)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(9*vg.Inch, 9*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render wind field: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// client went away mid-write; nothing useful to send back
		return
	}
}

// trackSpanMeters returns the larger of the track's east-west and
// north-south extents in meters.
func trackSpanMeters(track plotter.XYs) float64 {
	if len(track) == 0 {
		return 1
	}
	minLon, maxLon := track[0].X, track[0].X
	minLat, maxLat := track[0].Y, track[0].Y
	for _, pt := range track {
		minLon = math.Min(minLon, pt.X)
		maxLon = math.Max(maxLon, pt.X)
		minLat = math.Min(minLat, pt.Y)
		maxLat = math.Max(maxLat, pt.Y)
	}
	dx, dy := geo.LatLonToDisplacement(minLat, minLon, maxLat, maxLon)
	span := math.Max(math.Abs(dx), math.Abs(dy))
	if span == 0 {
		span = 1
	}
	return span
}
