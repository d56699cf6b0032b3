// Package export shapes a joined trajectory into the two payloads the
// frontend consumes: a CZML-style scene array for the globe renderer and an
// aligned chart-series object.
package export

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/seaway-data/shiptrace/internal/traj"
)

// chartTimeLayout is the timestamp format used on chart axes.
const chartTimeLayout = "2006-01-02 15:04:05"

// pointAltitudeM is the fixed display altitude for track points.
const pointAltitudeM = 100

// Packet is one CZML-style scene entity descriptor.
type Packet map[string]interface{}

// Series is one named chart series, aligned index-for-index with the shared
// timestamp list. Missing values are null.
type Series struct {
	Title string     `json:"title"`
	Data  []*float64 `json:"data"`
}

// ChartData is the chart payload: a shared ordered timestamp list plus one
// series per numeric field.
type ChartData struct {
	Timestamps []string `json:"timestamps"`
	Series     []Series `json:"series"`
}

// Payload is the combined response document.
type Payload struct {
	CZML    []Packet  `json:"czml"`
	ECharts ChartData `json:"echarts"`
}

// Build converts a trajectory into the combined payload. Both views iterate
// the same ordered point slice, so their timestamp order and count always
// agree.
func Build(t *traj.Trajectory) (*Payload, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("cannot export an empty trajectory")
	}

	start := t.Points[0].Time
	end := t.Points[len(t.Points)-1].Time

	czml := []Packet{
		{
			"id":      "document",
			"name":    "ShipTrack",
			"version": "1.0",
			"clock": Packet{
				"interval":    isoZ(start) + "/" + isoZ(end),
				"currentTime": isoZ(start),
				"multiplier":  3600,
			},
		},
		{
			"id":   "shipPath",
			"name": "Ship Trajectory",
			"position": Packet{
				"reference": "point_0#position",
			},
			"path": Packet{
				"material": Packet{
					"solidColor": Packet{
						"color": Packet{"rgba": []int{0, 255, 255, 180}},
					},
				},
				"width":      3,
				"leadTime":   0,
				"trailTime":  86400 * t.Len(),
				"resolution": 5,
			},
		},
	}

	chart := ChartData{
		Timestamps: make([]string, 0, t.Len()),
		Series:     make([]Series, len(t.Fields)),
	}
	for fi, f := range t.Fields {
		chart.Series[fi] = Series{
			Title: seriesTitle(f.Name),
			Data:  make([]*float64, 0, t.Len()),
		}
	}

	for i := range t.Points {
		p := &t.Points[i]

		chart.Timestamps = append(chart.Timestamps, p.Time.UTC().Format(chartTimeLayout))
		for fi := range t.Fields {
			v := p.Value(fi)
			if math.IsNaN(v) {
				chart.Series[fi].Data = append(chart.Series[fi].Data, nil)
			} else {
				vv := v
				chart.Series[fi].Data = append(chart.Series[fi].Data, &vv)
			}
		}

		properties := Packet{
			"id":            fmt.Sprintf("point_%d", i),
			"timestamp_iso": isoZ(p.Time),
		}
		for fi, f := range t.Fields {
			v := p.Value(fi)
			if math.IsNaN(v) {
				// missing fields are omitted from the property bag
				continue
			}
			properties[f.Name] = v
		}

		czml = append(czml, Packet{
			"id":   fmt.Sprintf("point_%d", i),
			"name": fmt.Sprintf("Track Point %d", i),
			"position": Packet{
				"cartographicDegrees": []float64{p.Lon, p.Lat, pointAltitudeM},
			},
			"properties": properties,
		})
	}

	return &Payload{CZML: czml, ECharts: chart}, nil
}

// isoZ formats a time as an ISO-8601 UTC instant with a trailing Z.
func isoZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}

// seriesTitle turns a field name into a display title: underscores to
// spaces, each word capitalised ("true_wind_speed" -> "True Wind Speed").
func seriesTitle(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
