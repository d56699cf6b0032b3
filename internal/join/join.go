// Package join interpolates environment grid fields onto trajectory points
// and derives wind magnitude and direction per configured level.
package join

import (
	"fmt"
	"math"

	"github.com/seaway-data/shiptrace/internal/envgrid"
	"github.com/seaway-data/shiptrace/internal/geo"
	"github.com/seaway-data/shiptrace/internal/monitoring"
	"github.com/seaway-data/shiptrace/internal/traj"
)

// Join samples u/v wind components for every configured level at each
// trajectory point and appends them, plus derived magnitude (w<level>) and
// direction (w<level>_angle) fields, to the trajectory. Points outside the
// grid's spatial or temporal extent get missing values, never fabricated
// ones. The trajectory is modified in place and returned.
func Join(t *traj.Trajectory, g *envgrid.Grid, levels []int) *traj.Trajectory {
	if t == nil || g == nil {
		return t
	}

	for _, lv := range levels {
		uName := fmt.Sprintf("u%d", lv)
		vName := fmt.Sprintf("v%d", lv)
		if !g.HasField(uName) || !g.HasField(vName) {
			monitoring.Logf("join: grid %s carries no %s/%s, skipping level %dm", g.Source, uName, vName, lv)
			continue
		}

		uIdx := t.AddField(uName, "mps")
		vIdx := t.AddField(vName, "mps")
		wIdx := t.AddField(fmt.Sprintf("w%d", lv), "mps")
		aIdx := t.AddField(fmt.Sprintf("w%d_angle", lv), "deg")

		missing := 0
		for i := range t.Points {
			p := &t.Points[i]

			u, uOK := g.Sample(uName, p.Time, p.Lat, p.Lon)
			v, vOK := g.Sample(vName, p.Time, p.Lat, p.Lon)
			if !uOK || !vOK {
				missing++
				continue // fields stay NaN
			}

			p.Values[uIdx] = u
			p.Values[vIdx] = v
			// derived fields are computed from the interpolated components,
			// not interpolated themselves
			p.Values[wIdx] = math.Hypot(u, v)
			p.Values[aIdx] = geo.WindAngle(u, v)
		}
		if missing > 0 {
			monitoring.Logf("join: %d/%d points outside grid extent for level %dm", missing, t.Len(), lv)
		}
	}
	return t
}
