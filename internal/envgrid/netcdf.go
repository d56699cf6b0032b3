package envgrid

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/seaway-data/shiptrace/internal/monitoring"
)

// levelFields returns the wind component variable names for the requested
// vertical levels, ECMWF naming (u10/v10, u100/v100).
func levelFields(levels []int) []string {
	var fields []string
	for _, lv := range levels {
		fields = append(fields, fmt.Sprintf("u%d", lv), fmt.Sprintf("v%d", lv))
	}
	return fields
}

// readNetCDF loads the wind-component variables for the requested levels.
// Variables whose shape is not (time, lat, lon) are skipped with a log line;
// at least one field must load.
func readNetCDF(path string, levels []int) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}
	defer nc.Close()

	times, err := readTimeAxis(nc)
	if err != nil {
		return nil, err
	}
	lats, err := readCoordAxis(nc, "latitude", "lat")
	if err != nil {
		return nil, err
	}
	lons, err := readCoordAxis(nc, "longitude", "lon")
	if err != nil {
		return nil, err
	}

	g := &Grid{
		Source: path,
		Times:  times,
		Lats:   lats,
		Lons:   lons,
		Fields: make(map[string][]float64),
	}

	latsDescending := len(lats) > 1 && lats[0] > lats[1]
	if latsDescending {
		reverseFloats(g.Lats)
	}

	want := len(times) * len(lats) * len(lons)
	for _, name := range levelFields(levels) {
		vr, err := nc.GetVariable(name)
		if err != nil || vr == nil {
			monitoring.Logf("envgrid: %s: variable %s not present, skipping", path, name)
			continue
		}
		values := flattenNumeric(vr.Values)
		if len(values) != want {
			monitoring.Logf("envgrid: %s: variable %s has %d values, want %d (time,lat,lon), skipping",
				path, name, len(values), want)
			continue
		}
		applyFillValue(values, vr.Attributes)
		if latsDescending {
			reverseLatAxis(values, len(times), len(lats), len(lons))
		}
		g.Fields[name] = values
	}

	if len(g.Fields) == 0 {
		return nil, fmt.Errorf("no usable wind fields for levels %v", levels)
	}
	return g, nil
}

// readCoordAxis reads a 1-D coordinate variable, trying names in order.
func readCoordAxis(nc api.Group, names ...string) ([]float64, error) {
	for _, name := range names {
		vr, err := nc.GetVariable(name)
		if err != nil || vr == nil {
			continue
		}
		axis := flattenNumeric(vr.Values)
		if len(axis) == 0 {
			continue
		}
		return axis, nil
	}
	return nil, fmt.Errorf("no coordinate variable named %s", strings.Join(names, " or "))
}

// readTimeAxis reads the time coordinate and converts it to unix seconds
// using the CF "units" attribute ("<unit> since <epoch>").
func readTimeAxis(nc api.Group) ([]float64, error) {
	var vr *api.Variable
	for _, name := range []string{"time", "valid_time"} {
		v, err := nc.GetVariable(name)
		if err == nil && v != nil {
			vr = v
			break
		}
	}
	if vr == nil {
		return nil, fmt.Errorf("no time coordinate variable")
	}

	raw := flattenNumeric(vr.Values)
	if len(raw) == 0 {
		return nil, fmt.Errorf("time coordinate is empty")
	}

	scale, epoch, err := parseTimeUnits(attrString(vr.Attributes, "units"))
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(raw))
	base := float64(epoch.Unix())
	for i, v := range raw {
		out[i] = base + v*scale
	}
	return out, nil
}

// parseTimeUnits parses a CF time units string like
// "hours since 1900-01-01 00:00:00.0" into a seconds multiplier and epoch.
// An empty units string is treated as unix seconds.
func parseTimeUnits(units string) (float64, time.Time, error) {
	if units == "" {
		return 1, time.Unix(0, 0).UTC(), nil
	}
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("unparseable time units %q", units)
	}

	var scale float64
	switch strings.TrimSpace(parts[0]) {
	case "seconds", "second":
		scale = 1
	case "minutes", "minute":
		scale = 60
	case "hours", "hour":
		scale = 3600
	case "days", "day":
		scale = 86400
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	epochStr := strings.TrimSpace(parts[1])
	epochStr = strings.TrimSuffix(epochStr, ".0")
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05Z", "2006-01-02"} {
		if epoch, err := time.Parse(layout, epochStr); err == nil {
			return scale, epoch.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unparseable time epoch %q", epochStr)
}

// attrString fetches a string attribute, or "".
func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, has := attrs.Get(key)
	if !has {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// applyFillValue replaces _FillValue/missing_value sentinels with NaN.
func applyFillValue(values []float64, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		raw, has := attrs.Get(key)
		if !has {
			continue
		}
		fills := flattenNumeric(raw)
		if len(fills) == 0 {
			continue
		}
		fill := fills[0]
		for i, v := range values {
			if v == fill {
				values[i] = math.NaN()
			}
		}
	}
}

// flattenNumeric converts an arbitrarily nested numeric slice (the shapes
// the NetCDF decoder produces) into a flat row-major []float64. Non-numeric
// input yields nil.
func flattenNumeric(v interface{}) []float64 {
	var out []float64
	var walk func(rv reflect.Value) bool
	walk = func(rv reflect.Value) bool {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if !walk(rv.Index(i)) {
					return false
				}
			}
			return true
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
			return true
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(rv.Int()))
			return true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(rv.Uint()))
			return true
		case reflect.Interface:
			return walk(rv.Elem())
		default:
			return false
		}
	}
	if v == nil {
		return nil
	}
	if !walk(reflect.ValueOf(v)) {
		return nil
	}
	return out
}

func reverseFloats(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// reverseLatAxis flips the latitude dimension of a flattened
// [time][lat][lon] block in place.
func reverseLatAxis(values []float64, nt, ny, nx int) {
	for t := 0; t < nt; t++ {
		slab := values[t*ny*nx : (t+1)*ny*nx]
		for y0, y1 := 0, ny-1; y0 < y1; y0, y1 = y0+1, y1-1 {
			r0 := slab[y0*nx : (y0+1)*nx]
			r1 := slab[y1*nx : (y1+1)*nx]
			for x := 0; x < nx; x++ {
				r0[x], r1[x] = r1[x], r0[x]
			}
		}
	}
}
