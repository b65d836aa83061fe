package gtfs

import (
	"context"
	"strconv"
	"strings"
)

// lineFromShapePoints flattens a shape's ordered points into a line.
// A line needs at least two points; anything shorter yields nil.
func lineFromShapePoints(points []*ShapePoint) Line {
	if len(points) < 2 {
		return nil
	}
	line := make(Line, len(points))
	for i, p := range points {
		line[i] = p.Point
	}
	return line
}

// lineFromStopVisits chains the positioned stops a trip visits, in stop
// sequence order. Stops without coordinates contribute nothing.
func lineFromStopVisits(stopTimes []*StopTime, stopAt func(string) (*Stop, error)) (Line, error) {
	var line Line
	for _, st := range stopTimes {
		stop, err := stopAt(st.StopID)
		if err != nil {
			return nil, err
		}
		if stop == nil || stop.Point == nil {
			continue
		}
		line = append(line, *stop.Point)
	}
	if len(line) < 2 {
		return nil, nil
	}
	return line, nil
}

// rebuildGeometries recomputes every derived geometry in the feed: shape
// lines from shape points, trip lines from their shape or their stops,
// and route multi-lines from the distinct lines of their trips. Entities
// whose geometry is already current are left untouched, so running the
// pass twice writes nothing the second time.
func rebuildGeometries(ctx context.Context, storage Storage, feedID int64) error {
	reader, err := storage.Reader(feedID)
	if err != nil {
		return err
	}
	tx, err := storage.Begin(feedID)
	if err != nil {
		return err
	}
	if err := rebuildGeometriesTx(ctx, reader, tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func rebuildGeometriesTx(ctx context.Context, reader Reader, tx Tx) error {
	shapes, err := reader.Shapes()
	if err != nil {
		return err
	}
	shapeLines := make(map[string]Line, len(shapes))
	for _, shape := range shapes {
		if err := ctx.Err(); err != nil {
			return err
		}
		points, err := reader.ShapePointsByShape(shape.ShapeID)
		if err != nil {
			return err
		}
		line := lineFromShapePoints(points)
		shapeLines[shape.ShapeID] = line
		if !line.Equal(shape.Geometry) {
			shape.Geometry = line
			if err := tx.UpdateShape(shape); err != nil {
				return err
			}
		}
	}

	trips, err := reader.Trips()
	if err != nil {
		return err
	}
	stopCache := map[string]*Stop{}
	stopAt := func(stopID string) (*Stop, error) {
		if stop, ok := stopCache[stopID]; ok {
			return stop, nil
		}
		stop, err := reader.StopByID(stopID)
		if err != nil {
			return nil, err
		}
		stopCache[stopID] = stop
		return stop, nil
	}
	routeLines := map[string][]Line{}
	for _, trip := range trips {
		if err := ctx.Err(); err != nil {
			return err
		}
		var line Line
		if trip.ShapeID != "" {
			line = shapeLines[trip.ShapeID]
		} else {
			stopTimes, err := reader.StopTimesByTrip(trip.TripID)
			if err != nil {
				return err
			}
			if line, err = lineFromStopVisits(stopTimes, stopAt); err != nil {
				return err
			}
		}
		if !line.Equal(trip.Geometry) {
			trip.Geometry = line
			if err := tx.UpdateTrip(trip); err != nil {
				return err
			}
		}
		if line != nil {
			routeLines[trip.RouteID] = append(routeLines[trip.RouteID], line)
		}
	}

	routes, err := reader.Routes()
	if err != nil {
		return err
	}
	for _, route := range routes {
		geometry := distinctLines(routeLines[route.RouteID])
		if !geometry.Equal(route.Geometry) {
			route.Geometry = geometry
			if err := tx.UpdateRoute(route); err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshShape recomputes one shape's line from the given points and
// cascades the change to the shape's trips and their routes, all inside
// the caller's transaction. A no-op when the line is unchanged.
func refreshShape(reader Reader, tx Tx, shape *Shape, points []*ShapePoint) error {
	line := lineFromShapePoints(points)
	if line.Equal(shape.Geometry) {
		return nil
	}
	shape.Geometry = line
	if err := tx.UpdateShape(shape); err != nil {
		return err
	}
	trips, err := reader.TripsByShape(shape.ShapeID)
	if err != nil {
		return err
	}
	overrides := map[string]Line{}
	routeIDs := map[string]bool{}
	for _, trip := range trips {
		if line.Equal(trip.Geometry) {
			continue
		}
		trip.Geometry = line
		if err := tx.UpdateTrip(trip); err != nil {
			return err
		}
		overrides[trip.TripID] = line
		routeIDs[trip.RouteID] = true
	}
	for routeID := range routeIDs {
		if err := refreshRoute(reader, tx, routeID, overrides); err != nil {
			return err
		}
	}
	return nil
}

// refreshRoute recomputes a route's multi-line from its trips. The
// overrides map carries trip lines changed earlier in the same
// transaction, which the reader cannot see yet.
func refreshRoute(reader Reader, tx Tx, routeID string, overrides map[string]Line) error {
	route, err := reader.RouteByID(routeID)
	if err != nil || route == nil {
		return err
	}
	trips, err := reader.TripsByRoute(routeID)
	if err != nil {
		return err
	}
	var lines []Line
	for _, trip := range trips {
		line := trip.Geometry
		if override, ok := overrides[trip.TripID]; ok {
			line = override
		}
		if line != nil {
			lines = append(lines, line)
		}
	}
	geometry := distinctLines(lines)
	if geometry.Equal(route.Geometry) {
		return nil
	}
	route.Geometry = geometry
	return tx.UpdateRoute(route)
}

// distinctLines deduplicates trip lines preserving first-seen order, so
// a route served by many identical trips carries each line once.
func distinctLines(lines []Line) MultiLine {
	var out MultiLine
	seen := map[string]bool{}
	for _, line := range lines {
		key := lineKey(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out
}

func lineKey(line Line) string {
	var b strings.Builder
	for _, p := range line {
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}
