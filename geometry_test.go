package gtfs_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/transitarchive/gtfs"
	"github.com/transitarchive/gtfs/internal/testutil"
)

func shapedFeed(t *testing.T) []byte {
	return testutil.NewZipBuilder().
		Add("stops.txt",
			"stop_id,stop_name,stop_lat,stop_lon\n"+
				"s1,First,40.0,-74.0\n"+
				"s2,Second,40.1,-74.1\n").
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("shapes.txt",
			"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n"+
				"sh1,40.0,-74.0,1\n"+
				"sh1,40.05,-74.05,2\n"+
				"sh1,40.1,-74.1,3\n").
		Add("trips.txt",
			"route_id,service_id,trip_id,shape_id\n"+
				"r1,svc,t1,sh1\n"+
				"r1,svc,t2,\n").
		Add("stop_times.txt",
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
				"t1,09:00:00,09:00:00,s1,1\n"+
				"t1,09:10:00,09:10:00,s2,2\n"+
				"t2,10:00:00,10:00:00,s1,1\n"+
				"t2,10:10:00,10:10:00,s2,2\n").
		Build(t)
}

var shapeLine = gtfs.Line{
	{Lon: -74.0, Lat: 40.0},
	{Lon: -74.05, Lat: 40.05},
	{Lon: -74.1, Lat: 40.1},
}

var stopLine = gtfs.Line{
	{Lon: -74.0, Lat: 40.0},
	{Lon: -74.1, Lat: 40.1},
}

func TestGeometryDerivation(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, shapedFeed(t))
	reader := f.reader(t)

	shape, err := reader.ShapeByID("sh1")
	if err != nil {
		t.Fatalf("failed to get shape: %s", err)
	}
	if diff := cmp.Diff(shape.Geometry, shapeLine); diff != "" {
		t.Errorf("unexpected shape geometry (-got, +want):\n%s", diff)
	}

	// t1 follows its shape; t2 has no shape and falls back to its stops.
	t1, err := reader.TripByID("t1")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if diff := cmp.Diff(t1.Geometry, shapeLine); diff != "" {
		t.Errorf("unexpected t1 geometry (-got, +want):\n%s", diff)
	}
	t2, err := reader.TripByID("t2")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if diff := cmp.Diff(t2.Geometry, stopLine); diff != "" {
		t.Errorf("unexpected t2 geometry (-got, +want):\n%s", diff)
	}

	route, err := reader.RouteByID("r1")
	if err != nil {
		t.Fatalf("failed to get route: %s", err)
	}
	if diff := cmp.Diff(route.Geometry, gtfs.MultiLine{shapeLine, stopLine}); diff != "" {
		t.Errorf("unexpected route geometry (-got, +want):\n%s", diff)
	}
}

func TestRouteGeometryDeduplicatesLines(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("stops.txt",
			"stop_id,stop_name,stop_lat,stop_lon\n"+
				"s1,First,40.0,-74.0\n"+
				"s2,Second,40.1,-74.1\n").
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("trips.txt", "route_id,service_id,trip_id\nr1,svc,t1\nr1,svc,t2\n").
		Add("stop_times.txt",
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
				"t1,09:00:00,09:00:00,s1,1\n"+
				"t1,09:10:00,09:10:00,s2,2\n"+
				"t2,10:00:00,10:00:00,s1,1\n"+
				"t2,10:10:00,10:10:00,s2,2\n").
		Build(t))
	route, err := f.reader(t).RouteByID("r1")
	if err != nil {
		t.Fatalf("failed to get route: %s", err)
	}
	if len(route.Geometry) != 1 {
		t.Errorf("route has %d lines, want 1: identical trip lines collapse", len(route.Geometry))
	}
}

func TestShortShapeHasNullGeometry(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("shapes.txt",
		"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\nsh1,40.0,-74.0,1\n",
	).Build(t))
	shape, err := f.reader(t).ShapeByID("sh1")
	if err != nil {
		t.Fatalf("failed to get shape: %s", err)
	}
	if shape.Geometry != nil {
		t.Errorf("one-point shape has geometry %v, want nil", shape.Geometry)
	}
}

func TestRebuildGeometriesIdempotent(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, shapedFeed(t))
	snapshot := func() ([]*gtfs.Shape, []*gtfs.Trip, []*gtfs.Route) {
		reader := f.reader(t)
		shapes, err := reader.Shapes()
		if err != nil {
			t.Fatalf("failed to list shapes: %s", err)
		}
		trips, err := reader.Trips()
		if err != nil {
			t.Fatalf("failed to list trips: %s", err)
		}
		routes, err := reader.Routes()
		if err != nil {
			t.Fatalf("failed to list routes: %s", err)
		}
		return shapes, trips, routes
	}
	shapes1, trips1, routes1 := snapshot()
	if err := f.client.RebuildGeometries(context.Background(), f.feedID); err != nil {
		t.Fatalf("rebuild failed: %s", err)
	}
	shapes2, trips2, routes2 := snapshot()
	if diff := cmp.Diff(shapes1, shapes2); diff != "" {
		t.Errorf("rebuild changed shapes (-before, +after):\n%s", diff)
	}
	if diff := cmp.Diff(trips1, trips2); diff != "" {
		t.Errorf("rebuild changed trips (-before, +after):\n%s", diff)
	}
	if diff := cmp.Diff(routes1, routes2); diff != "" {
		t.Errorf("rebuild changed routes (-before, +after):\n%s", diff)
	}
}

func TestSaveShapePointCascades(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, shapedFeed(t))
	reader := f.reader(t)
	points, err := reader.ShapePointsByShape("sh1")
	if err != nil {
		t.Fatalf("failed to list shape points: %s", err)
	}
	moved := points[1]
	moved.Point = gtfs.Point{Lon: -74.06, Lat: 40.06}
	if err := f.client.SaveShapePoint(context.Background(), f.feedID, moved); err != nil {
		t.Fatalf("save failed: %s", err)
	}

	want := gtfs.Line{
		{Lon: -74.0, Lat: 40.0},
		{Lon: -74.06, Lat: 40.06},
		{Lon: -74.1, Lat: 40.1},
	}
	shape, err := reader.ShapeByID("sh1")
	if err != nil {
		t.Fatalf("failed to get shape: %s", err)
	}
	if diff := cmp.Diff(shape.Geometry, want); diff != "" {
		t.Errorf("unexpected shape geometry (-got, +want):\n%s", diff)
	}
	trip, err := reader.TripByID("t1")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if diff := cmp.Diff(trip.Geometry, want); diff != "" {
		t.Errorf("unexpected trip geometry (-got, +want):\n%s", diff)
	}
	route, err := reader.RouteByID("r1")
	if err != nil {
		t.Fatalf("failed to get route: %s", err)
	}
	if diff := cmp.Diff(route.Geometry, gtfs.MultiLine{want, stopLine}); diff != "" {
		t.Errorf("unexpected route geometry (-got, +want):\n%s", diff)
	}
}

func TestMoveStopCascades(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, shapedFeed(t))
	if err := f.client.MoveStop(context.Background(), f.feedID, "s2", gtfs.Point{Lon: -74.2, Lat: 40.2}); err != nil {
		t.Fatalf("move failed: %s", err)
	}
	reader := f.reader(t)

	// t2 derives its line from stops; t1 keeps its shape's line.
	t2, err := reader.TripByID("t2")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	want := gtfs.Line{{Lon: -74.0, Lat: 40.0}, {Lon: -74.2, Lat: 40.2}}
	if diff := cmp.Diff(t2.Geometry, want); diff != "" {
		t.Errorf("unexpected t2 geometry (-got, +want):\n%s", diff)
	}
	t1, err := reader.TripByID("t1")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if diff := cmp.Diff(t1.Geometry, shapeLine); diff != "" {
		t.Errorf("unexpected t1 geometry (-got, +want):\n%s", diff)
	}
	route, err := reader.RouteByID("r1")
	if err != nil {
		t.Fatalf("failed to get route: %s", err)
	}
	if diff := cmp.Diff(route.Geometry, gtfs.MultiLine{shapeLine, want}); diff != "" {
		t.Errorf("unexpected route geometry (-got, +want):\n%s", diff)
	}
}
