package gtfs_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/transitarchive/gtfs"
	"github.com/transitarchive/gtfs/constants"
	"github.com/transitarchive/gtfs/internal/testutil"
	"github.com/transitarchive/gtfs/warnings"
)

type fixture struct {
	client  *gtfs.Client
	storage gtfs.Storage
	feedID  int64
	warns   []warnings.Warning
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	storage := gtfs.NewMemoryStorage()
	client := gtfs.NewClient(storage)
	feed, err := client.CreateFeed("test")
	if err != nil {
		t.Fatalf("failed to create feed: %s", err)
	}
	return &fixture{client: client, storage: storage, feedID: feed.ID}
}

func (f *fixture) importBytes(t *testing.T, content []byte) error {
	t.Helper()
	return f.client.ImportBytes(context.Background(), f.feedID, content, gtfs.ImportOptions{
		Warnings: func(w warnings.Warning) { f.warns = append(f.warns, w) },
	})
}

func (f *fixture) mustImport(t *testing.T, content []byte) {
	t.Helper()
	if err := f.importBytes(t, content); err != nil {
		t.Fatalf("import failed: %s", err)
	}
}

func (f *fixture) reader(t *testing.T) gtfs.Reader {
	t.Helper()
	reader, err := f.storage.Reader(f.feedID)
	if err != nil {
		t.Fatalf("failed to open reader: %s", err)
	}
	return reader
}

func TestImportAgency(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("agency.txt",
		"agency_id,agency_name,agency_url,agency_timezone,agency_lang,agency_phone,agency_fare_url,agency_email\n"+
			"MTA,Metro Transit,https://transit.example,America/New_York,en,555-1234,https://transit.example/fares,hello@transit.example\n",
	).Build(t))
	agencies, err := f.reader(t).Agencies()
	if err != nil {
		t.Fatalf("failed to list agencies: %s", err)
	}
	want := []*gtfs.Agency{{
		AgencyID: "MTA",
		Name:     "Metro Transit",
		URL:      "https://transit.example",
		Timezone: "America/New_York",
		Language: "en",
		Phone:    "555-1234",
		FareURL:  "https://transit.example/fares",
		Email:    "hello@transit.example",
	}}
	if diff := cmp.Diff(agencies, want, cmpopts.IgnoreFields(gtfs.Agency{}, "ID", "FeedID")); diff != "" {
		t.Errorf("unexpected agencies (-got, +want):\n%s", diff)
	}
	if len(f.warns) != 0 {
		t.Errorf("unexpected warnings: %v", f.warns)
	}
}

// A child stop may appear before its parent station in stops.txt; the
// station pass runs first so the reference still resolves.
func TestImportStopsParentBeforeChild(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon,location_type,parent_station\n"+
			"platform,Platform 1,40.75,-73.99,,terminal\n"+
			"terminal,Grand Terminal,40.75,-73.99,1,\n",
	).Build(t))
	stop, err := f.reader(t).StopByID("platform")
	if err != nil {
		t.Fatalf("failed to get stop: %s", err)
	}
	if stop.ParentStation != "terminal" {
		t.Errorf("ParentStation = %q, want \"terminal\"", stop.ParentStation)
	}
	station, err := f.reader(t).StopByID("terminal")
	if err != nil {
		t.Fatalf("failed to get stop: %s", err)
	}
	if !station.IsStation() {
		t.Errorf("expected terminal to be a station")
	}
	if len(f.warns) != 0 {
		t.Errorf("unexpected warnings: %v", f.warns)
	}
}

func TestImportStopsDanglingParent(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon,parent_station\n"+
			"platform,Platform 1,40.75,-73.99,ghost\n",
	).Build(t))
	stop, err := f.reader(t).StopByID("platform")
	if err != nil {
		t.Fatalf("failed to get stop: %s", err)
	}
	if stop.ParentStation != "" {
		t.Errorf("ParentStation = %q, want \"\"", stop.ParentStation)
	}
	want := []warnings.Warning{warnings.DanglingReference{
		SourceFile: constants.StopsFile,
		RowNumber:  1,
		Column:     "parent_station",
		Key:        "ghost",
	}}
	if diff := cmp.Diff(f.warns, want); diff != "" {
		t.Errorf("unexpected warnings (-got, +want):\n%s", diff)
	}
}

func TestImportDuplicateRows(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			"a,First,40.0,-74.0\n"+
			"a,Second,41.0,-75.0\n",
	).Build(t))
	stops, err := f.reader(t).Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 1 {
		t.Fatalf("got %d stops, want 1", len(stops))
	}
	if stops[0].Name != "First" {
		t.Errorf("Name = %q, want \"First\": the first row wins", stops[0].Name)
	}
	want := []warnings.Warning{warnings.DuplicateRow{
		SourceFile: constants.StopsFile,
		RowNumber:  2,
		Key:        "a",
	}}
	if diff := cmp.Diff(f.warns, want); diff != "" {
		t.Errorf("unexpected warnings (-got, +want):\n%s", diff)
	}
}

func TestImportMaterializedEntities(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon,zone_id\ns1,Stop,40.0,-74.0,z1\n").
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("trips.txt", "route_id,service_id,trip_id,block_id\nr1,weekday,t1,b1\n").
		Build(t))
	reader := f.reader(t)

	zones, err := reader.Zones()
	if err != nil {
		t.Fatalf("failed to list zones: %s", err)
	}
	if len(zones) != 1 || zones[0].ZoneID != "z1" {
		t.Errorf("unexpected zones %v, want one zone z1", zones)
	}
	blocks, err := reader.Blocks()
	if err != nil {
		t.Fatalf("failed to list blocks: %s", err)
	}
	if len(blocks) != 1 || blocks[0].BlockID != "b1" {
		t.Errorf("unexpected blocks %v, want one block b1", blocks)
	}
	service, err := reader.ServiceByID("weekday")
	if err != nil {
		t.Fatalf("failed to get service: %s", err)
	}
	if service == nil {
		t.Fatalf("service weekday was not materialized")
	}
	if service.StartDate != nil || service.EndDate != nil {
		t.Errorf("placeholder service has dates: %v, %v", service.StartDate, service.EndDate)
	}
	if len(f.warns) != 0 {
		t.Errorf("unexpected warnings: %v", f.warns)
	}
}

func TestImportTripWithDanglingShape(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("trips.txt", "route_id,service_id,trip_id,shape_id\nr1,svc,t1,ghost\n").
		Build(t))
	trip, err := f.reader(t).TripByID("t1")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if trip.ShapeID != "" {
		t.Errorf("ShapeID = %q, want \"\"", trip.ShapeID)
	}
	want := []warnings.Warning{warnings.DanglingReference{
		SourceFile: constants.TripsFile,
		RowNumber:  1,
		Column:     "shape_id",
		Key:        "ghost",
	}}
	if diff := cmp.Diff(f.warns, want); diff != "" {
		t.Errorf("unexpected warnings (-got, +want):\n%s", diff)
	}
}

func TestImportStopTimeWithUnknownTrip(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon\ns1,Stop,40.0,-74.0\n").
		Add("stop_times.txt", "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nghost,09:00:00,09:00:00,s1,1\n").
		Build(t))
	stopTimes, err := f.reader(t).StopTimes()
	if err != nil {
		t.Fatalf("failed to list stop times: %s", err)
	}
	if len(stopTimes) != 0 {
		t.Errorf("got %d stop times, want 0", len(stopTimes))
	}
	if len(f.warns) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(f.warns), f.warns)
	}
	if _, ok := f.warns[0].(warnings.SkippedRow); !ok {
		t.Errorf("warning has type %T, want SkippedRow", f.warns[0])
	}
}

func TestImportStopTimeAfterMidnight(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon\ns1,Stop,40.0,-74.0\n").
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("trips.txt", "route_id,service_id,trip_id\nr1,svc,t1\n").
		Add("stop_times.txt", "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nt1,25:30:00,25:31:00,s1,1\n").
		Build(t))
	stopTimes, err := f.reader(t).StopTimesByTrip("t1")
	if err != nil {
		t.Fatalf("failed to list stop times: %s", err)
	}
	if len(stopTimes) != 1 {
		t.Fatalf("got %d stop times, want 1", len(stopTimes))
	}
	if got := stopTimes[0].ArrivalTime.String(); got != "25:30:00" {
		t.Errorf("ArrivalTime = %s, want 25:30:00", got)
	}
}

func TestImportMalformedRowAbortsFile(t *testing.T) {
	f := newFixture(t)
	err := f.importBytes(t, testutil.NewZipBuilder().
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon\ns1,Stop,40.0,-74.0\n").
		Add("routes.txt", "route_id,route_type\nr1,3\nr2,express\n").
		Build(t))
	var rowErr *gtfs.RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("import returned %v, want a RowError", err)
	}
	if rowErr.File != constants.RoutesFile || rowErr.Row != 2 || rowErr.Column != "route_type" {
		t.Errorf("unexpected row error %+v", rowErr)
	}
	reader := f.reader(t)
	routes, err := reader.Routes()
	if err != nil {
		t.Fatalf("failed to list routes: %s", err)
	}
	if len(routes) != 0 {
		t.Errorf("got %d routes, want 0: the whole file rolls back", len(routes))
	}
	stops, err := reader.Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 1 {
		t.Errorf("got %d stops, want 1: files committed before the failure remain", len(stops))
	}
}

func TestImportMissingRequiredTable(t *testing.T) {
	f := newFixture(t)
	err := f.importBytes(t, testutil.NewZipBuilder().Remove("trips.txt").Build(t))
	var srcErr *gtfs.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("import returned %v, want a SourceError", err)
	}
}

func TestImportRequiresCalendarOrCalendarDates(t *testing.T) {
	f := newFixture(t)
	err := f.importBytes(t, testutil.NewZipBuilder().Remove("calendar.txt").Build(t))
	var srcErr *gtfs.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("import returned %v, want a SourceError", err)
	}

	f = newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Remove("calendar.txt").
		Add("calendar_dates.txt", "service_id,date,exception_type\nsvc,20240311,1\n").
		Build(t))
}

func TestImportExtraColumns(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon,platform_code,unused_col\n"+
			"s1,Stop,40.0,-74.0,7,\n",
	).Build(t))
	stop, err := f.reader(t).StopByID("s1")
	if err != nil {
		t.Fatalf("failed to get stop: %s", err)
	}
	if diff := cmp.Diff(stop.ExtraData, map[string]string{"platform_code": "7"}); diff != "" {
		t.Errorf("unexpected extra data (-got, +want):\n%s", diff)
	}
	feed, err := f.client.GetFeed(f.feedID)
	if err != nil {
		t.Fatalf("failed to get feed: %s", err)
	}
	// unused_col never had a value, so the memo omits it.
	want := map[constants.Entity][]string{constants.Stop: {"platform_code"}}
	if diff := cmp.Diff(feed.ExtraColumns, want); diff != "" {
		t.Errorf("unexpected extra columns (-got, +want):\n%s", diff)
	}
}

func TestImportCalendar(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("calendar.txt",
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n"+
				"weekday,1,1,1,1,1,0,0,20240101,20241231\n").
		Add("calendar_dates.txt", "service_id,date,exception_type\nweekday,20240704,2\n").
		Build(t))
	reader := f.reader(t)
	service, err := reader.ServiceByID("weekday")
	if err != nil {
		t.Fatalf("failed to get service: %s", err)
	}
	if service == nil {
		t.Fatalf("service weekday not found")
	}
	if !service.Monday || service.Saturday {
		t.Errorf("unexpected weekdays on %+v", service)
	}
	if service.StartDate == nil || service.StartDate.Format("20060102") != "20240101" {
		t.Errorf("unexpected StartDate %v", service.StartDate)
	}
	dates, err := reader.ServiceDates()
	if err != nil {
		t.Fatalf("failed to list service dates: %s", err)
	}
	if len(dates) != 1 || dates[0].ExceptionType != gtfs.ExceptionType_Removed {
		t.Errorf("unexpected service dates %v", dates)
	}
}

func TestImportFares(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("routes.txt", "route_id,route_type\nr1,3\n").
		Add("fare_attributes.txt",
			"fare_id,price,currency_type,payment_method,transfers\n"+
				"base,2.75,USD,1,\n").
		Add("fare_rules.txt", "fare_id,route_id,origin_id\nbase,r1,z9\n").
		Build(t))
	reader := f.reader(t)
	fare, err := reader.FareByID("base")
	if err != nil {
		t.Fatalf("failed to get fare: %s", err)
	}
	if fare.Price.String() != "2.75" {
		t.Errorf("Price = %s, want 2.75", fare.Price)
	}
	if fare.PaymentMethod != gtfs.PaymentMethod_BeforeBoarding {
		t.Errorf("PaymentMethod = %s, want BEFORE_BOARDING", fare.PaymentMethod)
	}
	if fare.Transfers != nil {
		t.Errorf("Transfers = %v, want nil for an empty cell", fare.Transfers)
	}
	zone, err := reader.ZoneByID("z9")
	if err != nil {
		t.Fatalf("failed to get zone: %s", err)
	}
	if zone == nil {
		t.Errorf("zone z9 was not materialized from fare_rules.txt")
	}
}

func TestImportTransfersRequireBothStops(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon\na,A,40.0,-74.0\nb,B,40.1,-74.1\n").
		Add("transfers.txt",
			"from_stop_id,to_stop_id,transfer_type,min_transfer_time\n"+
				"a,b,2,120\n"+
				"a,ghost,0,\n").
		Build(t))
	transfers, err := f.reader(t).Transfers()
	if err != nil {
		t.Fatalf("failed to list transfers: %s", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("got %d transfers, want 1", len(transfers))
	}
	if transfers[0].Type != gtfs.TransferType_RequiresTime {
		t.Errorf("Type = %s, want REQUIRES_TIME", transfers[0].Type)
	}
	if len(f.warns) != 1 {
		t.Errorf("got %d warnings, want 1: %v", len(f.warns), f.warns)
	}
}

func TestImportCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.client.ImportBytes(ctx, f.feedID, testutil.NewZipBuilder().Build(t), gtfs.ImportOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("import returned %v, want context.Canceled", err)
	}
}

func TestImportDirectorySource(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	for name, content := range map[string]string{
		"agency.txt":     "agency_name,agency_url,agency_timezone\nTransit,https://transit.example,UTC\n",
		"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\ns1,Stop,40.0,-74.0\n",
		"routes.txt":     "route_id,route_type\nr1,3\n",
		"trips.txt":      "route_id,service_id,trip_id\nr1,svc,t1\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nt1,09:00:00,09:00:00,s1,1\n",
		"calendar.txt":   "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %s", name, err)
		}
	}
	if err := f.client.Import(context.Background(), f.feedID, dir, gtfs.ImportOptions{}); err != nil {
		t.Fatalf("import failed: %s", err)
	}
	stops, err := f.reader(t).Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 1 {
		t.Errorf("got %d stops, want 1", len(stops))
	}
}

// Archives zipped with a single top-level folder are tolerated.
func TestImportNestedZip(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"feed/agency.txt":     "agency_name,agency_url,agency_timezone\nTransit,https://transit.example,UTC\n",
		"feed/stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\ns1,Stop,40.0,-74.0\n",
		"feed/routes.txt":     "route_id,route_type\nr1,3\n",
		"feed/trips.txt":      "route_id,service_id,trip_id\nr1,svc,t1\n",
		"feed/stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nt1,09:00:00,09:00:00,s1,1\n",
		"feed/calendar.txt":   "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n",
	} {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %s", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %s", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close archive: %s", err)
	}
	f := newFixture(t)
	f.mustImport(t, buf.Bytes())
	trip, err := f.reader(t).TripByID("t1")
	if err != nil {
		t.Fatalf("failed to get trip: %s", err)
	}
	if trip == nil {
		t.Errorf("trip t1 not imported from nested archive")
	}
}

// A blank interior line ends the table; rows after it are not read.
func TestImportStopsBlankLineEndsFile(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			"a,Alpha,40.0,-74.0\n"+
			"\n"+
			"b,Beta,40.1,-74.1\n",
	).Build(t))
	stops, err := f.reader(t).Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 1 {
		t.Errorf("got %d stops, want 1: a blank line ends the table", len(stops))
	}
}

// Two rows missing their natural key are each skipped; the second must
// not be misreported as a duplicate of the first.
func TestImportRowsWithoutKeyAreSkippedNotDeduped(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			",First,40.0,-74.0\n"+
			",Second,40.1,-74.1\n",
	).Build(t))
	want := []warnings.Warning{
		warnings.SkippedRow{SourceFile: constants.StopsFile, RowNumber: 1, Reason: "missing stop_id"},
		warnings.SkippedRow{SourceFile: constants.StopsFile, RowNumber: 2, Reason: "missing stop_id"},
	}
	if diff := cmp.Diff(f.warns, want); diff != "" {
		t.Errorf("unexpected warnings (-got, +want):\n%s", diff)
	}
	stops, err := f.reader(t).Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 0 {
		t.Errorf("got %d stops, want 0", len(stops))
	}
}

// Natural keys are unique per feed, not per import: a second import into
// the same feed drops rows whose keys are already committed.
func TestImportIntoPopulatedFeed(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\ns1,First,40.0,-74.0\n",
	).Build(t))
	f.mustImport(t, testutil.NewZipBuilder().Add("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			"s1,Renamed,41.0,-75.0\n"+
			"s2,Second,40.1,-74.1\n",
	).Build(t))

	stops, err := f.reader(t).Stops()
	if err != nil {
		t.Fatalf("failed to list stops: %s", err)
	}
	if len(stops) != 2 {
		t.Fatalf("got %d stops, want 2", len(stops))
	}
	stop, err := f.reader(t).StopByID("s1")
	if err != nil {
		t.Fatalf("failed to get stop: %s", err)
	}
	if stop.Name != "First" {
		t.Errorf("s1 name = %q, want \"First\": the committed row wins", stop.Name)
	}
	want := []warnings.Warning{
		warnings.DuplicateRow{SourceFile: constants.StopsFile, RowNumber: 1, Key: "s1"},
	}
	if diff := cmp.Diff(f.warns, want); diff != "" {
		t.Errorf("unexpected warnings (-got, +want):\n%s", diff)
	}
}
