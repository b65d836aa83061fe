package gtfs

import (
	"strings"

	"github.com/transitarchive/gtfs/constants"
	"github.com/transitarchive/gtfs/csv"
)

// tableSpec describes one GTFS table: its file name, the entity kind it
// produces, its declared columns, the key that suppresses duplicate rows
// within one import, and the codec hooks for each direction.
type tableSpec struct {
	file     constants.StaticFile
	entity   constants.Entity
	required bool
	columns  []columnSpec
	// uniqueKey identifies a row for duplicate suppression. First seen
	// wins; later rows with the same key are dropped.
	uniqueKey func(row *rowReader) string
	// committed returns the unique keys of the feed's existing rows, so
	// a later import cannot insert a colliding row.
	committed func(r Reader) ([]string, error)
	// passes filter rows per iteration of the file. Most tables have a
	// single pass over all rows; stops.txt declares two.
	passes []func(row *rowReader) bool
	// ingest converts one accepted row into entities inside the file's
	// transaction.
	ingest func(imp *importer, tx Tx, row *rowReader) error
	// finish runs after all passes of the file, still inside its
	// transaction.
	finish func(imp *importer, tx Tx) error
	// export gathers the feed's rows for emission.
	export func(x *exporter) ([]exportRow, error)
}

type columnSpec struct {
	name string
	// optional columns are pruned from export when every value in the
	// feed is blank.
	optional bool
}

// rowReader exposes the current CSV row through declared column names. It
// also tracks the header's undeclared columns, whose values are preserved
// as extra data rather than dropped.
type rowReader struct {
	file       *csv.File
	indexes    map[string]int
	extraIdx   []int
	extraNames []string

	extrasRow int
	extrasMap map[string]string
}

func newRowReader(file *csv.File, columns []columnSpec) *rowReader {
	indexes := make(map[string]int, len(columns))
	declared := make(map[string]bool, len(columns))
	for _, col := range columns {
		indexes[col.name] = file.ColumnIndex(col.name)
		declared[col.name] = true
	}
	r := &rowReader{file: file, indexes: indexes, extrasRow: -1}
	for i, header := range file.Headers() {
		if !declared[header] {
			r.extraIdx = append(r.extraIdx, i)
			r.extraNames = append(r.extraNames, header)
		}
	}
	return r
}

// get returns the raw cell for a declared column, or "" if the header
// does not carry it.
func (r *rowReader) get(name string) string {
	i, ok := r.indexes[name]
	if !ok {
		return ""
	}
	return r.file.Cell(i)
}

// key returns the cell normalised as a natural key: surrounding
// whitespace stripped, whitespace-only treated as empty.
func (r *rowReader) key(name string) string {
	return naturalKey(r.get(name))
}

func (r *rowReader) rowNumber() int {
	return r.file.RowNumber()
}

// extras returns the current row's non-empty cells under undeclared
// columns, or nil if there are none. The map is computed once per row.
func (r *rowReader) extras() map[string]string {
	if r.extrasRow == r.file.RowNumber() {
		return r.extrasMap
	}
	r.extrasRow = r.file.RowNumber()
	r.extrasMap = nil
	for j, i := range r.extraIdx {
		if cell := r.file.Cell(i); cell != "" {
			if r.extrasMap == nil {
				r.extrasMap = map[string]string{}
			}
			r.extrasMap[r.extraNames[j]] = cell
		}
	}
	return r.extrasMap
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// canonicalInt normalises a numeric key cell so "02" and "2" collide.
// Unparseable cells pass through as written.
func canonicalInt(raw string) string {
	n, err := parseInt(raw)
	if err != nil {
		return raw
	}
	return formatInt(n)
}

// canonicalTime normalises a clock key cell so "6:00:00" and "06:00:00"
// collide. Unparseable cells pass through as written.
func canonicalTime(raw string) string {
	t, err := ParseTime(raw)
	if err != nil {
		return raw
	}
	return t.String()
}

// committedKeys builds the unique keys of one table's committed rows.
func committedKeys[T any](list func() ([]T, error), key func(T) string) ([]string, error) {
	rows, err := list()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = key(row)
	}
	return keys, nil
}

// The registry. Order is the fixed ingestion order of §import; stops.txt
// is read twice, stations first, so that parent_station references
// resolve even when a file orders parents after children.
var tables = []tableSpec{
	{
		file:     constants.AgencyFile,
		entity:   constants.Agency,
		required: true,
		columns: []columnSpec{
			{name: "agency_id", optional: true},
			{name: "agency_name"},
			{name: "agency_url"},
			{name: "agency_timezone"},
			{name: "agency_lang", optional: true},
			{name: "agency_phone", optional: true},
			{name: "agency_fare_url", optional: true},
			{name: "agency_email", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("agency_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Agencies, func(a *Agency) string { return a.AgencyID })
		},
		ingest: ingestAgency,
		export: exportAgencies,
	},
	{
		file:     constants.StopsFile,
		entity:   constants.Stop,
		required: true,
		columns: []columnSpec{
			{name: "stop_id"},
			{name: "stop_code", optional: true},
			{name: "stop_name"},
			{name: "stop_desc", optional: true},
			{name: "stop_lat"},
			{name: "stop_lon"},
			{name: "zone_id", optional: true},
			{name: "stop_url", optional: true},
			{name: "location_type", optional: true},
			{name: "parent_station", optional: true},
			{name: "stop_timezone", optional: true},
			{name: "wheelchair_boarding", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("stop_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Stops, func(s *Stop) string { return s.StopID })
		},
		passes: []func(row *rowReader) bool{
			func(row *rowReader) bool { return naturalKey(row.get("location_type")) == "1" },
			func(row *rowReader) bool { return naturalKey(row.get("location_type")) != "1" },
		},
		ingest: ingestStop,
		finish: finishStops,
		export: exportStops,
	},
	{
		file:     constants.RoutesFile,
		entity:   constants.Route,
		required: true,
		columns: []columnSpec{
			{name: "route_id"},
			{name: "agency_id", optional: true},
			{name: "route_short_name", optional: true},
			{name: "route_long_name", optional: true},
			{name: "route_desc", optional: true},
			{name: "route_type"},
			{name: "route_url", optional: true},
			{name: "route_color", optional: true},
			{name: "route_text_color", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("route_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Routes, func(rt *Route) string { return rt.RouteID })
		},
		ingest: ingestRoute,
		export: exportRoutes,
	},
	{
		file:   constants.CalendarFile,
		entity: constants.Service,
		columns: []columnSpec{
			{name: "service_id"},
			{name: "monday"},
			{name: "tuesday"},
			{name: "wednesday"},
			{name: "thursday"},
			{name: "friday"},
			{name: "saturday"},
			{name: "sunday"},
			{name: "start_date"},
			{name: "end_date"},
		},
		uniqueKey: func(row *rowReader) string { return row.key("service_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Services, func(s *Service) string { return s.ServiceID })
		},
		ingest: ingestService,
		export: exportServices,
	},
	{
		file:   constants.CalendarDatesFile,
		entity: constants.ServiceDate,
		columns: []columnSpec{
			{name: "service_id"},
			{name: "date"},
			{name: "exception_type"},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("service_id"), row.key("date"))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.ServiceDates, func(d *ServiceDate) string {
				return joinKey(d.ServiceID, formatDate(d.Date))
			})
		},
		ingest: ingestServiceDate,
		export: exportServiceDates,
	},
	{
		file:   constants.ShapesFile,
		entity: constants.ShapePoint,
		columns: []columnSpec{
			{name: "shape_id"},
			{name: "shape_pt_lat"},
			{name: "shape_pt_lon"},
			{name: "shape_pt_sequence"},
			{name: "shape_dist_traveled", optional: true},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("shape_id"), canonicalInt(row.key("shape_pt_sequence")))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.ShapePoints, func(p *ShapePoint) string {
				return joinKey(p.ShapeID, formatInt(p.Sequence))
			})
		},
		ingest: ingestShapePoint,
		export: exportShapePoints,
	},
	{
		file:     constants.TripsFile,
		entity:   constants.Trip,
		required: true,
		columns: []columnSpec{
			{name: "route_id"},
			{name: "service_id"},
			{name: "trip_id"},
			{name: "trip_headsign", optional: true},
			{name: "trip_short_name", optional: true},
			{name: "direction_id", optional: true},
			{name: "block_id", optional: true},
			{name: "shape_id", optional: true},
			{name: "wheelchair_accessible", optional: true},
			{name: "bikes_allowed", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("trip_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Trips, func(t *Trip) string { return t.TripID })
		},
		ingest: ingestTrip,
		export: exportTrips,
	},
	{
		file:     constants.StopTimesFile,
		entity:   constants.StopTime,
		required: true,
		columns: []columnSpec{
			{name: "trip_id"},
			{name: "arrival_time"},
			{name: "departure_time"},
			{name: "stop_id"},
			{name: "stop_sequence"},
			{name: "stop_headsign", optional: true},
			{name: "pickup_type", optional: true},
			{name: "drop_off_type", optional: true},
			{name: "shape_dist_traveled", optional: true},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("trip_id"), canonicalInt(row.key("stop_sequence")))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.StopTimes, func(st *StopTime) string {
				return joinKey(st.TripID, formatInt(st.StopSequence))
			})
		},
		ingest: ingestStopTime,
		export: exportStopTimes,
	},
	{
		file:   constants.FrequenciesFile,
		entity: constants.Frequency,
		columns: []columnSpec{
			{name: "trip_id"},
			{name: "start_time"},
			{name: "end_time"},
			{name: "headway_secs"},
			{name: "exact_times", optional: true},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("trip_id"), canonicalTime(row.key("start_time")))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Frequencies, func(f *Frequency) string {
				return joinKey(f.TripID, f.StartTime.String())
			})
		},
		ingest: ingestFrequency,
		export: exportFrequencies,
	},
	{
		file:   constants.FareAttributesFile,
		entity: constants.Fare,
		columns: []columnSpec{
			{name: "fare_id"},
			{name: "price"},
			{name: "currency_type"},
			{name: "payment_method"},
			{name: "transfers"},
			{name: "transfer_duration", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("fare_id") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Fares, func(f *Fare) string { return f.FareID })
		},
		ingest: ingestFare,
		export: exportFares,
	},
	{
		file:   constants.FareRulesFile,
		entity: constants.FareRule,
		columns: []columnSpec{
			{name: "fare_id"},
			{name: "route_id", optional: true},
			{name: "origin_id", optional: true},
			{name: "destination_id", optional: true},
			{name: "contains_id", optional: true},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("fare_id"), row.key("route_id"),
				row.key("origin_id"), row.key("destination_id"), row.key("contains_id"))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.FareRules, func(fr *FareRule) string {
				return joinKey(fr.FareID, fr.RouteID, fr.OriginID, fr.DestinationID, fr.ContainsID)
			})
		},
		ingest: ingestFareRule,
		export: exportFareRules,
	},
	{
		file:   constants.TransfersFile,
		entity: constants.Transfer,
		columns: []columnSpec{
			{name: "from_stop_id"},
			{name: "to_stop_id"},
			{name: "transfer_type"},
			{name: "min_transfer_time", optional: true},
		},
		uniqueKey: func(row *rowReader) string {
			return joinKey(row.key("from_stop_id"), row.key("to_stop_id"))
		},
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.Transfers, func(t *Transfer) string {
				return joinKey(t.FromStopID, t.ToStopID)
			})
		},
		ingest: ingestTransfer,
		export: exportTransfers,
	},
	{
		file:   constants.FeedInfoFile,
		entity: constants.FeedInfo,
		columns: []columnSpec{
			{name: "feed_publisher_name"},
			{name: "feed_publisher_url"},
			{name: "feed_lang"},
			{name: "feed_start_date", optional: true},
			{name: "feed_end_date", optional: true},
			{name: "feed_version", optional: true},
		},
		uniqueKey: func(row *rowReader) string { return row.key("feed_publisher_name") },
		committed: func(r Reader) ([]string, error) {
			return committedKeys(r.FeedInfos, func(i *FeedInfo) string {
				return naturalKey(i.PublisherName)
			})
		},
		ingest: ingestFeedInfo,
		export: exportFeedInfo,
	},
}

// exportOrder is the fixed order of entries in an exported archive.
var exportOrder = []constants.StaticFile{
	constants.AgencyFile,
	constants.CalendarFile,
	constants.CalendarDatesFile,
	constants.FareAttributesFile,
	constants.FareRulesFile,
	constants.FeedInfoFile,
	constants.FrequenciesFile,
	constants.RoutesFile,
	constants.ShapesFile,
	constants.StopTimesFile,
	constants.StopsFile,
	constants.TransfersFile,
	constants.TripsFile,
}

func tableFor(file constants.StaticFile) *tableSpec {
	for i := range tables {
		if tables[i].file == file {
			return &tables[i]
		}
	}
	return nil
}
