package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/transitarchive/gtfs/constants"
	"github.com/transitarchive/gtfs/csv"
	"github.com/transitarchive/gtfs/warnings"
)

// ImportOptions configures one import.
type ImportOptions struct {
	// Warnings receives non-fatal conditions as they are encountered.
	// A nil sink discards them.
	Warnings warnings.Sink
}

// source is a uniform view over the two archive layouts an import
// accepts: a ZIP file and a directory holding the archive's contents.
type source interface {
	has(name constants.StaticFile) bool
	open(name constants.StaticFile) (io.ReadCloser, error)
	close() error
}

type zipSource struct {
	files  map[constants.StaticFile]*zip.File
	closer io.Closer
}

// newZipSource indexes the archive's entries by base name. Entries at the
// root win; entries nested under a single directory are tolerated because
// many agencies zip a folder rather than the files themselves.
func newZipSource(r *zip.Reader, closer io.Closer) *zipSource {
	src := &zipSource{files: map[constants.StaticFile]*zip.File{}, closer: closer}
	for _, file := range r.File {
		parts := strings.Split(file.Name, "/")
		if parts[len(parts)-1] == "" {
			// directory entry
			continue
		}
		var name constants.StaticFile
		switch len(parts) {
		case 1:
			name = constants.StaticFile(parts[0])
		case 2:
			name = constants.StaticFile(parts[1])
			if src.files[name] != nil {
				continue
			}
		default:
			continue
		}
		src.files[name] = file
	}
	return src
}

func (s *zipSource) has(name constants.StaticFile) bool {
	return s.files[name] != nil
}

func (s *zipSource) open(name constants.StaticFile) (io.ReadCloser, error) {
	file := s.files[name]
	if file == nil {
		return nil, fmt.Errorf("no %q entry in archive", name)
	}
	return file.Open()
}

func (s *zipSource) close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

type dirSource struct {
	root string
}

func (s *dirSource) has(name constants.StaticFile) bool {
	info, err := os.Stat(filepath.Join(s.root, string(name)))
	return err == nil && !info.IsDir()
}

func (s *dirSource) open(name constants.StaticFile) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, string(name)))
}

func (s *dirSource) close() error {
	return nil
}

func openSource(path string) (source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &SourceError{Reason: fmt.Sprintf("cannot open %s", path), Err: err}
	}
	if info.IsDir() {
		return &dirSource{root: path}, nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &SourceError{Reason: fmt.Sprintf("cannot open %s as a ZIP archive", path), Err: err}
	}
	return newZipSource(&zr.Reader, zr), nil
}

// errSkip signals that ingest dropped the current row after warning
// about it. The row does not count as accepted for duplicate
// suppression.
var errSkip = errors.New("row skipped")

// importer holds the state of one import: the feed, the resolver caches,
// and the extra columns seen so far. It lives for exactly one call to
// Client.Import.
type importer struct {
	ctx     context.Context
	storage Storage
	feed    *Feed
	reader  Reader
	res     *resolver
	warn    warnings.Sink
	logger  *slog.Logger

	extras         map[constants.Entity]map[string]bool
	pendingParents []pendingParent
}

type pendingParent struct {
	stop *Stop
	row  int
}

func (imp *importer) run(src source) error {
	if err := checkRequiredTables(src); err != nil {
		return err
	}
	for i := range tables {
		if err := imp.ctx.Err(); err != nil {
			return err
		}
		spec := &tables[i]
		if !src.has(spec.file) {
			continue
		}
		if err := imp.importTable(src, spec); err != nil {
			return err
		}
	}
	if err := imp.recordExtraColumns(); err != nil {
		return err
	}
	return rebuildGeometries(imp.ctx, imp.storage, imp.feed.ID)
}

func checkRequiredTables(src source) error {
	for i := range tables {
		if tables[i].required && !src.has(tables[i].file) {
			return &SourceError{Reason: fmt.Sprintf("missing required table %s", tables[i].file)}
		}
	}
	if !src.has(constants.CalendarFile) && !src.has(constants.CalendarDatesFile) {
		return &SourceError{Reason: fmt.Sprintf(
			"missing required table: need %s or %s", constants.CalendarFile, constants.CalendarDatesFile)}
	}
	return nil
}

// importTable ingests one file inside one transaction: either all of the
// file's rows become visible together, or none do.
func (imp *importer) importTable(src source, spec *tableSpec) error {
	// Rows committed by earlier imports count as already seen: natural
	// keys are unique per feed, not per import.
	seen := map[string]bool{}
	if spec.committed != nil {
		keys, err := spec.committed(imp.reader)
		if err != nil {
			return err
		}
		for _, key := range keys {
			seen[key] = true
		}
	}
	tx, err := imp.storage.Begin(imp.feed.ID)
	if err != nil {
		return err
	}
	extraSeen := map[string]bool{}
	passes := spec.passes
	if passes == nil {
		passes = []func(row *rowReader) bool{nil}
	}
	for i, accept := range passes {
		if err := imp.runPass(src, spec, tx, accept, i == 0, seen, extraSeen); err != nil {
			tx.Rollback()
			return err
		}
	}
	if spec.finish != nil {
		if err := spec.finish(imp, tx); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if len(extraSeen) > 0 {
		if imp.extras[spec.entity] == nil {
			imp.extras[spec.entity] = map[string]bool{}
		}
		for name := range extraSeen {
			imp.extras[spec.entity][name] = true
		}
	}
	return nil
}

func (imp *importer) runPass(src source, spec *tableSpec, tx Tx, accept func(row *rowReader) bool, first bool, seen, extraSeen map[string]bool) error {
	rc, err := src.open(spec.file)
	if err != nil {
		return &SourceError{Reason: fmt.Sprintf("cannot open %s", spec.file), Err: err}
	}
	file, err := csv.New(spec.file, rc)
	if err != nil {
		return &SourceError{Reason: fmt.Sprintf("cannot read %s", spec.file), Err: err}
	}
	defer file.Close()
	row := newRowReader(file, spec.columns)
	if missing := missingRequiredColumns(file, spec); len(missing) > 0 {
		if first {
			imp.warn.Emit(warnings.MissingColumns{SourceFile: spec.file, Columns: missing})
		}
		return nil
	}
	for file.NextRow() {
		if err := imp.ctx.Err(); err != nil {
			return err
		}
		if accept != nil && !accept(row) {
			continue
		}
		key := spec.uniqueKey(row)
		if seen[key] {
			imp.warn.Emit(warnings.DuplicateRow{
				SourceFile: spec.file, RowNumber: row.rowNumber(), Key: key,
			})
			if imp.logger != nil {
				imp.logger.Debug("dropping duplicate row",
					slog.String("file", string(spec.file)),
					slog.Int("row", row.rowNumber()),
					slog.String("key", key))
			}
			continue
		}
		if err := spec.ingest(imp, tx, row); err != nil {
			if errors.Is(err, errSkip) {
				continue
			}
			return err
		}
		seen[key] = true
		for name := range row.extras() {
			extraSeen[name] = true
		}
	}
	if err := file.Err(); err != nil {
		return &SourceError{Reason: fmt.Sprintf("cannot read %s", spec.file), Err: err}
	}
	return nil
}

func missingRequiredColumns(file *csv.File, spec *tableSpec) []string {
	var missing []string
	for _, col := range spec.columns {
		if !col.optional && file.ColumnIndex(col.name) < 0 {
			missing = append(missing, col.name)
		}
	}
	return missing
}

// recordExtraColumns folds the unknown columns seen in this import into
// the feed's memo as a sorted union, so export can re-emit them.
func (imp *importer) recordExtraColumns() error {
	if len(imp.extras) == 0 {
		return nil
	}
	if imp.feed.ExtraColumns == nil {
		imp.feed.ExtraColumns = map[constants.Entity][]string{}
	}
	for entity, names := range imp.extras {
		union := map[string]bool{}
		for _, name := range imp.feed.ExtraColumns[entity] {
			union[name] = true
		}
		for name := range names {
			union[name] = true
		}
		merged := make([]string, 0, len(union))
		for name := range union {
			merged = append(merged, name)
		}
		sort.Strings(merged)
		imp.feed.ExtraColumns[entity] = merged
	}
	return imp.storage.UpdateFeed(imp.feed)
}

func rowError(file constants.StaticFile, row *rowReader, column string, err error) error {
	return &RowError{
		File:   file,
		Row:    row.rowNumber(),
		Column: column,
		Value:  row.get(column),
		Err:    err,
	}
}

func (imp *importer) skipRow(file constants.StaticFile, row *rowReader, reason string) {
	imp.warn.Emit(warnings.SkippedRow{SourceFile: file, RowNumber: row.rowNumber(), Reason: reason})
}

func (imp *importer) dangling(file constants.StaticFile, row *rowReader, column, key string) {
	imp.warn.Emit(warnings.DanglingReference{
		SourceFile: file, RowNumber: row.rowNumber(), Column: column, Key: key,
	})
}

func ingestAgency(imp *importer, tx Tx, row *rowReader) error {
	agency := &Agency{
		FeedID:    imp.feed.ID,
		AgencyID:  row.key("agency_id"),
		Name:      row.get("agency_name"),
		URL:       row.get("agency_url"),
		Timezone:  row.get("agency_timezone"),
		Language:  row.get("agency_lang"),
		Phone:     row.get("agency_phone"),
		FareURL:   row.get("agency_fare_url"),
		Email:     row.get("agency_email"),
		ExtraData: row.extras(),
	}
	if err := tx.InsertAgency(agency); err != nil {
		return err
	}
	imp.res.addAgency(agency)
	return nil
}

func ingestStop(imp *importer, tx Tx, row *rowReader) error {
	stopID := row.key("stop_id")
	if stopID == "" {
		imp.skipRow(constants.StopsFile, row, "missing stop_id")
		return errSkip
	}
	point, err := parsePointCells(row, "stop_lon", "stop_lat")
	if err != nil {
		return err
	}
	stop := &Stop{
		FeedID:             imp.feed.ID,
		StopID:             stopID,
		Code:               row.get("stop_code"),
		Name:               row.get("stop_name"),
		Desc:               row.get("stop_desc"),
		Point:              point,
		ZoneID:             row.key("zone_id"),
		URL:                row.get("stop_url"),
		LocationType:       row.key("location_type"),
		ParentStation:      row.key("parent_station"),
		Timezone:           row.key("stop_timezone"),
		WheelchairBoarding: row.key("wheelchair_boarding"),
		ExtraData:          row.extras(),
	}
	if _, err := imp.res.zone(tx, stop.ZoneID); err != nil {
		return err
	}
	if err := tx.InsertStop(stop); err != nil {
		return err
	}
	imp.res.addStop(stop)
	if stop.ParentStation != "" {
		imp.pendingParents = append(imp.pendingParents, pendingParent{stop: stop, row: row.rowNumber()})
	}
	return nil
}

// finishStops runs after both passes over stops.txt: any parent_station
// that still names an unknown stop is nulled out with a warning.
func finishStops(imp *importer, tx Tx) error {
	for _, pending := range imp.pendingParents {
		parent, err := imp.res.stop(pending.stop.ParentStation)
		if err != nil {
			return err
		}
		if parent != nil {
			continue
		}
		imp.warn.Emit(warnings.DanglingReference{
			SourceFile: constants.StopsFile,
			RowNumber:  pending.row,
			Column:     "parent_station",
			Key:        pending.stop.ParentStation,
		})
		pending.stop.ParentStation = ""
		if err := tx.UpdateStop(pending.stop); err != nil {
			return err
		}
	}
	imp.pendingParents = nil
	return nil
}

func ingestRoute(imp *importer, tx Tx, row *rowReader) error {
	routeID := row.key("route_id")
	if routeID == "" {
		imp.skipRow(constants.RoutesFile, row, "missing route_id")
		return errSkip
	}
	routeType, err := parseInt(row.get("route_type"))
	if err != nil {
		return rowError(constants.RoutesFile, row, "route_type", err)
	}
	agencyID := row.key("agency_id")
	if agencyID != "" {
		agency, err := imp.res.agency(agencyID)
		if err != nil {
			return err
		}
		if agency == nil {
			imp.dangling(constants.RoutesFile, row, "agency_id", agencyID)
			agencyID = ""
		}
	}
	route := &Route{
		FeedID:    imp.feed.ID,
		RouteID:   routeID,
		AgencyID:  agencyID,
		ShortName: row.get("route_short_name"),
		LongName:  row.get("route_long_name"),
		Desc:      row.get("route_desc"),
		Type:      routeType,
		URL:       row.get("route_url"),
		Color:     row.key("route_color"),
		TextColor: row.key("route_text_color"),
		ExtraData: row.extras(),
	}
	if err := tx.InsertRoute(route); err != nil {
		return err
	}
	imp.res.addRoute(route)
	return nil
}

func ingestService(imp *importer, tx Tx, row *rowReader) error {
	serviceID := row.key("service_id")
	if serviceID == "" {
		imp.skipRow(constants.CalendarFile, row, "missing service_id")
		return errSkip
	}
	service := &Service{FeedID: imp.feed.ID, ServiceID: serviceID}
	for _, weekday := range []struct {
		column string
		field  *bool
	}{
		{"monday", &service.Monday},
		{"tuesday", &service.Tuesday},
		{"wednesday", &service.Wednesday},
		{"thursday", &service.Thursday},
		{"friday", &service.Friday},
		{"saturday", &service.Saturday},
		{"sunday", &service.Sunday},
	} {
		value, err := parseBool(row.get(weekday.column))
		if err != nil {
			return rowError(constants.CalendarFile, row, weekday.column, err)
		}
		*weekday.field = value
	}
	var err error
	if service.StartDate, err = parseOptionalDate(row.get("start_date")); err != nil {
		return rowError(constants.CalendarFile, row, "start_date", err)
	}
	if service.EndDate, err = parseOptionalDate(row.get("end_date")); err != nil {
		return rowError(constants.CalendarFile, row, "end_date", err)
	}
	service.ExtraData = row.extras()
	if err := tx.InsertService(service); err != nil {
		return err
	}
	imp.res.addService(service)
	return nil
}

func ingestServiceDate(imp *importer, tx Tx, row *rowReader) error {
	serviceID := row.key("service_id")
	if serviceID == "" {
		imp.skipRow(constants.CalendarDatesFile, row, "missing service_id")
		return errSkip
	}
	if _, err := imp.res.service(tx, serviceID); err != nil {
		return err
	}
	date, err := parseDate(row.get("date"))
	if err != nil {
		return rowError(constants.CalendarDatesFile, row, "date", err)
	}
	exception, err := parseInt(row.get("exception_type"))
	if err != nil {
		return rowError(constants.CalendarDatesFile, row, "exception_type", err)
	}
	if exception != 1 && exception != 2 {
		return rowError(constants.CalendarDatesFile, row, "exception_type",
			fmt.Errorf("exception type must be 1 or 2"))
	}
	serviceDate := &ServiceDate{
		FeedID:        imp.feed.ID,
		ServiceID:     serviceID,
		Date:          date,
		ExceptionType: ExceptionType(exception),
		ExtraData:     row.extras(),
	}
	return tx.InsertServiceDate(serviceDate)
}

func ingestShapePoint(imp *importer, tx Tx, row *rowReader) error {
	shapeID := row.key("shape_id")
	if shapeID == "" {
		imp.skipRow(constants.ShapesFile, row, "missing shape_id")
		return errSkip
	}
	if _, err := imp.res.shapeForPoint(tx, shapeID); err != nil {
		return err
	}
	lat, err := parseCoordinate(row.get("shape_pt_lat"))
	if err != nil {
		return rowError(constants.ShapesFile, row, "shape_pt_lat", err)
	}
	lon, err := parseCoordinate(row.get("shape_pt_lon"))
	if err != nil {
		return rowError(constants.ShapesFile, row, "shape_pt_lon", err)
	}
	sequence, err := parseInt(row.get("shape_pt_sequence"))
	if err != nil {
		return rowError(constants.ShapesFile, row, "shape_pt_sequence", err)
	}
	distTraveled, err := parseOptionalFloat(row.get("shape_dist_traveled"))
	if err != nil {
		return rowError(constants.ShapesFile, row, "shape_dist_traveled", err)
	}
	point := &ShapePoint{
		FeedID:       imp.feed.ID,
		ShapeID:      shapeID,
		Point:        Point{Lon: lon, Lat: lat},
		Sequence:     sequence,
		DistTraveled: distTraveled,
		ExtraData:    row.extras(),
	}
	return tx.InsertShapePoint(point)
}

func ingestTrip(imp *importer, tx Tx, row *rowReader) error {
	tripID := row.key("trip_id")
	if tripID == "" {
		imp.skipRow(constants.TripsFile, row, "missing trip_id")
		return errSkip
	}
	routeID := row.key("route_id")
	route, err := imp.res.route(routeID)
	if err != nil {
		return err
	}
	if route == nil {
		imp.skipRow(constants.TripsFile, row, fmt.Sprintf("unknown route %q", routeID))
		return errSkip
	}
	if _, err := imp.res.service(tx, row.key("service_id")); err != nil {
		return err
	}
	if _, err := imp.res.block(tx, row.key("block_id")); err != nil {
		return err
	}
	shapeID := row.key("shape_id")
	if shapeID != "" {
		shape, err := imp.res.shape(shapeID)
		if err != nil {
			return err
		}
		if shape == nil {
			imp.dangling(constants.TripsFile, row, "shape_id", shapeID)
			shapeID = ""
		}
	}
	trip := &Trip{
		FeedID:               imp.feed.ID,
		TripID:               tripID,
		RouteID:              routeID,
		ServiceID:            row.key("service_id"),
		BlockID:              row.key("block_id"),
		ShapeID:              shapeID,
		Headsign:             row.get("trip_headsign"),
		ShortName:            row.get("trip_short_name"),
		Direction:            row.key("direction_id"),
		WheelchairAccessible: row.key("wheelchair_accessible"),
		BikesAllowed:         row.key("bikes_allowed"),
		ExtraData:            row.extras(),
	}
	if err := tx.InsertTrip(trip); err != nil {
		return err
	}
	imp.res.addTrip(trip)
	return nil
}

func ingestStopTime(imp *importer, tx Tx, row *rowReader) error {
	tripID := row.key("trip_id")
	trip, err := imp.res.trip(tripID)
	if err != nil {
		return err
	}
	if trip == nil {
		imp.skipRow(constants.StopTimesFile, row, fmt.Sprintf("unknown trip %q", tripID))
		return errSkip
	}
	stopID := row.key("stop_id")
	stop, err := imp.res.stop(stopID)
	if err != nil {
		return err
	}
	if stop == nil {
		imp.skipRow(constants.StopTimesFile, row, fmt.Sprintf("unknown stop %q", stopID))
		return errSkip
	}
	arrival, err := parseOptionalTime(row.get("arrival_time"))
	if err != nil {
		return rowError(constants.StopTimesFile, row, "arrival_time", err)
	}
	departure, err := parseOptionalTime(row.get("departure_time"))
	if err != nil {
		return rowError(constants.StopTimesFile, row, "departure_time", err)
	}
	sequence, err := parseInt(row.get("stop_sequence"))
	if err != nil {
		return rowError(constants.StopTimesFile, row, "stop_sequence", err)
	}
	distTraveled, err := parseOptionalFloat(row.get("shape_dist_traveled"))
	if err != nil {
		return rowError(constants.StopTimesFile, row, "shape_dist_traveled", err)
	}
	stopTime := &StopTime{
		FeedID:            imp.feed.ID,
		TripID:            tripID,
		StopID:            stopID,
		ArrivalTime:       arrival,
		DepartureTime:     departure,
		StopSequence:      sequence,
		Headsign:          row.get("stop_headsign"),
		PickupType:        row.key("pickup_type"),
		DropOffType:       row.key("drop_off_type"),
		ShapeDistTraveled: distTraveled,
		ExtraData:         row.extras(),
	}
	return tx.InsertStopTime(stopTime)
}

func ingestFrequency(imp *importer, tx Tx, row *rowReader) error {
	tripID := row.key("trip_id")
	trip, err := imp.res.trip(tripID)
	if err != nil {
		return err
	}
	if trip == nil {
		imp.skipRow(constants.FrequenciesFile, row, fmt.Sprintf("unknown trip %q", tripID))
		return errSkip
	}
	startTime, err := ParseTime(row.get("start_time"))
	if err != nil {
		return rowError(constants.FrequenciesFile, row, "start_time", err)
	}
	endTime, err := ParseTime(row.get("end_time"))
	if err != nil {
		return rowError(constants.FrequenciesFile, row, "end_time", err)
	}
	headway, err := parseInt(row.get("headway_secs"))
	if err != nil {
		return rowError(constants.FrequenciesFile, row, "headway_secs", err)
	}
	frequency := &Frequency{
		FeedID:      imp.feed.ID,
		TripID:      tripID,
		StartTime:   startTime,
		EndTime:     endTime,
		HeadwaySecs: headway,
		ExactTimes:  parseExactTimes(row.key("exact_times")),
		ExtraData:   row.extras(),
	}
	return tx.InsertFrequency(frequency)
}

func ingestFare(imp *importer, tx Tx, row *rowReader) error {
	fareID := row.key("fare_id")
	if fareID == "" {
		imp.skipRow(constants.FareAttributesFile, row, "missing fare_id")
		return errSkip
	}
	price, err := ParseDecimal(row.get("price"))
	if err != nil {
		return rowError(constants.FareAttributesFile, row, "price", err)
	}
	transfers, err := parseOptionalInt(row.get("transfers"))
	if err != nil {
		return rowError(constants.FareAttributesFile, row, "transfers", err)
	}
	transferDuration, err := parseOptionalInt(row.get("transfer_duration"))
	if err != nil {
		return rowError(constants.FareAttributesFile, row, "transfer_duration", err)
	}
	fare := &Fare{
		FeedID:           imp.feed.ID,
		FareID:           fareID,
		Price:            price,
		Currency:         row.key("currency_type"),
		PaymentMethod:    parsePaymentMethod(row.key("payment_method")),
		Transfers:        transfers,
		TransferDuration: transferDuration,
		ExtraData:        row.extras(),
	}
	if err := tx.InsertFare(fare); err != nil {
		return err
	}
	imp.res.addFare(fare)
	return nil
}

func ingestFareRule(imp *importer, tx Tx, row *rowReader) error {
	fareID := row.key("fare_id")
	fare, err := imp.res.fare(fareID)
	if err != nil {
		return err
	}
	if fare == nil {
		imp.skipRow(constants.FareRulesFile, row, fmt.Sprintf("unknown fare %q", fareID))
		return errSkip
	}
	routeID := row.key("route_id")
	if routeID != "" {
		route, err := imp.res.route(routeID)
		if err != nil {
			return err
		}
		if route == nil {
			imp.dangling(constants.FareRulesFile, row, "route_id", routeID)
			routeID = ""
		}
	}
	rule := &FareRule{
		FeedID:        imp.feed.ID,
		FareID:        fareID,
		RouteID:       routeID,
		OriginID:      row.key("origin_id"),
		DestinationID: row.key("destination_id"),
		ContainsID:    row.key("contains_id"),
		ExtraData:     row.extras(),
	}
	for _, zoneID := range []string{rule.OriginID, rule.DestinationID, rule.ContainsID} {
		if _, err := imp.res.zone(tx, zoneID); err != nil {
			return err
		}
	}
	return tx.InsertFareRule(rule)
}

func ingestTransfer(imp *importer, tx Tx, row *rowReader) error {
	fromStopID := row.key("from_stop_id")
	fromStop, err := imp.res.stop(fromStopID)
	if err != nil {
		return err
	}
	if fromStop == nil {
		imp.skipRow(constants.TransfersFile, row, fmt.Sprintf("unknown stop %q", fromStopID))
		return errSkip
	}
	toStopID := row.key("to_stop_id")
	toStop, err := imp.res.stop(toStopID)
	if err != nil {
		return err
	}
	if toStop == nil {
		imp.skipRow(constants.TransfersFile, row, fmt.Sprintf("unknown stop %q", toStopID))
		return errSkip
	}
	minTransferTime, err := parseOptionalInt(row.get("min_transfer_time"))
	if err != nil {
		return rowError(constants.TransfersFile, row, "min_transfer_time", err)
	}
	transfer := &Transfer{
		FeedID:          imp.feed.ID,
		FromStopID:      fromStopID,
		ToStopID:        toStopID,
		Type:            parseTransferType(row.key("transfer_type")),
		MinTransferTime: minTransferTime,
		ExtraData:       row.extras(),
	}
	return tx.InsertTransfer(transfer)
}

func ingestFeedInfo(imp *importer, tx Tx, row *rowReader) error {
	startDate, err := parseOptionalDate(row.get("feed_start_date"))
	if err != nil {
		return rowError(constants.FeedInfoFile, row, "feed_start_date", err)
	}
	endDate, err := parseOptionalDate(row.get("feed_end_date"))
	if err != nil {
		return rowError(constants.FeedInfoFile, row, "feed_end_date", err)
	}
	info := &FeedInfo{
		FeedID:        imp.feed.ID,
		PublisherName: row.get("feed_publisher_name"),
		PublisherURL:  row.get("feed_publisher_url"),
		Language:      row.get("feed_lang"),
		StartDate:     startDate,
		EndDate:       endDate,
		Version:       row.get("feed_version"),
		ExtraData:     row.extras(),
	}
	return tx.InsertFeedInfo(info)
}

// parsePointCells builds a 2-D point from a pair of coordinate columns.
// Both empty yields a nil point; exactly one empty is malformed.
func parsePointCells(row *rowReader, lonColumn, latColumn string) (*Point, error) {
	lonRaw := naturalKey(row.get(lonColumn))
	latRaw := naturalKey(row.get(latColumn))
	if lonRaw == "" && latRaw == "" {
		return nil, nil
	}
	lon, err := parseCoordinate(lonRaw)
	if err != nil {
		return nil, rowError(constants.StopsFile, row, lonColumn, err)
	}
	lat, err := parseCoordinate(latRaw)
	if err != nil {
		return nil, rowError(constants.StopsFile, row, latColumn, err)
	}
	return &Point{Lon: lon, Lat: lat}, nil
}

// zip readers over byte slices share the zipSource machinery.
func newBytesSource(content []byte) (source, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &SourceError{Reason: "cannot read content as a ZIP archive", Err: err}
	}
	return newZipSource(zr, nil), nil
}
