// Package sqlite provides a durable gtfs.Storage backed by an embedded
// SQLite database. The schema is applied on Open; feeds cascade-delete
// the entities they own.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/transitarchive/gtfs"
	"github.com/transitarchive/gtfs/constants"
)

const schema = `
CREATE TABLE IF NOT EXISTS feeds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL,
	extra_columns TEXT
);

CREATE TABLE IF NOT EXISTS agencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	agency_id TEXT NOT NULL,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	timezone TEXT NOT NULL,
	language TEXT NOT NULL,
	phone TEXT NOT NULL,
	fare_url TEXT NOT NULL,
	email TEXT NOT NULL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS agencies_by_key ON agencies (feed_id, agency_id);

CREATE TABLE IF NOT EXISTS zones (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	zone_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS zones_by_key ON zones (feed_id, zone_id);

CREATE TABLE IF NOT EXISTS blocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	block_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS blocks_by_key ON blocks (feed_id, block_id);

CREATE TABLE IF NOT EXISTS stops (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	stop_id TEXT NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	lon REAL,
	lat REAL,
	zone_id TEXT NOT NULL,
	url TEXT NOT NULL,
	location_type TEXT NOT NULL,
	parent_station TEXT NOT NULL,
	timezone TEXT NOT NULL,
	wheelchair_boarding TEXT NOT NULL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS stops_by_key ON stops (feed_id, stop_id);

CREATE TABLE IF NOT EXISTS routes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	route_id TEXT NOT NULL,
	agency_id TEXT NOT NULL,
	short_name TEXT NOT NULL,
	long_name TEXT NOT NULL,
	description TEXT NOT NULL,
	type INTEGER NOT NULL,
	url TEXT NOT NULL,
	color TEXT NOT NULL,
	text_color TEXT NOT NULL,
	geometry TEXT,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS routes_by_key ON routes (feed_id, route_id);

CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	service_id TEXT NOT NULL,
	monday INTEGER NOT NULL,
	tuesday INTEGER NOT NULL,
	wednesday INTEGER NOT NULL,
	thursday INTEGER NOT NULL,
	friday INTEGER NOT NULL,
	saturday INTEGER NOT NULL,
	sunday INTEGER NOT NULL,
	start_date TEXT,
	end_date TEXT,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS services_by_key ON services (feed_id, service_id);

CREATE TABLE IF NOT EXISTS service_dates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	service_id TEXT NOT NULL,
	date TEXT NOT NULL,
	exception_type INTEGER NOT NULL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS service_dates_by_service ON service_dates (feed_id, service_id);

CREATE TABLE IF NOT EXISTS shapes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	shape_id TEXT NOT NULL,
	geometry TEXT
);
CREATE INDEX IF NOT EXISTS shapes_by_key ON shapes (feed_id, shape_id);

CREATE TABLE IF NOT EXISTS shape_points (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	shape_id TEXT NOT NULL,
	lon REAL NOT NULL,
	lat REAL NOT NULL,
	sequence INTEGER NOT NULL,
	dist_traveled REAL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS shape_points_by_shape ON shape_points (feed_id, shape_id, sequence);

CREATE TABLE IF NOT EXISTS trips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	trip_id TEXT NOT NULL,
	route_id TEXT NOT NULL,
	service_id TEXT NOT NULL,
	block_id TEXT NOT NULL,
	shape_id TEXT NOT NULL,
	headsign TEXT NOT NULL,
	short_name TEXT NOT NULL,
	direction TEXT NOT NULL,
	wheelchair_accessible TEXT NOT NULL,
	bikes_allowed TEXT NOT NULL,
	geometry TEXT,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS trips_by_key ON trips (feed_id, trip_id);
CREATE INDEX IF NOT EXISTS trips_by_route ON trips (feed_id, route_id);
CREATE INDEX IF NOT EXISTS trips_by_shape ON trips (feed_id, shape_id);

CREATE TABLE IF NOT EXISTS stop_times (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	trip_id TEXT NOT NULL,
	stop_id TEXT NOT NULL,
	arrival_time INTEGER,
	departure_time INTEGER,
	stop_sequence INTEGER NOT NULL,
	headsign TEXT NOT NULL,
	pickup_type TEXT NOT NULL,
	drop_off_type TEXT NOT NULL,
	shape_dist_traveled REAL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS stop_times_by_trip ON stop_times (feed_id, trip_id, stop_sequence);
CREATE INDEX IF NOT EXISTS stop_times_by_stop ON stop_times (feed_id, stop_id);

CREATE TABLE IF NOT EXISTS frequencies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	trip_id TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	headway_secs INTEGER NOT NULL,
	exact_times INTEGER NOT NULL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS frequencies_by_trip ON frequencies (feed_id, trip_id);

CREATE TABLE IF NOT EXISTS fares (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	fare_id TEXT NOT NULL,
	price TEXT NOT NULL,
	currency TEXT NOT NULL,
	payment_method INTEGER NOT NULL,
	transfers INTEGER,
	transfer_duration INTEGER,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS fares_by_key ON fares (feed_id, fare_id);

CREATE TABLE IF NOT EXISTS fare_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	fare_id TEXT NOT NULL,
	route_id TEXT NOT NULL,
	origin_id TEXT NOT NULL,
	destination_id TEXT NOT NULL,
	contains_id TEXT NOT NULL,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS fare_rules_by_fare ON fare_rules (feed_id, fare_id);

CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	from_stop_id TEXT NOT NULL,
	to_stop_id TEXT NOT NULL,
	type INTEGER NOT NULL,
	min_transfer_time INTEGER,
	extra_data TEXT
);

CREATE TABLE IF NOT EXISTS feed_infos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	publisher_name TEXT NOT NULL,
	publisher_url TEXT NOT NULL,
	language TEXT NOT NULL,
	start_date TEXT,
	end_date TEXT,
	version TEXT NOT NULL,
	extra_data TEXT
);

CREATE TABLE IF NOT EXISTS route_directions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
	route_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	name TEXT NOT NULL
);
`

// Storage implements gtfs.Storage on a SQLite database file.
type Storage struct {
	db *sql.DB
}

var _ gtfs.Storage = (*Storage)(nil)

func Open(path string) (*Storage, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

const dateLayout = "20060102"

func encodeJSON(v any, empty bool) any {
	if empty {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func encodeExtra(m map[string]string) any  { return encodeJSON(m, len(m) == 0) }
func encodeLine(l gtfs.Line) any           { return encodeJSON(l, len(l) == 0) }
func encodeMultiLine(m gtfs.MultiLine) any { return encodeJSON(m, len(m) == 0) }

func decodeJSON(s sql.NullString, v any) error {
	if !s.Valid {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

func encodeDate(t time.Time) string { return t.Format(dateLayout) }

func encodeOptionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeDate(*t)
}

func decodeDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func decodeOptionalDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeOptionalTime(t *gtfs.Time) any {
	if t == nil {
		return nil
	}
	return int64(*t)
}

func decodeOptionalTime(n sql.NullInt64) *gtfs.Time {
	if !n.Valid {
		return nil
	}
	t := gtfs.Time(n.Int64)
	return &t
}

func encodeOptionalInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func decodeOptionalInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func encodeOptionalFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func decodeOptionalFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (s *Storage) CreateFeed(feed *gtfs.Feed) error {
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO feeds (name, created_at, extra_columns) VALUES (?, ?, ?)`,
		feed.Name, feed.CreatedAt.Format(time.RFC3339Nano),
		encodeJSON(feed.ExtraColumns, len(feed.ExtraColumns) == 0))
	if err != nil {
		return err
	}
	feed.ID, err = res.LastInsertId()
	return err
}

func (s *Storage) GetFeed(id int64) (*gtfs.Feed, error) {
	row := s.db.QueryRow(`SELECT id, name, created_at, extra_columns FROM feeds WHERE id = ?`, id)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return feed, err
}

func (s *Storage) ListFeeds() ([]*gtfs.Feed, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at, extra_columns FROM feeds ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var feeds []*gtfs.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

func scanFeed(row scanner) (*gtfs.Feed, error) {
	var feed gtfs.Feed
	var createdAt string
	var extraColumns sql.NullString
	if err := row.Scan(&feed.ID, &feed.Name, &createdAt, &extraColumns); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	feed.CreatedAt = t
	var columns map[constants.Entity][]string
	if err := decodeJSON(extraColumns, &columns); err != nil {
		return nil, err
	}
	feed.ExtraColumns = columns
	return &feed, nil
}

func (s *Storage) UpdateFeed(feed *gtfs.Feed) error {
	res, err := s.db.Exec(
		`UPDATE feeds SET name = ?, extra_columns = ? WHERE id = ?`,
		feed.Name, encodeJSON(feed.ExtraColumns, len(feed.ExtraColumns) == 0), feed.ID)
	if err != nil {
		return err
	}
	return requireRow(res, feed.ID)
}

func (s *Storage) DeleteFeed(id int64) error {
	res, err := s.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, feedID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no feed with id %d", feedID)
	}
	return nil
}

func (s *Storage) Begin(feedID int64) (gtfs.Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, feedID: feedID}, nil
}

func (s *Storage) Reader(feedID int64) (gtfs.Reader, error) {
	return &reader{db: s.db, feedID: feedID}, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Tx implements gtfs.Tx over one SQLite transaction.
type Tx struct {
	tx     *sql.Tx
	feedID int64
}

func (t *Tx) insert(query string, id *int64, args ...any) error {
	res, err := t.tx.Exec(query, args...)
	if err != nil {
		return err
	}
	*id, err = res.LastInsertId()
	return err
}

func (t *Tx) InsertAgency(a *gtfs.Agency) error {
	a.FeedID = t.feedID
	return t.insert(
		`INSERT INTO agencies (feed_id, agency_id, name, url, timezone, language, phone, fare_url, email, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&a.ID, t.feedID, a.AgencyID, a.Name, a.URL, a.Timezone, a.Language, a.Phone, a.FareURL, a.Email,
		encodeExtra(a.ExtraData))
}

func (t *Tx) InsertZone(z *gtfs.Zone) error {
	z.FeedID = t.feedID
	return t.insert(`INSERT INTO zones (feed_id, zone_id) VALUES (?, ?)`, &z.ID, t.feedID, z.ZoneID)
}

func (t *Tx) InsertBlock(b *gtfs.Block) error {
	b.FeedID = t.feedID
	return t.insert(`INSERT INTO blocks (feed_id, block_id) VALUES (?, ?)`, &b.ID, t.feedID, b.BlockID)
}

func stopPointArgs(s *gtfs.Stop) (lon, lat any) {
	if s.Point == nil {
		return nil, nil
	}
	return s.Point.Lon, s.Point.Lat
}

func (t *Tx) InsertStop(s *gtfs.Stop) error {
	s.FeedID = t.feedID
	lon, lat := stopPointArgs(s)
	return t.insert(
		`INSERT INTO stops (feed_id, stop_id, code, name, description, lon, lat, zone_id, url, location_type, parent_station, timezone, wheelchair_boarding, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&s.ID, t.feedID, s.StopID, s.Code, s.Name, s.Desc, lon, lat, s.ZoneID, s.URL,
		s.LocationType, s.ParentStation, s.Timezone, s.WheelchairBoarding, encodeExtra(s.ExtraData))
}

func (t *Tx) InsertRoute(r *gtfs.Route) error {
	r.FeedID = t.feedID
	return t.insert(
		`INSERT INTO routes (feed_id, route_id, agency_id, short_name, long_name, description, type, url, color, text_color, geometry, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&r.ID, t.feedID, r.RouteID, r.AgencyID, r.ShortName, r.LongName, r.Desc, r.Type, r.URL,
		r.Color, r.TextColor, encodeMultiLine(r.Geometry), encodeExtra(r.ExtraData))
}

func (t *Tx) InsertService(s *gtfs.Service) error {
	s.FeedID = t.feedID
	return t.insert(
		`INSERT INTO services (feed_id, service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&s.ID, t.feedID, s.ServiceID, s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday,
		s.Saturday, s.Sunday, encodeOptionalDate(s.StartDate), encodeOptionalDate(s.EndDate),
		encodeExtra(s.ExtraData))
}

func (t *Tx) InsertServiceDate(d *gtfs.ServiceDate) error {
	d.FeedID = t.feedID
	return t.insert(
		`INSERT INTO service_dates (feed_id, service_id, date, exception_type, extra_data)
		 VALUES (?, ?, ?, ?, ?)`,
		&d.ID, t.feedID, d.ServiceID, encodeDate(d.Date), int(d.ExceptionType), encodeExtra(d.ExtraData))
}

func (t *Tx) InsertShape(s *gtfs.Shape) error {
	s.FeedID = t.feedID
	return t.insert(
		`INSERT INTO shapes (feed_id, shape_id, geometry) VALUES (?, ?, ?)`,
		&s.ID, t.feedID, s.ShapeID, encodeLine(s.Geometry))
}

func (t *Tx) InsertShapePoint(p *gtfs.ShapePoint) error {
	p.FeedID = t.feedID
	return t.insert(
		`INSERT INTO shape_points (feed_id, shape_id, lon, lat, sequence, dist_traveled, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&p.ID, t.feedID, p.ShapeID, p.Point.Lon, p.Point.Lat, p.Sequence,
		encodeOptionalFloat(p.DistTraveled), encodeExtra(p.ExtraData))
}

func (t *Tx) InsertTrip(trip *gtfs.Trip) error {
	trip.FeedID = t.feedID
	return t.insert(
		`INSERT INTO trips (feed_id, trip_id, route_id, service_id, block_id, shape_id, headsign, short_name, direction, wheelchair_accessible, bikes_allowed, geometry, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&trip.ID, t.feedID, trip.TripID, trip.RouteID, trip.ServiceID, trip.BlockID, trip.ShapeID,
		trip.Headsign, trip.ShortName, trip.Direction, trip.WheelchairAccessible, trip.BikesAllowed,
		encodeLine(trip.Geometry), encodeExtra(trip.ExtraData))
}

func (t *Tx) InsertStopTime(st *gtfs.StopTime) error {
	st.FeedID = t.feedID
	return t.insert(
		`INSERT INTO stop_times (feed_id, trip_id, stop_id, arrival_time, departure_time, stop_sequence, headsign, pickup_type, drop_off_type, shape_dist_traveled, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&st.ID, t.feedID, st.TripID, st.StopID, encodeOptionalTime(st.ArrivalTime),
		encodeOptionalTime(st.DepartureTime), st.StopSequence, st.Headsign, st.PickupType,
		st.DropOffType, encodeOptionalFloat(st.ShapeDistTraveled), encodeExtra(st.ExtraData))
}

func (t *Tx) InsertFrequency(f *gtfs.Frequency) error {
	f.FeedID = t.feedID
	return t.insert(
		`INSERT INTO frequencies (feed_id, trip_id, start_time, end_time, headway_secs, exact_times, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&f.ID, t.feedID, f.TripID, int64(f.StartTime), int64(f.EndTime), f.HeadwaySecs,
		int(f.ExactTimes), encodeExtra(f.ExtraData))
}

func (t *Tx) InsertFare(f *gtfs.Fare) error {
	f.FeedID = t.feedID
	return t.insert(
		`INSERT INTO fares (feed_id, fare_id, price, currency, payment_method, transfers, transfer_duration, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&f.ID, t.feedID, f.FareID, f.Price.String(), f.Currency, int(f.PaymentMethod),
		encodeOptionalInt(f.Transfers), encodeOptionalInt(f.TransferDuration), encodeExtra(f.ExtraData))
}

func (t *Tx) InsertFareRule(r *gtfs.FareRule) error {
	r.FeedID = t.feedID
	return t.insert(
		`INSERT INTO fare_rules (feed_id, fare_id, route_id, origin_id, destination_id, contains_id, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&r.ID, t.feedID, r.FareID, r.RouteID, r.OriginID, r.DestinationID, r.ContainsID,
		encodeExtra(r.ExtraData))
}

func (t *Tx) InsertTransfer(tr *gtfs.Transfer) error {
	tr.FeedID = t.feedID
	return t.insert(
		`INSERT INTO transfers (feed_id, from_stop_id, to_stop_id, type, min_transfer_time, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&tr.ID, t.feedID, tr.FromStopID, tr.ToStopID, int(tr.Type),
		encodeOptionalInt(tr.MinTransferTime), encodeExtra(tr.ExtraData))
}

func (t *Tx) InsertFeedInfo(i *gtfs.FeedInfo) error {
	i.FeedID = t.feedID
	return t.insert(
		`INSERT INTO feed_infos (feed_id, publisher_name, publisher_url, language, start_date, end_date, version, extra_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&i.ID, t.feedID, i.PublisherName, i.PublisherURL, i.Language,
		encodeOptionalDate(i.StartDate), encodeOptionalDate(i.EndDate), i.Version,
		encodeExtra(i.ExtraData))
}

func (t *Tx) InsertRouteDirection(d *gtfs.RouteDirection) error {
	d.FeedID = t.feedID
	return t.insert(
		`INSERT INTO route_directions (feed_id, route_id, direction, name) VALUES (?, ?, ?, ?)`,
		&d.ID, t.feedID, d.RouteID, d.Direction, d.Name)
}

func (t *Tx) UpdateStop(s *gtfs.Stop) error {
	lon, lat := stopPointArgs(s)
	_, err := t.tx.Exec(
		`UPDATE stops SET code = ?, name = ?, description = ?, lon = ?, lat = ?, zone_id = ?, url = ?, location_type = ?, parent_station = ?, timezone = ?, wheelchair_boarding = ?, extra_data = ? WHERE id = ?`,
		s.Code, s.Name, s.Desc, lon, lat, s.ZoneID, s.URL, s.LocationType, s.ParentStation,
		s.Timezone, s.WheelchairBoarding, encodeExtra(s.ExtraData), s.ID)
	return err
}

func (t *Tx) UpdateRoute(r *gtfs.Route) error {
	_, err := t.tx.Exec(
		`UPDATE routes SET agency_id = ?, short_name = ?, long_name = ?, description = ?, type = ?, url = ?, color = ?, text_color = ?, geometry = ?, extra_data = ? WHERE id = ?`,
		r.AgencyID, r.ShortName, r.LongName, r.Desc, r.Type, r.URL, r.Color, r.TextColor,
		encodeMultiLine(r.Geometry), encodeExtra(r.ExtraData), r.ID)
	return err
}

func (t *Tx) UpdateShape(s *gtfs.Shape) error {
	_, err := t.tx.Exec(`UPDATE shapes SET geometry = ? WHERE id = ?`, encodeLine(s.Geometry), s.ID)
	return err
}

func (t *Tx) UpdateShapePoint(p *gtfs.ShapePoint) error {
	_, err := t.tx.Exec(
		`UPDATE shape_points SET shape_id = ?, lon = ?, lat = ?, sequence = ?, dist_traveled = ?, extra_data = ? WHERE id = ?`,
		p.ShapeID, p.Point.Lon, p.Point.Lat, p.Sequence, encodeOptionalFloat(p.DistTraveled),
		encodeExtra(p.ExtraData), p.ID)
	return err
}

func (t *Tx) UpdateTrip(trip *gtfs.Trip) error {
	_, err := t.tx.Exec(
		`UPDATE trips SET route_id = ?, service_id = ?, block_id = ?, shape_id = ?, headsign = ?, short_name = ?, direction = ?, wheelchair_accessible = ?, bikes_allowed = ?, geometry = ?, extra_data = ? WHERE id = ?`,
		trip.RouteID, trip.ServiceID, trip.BlockID, trip.ShapeID, trip.Headsign, trip.ShortName,
		trip.Direction, trip.WheelchairAccessible, trip.BikesAllowed, encodeLine(trip.Geometry),
		encodeExtra(trip.ExtraData), trip.ID)
	return err
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// reader reads the committed state of one feed.
type reader struct {
	db     *sql.DB
	feedID int64
}

func queryAll[T any](r *reader, query string, scan func(scanner) (*T, error), args ...any) ([]*T, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func queryOne[T any](r *reader, query string, scan func(scanner) (*T, error), args ...any) (*T, error) {
	row, err := scan(r.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return row, err
}

const agencyCols = `id, feed_id, agency_id, name, url, timezone, language, phone, fare_url, email, extra_data`

func scanAgency(row scanner) (*gtfs.Agency, error) {
	var a gtfs.Agency
	var extra sql.NullString
	if err := row.Scan(&a.ID, &a.FeedID, &a.AgencyID, &a.Name, &a.URL, &a.Timezone,
		&a.Language, &a.Phone, &a.FareURL, &a.Email, &extra); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &a.ExtraData); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *reader) Agencies() ([]*gtfs.Agency, error) {
	return queryAll(r, `SELECT `+agencyCols+` FROM agencies WHERE feed_id = ? ORDER BY id`, scanAgency, r.feedID)
}

func (r *reader) AgencyByID(agencyID string) (*gtfs.Agency, error) {
	return queryOne(r, `SELECT `+agencyCols+` FROM agencies WHERE feed_id = ? AND agency_id = ?`, scanAgency, r.feedID, agencyID)
}

func scanZone(row scanner) (*gtfs.Zone, error) {
	var z gtfs.Zone
	if err := row.Scan(&z.ID, &z.FeedID, &z.ZoneID); err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *reader) Zones() ([]*gtfs.Zone, error) {
	return queryAll(r, `SELECT id, feed_id, zone_id FROM zones WHERE feed_id = ? ORDER BY id`, scanZone, r.feedID)
}

func (r *reader) ZoneByID(zoneID string) (*gtfs.Zone, error) {
	return queryOne(r, `SELECT id, feed_id, zone_id FROM zones WHERE feed_id = ? AND zone_id = ?`, scanZone, r.feedID, zoneID)
}

func scanBlock(row scanner) (*gtfs.Block, error) {
	var b gtfs.Block
	if err := row.Scan(&b.ID, &b.FeedID, &b.BlockID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *reader) Blocks() ([]*gtfs.Block, error) {
	return queryAll(r, `SELECT id, feed_id, block_id FROM blocks WHERE feed_id = ? ORDER BY id`, scanBlock, r.feedID)
}

func (r *reader) BlockByID(blockID string) (*gtfs.Block, error) {
	return queryOne(r, `SELECT id, feed_id, block_id FROM blocks WHERE feed_id = ? AND block_id = ?`, scanBlock, r.feedID, blockID)
}

const stopCols = `id, feed_id, stop_id, code, name, description, lon, lat, zone_id, url, location_type, parent_station, timezone, wheelchair_boarding, extra_data`

func scanStop(row scanner) (*gtfs.Stop, error) {
	var s gtfs.Stop
	var lon, lat sql.NullFloat64
	var extra sql.NullString
	if err := row.Scan(&s.ID, &s.FeedID, &s.StopID, &s.Code, &s.Name, &s.Desc, &lon, &lat,
		&s.ZoneID, &s.URL, &s.LocationType, &s.ParentStation, &s.Timezone,
		&s.WheelchairBoarding, &extra); err != nil {
		return nil, err
	}
	if lon.Valid && lat.Valid {
		s.Point = &gtfs.Point{Lon: lon.Float64, Lat: lat.Float64}
	}
	if err := decodeJSON(extra, &s.ExtraData); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reader) Stops() ([]*gtfs.Stop, error) {
	return queryAll(r, `SELECT `+stopCols+` FROM stops WHERE feed_id = ? ORDER BY id`, scanStop, r.feedID)
}

func (r *reader) StopByID(stopID string) (*gtfs.Stop, error) {
	return queryOne(r, `SELECT `+stopCols+` FROM stops WHERE feed_id = ? AND stop_id = ?`, scanStop, r.feedID, stopID)
}

const routeCols = `id, feed_id, route_id, agency_id, short_name, long_name, description, type, url, color, text_color, geometry, extra_data`

func scanRoute(row scanner) (*gtfs.Route, error) {
	var rt gtfs.Route
	var geometry, extra sql.NullString
	if err := row.Scan(&rt.ID, &rt.FeedID, &rt.RouteID, &rt.AgencyID, &rt.ShortName, &rt.LongName,
		&rt.Desc, &rt.Type, &rt.URL, &rt.Color, &rt.TextColor, &geometry, &extra); err != nil {
		return nil, err
	}
	if err := decodeJSON(geometry, &rt.Geometry); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &rt.ExtraData); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *reader) Routes() ([]*gtfs.Route, error) {
	return queryAll(r, `SELECT `+routeCols+` FROM routes WHERE feed_id = ? ORDER BY id`, scanRoute, r.feedID)
}

func (r *reader) RouteByID(routeID string) (*gtfs.Route, error) {
	return queryOne(r, `SELECT `+routeCols+` FROM routes WHERE feed_id = ? AND route_id = ?`, scanRoute, r.feedID, routeID)
}

const serviceCols = `id, feed_id, service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date, extra_data`

func scanService(row scanner) (*gtfs.Service, error) {
	var s gtfs.Service
	var startDate, endDate, extra sql.NullString
	if err := row.Scan(&s.ID, &s.FeedID, &s.ServiceID, &s.Monday, &s.Tuesday, &s.Wednesday,
		&s.Thursday, &s.Friday, &s.Saturday, &s.Sunday, &startDate, &endDate, &extra); err != nil {
		return nil, err
	}
	var err error
	if s.StartDate, err = decodeOptionalDate(startDate); err != nil {
		return nil, err
	}
	if s.EndDate, err = decodeOptionalDate(endDate); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &s.ExtraData); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reader) Services() ([]*gtfs.Service, error) {
	return queryAll(r, `SELECT `+serviceCols+` FROM services WHERE feed_id = ? ORDER BY id`, scanService, r.feedID)
}

func (r *reader) ServiceByID(serviceID string) (*gtfs.Service, error) {
	return queryOne(r, `SELECT `+serviceCols+` FROM services WHERE feed_id = ? AND service_id = ?`, scanService, r.feedID, serviceID)
}

func scanServiceDate(row scanner) (*gtfs.ServiceDate, error) {
	var d gtfs.ServiceDate
	var date string
	var exceptionType int
	var extra sql.NullString
	if err := row.Scan(&d.ID, &d.FeedID, &d.ServiceID, &date, &exceptionType, &extra); err != nil {
		return nil, err
	}
	var err error
	if d.Date, err = decodeDate(date); err != nil {
		return nil, err
	}
	d.ExceptionType = gtfs.ExceptionType(exceptionType)
	if err := decodeJSON(extra, &d.ExtraData); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *reader) ServiceDates() ([]*gtfs.ServiceDate, error) {
	return queryAll(r, `SELECT id, feed_id, service_id, date, exception_type, extra_data FROM service_dates WHERE feed_id = ? ORDER BY id`, scanServiceDate, r.feedID)
}

func scanShape(row scanner) (*gtfs.Shape, error) {
	var s gtfs.Shape
	var geometry sql.NullString
	if err := row.Scan(&s.ID, &s.FeedID, &s.ShapeID, &geometry); err != nil {
		return nil, err
	}
	if err := decodeJSON(geometry, &s.Geometry); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reader) Shapes() ([]*gtfs.Shape, error) {
	return queryAll(r, `SELECT id, feed_id, shape_id, geometry FROM shapes WHERE feed_id = ? ORDER BY id`, scanShape, r.feedID)
}

func (r *reader) ShapeByID(shapeID string) (*gtfs.Shape, error) {
	return queryOne(r, `SELECT id, feed_id, shape_id, geometry FROM shapes WHERE feed_id = ? AND shape_id = ?`, scanShape, r.feedID, shapeID)
}

const shapePointCols = `id, feed_id, shape_id, lon, lat, sequence, dist_traveled, extra_data`

func scanShapePoint(row scanner) (*gtfs.ShapePoint, error) {
	var p gtfs.ShapePoint
	var distTraveled sql.NullFloat64
	var extra sql.NullString
	if err := row.Scan(&p.ID, &p.FeedID, &p.ShapeID, &p.Point.Lon, &p.Point.Lat, &p.Sequence,
		&distTraveled, &extra); err != nil {
		return nil, err
	}
	p.DistTraveled = decodeOptionalFloat(distTraveled)
	if err := decodeJSON(extra, &p.ExtraData); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *reader) ShapePoints() ([]*gtfs.ShapePoint, error) {
	return queryAll(r, `SELECT `+shapePointCols+` FROM shape_points WHERE feed_id = ? ORDER BY id`, scanShapePoint, r.feedID)
}

func (r *reader) ShapePointsByShape(shapeID string) ([]*gtfs.ShapePoint, error) {
	return queryAll(r, `SELECT `+shapePointCols+` FROM shape_points WHERE feed_id = ? AND shape_id = ? ORDER BY sequence, id`, scanShapePoint, r.feedID, shapeID)
}

const tripCols = `id, feed_id, trip_id, route_id, service_id, block_id, shape_id, headsign, short_name, direction, wheelchair_accessible, bikes_allowed, geometry, extra_data`

func scanTrip(row scanner) (*gtfs.Trip, error) {
	var t gtfs.Trip
	var geometry, extra sql.NullString
	if err := row.Scan(&t.ID, &t.FeedID, &t.TripID, &t.RouteID, &t.ServiceID, &t.BlockID,
		&t.ShapeID, &t.Headsign, &t.ShortName, &t.Direction, &t.WheelchairAccessible,
		&t.BikesAllowed, &geometry, &extra); err != nil {
		return nil, err
	}
	if err := decodeJSON(geometry, &t.Geometry); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &t.ExtraData); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *reader) Trips() ([]*gtfs.Trip, error) {
	return queryAll(r, `SELECT `+tripCols+` FROM trips WHERE feed_id = ? ORDER BY id`, scanTrip, r.feedID)
}

func (r *reader) TripByID(tripID string) (*gtfs.Trip, error) {
	return queryOne(r, `SELECT `+tripCols+` FROM trips WHERE feed_id = ? AND trip_id = ?`, scanTrip, r.feedID, tripID)
}

func (r *reader) TripsByRoute(routeID string) ([]*gtfs.Trip, error) {
	return queryAll(r, `SELECT `+tripCols+` FROM trips WHERE feed_id = ? AND route_id = ? ORDER BY id`, scanTrip, r.feedID, routeID)
}

func (r *reader) TripsByShape(shapeID string) ([]*gtfs.Trip, error) {
	return queryAll(r, `SELECT `+tripCols+` FROM trips WHERE feed_id = ? AND shape_id = ? ORDER BY id`, scanTrip, r.feedID, shapeID)
}

func (r *reader) TripsByStop(stopID string) ([]*gtfs.Trip, error) {
	return queryAll(r, `SELECT `+tripCols+` FROM trips WHERE feed_id = ? AND trip_id IN
		(SELECT trip_id FROM stop_times WHERE feed_id = ? AND stop_id = ?) ORDER BY id`,
		scanTrip, r.feedID, r.feedID, stopID)
}

const stopTimeCols = `id, feed_id, trip_id, stop_id, arrival_time, departure_time, stop_sequence, headsign, pickup_type, drop_off_type, shape_dist_traveled, extra_data`

func scanStopTime(row scanner) (*gtfs.StopTime, error) {
	var st gtfs.StopTime
	var arrival, departure sql.NullInt64
	var distTraveled sql.NullFloat64
	var extra sql.NullString
	if err := row.Scan(&st.ID, &st.FeedID, &st.TripID, &st.StopID, &arrival, &departure,
		&st.StopSequence, &st.Headsign, &st.PickupType, &st.DropOffType, &distTraveled, &extra); err != nil {
		return nil, err
	}
	st.ArrivalTime = decodeOptionalTime(arrival)
	st.DepartureTime = decodeOptionalTime(departure)
	st.ShapeDistTraveled = decodeOptionalFloat(distTraveled)
	if err := decodeJSON(extra, &st.ExtraData); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *reader) StopTimes() ([]*gtfs.StopTime, error) {
	return queryAll(r, `SELECT `+stopTimeCols+` FROM stop_times WHERE feed_id = ? ORDER BY id`, scanStopTime, r.feedID)
}

func (r *reader) StopTimesByTrip(tripID string) ([]*gtfs.StopTime, error) {
	return queryAll(r, `SELECT `+stopTimeCols+` FROM stop_times WHERE feed_id = ? AND trip_id = ? ORDER BY stop_sequence, id`, scanStopTime, r.feedID, tripID)
}

func scanFrequency(row scanner) (*gtfs.Frequency, error) {
	var f gtfs.Frequency
	var startTime, endTime int64
	var exactTimes int
	var extra sql.NullString
	if err := row.Scan(&f.ID, &f.FeedID, &f.TripID, &startTime, &endTime, &f.HeadwaySecs,
		&exactTimes, &extra); err != nil {
		return nil, err
	}
	f.StartTime = gtfs.Time(startTime)
	f.EndTime = gtfs.Time(endTime)
	f.ExactTimes = gtfs.ExactTimes(exactTimes)
	if err := decodeJSON(extra, &f.ExtraData); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *reader) Frequencies() ([]*gtfs.Frequency, error) {
	return queryAll(r, `SELECT id, feed_id, trip_id, start_time, end_time, headway_secs, exact_times, extra_data FROM frequencies WHERE feed_id = ? ORDER BY id`, scanFrequency, r.feedID)
}

const fareCols = `id, feed_id, fare_id, price, currency, payment_method, transfers, transfer_duration, extra_data`

func scanFare(row scanner) (*gtfs.Fare, error) {
	var f gtfs.Fare
	var price string
	var paymentMethod int
	var transfers, transferDuration sql.NullInt64
	var extra sql.NullString
	if err := row.Scan(&f.ID, &f.FeedID, &f.FareID, &price, &f.Currency, &paymentMethod,
		&transfers, &transferDuration, &extra); err != nil {
		return nil, err
	}
	var err error
	if f.Price, err = gtfs.ParseDecimal(price); err != nil {
		return nil, err
	}
	f.PaymentMethod = gtfs.PaymentMethod(paymentMethod)
	f.Transfers = decodeOptionalInt(transfers)
	f.TransferDuration = decodeOptionalInt(transferDuration)
	if err := decodeJSON(extra, &f.ExtraData); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *reader) Fares() ([]*gtfs.Fare, error) {
	return queryAll(r, `SELECT `+fareCols+` FROM fares WHERE feed_id = ? ORDER BY id`, scanFare, r.feedID)
}

func (r *reader) FareByID(fareID string) (*gtfs.Fare, error) {
	return queryOne(r, `SELECT `+fareCols+` FROM fares WHERE feed_id = ? AND fare_id = ?`, scanFare, r.feedID, fareID)
}

func scanFareRule(row scanner) (*gtfs.FareRule, error) {
	var rule gtfs.FareRule
	var extra sql.NullString
	if err := row.Scan(&rule.ID, &rule.FeedID, &rule.FareID, &rule.RouteID, &rule.OriginID,
		&rule.DestinationID, &rule.ContainsID, &extra); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &rule.ExtraData); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *reader) FareRules() ([]*gtfs.FareRule, error) {
	return queryAll(r, `SELECT id, feed_id, fare_id, route_id, origin_id, destination_id, contains_id, extra_data FROM fare_rules WHERE feed_id = ? ORDER BY id`, scanFareRule, r.feedID)
}

func scanTransfer(row scanner) (*gtfs.Transfer, error) {
	var t gtfs.Transfer
	var transferType int
	var minTransferTime sql.NullInt64
	var extra sql.NullString
	if err := row.Scan(&t.ID, &t.FeedID, &t.FromStopID, &t.ToStopID, &transferType,
		&minTransferTime, &extra); err != nil {
		return nil, err
	}
	t.Type = gtfs.TransferType(transferType)
	t.MinTransferTime = decodeOptionalInt(minTransferTime)
	if err := decodeJSON(extra, &t.ExtraData); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *reader) Transfers() ([]*gtfs.Transfer, error) {
	return queryAll(r, `SELECT id, feed_id, from_stop_id, to_stop_id, type, min_transfer_time, extra_data FROM transfers WHERE feed_id = ? ORDER BY id`, scanTransfer, r.feedID)
}

func scanFeedInfo(row scanner) (*gtfs.FeedInfo, error) {
	var i gtfs.FeedInfo
	var startDate, endDate, extra sql.NullString
	if err := row.Scan(&i.ID, &i.FeedID, &i.PublisherName, &i.PublisherURL, &i.Language,
		&startDate, &endDate, &i.Version, &extra); err != nil {
		return nil, err
	}
	var err error
	if i.StartDate, err = decodeOptionalDate(startDate); err != nil {
		return nil, err
	}
	if i.EndDate, err = decodeOptionalDate(endDate); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &i.ExtraData); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *reader) FeedInfos() ([]*gtfs.FeedInfo, error) {
	return queryAll(r, `SELECT id, feed_id, publisher_name, publisher_url, language, start_date, end_date, version, extra_data FROM feed_infos WHERE feed_id = ? ORDER BY id`, scanFeedInfo, r.feedID)
}

func scanRouteDirection(row scanner) (*gtfs.RouteDirection, error) {
	var d gtfs.RouteDirection
	if err := row.Scan(&d.ID, &d.FeedID, &d.RouteID, &d.Direction, &d.Name); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *reader) RouteDirections() ([]*gtfs.RouteDirection, error) {
	return queryAll(r, `SELECT id, feed_id, route_id, direction, name FROM route_directions WHERE feed_id = ? ORDER BY id`, scanRouteDirection, r.feedID)
}
