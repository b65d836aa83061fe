// Package gtfs is a codec for GTFS static archives: it imports the CSV
// tables of a feed into a persistence backend and exports them back out
// as a valid GTFS ZIP, preserving unknown columns so that a feed
// round-trips.
//
// Many independent feeds can be held side by side; every entity belongs
// to exactly one feed, and natural keys such as stop_id are unique per
// feed rather than globally.
package gtfs

import (
	"time"

	"github.com/transitarchive/gtfs/constants"
)

// Point is a WGS84 position.
type Point struct {
	Lon float64
	Lat float64
}

// Line is a polyline of at least two points. A nil Line is a null
// geometry.
type Line []Point

func (l Line) Equal(other Line) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// MultiLine is a set of distinct lines. A nil MultiLine is a null
// geometry.
type MultiLine []Line

func (m MultiLine) Equal(other MultiLine) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if !m[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Feed is the aggregate root that owns one imported GTFS data set.
type Feed struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	// ExtraColumns records, per entity kind, the sorted union of
	// unrecognised column names seen with data on any import. Export
	// re-emits these columns from each row's ExtraData.
	ExtraColumns map[constants.Entity][]string
}

// Agency corresponds to a single row in agency.txt. The agency_id is
// optional in GTFS; an empty AgencyID is legal.
type Agency struct {
	ID       int64
	FeedID   int64
	AgencyID string
	Name     string
	URL      string
	Timezone string
	Language string
	Phone    string
	FareURL  string
	Email    string

	ExtraData map[string]string
}

// Zone is a fare region. Zones have no file of their own: they spring
// into existence the first time a stop or fare rule references them.
type Zone struct {
	ID     int64
	FeedID int64
	ZoneID string
}

// Block is a vehicle's chain of trips in a day. Like zones, blocks are
// created when first referenced from trips.txt.
type Block struct {
	ID      int64
	FeedID  int64
	BlockID string
}

// Stop corresponds to a single row in stops.txt.
type Stop struct {
	ID     int64
	FeedID int64
	StopID string
	Code   string
	Name   string
	Desc   string
	// Point is nil for rows that carry no coordinates, which includes
	// placeholder parents created by reference resolution.
	Point              *Point
	ZoneID             string
	URL                string
	LocationType       string
	ParentStation      string
	Timezone           string
	WheelchairBoarding string

	ExtraData map[string]string
}

// IsStation reports whether the row describes a station (location_type 1)
// rather than a plain stop.
func (s *Stop) IsStation() bool {
	return s.LocationType == "1"
}

// Route corresponds to a single row in routes.txt.
type Route struct {
	ID        int64
	FeedID    int64
	RouteID   string
	AgencyID  string
	ShortName string
	LongName  string
	Desc      string
	Type      int
	URL       string
	Color     string
	TextColor string
	// Geometry is a derived cache: the distinct geometries of the
	// route's trips. It is never read from a feed file.
	Geometry MultiLine

	ExtraData map[string]string
}

// Service corresponds to a single row in calendar.txt, or to a bare
// service_id referenced only from calendar_dates.txt or trips.txt, in
// which case both dates are nil and all weekdays false.
type Service struct {
	ID        int64
	FeedID    int64
	ServiceID string
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool
	StartDate *time.Time
	EndDate   *time.Time

	ExtraData map[string]string
}

// ServiceDate corresponds to a single row in calendar_dates.txt.
type ServiceDate struct {
	ID            int64
	FeedID        int64
	ServiceID     string
	Date          time.Time
	ExceptionType ExceptionType

	ExtraData map[string]string
}

// Shape is an ordered polyline traced by a vehicle. The row data lives in
// ShapePoint; Shape itself holds the identity and the derived geometry.
type Shape struct {
	ID      int64
	FeedID  int64
	ShapeID string
	// Geometry is a derived cache: the shape's points in ascending
	// sequence order, or nil if the shape has fewer than two points.
	Geometry Line
}

// ShapePoint corresponds to a single row in shapes.txt.
type ShapePoint struct {
	ID           int64
	FeedID       int64
	ShapeID      string
	Point        Point
	Sequence     int
	DistTraveled *float64

	ExtraData map[string]string
}

// Trip corresponds to a single row in trips.txt.
type Trip struct {
	ID                   int64
	FeedID               int64
	TripID               string
	RouteID              string
	ServiceID            string
	BlockID              string
	ShapeID              string
	Headsign             string
	ShortName            string
	Direction            string
	WheelchairAccessible string
	BikesAllowed         string
	// Geometry is a derived cache: the shape's geometry if a shape is
	// attached, else the polyline through the trip's stops in stop
	// sequence order, else nil.
	Geometry Line

	ExtraData map[string]string
}

// StopTime corresponds to a single row in stop_times.txt.
type StopTime struct {
	ID     int64
	FeedID int64
	TripID string
	StopID string
	// Arrival and departure may be nil for intermediate stops.
	ArrivalTime       *Time
	DepartureTime     *Time
	StopSequence      int
	Headsign          string
	PickupType        string
	DropOffType       string
	ShapeDistTraveled *float64

	ExtraData map[string]string
}

// Frequency corresponds to a single row in frequencies.txt.
type Frequency struct {
	ID          int64
	FeedID      int64
	TripID      string
	StartTime   Time
	EndTime     Time
	HeadwaySecs int
	ExactTimes  ExactTimes

	ExtraData map[string]string
}

// Fare corresponds to a single row in fare_attributes.txt.
type Fare struct {
	ID            int64
	FeedID        int64
	FareID        string
	Price         Decimal
	Currency      string
	PaymentMethod PaymentMethod
	// Transfers is the number of transfers permitted on the fare; nil
	// means unlimited.
	Transfers        *int
	TransferDuration *int

	ExtraData map[string]string
}

// FareRule corresponds to a single row in fare_rules.txt. All references
// other than the fare are optional.
type FareRule struct {
	ID            int64
	FeedID        int64
	FareID        string
	RouteID       string
	OriginID      string
	DestinationID string
	ContainsID    string

	ExtraData map[string]string
}

// Transfer corresponds to a single row in transfers.txt.
type Transfer struct {
	ID              int64
	FeedID          int64
	FromStopID      string
	ToStopID        string
	Type            TransferType
	MinTransferTime *int

	ExtraData map[string]string
}

// FeedInfo corresponds to the single row of feed_info.txt.
type FeedInfo struct {
	ID            int64
	FeedID        int64
	PublisherName string
	PublisherURL  string
	Language      string
	StartDate     *time.Time
	EndDate       *time.Time
	Version       string

	ExtraData map[string]string
}

// RouteDirection names a direction of travel on a route. This is a
// non-standard extension with no file in the archive; rows exist only
// through the construction API.
type RouteDirection struct {
	ID        int64
	FeedID    int64
	RouteID   string
	Direction string
	Name      string
}
