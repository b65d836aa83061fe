package constants

// StaticFile is the name of a file inside a GTFS archive.
type StaticFile string

const (
	AgencyFile         StaticFile = "agency.txt"
	StopsFile          StaticFile = "stops.txt"
	RoutesFile         StaticFile = "routes.txt"
	CalendarFile       StaticFile = "calendar.txt"
	CalendarDatesFile  StaticFile = "calendar_dates.txt"
	ShapesFile         StaticFile = "shapes.txt"
	TripsFile          StaticFile = "trips.txt"
	StopTimesFile      StaticFile = "stop_times.txt"
	FrequenciesFile    StaticFile = "frequencies.txt"
	FareAttributesFile StaticFile = "fare_attributes.txt"
	FareRulesFile      StaticFile = "fare_rules.txt"
	TransfersFile      StaticFile = "transfers.txt"
	FeedInfoFile       StaticFile = "feed_info.txt"
)

// Entity identifies a kind of GTFS schedule entity. It is used as the key
// for per-entity bookkeeping such as the extra-columns memo on a feed.
type Entity string

const (
	Agency      Entity = "agency"
	Stop        Entity = "stop"
	Route       Entity = "route"
	Service     Entity = "service"
	ServiceDate Entity = "service_date"
	Shape       Entity = "shape"
	ShapePoint  Entity = "shape_point"
	Trip        Entity = "trip"
	StopTime    Entity = "stop_time"
	Frequency   Entity = "frequency"
	Fare        Entity = "fare"
	FareRule    Entity = "fare_rule"
	Transfer    Entity = "transfer"
	FeedInfo    Entity = "feed_info"
	Zone        Entity = "zone"
	Block       Entity = "block"
)
