package gtfs

// Storage is the narrow persistence interface the codec depends on. The
// backend may be relational, embedded or in-memory; the codec only needs
// feed CRUD, transactional writes, and indexed natural-key lookups.
//
// Lookup methods return (nil, nil) when no row matches.
type Storage interface {
	CreateFeed(feed *Feed) error
	GetFeed(id int64) (*Feed, error)
	ListFeeds() ([]*Feed, error)
	UpdateFeed(feed *Feed) error
	// DeleteFeed removes the feed and cascades to every entity it owns.
	DeleteFeed(id int64) error

	// Begin opens a transactional write scope on one feed. Writes become
	// visible to Readers only on Commit.
	Begin(feedID int64) (Tx, error)
	// Reader reads the committed state of one feed.
	Reader(feedID int64) (Reader, error)
}

// Tx is a transactional write scope over a feed's tables. Insert methods
// assign the entity's internal handle.
type Tx interface {
	InsertAgency(a *Agency) error
	InsertZone(z *Zone) error
	InsertBlock(b *Block) error
	InsertStop(s *Stop) error
	InsertRoute(r *Route) error
	InsertService(s *Service) error
	InsertServiceDate(d *ServiceDate) error
	InsertShape(s *Shape) error
	InsertShapePoint(p *ShapePoint) error
	InsertTrip(t *Trip) error
	InsertStopTime(st *StopTime) error
	InsertFrequency(f *Frequency) error
	InsertFare(f *Fare) error
	InsertFareRule(r *FareRule) error
	InsertTransfer(t *Transfer) error
	InsertFeedInfo(i *FeedInfo) error
	InsertRouteDirection(d *RouteDirection) error

	UpdateStop(s *Stop) error
	UpdateRoute(r *Route) error
	UpdateShape(s *Shape) error
	UpdateShapePoint(p *ShapePoint) error
	UpdateTrip(t *Trip) error

	Commit() error
	Rollback() error
}

// Reader provides streaming-friendly access to a feed's committed rows.
// Listings are returned in insertion order; the export pipeline applies
// its own sort.
type Reader interface {
	Agencies() ([]*Agency, error)
	Zones() ([]*Zone, error)
	Blocks() ([]*Block, error)
	Stops() ([]*Stop, error)
	Routes() ([]*Route, error)
	Services() ([]*Service, error)
	ServiceDates() ([]*ServiceDate, error)
	Shapes() ([]*Shape, error)
	ShapePoints() ([]*ShapePoint, error)
	Trips() ([]*Trip, error)
	StopTimes() ([]*StopTime, error)
	Frequencies() ([]*Frequency, error)
	Fares() ([]*Fare, error)
	FareRules() ([]*FareRule, error)
	Transfers() ([]*Transfer, error)
	FeedInfos() ([]*FeedInfo, error)
	RouteDirections() ([]*RouteDirection, error)

	AgencyByID(agencyID string) (*Agency, error)
	ZoneByID(zoneID string) (*Zone, error)
	BlockByID(blockID string) (*Block, error)
	StopByID(stopID string) (*Stop, error)
	RouteByID(routeID string) (*Route, error)
	ServiceByID(serviceID string) (*Service, error)
	ShapeByID(shapeID string) (*Shape, error)
	TripByID(tripID string) (*Trip, error)
	FareByID(fareID string) (*Fare, error)

	// ShapePointsByShape returns a shape's points in ascending sequence
	// order.
	ShapePointsByShape(shapeID string) ([]*ShapePoint, error)
	// StopTimesByTrip returns a trip's stop times in ascending stop
	// sequence order.
	StopTimesByTrip(tripID string) ([]*StopTime, error)
	TripsByRoute(routeID string) ([]*Trip, error)
	TripsByShape(shapeID string) ([]*Trip, error)
	// TripsByStop returns the trips whose stop times visit the stop.
	TripsByStop(stopID string) ([]*Trip, error)
}
