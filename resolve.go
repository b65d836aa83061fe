package gtfs

// resolver resolves natural-key references during one import. Its caches
// are feed local: they are created when the import starts and discarded
// when it ends.
//
// A cache entry holding nil records that the key is known to be absent
// from committed state, so repeated lookups of a bad key cost one storage
// query total.
type resolver struct {
	feedID int64
	reader Reader

	agencies map[string]*Agency
	stops    map[string]*Stop
	routes   map[string]*Route
	services map[string]*Service
	shapes   map[string]*Shape
	trips    map[string]*Trip
	fares    map[string]*Fare
	zones    map[string]*Zone
	blocks   map[string]*Block
}

func newResolver(feedID int64, reader Reader) *resolver {
	return &resolver{
		feedID:   feedID,
		reader:   reader,
		agencies: map[string]*Agency{},
		stops:    map[string]*Stop{},
		routes:   map[string]*Route{},
		services: map[string]*Service{},
		shapes:   map[string]*Shape{},
		trips:    map[string]*Trip{},
		fares:    map[string]*Fare{},
		zones:    map[string]*Zone{},
		blocks:   map[string]*Block{},
	}
}

func resolve[T any](key string, cache map[string]*T, load func(string) (*T, error)) (*T, error) {
	if key == "" {
		return nil, nil
	}
	if cached, ok := cache[key]; ok {
		return cached, nil
	}
	loaded, err := load(key)
	if err != nil {
		return nil, err
	}
	cache[key] = loaded
	return loaded, nil
}

func (r *resolver) agency(key string) (*Agency, error) {
	return resolve(key, r.agencies, r.reader.AgencyByID)
}

func (r *resolver) stop(key string) (*Stop, error) {
	return resolve(key, r.stops, r.reader.StopByID)
}

func (r *resolver) route(key string) (*Route, error) {
	return resolve(key, r.routes, r.reader.RouteByID)
}

func (r *resolver) trip(key string) (*Trip, error) {
	return resolve(key, r.trips, r.reader.TripByID)
}

func (r *resolver) fare(key string) (*Fare, error) {
	return resolve(key, r.fares, r.reader.FareByID)
}

func (r *resolver) shape(key string) (*Shape, error) {
	return resolve(key, r.shapes, r.reader.ShapeByID)
}

// zone returns the feed's zone with the given key, creating it if this is
// the first reference. Zones have no file of their own.
func (r *resolver) zone(tx Tx, key string) (*Zone, error) {
	zone, err := resolve(key, r.zones, r.reader.ZoneByID)
	if err != nil || key == "" || zone != nil {
		return zone, err
	}
	zone = &Zone{FeedID: r.feedID, ZoneID: key}
	if err := tx.InsertZone(zone); err != nil {
		return nil, err
	}
	r.zones[key] = zone
	return zone, nil
}

// block is the get-or-create analogue of zone for block_id references.
func (r *resolver) block(tx Tx, key string) (*Block, error) {
	block, err := resolve(key, r.blocks, r.reader.BlockByID)
	if err != nil || key == "" || block != nil {
		return block, err
	}
	block = &Block{FeedID: r.feedID, BlockID: key}
	if err := tx.InsertBlock(block); err != nil {
		return nil, err
	}
	r.blocks[key] = block
	return block, nil
}

// service returns the feed's service with the given key, creating a
// placeholder with only the key populated when a calendar date or trip
// references a service the calendar files never declared.
func (r *resolver) service(tx Tx, key string) (*Service, error) {
	service, err := resolve(key, r.services, r.reader.ServiceByID)
	if err != nil || key == "" || service != nil {
		return service, err
	}
	service = &Service{FeedID: r.feedID, ServiceID: key}
	if err := tx.InsertService(service); err != nil {
		return nil, err
	}
	r.services[key] = service
	return service, nil
}

// shapeForPoint returns the shape a shapes.txt row belongs to, creating
// the shape on its first point.
func (r *resolver) shapeForPoint(tx Tx, key string) (*Shape, error) {
	shape, err := resolve(key, r.shapes, r.reader.ShapeByID)
	if err != nil || key == "" || shape != nil {
		return shape, err
	}
	shape = &Shape{FeedID: r.feedID, ShapeID: key}
	if err := tx.InsertShape(shape); err != nil {
		return nil, err
	}
	r.shapes[key] = shape
	return shape, nil
}

func (r *resolver) addAgency(a *Agency) {
	if a.AgencyID != "" {
		r.agencies[a.AgencyID] = a
	}
}

func (r *resolver) addStop(s *Stop)       { r.stops[s.StopID] = s }
func (r *resolver) addRoute(rt *Route)    { r.routes[rt.RouteID] = rt }
func (r *resolver) addService(s *Service) { r.services[s.ServiceID] = s }
func (r *resolver) addTrip(t *Trip)       { r.trips[t.TripID] = t }
func (r *resolver) addFare(f *Fare)       { r.fares[f.FareID] = f }
