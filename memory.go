package gtfs

import (
	"fmt"
	"sort"
	"sync"
)

func sortStable[T any](s []*T, less func(a, b *T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}

// MemoryStorage is an in-memory Storage implementation. It is the
// reference backend for tests and small tools; the sqlite package
// provides the durable one.
type MemoryStorage struct {
	mu     sync.RWMutex
	nextID int64
	feeds  map[int64]*Feed
	data   map[int64]*feedData
}

type feedData struct {
	agencies        []*Agency
	zones           []*Zone
	blocks          []*Block
	stops           []*Stop
	routes          []*Route
	services        []*Service
	serviceDates    []*ServiceDate
	shapes          []*Shape
	shapePoints     []*ShapePoint
	trips           []*Trip
	stopTimes       []*StopTime
	frequencies     []*Frequency
	fares           []*Fare
	fareRules       []*FareRule
	transfers       []*Transfer
	feedInfos       []*FeedInfo
	routeDirections []*RouteDirection
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		feeds: map[int64]*Feed{},
		data:  map[int64]*feedData{},
	}
}

func (s *MemoryStorage) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStorage) CreateFeed(feed *Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed.ID = s.allocID()
	cp := *feed
	s.feeds[feed.ID] = &cp
	s.data[feed.ID] = &feedData{}
	return nil
}

func (s *MemoryStorage) GetFeed(id int64) (*Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[id]
	if !ok {
		return nil, nil
	}
	cp := *feed
	return &cp, nil
}

func (s *MemoryStorage) ListFeeds() ([]*Feed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var feeds []*Feed
	for _, feed := range s.feeds {
		cp := *feed
		feeds = append(feeds, &cp)
	}
	return feeds, nil
}

func (s *MemoryStorage) UpdateFeed(feed *Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[feed.ID]; !ok {
		return fmt.Errorf("no feed with id %d", feed.ID)
	}
	cp := *feed
	s.feeds[feed.ID] = &cp
	return nil
}

func (s *MemoryStorage) DeleteFeed(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[id]; !ok {
		return fmt.Errorf("no feed with id %d", id)
	}
	delete(s.feeds, id)
	delete(s.data, id)
	return nil
}

func (s *MemoryStorage) Begin(feedID int64) (Tx, error) {
	s.mu.RLock()
	_, ok := s.data[feedID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no feed with id %d", feedID)
	}
	return &memTx{s: s, feedID: feedID}, nil
}

func (s *MemoryStorage) Reader(feedID int64) (Reader, error) {
	s.mu.RLock()
	_, ok := s.data[feedID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no feed with id %d", feedID)
	}
	return &memReader{s: s, feedID: feedID}, nil
}

// memTx buffers writes and applies them on Commit, so a rollback is
// simply dropping the buffer.
type memTx struct {
	s      *MemoryStorage
	feedID int64
	ops    []func(fd *feedData)
	done   bool
}

func insertOp[T any](tx *memTx, e *T, id *int64, table func(fd *feedData) *[]*T) error {
	if tx.done {
		return fmt.Errorf("transaction is closed")
	}
	tx.s.mu.Lock()
	*id = tx.s.allocID()
	tx.s.mu.Unlock()
	cp := *e
	tx.ops = append(tx.ops, func(fd *feedData) {
		t := table(fd)
		*t = append(*t, &cp)
	})
	return nil
}

func updateOp[T any](tx *memTx, e *T, id int64, idOf func(*T) int64, table func(fd *feedData) *[]*T) error {
	if tx.done {
		return fmt.Errorf("transaction is closed")
	}
	cp := *e
	tx.ops = append(tx.ops, func(fd *feedData) {
		t := *table(fd)
		for i := range t {
			if idOf(t[i]) == id {
				t[i] = &cp
				return
			}
		}
	})
	return nil
}

func (tx *memTx) InsertAgency(a *Agency) error {
	return insertOp(tx, a, &a.ID, func(fd *feedData) *[]*Agency { return &fd.agencies })
}

func (tx *memTx) InsertZone(z *Zone) error {
	return insertOp(tx, z, &z.ID, func(fd *feedData) *[]*Zone { return &fd.zones })
}

func (tx *memTx) InsertBlock(b *Block) error {
	return insertOp(tx, b, &b.ID, func(fd *feedData) *[]*Block { return &fd.blocks })
}

func (tx *memTx) InsertStop(s *Stop) error {
	return insertOp(tx, s, &s.ID, func(fd *feedData) *[]*Stop { return &fd.stops })
}

func (tx *memTx) InsertRoute(r *Route) error {
	return insertOp(tx, r, &r.ID, func(fd *feedData) *[]*Route { return &fd.routes })
}

func (tx *memTx) InsertService(s *Service) error {
	return insertOp(tx, s, &s.ID, func(fd *feedData) *[]*Service { return &fd.services })
}

func (tx *memTx) InsertServiceDate(d *ServiceDate) error {
	return insertOp(tx, d, &d.ID, func(fd *feedData) *[]*ServiceDate { return &fd.serviceDates })
}

func (tx *memTx) InsertShape(s *Shape) error {
	return insertOp(tx, s, &s.ID, func(fd *feedData) *[]*Shape { return &fd.shapes })
}

func (tx *memTx) InsertShapePoint(p *ShapePoint) error {
	return insertOp(tx, p, &p.ID, func(fd *feedData) *[]*ShapePoint { return &fd.shapePoints })
}

func (tx *memTx) InsertTrip(t *Trip) error {
	return insertOp(tx, t, &t.ID, func(fd *feedData) *[]*Trip { return &fd.trips })
}

func (tx *memTx) InsertStopTime(st *StopTime) error {
	return insertOp(tx, st, &st.ID, func(fd *feedData) *[]*StopTime { return &fd.stopTimes })
}

func (tx *memTx) InsertFrequency(f *Frequency) error {
	return insertOp(tx, f, &f.ID, func(fd *feedData) *[]*Frequency { return &fd.frequencies })
}

func (tx *memTx) InsertFare(f *Fare) error {
	return insertOp(tx, f, &f.ID, func(fd *feedData) *[]*Fare { return &fd.fares })
}

func (tx *memTx) InsertFareRule(r *FareRule) error {
	return insertOp(tx, r, &r.ID, func(fd *feedData) *[]*FareRule { return &fd.fareRules })
}

func (tx *memTx) InsertTransfer(t *Transfer) error {
	return insertOp(tx, t, &t.ID, func(fd *feedData) *[]*Transfer { return &fd.transfers })
}

func (tx *memTx) InsertFeedInfo(i *FeedInfo) error {
	return insertOp(tx, i, &i.ID, func(fd *feedData) *[]*FeedInfo { return &fd.feedInfos })
}

func (tx *memTx) InsertRouteDirection(d *RouteDirection) error {
	return insertOp(tx, d, &d.ID, func(fd *feedData) *[]*RouteDirection { return &fd.routeDirections })
}

func (tx *memTx) UpdateStop(s *Stop) error {
	return updateOp(tx, s, s.ID, func(s *Stop) int64 { return s.ID },
		func(fd *feedData) *[]*Stop { return &fd.stops })
}

func (tx *memTx) UpdateRoute(r *Route) error {
	return updateOp(tx, r, r.ID, func(r *Route) int64 { return r.ID },
		func(fd *feedData) *[]*Route { return &fd.routes })
}

func (tx *memTx) UpdateShape(s *Shape) error {
	return updateOp(tx, s, s.ID, func(s *Shape) int64 { return s.ID },
		func(fd *feedData) *[]*Shape { return &fd.shapes })
}

func (tx *memTx) UpdateShapePoint(p *ShapePoint) error {
	return updateOp(tx, p, p.ID, func(p *ShapePoint) int64 { return p.ID },
		func(fd *feedData) *[]*ShapePoint { return &fd.shapePoints })
}

func (tx *memTx) UpdateTrip(t *Trip) error {
	return updateOp(tx, t, t.ID, func(t *Trip) int64 { return t.ID },
		func(fd *feedData) *[]*Trip { return &fd.trips })
}

func (tx *memTx) Commit() error {
	if tx.done {
		return fmt.Errorf("transaction is closed")
	}
	tx.done = true
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	fd, ok := tx.s.data[tx.feedID]
	if !ok {
		return fmt.Errorf("feed %d was deleted during the transaction", tx.feedID)
	}
	for _, op := range tx.ops {
		op(fd)
	}
	tx.ops = nil
	return nil
}

func (tx *memTx) Rollback() error {
	tx.done = true
	tx.ops = nil
	return nil
}

type memReader struct {
	s      *MemoryStorage
	feedID int64
}

func listAll[T any](r *memReader, table func(fd *feedData) []*T) ([]*T, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fd, ok := r.s.data[r.feedID]
	if !ok {
		return nil, fmt.Errorf("no feed with id %d", r.feedID)
	}
	rows := table(fd)
	out := make([]*T, len(rows))
	for i, row := range rows {
		cp := *row
		out[i] = &cp
	}
	return out, nil
}

func lookup[T any](r *memReader, key string, table func(fd *feedData) []*T, keyOf func(*T) string) (*T, error) {
	if key == "" {
		return nil, nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	fd, ok := r.s.data[r.feedID]
	if !ok {
		return nil, fmt.Errorf("no feed with id %d", r.feedID)
	}
	for _, row := range table(fd) {
		if keyOf(row) == key {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memReader) Agencies() ([]*Agency, error) {
	return listAll(r, func(fd *feedData) []*Agency { return fd.agencies })
}

func (r *memReader) Zones() ([]*Zone, error) {
	return listAll(r, func(fd *feedData) []*Zone { return fd.zones })
}

func (r *memReader) Blocks() ([]*Block, error) {
	return listAll(r, func(fd *feedData) []*Block { return fd.blocks })
}

func (r *memReader) Stops() ([]*Stop, error) {
	return listAll(r, func(fd *feedData) []*Stop { return fd.stops })
}

func (r *memReader) Routes() ([]*Route, error) {
	return listAll(r, func(fd *feedData) []*Route { return fd.routes })
}

func (r *memReader) Services() ([]*Service, error) {
	return listAll(r, func(fd *feedData) []*Service { return fd.services })
}

func (r *memReader) ServiceDates() ([]*ServiceDate, error) {
	return listAll(r, func(fd *feedData) []*ServiceDate { return fd.serviceDates })
}

func (r *memReader) Shapes() ([]*Shape, error) {
	return listAll(r, func(fd *feedData) []*Shape { return fd.shapes })
}

func (r *memReader) ShapePoints() ([]*ShapePoint, error) {
	return listAll(r, func(fd *feedData) []*ShapePoint { return fd.shapePoints })
}

func (r *memReader) Trips() ([]*Trip, error) {
	return listAll(r, func(fd *feedData) []*Trip { return fd.trips })
}

func (r *memReader) StopTimes() ([]*StopTime, error) {
	return listAll(r, func(fd *feedData) []*StopTime { return fd.stopTimes })
}

func (r *memReader) Frequencies() ([]*Frequency, error) {
	return listAll(r, func(fd *feedData) []*Frequency { return fd.frequencies })
}

func (r *memReader) Fares() ([]*Fare, error) {
	return listAll(r, func(fd *feedData) []*Fare { return fd.fares })
}

func (r *memReader) FareRules() ([]*FareRule, error) {
	return listAll(r, func(fd *feedData) []*FareRule { return fd.fareRules })
}

func (r *memReader) Transfers() ([]*Transfer, error) {
	return listAll(r, func(fd *feedData) []*Transfer { return fd.transfers })
}

func (r *memReader) FeedInfos() ([]*FeedInfo, error) {
	return listAll(r, func(fd *feedData) []*FeedInfo { return fd.feedInfos })
}

func (r *memReader) RouteDirections() ([]*RouteDirection, error) {
	return listAll(r, func(fd *feedData) []*RouteDirection { return fd.routeDirections })
}

func (r *memReader) AgencyByID(agencyID string) (*Agency, error) {
	return lookup(r, agencyID, func(fd *feedData) []*Agency { return fd.agencies },
		func(a *Agency) string { return a.AgencyID })
}

func (r *memReader) ZoneByID(zoneID string) (*Zone, error) {
	return lookup(r, zoneID, func(fd *feedData) []*Zone { return fd.zones },
		func(z *Zone) string { return z.ZoneID })
}

func (r *memReader) BlockByID(blockID string) (*Block, error) {
	return lookup(r, blockID, func(fd *feedData) []*Block { return fd.blocks },
		func(b *Block) string { return b.BlockID })
}

func (r *memReader) StopByID(stopID string) (*Stop, error) {
	return lookup(r, stopID, func(fd *feedData) []*Stop { return fd.stops },
		func(s *Stop) string { return s.StopID })
}

func (r *memReader) RouteByID(routeID string) (*Route, error) {
	return lookup(r, routeID, func(fd *feedData) []*Route { return fd.routes },
		func(rt *Route) string { return rt.RouteID })
}

func (r *memReader) ServiceByID(serviceID string) (*Service, error) {
	return lookup(r, serviceID, func(fd *feedData) []*Service { return fd.services },
		func(s *Service) string { return s.ServiceID })
}

func (r *memReader) ShapeByID(shapeID string) (*Shape, error) {
	return lookup(r, shapeID, func(fd *feedData) []*Shape { return fd.shapes },
		func(s *Shape) string { return s.ShapeID })
}

func (r *memReader) TripByID(tripID string) (*Trip, error) {
	return lookup(r, tripID, func(fd *feedData) []*Trip { return fd.trips },
		func(t *Trip) string { return t.TripID })
}

func (r *memReader) FareByID(fareID string) (*Fare, error) {
	return lookup(r, fareID, func(fd *feedData) []*Fare { return fd.fares },
		func(f *Fare) string { return f.FareID })
}

func (r *memReader) ShapePointsByShape(shapeID string) ([]*ShapePoint, error) {
	points, err := r.ShapePoints()
	if err != nil {
		return nil, err
	}
	var out []*ShapePoint
	for _, p := range points {
		if p.ShapeID == shapeID {
			out = append(out, p)
		}
	}
	sortStable(out, func(a, b *ShapePoint) bool { return a.Sequence < b.Sequence })
	return out, nil
}

func (r *memReader) StopTimesByTrip(tripID string) ([]*StopTime, error) {
	stopTimes, err := r.StopTimes()
	if err != nil {
		return nil, err
	}
	var out []*StopTime
	for _, st := range stopTimes {
		if st.TripID == tripID {
			out = append(out, st)
		}
	}
	sortStable(out, func(a, b *StopTime) bool { return a.StopSequence < b.StopSequence })
	return out, nil
}

func (r *memReader) TripsByRoute(routeID string) ([]*Trip, error) {
	trips, err := r.Trips()
	if err != nil {
		return nil, err
	}
	var out []*Trip
	for _, t := range trips {
		if t.RouteID == routeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memReader) TripsByShape(shapeID string) ([]*Trip, error) {
	trips, err := r.Trips()
	if err != nil {
		return nil, err
	}
	var out []*Trip
	for _, t := range trips {
		if t.ShapeID == shapeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memReader) TripsByStop(stopID string) ([]*Trip, error) {
	stopTimes, err := r.StopTimes()
	if err != nil {
		return nil, err
	}
	tripIDs := map[string]bool{}
	for _, st := range stopTimes {
		if st.StopID == stopID {
			tripIDs[st.TripID] = true
		}
	}
	trips, err := r.Trips()
	if err != nil {
		return nil, err
	}
	var out []*Trip
	for _, t := range trips {
		if tripIDs[t.TripID] {
			out = append(out, t)
		}
	}
	return out, nil
}
