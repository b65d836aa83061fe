package gtfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/transitarchive/gtfs/constants"
)

// Client manages feeds over a Storage backend. Each feed admits one
// writer at a time; reads may proceed concurrently with each other but
// never observe a half-imported feed.
type Client struct {
	storage Storage
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
}

type ClientOption func(*Client)

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(storage Storage, opts ...ClientOption) *Client {
	client := &Client{
		storage: storage,
		logger:  slog.Default(),
		locks:   map[int64]*sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) feedLock(feedID int64) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock := c.locks[feedID]
	if lock == nil {
		lock = &sync.RWMutex{}
		c.locks[feedID] = lock
	}
	return lock
}

func (c *Client) CreateFeed(name string) (*Feed, error) {
	feed := &Feed{Name: name, CreatedAt: time.Now().UTC()}
	if err := c.storage.CreateFeed(feed); err != nil {
		return nil, err
	}
	c.logger.Info("created feed", slog.Int64("feed", feed.ID), slog.String("name", name))
	return feed, nil
}

func (c *Client) GetFeed(feedID int64) (*Feed, error) {
	return c.storage.GetFeed(feedID)
}

func (c *Client) ListFeeds() ([]*Feed, error) {
	return c.storage.ListFeeds()
}

// DeleteFeed removes the feed and everything it owns.
func (c *Client) DeleteFeed(feedID int64) error {
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	if err := c.storage.DeleteFeed(feedID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.locks, feedID)
	c.mu.Unlock()
	c.logger.Info("deleted feed", slog.Int64("feed", feedID))
	return nil
}

// Import reads a GTFS archive from path, which may name a ZIP file or a
// directory holding the archive's files, and loads it into the feed.
// Importing into a populated feed is additive: rows whose natural keys
// already exist in the feed are dropped with a DuplicateRow warning.
func (c *Client) Import(ctx context.Context, feedID int64, path string, opts ImportOptions) error {
	src, err := openSource(path)
	if err != nil {
		return err
	}
	defer src.close()
	return c.importSource(ctx, feedID, src, opts)
}

// ImportBytes imports a GTFS ZIP archive held in memory.
func (c *Client) ImportBytes(ctx context.Context, feedID int64, content []byte, opts ImportOptions) error {
	src, err := newBytesSource(content)
	if err != nil {
		return err
	}
	defer src.close()
	return c.importSource(ctx, feedID, src, opts)
}

func (c *Client) importSource(ctx context.Context, feedID int64, src source, opts ImportOptions) error {
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	feed, err := c.storage.GetFeed(feedID)
	if err != nil {
		return err
	}
	if feed == nil {
		return fmt.Errorf("no feed with id %d", feedID)
	}
	reader, err := c.storage.Reader(feedID)
	if err != nil {
		return err
	}
	imp := &importer{
		ctx:     ctx,
		storage: c.storage,
		feed:    feed,
		reader:  reader,
		res:     newResolver(feedID, reader),
		warn:    opts.Warnings,
		logger:  c.logger,
		extras:  map[constants.Entity]map[string]bool{},
	}
	start := time.Now()
	if err := imp.run(src); err != nil {
		c.logger.Error("import failed",
			slog.Int64("feed", feedID),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return err
	}
	c.logger.Info("imported feed",
		slog.Int64("feed", feedID),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Export writes the feed as a GTFS ZIP archive. Output is deterministic:
// exporting the same feed twice yields identical bytes.
func (c *Client) Export(ctx context.Context, feedID int64, w io.Writer) error {
	lock := c.feedLock(feedID)
	lock.RLock()
	defer lock.RUnlock()
	feed, err := c.storage.GetFeed(feedID)
	if err != nil {
		return err
	}
	if feed == nil {
		return fmt.Errorf("no feed with id %d", feedID)
	}
	reader, err := c.storage.Reader(feedID)
	if err != nil {
		return err
	}
	return writeArchive(ctx, feed, reader, w)
}

// ExportFile exports the feed to a ZIP file at path.
func (c *Client) ExportFile(ctx context.Context, feedID int64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Export(ctx, feedID, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RebuildGeometries recomputes every derived geometry in the feed from
// scratch. Safe to run at any time; a feed whose geometries are current
// is left untouched.
func (c *Client) RebuildGeometries(ctx context.Context, feedID int64) error {
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	return rebuildGeometries(ctx, c.storage, feedID)
}

// SaveShapePoint inserts or updates one shape point and propagates the
// change: the shape's line is recomputed, then the lines of trips using
// the shape, then the multi-lines of their routes.
func (c *Client) SaveShapePoint(ctx context.Context, feedID int64, point *ShapePoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	reader, err := c.storage.Reader(feedID)
	if err != nil {
		return err
	}
	shape, err := reader.ShapeByID(point.ShapeID)
	if err != nil {
		return err
	}
	if shape == nil {
		return fmt.Errorf("no shape %q in feed %d", point.ShapeID, feedID)
	}
	points, err := reader.ShapePointsByShape(point.ShapeID)
	if err != nil {
		return err
	}
	point.FeedID = feedID
	tx, err := c.storage.Begin(feedID)
	if err != nil {
		return err
	}
	if point.ID == 0 {
		err = tx.InsertShapePoint(point)
		points = append(points, point)
	} else {
		err = tx.UpdateShapePoint(point)
		for i := range points {
			if points[i].ID == point.ID {
				points[i] = point
				break
			}
		}
	}
	if err != nil {
		tx.Rollback()
		return err
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })
	if err := refreshShape(reader, tx, shape, points); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveRouteDirection attaches a direction name to a route. Route
// directions have no file in the archive; this is the only way to
// create them.
func (c *Client) SaveRouteDirection(ctx context.Context, feedID int64, d *RouteDirection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	reader, err := c.storage.Reader(feedID)
	if err != nil {
		return err
	}
	route, err := reader.RouteByID(d.RouteID)
	if err != nil {
		return err
	}
	if route == nil {
		return fmt.Errorf("no route %q in feed %d", d.RouteID, feedID)
	}
	if d.Direction != "0" && d.Direction != "1" {
		return fmt.Errorf("invalid direction %q, want \"0\" or \"1\"", d.Direction)
	}
	d.FeedID = feedID
	tx, err := c.storage.Begin(feedID)
	if err != nil {
		return err
	}
	if err := tx.InsertRouteDirection(d); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// MoveStop changes a stop's position and recomputes the lines of the
// shapeless trips that visit it, cascading to their routes.
func (c *Client) MoveStop(ctx context.Context, feedID int64, stopID string, point Point) error {
	lock := c.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	reader, err := c.storage.Reader(feedID)
	if err != nil {
		return err
	}
	stop, err := reader.StopByID(stopID)
	if err != nil {
		return err
	}
	if stop == nil {
		return fmt.Errorf("no stop %q in feed %d", stopID, feedID)
	}
	tx, err := c.storage.Begin(feedID)
	if err != nil {
		return err
	}
	stop.Point = &point
	if err := tx.UpdateStop(stop); err != nil {
		tx.Rollback()
		return err
	}
	stopAt := func(id string) (*Stop, error) {
		if id == stopID {
			return stop, nil
		}
		return reader.StopByID(id)
	}
	trips, err := reader.TripsByStop(stopID)
	if err != nil {
		tx.Rollback()
		return err
	}
	overrides := map[string]Line{}
	routeIDs := map[string]bool{}
	for _, trip := range trips {
		if err := ctx.Err(); err != nil {
			tx.Rollback()
			return err
		}
		if trip.ShapeID != "" {
			// line comes from the shape, not the stops
			continue
		}
		stopTimes, err := reader.StopTimesByTrip(trip.TripID)
		if err != nil {
			tx.Rollback()
			return err
		}
		line, err := lineFromStopVisits(stopTimes, stopAt)
		if err != nil {
			tx.Rollback()
			return err
		}
		if line.Equal(trip.Geometry) {
			continue
		}
		trip.Geometry = line
		if err := tx.UpdateTrip(trip); err != nil {
			tx.Rollback()
			return err
		}
		overrides[trip.TripID] = line
		routeIDs[trip.RouteID] = true
	}
	for routeID := range routeIDs {
		if err := refreshRoute(reader, tx, routeID, overrides); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
