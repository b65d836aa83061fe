package sqlite_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitarchive/gtfs"
	"github.com/transitarchive/gtfs/constants"
	"github.com/transitarchive/gtfs/internal/testutil"
	"github.com/transitarchive/gtfs/sqlite"
)

func open(t *testing.T) *sqlite.Storage {
	t.Helper()
	storage, err := sqlite.Open(filepath.Join(t.TempDir(), "gtfs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestFeedCRUD(t *testing.T) {
	storage := open(t)

	feed := &gtfs.Feed{Name: "test"}
	require.NoError(t, storage.CreateFeed(feed))
	require.NotZero(t, feed.ID)

	got, err := storage.GetFeed(feed.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	got.Name = "renamed"
	got.ExtraColumns = map[constants.Entity][]string{constants.Stop: {"platform_code"}}
	require.NoError(t, storage.UpdateFeed(got))
	got, err = storage.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"platform_code"}, got.ExtraColumns[constants.Stop])

	feeds, err := storage.ListFeeds()
	require.NoError(t, err)
	assert.Len(t, feeds, 1)

	require.NoError(t, storage.DeleteFeed(feed.ID))
	got, err = storage.GetFeed(feed.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Error(t, storage.DeleteFeed(feed.ID))
}

func TestInsertAndRead(t *testing.T) {
	storage := open(t)
	feed := &gtfs.Feed{Name: "test"}
	require.NoError(t, storage.CreateFeed(feed))

	tx, err := storage.Begin(feed.ID)
	require.NoError(t, err)
	stop := &gtfs.Stop{
		StopID:    "s1",
		Name:      "First",
		Point:     &gtfs.Point{Lon: -74.0, Lat: 40.0},
		ZoneID:    "z1",
		ExtraData: map[string]string{"platform_code": "7"},
	}
	require.NoError(t, tx.InsertStop(stop))
	require.NotZero(t, stop.ID)
	price, err := gtfs.ParseDecimal("2.75")
	require.NoError(t, err)
	require.NoError(t, tx.InsertFare(&gtfs.Fare{
		FareID:    "base",
		Price:     price,
		Currency:  "USD",
		Transfers: testutil.Ptr(2),
	}))
	require.NoError(t, tx.Commit())

	reader, err := storage.Reader(feed.ID)
	require.NoError(t, err)

	got, err := reader.StopByID("s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "First", got.Name)
	assert.Equal(t, &gtfs.Point{Lon: -74.0, Lat: 40.0}, got.Point)
	assert.Equal(t, map[string]string{"platform_code": "7"}, got.ExtraData)

	fare, err := reader.FareByID("base")
	require.NoError(t, err)
	require.NotNil(t, fare)
	assert.Equal(t, "2.75", fare.Price.String())
	require.NotNil(t, fare.Transfers)
	assert.Equal(t, 2, *fare.Transfers)

	missing, err := reader.StopByID("ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRollback(t *testing.T) {
	storage := open(t)
	feed := &gtfs.Feed{Name: "test"}
	require.NoError(t, storage.CreateFeed(feed))

	tx, err := storage.Begin(feed.ID)
	require.NoError(t, err)
	require.NoError(t, tx.InsertStop(&gtfs.Stop{StopID: "s1"}))
	require.NoError(t, tx.Rollback())

	reader, err := storage.Reader(feed.ID)
	require.NoError(t, err)
	stops, err := reader.Stops()
	require.NoError(t, err)
	assert.Empty(t, stops)
}

func TestDeleteFeedCascades(t *testing.T) {
	storage := open(t)
	feed := &gtfs.Feed{Name: "test"}
	require.NoError(t, storage.CreateFeed(feed))

	tx, err := storage.Begin(feed.ID)
	require.NoError(t, err)
	require.NoError(t, tx.InsertStop(&gtfs.Stop{StopID: "s1"}))
	require.NoError(t, tx.InsertTrip(&gtfs.Trip{TripID: "t1", RouteID: "r1"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, storage.DeleteFeed(feed.ID))

	reader, err := storage.Reader(feed.ID)
	require.NoError(t, err)
	stops, err := reader.Stops()
	require.NoError(t, err)
	assert.Empty(t, stops)
	trips, err := reader.Trips()
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestFeedsAreIsolated(t *testing.T) {
	storage := open(t)
	first := &gtfs.Feed{Name: "first"}
	require.NoError(t, storage.CreateFeed(first))
	second := &gtfs.Feed{Name: "second"}
	require.NoError(t, storage.CreateFeed(second))

	tx, err := storage.Begin(first.ID)
	require.NoError(t, err)
	require.NoError(t, tx.InsertStop(&gtfs.Stop{StopID: "s1"}))
	require.NoError(t, tx.Commit())

	reader, err := storage.Reader(second.ID)
	require.NoError(t, err)
	stop, err := reader.StopByID("s1")
	require.NoError(t, err)
	assert.Nil(t, stop, "stop from another feed is visible")
}

// The full pipeline works against the SQLite backend: import a feed,
// export it, and get the same archive from a reimport.
func TestImportExportRoundTrip(t *testing.T) {
	storage := open(t)
	client := gtfs.NewClient(storage)
	feed, err := client.CreateFeed("test")
	require.NoError(t, err)

	archive := testutil.NewZipBuilder().
		Add("agency.txt", "agency_id,agency_name,agency_url,agency_timezone\nMTA,Metro,https://transit.example,UTC\n").
		Add("stops.txt", "stop_id,stop_name,stop_lat,stop_lon,platform_code\ns1,First,40.0,-74.0,7\ns2,Second,40.1,-74.1,\n").
		Add("routes.txt", "route_id,agency_id,route_type\nr1,MTA,3\n").
		Add("calendar.txt",
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n"+
				"weekday,1,1,1,1,1,0,0,20240101,20241231\n").
		Add("trips.txt", "route_id,service_id,trip_id\nr1,weekday,t1\n").
		Add("stop_times.txt",
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
				"t1,09:00:00,09:00:00,s1,1\n"+
				"t1,25:30:00,25:30:00,s2,2\n").
		Build(t)
	require.NoError(t, client.ImportBytes(context.Background(), feed.ID, archive, gtfs.ImportOptions{}))

	var first bytes.Buffer
	require.NoError(t, client.Export(context.Background(), feed.ID, &first))

	reimport, err := client.CreateFeed("reimport")
	require.NoError(t, err)
	require.NoError(t, client.ImportBytes(context.Background(), reimport.ID, first.Bytes(), gtfs.ImportOptions{}))
	var second bytes.Buffer
	require.NoError(t, client.Export(context.Background(), reimport.ID, &second))
	assert.Equal(t, first.Bytes(), second.Bytes())
}
