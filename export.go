package gtfs

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/transitarchive/gtfs/csv"
)

// exporter gathers a feed's committed rows for emission. One exporter
// lives for exactly one call to Client.Export.
type exporter struct {
	feed   *Feed
	reader Reader
}

// exportRow is one line of an output table: cells aligned with the
// table's declared columns, the row's preserved extra data, and the key
// it sorts under.
type exportRow struct {
	cells []string
	extra map[string]string
	key   []sortKey
}

// sortKey compares numerically when both sides are numeric, and as
// strings otherwise, so sequence columns order 2 before 10.
type sortKey struct {
	str     string
	num     float64
	numeric bool
}

func stringKey(s string) sortKey  { return sortKey{str: s} }
func numberKey(n float64) sortKey { return sortKey{num: n, numeric: true} }

func (k sortKey) less(o sortKey) bool {
	if k.numeric && o.numeric {
		return k.num < o.num
	}
	return k.str < o.str
}

func lessRows(a, b exportRow) bool {
	for i := range a.key {
		if i >= len(b.key) {
			return false
		}
		if a.key[i].less(b.key[i]) {
			return true
		}
		if b.key[i].less(a.key[i]) {
			return false
		}
	}
	return false
}

// writeArchive emits the feed as a GTFS ZIP archive. Tables appear in a
// fixed order, rows sort by their natural keys, optional columns that are
// blank throughout the feed are pruned, and preserved extra columns are
// appended after the declared ones. The same feed always produces the
// same bytes.
func writeArchive(ctx context.Context, feed *Feed, reader Reader, w io.Writer) error {
	x := &exporter{feed: feed, reader: reader}
	zw := zip.NewWriter(w)
	for _, fileName := range exportOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		spec := tableFor(fileName)
		rows, err := spec.export(x)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", fileName, err)
		}
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return lessRows(rows[i], rows[j]) })
		keep := prunedColumns(spec, rows)
		extraColumns := feed.ExtraColumns[spec.entity]

		header := make([]string, 0, len(spec.columns)+len(extraColumns))
		for i, col := range spec.columns {
			if keep[i] {
				header = append(header, col.name)
			}
		}
		header = append(header, extraColumns...)

		entry, err := zw.Create(string(fileName))
		if err != nil {
			return err
		}
		cw := csv.NewWriter(entry)
		if err := cw.Write(header); err != nil {
			return err
		}
		record := make([]string, 0, len(header))
		for _, row := range rows {
			record = record[:0]
			for i := range spec.columns {
				if keep[i] {
					record = append(record, row.cells[i])
				}
			}
			for _, name := range extraColumns {
				record = append(record, row.extra[name])
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		if err := cw.Flush(); err != nil {
			return err
		}
	}
	return zw.Close()
}

// prunedColumns reports which declared columns survive pruning: required
// columns always, optional columns only when some row populates them.
func prunedColumns(spec *tableSpec, rows []exportRow) []bool {
	keep := make([]bool, len(spec.columns))
	for i, col := range spec.columns {
		if !col.optional {
			keep[i] = true
			continue
		}
		for _, row := range rows {
			if row.cells[i] != "" {
				keep[i] = true
				break
			}
		}
	}
	return keep
}

func exportAgencies(x *exporter) ([]exportRow, error) {
	agencies, err := x.reader.Agencies()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(agencies))
	for _, a := range agencies {
		rows = append(rows, exportRow{
			cells: []string{
				a.AgencyID,
				a.Name,
				a.URL,
				a.Timezone,
				a.Language,
				a.Phone,
				a.FareURL,
				a.Email,
			},
			extra: a.ExtraData,
			key:   []sortKey{stringKey(a.AgencyID)},
		})
	}
	return rows, nil
}

func exportStops(x *exporter) ([]exportRow, error) {
	stops, err := x.reader.Stops()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(stops))
	for _, s := range stops {
		var lat, lon string
		if s.Point != nil {
			lat = formatFloat(s.Point.Lat)
			lon = formatFloat(s.Point.Lon)
		}
		rows = append(rows, exportRow{
			cells: []string{
				s.StopID,
				s.Code,
				s.Name,
				s.Desc,
				lat,
				lon,
				s.ZoneID,
				s.URL,
				s.LocationType,
				s.ParentStation,
				s.Timezone,
				s.WheelchairBoarding,
			},
			extra: s.ExtraData,
			key:   []sortKey{stringKey(s.StopID)},
		})
	}
	return rows, nil
}

func exportRoutes(x *exporter) ([]exportRow, error) {
	routes, err := x.reader.Routes()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(routes))
	for _, r := range routes {
		rows = append(rows, exportRow{
			cells: []string{
				r.RouteID,
				r.AgencyID,
				r.ShortName,
				r.LongName,
				r.Desc,
				formatInt(r.Type),
				r.URL,
				r.Color,
				r.TextColor,
			},
			extra: r.ExtraData,
			key:   []sortKey{stringKey(r.RouteID)},
		})
	}
	return rows, nil
}

// serviceHasCalendar reports whether the service carries any calendar.txt
// data. Placeholder services materialized from references alone have no
// weekdays and no dates; a real row with empty dates still has its flags.
func serviceHasCalendar(s *Service) bool {
	return s.Monday || s.Tuesday || s.Wednesday || s.Thursday ||
		s.Friday || s.Saturday || s.Sunday ||
		s.StartDate != nil || s.EndDate != nil
}

// exportServices emits calendar.txt rows for services that carry calendar
// data. Placeholders produce nothing; if every service is a placeholder
// the file is skipped.
func exportServices(x *exporter) ([]exportRow, error) {
	services, err := x.reader.Services()
	if err != nil {
		return nil, err
	}
	var rows []exportRow
	for _, s := range services {
		if !serviceHasCalendar(s) {
			continue
		}
		rows = append(rows, exportRow{
			cells: []string{
				s.ServiceID,
				formatBool(s.Monday),
				formatBool(s.Tuesday),
				formatBool(s.Wednesday),
				formatBool(s.Thursday),
				formatBool(s.Friday),
				formatBool(s.Saturday),
				formatBool(s.Sunday),
				formatOptionalDate(s.StartDate),
				formatOptionalDate(s.EndDate),
			},
			extra: s.ExtraData,
			key:   []sortKey{stringKey(s.ServiceID)},
		})
	}
	return rows, nil
}

func exportServiceDates(x *exporter) ([]exportRow, error) {
	dates, err := x.reader.ServiceDates()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(dates))
	for _, d := range dates {
		date := formatDate(d.Date)
		rows = append(rows, exportRow{
			cells: []string{
				d.ServiceID,
				date,
				formatInt(int(d.ExceptionType)),
			},
			extra: d.ExtraData,
			key:   []sortKey{stringKey(d.ServiceID), stringKey(date)},
		})
	}
	return rows, nil
}

func exportShapePoints(x *exporter) ([]exportRow, error) {
	points, err := x.reader.ShapePoints()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, exportRow{
			cells: []string{
				p.ShapeID,
				formatFloat(p.Point.Lat),
				formatFloat(p.Point.Lon),
				formatInt(p.Sequence),
				formatOptionalFloat(p.DistTraveled),
			},
			extra: p.ExtraData,
			key:   []sortKey{stringKey(p.ShapeID), numberKey(float64(p.Sequence))},
		})
	}
	return rows, nil
}

func exportTrips(x *exporter) ([]exportRow, error) {
	trips, err := x.reader.Trips()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(trips))
	for _, t := range trips {
		rows = append(rows, exportRow{
			cells: []string{
				t.RouteID,
				t.ServiceID,
				t.TripID,
				t.Headsign,
				t.ShortName,
				t.Direction,
				t.BlockID,
				t.ShapeID,
				t.WheelchairAccessible,
				t.BikesAllowed,
			},
			extra: t.ExtraData,
			key:   []sortKey{stringKey(t.TripID)},
		})
	}
	return rows, nil
}

func exportStopTimes(x *exporter) ([]exportRow, error) {
	stopTimes, err := x.reader.StopTimes()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(stopTimes))
	for _, st := range stopTimes {
		rows = append(rows, exportRow{
			cells: []string{
				st.TripID,
				formatOptionalTime(st.ArrivalTime),
				formatOptionalTime(st.DepartureTime),
				st.StopID,
				formatInt(st.StopSequence),
				st.Headsign,
				st.PickupType,
				st.DropOffType,
				formatOptionalFloat(st.ShapeDistTraveled),
			},
			extra: st.ExtraData,
			key:   []sortKey{stringKey(st.TripID), numberKey(float64(st.StopSequence))},
		})
	}
	return rows, nil
}

func exportFrequencies(x *exporter) ([]exportRow, error) {
	frequencies, err := x.reader.Frequencies()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(frequencies))
	for _, f := range frequencies {
		var exactTimes string
		if f.ExactTimes == ScheduleBased {
			exactTimes = "1"
		}
		rows = append(rows, exportRow{
			cells: []string{
				f.TripID,
				f.StartTime.String(),
				f.EndTime.String(),
				formatInt(f.HeadwaySecs),
				exactTimes,
			},
			extra: f.ExtraData,
			key:   []sortKey{stringKey(f.TripID), numberKey(float64(f.StartTime))},
		})
	}
	return rows, nil
}

func exportFares(x *exporter) ([]exportRow, error) {
	fares, err := x.reader.Fares()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(fares))
	for _, f := range fares {
		rows = append(rows, exportRow{
			cells: []string{
				f.FareID,
				f.Price.String(),
				f.Currency,
				formatInt(int(f.PaymentMethod)),
				formatOptionalInt(f.Transfers),
				formatOptionalInt(f.TransferDuration),
			},
			extra: f.ExtraData,
			key:   []sortKey{stringKey(f.FareID)},
		})
	}
	return rows, nil
}

func exportFareRules(x *exporter) ([]exportRow, error) {
	rules, err := x.reader.FareRules()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, exportRow{
			cells: []string{
				r.FareID,
				r.RouteID,
				r.OriginID,
				r.DestinationID,
				r.ContainsID,
			},
			extra: r.ExtraData,
			key: []sortKey{
				stringKey(r.FareID),
				stringKey(r.RouteID),
				stringKey(r.OriginID),
				stringKey(r.DestinationID),
				stringKey(r.ContainsID),
			},
		})
	}
	return rows, nil
}

func exportTransfers(x *exporter) ([]exportRow, error) {
	transfers, err := x.reader.Transfers()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, exportRow{
			cells: []string{
				t.FromStopID,
				t.ToStopID,
				formatInt(int(t.Type)),
				formatOptionalInt(t.MinTransferTime),
			},
			extra: t.ExtraData,
			key:   []sortKey{stringKey(t.FromStopID), stringKey(t.ToStopID)},
		})
	}
	return rows, nil
}

func exportFeedInfo(x *exporter) ([]exportRow, error) {
	infos, err := x.reader.FeedInfos()
	if err != nil {
		return nil, err
	}
	rows := make([]exportRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, exportRow{
			cells: []string{
				info.PublisherName,
				info.PublisherURL,
				info.Language,
				formatOptionalDate(info.StartDate),
				formatOptionalDate(info.EndDate),
				info.Version,
			},
			extra: info.ExtraData,
			key:   []sortKey{stringKey(info.PublisherName)},
		})
	}
	return rows, nil
}
