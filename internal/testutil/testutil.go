// Package testutil holds helpers shared by tests across the module.
package testutil

import (
	"archive/zip"
	"bytes"
	"testing"
)

// ZipBuilder assembles an in-memory GTFS archive. It starts with an
// empty but valid feed, so tests only specify the files they care
// about.
type ZipBuilder struct {
	files map[string]string
}

func NewZipBuilder() *ZipBuilder {
	return &ZipBuilder{files: map[string]string{
		"agency.txt":     "agency_name,agency_url,agency_timezone\n",
		"stops.txt":      "stop_id,stop_name,stop_lat,stop_lon\n",
		"routes.txt":     "route_id,route_type\n",
		"trips.txt":      "route_id,service_id,trip_id\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n",
		"calendar.txt":   "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n",
	}}
}

// Add sets the content of one file, replacing any default.
func (b *ZipBuilder) Add(name, content string) *ZipBuilder {
	b.files[name] = content
	return b
}

// Remove drops a file from the archive.
func (b *ZipBuilder) Remove(name string) *ZipBuilder {
	delete(b.files, name)
	return b
}

// Build returns the archive's ZIP bytes.
func (b *ZipBuilder) Build(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range b.files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s in the test archive: %s", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s in the test archive: %s", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close the test archive: %s", err)
	}
	return buf.Bytes()
}

// Ptr returns a pointer to its argument; handy for optional fields in
// expected values.
func Ptr[T any](v T) *T {
	return &v
}
