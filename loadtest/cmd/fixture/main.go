// Command fixture writes a deterministic Avro fixture archive that the
// fakestream service can load as its dataset.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/FakeStream/internal/fixture"
)

const flightSchema = `{
	"type": "record",
	"name": "Flight",
	"namespace": "fakestream.fixture",
	"fields": [
		{"name": "id", "type": "long"},
		{"name": "carrier", "type": "string"},
		{"name": "origin", "type": "string"},
		{"name": "dest", "type": "string"},
		{"name": "delayMinutes", "type": "int"}
	]
}`

var (
	outPath   string
	entryName string
	records   int
)

var (
	carriers = []string{"AA", "DL", "UA", "WN", "B6"}
	airports = []string{"ATL", "JFK", "LAX", "ORD", "SFO", "SEA", "DEN"}
)

func init() {
	// Try to load .env file (optional)
	godotenv.Load()

	flag.StringVar(&outPath, "out", getEnv("FAKESTREAM_FIXTURE_PATH", "fixture.tar.gz"), "Path of the tar.gz archive to write")
	flag.StringVar(&entryName, "entry", "flights.avro", "Name of the Avro file inside the archive")
	flag.IntVar(&records, "records", 1000, "Number of records to generate")
	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// flight derives record i from its position only, so archives are reproducible
func flight(i int) map[string]any {
	return map[string]any{
		"id":           int64(i),
		"carrier":      carriers[i%len(carriers)],
		"origin":       airports[i%len(airports)],
		"dest":         airports[(i*3+1)%len(airports)],
		"delayMinutes": int32((i * 7) % 95),
	}
}

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if records < 0 {
		logger.Fatal("Record count must be non-negative", zap.Int("records", records))
	}

	data := make([]map[string]any, records)
	for i := range records {
		data[i] = flight(i)
	}

	f, err := os.Create(outPath)
	if err != nil {
		logger.Fatal("Failed to create archive", zap.String("path", outPath), zap.Error(err))
	}

	w := bufio.NewWriter(f)
	if err := fixture.WriteArchive(w, entryName, flightSchema, data); err != nil {
		f.Close()
		logger.Fatal("Failed to write archive", zap.String("path", outPath), zap.Error(err))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		logger.Fatal("Failed to flush archive", zap.String("path", outPath), zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("Failed to close archive", zap.String("path", outPath), zap.Error(err))
	}

	logger.Info("Fixture archive written",
		zap.String("path", outPath),
		zap.String("entry", entryName),
		zap.Int("records", records),
	)
}
