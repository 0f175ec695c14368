// Command genmock writes a deterministic set of mock input files for the
// region ETL and can serve a matching fake reverse geocoder, so a full
// prepare run works offline in seconds.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -regions 40 -establishments 400
//	go run ./cmd/genmock -out data/mock -serve :8089
//
// Then point the ETL at the output:
//
//	STATS_WORKBOOK_PATH=data/mock/ICES-COVID19-Vaccination-Data-by-FSA.xlsx \
//	POPULATION_CSV_PATH=data/mock/T120120211212055123.csv \
//	INSPECTIONS_XML_PATH=data/mock/ds.xml \
//	GEOCODER_URL=http://localhost:8089 GEOCODER_MIN_INTERVAL=1ms \
//	go run ./cmd/etl prepare
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/region-health-etl/internal/domain"
	"github.com/couchcryptid/region-health-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := mockdata.DefaultOptions()
	out := flag.String("out", "", "directory to write the mock input files to")
	regions := flag.Int("regions", defaults.Regions, "number of in-scope regions")
	establishments := flag.Int("establishments", defaults.Establishments, "number of registry establishments")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	prefix := flag.String("prefix", defaults.Prefix, "region code prefix letter")
	serve := flag.String("serve", "", "if set, serve a fake reverse geocoder on this address after writing")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	ds, err := mockdata.Generate(mockdata.Options{
		Regions:        *regions,
		Establishments: *establishments,
		Seed:           *seed,
		Prefix:         *prefix,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	paths, err := mockdata.WriteFiles(*out, ds)
	if err != nil {
		return fmt.Errorf("write files: %w", err)
	}
	log.Printf("wrote workbook: %s", paths.Workbook)
	log.Printf("wrote population: %s", paths.Population)
	log.Printf("wrote inspections: %s", paths.Inspections)

	printStats(ds)

	if *serve == "" {
		return nil
	}
	return serveGeocoder(*serve, ds)
}

func printStats(ds *mockdata.Dataset) {
	var lake, outside int
	for _, e := range ds.Establishments {
		switch {
		case e.Region == "":
			lake++
		case !domain.ValidRegionCode(e.Region) || e.Region[:1] != ds.Prefix:
			outside++
		}
	}
	expected := ds.Expected()
	restaurants := 0
	for _, r := range expected {
		restaurants += r.Restaurants
	}

	fmt.Println()
	fmt.Printf("Regions:          %d\n", len(ds.Regions))
	fmt.Printf("Establishments:   %d\n", len(ds.Establishments))
	fmt.Printf("  in scope:       %d\n", restaurants)
	fmt.Printf("  outside prefix: %d\n", outside)
	fmt.Printf("  no address:     %d\n", lake)
}

func serveGeocoder(addr string, ds *mockdata.Dataset) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           mockdata.NewReverseHandler(ds),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("serving fake reverse geocoder on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
