package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/store"
)

func main() {
	var (
		dbPath  = flag.String("db", "data/alerts.db", "alert archive path")
		outPath = flag.String("out", "alerts.csv", "output CSV file")
	)
	flag.Parse()

	arch, err := store.OpenArchive(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open archive: %v\n", err)
		os.Exit(1)
	}
	defer arch.Close()

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := append([]string{"detected_at", "type", "reading_timestamp"}, model.FeatureFields...)
	if err := w.Write(header); err != nil {
		fmt.Fprintf(os.Stderr, "write header: %v\n", err)
		os.Exit(1)
	}

	n := 0
	err = arch.IterateAlerts(func(a model.Alert) bool {
		row := []string{a.Timestamp, a.Type, a.Data.Timestamp()}
		for _, f := range model.FeatureFields {
			row = append(row, strconv.FormatFloat(a.Data.Feature(f), 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintf(os.Stderr, "write row: %v\n", err)
			return false
		}
		n++
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterate alerts: %v\n", err)
		os.Exit(1)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "finalize csv: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("exported %d alerts to %s\n", n, *outPath)
}
