package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	arch, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer arch.Close()

	a := model.NewAlert(model.Reading{"temperature": 9000.0}, time.Now())
	if err := arch.PutAlert(a); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := arch.PutAlert(model.NewAlert(model.Reading{"temperature": 9001.0}, time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got []model.Alert
	err = arch.IterateAlerts(func(al model.Alert) bool {
		got = append(got, al)
		return true
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("archived %d alerts, want 2", len(got))
	}
	for _, al := range got {
		if al.Type != model.AlertAnomaly || al.Data == nil {
			t.Fatalf("bad archived alert: %+v", al)
		}
	}
}

func TestArchiveIterateStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	arch, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer arch.Close()

	for i := 0; i < 5; i++ {
		_ = arch.PutAlert(model.NewAlert(model.Reading{"seq": i}, time.Now()))
	}
	n := 0
	_ = arch.IterateAlerts(func(model.Alert) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Fatalf("visited %d, want early stop at 2", n)
	}
}
