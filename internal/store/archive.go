package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/model"
)

var bAlerts = []byte("alerts") // key=tsNano:rand, val=json

// Archive is an optional durable sink for alerts. The in-memory store stays
// authoritative; the pipeline writes through and absorbs archive failures.
type Archive struct{ db *bolt.DB }

func OpenArchive(path string) (*Archive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil { return nil, err }
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bAlerts); return e
	})
	if err != nil { _ = db.Close(); return nil, err }
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) PutAlert(al model.Alert) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		j, _ := json.Marshal(al)
		// time-ordered key; random suffix avoids same-nanosecond collisions
		k := []byte(time.Now().UTC().Format(time.RFC3339Nano) + ":" + randID())
		return tx.Bucket(bAlerts).Put(k, j)
	})
}

// IterateAlerts walks archived alerts oldest-first until fn returns false.
func (a *Archive) IterateAlerts(fn func(al model.Alert) bool) error {
	return a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bAlerts).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var al model.Alert
			if json.Unmarshal(v, &al) != nil { continue }
			if !fn(al) { break }
		}
		return nil
	})
}

func randID() string { b := make([]byte, 6); _, _ = rand.Read(b); return hex.EncodeToString(b) }
