// Package roster stores the public keys published by committee members, one
// bbolt bucket per committee size, keyed by party id.
package roster

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/internal/wire"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
	"github.com/zmlAEQ/silent-threshold/pkg/trace"
)

var (
	ErrNotFound   = errors.New("roster: public key not found")
	ErrIncomplete = errors.New("roster: committee incomplete")
)

type Roster struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Roster, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("roster: open %s: %w", path, err)
	}
	return &Roster{db: db}, nil
}

func (r *Roster) Close() error { return r.db.Close() }

func bucketName(n int) []byte { return []byte("pk/" + strconv.Itoa(n)) }

func idKey(id int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

// Put stores pk under its committee size (len(pk.SkLiByZ)) and id, replacing
// any previous key for that slot.
func (r *Roster) Put(ctx context.Context, pk *ste.PublicKey) error {
	n := len(pk.SkLiByZ)
	if pk.ID < 0 || pk.ID >= n {
		return fmt.Errorf("%w: id %d for committee of %d", ste.ErrDimension, pk.ID, n)
	}
	enc := wire.EncodePublicKey(pk)
	err := r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(n))
		if err != nil {
			return err
		}
		return b.Put(idKey(pk.ID), enc)
	})
	r.record(ctx, "put", n, pk.ID, err)
	return err
}

// Get returns the key of party id in the committee of n.
func (r *Roster) Get(ctx context.Context, n, id int) (*ste.PublicKey, error) {
	var pk *ste.PublicKey
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(n))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(idKey(id))
		if v == nil {
			return ErrNotFound
		}
		var err error
		pk, err = wire.DecodePublicKey(v)
		return err
	})
	r.record(ctx, "get", n, id, err)
	return pk, err
}

// All returns every stored key of the committee of n ordered by id.
func (r *Roster) All(ctx context.Context, n int) ([]ste.PublicKey, error) {
	var out []ste.PublicKey
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(n))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			pk, err := wire.DecodePublicKey(v)
			if err != nil {
				return err
			}
			out = append(out, *pk)
			return nil
		})
	})
	r.record(ctx, "all", n, -1, err)
	return out, err
}

// Complete returns the n keys of the committee of n, or ErrIncomplete naming
// the missing ids.
func (r *Roster) Complete(ctx context.Context, n int) ([]ste.PublicKey, error) {
	all, err := r.All(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(all) == n {
		return all, nil
	}
	have := make(map[int]bool, len(all))
	for i := range all {
		have[all[i].ID] = true
	}
	var missing []int
	for id := 0; id < n; id++ {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return nil, fmt.Errorf("%w: %d of %d keys, missing %v", ErrIncomplete, len(all), n, missing)
}

// Delete removes the key of party id, if any.
func (r *Roster) Delete(ctx context.Context, n, id int) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(n))
		if b == nil {
			return nil
		}
		return b.Delete(idKey(id))
	})
	r.record(ctx, "delete", n, id, err)
	return err
}

func (r *Roster) record(ctx context.Context, op string, n, id int, err error) {
	tid, _ := trace.FromContext(ctx)
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "miss"
	case err != nil:
		result = "error"
	}
	metrics.Inc("ste_roster_total", map[string]string{"op": op, "result": result})
	fields := map[string]any{"op": op, "result": result, "n": n, "trace_id": tid}
	if id >= 0 {
		fields["party_id"] = id
	}
	if result == "error" {
		fields["err"] = err.Error()
		logger.ErrorJ("roster", fields)
		return
	}
	logger.InfoJ("roster", fields)
}
