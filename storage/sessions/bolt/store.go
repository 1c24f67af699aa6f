package boltstore

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
)

var (
	sessionsBucket = []byte("sessions")
	expiryBucket   = []byte("session_expiry") // id -> unix nano expiry, so sweeps skip decoding
)

type store struct {
	db *bbolt.DB
}

var _ session.Store = (*store)(nil)

// Open opens (or creates) the bolt file at path and its buckets.
func Open(path string) (session.Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{sessionsBucket, expiryBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &store{db: db}, nil
}

func (st *store) Get(_ context.Context, id string) (*session.Session, error) {
	var data []byte
	err := st.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(id))
		if v == nil {
			return core.ErrNotFound
		}
		// v is only valid during the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err == bbolt.ErrDatabaseNotOpen {
		return nil, core.NewShutdownError("session store is closed")
	}
	if err != nil {
		return nil, err
	}
	return session.Unmarshal(data)
}

func (st *store) Put(_ context.Context, s *session.Session) error {
	data, err := session.Marshal(s)
	if err != nil {
		return err
	}
	return st.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(sessionsBucket).Put([]byte(s.ID), data); err != nil {
			return errors.Wrap(err, "putting session")
		}
		exp := make([]byte, 8)
		binary.BigEndian.PutUint64(exp, uint64(s.ExpiresAt.UnixNano()))
		return errors.Wrap(tx.Bucket(expiryBucket).Put([]byte(s.ID), exp), "putting session expiry")
	})
}

func (st *store) Delete(_ context.Context, id string) error {
	return st.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(sessionsBucket).Delete([]byte(id)); err != nil {
			return errors.Wrap(err, "deleting session")
		}
		return errors.Wrap(tx.Bucket(expiryBucket).Delete([]byte(id)), "deleting session expiry")
	})
}

func (st *store) Sweep(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := st.db.Update(func(tx *bbolt.Tx) error {
		exps := tx.Bucket(expiryBucket)
		var expired [][]byte
		// keys can't be deleted while iterating
		err := exps.ForEach(func(k, v []byte) error {
			if len(v) == 8 && int64(binary.BigEndian.Uint64(v)) <= now.UnixNano() {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		sess := tx.Bucket(sessionsBucket)
		for _, k := range expired {
			if err := sess.Delete(k); err != nil {
				return err
			}
			if err := exps.Delete(k); err != nil {
				return err
			}
			ids = append(ids, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "sweeping sessions")
	}
	return ids, nil
}

func (st *store) Close() error {
	return st.db.Close()
}
