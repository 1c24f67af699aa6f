package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
)

const (
	keyPrefix = "session:"
	expiryKey = "session-expiry" // sorted set of ids scored by unix expiry, read by Sweep
)

type store struct {
	rdb *redis.Client
	now func() time.Time
}

var _ session.Store = (*store)(nil)

// NewStore returns a store sharing sessions between app instances; redis expires the keys itself.
func NewStore(rdb *redis.Client) session.Store {
	return &store{rdb: rdb, now: time.Now}
}

// Open connects to redis and checks the connection.
func Open(ctx context.Context, addr string, db int) (session.Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "connecting to redis %s", addr)
	}
	return NewStore(rdb), nil
}

func (st *store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := st.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "getting session")
	}
	return session.Unmarshal(data)
}

func (st *store) Put(ctx context.Context, s *session.Session) error {
	data, err := session.Marshal(s)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		if ttl = s.ExpiresAt.Sub(st.now()); ttl <= 0 {
			return st.Delete(ctx, s.ID)
		}
	}
	pipe := st.rdb.TxPipeline()
	pipe.Set(ctx, keyPrefix+s.ID, data, ttl)
	if !s.ExpiresAt.IsZero() {
		pipe.ZAdd(ctx, expiryKey, redis.Z{Score: float64(s.ExpiresAt.Unix()), Member: s.ID})
	}
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "setting session")
}

func (st *store) Delete(ctx context.Context, id string) error {
	pipe := st.rdb.TxPipeline()
	pipe.Del(ctx, keyPrefix+id)
	pipe.ZRem(ctx, expiryKey, id)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "deleting session")
}

// Sweep drops the expiry entries of the sessions redis has expired (or is about to) and returns their ids.
func (st *store) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := st.rdb.ZRangeByScore(ctx, expiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing expired sessions")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id
		keys[i] = keyPrefix + id
	}
	pipe := st.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, expiryKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "deleting expired sessions")
	}
	return ids, nil
}

func (st *store) Close() error {
	return st.rdb.Close()
}
