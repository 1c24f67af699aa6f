package inmemstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
)

type record struct {
	data      []byte
	expiresAt time.Time
}

type store struct {
	mutex sync.RWMutex
	table map[string]record
}

var _ session.Store = (*store)(nil)

// NewStore returns a process-local session store; sessions are lost on restart.
func NewStore() session.Store {
	return &store{table: make(map[string]record)}
}

func (st *store) Get(_ context.Context, id string) (*session.Session, error) {
	st.mutex.RLock()
	rec, ok := st.table[id]
	st.mutex.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	// stored encoded: callers never share a *Session
	return session.Unmarshal(rec.data)
}

func (st *store) Put(_ context.Context, s *session.Session) error {
	data, err := session.Marshal(s)
	if err != nil {
		return err
	}
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.table[s.ID] = record{data: data, expiresAt: s.ExpiresAt}
	return nil
}

func (st *store) Delete(_ context.Context, id string) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	delete(st.table, id)
	return nil
}

func (st *store) Sweep(_ context.Context, now time.Time) ([]string, error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	var ids []string
	for id, rec := range st.table {
		if !rec.expiresAt.IsZero() && !now.Before(rec.expiresAt) {
			delete(st.table, id)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (st *store) Close() error {
	return nil
}
