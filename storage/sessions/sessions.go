package sessionstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
	boltstore "github.com/placementcell/portal/storage/sessions/bolt"
	inmemstore "github.com/placementcell/portal/storage/sessions/inmem"
	redisstore "github.com/placementcell/portal/storage/sessions/redis"
)

// Open returns the session store selected by the config: memory, bolt (default) or redis.
func Open(ctx context.Context, conf *core.Config) (session.Store, error) {
	switch conf.Session.Store {
	case "memory":
		return inmemstore.NewStore(), nil
	case "redis":
		return redisstore.Open(ctx, conf.Session.RedisAddr, conf.Session.RedisDB)
	case "bolt", "":
		path := conf.Session.BoltPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(conf.WorkDir, path)
		}
		return boltstore.Open(path)
	default:
		return nil, fmt.Errorf("unknown session store %q", conf.Session.Store)
	}
}
