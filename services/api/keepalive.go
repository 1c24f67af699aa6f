package api

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/placementcell/portal/core"
)

const pingTimeout = 30 * time.Second

// KeepAlive pings the backend's health endpoint on a schedule so that a sleeping host stays warm.
type KeepAlive struct {
	client *Client
	spec   string
	logger core.Logger

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

func NewKeepAlive(client *Client, conf *core.Config, logger core.Logger) *KeepAlive {
	return &KeepAlive{client: client, spec: conf.API.KeepAliveSpec, logger: logger}
}

// Start pings once right away, then on every tick of the schedule. Starting twice is a no-op.
func (k *KeepAlive) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cron != nil || k.spec == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(k.spec, k.Ping); err != nil {
		return errors.Wrapf(err, "scheduling keep-alive %q", k.spec)
	}
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		k.Ping()
	}()
	c.Start()
	k.cron = c
	return nil
}

// Stop waits for running pings.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	c := k.cron
	k.cron = nil
	k.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	k.wg.Wait()
}

func (k *KeepAlive) Ping() {
	timeout := k.client.http.HTTPClient.Timeout
	if timeout <= 0 {
		timeout = pingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := k.client.Health(ctx); err != nil {
		k.logger.Warn("keep-alive ping failed", err)
	}
}
