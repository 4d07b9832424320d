// Package statsrefresh periodically materializes the per-host host_stats
// rollup, throttled so concurrent trim/upsert activity on a busy host
// collapses into one refresh rather than one per write.
package statsrefresh

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sift-inventory/sift/internal/store"
)

// MinInterval is the minimum time between refreshes for a given host.
const MinInterval = 60 * time.Second

// Refresher throttles host_stats recomputation per host using
// rate.Sometimes, guarded by a per-host mutex so a cache-stampede of
// trigger calls against the same host still issues a single refresh.
type Refresher struct {
	store *store.Store
	log   *logrus.Entry

	mu        sync.Mutex
	sometimes map[string]*rate.Sometimes
}

// New builds a Refresher over store, logging under component=statsrefresh.
func New(s *store.Store, log *logrus.Entry) *Refresher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Refresher{
		store:     s,
		log:       log.WithField("component", "statsrefresh"),
		sometimes: make(map[string]*rate.Sometimes),
	}
}

// Trigger asks for host's rollup to be refreshed, subject to the
// once-per-MinInterval throttle. Safe to call from many goroutines; only
// one refresh query runs even under concurrent callers for the same host.
func (r *Refresher) Trigger(ctx context.Context, host string) {
	r.throttleFor(host).Do(func() {
		now := time.Now()
		hs, err := r.store.RefreshHostStats(ctx, host, now)
		if err != nil {
			r.log.WithField("host", host).WithError(err).Warn("host stats refresh failed")
			return
		}
		r.log.WithFields(logrus.Fields{
			"host":         host,
			"total_files":  hs.TotalFiles,
			"total_bytes":  hs.TotalBytes,
			"total_hashed": hs.TotalHashed,
		}).Debug("host stats refreshed")
	})
}

func (r *Refresher) throttleFor(host string) *rate.Sometimes {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sometimes[host]
	if !ok {
		s = &rate.Sometimes{Interval: MinInterval}
		r.sometimes[host] = s
	}
	return s
}
