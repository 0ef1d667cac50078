// Package syncloop ties the Modbus group engine, debouncer, and RDS client
// into the bridge's tick procedure (component C5): read every group, debounce
// every site's raw bit, and publish the effective state to the dispatch
// server, falling back to each site's safe default whenever a group's read
// fails.
package syncloop

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wwhai/worksite-bridge/internal/config"
	"github.com/wwhai/worksite-bridge/internal/debounce"
	"github.com/wwhai/worksite-bridge/internal/metrics"
	"github.com/wwhai/worksite-bridge/internal/modbusengine"
)

// RDSPublisher is the subset of the RDS client the loop depends on,
// satisfied by *rdsclient.Client; accepting an interface keeps this package
// free of rdsclient's HTTP-transport details and testable with a fake.
type RDSPublisher interface {
	HasSession() bool
	Login() error
	SetWorkSiteFilled(siteID string) error
	SetWorkSiteEmpty(siteID string) error
}

// GroupReader is the subset of the Modbus group engine the loop depends on,
// satisfied by *modbusengine.Engine; accepting an interface keeps this
// package testable against read outcomes (including a malformed, too-short
// response) without a live TCP connection.
type GroupReader interface {
	Read(group *config.Group, now time.Time) modbusengine.Result
}

// Loop owns one tick of the bridge's control flow.
type Loop struct {
	groups   []*config.Group
	engine   GroupReader
	debounce *debounce.Debouncer
	rds      RDSPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New builds a Loop over a fixed group set. The group set never changes
// once the bridge starts (groups are computed once from static config).
func New(groups []*config.Group, engine GroupReader, debouncer *debounce.Debouncer, rds RDSPublisher, logger *slog.Logger, m *metrics.Metrics) *Loop {
	return &Loop{groups: groups, engine: engine, debounce: debouncer, rds: rds, logger: logger, metrics: m}
}

// Run invokes SyncOnce every pollInterval until stop is closed.
func (l *Loop) Run(pollInterval time.Duration, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		started := time.Now()
		l.SyncOnce(started)
		elapsed := time.Since(started)
		if l.metrics != nil {
			l.metrics.ObserveCycle(elapsed)
		}

		sleep := pollInterval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-stop:
			return
		case <-time.After(sleep):
		}
	}
}

// SyncOnce runs one tick of the procedure described by component C5.
func (l *Loop) SyncOnce(now time.Time) {
	tickID := uuid.NewString()
	log := l.logger.With("tick_id", tickID)

	if !l.rds.HasSession() {
		if err := l.rds.Login(); err != nil {
			log.Error("rds login failed, individual writes will retry on demand", "error", err)
		}
	}

	for _, group := range l.groups {
		res := l.engine.Read(group, now)
		if l.metrics != nil {
			l.metrics.ObserveGroupRead(group.Key, statusLabel(res.Status))
		}

		switch res.Status {
		case modbusengine.StatusBackoff:
			// RDS already holds the safe state from the failure that armed
			// the backoff; re-writing would be noise.
			continue
		case modbusengine.StatusError:
			log.Error("group read failed, falling back to defaults", "group", group.Key, "error", res.Message)
			for _, site := range group.Sites {
				l.debounce.Reset(site)
				l.publish(log, site, site.Default)
			}
		case modbusengine.StatusOK:
			for _, site := range group.Sites {
				idx := site.Offset - group.MinOffset
				if idx < 0 || idx >= len(res.Inputs) {
					log.Error("site offset out of bounds, probable misconfiguration",
						"site_id", site.ID, "offset", site.Offset, "idx", idx)
					l.debounce.Reset(site)
					l.publish(log, site, site.Default)
					continue
				}
				effective := l.debounce.Update(site, res.Inputs[idx], now)
				l.publish(log, site, effective)
			}
		}
	}
}

func (l *Loop) publish(log *slog.Logger, site config.Site, state config.State) {
	var err error
	if state == config.StateFilled {
		err = l.rds.SetWorkSiteFilled(site.ID)
	} else {
		err = l.rds.SetWorkSiteEmpty(site.ID)
	}

	status := "ok"
	if err != nil {
		status = "error"
		log.Error("rds write failed", "site_id", site.ID, "state", state, "error", err)
	}
	if l.metrics != nil {
		l.metrics.ObserveRDSWrite(status)
		l.metrics.ObserveSiteState(site.ID, state.Bit())
	}
}

func statusLabel(s modbusengine.Status) string {
	switch s {
	case modbusengine.StatusOK:
		return "ok"
	case modbusengine.StatusBackoff:
		return "backoff"
	default:
		return "error"
	}
}
