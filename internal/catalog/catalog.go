// Package catalog implements the OTA catalog subsystem: persistent
// firmware images, version-identified update records, and the
// device↔group↔image association graph, plus the request evaluation
// that answers "what update applies to device D?". Grounded on the
// original source's lib-server/src/ota_db.rs (CBOR-packed sled trees,
// periodic async flush) and lib-shared/src/ota/v2.rs (the authoritative
// package shape).
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/internal/catalog/store"
	"github.com/nimbic-io/otahub/internal/metrics"
	"github.com/nimbic-io/otahub/internal/wire"
)

// Catalog is the single owner of KV mutation (spec.md §3, "Ownership").
// Every exported method assumes it is called from the catalog's own
// serial dispatch loop (Run) — this is the mutual-exclusion mechanism
// spec.md §5 calls for instead of record-level locks.
type Catalog struct {
	log   logr.Logger
	store *store.Store

	// imagePath is fixed at construction — it is the root of the
	// on-disk layout the image server's own http.FileServer already
	// bound, so changing it live would desync the two. baseURL is only
	// stamped into OTAPackageFileInfo.Host on save, so it can be swapped
	// on config reload.
	imagePath string
	baseURLMu sync.RWMutex
	baseURL   string

	in  chan broker.Event
	out chan<- broker.Event
}

// Config carries the catalog's filesystem and URL settings, sourced from
// the [ota] TOML section (pkg/options.OtaOptions).
type Config struct {
	ImagePath string
	BaseURL   string
}

// New constructs a Catalog bound to st and configured per cfg. out is the
// broker's inbox: every event the catalog emits (OtaResponse, the image/
// group list responses, acks) is sent there.
func New(st *store.Store, cfg Config, out chan<- broker.Event, log logr.Logger) *Catalog {
	return &Catalog{
		log:       log,
		store:     st,
		imagePath: cfg.ImagePath,
		baseURL:   cfg.BaseURL,
		in:        make(chan broker.Event, 256),
		out:       out,
	}
}

// Inbox returns the channel the catalog should be registered with under
// the broker name "ota".
func (c *Catalog) Inbox() chan broker.Event {
	return c.in
}

// currentBaseURL returns the base URL most recently applied, reflecting
// any live reload via UpdateBaseURL.
func (c *Catalog) currentBaseURL() string {
	c.baseURLMu.RLock()
	defer c.baseURLMu.RUnlock()
	return c.baseURL
}

// UpdateBaseURL applies a reloaded ota.url value. It takes effect on the
// next SaveOtaPackage call; packages already stored keep the host they
// were saved with. ImagePath is not reloadable (see the Catalog struct
// comment).
func (c *Catalog) UpdateBaseURL(baseURL string) {
	c.baseURLMu.Lock()
	defer c.baseURLMu.Unlock()
	c.baseURL = baseURL
}

// Run is the catalog's serial dispatch loop: one of the top-level
// errgroup tasks. Every event is fully processed before the next is
// read, which is what makes KV mutation race-free without locks.
func (c *Catalog) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.in:
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Catalog) dispatch(ctx context.Context, ev broker.Event) {
	switch e := ev.(type) {
	case broker.OtaNewPackage:
		timer := prometheus.NewTimer(metrics.CatalogOperationDuration.WithLabelValues("save_ota_package"))
		updateID, paths, err := c.SaveOtaPackage(e.Update)
		timer.ObserveDuration()
		if err != nil {
			c.log.Error(err, "save ota package failed")
			c.emitAck(ctx, "AddOta", false, err.Error())
			return
		}
		c.emitAck(ctx, "AddOta", true, "")
		for _, path := range paths {
			select {
			case c.out <- broker.OtaPackageSaved{UpdateID: updateID, FilePath: path}:
			case <-ctx.Done():
			}
		}

	case broker.OtaDeletePackage:
		timer := prometheus.NewTimer(metrics.CatalogOperationDuration.WithLabelValues("delete_ota_package"))
		err := c.DeleteOtaPackage(e.UpdateID)
		timer.ObserveDuration()
		if err != nil {
			c.log.Error(err, "delete ota package failed", "updateID", e.UpdateID)
			c.emitAck(ctx, "RemoveOta", false, err.Error())
			return
		}
		c.emitAck(ctx, "RemoveOta", true, "")

	case broker.OtaLinkEvent:
		pkg, err := c.Link(e.Link)
		if err != nil {
			c.log.Error(err, "link failed")
			c.emitAck(ctx, "LinkOta", false, err.Error())
			return
		}
		c.emitAck(ctx, "LinkOta", true, "")
		if e.Link.DeviceID != nil && pkg != nil {
			c.out <- broker.OtaResponseEvent{DeviceID: *e.Link.DeviceID, Package: pkg}
		}

	case broker.OtaUnlinkEvent:
		if err := c.Unlink(e.Link); err != nil {
			c.log.Error(err, "unlink failed")
			c.emitAck(ctx, "UnlinkOta", false, err.Error())
			return
		}
		c.emitAck(ctx, "UnlinkOta", true, "")

	case broker.OtaRequestEvent:
		c.handleOtaRequest(ctx, e)

	case broker.OtaUpdateGroupListRequest:
		groups, err := c.GetGroupList()
		if err != nil {
			c.log.Error(err, "get group list failed")
			return
		}
		c.out <- broker.OtaUpdateGroupListResponse{Groups: groups}

	case broker.OtaUpdateImageListRequest:
		images, err := c.GetImageList()
		if err != nil {
			c.log.Error(err, "get image list failed")
			return
		}
		c.out <- broker.OtaUpdateImageListResponse{Images: images}

	default:
		// Not addressed to the catalog (NewRunner, InfluxDataSave,
		// ApplicationRequest, ...); ignore.
	}
}

func (c *Catalog) handleOtaRequest(ctx context.Context, e broker.OtaRequestEvent) {
	switch e.Cmd {
	case wire.OtaRequestCheck:
		pkg, err := c.Resolve(e.DeviceID)
		if err != nil {
			c.log.Error(err, "resolve failed", "deviceID", e.DeviceID)
			return
		}
		c.out <- broker.OtaResponseEvent{DeviceID: e.DeviceID, Package: pkg}

	case wire.OtaRequestDone:
		if err := c.clearDevicePin(e.DeviceID); err != nil {
			c.log.Error(err, "clear device pin failed", "deviceID", e.DeviceID)
		}

	default:
		c.log.Info("dropping ota request with unknown cmd", "deviceID", e.DeviceID, "cmd", e.Cmd)
	}
}

func (c *Catalog) emitAck(ctx context.Context, op string, ok bool, message string) {
	select {
	case c.out <- broker.AckEvent{Op: op, OK: ok, Message: message}:
	case <-ctx.Done():
	}
}

func updateFilePath(updateID string, imageType wire.OTAImageType) string {
	return fmt.Sprintf("%s/%s-%s.bin", updateID, imageType.String(), updateID)
}
