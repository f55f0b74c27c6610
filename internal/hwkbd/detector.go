package hwkbd

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedPlatform is returned when running on an unsupported OS
var ErrUnsupportedPlatform = errors.New("unsupported platform")

const (
	// DefaultQueryTimeout bounds a single device enumeration.
	DefaultQueryTimeout = 10 * time.Second

	// DefaultMinRefreshInterval is how long a successful enumeration is
	// reused before presence queries start another one.
	DefaultMinRefreshInterval = 2 * time.Second
)

// Option configures a Detector.
type Option func(*Detector)

// WithMinRefreshInterval overrides DefaultMinRefreshInterval.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(det *Detector) {
		det.minInterval = d
	}
}

// Enumerator lists the keyboards attached to the machine.
type Enumerator interface {
	Keyboards(ctx context.Context) ([]Device, error)
}

// Detector answers presence queries from the last known device list while a
// refresh runs in the background. Concurrent refreshes are collapsed.
type Detector struct {
	enum        Enumerator
	group       singleflight.Group
	timeout     time.Duration
	minInterval time.Duration
	logger      *zap.Logger

	mu        sync.RWMutex
	devices   []Device
	known     bool
	refreshed time.Time
}

// NewDetector creates a Detector.
func NewDetector(enum Enumerator, logger *zap.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Detector{
		enum:        enum,
		timeout:     DefaultQueryTimeout,
		minInterval: DefaultMinRefreshInterval,
		logger:      logger.Named("hwkbd"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Present reports whether a hardware keyboard counts as attached under
// policy. Unless the last enumeration is very recent a fresh one is started;
// when an earlier result exists it is used without waiting. If nothing is
// known and the enumeration fails or ctx ends first, the keyboard is assumed
// present.
func (d *Detector) Present(ctx context.Context, policy IgnorePolicy, ignored []string) bool {
	if policy == IgnoreAll {
		return false
	}

	devices, ok, fresh := d.cached()
	if ok && fresh {
		return Present(devices, policy, ignored)
	}

	result := d.refresh()
	if ok {
		return Present(devices, policy, ignored)
	}

	select {
	case res := <-result:
		if res.Err != nil {
			d.logger.Warn("keyboard enumeration failed, assuming hardware keyboard", zap.Error(res.Err))
			return true
		}
		return Present(res.Val.([]Device), policy, ignored)
	case <-ctx.Done():
		return true
	}
}

// Devices enumerates keyboards synchronously and refreshes the cache.
func (d *Detector) Devices(ctx context.Context) ([]Device, error) {
	select {
	case res := <-d.refresh():
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Device), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Detector) refresh() <-chan singleflight.Result {
	return d.group.DoChan("keyboards", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		devices, err := d.enum.Keyboards(ctx)
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		d.devices = devices
		d.known = true
		d.refreshed = time.Now()
		d.mu.Unlock()
		d.logger.Debug("keyboards enumerated", zap.Int("count", len(devices)))
		return devices, nil
	})
}

func (d *Detector) cached() (devices []Device, known, fresh bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.devices, d.known, d.known && time.Since(d.refreshed) < d.minInterval
}

// parseDescriptions turns one description per line into devices.
func parseDescriptions(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		devices = append(devices, Device{Description: line})
	}
	return devices
}
