package hwkbd

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func devices(descs ...string) []Device {
	out := make([]Device, 0, len(descs))
	for _, d := range descs {
		out = append(out, Device{Description: d})
	}
	return out
}

func TestPresent_Policies(t *testing.T) {
	ghost := "HID Keyboard Device"
	ignored := []string{ghost}

	tests := []struct {
		name    string
		devices []Device
		policy  IgnorePolicy
		want    bool
	}{
		{"no keyboards", nil, DoNotIgnore, false},
		{"do not ignore", devices(ghost), DoNotIgnore, true},
		{"ignore all", devices("USB Keyboard", ghost), IgnoreAll, false},
		{"single instance ignored", devices("USB Keyboard"), IgnoreIfSingleInstance, false},
		{"two instances counted", devices("USB Keyboard", ghost), IgnoreIfSingleInstance, true},
		{"single on list ignored", devices(ghost), IgnoreIfSingleInstanceOnList, false},
		{"single off list counted", devices("USB Keyboard"), IgnoreIfSingleInstanceOnList, true},
		{"two on list counted", devices(ghost, ghost), IgnoreIfSingleInstanceOnList, true},
		{"all on list ignored", devices(ghost, ghost), IgnoreIfOnList, false},
		{"one off list counted", devices(ghost, "USB Keyboard"), IgnoreIfOnList, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Present(tt.devices, tt.policy, ignored))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies() {
		parsed, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	p, err := ParsePolicy("ignoreall")
	require.NoError(t, err)
	assert.Equal(t, IgnoreAll, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestParseDescriptions(t *testing.T) {
	got := parseDescriptions("Standard PS/2 Keyboard\r\n\r\n  HID Keyboard Device  \r\n")
	assert.Equal(t, devices("Standard PS/2 Keyboard", "HID Keyboard Device"), got)
}

type fakeEnumerator struct {
	mu      sync.Mutex
	devices []Device
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (e *fakeEnumerator) Keyboards(ctx context.Context) ([]Device, error) {
	e.calls.Add(1)
	e.mu.Lock()
	delay, devs, err := e.delay, e.devices, e.err
	e.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return devs, err
}

func (e *fakeEnumerator) set(devs []Device, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = devs
	e.delay = delay
}

// drain waits for any in-flight enumeration so nothing logs after the test.
func drain(t *testing.T, d *Detector) {
	t.Helper()
	_, _ = d.Devices(context.Background())
}

func TestDetector_WaitsForFirstResult(t *testing.T) {
	enum := &fakeEnumerator{devices: devices("USB Keyboard"), delay: 5 * time.Millisecond}
	d := NewDetector(enum, zaptest.NewLogger(t))

	assert.True(t, d.Present(context.Background(), DoNotIgnore, nil))
	assert.False(t, d.Present(context.Background(), IgnoreIfSingleInstance, nil))
	drain(t, d)
}

func TestDetector_UsesCacheWhileRefreshing(t *testing.T) {
	enum := &fakeEnumerator{devices: devices("USB Keyboard")}
	d := NewDetector(enum, zaptest.NewLogger(t), WithMinRefreshInterval(0))
	require.True(t, d.Present(context.Background(), DoNotIgnore, nil))

	// The keyboard is unplugged; the slow refresh has not finished yet.
	enum.set(nil, 50*time.Millisecond)
	start := time.Now()
	assert.True(t, d.Present(context.Background(), DoNotIgnore, nil))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "cached answer must not wait")

	require.Eventually(t, func() bool {
		return !d.Present(context.Background(), DoNotIgnore, nil)
	}, 2*time.Second, 20*time.Millisecond)
	drain(t, d)
}

func TestDetector_CollapsesConcurrentRefreshes(t *testing.T) {
	enum := &fakeEnumerator{devices: devices("USB Keyboard"), delay: 30 * time.Millisecond}
	d := NewDetector(enum, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Present(context.Background(), DoNotIgnore, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), enum.calls.Load())
}

func TestDetector_FailureAssumesPresent(t *testing.T) {
	enum := &fakeEnumerator{err: errors.New("wmi unavailable")}
	d := NewDetector(enum, zaptest.NewLogger(t))

	assert.True(t, d.Present(context.Background(), IgnoreIfSingleInstance, nil))

	_, err := d.Devices(context.Background())
	assert.ErrorIs(t, err, enum.err)
}

func TestDetector_CancelledContextAssumesPresent(t *testing.T) {
	enum := &fakeEnumerator{devices: nil, delay: 50 * time.Millisecond}
	d := NewDetector(enum, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, d.Present(ctx, DoNotIgnore, nil))

	drain(t, d)
}

func TestDetector_ReusesRecentEnumeration(t *testing.T) {
	enum := &fakeEnumerator{devices: devices("USB Keyboard")}
	d := NewDetector(enum, zaptest.NewLogger(t), WithMinRefreshInterval(time.Minute))

	for i := 0; i < 3; i++ {
		assert.True(t, d.Present(context.Background(), DoNotIgnore, nil))
	}
	assert.Equal(t, int32(1), enum.calls.Load())
}

func TestDetector_IgnoreAllSkipsEnumeration(t *testing.T) {
	enum := &fakeEnumerator{devices: devices("USB Keyboard")}
	d := NewDetector(enum, zaptest.NewLogger(t))

	assert.False(t, d.Present(context.Background(), IgnoreAll, nil))
	assert.Zero(t, enum.calls.Load())
}
