package splitter

import (
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memsplit/host/hosttest"
	"memsplit/process"
	"memsplit/profile"
	"memsplit/timer"
)

const (
	heapBase     process.Address = 0x10000000
	loadingObj                   = heapBase
	overlaysObj                  = heapBase + 0x1000
	overlayArray                 = heapBase + 0x2000
	overlayRecs                  = heapBase + 0x3000
	overlayNames                 = heapBase + 0x4000
)

// target lays out the default profile's structures in a fake host.
type target struct {
	t       *testing.T
	fake    *hosttest.Fake
	profile profile.Profile
	engine  *Engine
}

func newTarget(t *testing.T) *target {
	t.Helper()

	p := profile.Default()
	fake := hosttest.New(p.ProcessName)
	require.NoError(t, fake.Memory.Map(0x1700000, 0x200000))
	require.NoError(t, fake.Memory.Map(heapBase, 0x10000))

	engine, err := New(fake, p)
	require.NoError(t, err)

	tg := &target{t: t, fake: fake, profile: p, engine: engine}
	tg.write32(tg.abs(p.LoadingBase), uint32(loadingObj))
	tg.write32(tg.abs(p.OverlaysBase), uint32(overlaysObj))
	tg.setOverlayList(uint32(overlayArray), 0)
	tg.setLoading(p.LoadingIdleBits)
	return tg
}

func (tg *target) abs(offset uint64) process.Address {
	return process.Address(tg.profile.ModuleBase + offset)
}

func (tg *target) write32(addr process.Address, v uint32) {
	require.NoError(tg.t, tg.fake.Memory.WriteUINT32(addr, v))
}

func (tg *target) setReady(v uint8) {
	require.NoError(tg.t, tg.fake.Memory.WriteUINT8(tg.abs(tg.profile.ReadyFlag), v))
}

func (tg *target) setKey(v uint8) {
	require.NoError(tg.t, tg.fake.Memory.WriteUINT8(tg.abs(tg.profile.TriggerKey), v))
}

func (tg *target) setLoading(bits uint32) {
	tg.write32(loadingObj.Add(process.Size(tg.profile.LoadingOffset)), bits)
}

func (tg *target) descriptorAddr() process.Address {
	return overlaysObj.Add(process.Size(tg.profile.OverlaysOffset))
}

func (tg *target) setOverlayList(ptr uint32, count int32) {
	tg.write32(tg.descriptorAddr(), ptr)
	require.NoError(tg.t, tg.fake.Memory.WriteINT32(tg.descriptorAddr()+4, count))
}

func recordAddr(i int) process.Address { return overlayRecs + process.Address(0x10*i) }

func nameAddr(i int) process.Address { return overlayNames + process.Address(0x100*i) }

// setOverlays installs one overlay per name. nameLen overrides the stored
// length when non-negative.
func (tg *target) setOverlays(names []string, nameLen int) {
	for i, name := range names {
		tg.write32(overlayArray+process.Address(4*i), uint32(recordAddr(i)))
		tg.write32(recordAddr(i), uint32(nameAddr(i)))

		n := uint32(len(name) + 1)
		if nameLen >= 0 {
			n = uint32(nameLen)
		}
		tg.write32(recordAddr(i)+4, n)
		require.NoError(tg.t, tg.fake.Memory.WriteBytes(nameAddr(i), utf16le(name+"\x00")))
	}
	tg.setOverlayList(uint32(overlayArray), int32(len(names)))
}

func utf16le(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, s[i], 0)
	}
	return out
}

func (tg *target) tick() error {
	tg.t.Helper()
	return tg.engine.Tick()
}

func TestNew_InvalidProfile(t *testing.T) {
	p := profile.Default()
	p.TickRate = 0
	_, err := New(hosttest.New(p.ProcessName), p)
	assert.Error(t, err)
}

func TestConfigure(t *testing.T) {
	tg := newTarget(t)
	tg.engine.Configure()

	assert.Equal(t, []string{"tick_rate 500"}, tg.fake.Calls())
	assert.Equal(t, 500.0, tg.fake.TickRate())
	assert.Zero(t, tg.fake.Attaches(), "configure does not attach")
}

func TestUpdate_AbsentRetriesAttach(t *testing.T) {
	tg := newTarget(t)
	tg.fake.Running = false

	for range 3 {
		require.NoError(t, tg.tick())
		assert.False(t, tg.engine.Attached())
	}
	assert.Equal(t, 3, tg.fake.Attaches())
	assert.Empty(t, tg.fake.Reads())
	assert.Equal(t, uuid.Nil, tg.engine.Session())
}

func TestUpdate_AttachesWhenTargetAppears(t *testing.T) {
	tg := newTarget(t)
	tg.fake.Running = false
	require.NoError(t, tg.tick())

	tg.fake.Running = true
	require.NoError(t, tg.tick())

	assert.True(t, tg.engine.Attached())
	assert.NotEqual(t, uuid.Nil, tg.engine.Session())
	assert.Equal(t, "attached to BioShockInfinite.exe", tg.fake.Messages())
}

func TestUpdate_SingleActiveHandle(t *testing.T) {
	tg := newTarget(t)

	require.NoError(t, tg.tick())
	tg.fake.FailAll(true)
	for range 5 {
		assert.Error(t, tg.tick())
	}
	tg.fake.FailAll(false)
	require.NoError(t, tg.tick())

	assert.Equal(t, 1, tg.fake.Attaches())
	assert.Equal(t, 1, tg.fake.Live())
}

func TestUpdate_ReadFailuresNeverDetach(t *testing.T) {
	tg := newTarget(t)
	require.NoError(t, tg.tick())
	session := tg.engine.Session()

	tg.fake.FailAll(true)
	for range 100 {
		tg.engine.Update()
	}

	assert.True(t, tg.engine.Attached())
	assert.Zero(t, tg.fake.Detaches())
	assert.Equal(t, 1, tg.fake.Attaches())
	assert.Equal(t, session, tg.engine.Session())
	assert.Equal(t, 100, tg.engine.Failures())

	tg.fake.FailAll(false)
	require.NoError(t, tg.tick())
	assert.Zero(t, tg.engine.Failures())
}

func TestDetach_ReattachesOnNextTick(t *testing.T) {
	tg := newTarget(t)
	require.NoError(t, tg.tick())
	first := tg.engine.Session()

	tg.engine.Detach()
	assert.False(t, tg.engine.Attached())
	assert.Equal(t, 1, tg.fake.Detaches())
	assert.Zero(t, tg.fake.Live())

	tg.engine.Detach()
	assert.Equal(t, 1, tg.fake.Detaches(), "detach of an absent process is a no-op")

	require.NoError(t, tg.tick())
	assert.True(t, tg.engine.Attached())
	assert.Equal(t, 2, tg.fake.Attaches())
	assert.NotEqual(t, first, tg.engine.Session())
}

func TestClose(t *testing.T) {
	tg := newTarget(t)
	require.NoError(t, tg.engine.Close(), "close while absent")

	require.NoError(t, tg.tick())
	require.NoError(t, tg.engine.Close())
	assert.Equal(t, 1, tg.fake.Detaches())
	assert.Contains(t, tg.fake.Messages(), "detached from BioShockInfinite.exe")
}

func TestNotRunning_StartsOnRisingEdge(t *testing.T) {
	tg := newTarget(t)
	tg.setKey(1)

	tg.setReady(0)
	require.NoError(t, tg.tick())
	assert.Empty(t, tg.fake.Calls())

	tg.setReady(1)
	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"start"}, tg.fake.Calls())

	old, current := tg.engine.Ready()
	assert.Equal(t, uint8(0), old)
	assert.Equal(t, uint8(1), current)

	require.NoError(t, tg.tick())
	assert.Empty(t, tg.fake.Calls(), "flag still set, no second start")
}

func TestNotRunning_NoEdgeNoStart(t *testing.T) {
	tg := newTarget(t)

	tg.setReady(1)
	require.NoError(t, tg.tick())

	tg.setKey(1)
	require.NoError(t, tg.tick())

	old, current := tg.engine.Ready()
	assert.Equal(t, uint8(1), old)
	assert.Equal(t, uint8(1), current)
	assert.Empty(t, tg.fake.Calls())
}

func TestNotRunning_EdgeWithoutKey(t *testing.T) {
	tg := newTarget(t)
	require.NoError(t, tg.tick())

	tg.setReady(1)
	require.NoError(t, tg.tick())
	assert.Empty(t, tg.fake.Calls())
}

func TestNotRunning_AnyNonZeroKey(t *testing.T) {
	for _, key := range []uint8{1, 0x80, 0xFF} {
		tg := newTarget(t)
		tg.setKey(key)
		require.NoError(t, tg.tick())
		tg.setReady(1)
		require.NoError(t, tg.tick())
		assert.Equal(t, []string{"start"}, tg.fake.Calls(), "key %d", key)
	}
}

func TestNotRunning_EdgeSpansFailedTicks(t *testing.T) {
	tg := newTarget(t)
	tg.setKey(1)
	require.NoError(t, tg.tick())

	ready := tg.abs(tg.profile.ReadyFlag)
	tg.fake.FailAt(ready, true)
	tg.setReady(1)
	assert.Error(t, tg.tick())
	assert.Error(t, tg.tick())
	assert.Empty(t, tg.fake.Calls())

	tg.fake.FailAt(ready, false)
	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"start"}, tg.fake.Calls())
}

func TestRunning_LoadingFlagPauses(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setLoading(0)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"pause"}, tg.fake.Calls())
	assert.False(t, tg.fake.ReadFrom(tg.descriptorAddr()), "overlay list must not be read while loading")
}

func TestRunning_PositiveOneIsLoading(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setLoading(math.Float32bits(1))

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"pause"}, tg.fake.Calls(), "only -1.0f marks the idle state")
}

func TestRunning_IdleNoOverlaysResumes(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"resume"}, tg.fake.Calls())
}

func TestRunning_CountOutOfBounds(t *testing.T) {
	for _, count := range []int32{9, -1, 1 << 20, -1 << 31} {
		tg := newTarget(t)
		tg.fake.SetPhase(timer.Running)
		tg.setOverlayList(uint32(overlayArray), count)

		require.NoError(t, tg.tick())
		assert.Equal(t, []string{"resume"}, tg.fake.Calls(), "count %d", count)
		assert.False(t, tg.fake.ReadFrom(overlayArray), "count %d: entries must not be read", count)
	}
}

func TestRunning_CountInBoundsReadsEntries(t *testing.T) {
	for count := 1; count <= profile.MaxOverlays; count++ {
		tg := newTarget(t)
		tg.fake.SetPhase(timer.Running)

		names := make([]string, count)
		for i := range names {
			names[i] = "Overlay"
		}
		tg.setOverlays(names, -1)

		require.NoError(t, tg.tick())
		assert.Equal(t, []string{"resume"}, tg.fake.Calls())
		assert.True(t, tg.fake.ReadFrom(overlayArray))
		assert.True(t, tg.fake.ReadFrom(recordAddr(count-1)), "count %d", count)
	}
}

func TestRunning_WrongLengthSkipsNameRead(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setOverlays([]string{tg.profile.OverlayName}, 0x36)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"resume"}, tg.fake.Calls())
	assert.True(t, tg.fake.ReadFrom(recordAddr(0)))
	assert.False(t, tg.fake.ReadFrom(nameAddr(0)))
}

func TestRunning_ZeroLengthNeverMatches(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setOverlays([]string{tg.profile.OverlayName}, 0)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"resume"}, tg.fake.Calls())
	assert.False(t, tg.fake.ReadFrom(nameAddr(0)))
}

func TestRunning_LoadingOverlayPauses(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setOverlays([]string{"HUD", tg.profile.OverlayName, "Menu"}, -1)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"pause"}, tg.fake.Calls())
	assert.True(t, tg.fake.ReadFrom(nameAddr(1)))
	assert.False(t, tg.fake.ReadFrom(recordAddr(2)), "scan stops at the first match")
}

func TestRunning_SameLengthOtherNameResumes(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)

	other := []byte(tg.profile.OverlayName)
	other[len(other)-1] = '3'
	tg.setOverlays([]string{string(other)}, -1)

	require.NoError(t, tg.tick())
	assert.Equal(t, []string{"resume"}, tg.fake.Calls())
	assert.True(t, tg.fake.ReadFrom(nameAddr(0)))
}

func TestRunning_FailureShortCircuits(t *testing.T) {
	tg := newTarget(t)
	tg.setKey(1)
	require.NoError(t, tg.tick())
	tg.setReady(1)
	require.NoError(t, tg.tick())
	require.Equal(t, []string{"start"}, tg.fake.Calls())
	old, current := tg.engine.Ready()

	tg.fake.SetPhase(timer.Running)
	tg.fake.FailAt(tg.descriptorAddr(), true)

	err := tg.tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrReadFailed)
	assert.ErrorIs(t, err, hosttest.ErrInjected)
	assert.Empty(t, tg.fake.Calls(), "no pause or resume on an aborted tick")

	gotOld, gotCurrent := tg.engine.Ready()
	assert.Equal(t, old, gotOld)
	assert.Equal(t, current, gotCurrent)
	assert.True(t, tg.engine.Attached())
}

func TestRunning_FailureInEntriesShortCircuits(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)
	tg.setOverlays([]string{"HUD", tg.profile.OverlayName}, -1)
	tg.fake.FailAt(recordAddr(0), true)

	assert.Error(t, tg.tick())
	assert.Empty(t, tg.fake.Calls())
}

func TestFinished_DoesNothing(t *testing.T) {
	tg := newTarget(t)
	require.NoError(t, tg.tick())
	tg.fake.Reads()

	tg.fake.SetPhase(timer.Finished)
	tg.setLoading(0)
	require.NoError(t, tg.tick())

	assert.Empty(t, tg.fake.Calls())
	assert.Empty(t, tg.fake.Reads())
}

type panickyHost struct {
	*hosttest.Fake
}

func (panickyHost) Phase() timer.Phase {
	panic("host fell over")
}

func TestTick_RecoversPanic(t *testing.T) {
	p := profile.Default()
	fake := hosttest.New(p.ProcessName)
	engine, err := New(panickyHost{fake}, p)
	require.NoError(t, err)

	assert.NotPanics(t, engine.Update)
	assert.ErrorIs(t, engine.Tick(), ErrPanic)
	assert.True(t, engine.Attached(), "state survives a panicking tick")
}

func TestUpdate_ConcurrentCallsSerialize(t *testing.T) {
	tg := newTarget(t)
	tg.fake.SetPhase(timer.Running)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				tg.engine.Update()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tg.fake.Attaches())
	assert.Len(t, tg.fake.Calls(), 320)
}
