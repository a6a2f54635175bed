package infra

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

func TestParseWMClass(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantInstance string
		wantClass    string
	}{
		{"instance and class", []byte("Navigator\x00firefox\x00"), "Navigator", "firefox"},
		{"no trailing nul", []byte("gimp\x00Gimp"), "gimp", "Gimp"},
		{"instance only", []byte("xterm\x00"), "xterm", ""},
		{"empty", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance, class := parseWMClass(tt.data)
			assert.Equal(t, tt.wantInstance, instance)
			assert.Equal(t, tt.wantClass, class)
		})
	}
}

func TestFocusTracker_SwitchTo(t *testing.T) {
	var tr focusTracker
	t0 := time.Unix(1000, 0)

	events := tr.switchTo("firefox", t0)
	assert.Equal(t, []domain.UsageEvent{
		{Package: "firefox", Kind: domain.EventMoveToForeground, Timestamp: t0},
	}, events)

	assert.Nil(t, tr.switchTo("firefox", t0.Add(time.Second)), "refocus yields nothing")

	t2 := t0.Add(2 * time.Second)
	events = tr.switchTo(DesktopPackage, t2)
	assert.Equal(t, []domain.UsageEvent{
		{Package: "firefox", Kind: domain.EventMoveToBackground, Timestamp: t2},
		{Package: DesktopPackage, Kind: domain.EventMoveToForeground, Timestamp: t2},
	}, events)
}

func TestFocusTracker_FeedsEventLog(t *testing.T) {
	var tr focusTracker
	log := NewEventLog(DefaultEventRetention, DefaultEventCapacity)
	t0 := time.Unix(1000, 0)

	for i, pkg := range []string{"a", "b", "b", "c"} {
		for _, e := range tr.switchTo(pkg, t0.Add(time.Duration(i)*time.Second)) {
			log.Record(e)
		}
	}

	events, err := log.QueryEvents(t0, t0.Add(10*time.Second))
	assert.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, "c", events[len(events)-1].Package)
	assert.Equal(t, domain.EventMoveToForeground, events[len(events)-1].Kind)
}

func TestShowDesktopEvent(t *testing.T) {
	ev := showDesktopEvent(xproto.Window(0x123), xproto.Atom(77))
	raw := ev.Bytes()

	assert.Len(t, raw, 32)
	assert.Equal(t, byte(xproto.ClientMessage), raw[0])
	assert.Equal(t, byte(32), raw[1], "format")
	assert.Equal(t, uint32(0x123), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint32(77), binary.LittleEndian.Uint32(raw[8:12]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw[12:16]), "show")
}
