package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{999, "0:00"},
		{5000, "0:05"},
		{59999, "0:59"},
		{60000, "1:00"},
		{75000, "1:15"},
		{3600000, "60:00"},
		{-1500, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.ms), "ms=%d", tt.ms)
	}
}

type manualScheduler struct {
	delays []time.Duration
	funcs  []func()
}

func (m *manualScheduler) schedule(d time.Duration, f func()) {
	m.delays = append(m.delays, d)
	m.funcs = append(m.funcs, f)
}

func TestAlertBoardNewestFirstAndDismissal(t *testing.T) {
	sched := &manualScheduler{}
	b := NewAlertBoard(WithScheduler(sched.schedule))

	first := b.Show("Team Owls buzzed", AlertInfo)
	b.Show("Score saved", AlertSuccess)
	b.Show("defaults to info", "")

	active := b.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "defaults to info", active[0].Message)
	assert.Equal(t, AlertInfo, active[0].Kind)
	assert.Equal(t, "Team Owls buzzed", active[2].Message)
	assert.Equal(t, []time.Duration{DefaultAlertTTL, DefaultAlertTTL, DefaultAlertTTL}, sched.delays)

	sched.funcs[0]()
	active = b.Active()
	require.Len(t, active, 2)
	for _, a := range active {
		assert.NotEqual(t, first, a.ID)
	}

	b.Dismiss(first)
	assert.Len(t, b.Active(), 2)
}

func TestAlertBoardRender(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	sched := &manualScheduler{}
	b := NewAlertBoard(WithScheduler(sched.schedule), WithAlertTTL(time.Second))
	b.Show("Connection lost", AlertDanger)
	b.Show("Reconnected", AlertSuccess)

	var buf bytes.Buffer
	require.NoError(t, b.Render(&buf))
	assert.Equal(t, "[success] Reconnected\n[danger] Connection lost\n", buf.String())
	assert.Equal(t, time.Second, sched.delays[0])
}

func TestAlertBoardRealTimer(t *testing.T) {
	b := NewAlertBoard(WithAlertTTL(10 * time.Millisecond))
	b.Show("gone soon", AlertWarning)
	require.Len(t, b.Active(), 1)
	assert.Eventually(t, func() bool { return len(b.Active()) == 0 }, time.Second, 5*time.Millisecond)
}
