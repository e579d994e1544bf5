// Package ui holds terminal presentation helpers: transient alerts and
// countdown formatting.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

type AlertKind string

const (
	AlertInfo    AlertKind = "info"
	AlertSuccess AlertKind = "success"
	AlertWarning AlertKind = "warning"
	AlertDanger  AlertKind = "danger"
)

// DefaultAlertTTL is how long an alert stays visible.
const DefaultAlertTTL = 5 * time.Second

var alertColors = map[AlertKind]*color.Color{
	AlertInfo:    color.New(color.FgCyan),
	AlertSuccess: color.New(color.FgGreen),
	AlertWarning: color.New(color.FgYellow),
	AlertDanger:  color.New(color.FgRed, color.Bold),
}

type Alert struct {
	ID      uint64
	Kind    AlertKind
	Message string
}

// AlertBoard keeps the visible alerts, newest first. Each alert removes
// itself after the board's TTL.
type AlertBoard struct {
	mu       sync.Mutex
	alerts   []Alert
	nextID   uint64
	ttl      time.Duration
	schedule func(time.Duration, func())
}

type AlertOption func(*AlertBoard)

func WithAlertTTL(ttl time.Duration) AlertOption {
	return func(b *AlertBoard) {
		b.ttl = ttl
	}
}

// WithScheduler replaces time.AfterFunc for dismissals.
func WithScheduler(schedule func(time.Duration, func())) AlertOption {
	return func(b *AlertBoard) {
		b.schedule = schedule
	}
}

func NewAlertBoard(opts ...AlertOption) *AlertBoard {
	b := &AlertBoard{ttl: DefaultAlertTTL}
	b.schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Show posts message as an alert of kind (info when empty) and returns its id.
func (b *AlertBoard) Show(message string, kind AlertKind) uint64 {
	if kind == "" {
		kind = AlertInfo
	}

	b.mu.Lock()
	b.nextID++
	a := Alert{ID: b.nextID, Kind: kind, Message: message}
	b.alerts = append([]Alert{a}, b.alerts...)
	b.mu.Unlock()

	b.schedule(b.ttl, func() { b.Dismiss(a.ID) })
	return a.ID
}

func (b *AlertBoard) Dismiss(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, a := range b.alerts {
		if a.ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			return
		}
	}
}

// Active returns the visible alerts, newest first.
func (b *AlertBoard) Active() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Alert(nil), b.alerts...)
}

// Render writes one line per visible alert.
func (b *AlertBoard) Render(w io.Writer) error {
	for _, a := range b.Active() {
		c, ok := alertColors[a.Kind]
		if !ok {
			c = alertColors[AlertInfo]
		}
		if _, err := c.Fprintf(w, "[%s] ", a.Kind); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, a.Message); err != nil {
			return err
		}
	}
	return nil
}
