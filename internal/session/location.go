package session

import (
	"net/url"
	"sync"
)

// Location abstracts the host application's notion of a current URL.
// Browser-like hosts back it with the real address bar; native hosts
// use the no-op default or StaticLocation.
type Location interface {
	// Current returns the current application URL, or nil when the
	// host has none.
	Current() (*url.URL, error)
	// Replace swaps the current URL without triggering a reload.
	Replace(u *url.URL) error
	// Origin returns scheme://host of the application, or "".
	Origin() string
}

// noLocation is the default for hosts without a URL.
type noLocation struct{}

func (noLocation) Current() (*url.URL, error) { return nil, nil }
func (noLocation) Replace(*url.URL) error     { return nil }
func (noLocation) Origin() string             { return "" }

// StaticLocation is a Location pinned to a mutable in-memory URL.
type StaticLocation struct {
	mu sync.Mutex
	u  *url.URL
}

// NewStaticLocation parses raw and returns a StaticLocation for it.
func NewStaticLocation(raw string) (*StaticLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &StaticLocation{u: u}, nil
}

func (l *StaticLocation) Current() (*url.URL, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *l.u
	return &copied, nil
}

func (l *StaticLocation) Replace(u *url.URL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *u
	l.u = &copied
	return nil
}

func (l *StaticLocation) Origin() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.u.Scheme + "://" + l.u.Host
}
