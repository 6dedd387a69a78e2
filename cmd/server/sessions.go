//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"time"

	"github.com/himanishpuri/PitchMatch/internal/playback"
	"github.com/himanishpuri/PitchMatch/pkg/pitchmatch"
	"github.com/patrickmn/go-cache"
)

// liveSession is a session driven by a remote player: both clocks are fed
// by heartbeats.
type liveSession struct {
	session   *pitchmatch.Session
	reference *playback.RemoteClock
	audio     *playback.RemoteClock
}

// sessionRegistry holds live sessions with an idle expiry. Any access
// renews the expiry; expired or deleted sessions are stopped.
type sessionRegistry struct {
	cache *cache.Cache
	log   pitchmatch.Logger
}

func newSessionRegistry(ttl time.Duration, log pitchmatch.Logger) *sessionRegistry {
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v any) {
		ls := v.(*liveSession)
		ls.session.Stop()
		log.Infof("🗑️  Session %s closed (score %d)", id, ls.session.State().Score)
	})
	return &sessionRegistry{cache: c, log: log}
}

func (r *sessionRegistry) Add(ls *liveSession) {
	r.cache.Set(ls.session.ID(), ls, cache.DefaultExpiration)
}

func (r *sessionRegistry) Get(id string) (*liveSession, bool) {
	v, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	ls := v.(*liveSession)
	r.cache.Set(id, ls, cache.DefaultExpiration)
	return ls, true
}

// Delete stops and removes a session. It reports whether it existed.
func (r *sessionRegistry) Delete(id string) bool {
	if _, found := r.cache.Get(id); !found {
		return false
	}
	r.cache.Delete(id)
	return true
}

func (r *sessionRegistry) Count() int {
	return r.cache.ItemCount()
}

// Close stops every session.
func (r *sessionRegistry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
