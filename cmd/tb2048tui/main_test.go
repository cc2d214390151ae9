package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleQuitReturnsFalse(t *testing.T) {
	s := newSession()
	assert.False(t, s.handle("q"))
	assert.True(t, s.handle("a"))
}

func TestHandleSwipeKeepsSessionAlive(t *testing.T) {
	s := newSession()
	for _, in := range []string{"w", "a", "s", "d", "up", "down", "left", "right"} {
		assert.True(t, s.handle(in))
	}
}

func TestHandleUnrecognizedInputKeepsSessionAlive(t *testing.T) {
	s := newSession()
	assert.True(t, s.handle("zzz"))
}

func TestHandleDebugDoesNotCrashSession(t *testing.T) {
	s := newSession()
	assert.True(t, s.handle(":state"))
	assert.True(t, s.handle(":score"))
	assert.True(t, s.handle(":bogus"))
}
