package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/ssokit/pkg/session"
)

func TestCanFire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state session.State
		event session.Event
		want  bool
	}{
		{session.StateUninitialized, session.EventInitialize, true},
		{session.StateInitializing, session.EventInitialize, false},
		{session.StateInitializing, session.EventSignIn, false},
		{session.StateSigningOut, session.EventSignIn, false},
		{session.StateAuthenticated, session.EventSignIn, true},
		{session.StateAuthenticated, session.EventExpire, true},
		{session.StateAnonymous, session.EventExpire, false},
		{session.StateAnonymous, session.EventSignOut, true},
		{session.StateSigningOut, session.EventSignOut, false},
		{session.StateSigningOut, session.EventSignedOut, true},
		{session.StateInitializing, session.EventResolve, true},
		{session.StateAnonymous, session.EventResolve, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state)+"/"+string(tt.event), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, session.CanFire(tt.state, tt.event))
		})
	}
}
