package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRefreshReplacesRoster(t *testing.T) {
	members := []PresenceRecord{{UserID: "1", Name: "ana"}, {UserID: "2", Name: "bo"}}
	gw := &fakeGateway{
		listMembers: func() ([]PresenceRecord, error) { return members, nil },
	}
	tr := NewTracker(gw, nil, time.Hour)
	tr.SetAuthenticated(true)

	got, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, got, tr.Roster())

	// A shrunken roster replaces, never merges.
	members = members[:1]
	_, err = tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, tr.Roster(), 1)
}

func TestTrackerRefreshRequiresSession(t *testing.T) {
	gw := &fakeGateway{}
	tr := NewTracker(gw, nil, time.Hour)

	_, err := tr.Refresh(context.Background())
	require.Error(t, err)
	assert.Zero(t, gw.callCount("ListOnlineMembers"))
}

func TestTrackerPollingSuppressedWhenUnauthenticated(t *testing.T) {
	gw := &fakeGateway{}
	tr := NewTracker(gw, nil, 10*time.Millisecond)
	tr.Start(context.Background())
	defer tr.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, gw.callCount("SetUserStatus"))
	assert.Zero(t, gw.callCount("ListOnlineMembers"))
}

func TestTrackerHeartbeatAndRefreshShareCadence(t *testing.T) {
	gw := &fakeGateway{
		listMembers: func() ([]PresenceRecord, error) {
			return []PresenceRecord{{UserID: "1"}}, nil
		},
	}
	tr := NewTracker(gw, nil, 10*time.Millisecond)
	tr.SetAuthenticated(true)
	tr.Start(context.Background())
	defer tr.Close()

	require.Eventually(t, func() bool {
		return gw.callCount("SetUserStatus") >= 2 && gw.callCount("ListOnlineMembers") >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, tr.Roster(), 1)
}

func TestTrackerSignOutClearsRoster(t *testing.T) {
	gw := &fakeGateway{
		listMembers: func() ([]PresenceRecord, error) {
			return []PresenceRecord{{UserID: "1"}}, nil
		},
	}
	tr := NewTracker(gw, nil, time.Hour)
	tr.SetAuthenticated(true)
	_, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, tr.Roster(), 1)

	tr.SetAuthenticated(false)
	assert.Empty(t, tr.Roster())
}

func TestTrackerRefreshErrorKeepsLastErr(t *testing.T) {
	var fail bool
	gw := &fakeGateway{
		listMembers: func() ([]PresenceRecord, error) {
			if fail {
				return nil, transportErr(errors.New("unreachable"))
			}
			return []PresenceRecord{{UserID: "1"}}, nil
		},
	}
	tr := NewTracker(gw, nil, time.Hour)
	tr.SetAuthenticated(true)

	_, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tr.Err())

	fail = true
	_, err = tr.Refresh(context.Background())
	require.Error(t, err)
	assert.Error(t, tr.Err())
	// Stale roster survives the failed refresh.
	assert.Len(t, tr.Roster(), 1)

	fail = false
	_, err = tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tr.Err())
}
