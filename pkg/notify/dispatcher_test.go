package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
)

type fakeGateway struct {
	voiceCalls []string
	textCalls  []string
	err        error
}

func (f *fakeGateway) SendVoice(_ context.Context, recipient, _ string) error {
	f.voiceCalls = append(f.voiceCalls, recipient)
	return f.err
}

func (f *fakeGateway) SendText(_ context.Context, recipient, _ string) error {
	f.textCalls = append(f.textCalls, recipient)
	return f.err
}

func newTestStore(t *testing.T) db.Service {
	t.Helper()

	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test db: %v", err)
		}
	})

	return store
}

func TestDispatchChannelSelection(t *testing.T) {
	tests := []struct {
		name            string
		level           models.EscalationLevel
		expectedChannel models.NotificationChannel
		expectedStatus  models.NotificationStatus
		expectVoice     int
		expectText      int
	}{
		{
			name:            "high goes out as voice",
			level:           models.EscalationHigh,
			expectedChannel: models.ChannelVoice,
			expectedStatus:  models.NotificationSent,
			expectVoice:     1,
		},
		{
			name:            "medium goes out as text",
			level:           models.EscalationMedium,
			expectedChannel: models.ChannelText,
			expectedStatus:  models.NotificationSent,
			expectText:      1,
		},
		{
			name:            "low is dashboard only",
			level:           models.EscalationLow,
			expectedChannel: models.ChannelDashboard,
			expectedStatus:  models.NotificationLogged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			gateway := &fakeGateway{}
			d := New(store, gateway, nil)

			n := d.Dispatch(context.Background(), &Request{
				AlertID:       "AL-1",
				RecipientKind: models.RecipientUser,
				Recipient:     "U-1",
				Level:         tt.level,
				Category:      string(models.CategoryEngineOverheat),
				Message:       "test message",
			})

			assert.Equal(t, tt.expectedChannel, n.Channel)
			assert.Equal(t, tt.expectedStatus, n.Status)
			assert.Len(t, gateway.voiceCalls, tt.expectVoice)
			assert.Len(t, gateway.textCalls, tt.expectText)

			// The outcome must land in the dispatch log.
			logged, err := store.ListNotificationsForAlert("AL-1")
			require.NoError(t, err)
			require.Len(t, logged, 1)
			assert.Equal(t, tt.expectedStatus, logged[0].Status)
		})
	}
}

func TestDispatchFailureIsRecordedNotRaised(t *testing.T) {
	store := newTestStore(t)
	gateway := &fakeGateway{err: errors.New("gateway timeout")}
	d := New(store, gateway, nil)

	n := d.Dispatch(context.Background(), &Request{
		AlertID:       "AL-1",
		RecipientKind: models.RecipientUser,
		Recipient:     "U-1",
		Level:         models.EscalationHigh,
		Message:       "test message",
	})

	assert.Equal(t, models.NotificationFailed, n.Status)
	assert.Equal(t, "gateway timeout", n.FailureReason)

	// Exactly one attempt; no retry.
	assert.Len(t, gateway.voiceCalls, 1)

	logged, err := store.ListNotificationsForAlert("AL-1")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, models.NotificationFailed, logged[0].Status)
	assert.Equal(t, "gateway timeout", logged[0].FailureReason)
}

func TestDispatchPairThroughHTTPGateway(t *testing.T) {
	received := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	gateway := NewHTTPGateway(GatewayConfig{
		Enabled:  true,
		VoiceURL: server.URL + "/voice",
		TextURL:  server.URL + "/text",
	})
	d := New(store, gateway, nil)

	// A critical event escalates to the user and the centre in the same
	// breath; both must clear the gateway's default rate limit.
	user := d.Dispatch(context.Background(), &Request{
		AlertID:       "AL-1",
		RecipientKind: models.RecipientUser,
		Recipient:     "+15550001111",
		Level:         models.EscalationHigh,
		Message:       "Stop vehicle and service immediately",
	})
	centre := d.Dispatch(context.Background(), &Request{
		AlertID:       "AL-1",
		BookingID:     "BK-1",
		RecipientKind: models.RecipientCentre,
		Recipient:     "SC-001",
		Level:         models.EscalationMedium,
		Message:       "Urgent booking incoming",
	})

	assert.Equal(t, models.NotificationSent, user.Status)
	assert.Equal(t, models.NotificationSent, centre.Status)
	assert.Equal(t, 2, received)

	logged, err := store.ListNotificationsForAlert("AL-1")
	require.NoError(t, err)
	require.Len(t, logged, 2)

	for _, n := range logged {
		assert.Equal(t, models.NotificationSent, n.Status)
	}
}

func TestDispatchCarriesRequestFields(t *testing.T) {
	store := newTestStore(t)
	d := New(store, &fakeGateway{}, nil)

	n := d.Dispatch(context.Background(), &Request{
		AlertID:       "AL-1",
		BookingID:     "BK-1",
		RecipientKind: models.RecipientCentre,
		Recipient:     "SC-001",
		Level:         models.EscalationMedium,
		Category:      string(models.CategoryBrakeWear),
		Message:       "Schedule brake pad replacement",
	})

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "BK-1", n.BookingID)
	assert.Equal(t, models.RecipientCentre, n.RecipientKind)
	assert.Equal(t, "SC-001", n.Recipient)
	assert.Equal(t, string(models.CategoryBrakeWear), n.Category)
	assert.Equal(t, "Schedule brake pad replacement", n.Message)
	assert.False(t, n.CreatedAt.IsZero())
}
