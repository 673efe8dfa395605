package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWants(t *testing.T) {
	unfiltered := &Client{}
	assert.True(t, unfiltered.wants("veh-1"))
	assert.True(t, unfiltered.wants(""))

	filtered := &Client{}
	filtered.Subscribe("veh-1")
	assert.True(t, filtered.wants("veh-1"))
	assert.False(t, filtered.wants("veh-2"))

	// Events without a vehicle go to everyone.
	assert.True(t, filtered.wants(""))

	// Re-subscribing replaces the filter.
	filtered.Subscribe("veh-2")
	assert.False(t, filtered.wants("veh-1"))
	assert.True(t, filtered.wants("veh-2"))
}

func TestRelayTagsEventWithVehicle(t *testing.T) {
	hub := NewWSHub(nil)

	payload := []byte(`{"vehicle_id":"d6f1b608-6f6a-4b43-9f9e-0f12a3b45c6d","lat":4.05,"lon":9.7}`)
	hub.relay("location", payload)

	select {
	case ev := <-hub.broadcast:
		assert.Equal(t, "d6f1b608-6f6a-4b43-9f9e-0f12a3b45c6d", ev.vehicleID)

		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(ev.data, &envelope))
		assert.Equal(t, "location", envelope.Type)
		assert.JSONEq(t, string(payload), string(envelope.Data))
	default:
		t.Fatal("relay queued nothing")
	}
}

func TestRelayWithoutVehicleTag(t *testing.T) {
	hub := NewWSHub(nil)

	hub.relay("alert", []byte(`{"message":"system notice"}`))

	select {
	case ev := <-hub.broadcast:
		assert.Empty(t, ev.vehicleID)
	default:
		t.Fatal("relay queued nothing")
	}
}
