package monime

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataStrings(t *testing.T) {
	md := NewMetadata().
		Set("event_id", "evt_1").
		Set("total_tickets", 2).
		Set("platform_fee", decimal.RequireFromString("4.50")).
		Set("free", false).
		Set("ticket_details", []map[string]any{{"id": "tt_1", "quantity": 2}}).
		Set("dropped", nil)

	assert.Equal(t, map[string]string{
		"event_id":       "evt_1",
		"total_tickets":  "2",
		"platform_fee":   "4.5",
		"free":           "false",
		"ticket_details": `[{"id":"tt_1","quantity":2}]`,
	}, md.Strings())
}

func TestMetadataKeepsInsertionOrderAndOverwrites(t *testing.T) {
	md := NewMetadata().Set("a", "1").Set("b", "2").Set("a", "3")
	assert.Equal(t, 2, md.Len())
	v, ok := md.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	md.Delete("a")
	assert.Equal(t, []string{"b"}, md.keys)
}

func TestMetadataCapped(t *testing.T) {
	md := NewMetadata()
	md.Set(strings.Repeat("k", 41), "too long a key")
	md.Set("long_value", strings.Repeat("v", 600))
	for i := 0; i < 60; i++ {
		md.Set("key_"+strings.Repeat("x", i%3)+string(rune('a'+i%26))+string(rune('a'+i/26)), i)
	}

	capped := md.Capped(DefaultLimits)
	assert.Equal(t, DefaultLimits.MaxKeys, capped.Len())
	_, ok := capped.Get(strings.Repeat("k", 41))
	assert.False(t, ok)
	v, _ := capped.Get("long_value")
	assert.Len(t, v, DefaultLimits.MaxValueLength)
}

func TestMetadataJSON(t *testing.T) {
	md := NewMetadata().Set("n", 3)
	b, err := json.Marshal(struct {
		Metadata *Metadata `json:"metadata"`
	}{md})
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"n":"3"}}`, string(b))

	var back Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"event_id":"evt_1"}`), &back))
	assert.Equal(t, map[string]string{"event_id": "evt_1"}, back.Strings())
}

func TestWithSourceStaysWithinLimits(t *testing.T) {
	md := NewMetadata()
	for i := 0; i < DefaultLimits.MaxKeys; i++ {
		md.Set(fmt.Sprintf("key_%02d", i), i)
	}

	out := withSource(md)
	assert.Equal(t, DefaultLimits.MaxKeys, out.Len())
	assert.Equal(t, "sos_seats", out.Strings()["source"])
	_, ok := out.Get("key_49")
	assert.False(t, ok)
}

func TestWithSourceComesFirstAndCanBeOverridden(t *testing.T) {
	md := withSource(NewMetadata().Set("event_id", "evt_1"))
	assert.Equal(t, []string{"source", "event_id"}, md.keys)
	assert.Equal(t, "sos_seats", md.Strings()["source"])
}
