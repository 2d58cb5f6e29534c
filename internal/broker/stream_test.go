package broker

import (
	"testing"

	"main/internal/bus"
	"main/internal/schema"
)

func streamFixture(t *testing.T) *Stream {
	t.Helper()
	reg := schema.NewRegistry()
	venueID, err := reg.AddVenue("NSE")
	if err != nil {
		t.Fatalf("add venue: %v", err)
	}
	scale := schema.ScaleSpec{PriceScale: 2, QuantityScale: 0}
	if err := reg.AddInstrument(256265, "NIFTY", venueID, scale); err != nil {
		t.Fatalf("add instrument: %v", err)
	}
	return NewStream(StreamConfig{URL: "wss://example.invalid/ticks"}, reg, bus.NewQueue(8))
}

func TestParseTickPayload(t *testing.T) {
	s := streamFixture(t)

	tick, ok := s.parse([]byte(`{"token": 256265, "ltp": "24123.45", "ts": 1700000000000000000}`))
	if !ok {
		t.Fatal("valid payload rejected")
	}
	if tick.Token != 256265 {
		t.Fatalf("token = %d", tick.Token)
	}
	if tick.LastPrice != 2412345 {
		t.Fatalf("price = %d, want 2412345", tick.LastPrice)
	}
	if tick.TsEvent != 1700000000000000000 {
		t.Fatalf("ts = %d", tick.TsEvent)
	}
	if tick.TsRecv == 0 {
		t.Fatal("receive timestamp must be stamped")
	}
}

func TestParseTickPayloadExtraPrecisionTruncates(t *testing.T) {
	s := streamFixture(t)
	tick, ok := s.parse([]byte(`{"token": 256265, "ltp": "24123.4567", "ts": 1}`))
	if !ok {
		t.Fatal("payload rejected")
	}
	if tick.LastPrice != 2412345 {
		t.Fatalf("price = %d, want 2412345", tick.LastPrice)
	}
}

func TestParseTickPayloadRejections(t *testing.T) {
	s := streamFixture(t)
	cases := []struct {
		name    string
		payload string
	}{
		{"broken json", `{"token":`},
		{"unknown token", `{"token": 999, "ltp": "10.00", "ts": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := s.parse([]byte(tc.payload)); ok {
				t.Fatal("payload accepted")
			}
		})
	}
}
