package catman

import (
	"testing"
	"time"
)

func TestSerialToTime(t *testing.T) {
	tests := []struct {
		serial float64
		want   time.Time
	}{
		{25569, time.Unix(0, 0).UTC()},
		{25569.5, time.Date(1970, time.January, 1, 12, 0, 0, 0, time.UTC)},
		{2, time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{45000.25, time.Date(2023, time.March, 15, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := SerialToTime(tt.serial); !got.Equal(tt.want) {
			t.Errorf("SerialToTime(%v) = %v, want %v", tt.serial, got, tt.want)
		}
	}
}

func TestSerialRoundTrip(t *testing.T) {
	want := time.Date(2024, time.July, 9, 13, 45, 30, 0, time.UTC)
	got := SerialToTime(TimeToSerial(want))
	if d := got.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("round trip drifted by %v", d)
	}
}
