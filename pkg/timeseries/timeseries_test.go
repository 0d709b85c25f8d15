package timeseries

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestPrepareRestoreRoundTrip(t *testing.T) {
	zones := []string{"UTC", "America/New_York", "Europe/London", "Africa/Johannesburg", "Australia/Lord_Howe", "Asia/Kathmandu"}

	for _, zone := range zones {
		t.Run(zone, func(t *testing.T) {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				t.Fatalf("LoadLocation(%s): %v", zone, err)
			}

			// Hourly steps through a full year cross every DST transition.
			start := time.Date(2026, 1, 1, 0, 30, 0, 0, loc)
			var times []time.Time
			for h := 0; h < 24*366; h += 7 {
				times = append(times, start.Add(time.Duration(h)*time.Hour))
			}

			idx, err := Prepare(times)
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			for i, want := range times {
				if idx.UTC(i).Location() != time.UTC {
					t.Fatalf("row %d not normalised to UTC", i)
				}
				got := idx.Restore(i)
				if !got.Equal(want) || got.Location().String() != want.Location().String() || got.String() != want.String() {
					t.Fatalf("row %d: Restore = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestPrepareAcrossSpringForward(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	before := time.Date(2026, 3, 8, 1, 0, 0, 0, ny)
	after := time.Date(2026, 3, 8, 4, 0, 0, 0, ny)

	idx, err := Prepare([]time.Time{before, after})
	if err != nil {
		t.Fatal(err)
	}

	// Three wall-clock hours, but the 02:00 -> 03:00 jump removes one elapsed hour.
	if got := idx.UTC(1).Sub(idx.UTC(0)); got != 2*time.Hour {
		t.Errorf("elapsed UTC difference = %v, want 2h", got)
	}
	if idx.UTC(0).Hour() != 6 || idx.UTC(1).Hour() != 8 {
		t.Errorf("UTC hours = %d, %d, want 6, 8", idx.UTC(0).Hour(), idx.UTC(1).Hour())
	}
	if idx.OffsetHours(0) != -5 || idx.OffsetHours(1) != -4 {
		t.Errorf("offsets = %v, %v, want -5, -4", idx.OffsetHours(0), idx.OffsetHours(1))
	}
	if !idx.Restore(1).Equal(after) || idx.Restore(1).Hour() != 4 {
		t.Errorf("Restore(1) = %v, want %v", idx.Restore(1), after)
	}
}

func TestPrepareEmpty(t *testing.T) {
	if _, err := Prepare(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Prepare(nil) error = %v, want ErrEmptySeries", err)
	}
}

func TestBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		in      []float64
		n       int
		want    []float64
		wantErr bool
	}{
		{name: "scalar", in: []float64{2}, n: 3, want: []float64{2, 2, 2}},
		{name: "per instant", in: []float64{1, 2, 3}, n: 3, want: []float64{1, 2, 3}},
		{name: "mismatch", in: []float64{1, 2}, n: 3, wantErr: true},
		{name: "empty", in: nil, n: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Broadcast("tilt", tt.in, tt.n)
			if tt.wantErr {
				if !errors.Is(err, ErrLengthMismatch) {
					t.Fatalf("error = %v, want ErrLengthMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name string
		p    GeoPoint
		want error
	}{
		{name: "valid", p: GeoPoint{Lat: -30.6279, Lon: 24.0054}},
		{name: "pole", p: GeoPoint{Lat: 90, Lon: 180}},
		{name: "lat high", p: GeoPoint{Lat: 90.5, Lon: 0}, want: ErrLatitudeRange},
		{name: "lon low", p: GeoPoint{Lat: 0, Lon: -181}, want: ErrLongitudeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	got := Range(start, start.Add(time.Hour), 15*time.Minute)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if Range(start, start.Add(-time.Hour), time.Minute) != nil {
		t.Error("reversed range should be nil")
	}
}

func TestIntervals(t *testing.T) {
	t0 := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	at := func(minutes ...int) []time.Time {
		out := make([]time.Time, len(minutes))
		for i, m := range minutes {
			out[i] = t0.Add(time.Duration(m) * time.Minute)
		}
		return out
	}
	h := time.Hour

	tests := []struct {
		name  string
		times []time.Time
		want  []time.Duration
		step  time.Duration
	}{
		{"regular", at(0, 60, 120, 180), []time.Duration{h, h, h, h}, h},
		{"reversed", at(180, 120, 60, 0), []time.Duration{h, h, h, h}, h},
		{"shuffled", at(60, 0, 180, 120), []time.Duration{h, h, h, h}, h},
		{"gap", at(0, 60, 120, 480, 540), []time.Duration{h, h, h, h, h}, h},
		{"quarter hours", at(0, 15, 30), []time.Duration{15 * time.Minute, 15 * time.Minute, 15 * time.Minute}, 15 * time.Minute},
		{"single", at(0), []time.Duration{DefaultStep}, DefaultStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, step := Intervals(tt.times)
			if step != tt.step {
				t.Errorf("step = %v, want %v", step, tt.step)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("intervals = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("intervals = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	// Repeated instants share one interval.
	dup, _ := Intervals(at(0, 0, 60))
	if dup[0]+dup[1] != h || dup[2] != h {
		t.Errorf("duplicate intervals = %v", dup)
	}

	if got, step := Intervals(nil); got != nil || step != 0 {
		t.Errorf("Intervals(nil) = %v, %v", got, step)
	}
}
