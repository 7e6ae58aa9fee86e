package schedule

import (
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"06:00", 6 * time.Hour, false},
		{"19:30", 19*time.Hour + 30*time.Minute, false},
		{"07:15:30", 7*time.Hour + 15*time.Minute + 30*time.Second, false},
		{"25:00", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if time.Duration(got) != tt.want {
				t.Errorf("got %v, want %v", time.Duration(got), tt.want)
			}
		})
	}
}

func TestTimeOfDayAddWraps(t *testing.T) {
	tod, _ := ParseTimeOfDay("23:50")
	if got := tod.Add(20 * time.Minute).String(); got != "00:10" {
		t.Errorf("forward wrap: got %s", got)
	}
	tod, _ = ParseTimeOfDay("00:10")
	if got := tod.Add(-20 * time.Minute).String(); got != "23:50" {
		t.Errorf("backward wrap: got %s", got)
	}
}

func TestTimeOfDayOn(t *testing.T) {
	tod, _ := ParseTimeOfDay("06:30")
	loc := time.FixedZone("X", 3600)
	got := tod.On(time.Date(2026, 4, 1, 22, 0, 0, 0, loc))
	want := time.Date(2026, 4, 1, 6, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTimeOfDayYAML(t *testing.T) {
	var v struct {
		At TimeOfDay `yaml:"at"`
	}
	if err := yaml.Unmarshal([]byte("at: \"06:15\"\n"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.At.String() != "06:15" {
		t.Errorf("got %s", v.At)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back struct {
		At TimeOfDay `yaml:"at"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if back.At != v.At {
		t.Errorf("round trip: got %s, want %s", back.At, v.At)
	}

	if err := yaml.Unmarshal([]byte("at: later\n"), &v); err == nil {
		t.Error("expected error for invalid time of day")
	}
}
