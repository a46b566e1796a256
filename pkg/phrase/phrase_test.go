package phrase

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-tello/pkg/drone"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  drone.Command
	}{
		{"take off", drone.TakeOff()},
		{"Launch!", drone.TakeOff()},
		{"start", drone.TakeOff()},
		{"fly", drone.TakeOff()},
		{"land", drone.Land()},
		{"please come down", drone.Land()},
		{"end flight", drone.Land()},
		{"stop flight", drone.Land()},
		{"emergency", drone.Emergency()},
		{"halt", drone.Emergency()},
		{"stop now", drone.Emergency()},

		{"go forward two meters", drone.Move(drone.Forward, 200)},
		{"move back 50 cm", drone.Move(drone.Back, 50)},
		{"fly backward 3 feet", drone.Move(drone.Back, 90)},
		{"go left forty centimeters", drone.Move(drone.Left, 40)},
		{"move right 2m", drone.Move(drone.Right, 200)},
		{"go up 80", drone.Move(drone.Up, 80)},
		{"fly forward 2 meters", drone.Move(drone.Forward, 200)},
		{"  GO   DOWN  ", drone.Move(drone.Down, DefaultMoveDistance)},
		{"go forward", drone.Move(drone.Forward, DefaultMoveDistance)},
		{"go forward 5", drone.Move(drone.Forward, MinDistance)},
		{"go forward ten meters", drone.Move(drone.Forward, MaxDistance)},

		{"turn left 90", drone.Rotate(drone.CounterClockwise, 90)},
		{"turn right forty five degrees", drone.Rotate(drone.Clockwise, 45)},
		{"turn right 720", drone.Rotate(drone.Clockwise, MaxDegrees)},

		{"do a front flip", drone.Flip(drone.FlipFront)},
		{"flip forward", drone.Flip(drone.FlipFront)},
		{"do a back flip", drone.Flip(drone.FlipBack)},
		{"flip back", drone.Flip(drone.FlipBack)},
		{"flip left", drone.Flip(drone.FlipLeft)},
		{"flip right", drone.Flip(drone.FlipRight)},

		{"set speed to fifty", drone.Speed(50)},
		{"set speed to 5", drone.Speed(MinSpeed)},
		{"set speed to 250", drone.Speed(MaxSpeed)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Unsupported(t *testing.T) {
	inputs := []string{
		"",
		"hello there",
		"go sideways",
		"go forward zero",
		"turn left",
		"turn right much",
		"set speed to fast",
		"landscape",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); !errors.Is(err, drone.ErrUnsupportedCommand) {
				t.Errorf("Parse(%q) err = %v, want ErrUnsupportedCommand", input, err)
			}
		})
	}
}

func TestParse_EmergencyWins(t *testing.T) {
	got, err := Parse("stop now and land")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Kind != drone.KindEmergency {
		t.Errorf("Parse = %v, want emergency", got)
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"2 meters", 200},
		{"one meter", 100},
		{"fifty cm", 50},
		{"30 centimeters", 30},
		{"3 feet", 90},
		{"a foot", 30},
		{"4ft", 120},
		{"75", 75},
		{"nothing", 0},
	}
	for _, tt := range tests {
		if got := ParseDistance(tt.input); got != tt.want {
			t.Errorf("ParseDistance(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestWordToNumber(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"42", 42},
		{"seven", 7},
		{"nineteen", 19},
		{"forty five", 45},
		{"forty-five", 45},
		{"hundred", 100},
		{"one hundred twenty", 120},
		{"three hundred and sixty", 360},
		{"two thousand", 2000},
		{"-5", 0},
		{"banana", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := WordToNumber(tt.input); got != tt.want {
			t.Errorf("WordToNumber(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
