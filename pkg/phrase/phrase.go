// Package phrase turns spoken or typed sentences into drone commands.
//
//	phrase.Parse("go forward two meters") // drone.Move(drone.Forward, 200)
//	phrase.Parse("turn right 90")         // drone.Rotate(drone.Clockwise, 90)
//	phrase.Parse("do a back flip")        // drone.Flip(drone.FlipBack)
package phrase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/teslashibe/go-tello/pkg/drone"
)

// Limits applied to parsed amounts.
const (
	DefaultMoveDistance = 100

	MinDistance = 20
	MaxDistance = 500
	MinDegrees  = 1
	MaxDegrees  = 360
	MinSpeed    = 10
	MaxSpeed    = 100
)

var (
	emergencyRe = regexp.MustCompile(`\b(emergency|halt|stop now)\b`)
	landRe      = regexp.MustCompile(`\b(land|stop flight|end flight|come down)\b`)
	takeOffRe   = regexp.MustCompile(`\b(take off|takeoff|launch|start|fly)\b`)

	moveRe   = regexp.MustCompile(`\b(?:go|move|fly) (forward|back(?:ward)?|left|right|up|down)(?: ([\w ]+))?$`)
	turnRe   = regexp.MustCompile(`\bturn (left|right) ([\w ]+)$`)
	speedRe  = regexp.MustCompile(`\bset speed to ([\w ]+)$`)
	spacesRe = regexp.MustCompile(`\s+`)
)

var flips = []struct {
	re  *regexp.Regexp
	dir drone.FlipDirection
}{
	{regexp.MustCompile(`\b(do a front flip|flip forward)\b`), drone.FlipFront},
	{regexp.MustCompile(`\b(do a back flip|flip back(?:ward)?)\b`), drone.FlipBack},
	{regexp.MustCompile(`\b(do a left flip|flip left)\b`), drone.FlipLeft},
	{regexp.MustCompile(`\b(do a right flip|flip right)\b`), drone.FlipRight},
}

var directions = map[string]drone.Direction{
	"forward":  drone.Forward,
	"back":     drone.Back,
	"backward": drone.Back,
	"left":     drone.Left,
	"right":    drone.Right,
	"up":       drone.Up,
	"down":     drone.Down,
}

// Parse maps a sentence to a command. Matching is case-insensitive and
// ignores extra whitespace and trailing punctuation.
//
// Emergency phrases win over everything else. Movement, turns, flips and
// speed are tried before the bare take-off and land keywords, so "fly
// forward 2 meters" moves instead of taking off.
func Parse(text string) (drone.Command, error) {
	s := normalize(text)

	if emergencyRe.MatchString(s) {
		return drone.Emergency(), nil
	}

	if m := moveRe.FindStringSubmatch(s); m != nil {
		dist := DefaultMoveDistance
		if m[2] != "" {
			dist = ParseDistance(m[2])
			if dist <= 0 {
				return drone.Command{}, unsupported(text)
			}
		}
		return drone.Move(directions[m[1]], clamp(dist, MinDistance, MaxDistance)), nil
	}

	if m := turnRe.FindStringSubmatch(s); m != nil {
		deg := WordToNumber(strings.TrimSuffix(strings.TrimSpace(m[2]), " degrees"))
		if deg <= 0 {
			return drone.Command{}, unsupported(text)
		}
		rot := drone.Clockwise
		if m[1] == "left" {
			rot = drone.CounterClockwise
		}
		return drone.Rotate(rot, clamp(deg, MinDegrees, MaxDegrees)), nil
	}

	for _, f := range flips {
		if f.re.MatchString(s) {
			return drone.Flip(f.dir), nil
		}
	}

	if m := speedRe.FindStringSubmatch(s); m != nil {
		n := WordToNumber(m[1])
		if n <= 0 {
			return drone.Command{}, unsupported(text)
		}
		return drone.Speed(clamp(n, MinSpeed, MaxSpeed)), nil
	}

	if landRe.MatchString(s) {
		return drone.Land(), nil
	}
	if takeOffRe.MatchString(s) {
		return drone.TakeOff(), nil
	}

	return drone.Command{}, unsupported(text)
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!?,")
	return spacesRe.ReplaceAllString(s, " ")
}

func unsupported(text string) error {
	return fmt.Errorf("%w: %q", drone.ErrUnsupportedCommand, text)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseDistance converts "2 meters", "fifty cm" or "3 feet" to centimeters.
// A bare number is taken as centimeters. It returns 0 when no amount can be
// read.
func ParseDistance(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))

	units := []struct {
		suffixes []string
		factor   int
	}{
		{[]string{"centimeters", "centimeter", "cm"}, 1},
		{[]string{"meters", "meter", "m"}, 100},
		{[]string{"feet", "foot", "ft"}, 30},
	}
	for _, u := range units {
		for _, suffix := range u.suffixes {
			if rest, ok := strings.CutSuffix(s, suffix); ok {
				rest = strings.TrimSpace(rest)
				// "m" alone must follow a digit or space, not end a word like "them".
				if suffix == "m" && rest != "" && !strings.HasSuffix(s, " m") && !isDigit(rest[len(rest)-1]) {
					continue
				}
				return WordToNumber(rest) * u.factor
			}
		}
	}
	return WordToNumber(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

var smallNumbers = map[string]int{
	"zero": 0, "a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
	"seventy": 70, "eighty": 80, "ninety": 90,
}

// WordToNumber reads a non-negative integer written as digits or English
// words ("one hundred twenty", "forty five"). Unknown words are ignored;
// it returns 0 when nothing is recognized.
func WordToNumber(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}

	total, current := 0, 0
	for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' }) {
		if n, err := strconv.Atoi(word); err == nil && n >= 0 {
			current += n
			continue
		}
		switch word {
		case "hundred":
			if current == 0 {
				current = 1
			}
			current *= 100
		case "thousand":
			if current == 0 {
				current = 1
			}
			total += current * 1000
			current = 0
		case "and":
		default:
			current += smallNumbers[word]
		}
	}
	return total + current
}
