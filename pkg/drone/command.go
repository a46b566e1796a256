package drone

import (
	"fmt"
	"strconv"
)

// DefaultDistance is the magnitude, in cm, of the literal directional commands.
const DefaultDistance = 30

// Kind identifies what a Command does.
type Kind int

const (
	KindTakeOff Kind = iota + 1
	KindLand
	KindEmergency
	KindMove
	KindRotate
	KindFlip
	KindSpeed
)

// Direction is a relative move direction. Values match the SDK wire words.
type Direction string

const (
	Forward Direction = "forward"
	Back    Direction = "back"
	Left    Direction = "left"
	Right   Direction = "right"
	Up      Direction = "up"
	Down    Direction = "down"
)

// Rotation is a yaw direction.
type Rotation string

const (
	Clockwise        Rotation = "cw"
	CounterClockwise Rotation = "ccw"
)

// FlipDirection is the direction of a flip.
type FlipDirection string

const (
	FlipFront FlipDirection = "f"
	FlipBack  FlipDirection = "b"
	FlipLeft  FlipDirection = "l"
	FlipRight FlipDirection = "r"
)

// Command is a decoded, valid drone command. Build one with the
// constructors below or decode one with Parse.
type Command struct {
	Kind      Kind          `json:"kind"`
	Direction Direction     `json:"direction,omitempty"` // KindMove
	Rotation  Rotation      `json:"rotation,omitempty"`  // KindRotate
	Flip      FlipDirection `json:"flip,omitempty"`      // KindFlip
	Amount    int           `json:"amount,omitempty"`    // cm, degrees or cm/s
}

// TakeOff returns the take-off command.
func TakeOff() Command { return Command{Kind: KindTakeOff} }

// Land returns the land command.
func Land() Command { return Command{Kind: KindLand} }

// Emergency returns the motor-stop command.
func Emergency() Command { return Command{Kind: KindEmergency} }

// Move returns a relative move of cm centimetres.
func Move(dir Direction, cm int) Command {
	return Command{Kind: KindMove, Direction: dir, Amount: cm}
}

// Rotate returns a yaw rotation of degrees.
func Rotate(rot Rotation, degrees int) Command {
	return Command{Kind: KindRotate, Rotation: rot, Amount: degrees}
}

// Flip returns a flip command.
func Flip(dir FlipDirection) Command {
	return Command{Kind: KindFlip, Flip: dir}
}

// Speed returns a set-speed command in cm/s.
func Speed(cms int) Command {
	return Command{Kind: KindSpeed, Amount: cms}
}

// String renders the command the way the text SDK spells it.
func (c Command) String() string {
	switch c.Kind {
	case KindTakeOff:
		return "takeoff"
	case KindLand:
		return "land"
	case KindEmergency:
		return "emergency"
	case KindMove:
		return string(c.Direction) + " " + strconv.Itoa(c.Amount)
	case KindRotate:
		return string(c.Rotation) + " " + strconv.Itoa(c.Amount)
	case KindFlip:
		return "flip " + string(c.Flip)
	case KindSpeed:
		return "speed " + strconv.Itoa(c.Amount)
	default:
		return fmt.Sprintf("command(%d)", int(c.Kind))
	}
}

// literals are the exact input strings accepted by Parse.
var literals = []string{"take off", "land", "forward", "left", "right", "up", "down"}

// Literals returns the command strings accepted by Parse, in display order.
func Literals() []string {
	out := make([]string, len(literals))
	copy(out, literals)
	return out
}

// Parse decodes one of the literal command strings. Matching is exact and
// case-sensitive; directional commands use DefaultDistance.
func Parse(s string) (Command, error) {
	return ParseWithDistance(s, DefaultDistance)
}

// ParseWithDistance is Parse with a custom magnitude for directional commands.
func ParseWithDistance(s string, cm int) (Command, error) {
	switch s {
	case "take off":
		return TakeOff(), nil
	case "land":
		return Land(), nil
	case "forward":
		return Move(Forward, cm), nil
	case "left":
		return Move(Left, cm), nil
	case "right":
		return Move(Right, cm), nil
	case "up":
		return Move(Up, cm), nil
	case "down":
		return Move(Down, cm), nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnsupportedCommand, s)
	}
}
