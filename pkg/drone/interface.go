// Package drone provides the command dispatcher and lifecycle controller for
// a single Tello drone.
//
// The SDK capability is split into small interfaces so consumers depend only
// on what they use. Backends live in pkg/tello.
package drone

import (
	"context"
	"image"
)

// Connector opens and releases the link to the drone and its video feed.
type Connector interface {
	Connect(ctx context.Context) error
	StreamOn(ctx context.Context) error
	Close() error
}

// Flyer provides the built-in flight commands.
type Flyer interface {
	TakeOff(ctx context.Context) error
	Land(ctx context.Context) error
	Emergency(ctx context.Context) error
}

// Mover provides relative motion commands.
// Distances are centimetres, rotations degrees, speed cm/s.
type Mover interface {
	Move(ctx context.Context, dir Direction, cm int) error
	Rotate(ctx context.Context, rot Rotation, degrees int) error
	Flip(ctx context.Context, dir FlipDirection) error
	SetSpeed(ctx context.Context, cms int) error
}

// FrameSource returns the most recent camera frame without waiting for a
// new one. It returns (nil, nil) while no frame has been decoded yet.
type FrameSource interface {
	Frame() (image.Image, error)
}

// TelemetrySource returns the last known drone state.
type TelemetrySource interface {
	Telemetry() Telemetry
}

// SDK is the composite capability a backend must provide.
type SDK interface {
	Connector
	Flyer
	Mover
	FrameSource
	TelemetrySource
}
