// Command tello flies a Ryze Tello from the browser: it streams the drone
// camera as MJPEG and accepts commands over HTTP and websockets.
//
// Usage:
//
//	tello serve                     # connect and serve on :8080
//	tello serve --backend gobot     # use the binary protocol driver
//	tello send forward              # send a command to a running server
//	tello send --phrase "turn left 90"
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
