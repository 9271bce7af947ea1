// Package capture records audio through ffmpeg and guarantees that live
// input-device handles are released even when the process is torn down
// abruptly. The Registry is the shutdown backstop, not the primary release
// path: owners release their own handles on ordinary teardown, and both
// paths are safe in either order.
package capture
