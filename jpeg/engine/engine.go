// Package engine provides the JPEG decompression engines behind the DICOM
// pipeline: one for 8-bit sample streams and one for wider (12-bit) streams.
//
// An engine receives the compressed stream of one frame in arbitrary pieces
// through Feed and moves through an explicit state machine. Only the EOI
// marker completes a frame; scan boundaries of progressive streams never do.
package engine

import (
	"errors"
	"fmt"
)

// State is the position of an engine in the frame state machine
type State int

const (
	// AwaitingData means no scan has started yet
	AwaitingData State = iota
	// ScanInProgress means at least one scan has started and EOI is still pending
	ScanInProgress
	// FrameComplete means EOI was seen and the frame can be retrieved
	FrameComplete
	// Failed means the stream is corrupt or unsupported; Reset recovers
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingData:
		return "awaiting-data"
	case ScanInProgress:
		return "scan-in-progress"
	case FrameComplete:
		return "frame-complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrFrameIncomplete is returned by Frame before EOI was seen
	ErrFrameIncomplete = errors.New("frame is not complete")
)

// Options tune one engine instance
type Options struct {
	// ColorTransform converts 3-component output from YCbCr to RGB
	ColorTransform bool
}

// Frame is one decompressed frame. Samples are interleaved per pixel,
// SampleBytes wide, little endian when SampleBytes is 2.
type Frame struct {
	Width       int
	Height      int
	Components  int
	Precision   int
	SampleBytes int

	// ColorTransformed is set when YCbCr samples were converted to RGB
	ColorTransformed bool
	// Upsampled is set when chroma components were replicated to full size
	Upsampled bool
	Progressive bool
	Scans       int

	Data []byte
}

// Engine decompresses one JPEG frame at a time
type Engine interface {
	// Precision is the widest sample precision the engine decodes
	Precision() int
	// Feed appends the next piece of the compressed stream
	Feed(fragment []byte) (State, error)
	// State returns the current state
	State() State
	// Offset returns the number of compressed bytes received for the frame
	Offset() int64
	// Scans returns the number of scans started so far
	Scans() int
	// Header returns the frame header once SOF was parsed, nil before
	Header() *Header
	// Frame returns the decoded frame after FrameComplete
	Frame() (*Frame, error)
	// Reset prepares the engine for the next frame
	Reset()
}
