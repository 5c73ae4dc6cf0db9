package codec

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"
)

var _ imagetypes.PixelData = (*TestPixelData)(nil)

// TestPixelData is an in-memory imagetypes.PixelData used by codec tests
type TestPixelData struct {
	frames       [][]byte
	frameInfo    *imagetypes.FrameInfo
	encapsulated bool
}

// NewTestPixelData creates native (uncompressed) pixel data with the given frame info
func NewTestPixelData(frameInfo *imagetypes.FrameInfo) *TestPixelData {
	return &TestPixelData{
		frames:    make([][]byte, 0),
		frameInfo: frameInfo,
	}
}

// NewEncapsulatedTestPixelData creates pixel data whose frames hold compressed streams
func NewEncapsulatedTestPixelData(frameInfo *imagetypes.FrameInfo, frames ...[]byte) *TestPixelData {
	p := &TestPixelData{frameInfo: frameInfo, encapsulated: true}
	p.frames = append(p.frames, frames...)
	return p
}

// GetFrame returns the data of the specified frame (0-indexed)
func (p *TestPixelData) GetFrame(frameIndex int) ([]byte, error) {
	if frameIndex < 0 || frameIndex >= len(p.frames) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", frameIndex, len(p.frames))
	}
	return p.frames[frameIndex], nil
}

// AddFrame appends a new frame
func (p *TestPixelData) AddFrame(frameData []byte) error {
	p.frames = append(p.frames, frameData)
	return nil
}

// FrameCount returns the number of frames
func (p *TestPixelData) FrameCount() int {
	return len(p.frames)
}

// GetFrameInfo returns frame metadata for codec operations
func (p *TestPixelData) GetFrameInfo() *imagetypes.FrameInfo {
	return p.frameInfo
}

// IsEncapsulated returns true if frames hold compressed streams
func (p *TestPixelData) IsEncapsulated() bool {
	return p.encapsulated
}
