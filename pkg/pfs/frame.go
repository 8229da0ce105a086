package pfs

import "fmt"

// The three radiance planes of a color frame, by convention.
const (
	ChanX = "X"
	ChanY = "Y"
	ChanZ = "Z"
)

// A Frame is a fixed-size image holding any number of uniquely named
// channels, each a full-resolution Array2D it exclusively owns, plus
// free-form string tags.
type Frame struct {
	width    int
	height   int
	channels map[string]*Array2D
	names    []string // insertion order, for stable iteration
	tags     map[string]string
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		width:    width,
		height:   height,
		channels: map[string]*Array2D{},
		tags:     map[string]string{},
	}
}

func (f *Frame) Width() int  { return f.width }
func (f *Frame) Height() int { return f.height }

// CreateChannel returns the channel of that name, allocating it on
// first use. Creating an existing name is a no-op returning the
// existing channel.
func (f *Frame) CreateChannel(name string) *Array2D {
	if ch, ok := f.channels[name]; ok {
		return ch
	}
	ch := NewArray2D(f.width, f.height)
	f.channels[name] = ch
	f.names = append(f.names, name)
	return ch
}

// Channel returns the named channel, or nil.
func (f *Frame) Channel(name string) *Array2D { return f.channels[name] }

// RemoveChannel drops and releases the named channel, if present.
func (f *Frame) RemoveChannel(name string) {
	ch, ok := f.channels[name]
	if !ok {
		return
	}
	ch.Release()
	delete(f.channels, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i], f.names[i+1:]...)
			break
		}
	}
}

// ChannelNames returns the channel names in creation order.
func (f *Frame) ChannelNames() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// CreateXYZChannels returns the three radiance planes, creating any
// that are missing.
func (f *Frame) CreateXYZChannels() (x, y, z *Array2D) {
	return f.CreateChannel(ChanX), f.CreateChannel(ChanY), f.CreateChannel(ChanZ)
}

// XYZChannels returns the three radiance planes, or nils if any one
// is missing.
func (f *Frame) XYZChannels() (x, y, z *Array2D) {
	x, y, z = f.Channel(ChanX), f.Channel(ChanY), f.Channel(ChanZ)
	if x == nil || y == nil || z == nil {
		return nil, nil, nil
	}
	return x, y, z
}

func (f *Frame) Tag(name string) string    { return f.tags[name] }
func (f *Frame) SetTag(name, value string) { f.tags[name] = value }
func (f *Frame) Tags() map[string]string   { return f.tags }

// Clone deep-copies the frame, its channels and tags.
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.width, f.height)
	for _, name := range f.names {
		CopyArray(f.channels[name], out.CreateChannel(name))
	}
	for k, v := range f.tags {
		out.tags[k] = v
	}
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame[%dx%d, channels %v]", f.width, f.height, f.names)
}
