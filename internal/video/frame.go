package video

// Frame is one fully decoded video frame: packed RGB24, row-major,
// len(Data) == Width*Height*3. Frames are immutable once constructed;
// consumers receive copies and may hold them indefinitely.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// clone returns a deep copy of the frame.
func (f Frame) clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Width: f.Width, Height: f.Height, Data: data}
}
