package domain

import "fmt"

// Frame is one unit of traffic on a channel. Exactly one payload group is
// meaningful, selected by Encoding:
//
//   - EncodingBits: Bits holds boolean lanes starting at lane Offset.
//     Inbound frames carry the full channel width at Offset 0; outbound
//     frames carry one element's lane group at that element's offset.
//   - EncodingText: Text holds the opaque payload for channel Offset.
//   - EncodingCommand: Command and Args hold a structured instruction
//     addressed to channel Offset.
type Frame struct {
	Encoding Encoding
	Offset   int
	Bits     []bool
	Text     string
	Command  string
	Args     []string
}

// BitFrame builds a bit-stream frame.
func BitFrame(offset int, lanes ...bool) Frame {
	return Frame{Encoding: EncodingBits, Offset: offset, Bits: lanes}
}

// TextFrame builds a textual frame.
func TextFrame(offset int, payload string) Frame {
	return Frame{Encoding: EncodingText, Offset: offset, Text: payload}
}

// CommandFrame builds a command-stream frame.
func CommandFrame(offset int, name string, args ...string) Frame {
	return Frame{Encoding: EncodingCommand, Offset: offset, Command: name, Args: args}
}

func (f Frame) String() string {
	switch f.Encoding {
	case EncodingBits:
		return fmt.Sprintf("bits@%d %v", f.Offset, f.Bits)
	case EncodingText:
		return fmt.Sprintf("text@%d %q", f.Offset, f.Text)
	case EncodingCommand:
		return fmt.Sprintf("command@%d %s%v", f.Offset, f.Command, f.Args)
	}
	return fmt.Sprintf("frame(%s)", string(f.Encoding))
}
