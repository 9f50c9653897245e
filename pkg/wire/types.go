package wire

import "strconv"

// Address is the logical address of a node.
type Address uint16

// Broadcast addresses every node.
const Broadcast Address = 0xffff

// String implements fmt.Stringer.
func (a Address) String() string {
	if a == Broadcast {
		return "*"
	}
	return strconv.Itoa(int(a))
}

// Frame layout constants.
const (
	StartCode   byte = 0xfc
	Version     byte = 2
	HeaderSize       = 8
	MaxFrameLen      = 128
)

// MsgType is the message type code in the header.
type MsgType byte

// Message types.
const (
	MsgOutput   MsgType = 1
	MsgPoll     MsgType = 2
	MsgSetAddr  MsgType = 3
	MsgSensor   MsgType = 4
	MsgTimeSync MsgType = 5
)

var msgTypeNames = map[MsgType]string{
	MsgOutput:   "OUTPUT",
	MsgPoll:     "POLL",
	MsgSetAddr:  "SET_ADDR",
	MsgSensor:   "SENSOR",
	MsgTimeSync: "TIMESYNC",
}

// String implements fmt.Stringer.
func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "MSG(" + strconv.Itoa(int(t)) + ")"
}

// Flags is the header flags field.
type Flags byte

// Header flags.
const (
	// FlagAck marks a frame as a reply.
	FlagAck Flags = 0x1
	// FlagResponse asks the receiver for a reply.
	FlagResponse Flags = 0x2
)

// Has tests whether all bits in f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// OutputType discriminates output sub-messages and output descriptors.
type OutputType byte

// Output types. OutputPixels and the hardware types only appear in
// output descriptors, never as an output sub-message encoding.
const (
	OutputValue   OutputType = 1
	OutputRGB     OutputType = 2
	OutputProgram OutputType = 3
	OutputPixels  OutputType = 4
	OutputMPR121  OutputType = 5
	OutputRS485   OutputType = 6
	OutputXBee    OutputType = 7
)

var outputTypeNames = map[OutputType]string{
	OutputValue:   "value",
	OutputRGB:     "rgb",
	OutputProgram: "program",
	OutputPixels:  "pixels",
	OutputMPR121:  "mpr121",
	OutputRS485:   "rs485",
	OutputXBee:    "xbee",
}

// String implements fmt.Stringer.
func (t OutputType) String() string {
	if name, ok := outputTypeNames[t]; ok {
		return name
	}
	return "output(" + strconv.Itoa(int(t)) + ")"
}

// OutputTypeByName looks up an output type by its lower case name.
func OutputTypeByName(name string) (OutputType, bool) {
	for t, n := range outputTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Output index sentinels.
const (
	AllOutputs byte = 254
	NoOutput   byte = 255
)
