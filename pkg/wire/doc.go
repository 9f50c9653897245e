// Package wire implements the HMTL frame codec.
package wire

// An HMTL frame is a fixed 8-byte little-endian header followed by a
// type specific body:
//
//   startcode(0xFC) crc version length type flags address(u16)
//
// The crc byte is reserved. It is always written as zero and never
// verified, the same as the firmware deployed on existing nodes.
//
// Frames travel either over a node's console (a byte stream, reassembled
// by Assembler) or over a multi-drop bus where every transport packet
// carries exactly one frame.
//
// Encoders write into a caller supplied buffer. The buffer is normally the
// send buffer of a transport and its size is fixed at build time, so an
// undersized buffer is a programming error and encoders panic with a
// *BufferError. Decoders never panic and report malformed input through
// the errors in errors.go.
