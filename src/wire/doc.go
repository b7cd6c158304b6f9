// Package wire implements the fixed binary layout exchanged between peers.
//
// Every frame starts with an 8 byte header (size uint32, protocol uint16, type
// uint16) followed by a payload whose layout is selected by the type. All
// integers are little-endian. The header size counts the header itself, so a
// frame with an empty payload has size 8.
//
// Decoders never reinterpret untrusted bytes in place: each payload has a
// fixed expected length which is checked before any field is read, and
// decoding copies into a Go struct. A length mismatch is a FormatError (see
// common.NetErr), which is fatal for the connection that produced it.
//
// Signed payloads (Computors, Tick, Revenues) do not verify anything
// themselves; they compute the digest of their signed body and hand it to a
// Verifier supplied by the caller.
package wire
