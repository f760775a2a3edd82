// Package bitbang drives a JTAG TAP through a USB converter running in
// synchronous bit-bang mode, such as the FT232R on an Adafruit FTDI Friend.
//
// Every byte written to the converter sets the level of the output pins for
// one bit-bang clock, and the converter returns one byte per byte written
// holding the sampled pin levels. A JTAG clock cycle is therefore two bytes,
// TCK low then TCK high. Bytes that should have TDO recorded carry PinTDO as
// a sample request; the flush engine keeps only the samples of those bytes.
//
// The Driver owns the device handle and both buffers for one session. TAP
// state tracking, scan shifting and delays are delegated through the TAP,
// Scanner and Sleeper interfaces.
package bitbang
