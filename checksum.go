// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

// checksum implements the XOR checksum of NIBE frames.
type checksum struct {
	sum byte
}

func (c *checksum) reset() *checksum {
	c.sum = 0
	return c
}

func (c *checksum) pushByte(b byte) *checksum {
	c.sum ^= b
	return c
}

func (c *checksum) pushBytes(data []byte) *checksum {
	for _, b := range data {
		c.sum ^= b
	}
	return c
}

func (c *checksum) value() byte {
	return c.sum
}

// wireChecksum returns the checksum byte as the heat pump transmits it: a
// checksum equal to the frame start is sent as 0xC5.
func wireChecksum(sum byte) byte {
	if sum == FrameStartFromNibe {
		return 0xC5
	}
	return sum
}

// checksumMatches compares a computed checksum with the received one. The
// heat pump swaps 0x5C and 0xC5, both directions are accepted.
func checksumMatches(calculated, received byte) bool {
	if calculated == received {
		return true
	}
	return (calculated == 0x5C && received == 0xC5) || (calculated == 0xC5 && received == 0x5C)
}
