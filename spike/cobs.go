// Package spike implements the SPIKE Prime / Robot Inventor hub protocol:
// the XOR-masked variant-COBS framing, the fixed-size telemetry record
// codec, and the outbound command builders.
//
// Frames on the wire are COBS-encoded with a block size of 84 and the escape
// set {0x00, 0x01, 0x02}, XORed with 0x03 and terminated by a single 0x02
// delimiter. A leading 0x01 before the encoded body marks a high-priority
// frame.
package spike

// Framing parameters. The code byte of a block encodes both the block
// length and which escaped byte terminated it, so the escape set upper
// bound doubles as the code offset.
const (
	Delimiter    byte = 0x02
	PriorityByte byte = 0x01
	noDelimiter  byte = 0xFF
	xorMask      byte = 0x03

	codeOffset   = int(Delimiter)
	maxBlockSize = 84
)

// cobsEncode removes all bytes <= 0x02 from data by folding them into block
// code bytes. The result contains only bytes >= 0x03 plus the 0xFF
// no-delimiter marker.
func cobsEncode(data []byte) []byte {
	buf := make([]byte, 0, len(data)+len(data)/maxBlockSize+1)

	codeIndex := 0
	block := 0
	beginBlock := func() {
		codeIndex = len(buf)
		buf = append(buf, noDelimiter)
		block = 1
	}
	beginBlock()

	for _, b := range data {
		if b > Delimiter {
			buf = append(buf, b)
			block++
		}
		if b <= Delimiter || block > maxBlockSize {
			if b <= Delimiter {
				// The code byte records the escaped value and the block
				// length up to it.
				buf[codeIndex] = byte(int(b)*maxBlockSize + block + codeOffset)
			}
			beginBlock()
		}
	}
	return buf
}

// cobsDecode reverses cobsEncode. Any input, including truncated or
// garbage bytes, yields a best-effort result without panicking.
func cobsDecode(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(data))

	// unescape splits a code byte into the escaped value it stands for
	// (-1 for the saturated-block marker) and the block length.
	unescape := func(code byte) (value int, block int) {
		if code == noDelimiter {
			return -1, maxBlockSize + 1
		}
		value, block = int(code-byte(codeOffset))/maxBlockSize, int(code-byte(codeOffset))%maxBlockSize
		if block == 0 {
			// Maximum-length block closed by an escaped byte.
			block = maxBlockSize
			value--
		}
		return value, block
	}

	value, block := unescape(data[0])
	for _, b := range data[1:] {
		block--
		if block > 0 {
			buf = append(buf, b)
			continue
		}
		if value >= 0 {
			buf = append(buf, byte(value))
		}
		value, block = unescape(b)
	}
	return buf
}

// Pack frames a message for the wire: COBS-encode, XOR every byte with the
// mask, append the delimiter. If priority is set the frame is prefixed with
// the high-priority marker byte.
func Pack(message []byte, priority bool) []byte {
	encoded := cobsEncode(message)
	frame := make([]byte, 0, len(encoded)+2)
	if priority {
		frame = append(frame, PriorityByte)
	}
	for _, b := range encoded {
		frame = append(frame, b^xorMask)
	}
	return append(frame, Delimiter)
}

// Unpack reverses Pack. A frame without the trailing delimiter, or an empty
// frame, yields an empty result.
func Unpack(frame []byte) []byte {
	if len(frame) == 0 || frame[len(frame)-1] != Delimiter {
		return nil
	}
	frame = frame[:len(frame)-1]
	if len(frame) > 0 && frame[0] == PriorityByte {
		frame = frame[1:]
	}
	unmasked := make([]byte, len(frame))
	for i, b := range frame {
		unmasked[i] = b ^ xorMask
	}
	return cobsDecode(unmasked)
}

// Chunks splits a packed frame into pieces no larger than the packet size
// the hub negotiated in its InfoResponse. Each piece is written as one
// unreliable GATT write.
func Chunks(frame []byte, maxPacket int) [][]byte {
	if maxPacket <= 0 {
		return [][]byte{frame}
	}
	chunks := make([][]byte, 0, (len(frame)+maxPacket-1)/maxPacket)
	for len(frame) > maxPacket {
		chunks = append(chunks, frame[:maxPacket])
		frame = frame[maxPacket:]
	}
	if len(frame) > 0 {
		chunks = append(chunks, frame)
	}
	return chunks
}
