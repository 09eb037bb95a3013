package transport

// flowControl implements the split (high, low) 64-bit offset representation
// spec.md 3/4.7/9 mandates: high counts whole kibibytes, low counts the
// 0..1023 remainder, and the effective offset is high*1024 + low. This
// granularity is a wire concession (MAX_DATA carries kibibyte units) and is
// kept un-normalized on purpose — do not collapse it to a plain uint64.
type flowControl struct {
	// Send side: bytes handed to the wire, and the peer-granted credit in
	// kibibytes (MAX_DATA/MAX_STREAM_DATA units).
	txOffset    uint64
	maxTxOffset uint64

	// Receive side, split per spec.md 3.
	rxOffsetHigh uint64
	rxOffsetLow  uint32

	maxRxOffsetHigh       uint64
	unsentMaxRxOffsetHigh uint64
}

func (f *flowControl) init(maxRx, maxTx uint64) {
	f.maxRxOffsetHigh = maxRx
	f.unsentMaxRxOffsetHigh = maxRx
	f.maxTxOffset = maxTx
}

// canSend returns the remaining send-side credit in bytes.
func (f *flowControl) canSend() uint64 {
	max := f.maxTxOffset * 1024
	if f.maxTxOffset > ^uint64(0)/1024 {
		max = ^uint64(0)
	}
	if f.txOffset >= max {
		return 0
	}
	return max - f.txOffset
}

func (f *flowControl) addSend(n int) {
	f.txOffset += uint64(n)
}

// setMaxSend applies a peer-advertised MAX_DATA/MAX_STREAM_DATA value; it
// never decreases local send credit.
func (f *flowControl) setMaxSend(max uint64) {
	if max > f.maxTxOffset {
		f.maxTxOffset = max
	}
}

// rxOffset64 returns the effective 64-bit receive high-water offset.
func (f *flowControl) rxOffset64() uint64 {
	return f.rxOffsetHigh*1024 + uint64(f.rxOffsetLow)
}

// maxRxOffset64 returns the effective 64-bit announced receive limit.
func (f *flowControl) maxRxOffset64() uint64 {
	return f.maxRxOffsetHigh * 1024
}

// incrementOffset applies datalen new bytes to the (high, low) split,
// saturating at uint64 max, per spec.md 8 property 6.
func incrementOffset(high uint64, low uint32, datalen uint64) (uint64, uint32) {
	total := uint64(low) + datalen
	high += total / 1024
	low = uint32(total % 1024)
	if high < total/1024 { // overflowed during addition
		return ^uint64(0), 1023
	}
	return high, low
}

// addRecv advances the receive-side offset by datalen newly-admitted bytes.
func (f *flowControl) addRecv(datalen uint64) {
	f.rxOffsetHigh, f.rxOffsetLow = incrementOffset(f.rxOffsetHigh, f.rxOffsetLow, datalen)
}

// maxDataViolated reports whether admitting datalen more bytes would push
// the receive offset past the announced limit, accounting for the
// sub-kibibyte remainder exactly as spec.md 4.7 specifies.
func (f *flowControl) maxDataViolated(datalen uint64) bool {
	total := uint64(f.rxOffsetLow) + datalen
	high := f.rxOffsetHigh + total/1024
	if high < f.rxOffsetHigh {
		return true // overflow
	}
	return high > f.maxRxOffsetHigh
}

// shouldSendMaxData reports whether the announced receive window has been
// consumed past half, per spec.md 4.7.
func (f *flowControl) shouldSendMaxData() bool {
	if f.maxRxOffsetHigh < f.rxOffsetHigh {
		return true
	}
	return f.maxRxOffsetHigh-f.rxOffsetHigh <= f.maxRxOffsetHigh/2
}

// extendMaxOffset is the application's cue that data has been consumed; it
// advances the unsent (not-yet-announced) receive limit.
func (f *flowControl) extendMaxOffset(delta uint64) {
	f.unsentMaxRxOffsetHigh += delta
}

// pendingCreditExceedsHalf reports whether the not-yet-announced stream
// credit exceeds the announced limit by more than half of maxStreamData, the
// trigger in spec.md 4.7 for linking a stream into the connection's
// flow-control-pending list. Both sides of the comparison are in the same
// kibibyte units as Settings.MaxStreamData, so no *1024 scaling is needed.
func (f *flowControl) pendingCreditExceedsHalf(maxStreamData uint64) bool {
	if f.unsentMaxRxOffsetHigh <= f.maxRxOffsetHigh {
		return false
	}
	return f.unsentMaxRxOffsetHigh-f.maxRxOffsetHigh > maxStreamData/2
}

// commitMaxRecv commits the previously-announced unsent credit, called once
// a MAX_DATA/MAX_STREAM_DATA frame carrying it has actually been packed.
func (f *flowControl) commitMaxRecv() {
	f.maxRxOffsetHigh = f.unsentMaxRxOffsetHigh
}
