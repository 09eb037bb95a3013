package transport

import (
	"testing"
	"time"
)

func TestLogFramePadding(t *testing.T) {
	testLogFrame(t, newPaddingFrame(3), "frame_type=padding length=3")
}

func TestLogFrameAck(t *testing.T) {
	f := newAckFrame(2, 1, 0, nil)
	testLogFrame(t, f, "frame_type=ack largest_acknowledged=1 ack_delay=2 block_count=0")
}

func TestLogFrameStream(t *testing.T) {
	f := newStreamFrame(2, make([]byte, 4), 3, true)
	testLogFrame(t, f, "frame_type=stream stream_id=2 offset=3 length=4 fin=true")
}

func TestLogFrameMaxData(t *testing.T) {
	f := newMaxDataFrame(1)
	testLogFrame(t, f, "frame_type=max_data maximum=1")
}

func TestLogFrameMaxStreamData(t *testing.T) {
	f := newMaxStreamDataFrame(1, 2)
	testLogFrame(t, f, "frame_type=max_stream_data stream_id=1 maximum=2")
}

func TestLogFrameMaxStreamID(t *testing.T) {
	f := newMaxStreamIDFrame(5)
	testLogFrame(t, f, "frame_type=max_stream_id maximum=5")
}

func TestLogFrameConnectionClose(t *testing.T) {
	f := newConnectionCloseFrame(uint64(ProtocolViolation), []byte("reason"), false)
	testLogFrame(t, f, "frame_type=connection_close error_space=transport error_code=protocol_violation raw_error_code=4 reason=reason")
}

func testLogFrame(t *testing.T, f frame, expect string) {
	tm := time.Date(2020, time.January, 5, 2, 3, 4, 5, time.UTC)
	e := newLogEventFrame(tm, logEventFramesProcessed, f)
	expect = "2020-01-05T02:03:04Z frames_processed " + expect
	actual := e.String()
	if expect != actual {
		t.Helper()
		t.Fatalf("\nexpect %v\nactual %v", expect, actual)
	}
}
