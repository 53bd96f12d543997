package main

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"testing"

	"github.com/razzie/gifenc/pkg/gifenc"
)

func frameMessage(ts float64, pixels []byte) []byte {
	msg := make([]byte, 8+len(pixels))
	binary.LittleEndian.PutUint64(msg, math.Float64bits(ts))
	copy(msg[8:], pixels)
	return msg
}

func TestDecodeFrameMessage(t *testing.T) {
	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	ts, got, err := decodeFrameMessage(frameMessage(1.5, pixels))
	if err != nil {
		t.Fatal(err)
	}
	if ts != 1.5 {
		t.Errorf("timestamp = %v, want 1.5", ts)
	}
	if string(got) != string(pixels) {
		t.Errorf("pixels = %v, want %v", got, pixels)
	}
}

func TestDecodeFrameMessageTooShort(t *testing.T) {
	for _, n := range []int{0, 8, 11} {
		if _, _, err := decodeFrameMessage(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d byte message", n)
		}
	}
}

func TestKillSessionDiscardsRecording(t *testing.T) {
	mgr := NewSessionMgr(t.TempDir(), "")
	sess, err := mgr.NewSession(gifenc.Settings{Width: 2, Height: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sess.path); err != nil {
		t.Fatal(err)
	}

	mgr.killSession(sess.id)
	if mgr.GetSession(sess.id) != nil {
		t.Error("expired session still reachable")
	}
	if _, err := os.Stat(sess.path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("partial file not removed: %v", err)
	}
	if !sess.Finished() {
		t.Error("expired session not finished")
	}

	// second discard and a late expiry are no-ops
	sess.discard()
	mgr.killSession(sess.id)
}
