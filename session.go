package main

import (
	"encoding/binary"
	"errors"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/razzie/gifenc/pkg/gifenc"
	"golang.org/x/net/websocket"
)

const (
	// killTimeout expires sessions that never received a producer.
	killTimeout = 10 * time.Minute
	// recordKeep is how long finished recordings stay in the index.
	recordKeep = 24 * time.Hour
)

type SessionMgr struct {
	outDir   string
	sessions sync.Map
	db       *DB
}

func NewSessionMgr(outDir, redisURL string) *SessionMgr {
	mgr := &SessionMgr{outDir: outDir}
	if len(redisURL) > 0 {
		db, err := NewDB(redisURL)
		if err != nil {
			log.Println("Redis error:", err)
		} else {
			mgr.db = db
			mgr.loadRecordings()
		}
	}
	return mgr
}

func (mgr *SessionMgr) loadRecordings() {
	for id, rec := range mgr.db.LoadRecordings() {
		log.Printf("[loading recording from persistent index: %s]", id)
		mgr.sessions.Store(id, &Session{
			id:       id,
			path:     rec.Path,
			frames:   rec.Frames,
			duration: rec.Duration,
			finished: true,
		})
	}
}

func (mgr *SessionMgr) NewSession(settings gifenc.Settings) (*Session, error) {
	enc, err := gifenc.New(settings)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	path := filepath.Join(mgr.outDir, id+".gif")
	if err := enc.SetFileOutput(path); err != nil {
		return nil, err
	}
	sess := &Session{
		mgr:  mgr,
		id:   id,
		path: path,
		enc:  enc,
	}
	sess.killTimer = time.AfterFunc(killTimeout, func() {
		mgr.killSession(sess.id)
	})
	mgr.sessions.Store(id, sess)
	log.Printf("[new session: %s] %dx%d q=%d", id, settings.Width, settings.Height, settings.Quality)
	return sess, nil
}

func (mgr *SessionMgr) GetSession(id string) *Session {
	if sess, ok := mgr.sessions.Load(id); ok {
		return sess.(*Session)
	}
	return nil
}

func (mgr *SessionMgr) killSession(id string) {
	if sess, ok := mgr.sessions.LoadAndDelete(id); ok {
		log.Printf("[session expired: %s]", id)
		sess.(*Session).discard()
	}
}

// Session records the frames of one GIF, pushed by a single websocket
// producer. Closing the socket finalizes the file.
type Session struct {
	mtx       sync.Mutex
	mgr       *SessionMgr
	id        string
	path      string
	enc       *gifenc.Encoder
	killTimer *time.Timer
	attached  bool
	frames    int
	duration  float64
	finished  bool
}

func (sess *Session) serve(ws *websocket.Conn) {
	sess.mtx.Lock()
	if sess.finished || sess.attached {
		sess.mtx.Unlock()
		ws.Close()
		return
	}
	sess.attached = true
	sess.killTimer.Stop()
	sess.mtx.Unlock()

	var data []byte
	for {
		if err := websocket.Message.Receive(ws, &data); err != nil {
			if err != io.EOF {
				log.Printf("[%s] receive: %v", sess.id, err)
			}
			break
		}
		ts, pixels, err := decodeFrameMessage(data)
		if err == nil {
			err = sess.enc.AddFrameRGBA(pixels, ts)
		}
		if err != nil {
			log.Printf("[%s] %v", sess.id, err)
			websocket.Message.Send(ws, err.Error())
			break
		}
		sess.mtx.Lock()
		sess.frames++
		sess.duration = ts
		sess.mtx.Unlock()
	}

	sess.finish()
}

func (sess *Session) finish() {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	if sess.finished {
		return
	}
	sess.finished = true
	if err := sess.enc.Finish(); err != nil {
		log.Printf("[%s] finish: %v", sess.id, err)
		sess.mgr.sessions.Delete(sess.id)
		os.Remove(sess.path)
		return
	}
	log.Printf("[finished recording: %s] %d frames", sess.id, sess.frames)
	if sess.mgr.db != nil {
		sess.mgr.db.SaveRecording(sess.id, Recording{
			Path:     sess.path,
			Frames:   sess.frames,
			Duration: sess.duration,
		}, recordKeep)
	}
}

// discard releases an abandoned session: pipeline goroutines, the open
// sink and the partial file on disk.
func (sess *Session) discard() {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	if sess.finished {
		return
	}
	sess.finished = true
	sess.enc.Abort()
	os.Remove(sess.path)
}

// Finished reports whether the recording is complete and downloadable.
func (sess *Session) Finished() bool {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	return sess.finished
}

// decodeFrameMessage splits a binary websocket message into its parts:
// an 8-byte little-endian IEEE-754 timestamp followed by RGBA pixels.
func decodeFrameMessage(data []byte) (float64, []byte, error) {
	if len(data) < 12 {
		return 0, nil, errors.New("short frame message")
	}
	ts := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
	return ts, data[8:], nil
}
