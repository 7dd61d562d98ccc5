package volume

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(step int32) *Frame {
	f := &Frame{RunID: "run-1", Step: step, Grid: "density", Size: [3]int{4, 3, 2}}
	f.Data = make([]float32, f.Cells())
	for i := range f.Data {
		f.Data[i] = float32(i) * 0.5
	}
	return f
}

func TestEncodeDecode(t *testing.T) {
	f := testFrame(12)
	data, err := Encode(f)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, f, got)
	assert.Equal(t, float32(0.5)*float32(1+4*(2+3*1)), got.At(1, 2, 1))
}

func TestEncodeRejectsShortData(t *testing.T) {
	f := testFrame(0)
	f.Data = f.Data[:5]
	_, err := Encode(f)
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("not a frame"))
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frames"), w.Dir())

	for step := int32(1); step <= 10; step++ {
		path, err := w.Write(testFrame(step))
		require.NoError(t, err)
		if step%5 == 0 {
			assert.True(t, strings.HasSuffix(path, ".msgpack.zst"))
		} else {
			assert.Empty(t, path)
		}
	}

	frames, bytes := w.Written()
	assert.Equal(t, 2, frames)
	assert.Positive(t, bytes)

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	got, err := ReadFrame(w.Path("density", 10))
	require.NoError(t, err)
	assert.Equal(t, int32(10), got.Step)
}

func TestDisabledWriter(t *testing.T) {
	w, err := NewWriter("", 5)
	require.NoError(t, err)
	assert.Nil(t, w)

	path, err := w.Write(testFrame(5))
	assert.NoError(t, err)
	assert.Empty(t, path)
	frames, _ := w.Written()
	assert.Zero(t, frames)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Mux())
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastFrame(testFrame(3)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.Step)
}

func TestHubDropsForSlowViewer(t *testing.T) {
	hub := NewHub()
	v := &viewer{hub: hub, send: make(chan []byte, sendBufSize)}
	require.True(t, hub.add(v))

	for i := 0; i < sendBufSize+3; i++ {
		hub.Broadcast([]byte{byte(i)})
	}
	assert.Equal(t, 3, hub.Dropped())
	assert.Len(t, v.send, sendBufSize)

	hub.Close()
	assert.Zero(t, hub.Viewers())
	assert.False(t, hub.add(v))
}

func TestBroadcastWithoutViewers(t *testing.T) {
	hub := NewHub()
	f := testFrame(1)
	f.Data = nil
	// No viewers means nothing is encoded, so the invalid frame is never seen.
	assert.NoError(t, hub.BroadcastFrame(f))
}
