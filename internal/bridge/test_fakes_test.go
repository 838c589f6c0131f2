package bridge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"promptbridge/internal/comfy"
)

// fakeChannel replays queued messages, then returns endErr. With block set
// it waits for ctx instead once the queue is drained.
type fakeChannel struct {
	mu       sync.Mutex
	messages []comfy.Message
	endErr   error
	block    bool

	closeCalls atomic.Int32
}

func (c *fakeChannel) Receive(ctx context.Context) (comfy.Message, error) {
	c.mu.Lock()
	if len(c.messages) > 0 {
		msg := c.messages[0]
		c.messages = c.messages[1:]
		c.mu.Unlock()
		return msg, nil
	}
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return comfy.Message{}, ctx.Err()
	}
	if c.endErr != nil {
		return comfy.Message{}, c.endErr
	}
	return comfy.Message{}, comfy.ErrChannelClosed
}

func (c *fakeChannel) Close() error {
	c.closeCalls.Add(1)
	return nil
}

func text(s string) comfy.Message {
	return comfy.Message{Type: comfy.TextMessage, Data: []byte(s)}
}

func preview() comfy.Message {
	return comfy.Message{Type: comfy.BinaryMessage, Data: []byte{0, 0, 0, 1, 0xff, 0xd8}}
}

func executingDone(promptID string) comfy.Message {
	return text(fmt.Sprintf(`{"type":"executing","data":{"node":null,"prompt_id":%q}}`, promptID))
}

type fakeWorker struct {
	channel    *fakeChannel
	connectErr error

	promptID  string
	submitErr error
	submitted []map[string]any
	clientIDs []string

	history    comfy.History
	historyErr error

	images  map[string][]byte
	viewErr map[string]error

	historyCalls atomic.Int32
	viewCalls    atomic.Int32
}

func (w *fakeWorker) Connect(_ context.Context, clientID string) (comfy.Channel, error) {
	if w.connectErr != nil {
		return nil, w.connectErr
	}
	w.clientIDs = append(w.clientIDs, clientID)
	return w.channel, nil
}

func (w *fakeWorker) Submit(_ context.Context, workflow map[string]any, clientID string) (*comfy.SubmitResponse, error) {
	if w.submitErr != nil {
		return nil, w.submitErr
	}
	w.submitted = append(w.submitted, workflow)
	w.clientIDs = append(w.clientIDs, clientID)
	return &comfy.SubmitResponse{PromptID: w.promptID}, nil
}

func (w *fakeWorker) History(_ context.Context, _ string) (comfy.History, error) {
	w.historyCalls.Add(1)
	if w.historyErr != nil {
		return nil, w.historyErr
	}
	return w.history, nil
}

func (w *fakeWorker) View(_ context.Context, ref comfy.ImageRef) ([]byte, error) {
	w.viewCalls.Add(1)
	if err := w.viewErr[ref.Filename]; err != nil {
		return nil, err
	}
	raw, ok := w.images[ref.Filename]
	if !ok {
		return nil, fmt.Errorf("view %s: 404", ref.Filename)
	}
	return raw, nil
}

func refs(names ...string) []comfy.ImageRef {
	out := make([]comfy.ImageRef, 0, len(names))
	for _, n := range names {
		out = append(out, comfy.ImageRef{Filename: n, Type: "output"})
	}
	return out
}

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(w, h)); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(w, h), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}
