// Package cvpipe adapts the teacher's GStreamer subprocess pattern into a
// decode-only stage: RTP(H264) in, raw BGR frames out. The teacher's
// original pipeline also re-encoded the processed frame back to RTP for
// broadcast to subscribers (cvpipe/pipeline.go); that half has no home in
// this spec, which only ever needs the decoded frame for detection and
// produces its own JPEG evidence separately (encoded by the stream
// annotator, written to disk by the recorder), so it is dropped
// here per SPEC_FULL.md §4.4.
package cvpipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pion/rtp"
	"gocv.io/x/gocv"

	"github.com/n0remac/visionguard/metrics"
	"github.com/n0remac/visionguard/models"
)

// Config describes one inbound H264 RTP stream to decode.
type Config struct {
	StreamID string
	W, H     int
	InRTPPort int   // localhost UDP port the decoder listens on
	InPT      uint8 // publisher's H264 payload type, for udpsrc caps
}

// Decoder runs one GStreamer decode subprocess for the lifetime of a single
// stream; callers Push RTP packets in and read decoded frames off Frames.
type Decoder struct {
	StreamID string
	W, H     int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	sink   net.Conn // where Push writes RTP bytes the decoder consumes

	cancel context.CancelFunc
	wg     sync.WaitGroup

	Frames        chan models.Frame
	FirstFrame    chan struct{}
}

// StartDecoder spawns the decoder subprocess and begins reading decoded
// frames in a background goroutine, using the teacher's exact gst-launch-1.0
// pipeline shape (udpsrc → jitterbuffer → depay → parse → avdec_h264 →
// convert/scale → fdsink).
func StartDecoder(ctx context.Context, cfg Config) (*Decoder, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "gst-launch-1.0",
		"-q",
		"udpsrc", "address=127.0.0.1",
		fmt.Sprintf("port=%d", cfg.InRTPPort),
		fmt.Sprintf("caps=application/x-rtp,media=video,clock-rate=90000,encoding-name=H264,packetization-mode=1,payload=%d", cfg.InPT),
		"!", "rtpjitterbuffer", "latency=200",
		"!", "rtph264depay",
		"!", "h264parse", "config-interval=1", "disable-passthrough=true",
		"!", "avdec_h264", "max-threads=1",
		"!", "queue", "leaky=downstream", "max-size-buffers=0", "max-size-time=0", "max-size-bytes=0",
		"!", "videoconvert",
		"!", "videoscale",
		"!", fmt.Sprintf("video/x-raw,format=BGR,width=%d,height=%d", cfg.W, cfg.H),
		"!", "fdsink", "fd=1",
	)
	cmd.Env = append(os.Environ(), "GST_DEBUG=2")
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}

	sink, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", cfg.InRTPPort))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial decoder udp: %w", err)
	}

	d := &Decoder{
		StreamID:   cfg.StreamID,
		W:          cfg.W,
		H:          cfg.H,
		cmd:        cmd,
		stdout:     stdout,
		sink:       sink,
		cancel:     cancel,
		Frames:     make(chan models.Frame, 2),
		FirstFrame: make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		d.Stop()
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		lp, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", cfg.InRTPPort))
		if err != nil {
			break // gst already bound the port
		}
		_ = lp.Close()
		if time.Now().After(deadline) {
			log.Printf("[cvpipe] WARN: decoder udp %d not bound yet; proceeding", cfg.InRTPPort)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	d.wg.Add(1)
	go d.readLoop()
	return d, nil
}

func (d *Decoder) readLoop() {
	defer d.wg.Done()
	defer close(d.Frames)

	reader := bufio.NewReader(d.stdout)
	frameBytes := d.W * d.H * 3
	buf := make([]byte, frameBytes)

	firstFrame := true
	goodFrames := 0
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err != io.EOF {
				log.Printf("[cvpipe] %s: decoder read error: %v", d.StreamID, err)
			}
			return
		}
		if firstFrame {
			log.Printf("[cvpipe] %s: first decoded frame (w=%d h=%d)", d.StreamID, d.W, d.H)
			firstFrame = false
		}
		goodFrames++
		if goodFrames == 3 {
			select {
			case <-d.FirstFrame:
			default:
				close(d.FirstFrame)
			}
		}

		owned := make([]byte, len(buf))
		copy(owned, buf)
		mat, err := bytesToMatBGR(owned, d.W, d.H)
		if err != nil {
			log.Printf("[cvpipe] %s: bytesToMatBGR failed: %v", d.StreamID, err)
			return
		}
		frame := models.Frame{Mat: mat}

		// Drop-oldest back-pressure: the Stream Processor must never queue
		// unbounded decoded work, per spec.md §4.4.
		select {
		case d.Frames <- frame:
		default:
			select {
			case old := <-d.Frames:
				old.Mat.Close()
				metrics.FramesDropped.WithLabelValues(d.StreamID).Inc()
			default:
			}
			select {
			case d.Frames <- frame:
			default:
				frame.Mat.Close()
				metrics.FramesDropped.WithLabelValues(d.StreamID).Inc()
			}
		}
	}
}

// Push writes one inbound RTP packet's raw bytes to the decoder's UDP sink.
func (d *Decoder) Push(pkt *rtp.Packet) {
	if d == nil || pkt == nil {
		return
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return
	}
	_, _ = d.sink.Write(raw)
}

// Stop tears down the subprocess and its UDP socket.
func (d *Decoder) Stop() {
	d.cancel()
	if d.sink != nil {
		_ = d.sink.Close()
	}
	if d.cmd != nil {
		_ = d.cmd.Wait()
	}
	d.wg.Wait()
}

func bytesToMatBGR(b []byte, w, h int) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, b)
}
