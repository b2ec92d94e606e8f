// Package stream implements the Stream Processor (C4): the per-stream
// orchestrator that runs detect → track → buffer → classify → annotate on
// every decoded frame of one inbound WebRTC video track.
package stream

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/alertsink"
	"github.com/n0remac/visionguard/cvpipe"
	"github.com/n0remac/visionguard/dedup"
	"github.com/n0remac/visionguard/metrics"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/posebuffer"
	"github.com/n0remac/visionguard/recorder"
	"github.com/n0remac/visionguard/tracking"
)

// State is the processor's lifecycle state per spec.md §4.4's
// idle → running → stopping → stopped machine.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// Thresholds bundles the decision cuts read from config at construction
// time, per spec.md §4.4 step 4.
type Thresholds struct {
	PersonConfidence float64
	AnomalyThreshold float64
	HighCut          float64
	MediumCut        float64
}

// Params identifies the stream a Processor owns, per spec.md §4.4's
// "Holds (stream_id, user_id, shop_id, location_label, ...)".
type Params struct {
	StreamID string
	UserID   uuid.UUID
	ShopID   uuid.UUID
	Location string
}

// Processor is per-stream and single-owner: only its own goroutine touches
// its Tracker and Frame Buffer, per spec.md §3's ownership rules.
type Processor struct {
	Params
	Thresholds

	manager  *models.Manager
	tracker  *tracking.Tracker
	buffer   *posebuffer.Manager
	hub      *alerthub.Hub
	recorder *recorder.Recorder
	sink     *alertsink.Sink   // optional; nil disables the external fan-out
	cooldown *dedup.Window     // optional; nil disables dedup

	decoder  *cvpipe.Decoder
	frameNo  atomic.Int64
	state    atomic.Int32
	sinkURL  string
}

func New(p Params, t Thresholds, manager *models.Manager, hub *alerthub.Hub, rec *recorder.Recorder, sink *alertsink.Sink, sinkURL string, cooldown *dedup.Window) *Processor {
	return &Processor{
		Params:     p,
		Thresholds: t,
		manager:    manager,
		tracker:    tracking.New(tracking.NewCropEstimator()),
		buffer:     posebuffer.New(manager.PoseConfigValue().SequenceLength),
		hub:        hub,
		recorder:   rec,
		sink:       sink,
		sinkURL:    sinkURL,
		cooldown:   cooldown,
	}
}

func (p *Processor) State() State { return State(p.state.Load()) }

// Run decodes track's inbound RTP and drives the per-frame pipeline until
// ctx is cancelled or the track ends, per spec.md §4.5 step 5 ("attach it
// as the frame sink").
func (p *Processor) Run(ctx context.Context, track *webrtc.TrackRemote, w, h, rtpPort int) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("stream %s: processor already running", p.StreamID)
	}
	defer p.state.Store(int32(StateStopped))

	dec, err := cvpipe.StartDecoder(ctx, cvpipe.Config{
		StreamID:  p.StreamID,
		W:         w,
		H:         h,
		InRTPPort: rtpPort,
		InPT:      uint8(track.Codec().PayloadType),
	})
	if err != nil {
		return fmt.Errorf("start decoder for stream %s: %w", p.StreamID, err)
	}
	p.decoder = dec
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	go p.readRTP(track)

	for frame := range dec.Frames {
		p.processFrame(ctx, frame)
		frame.Mat.Close()
	}
	p.state.Store(int32(StateStopping))
	dec.Stop()
	return nil
}

func (p *Processor) readRTP(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		p.decoder.Push(pkt)
	}
}

// Stop requests termination; the in-flight Run loop exits once the decoder
// drains, matching the teacher's cancel-then-drain shutdown shape.
func (p *Processor) Stop() {
	p.state.Store(int32(StateStopping))
	if p.decoder != nil {
		p.decoder.Stop()
	}
}

// processFrame runs the six numbered steps of spec.md §4.4 against one
// decoded frame.
func (p *Processor) processFrame(ctx context.Context, frame models.Frame) {
	frameNo := int(p.frameNo.Add(1))
	metrics.FramesProcessed.WithLabelValues(p.StreamID).Inc()

	// Step 1: detect, filtered to class=person and confidence >= person_conf.
	detections, err := p.manager.Detect(ctx, frame)
	if err != nil {
		log.Printf("[stream] %s: detect failed: %v", p.StreamID, err)
		metrics.FramesDropped.WithLabelValues(p.StreamID).Inc()
		return
	}
	filtered := detections[:0:0]
	for _, d := range detections {
		if d.Class == "person" && d.Confidence >= p.PersonConfidence {
			filtered = append(filtered, d)
		}
	}

	// Step 2: track, producing pose keypoints per person_id.
	tracked, err := p.tracker.Update(filtered, frame)
	if err != nil {
		log.Printf("[stream] %s: tracker update failed: %v", p.StreamID, err)
		return
	}
	for _, id := range p.tracker.Destroyed() {
		p.buffer.Drop(id)
	}

	// Step 3: push keypoints into each person's buffer.
	for _, tp := range tracked {
		p.buffer.Push(tp.PersonID, tp.Keypoints)
	}

	// Step 4: classify every buffer that is now exactly full.
	var verdicts []verdict
	for _, tp := range tracked {
		seq, ok := p.buffer.Sequence(tp.PersonID)
		if !ok {
			continue
		}
		start := time.Now()
		score, err := p.manager.Classify(ctx, seq)
		metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			log.Printf("[stream] %s: classify person %d failed: %v", p.StreamID, tp.PersonID, err)
			continue
		}
		abnormal := score < p.AnomalyThreshold
		verdicts = append(verdicts, verdict{
			person:     tp,
			score:      score,
			abnormal:   abnormal,
			confidence: confidenceBucket(score, p.HighCut, p.MediumCut),
		})
	}

	anyAbnormal := false
	for _, v := range verdicts {
		if v.abnormal {
			anyAbnormal = true
			break
		}
	}
	if !anyAbnormal {
		return
	}

	// Step 5: annotate the frame once, shared by every abnormal person this
	// frame.
	jpeg, err := annotate(frame, tracked, verdicts)
	if err != nil {
		log.Printf("[stream] %s: annotate failed: %v", p.StreamID, err)
		return
	}

	// Step 6: submit an AnomalyEvent per abnormal person_id.
	for _, v := range verdicts {
		if !v.abnormal {
			continue
		}
		if p.cooldown.Suppress(p.StreamID, v.person.PersonID) {
			continue
		}
		metrics.AnomaliesDetected.WithLabelValues(v.confidence).Inc()
		classification := "Abnormal"
		bbox := v.person.BBox

		result := alerthub.AnomalyResult{
			PersonID:       v.person.PersonID,
			FrameNumber:    frameNo,
			Score:          v.score,
			Classification: classification,
			Confidence:     v.confidence,
			BBox:           [4]int{bbox.X, bbox.Y, bbox.W, bbox.H},
		}
		if err := p.hub.Publish(ctx, p.UserID, p.StreamID, result, jpeg); err != nil {
			log.Printf("[stream] %s: alert hub publish failed: %v", p.StreamID, err)
		}

		det := recorder.DetectionResult{
			PersonID:       v.person.PersonID,
			FrameNumber:    frameNo,
			Score:          v.score,
			BBox:           bbox,
			Confidence:     v.confidence,
			Classification: classification,
		}
		_, err := p.recorder.Record(ctx, recorder.RecordParams{
			ShopID:        p.ShopID,
			Location:      p.Location,
			AnnotatedJPEG: jpeg,
			Detection:     det,
			AnomalyType:   "behavioral_anomaly",
			PoseDict:      p.buffer.SnapshotAll(),
			StreamID:      p.StreamID,
		})
		if err != nil {
			log.Printf("[stream] %s: recorder failed: %v", p.StreamID, err)
		}

		if p.sink != nil {
			p.sink.Notify(ctx, p.sinkURL, alertsink.NewSummary(p.ShopID.String(), "behavioral_anomaly", v.confidence, p.Location))
		}
	}
}

func confidenceBucket(score, highCut, mediumCut float64) string {
	abs := score
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= highCut:
		return "HIGH"
	case abs >= mediumCut:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
