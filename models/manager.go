// Package models implements the Model Manager (C1): a process-wide
// singleton owning the person detector, the pose-estimation configuration,
// and the anomaly classifier. Every Stream Processor holds a borrowed
// reference to one shared *Manager; nothing outside Load/Cleanup mutates
// its state, addressing spec.md §9's "singleton models with hidden global
// state" re-architecture note with an explicit constructed value instead of
// package-level globals.
package models

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/n0remac/visionguard/apperr"
)

// PoseConfig is returned verbatim by pose_config() per spec.md §4.1.
type PoseConfig struct {
	ModelPath      string
	SequenceLength int
	Device         string
}

// inferenceJob is dispatched onto the shared worker pool so that a runtime
// which is not internally thread-safe can still serialize just the forward
// pass, never the surrounding preprocessing/postprocessing (spec.md §4.1
// concurrency contract).
type inferenceJob struct {
	fn   func()
	done chan struct{}
}

// Manager is the Model Manager. Construct with New, then call Load once at
// startup; Load is idempotent per spec.md §4.1.
type Manager struct {
	Detector   Detector
	Classifier Classifier
	pose       PoseConfig

	initialized atomic.Bool
	loadOnce    sync.Once
	loadErr     error

	jobs   chan inferenceJob
	poolWG sync.WaitGroup
	stop   chan struct{}
}

// Config bundles the load-time parameters (YOLO_MODEL_PATH, POSE_MODEL_PATH,
// ANOMALY_MODEL_PATH, DEVICE, SEQUENCE_LENGTH, WORKER_POOL_SIZE per
// spec.md §6).
type Config struct {
	YOLOModelPath    string
	PoseModelPath    string
	AnomalyModelPath string
	Device           string
	SequenceLength   int
	WorkerPoolSize   int
}

func New() *Manager {
	return &Manager{stop: make(chan struct{})}
}

// Load loads the detector and classifier artifacts and starts the
// inference worker pool. Idempotent: a second call is a no-op. Fails with
// ModelLoadError if any artifact is missing or unreadable.
func (m *Manager) Load(cfg Config) error {
	m.loadOnce.Do(func() {
		detector, err := NewCascadeDetector(cfg.YOLOModelPath)
		if err != nil {
			m.loadErr = apperr.Wrap(apperr.ModelLoadError, "load person detector", err)
			return
		}
		classifier, err := NewGaussianClassifier(cfg.AnomalyModelPath, cfg.SequenceLength)
		if err != nil {
			m.loadErr = apperr.Wrap(apperr.ModelLoadError, "load anomaly classifier", err)
			return
		}
		m.Detector = detector
		m.Classifier = classifier
		m.pose = PoseConfig{
			ModelPath:      cfg.PoseModelPath,
			SequenceLength: cfg.SequenceLength,
			Device:         cfg.Device,
		}

		poolSize := cfg.WorkerPoolSize
		if poolSize <= 0 {
			poolSize = 4
		}
		m.jobs = make(chan inferenceJob, poolSize*4)
		m.poolWG.Add(poolSize)
		for i := 0; i < poolSize; i++ {
			go m.worker()
		}
		m.initialized.Store(true)
	})
	return m.loadErr
}

func (m *Manager) worker() {
	defer m.poolWG.Done()
	for {
		select {
		case <-m.stop:
			return
		case job, ok := <-m.jobs:
			if !ok {
				return
			}
			job.fn()
			close(job.done)
		}
	}
}

// dispatch runs fn on the worker pool and blocks until it completes or ctx
// is done. Preprocessing/postprocessing happen in the caller, outside this
// call, so only the forward pass itself is serialized.
func (m *Manager) dispatch(ctx context.Context, fn func()) error {
	if !m.initialized.Load() {
		return apperr.New(apperr.ModelLoadError, "model manager not loaded")
	}
	job := inferenceJob{fn: fn, done: make(chan struct{})}
	select {
	case m.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PersonDetector returns the shared detector instance. Callers must not
// mutate model state.
func (m *Manager) PersonDetector() Detector { return m.Detector }

// PoseConfigValue returns the shared pose-estimation configuration.
func (m *Manager) PoseConfigValue() PoseConfig { return m.pose }

// AnomalyClassifierHandle returns the shared classifier instance.
func (m *Manager) AnomalyClassifierHandle() Classifier { return m.Classifier }

// Detect runs the person detector against frame via the worker pool.
func (m *Manager) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	var out []Detection
	var err error
	dispatchErr := m.dispatch(ctx, func() {
		out, err = m.Detector.Detect(frame)
	})
	if dispatchErr != nil {
		return nil, dispatchErr
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.InferenceError, "person detector", err)
	}
	return out, nil
}

// Classify runs the anomaly classifier against a pose sequence via the
// worker pool.
func (m *Manager) Classify(ctx context.Context, seq PoseSequence) (float64, error) {
	var score float64
	var err error
	dispatchErr := m.dispatch(ctx, func() {
		score, err = m.Classifier.Score(seq)
	})
	if dispatchErr != nil {
		return 0, dispatchErr
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.InferenceError, "anomaly classifier", err)
	}
	return score, nil
}

// Cleanup releases model resources and stops the worker pool.
func (m *Manager) Cleanup() {
	if !m.initialized.CompareAndSwap(true, false) {
		return
	}
	close(m.stop)
	m.poolWG.Wait()
	if c, ok := m.Detector.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
