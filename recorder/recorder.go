// Package recorder implements the Anomaly Recorder (C8): on a positive
// classification, writes JPEG evidence, persists the AnomalyEvent and its
// 1:1 TrainingSample in one transaction, and best-effort indexes the event
// for search.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/n0remac/visionguard/apperr"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/store"
)

// DetectionResult is the tagged record spec.md §9 calls for in place of the
// source's duck-typed dict: enumerated confidence, explicit bbox/score/
// person_id/frame_number.
type DetectionResult struct {
	PersonID       int
	FrameNumber    int
	Score          float64
	BBox           models.BBox
	Confidence     string // LOW | MEDIUM | HIGH
	Classification string // "Normal" | "Abnormal"
}

// RecordParams bundles the operation's arguments per spec.md §4.8.
type RecordParams struct {
	ShopID          uuid.UUID
	Location        string
	Description     string // caller-supplied hint; "" triggers auto-generation
	AnnotatedJPEG   []byte
	Detection       DetectionResult
	AnomalyType     string
	PoseDict        map[int][]models.PoseFrame
	StreamID        string
	ExtraFields     map[string]any // merged into the persisted `extra` JSON; "critical": true escalates severity
}

type Recorder struct {
	DB          *gorm.DB
	EvidenceDir string
	Index       *Index // may be nil; search indexing is best-effort
	openaiClient *openai.Client
}

func New(db *gorm.DB, evidenceDir string, index *Index, openaiAPIKey string) *Recorder {
	r := &Recorder{DB: db, EvidenceDir: evidenceDir, Index: index}
	if openaiAPIKey != "" {
		r.openaiClient = openai.NewClient(openaiAPIKey)
	}
	return r
}

func confidenceBucket(confidence string) store.Severity {
	switch confidence {
	case "HIGH":
		return store.SeverityHigh
	case "MEDIUM":
		return store.SeverityMedium
	default:
		return store.SeverityLow
	}
}

// Record performs the five steps of spec.md §4.8 in order.
func (r *Recorder) Record(ctx context.Context, p RecordParams) (uuid.UUID, error) {
	// Step 1: encode + write JPEG evidence. The caller passes an
	// already-encoded JPEG (quality 90 is enforced by the Stream
	// Processor's annotator, stream/annotate.go); this layer only places
	// it on disk.
	imageRef, err := r.writeEvidence(p.ShopID, p.AnnotatedJPEG)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.StorageError, "write evidence jpeg", err)
	}

	extra := buildExtra(p)
	severity := r.resolveSeverity(p.Detection.Confidence, extra)
	description := p.Description
	if description == "" {
		description = r.generateDescription(ctx, p)
	}

	eventID := uuid.New()
	sampleID := uuid.New()
	now := time.Now().UTC()

	poseDictJSON, err := json.Marshal(p.PoseDict)
	if err != nil {
		poseDictJSON = []byte("{}")
	}

	event := store.AnomalyEvent{
		ID:              eventID,
		ShopID:          p.ShopID,
		Timestamp:       now,
		Location:        p.Location,
		Severity:        severity,
		Status:          store.StatusPending,
		Description:     description,
		ImageRef:        imageRef,
		AnomalyType:     p.AnomalyType,
		ConfidenceScore: p.Detection.Score,
		Extra:           extra,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sample := store.TrainingSample{
		ID:                        sampleID,
		AnomalyID:                 eventID,
		PoseDict:                  poseDictJSON,
		StreamID:                  p.StreamID,
		FrameNumber:                p.Detection.FrameNumber,
		PredictedScore:             p.Detection.Score,
		PredictedConfidenceBucket:  p.Detection.Confidence,
		UserFeedback:               store.FeedbackNone,
		UsedForTraining:            false,
		CreatedAt:                  now,
	}

	// Step 3+4: insert event and training sample in one transaction, per
	// spec.md §4.8 and the invariant that a TrainingSample exists iff its
	// AnomalyEvent does. DatabaseError policy (spec.md §7): retry once,
	// then log ERROR and continue.
	runTx := func() error {
		return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			return tx.Create(&sample).Error
		})
	}
	txErr := runTx()
	if txErr != nil {
		log.Printf("[WARN] recorder: database write failed, retrying once: %v", txErr)
		txErr = runTx()
	}
	if txErr != nil {
		// Step 5: the JPEG is left in place deliberately; log the orphan
		// path rather than deleting evidence that may be forensically
		// useful.
		log.Printf("[ERROR] recorder: database write failed after retry, evidence orphaned at %s: %v", imageRef, txErr)
		return uuid.Nil, apperr.Wrap(apperr.DatabaseError, "persist anomaly event", txErr)
	}

	if r.Index != nil {
		if err := r.Index.Upsert(event); err != nil {
			log.Printf("[WARN] recorder: search index update failed for %s: %v", eventID, err)
		}
	}
	return eventID, nil
}

func buildExtra(p RecordParams) []byte {
	fields := map[string]any{
		"person_id":    p.Detection.PersonID,
		"bbox":         p.Detection.BBox,
		"frame_number": p.Detection.FrameNumber,
		"raw_score":    p.Detection.Score,
	}
	for k, v := range p.ExtraFields {
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return []byte("{}")
	}
	return out
}

// resolveSeverity implements §4.8 step 2 plus the §9 Open Question
// decision: escalate to CRITICAL only when extra explicitly requests it.
func (r *Recorder) resolveSeverity(confidence string, extraJSON []byte) store.Severity {
	if gjson.GetBytes(extraJSON, "critical").Bool() {
		return store.SeverityCritical
	}
	return confidenceBucket(confidence)
}

func (r *Recorder) writeEvidence(shopID uuid.UUID, jpeg []byte) (string, error) {
	relDir := filepath.Join("anomaly_frames", shopID.String())
	name := fmt.Sprintf("%s_%s.jpg", time.Now().UTC().Format("20060102_150405"), shortUUID())
	relPath := filepath.Join(relDir, name)

	absDir := filepath.Join(r.EvidenceDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", err
	}
	absPath := filepath.Join(r.EvidenceDir, relPath)
	if err := os.WriteFile(absPath, jpeg, 0o644); err != nil {
		return "", err
	}
	return relPath, nil
}

func shortUUID() string {
	id := uuid.New()
	return id.String()[:8]
}

// generateDescription produces a human summary via the teacher's existing
// LLM dependency when configured, per SPEC_FULL.md §4.8; otherwise a
// deterministic template keeps the field populated without any network
// dependency.
func (r *Recorder) generateDescription(ctx context.Context, p RecordParams) string {
	template := fmt.Sprintf("%s detected for person %d, confidence %s",
		p.AnomalyType, p.Detection.PersonID, p.Detection.Confidence)
	if r.openaiClient == nil {
		return template
	}
	resp, err := r.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT3Dot5Turbo,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Write one short sentence describing a security anomaly event for a store manager."},
			{Role: openai.ChatMessageRoleUser, Content: template},
		},
		MaxTokens: 60,
	})
	if err != nil || len(resp.Choices) == 0 {
		return template
	}
	return resp.Choices[0].Message.Content
}
