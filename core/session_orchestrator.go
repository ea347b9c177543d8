package core

// session_orchestrator.go drives one session through the chunk → encrypt →
// Merkle → anchor pipeline and persists a pipeline-state record after every
// stage transition (spec §4.4, C4). Grounded on the teacher's
// core/blockchain_synchronization.go SyncManager loop shape (ctx-cancellable
// phases, state struct persisted between phases) generalized from a single
// sync loop to a five-stage session pipeline.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stage is the pipeline stage of one session run (spec §4.4).
type Stage string

const (
	StageInitialized    Stage = "INITIALIZED"
	StageChunking       Stage = "CHUNKING"
	StageEncrypting     Stage = "ENCRYPTING"
	StageMerkleBuilding Stage = "MERKLE_BUILDING"
	StageAnchoring      Stage = "ANCHORING"
	StageCompleted      Stage = "COMPLETED"
	StageFailed         Stage = "FAILED"
)

// SessionStatus is the externally visible lifecycle status tracked
// alongside Stage (SPEC_FULL §4.1, recovered from the original session API's
// create/start/pause/stop verbs — distinct from the internal pipeline
// Stage machine).
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionStopped   SessionStatus = "stopped"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// DeviceFingerprint and CodecInfo are opaque, caller-supplied blobs carried
// unchanged into the persisted manifest; no component inspects them
// (SPEC_FULL §4.2).
type DeviceFingerprint json.RawMessage
type CodecInfo json.RawMessage

// SessionManifest is the per-session record assembled by the orchestrator
// at the ANCHORING stage (spec §3, §4.4).
type SessionManifest struct {
	SessionID         string            `json:"sessionId" bson:"sessionId"`
	OwnerAddress      Address           `json:"ownerAddress" bson:"ownerAddress"`
	StartedAt         time.Time         `json:"startedAt" bson:"startedAt"`
	EndedAt           *time.Time        `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	ManifestHash      Hash              `json:"manifestHash" bson:"manifestHash"`
	MerkleRoot        Hash              `json:"merkleRoot" bson:"merkleRoot"`
	ChunkCount        int               `json:"chunkCount" bson:"chunkCount"`
	Chunks            []ChunkMetadata   `json:"chunks" bson:"chunks"`
	CodecInfo         CodecInfo         `json:"codecInfo,omitempty" bson:"codecInfo,omitempty"`
	DeviceFingerprint DeviceFingerprint `json:"deviceFingerprint,omitempty" bson:"deviceFingerprint,omitempty"`
}

// SessionRecord tracks the externally visible session lifecycle, kept
// distinct from the pipeline's internal PipelineState (SPEC_FULL §4.1).
type SessionRecord struct {
	SessionID string        `json:"sessionId" bson:"sessionId"`
	Owner     Address       `json:"owner" bson:"owner"`
	Status    SessionStatus `json:"status" bson:"status"`
	Project   string        `json:"project,omitempty" bson:"project,omitempty"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
}

// PipelineState is persisted after every stage transition (spec §4.4,
// "at-least-once").
type PipelineState struct {
	SessionID string    `json:"sessionId" bson:"sessionId"`
	Stage     Stage     `json:"stage" bson:"stage"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
}

// PipelineStatePersister is the narrow storage seam the orchestrator writes
// through, decoupling core from the concrete store package (mirrors the
// teacher's txPool/networkAdapter wire-up-interface convention in
// core/consensus.go).
type PipelineStatePersister interface {
	SavePipelineState(state PipelineState) error
}

// AnchorSubmitter is the narrow seam into the Anchor Service (C9); the
// orchestrator does not wait for confirmation (spec §4.4).
type AnchorSubmitter interface {
	SubmitAnchor(manifest *SessionManifest) (anchoringID string, status string, err error)
}

// SessionOrchestrator drives sessions through the C1→C2→C3 pipeline and
// triggers anchoring (spec §4.4).
type SessionOrchestrator struct {
	chunker   *Chunker
	encryptor *Encryptor
	merkle    *MerkleBuilder
	anchor    AnchorSubmitter
	persister PipelineStatePersister
	logger    *logrus.Logger
}

// NewSessionOrchestrator wires the pipeline components together.
func NewSessionOrchestrator(chunker *Chunker, encryptor *Encryptor, merkle *MerkleBuilder, anchor AnchorSubmitter, persister PipelineStatePersister, logger *logrus.Logger) *SessionOrchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &SessionOrchestrator{
		chunker:   chunker,
		encryptor: encryptor,
		merkle:    merkle,
		anchor:    anchor,
		persister: persister,
		logger:    logger,
	}
}

func (o *SessionOrchestrator) persist(sessionID string, stage Stage, cause error) {
	state := PipelineState{SessionID: sessionID, Stage: stage, UpdatedAt: time.Now().UTC()}
	if cause != nil {
		state.Error = cause.Error()
	}
	if o.persister == nil {
		return
	}
	if err := o.persister.SavePipelineState(state); err != nil {
		o.logger.WithFields(logrus.Fields{"sessionId": sessionID, "stage": stage}).Warnf("persist pipeline state: %v", err)
	}
}

func (o *SessionOrchestrator) checkCanceled(ctx context.Context, sessionID string) error {
	select {
	case <-ctx.Done():
		err := pipelineCanceledErrorf("session %s canceled at stage boundary: %v", sessionID, ctx.Err())
		o.persist(sessionID, StageFailed, err)
		return err
	default:
		return nil
	}
}

// RunSession drives one session end-to-end through every pipeline stage
// (spec §4.4). owner is the session's on-chain owner address. r supplies
// the raw byte stream; targetChunkSize is clamped by the chunker.
func (o *SessionOrchestrator) RunSession(ctx context.Context, sessionID string, owner Address, r io.Reader, targetChunkSize int64, fingerprint DeviceFingerprint, codec CodecInfo) (*SessionManifest, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	startedAt := time.Now().UTC()

	o.persist(sessionID, StageInitialized, nil)

	if err := o.checkCanceled(ctx, sessionID); err != nil {
		return nil, err
	}

	o.persist(sessionID, StageChunking, nil)
	var chunks []ChunkMetadata
	err := o.chunker.ChunkStream(sessionID, r, targetChunkSize, func(m ChunkMetadata) error {
		chunks = append(chunks, m)
		return nil
	})
	if err != nil {
		o.persist(sessionID, StageFailed, err)
		return nil, fmt.Errorf("session %s: chunking: %w", sessionID, err)
	}

	if err := o.checkCanceled(ctx, sessionID); err != nil {
		return nil, err
	}

	o.persist(sessionID, StageEncrypting, nil)
	encryptedBytes := make([][]byte, len(chunks))
	for i := range chunks {
		plain, err := o.chunker.ReadChunk(chunks[i])
		if err != nil {
			o.persist(sessionID, StageFailed, err)
			return nil, fmt.Errorf("session %s: reading chunk %d: %w", sessionID, i, err)
		}
		ref, err := o.encryptor.EncryptChunk(plain, chunks[i].SequenceIndex, sessionID, "")
		if err != nil {
			o.persist(sessionID, StageFailed, err)
			return nil, fmt.Errorf("session %s: encrypting chunk %d: %w", sessionID, i, err)
		}
		cipherBytes, err := encryptedFileBytes(ref.FilePath)
		if err != nil {
			o.persist(sessionID, StageFailed, err)
			return nil, fmt.Errorf("session %s: reading encrypted chunk %d: %w", sessionID, i, err)
		}
		hash := blake3Sum(cipherBytes)
		chunks[i].EncryptedHash = &hash
		chunks[i].EncryptedSize = int64(len(cipherBytes))
		encryptedBytes[i] = cipherBytes
	}

	if err := o.checkCanceled(ctx, sessionID); err != nil {
		return nil, err
	}

	o.persist(sessionID, StageMerkleBuilding, nil)
	root, err := o.merkle.BuildTree(sessionID, encryptedBytes)
	if err != nil {
		o.persist(sessionID, StageFailed, err)
		return nil, fmt.Errorf("session %s: merkle build: %w", sessionID, err)
	}

	if err := o.checkCanceled(ctx, sessionID); err != nil {
		return nil, err
	}

	o.persist(sessionID, StageAnchoring, nil)
	manifest := &SessionManifest{
		SessionID:         sessionID,
		OwnerAddress:      owner,
		StartedAt:         startedAt,
		MerkleRoot:        root.RootHash,
		ChunkCount:        len(chunks),
		Chunks:            chunks,
		CodecInfo:         codec,
		DeviceFingerprint: fingerprint,
	}
	manifest.ManifestHash = hashManifest(manifest)

	if o.anchor != nil {
		if _, _, err := o.anchor.SubmitAnchor(manifest); err != nil {
			o.persist(sessionID, StageFailed, err)
			return nil, fmt.Errorf("session %s: anchor submission: %w", sessionID, err)
		}
	}

	o.persist(sessionID, StageCompleted, nil)
	return manifest, nil
}

func encryptedFileBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// hashManifest computes a BLAKE3 digest over the manifest's stable fields,
// used as SessionManifest.ManifestHash (spec §3).
func hashManifest(m *SessionManifest) Hash {
	buf, _ := json.Marshal(struct {
		SessionID    string    `json:"sessionId"`
		OwnerAddress string    `json:"ownerAddress"`
		StartedAt    time.Time `json:"startedAt"`
		MerkleRoot   string    `json:"merkleRoot"`
		ChunkCount   int       `json:"chunkCount"`
	}{
		SessionID:    m.SessionID,
		OwnerAddress: m.OwnerAddress.Hex(),
		StartedAt:    m.StartedAt,
		MerkleRoot:   m.MerkleRoot.Hex(),
		ChunkCount:   m.ChunkCount,
	})
	return blake3Sum(buf)
}
