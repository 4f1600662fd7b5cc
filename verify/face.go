package verify

import (
	"context"
	"fmt"
	"math"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/worker"
)

// EuclideanDistance computes the L2 distance between two descriptors of
// equal length.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// VerifyFace matches a live descriptor against the claimed worker's
// enrolled embedding. Acceptance requires distance strictly below the
// configured threshold.
func (e *Engine) VerifyFace(ctx context.Context, workerID string, descriptor []float64) (*Result, error) {
	if len(descriptor) < e.cfg.MinDescriptorDims {
		return nil, domain.ErrInvalidDescriptor
	}

	w, err := e.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrSubjectNotEnrolled
	}

	if !w.FaceEnabled {
		return nil, e.missingModalityError(ctx, w, false, domain.ErrNoFaceEnrolled)
	}
	emb, err := e.faces.GetEmbedding(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, e.missingModalityError(ctx, w, false, domain.ErrNoFaceEnrolled)
	}

	enrolled, err := emb.Descriptor()
	if err != nil {
		return nil, err
	}
	dist, err := EuclideanDistance(descriptor, enrolled)
	if err != nil {
		return nil, e.reject(ctx, w, domain.ErrInvalidDescriptor)
	}

	if dist >= e.cfg.FaceThreshold {
		return nil, e.reject(ctx, w, domain.ErrFaceMismatch)
	}

	if e.emitter != nil {
		_ = e.emitter.RecordSuccess(ctx, w.ID)
	}
	return &Result{
		WorkerID:   w.ID,
		GroupID:    w.GroupID,
		Modality:   worker.ModalityFace,
		VerifiedAt: e.now(),
		Distance:   dist,
	}, nil
}

// Identify matches a live descriptor against every face-enabled
// embedding and accepts the closest one under the threshold. Deployments
// that require a claimed identity use VerifyFace instead; this mode is
// opt-in at the API layer.
func (e *Engine) Identify(ctx context.Context, descriptor []float64) (*Result, error) {
	if len(descriptor) < e.cfg.MinDescriptorDims {
		return nil, domain.ErrInvalidDescriptor
	}

	embeddings, err := e.faces.ListEnabledEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	bestDist := math.Inf(1)
	var bestWorker string
	for i := range embeddings {
		enrolled, err := embeddings[i].Descriptor()
		if err != nil {
			continue
		}
		dist, err := EuclideanDistance(descriptor, enrolled)
		if err != nil {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			bestWorker = embeddings[i].WorkerID
		}
	}

	if bestWorker == "" || bestDist >= e.cfg.FaceThreshold {
		return nil, domain.ErrFaceMismatch
	}

	w, err := e.workers.GetWorker(ctx, bestWorker)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrSubjectNotEnrolled
	}

	if e.emitter != nil {
		_ = e.emitter.RecordSuccess(ctx, w.ID)
	}
	return &Result{
		WorkerID:   w.ID,
		GroupID:    w.GroupID,
		Modality:   worker.ModalityFace,
		VerifiedAt: e.now(),
		Distance:   bestDist,
	}, nil
}
