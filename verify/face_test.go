package verify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fieldpass/fieldpass/domain"
	"github.com/fieldpass/fieldpass/worker"
)

func descriptor(dims int, base, step float64) []float64 {
	v := make([]float64, dims)
	for i := range v {
		v[i] = base + float64(i)*step
	}
	return v
}

func nudged(v []float64, delta float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	out[0] += delta
	return out
}

func withFace(stores *fakeStores, t *testing.T, workerID string, v []float64) {
	t.Helper()
	vec, err := worker.EncodeDescriptor(v)
	if err != nil {
		t.Fatalf("failed to encode descriptor: %v", err)
	}
	stores.embeddings[workerID] = &worker.FaceEmbedding{
		ID:       "emb-" + workerID,
		WorkerID: workerID,
		Vector:   vec,
		Dims:     len(v),
	}
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float64{0, 3}, []float64{4, 0})
	if err != nil {
		t.Fatalf("EuclideanDistance failed: %v", err)
	}
	if math.Abs(d-5) > 1e-9 {
		t.Errorf("expected distance 5, got %f", d)
	}

	if _, err := EuclideanDistance([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected an error for mismatched lengths")
	}
}

func TestVerifyFaceMatch(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", GroupID: "g-1", FaceEnabled: true}
	enrolled := descriptor(128, 0.1, 0.001)
	withFace(stores, t, "w-1", enrolled)
	engine, _ := newTestEngine(t, stores)

	res, err := engine.VerifyFace(context.Background(), "w-1", nudged(enrolled, 0.2))
	if err != nil {
		t.Fatalf("VerifyFace failed: %v", err)
	}
	if res.Modality != worker.ModalityFace {
		t.Errorf("expected face modality, got %s", res.Modality)
	}
	if res.Distance >= 0.6 {
		t.Errorf("accepted distance must be below threshold, got %f", res.Distance)
	}
	if res.WorkerID != "w-1" || res.GroupID != "g-1" {
		t.Errorf("result misattributed: %+v", res)
	}
}

func TestVerifyFaceMismatch(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: true}
	withFace(stores, t, "w-1", descriptor(128, 0.1, 0.001))
	engine, _ := newTestEngine(t, stores)

	// A far-away descriptor lands well above the 0.6 threshold.
	_, err := engine.VerifyFace(context.Background(), "w-1", descriptor(128, 5, 0))
	if !errors.Is(err, domain.ErrFaceMismatch) {
		t.Errorf("expected ErrFaceMismatch, got %v", err)
	}
}

func TestVerifyFaceNearThresholdRejects(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: true}
	enrolled := descriptor(128, 0.1, 0.001)
	withFace(stores, t, "w-1", enrolled)
	engine, _ := newTestEngine(t, stores)

	// Acceptance is strictly below the threshold, so a distance just
	// past 0.6 is a reject even though it is close.
	_, err := engine.VerifyFace(context.Background(), "w-1", nudged(enrolled, 0.61))
	if !errors.Is(err, domain.ErrFaceMismatch) {
		t.Errorf("expected reject just above the threshold, got %v", err)
	}
}

func TestVerifyFaceShortDescriptor(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: true}
	engine, _ := newTestEngine(t, stores)

	_, err := engine.VerifyFace(context.Background(), "w-1", descriptor(8, 0.1, 0))
	if !errors.Is(err, domain.ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor for 8 dims, got %v", err)
	}
}

func TestVerifyFaceNotEnrolled(t *testing.T) {
	stores := newFakeStores()
	// Fingerprint-enrolled worker without a face embedding.
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FingerprintEnabled: true}
	stores.creds["cred-1"] = &worker.Credential{WorkerID: "w-1", CredentialID: []byte("cred-1")}
	engine, _ := newTestEngine(t, stores)

	_, err := engine.VerifyFace(context.Background(), "w-1", descriptor(128, 0.1, 0))
	if !errors.Is(err, domain.ErrNoFaceEnrolled) {
		t.Errorf("expected ErrNoFaceEnrolled, got %v", err)
	}

	// A worker with no enrollment data at all is a different reason.
	stores.workers["w-2"] = &worker.Worker{ID: "w-2"}
	_, err = engine.VerifyFace(context.Background(), "w-2", descriptor(128, 0.1, 0))
	if !errors.Is(err, domain.ErrSubjectNotEnrolled) {
		t.Errorf("expected ErrSubjectNotEnrolled, got %v", err)
	}
}

func TestIdentifyPicksClosestMatch(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: true}
	stores.workers["w-2"] = &worker.Worker{ID: "w-2", FaceEnabled: true}
	near := descriptor(128, 0.1, 0.001)
	withFace(stores, t, "w-1", near)
	withFace(stores, t, "w-2", descriptor(128, 0.9, 0.001))
	engine, _ := newTestEngine(t, stores)

	res, err := engine.Identify(context.Background(), nudged(near, 0.1))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if res.WorkerID != "w-1" {
		t.Errorf("expected closest worker w-1, got %s", res.WorkerID)
	}
}

func TestIdentifyNoMatch(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: true}
	withFace(stores, t, "w-1", descriptor(128, 0.1, 0.001))
	engine, _ := newTestEngine(t, stores)

	_, err := engine.Identify(context.Background(), descriptor(128, 7, 0))
	if !errors.Is(err, domain.ErrFaceMismatch) {
		t.Errorf("expected ErrFaceMismatch with no candidate in range, got %v", err)
	}
}

func TestIdentifySkipsDisabledWorkers(t *testing.T) {
	stores := newFakeStores()
	stores.workers["w-1"] = &worker.Worker{ID: "w-1", FaceEnabled: false}
	enrolled := descriptor(128, 0.1, 0.001)
	withFace(stores, t, "w-1", enrolled)
	engine, _ := newTestEngine(t, stores)

	_, err := engine.Identify(context.Background(), enrolled)
	if !errors.Is(err, domain.ErrFaceMismatch) {
		t.Errorf("disabled embedding must not match, got %v", err)
	}
}
