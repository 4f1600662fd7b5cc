package worker

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"worker", "supervisor", "admin"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q) failed: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "Admin", "root", "superuser"} {
		if _, err := ParseRole(invalid); err == nil {
			t.Errorf("ParseRole(%q) should reject", invalid)
		}
	}
}

func TestJSONValueAndScan(t *testing.T) {
	var j JSON
	v, err := j.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != nil {
		t.Errorf("empty JSON should store NULL, got %v", v)
	}

	if err := j.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("Scan bytes failed: %v", err)
	}
	if string(j) != `{"a":1}` {
		t.Errorf("unexpected scan result %q", j)
	}

	if err := j.Scan("[1,2]"); err != nil {
		t.Fatalf("Scan string failed: %v", err)
	}
	if err := j.Scan(nil); err != nil {
		t.Fatalf("Scan nil failed: %v", err)
	}
	if j != nil {
		t.Error("scanning NULL should clear the value")
	}
	if err := j.Scan(42); err == nil {
		t.Error("scanning an int should fail")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	v := []float64{0.1, -0.2, 0.33}
	encoded, err := EncodeDescriptor(v)
	if err != nil {
		t.Fatalf("EncodeDescriptor failed: %v", err)
	}

	emb := FaceEmbedding{ID: "emb-1", Vector: encoded, Dims: len(v)}
	decoded, err := emb.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if len(decoded) != 3 || decoded[1] != -0.2 {
		t.Errorf("round trip mangled the vector: %v", decoded)
	}

	corrupt := FaceEmbedding{ID: "emb-2", Vector: JSON("not json")}
	if _, err := corrupt.Descriptor(); err == nil {
		t.Error("corrupt vector should fail to decode")
	}
}

func TestTransportHints(t *testing.T) {
	c := Credential{Transports: JSON(`["usb","internal"]`)}
	hints := c.TransportHints()
	if len(hints) != 2 || hints[0] != "usb" {
		t.Errorf("unexpected hints %v", hints)
	}

	if hints := (&Credential{}).TransportHints(); hints != nil {
		t.Errorf("no transports should decode to nil, got %v", hints)
	}
	if hints := (&Credential{Transports: JSON("garbage")}).TransportHints(); hints != nil {
		t.Errorf("undecodable transports should yield nil, got %v", hints)
	}
}

func TestAlertResolved(t *testing.T) {
	a := Alert{}
	if a.Resolved() {
		t.Error("a fresh alert is not resolved")
	}
	now := time.Now()
	a.ResolvedAt = &now
	if !a.Resolved() {
		t.Error("an alert with a resolution time is resolved")
	}
}
