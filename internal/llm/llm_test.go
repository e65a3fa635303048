package llm

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}

func TestNormalize_ProducesUnitVector(t *testing.T) {
	v := normalize([]float32{3, 4})
	got := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected unit-length vector, got length %v", got)
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := normalize([]float32{0, 0, 0})
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected zero vector to pass through unchanged, got %v", v)
		}
	}
}

func TestExtractText_NoCandidatesReturnsFalse(t *testing.T) {
	if _, ok := extractText(nil); ok {
		t.Error("expected extractText(nil) to report false")
	}
}

func TestErrors_AreDistinct(t *testing.T) {
	if errors.Is(ErrLLMTransport, ErrLLMSchema) {
		t.Error("expected ErrLLMTransport and ErrLLMSchema to be distinct sentinels")
	}
}
