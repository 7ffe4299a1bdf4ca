package model

import (
	"errors"
	"testing"
)

var testSources = []string{"drums", "bass", "other", "vocals"}

func TestNewDemucsDeterministic(t *testing.T) {
	a := NewDemucs(DemucsConfig{Sources: testSources})
	b := NewDemucs(DemucsConfig{Sources: testSources})

	pa, pb := a.Parameters(), b.Parameters()
	if len(pa) != len(pb) {
		t.Fatalf("parameter counts differ: %d vs %d", len(pa), len(pb))
	}
	for name, ta := range pa {
		tb, ok := pb[name]
		if !ok {
			t.Fatalf("second construction is missing %q", name)
		}
		if !ta.SameShape(tb) {
			t.Errorf("%q has shape %v vs %v", name, ta.Shape, tb.Shape)
		}
	}
}

func TestDemucsChannelsAffectShapes(t *testing.T) {
	small := NewDemucs(DemucsConfig{Sources: testSources, Channels: 4})
	big := NewDemucs(DemucsConfig{Sources: testSources})

	if small.Channels() != 4 {
		t.Errorf("Channels() = %d, want 4", small.Channels())
	}
	if big.Channels() != DefaultDemucsChannels {
		t.Errorf("Channels() = %d, want %d", big.Channels(), DefaultDemucsChannels)
	}
	sw := small.Parameters()["encoder.0.conv.weight"]
	bw := big.Parameters()["encoder.0.conv.weight"]
	if sw.SameShape(bw) {
		t.Error("expected different first-layer shapes for different channel counts")
	}
}

func TestEvalMode(t *testing.T) {
	for _, m := range []Model{
		NewDemucs(DemucsConfig{Sources: testSources}),
		NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
		NewConvTasNet(ConvTasNetConfig{Sources: testSources, X: 10}),
	} {
		if !m.Training() {
			t.Errorf("%T should start in training mode", m)
		}
		m.Eval()
		if m.Training() {
			t.Errorf("%T still in training mode after Eval", m)
		}
	}
}

func TestBagOfModels(t *testing.T) {
	members := []Model{
		NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
		NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
	}

	t.Run("uniform default weights", func(t *testing.T) {
		bag, err := NewBagOfModels(members, nil, 44)
		if err != nil {
			t.Fatalf("NewBagOfModels failed: %v", err)
		}
		if got := bag.Segment(); got != 44 {
			t.Errorf("Segment() = %v, want 44", got)
		}
		weights := bag.Weights()
		if len(weights) != len(members) {
			t.Fatalf("expected %d weight rows, got %d", len(members), len(weights))
		}
		for _, row := range weights {
			for _, w := range row {
				if w != 1 {
					t.Errorf("default weight = %v, want 1", w)
				}
			}
		}
	})

	t.Run("parameters are prefixed by member index", func(t *testing.T) {
		bag, err := NewBagOfModels(members, nil, 0)
		if err != nil {
			t.Fatalf("NewBagOfModels failed: %v", err)
		}
		params := bag.Parameters()
		if len(params) != 2*len(members[0].Parameters()) {
			t.Errorf("expected union of member parameters, got %d entries", len(params))
		}
		if _, ok := params["models.1.bottleneck.weight"]; !ok {
			t.Error("expected models.1. prefixed parameters")
		}
	})

	t.Run("eval broadcasts to members", func(t *testing.T) {
		fresh := []Model{
			NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
			NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
		}
		bag, err := NewBagOfModels(fresh, nil, 0)
		if err != nil {
			t.Fatalf("NewBagOfModels failed: %v", err)
		}
		bag.Eval()
		if bag.Training() {
			t.Error("bag still training after Eval")
		}
		for _, m := range fresh {
			if m.Training() {
				t.Error("member still training after bag Eval")
			}
		}
	})

	t.Run("empty bag rejected", func(t *testing.T) {
		if _, err := NewBagOfModels(nil, nil, 0); !errors.Is(err, ErrEmptyBag) {
			t.Errorf("expected ErrEmptyBag, got %v", err)
		}
	})

	t.Run("mismatched sources rejected", func(t *testing.T) {
		odd := []Model{
			NewHDemucs(HDemucsConfig{Sources: testSources, Channels: 4}),
			NewHDemucs(HDemucsConfig{Sources: []string{"vocals", "rest"}, Channels: 4}),
		}
		if _, err := NewBagOfModels(odd, nil, 0); !errors.Is(err, ErrMismatchedSources) {
			t.Errorf("expected ErrMismatchedSources, got %v", err)
		}
	})

	t.Run("wrong weight dimensions rejected", func(t *testing.T) {
		if _, err := NewBagOfModels(members, [][]float64{{1, 1, 1, 1}}, 0); err == nil {
			t.Error("expected error for missing weight row")
		}
		if _, err := NewBagOfModels(members, [][]float64{{1}, {1}}, 0); err == nil {
			t.Error("expected error for short weight row")
		}
	})
}
