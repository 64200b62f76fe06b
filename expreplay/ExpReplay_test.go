package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/timestep"
)

// transition returns a transition whose fields all encode id
func transition(id, features int) timestep.Transition {
	state := make([]float64, features)
	nextState := make([]float64, features)
	for i := range state {
		state[i] = float64(id)
		nextState[i] = float64(id) + 0.5
	}

	return timestep.Transition{
		State:     mat.NewVecDense(features, state),
		Action:    id,
		Reward:    float64(id) * 10,
		NextState: mat.NewVecDense(features, nextState),
		Terminal:  id%2 == 0,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		config Config
		valid  bool
	}{
		{Config{Capacity: 10, MinCapacity: 5, BatchSize: 2}, true},
		{Config{Capacity: 1, MinCapacity: 1, BatchSize: 1}, true},
		{Config{Capacity: 10, MinCapacity: 0, BatchSize: 10}, true},
		{Config{Capacity: 0, MinCapacity: 0, BatchSize: 1}, false},
		{Config{Capacity: 10, MinCapacity: 5, BatchSize: 0}, false},
		{Config{Capacity: 10, MinCapacity: 5, BatchSize: 11}, false},
		{Config{Capacity: 10, MinCapacity: 11, BatchSize: 1}, false},
		{Config{Capacity: 10, MinCapacity: -1, BatchSize: 1}, false},
	}

	for _, test := range tests {
		err := test.config.Validate()
		if test.valid && err != nil {
			t.Errorf("validate(%+v): unexpected error: %v", test.config, err)
		} else if !test.valid && err == nil {
			t.Errorf("validate(%+v): expected error", test.config)
		}
	}
}

func TestFifoEviction(t *testing.T) {
	buffer, err := New(Config{Capacity: 3, BatchSize: 1}, 2, 1)
	if err != nil {
		t.Fatal(err)
	}

	for id := 1; id <= 5; id++ {
		if err := buffer.Add(transition(id, 2)); err != nil {
			t.Fatal(err)
		}
		if buffer.Len() > buffer.MaxCapacity() {
			t.Fatalf("add: buffer exceeded capacity \n\twant(<= %d) "+
				"\n\thave(%d)", buffer.MaxCapacity(), buffer.Len())
		}
	}

	contents := buffer.Contents()
	if len(contents) != 3 {
		t.Fatalf("contents: invalid length \n\twant(3) \n\thave(%d)",
			len(contents))
	}
	for i, tr := range contents {
		want := transition(i+3, 2)
		if tr.Action != want.Action || tr.Reward != want.Reward ||
			tr.Terminal != want.Terminal ||
			!mat.Equal(tr.State, want.State) ||
			!mat.Equal(tr.NextState, want.NextState) {
			t.Errorf("contents[%d]: \n\twant(%v) \n\thave(%v)", i, want, tr)
		}
	}
}

func TestContentsBeforeFull(t *testing.T) {
	buffer, err := New(Config{Capacity: 5, BatchSize: 1}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	for id := 1; id <= 3; id++ {
		buffer.Add(transition(id, 1))
	}
	contents := buffer.Contents()
	if len(contents) != 3 {
		t.Fatalf("contents: invalid length \n\twant(3) \n\thave(%d)",
			len(contents))
	}
	for i, tr := range contents {
		if tr.Action != i+1 {
			t.Errorf("contents[%d]: invalid order \n\twant(%d) \n\thave(%d)",
				i, i+1, tr.Action)
		}
	}
}

func TestAddCopiesData(t *testing.T) {
	buffer, err := New(Config{Capacity: 4, BatchSize: 1}, 2, 1)
	if err != nil {
		t.Fatal(err)
	}

	tr := transition(1, 2)
	buffer.Add(tr)
	tr.State.(*mat.VecDense).SetVec(0, 100)

	if have := buffer.Contents()[0].State.AtVec(0); have != 1 {
		t.Errorf("add: buffer aliases transition data \n\twant(1) "+
			"\n\thave(%v)", have)
	}
}

func TestAddInvalidFeatures(t *testing.T) {
	buffer, err := New(Config{Capacity: 4, BatchSize: 1}, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := buffer.Add(transition(1, 2)); err == nil {
		t.Error("add: expected error on feature size mismatch")
	}
	if buffer.Len() != 0 {
		t.Error("add: invalid transition should not be stored")
	}
}

func TestSampleInsufficient(t *testing.T) {
	buffer, err := New(Config{Capacity: 10, MinCapacity: 2, BatchSize: 4},
		1, 1)
	if err != nil {
		t.Fatal(err)
	}

	_, err = buffer.Sample()
	if !IsEmptyBuffer(err) || !IsInsufficientSamples(err) {
		t.Errorf("sample: expected empty buffer error, have %v", err)
	}

	// MinCapacity is below the batch size, so the batch size governs
	for id := 0; id < 3; id++ {
		buffer.Add(transition(id, 1))
		if _, err := buffer.Sample(); !IsInsufficientSamples(err) {
			t.Fatalf("sample: expected insufficient samples with %d "+
				"transitions, have %v", buffer.Len(), err)
		}
	}

	buffer.Add(transition(3, 1))
	if _, err := buffer.Sample(); err != nil {
		t.Errorf("sample: unexpected error: %v", err)
	}
}

func TestSampleDistinct(t *testing.T) {
	const features = 3
	buffer, err := New(Config{Capacity: 20, BatchSize: 8}, features, 7)
	if err != nil {
		t.Fatal(err)
	}
	for id := 0; id < 50; id++ {
		buffer.Add(transition(id, features))
	}

	for i := 0; i < 100; i++ {
		batch, err := buffer.Sample()
		if err != nil {
			t.Fatal(err)
		}
		if batch.Size() != 8 {
			t.Fatalf("sample: invalid batch size \n\twant(8) \n\thave(%d)",
				batch.Size())
		}
		if len(batch.States) != 8*features ||
			len(batch.NextStates) != 8*features {
			t.Fatal("sample: invalid state batch length")
		}

		seen := make(map[int]bool)
		for j, action := range batch.Actions {
			if seen[action] {
				t.Fatalf("sample: transition %d sampled twice", action)
			}
			seen[action] = true

			// Only the most recent 20 transitions may be sampled
			if action < 30 {
				t.Fatalf("sample: evicted transition %d sampled", action)
			}

			// Each row must belong to the same transition
			want := transition(action, features)
			if batch.Rewards[j] != want.Reward {
				t.Errorf("sample: reward mismatch for transition %d", action)
			}
			if batch.States[j*features] != float64(action) ||
				batch.NextStates[j*features] != float64(action)+0.5 {
				t.Errorf("sample: state mismatch for transition %d", action)
			}
			if (batch.Terminals[j] == 1.0) != want.Terminal {
				t.Errorf("sample: terminal mismatch for transition %d",
					action)
			}
		}
	}
}

func TestSampleDeterministic(t *testing.T) {
	create := func() ExperienceReplayer {
		buffer, err := New(Config{Capacity: 100, BatchSize: 10}, 1, 42)
		if err != nil {
			t.Fatal(err)
		}
		for id := 0; id < 100; id++ {
			buffer.Add(transition(id, 1))
		}
		return buffer
	}

	b1, b2 := create(), create()
	for i := 0; i < 10; i++ {
		s1, _ := b1.Sample()
		s2, _ := b2.Sample()
		for j := range s1.Actions {
			if s1.Actions[j] != s2.Actions[j] {
				t.Fatal("sample: equal seeds should sample equal batches")
			}
		}
	}
}

func TestOnline(t *testing.T) {
	buffer, err := New(Config{Capacity: 1, MinCapacity: 1, BatchSize: 1},
		2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := buffer.(*onlineCache); !ok {
		t.Fatalf("new: expected online cache, have %T", buffer)
	}

	if _, err := buffer.Sample(); !IsEmptyBuffer(err) {
		t.Errorf("sample: expected empty buffer error, have %v", err)
	}

	buffer.Add(transition(1, 2))
	buffer.Add(transition(2, 2))

	batch, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}
	if batch.Actions[0] != 2 || batch.Rewards[0] != 20 ||
		batch.Terminals[0] != 1.0 || batch.States[1] != 2 {
		t.Errorf("sample: expected most recent transition, have %+v", batch)
	}
	if buffer.Len() != 1 || len(buffer.Contents()) != 1 {
		t.Error("online: should hold exactly one transition")
	}
}

func BenchmarkSample(b *testing.B) {
	const features = 256
	buffer, err := New(Config{Capacity: 10000, BatchSize: 64}, features, 1)
	if err != nil {
		b.Fatal(err)
	}
	for id := 0; id < 10000; id++ {
		buffer.Add(transition(id, features))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buffer.Sample()
	}
}
