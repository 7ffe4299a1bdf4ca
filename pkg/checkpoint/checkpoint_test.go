package checkpoint

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/quant"
)

type stubModel struct {
	params map[string]*model.Tensor
}

func (s *stubModel) Sources() []string                  { return []string{"vocals", "other"} }
func (s *stubModel) Parameters() map[string]*model.Tensor { return s.params }
func (s *stubModel) Eval()                              {}
func (s *stubModel) Training() bool                     { return false }

func newStubModel() *stubModel {
	w := model.NewTensor(2, 2)
	b := model.NewTensor(2)
	for i := range w.Data {
		w.Data[i] = -1
	}
	for i := range b.Data {
		b.Data[i] = -1
	}
	return &stubModel{params: map[string]*model.Tensor{"w": w, "b": b}}
}

func filled(value float32, shape ...int) *model.Tensor {
	t := model.NewTensor(shape...)
	for i := range t.Data {
		t.Data[i] = value
	}
	return t
}

func TestApply(t *testing.T) {
	m := newStubModel()
	st := &State{Tensors: map[string]*model.Tensor{
		"w": filled(3, 2, 2),
		"b": filled(7, 2),
	}}

	require.NoError(t, Apply(m, st, nil))
	assert.Equal(t, []float32{3, 3, 3, 3}, m.params["w"].Data)
	assert.Equal(t, []float32{7, 7}, m.params["b"].Data)
}

func TestApplyAllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		tensors map[string]*model.Tensor
	}{
		{
			"missing parameter",
			map[string]*model.Tensor{"w": filled(3, 2, 2)},
		},
		{
			"shape mismatch",
			map[string]*model.Tensor{"w": filled(3, 2, 2), "b": filled(7, 3)},
		},
		{
			"unexpected parameter",
			map[string]*model.Tensor{
				"w": filled(3, 2, 2), "b": filled(7, 2), "extra": filled(1, 1),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStubModel()
			err := Apply(m, &State{Tensors: tt.tensors}, nil)
			require.ErrorIs(t, err, ErrStateMismatch)
			assert.Equal(t, []float32{-1, -1, -1, -1}, m.params["w"].Data)
			assert.Equal(t, []float32{-1, -1}, m.params["b"].Data)
		})
	}
}

func TestApplyCompressedWithoutQuantizer(t *testing.T) {
	m := newStubModel()
	err := Apply(m, &State{Compressed: []byte("DIFQ")}, nil)
	require.ErrorIs(t, err, ErrQuantizedState)
	assert.Equal(t, []float32{-1, -1, -1, -1}, m.params["w"].Data)
}

func TestApplyCompressed(t *testing.T) {
	var payload bytes.Buffer
	payload.WriteString("DIFQ")
	binary.Write(&payload, binary.LittleEndian, uint32(2))
	for _, entry := range []struct {
		name   string
		shape  []int64
		values []float32
	}{
		{"w", []int64{2, 2}, []float32{1, 2, 3, 4}},
		{"b", []int64{2}, []float32{5, 6}},
	} {
		binary.Write(&payload, binary.LittleEndian, uint16(len(entry.name)))
		payload.WriteString(entry.name)
		payload.WriteByte(0) // raw float32
		payload.WriteByte(byte(len(entry.shape)))
		binary.Write(&payload, binary.LittleEndian, entry.shape)
		binary.Write(&payload, binary.LittleEndian, entry.values)
	}

	m := newStubModel()
	q := quant.NewDiffQuantizer(m, quant.DefaultGroupSize, quant.DefaultMinSize)
	require.NoError(t, Apply(m, &State{Compressed: payload.Bytes()}, q))
	assert.Equal(t, []float32{1, 2, 3, 4}, m.params["w"].Data)
	assert.Equal(t, []float32{5, 6}, m.params["b"].Data)
}

func floatTensor(values []float32, shape ...int) *pytorch.Tensor {
	return &pytorch.Tensor{
		Size:   shape,
		Source: &pytorch.FloatStorage{Data: values},
	}
}

func TestStateFromObject(t *testing.T) {
	t.Run("bare state dict", func(t *testing.T) {
		d := types.NewDict()
		d.Set("w", floatTensor([]float32{1, 2}, 2))

		st, err := stateFromObject(d)
		require.NoError(t, err)
		require.Contains(t, st.Tensors, "w")
		assert.Equal(t, []float32{1, 2}, st.Tensors["w"].Data)
		assert.Empty(t, st.Compressed)
	})

	t.Run("wrapped state", func(t *testing.T) {
		inner := types.NewOrderedDict()
		inner.Set("b", floatTensor([]float32{3}, 1))
		outer := types.NewDict()
		outer.Set("state", inner)

		st, err := stateFromObject(outer)
		require.NoError(t, err)
		require.Contains(t, st.Tensors, "b")
		assert.Equal(t, []float32{3}, st.Tensors["b"].Data)
	})

	t.Run("compressed payload", func(t *testing.T) {
		d := types.NewDict()
		d.Set("compressed", []byte{0xde, 0xad})

		st, err := stateFromObject(d)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad}, st.Compressed)
		assert.Nil(t, st.Tensors)
	})

	t.Run("double storage widens", func(t *testing.T) {
		d := types.NewDict()
		d.Set("w", &pytorch.Tensor{
			Size:   []int{2},
			Source: &pytorch.DoubleStorage{Data: []float64{1.5, 2.5}},
		})

		st, err := stateFromObject(d)
		require.NoError(t, err)
		assert.Equal(t, []float32{1.5, 2.5}, st.Tensors["w"].Data)
	})

	t.Run("not a dict", func(t *testing.T) {
		_, err := stateFromObject("weights")
		assert.ErrorIs(t, err, ErrUnsupportedArchive)
	})
}

func TestPackageFromObject(t *testing.T) {
	kwargs := types.NewDict()
	kwargs.Set("sources", types.NewListFromSlice([]interface{}{"drums", "bass", "other", "vocals"}))
	kwargs.Set("channels", 32)

	state := types.NewOrderedDict()
	state.Set("w", floatTensor([]float32{1}, 1))

	quantizer := types.NewDict()
	quantizer.Set("group_size", 8)
	quantizer.Set("min_size", 1)

	root := types.NewDict()
	root.Set("klass", "Demucs")
	root.Set("kwargs", kwargs)
	root.Set("state", state)
	root.Set("quantizer", quantizer)

	pkg, err := packageFromObject(root)
	require.NoError(t, err)
	assert.Equal(t, "Demucs", pkg.Klass)
	require.NotNil(t, pkg.Quantizer)
	assert.Equal(t, 8, pkg.Quantizer.GroupSize)
	assert.Equal(t, 1, pkg.Quantizer.MinSize)
	require.Contains(t, pkg.State.Tensors, "w")

	m, err := pkg.Instantiate()
	require.NoError(t, err)
	demucs, ok := m.(*model.Demucs)
	require.True(t, ok)
	assert.Equal(t, 32, demucs.Channels())
	assert.Equal(t, []string{"drums", "bass", "other", "vocals"}, demucs.Sources())
}

func TestInstantiateUnknownArchitecture(t *testing.T) {
	pkg := &Package{
		Klass: "Transformer",
		Kwargs: map[string]interface{}{
			"sources": types.NewListFromSlice([]interface{}{"vocals"}),
		},
	}
	_, err := pkg.Instantiate()
	assert.ErrorIs(t, err, ErrUnsupportedArchive)
}
