package checkpoint

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/stemsep/stemsep/pkg/model"
)

// stateFromObject interprets the unpickled checkpoint root. Accepted shapes
// are a bare state dict of tensors, a wrapper dict with a "state" entry, and
// a wrapper dict with a "compressed" diffq payload.
func stateFromObject(obj interface{}) (*State, error) {
	entries, err := dictEntries(obj)
	if err != nil {
		return nil, err
	}

	if raw, ok := entries["compressed"]; ok {
		payload, err := byteValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: compressed payload: %v", ErrUnsupportedArchive, err)
		}
		return &State{Compressed: payload}, nil
	}
	if inner, ok := entries["state"]; ok {
		return stateFromObject(inner)
	}

	tensors := make(map[string]*model.Tensor, len(entries))
	for name, raw := range entries {
		t, err := tensorValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedArchive, name, err)
		}
		tensors[name] = t
	}
	return &State{Tensors: tensors}, nil
}

func packageFromObject(obj interface{}) (*Package, error) {
	entries, err := dictEntries(obj)
	if err != nil {
		return nil, err
	}

	rawKlass, ok := entries["klass"]
	if !ok {
		return nil, fmt.Errorf("%w: no klass entry", ErrUnsupportedArchive)
	}
	klass, ok := rawKlass.(string)
	if !ok {
		return nil, fmt.Errorf("%w: klass is %T", ErrUnsupportedArchive, rawKlass)
	}

	kwargs := map[string]interface{}{}
	if rawKwargs, ok := entries["kwargs"]; ok {
		kwargs, err = dictEntries(rawKwargs)
		if err != nil {
			return nil, fmt.Errorf("%w: kwargs: %v", ErrUnsupportedArchive, err)
		}
	}

	rawState, ok := entries["state"]
	if !ok {
		return nil, fmt.Errorf("%w: no state entry", ErrUnsupportedArchive)
	}
	state, err := stateFromObject(rawState)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Klass: klass, Kwargs: kwargs, State: state}
	if rawQuant, ok := entries["quantizer"]; ok && rawQuant != nil {
		qEntries, err := dictEntries(rawQuant)
		if err != nil {
			return nil, fmt.Errorf("%w: quantizer: %v", ErrUnsupportedArchive, err)
		}
		groupSize, err := optionalInt(qEntries["group_size"], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: quantizer group_size: %v", ErrUnsupportedArchive, err)
		}
		minSize, err := optionalInt(qEntries["min_size"], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: quantizer min_size: %v", ErrUnsupportedArchive, err)
		}
		pkg.Quantizer = &QuantizerSpec{GroupSize: groupSize, MinSize: minSize}
	}
	return pkg, nil
}

// dictEntries flattens a pickled dict or ordered dict into a string-keyed
// map.
func dictEntries(obj interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	switch v := obj.(type) {
	case *types.Dict:
		for _, k := range v.Keys() {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %T", ErrUnsupportedArchive, k)
			}
			val, _ := v.Get(k)
			out[key] = val
		}
	case *types.OrderedDict:
		for k, entry := range v.Map {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-string key %T", ErrUnsupportedArchive, k)
			}
			out[key] = entry.Value
		}
	default:
		return nil, fmt.Errorf("%w: expected dict, got %T", ErrUnsupportedArchive, obj)
	}
	return out, nil
}

// tensorValue converts a pickled torch tensor into a model tensor,
// widening half precision storages to float32.
func tensorValue(raw interface{}) (*model.Tensor, error) {
	pt, ok := raw.(*pytorch.Tensor)
	if !ok {
		return nil, fmt.Errorf("expected tensor, got %T", raw)
	}
	t := model.NewTensor(pt.Size...)
	n := t.NumElements()
	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		if len(s.Data) < n {
			return nil, fmt.Errorf("storage holds %d values for %d elements", len(s.Data), n)
		}
		copy(t.Data, s.Data[:n])
	case *pytorch.HalfStorage:
		if len(s.Data) < n {
			return nil, fmt.Errorf("storage holds %d values for %d elements", len(s.Data), n)
		}
		copy(t.Data, s.Data[:n])
	case *pytorch.DoubleStorage:
		if len(s.Data) < n {
			return nil, fmt.Errorf("storage holds %d values for %d elements", len(s.Data), n)
		}
		for i := 0; i < n; i++ {
			t.Data[i] = float32(s.Data[i])
		}
	default:
		return nil, fmt.Errorf("unsupported storage type %T", pt.Source)
	}
	return t, nil
}

func byteValue(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", raw)
	}
}

func stringList(raw interface{}) ([]string, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing")
	}
	list, ok := raw.(*types.List)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", raw)
	}
	out := make([]string, list.Len())
	for i := range out {
		s, ok := list.Get(i).(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T", i, list.Get(i))
		}
		out[i] = s
	}
	return out, nil
}

func optionalInt(raw interface{}, fallback int) (int, error) {
	switch v := raw.(type) {
	case nil:
		return fallback, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", raw)
	}
}
