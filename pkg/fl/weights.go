package fl

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// SingleLayerName is the layer a bare sequence upload is stored under.
const SingleLayerName = "weights"

// Weights maps layer names to tensors.
type Weights map[string]Tensor

// Names returns the layer names in sorted order.
func (w Weights) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func (w Weights) Clone() Weights {
	if w == nil {
		return nil
	}
	out := make(Weights, len(w))
	for name, t := range w {
		out[name] = Tensor{shape: t.Shape(), data: t.Data()}
	}

	return out
}

// Values returns the mapping as plain nested lists.
func (w Weights) Values() map[string]any {
	out := make(map[string]any, len(w))
	for name, t := range w {
		out[name] = t.Value()
	}

	return out
}

func (w *Weights) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedWeights, err)
	}
	parsed, err := weightsFromMap(raw)
	if err != nil {
		return err
	}
	*w = parsed

	return nil
}

func weightsFromMap(raw map[string]any) (Weights, error) {
	out := make(Weights, len(raw))
	for name, v := range raw {
		if name == "" {
			return nil, fmt.Errorf("%w: empty layer name", ErrMalformedWeights)
		}
		t, err := TensorFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %q: %w", ErrMalformedWeights, name, err)
		}
		out[name] = t
	}

	return out, nil
}

type PayloadKind uint8

const (
	NamedLayers PayloadKind = iota + 1
	SingleLayer
)

// Payload is an uploaded weight set: either a mapping of named layers or a
// bare sequence treated as one layer.
type Payload struct {
	kind   PayloadKind
	layers Weights
	layer  Tensor
}

func NewNamedLayers(w Weights) Payload {
	return Payload{kind: NamedLayers, layers: w}
}

func NewSingleLayer(t Tensor) Payload {
	return Payload{kind: SingleLayer, layer: t}
}

func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Weights returns the normalized layer mapping.
func (p Payload) Weights() Weights {
	switch p.kind {
	case SingleLayer:
		return Weights{SingleLayerName: p.layer}
	case NamedLayers:
		if p.layers == nil {
			return Weights{}
		}

		return p.layers
	default:
		return Weights{}
	}
}

// ParsePayload interprets a decoded JSON or CBOR value as a payload.
func ParsePayload(v any) (Payload, error) {
	switch val := v.(type) {
	case map[string]any:
		w, err := weightsFromMap(val)
		if err != nil {
			return Payload{}, err
		}

		return NewNamedLayers(w), nil
	case map[any]any:
		raw := make(map[string]any, len(val))
		for k, item := range val {
			name, ok := k.(string)
			if !ok {
				return Payload{}, fmt.Errorf("%w: layer name of type %T", ErrMalformedWeights, k)
			}
			raw[name] = item
		}
		w, err := weightsFromMap(raw)
		if err != nil {
			return Payload{}, err
		}

		return NewNamedLayers(w), nil
	case []any:
		t, err := TensorFromValue(val)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %w", ErrMalformedWeights, err)
		}

		return NewSingleLayer(t), nil
	default:
		return Payload{}, fmt.Errorf("%w: expected mapping or list, got %T", ErrMalformedWeights, v)
	}
}

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}()

func (p Payload) value() any {
	if p.kind == SingleLayer {
		return p.layer.Value()
	}

	return p.Weights().Values()
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value())
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedWeights, err)
	}
	parsed, err := ParsePayload(v)
	if err != nil {
		return err
	}
	*p = parsed

	return nil
}

func (p Payload) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.value())
}

func (p *Payload) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedWeights, err)
	}
	parsed, err := ParsePayload(v)
	if err != nil {
		return err
	}
	*p = parsed

	return nil
}
