package engine

import (
	"fmt"
	"strings"

	"github.com/tetherdev/tether/pkg/domain"
)

// observation is one decoded per-entity reading from an inbound frame.
type observation struct {
	ordinal int
	bit     bool   // bit-stream lane value
	value   string // textual/command decoded value
}

// decodeFrame translates an inbound frame into per-ordinal observations
// according to the binding's encoding and channel arity.
//
// For bit-stream bindings the first lane of each element's channel group
// carries the boolean reading; extra lanes of the group are reserved for
// the binding's semantic channels and do not produce observations.
func decodeFrame(cfg domain.BindingConfig, f domain.Frame) ([]observation, error) {
	if f.Encoding != cfg.Encoding {
		return nil, fmt.Errorf("%w: got %s frame on %s binding %q", domain.ErrDecode, f.Encoding, cfg.Encoding, cfg.ID)
	}
	arity := cfg.Arity()

	switch cfg.Encoding {
	case domain.EncodingBits:
		if f.Offset < 0 {
			return nil, fmt.Errorf("%w: negative lane offset %d", domain.ErrDecode, f.Offset)
		}
		var obs []observation
		for i, v := range f.Bits {
			lane := f.Offset + i
			if lane%arity != 0 {
				continue
			}
			obs = append(obs, observation{ordinal: lane / arity, bit: v})
		}
		return obs, nil

	case domain.EncodingText:
		if f.Offset < 0 {
			return nil, fmt.Errorf("%w: negative channel offset %d", domain.ErrDecode, f.Offset)
		}
		return []observation{{ordinal: f.Offset / arity, value: f.Text}}, nil

	case domain.EncodingCommand:
		if f.Command == "" {
			return nil, fmt.Errorf("%w: command frame without a command", domain.ErrDecode)
		}
		value := f.Command
		if len(f.Args) > 0 {
			value += " " + strings.Join(f.Args, " ")
		}
		return []observation{{ordinal: f.Offset / arity, value: value}}, nil
	}

	return nil, fmt.Errorf("%w: unsupported encoding %q", domain.ErrDecode, cfg.Encoding)
}

// encodeMutation translates an entity mutation into an outbound frame
// for the entity at the given ordinal. The second return is the cache
// payload used for write suppression. ok=false means the mutation is not
// translated by this binding (wrong property, or a style mutation on a
// bit-stream binding).
func encodeMutation(cfg domain.BindingConfig, ordinal int, m domain.Mutation) (f domain.Frame, payload string, ok bool) {
	// A semantic channel label narrows the binding to one property.
	if cfg.ChannelLabel != "" && m.Name != cfg.ChannelLabel {
		return domain.Frame{}, "", false
	}
	offset := ordinal * cfg.Arity()

	switch cfg.Encoding {
	case domain.EncodingBits:
		// Bit lanes carry attribute presence, never style values.
		if m.Op == domain.MutationStyleSet {
			return domain.Frame{}, "", false
		}
		present := m.Op != domain.MutationAttrRemove
		payload := "0"
		if present {
			payload = "1"
		}
		return domain.BitFrame(offset, present), payload, true

	case domain.EncodingText:
		return domain.TextFrame(offset, m.New), m.New, true

	case domain.EncodingCommand:
		return domain.CommandFrame(offset, m.Name, m.New), m.New, true
	}

	return domain.Frame{}, "", false
}

// cacheKey identifies one lane of the outbound write cache.
func cacheKey(ordinal int, property string) string {
	return fmt.Sprintf("%d/%s", ordinal, property)
}
