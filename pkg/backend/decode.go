package backend

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/wldstore/storefront/pkg/payment"
)

// decodeData unmarshals either {"data": v} or a bare v
func decodeData(body []byte, v any) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("decode response: invalid json")
	}

	raw := body
	if doc := gjson.ParseBytes(body); doc.IsObject() {
		if data := doc.Get("data"); data.Exists() {
			raw = []byte(data.Raw)
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Order response shapes
const (
	orderWrapped = "wrapped"
	orderDirect  = "direct"
)

// orderEnvelope is the order endpoint's response once its shape is known
type orderEnvelope struct {
	Kind  string
	Order payment.Order
}

// decodeOrder resolves the order response union. Tagged responses carry
// "kind"; untagged ones are recognised by their "data" or "order" member.
func decodeOrder(body []byte) (orderEnvelope, error) {
	if !gjson.ValidBytes(body) {
		return orderEnvelope{}, fmt.Errorf("decode order: invalid json")
	}

	doc := gjson.ParseBytes(body)
	kind := doc.Get("kind").String()
	if kind == "" {
		switch {
		case doc.Get("data").IsObject():
			kind = orderWrapped
		case doc.Get("order").IsObject():
			kind = orderDirect
		}
	}

	var member gjson.Result
	switch kind {
	case orderWrapped:
		member = doc.Get("data")
	case orderDirect:
		member = doc.Get("order")
	default:
		return orderEnvelope{}, fmt.Errorf("decode order: unrecognised response shape")
	}
	if !member.IsObject() {
		return orderEnvelope{}, fmt.Errorf("decode order: %s response without an order", kind)
	}

	env := orderEnvelope{Kind: kind}
	if err := json.Unmarshal([]byte(member.Raw), &env.Order); err != nil {
		return orderEnvelope{}, fmt.Errorf("decode order: %w", err)
	}
	return env, nil
}

// decodeValidation turns {"errors": {"field": "message" | ["message", ...]}}
// into a *payment.ValidationError. It returns nil when body has no errors
// object.
func decodeValidation(body []byte) *payment.ValidationError {
	errs := gjson.GetBytes(body, "errors")
	if !errs.IsObject() {
		return nil
	}

	fields := make(map[string]string)
	errs.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsArray():
			if first := value.Get("0"); first.Exists() {
				fields[key.String()] = first.String()
			}
		default:
			fields[key.String()] = value.String()
		}
		return true
	})

	if len(fields) == 0 {
		return nil
	}
	return &payment.ValidationError{Fields: fields}
}
