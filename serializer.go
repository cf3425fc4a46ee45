package stateformat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const propertiesFormatVersion1 = 1

// Serializer converts Properties to and from the string stored in the cache.
// Implementations must round-trip every value they accept.
type Serializer interface {
	Serialize(props *Properties) (string, error)
	Deserialize(data string) (*Properties, error)
}

// JSONSerializer writes a versioned JSON envelope. Times are normalized to UTC.
type JSONSerializer struct{}

type propertiesEnvelope struct {
	Version    int            `json:"v"`
	Properties propertiesJSON `json:"p"`
}

type propertiesJSON struct {
	Items        map[string]string `json:"items,omitempty"`
	Parameters   map[string]string `json:"params,omitempty"`
	IssuedAt     *time.Time        `json:"iat,omitempty"`
	ExpiresAt    *time.Time        `json:"exp,omitempty"`
	IsPersistent bool              `json:"persistent,omitempty"`
	AllowRefresh *bool             `json:"refresh,omitempty"`
}

func (JSONSerializer) Serialize(props *Properties) (string, error) {
	if props == nil {
		return "", errors.New("nil properties")
	}
	if err := checkUTF8("item", props.Items); err != nil {
		return "", err
	}
	if err := checkUTF8("parameter", props.Parameters); err != nil {
		return "", err
	}
	env := propertiesEnvelope{
		Version: propertiesFormatVersion1,
		Properties: propertiesJSON{
			Items:        props.Items,
			Parameters:   props.Parameters,
			IssuedAt:     utcPtr(props.IssuedAt),
			ExpiresAt:    utcPtr(props.ExpiresAt),
			IsPersistent: props.IsPersistent,
			AllowRefresh: props.AllowRefresh,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

func (JSONSerializer) Deserialize(data string) (*Properties, error) {
	var env propertiesEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	if env.Version != propertiesFormatVersion1 {
		return nil, fmt.Errorf("unsupported properties format version %d", env.Version)
	}

	p := env.Properties
	out := &Properties{
		Items:        p.Items,
		Parameters:   p.Parameters,
		IssuedAt:     utcPtr(p.IssuedAt),
		ExpiresAt:    utcPtr(p.ExpiresAt),
		IsPersistent: p.IsPersistent,
		AllowRefresh: p.AllowRefresh,
	}
	if out.Items == nil {
		out.Items = map[string]string{}
	}
	if out.Parameters == nil {
		out.Parameters = map[string]string{}
	}
	return out, nil
}

// checkUTF8 rejects strings encoding/json would rewrite to U+FFFD.
func checkUTF8(kind string, m map[string]string) error {
	for k, v := range m {
		if !utf8.ValidString(k) {
			return fmt.Errorf("%s key %q is not valid UTF-8", kind, k)
		}
		if !utf8.ValidString(v) {
			return fmt.Errorf("%s %q has a value that is not valid UTF-8", kind, k)
		}
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
