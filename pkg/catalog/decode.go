package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Decode parses a catalog file. YAML and JSON are both accepted. The top level may be
// a single protocol, a list of protocols, or a map with a "protocols" list.
func Decode(data []byte) ([]domain.Protocol, error) {
	var raw any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["protocols"].([]any); ok {
			items = list
		} else {
			items = []any{v}
		}
	default:
		return nil, fmt.Errorf("unexpected catalog root of type %T", raw)
	}

	protocols := make([]domain.Protocol, 0, len(items))
	for i, item := range items {
		doc, err := DecodeDocument(item)
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		p, err := doc.ToProtocol()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}

// DecodeDocument maps a generic value (as produced by a YAML/JSON decoder) onto a Document.
func DecodeDocument(input any) (Document, error) {
	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Document{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return Document{}, fmt.Errorf("failed to decode protocol document: %w", err)
	}
	return doc, nil
}
