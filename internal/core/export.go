package core

import (
	"bytes"
	"encoding/json"
	"time"
)

const ExportVersion = "1.0"

type Export struct {
	Structure ExportStructure `json:"structure"`
	Info      ExportInfo      `json:"export_info"`
}

type ExportStructure struct {
	Name string `json:"name"`
	Data Tree   `json:"data"`
}

type ExportInfo struct {
	ExportedAt  time.Time `json:"exported_at"`
	Version     string    `json:"version"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

func NewExport(name string, tree Tree, fingerprint string) *Export {
	data := tree.Clone()
	if data == nil {
		data = Tree{}
	}
	return &Export{
		Structure: ExportStructure{Name: name, Data: data},
		Info: ExportInfo{
			ExportedAt:  time.Now().UTC(),
			Version:     ExportVersion,
			Fingerprint: fingerprint,
		},
	}
}

// DecodeExport accepts either an export envelope or a bare tree list and
// returns the validated tree plus the structure name, if any.
func DecodeExport(data []byte) (string, Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Structure struct {
				Name string          `json:"name"`
				Data json.RawMessage `json:"data"`
			} `json:"structure"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return "", nil, &ValidationError{Field: "export", Cause: "invalid JSON format", Err: err}
		}
		if len(env.Structure.Data) == 0 {
			return "", nil, &ValidationError{Field: "export", Cause: "missing structure data"}
		}
		tree, err := DecodeTree(env.Structure.Data)
		if err != nil {
			return "", nil, err
		}
		return env.Structure.Name, tree, nil
	}
	tree, err := DecodeTree(trimmed)
	return "", tree, err
}
