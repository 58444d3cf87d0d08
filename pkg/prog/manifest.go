package prog

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mhersch/flowlevel/pkg/errors"
)

// Manifest is the TOML description of a dataflow program.
//
// Buffers and values are declared per region; nodes reference them by name
// in program order. Example:
//
//	[program]
//	name = "resnet_block"
//
//	[[region]]
//	name = "forward"
//	buffers = ["fm1", "fm2"]
//
//	[[region.value]]
//	name = "w0"
//	shaped = true
//
//	[[region.node]]
//	name = "conv1"
//	kind = "loop"
//	loads = ["ifm"]
//	stores = ["fm1"]
type Manifest struct {
	Program struct {
		Name string `toml:"name"`
	} `toml:"program"`
	Regions []manifestRegion `toml:"region"`
}

type manifestRegion struct {
	Name    string          `toml:"name"`
	Buffers []string        `toml:"buffers"`
	Values  []manifestValue `toml:"value"`
	Nodes   []manifestNode  `toml:"node"`
}

type manifestValue struct {
	Name   string `toml:"name"`
	Shaped bool   `toml:"shaped"`
}

type manifestNode struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	Loads   []string `toml:"loads"`
	Stores  []string `toml:"stores"`
	Args    []string `toml:"args"`
	Results []string `toml:"results"`
}

var manifestKinds = map[string]Kind{
	"compute": KindCompute,
	"loop":    KindLoop,
	"alloc":   KindAlloc,
	"const":   KindConst,
	"return":  KindReturn,
}

// ParseManifest decodes a TOML program manifest and builds its regions.
// Node order in the manifest is program order. References to undeclared
// buffers or values, unknown kinds, duplicate names, and names unsafe to
// embed in file paths or reports are errors.
func ParseManifest(data []byte) (*Program, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Regions) == 0 {
		return nil, fmt.Errorf("manifest declares no regions")
	}
	if m.Program.Name != "" {
		if err := errors.ValidateProgramName(m.Program.Name); err != nil {
			return nil, fmt.Errorf("program name: %w", err)
		}
	}

	p := &Program{Name: m.Program.Name}
	for _, mr := range m.Regions {
		r, err := buildRegion(mr)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", mr.Name, err)
		}
		p.Regions = append(p.Regions, r)
	}
	return p, nil
}

// ParseManifestFile reads and parses a manifest from disk.
func ParseManifestFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func buildRegion(mr manifestRegion) (*Region, error) {
	if mr.Name == "" {
		return nil, ErrInvalidName
	}
	if err := errors.ValidateProgramName(mr.Name); err != nil {
		return nil, err
	}
	r := New(mr.Name)
	for _, name := range mr.Buffers {
		if err := errors.ValidateNodeName(name); err != nil {
			return nil, fmt.Errorf("buffer %q: %w", name, err)
		}
		if _, err := r.AddBuffer(name); err != nil {
			return nil, fmt.Errorf("buffer %q: %w", name, err)
		}
	}
	for _, v := range mr.Values {
		if err := errors.ValidateNodeName(v.Name); err != nil {
			return nil, fmt.Errorf("value %q: %w", v.Name, err)
		}
		if _, err := r.AddValue(v.Name, v.Shaped); err != nil {
			return nil, fmt.Errorf("value %q: %w", v.Name, err)
		}
	}
	for _, n := range mr.Nodes {
		if err := errors.ValidateNodeName(n.Name); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		kind, ok := manifestKinds[n.Kind]
		if !ok {
			return nil, fmt.Errorf("node %q: unknown kind %q", n.Name, n.Kind)
		}
		node := Node{
			Name:    n.Name,
			Kind:    kind,
			Loads:   n.Loads,
			Stores:  n.Stores,
			Args:    n.Args,
			Results: n.Results,
		}
		if _, err := r.AddNode(node); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
	}
	return r, nil
}
