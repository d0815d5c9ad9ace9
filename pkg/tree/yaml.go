package tree

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load decodes a single YAML document into a tree and validates it.
//
//	label: table
//	attributes: {name: T1}
//	children:
//	  - label: column
//	    attributes: {name: a}
func Load(r io.Reader) (*Node, error) {
	var n Node
	if err := yaml.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("cannot decode tree: %w", err)
	}
	if n.Label == "" {
		return nil, fmt.Errorf("cannot decode tree: root has no label")
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func LoadFile(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// YAML encodes the tree in the format accepted by [Load].
func (n *Node) YAML() ([]byte, error) {
	return yaml.Marshal(n)
}
