package tree

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a compact, deterministic encoding of the subtree.
//
// The node comes first: its label, then each attribute as a tab separated
// name/value pair in sorted key order. Children follow in array order. Two
// trees with the same content always produce the same string; the encoding
// is not meant to be decoded.
func (n *Node) Fingerprint() string {
	var sb strings.Builder
	n.fingerprint(&sb)
	return sb.String()
}

func (n *Node) fingerprint(sb *strings.Builder) {
	sb.WriteString("\tE")
	sb.WriteString(n.Label)
	sb.WriteByte('\t')
	for _, k := range n.AttributeNames() {
		sb.WriteByte('\t')
		sb.WriteString(k)
		sb.WriteByte('\t')
		sb.WriteString(n.Attributes[k])
	}
	sb.WriteString("\t[")
	for _, c := range n.Children {
		c.fingerprint(sb)
	}
}

// FragmentID hashes the fingerprint. Plan fragments with the same shape
// share an ID, which the compiler uses as a cache key.
func (n *Node) FragmentID() string {
	sum := sha1.Sum([]byte(n.Fingerprint()))
	return hex.EncodeToString(sum[:])
}
