// Package diffpreview renders a catalog tree together with the edits of a
// diff as an annotated, YAML-like listing.
package diffpreview

import "github.com/loog-project/cattree/pkg/tree"

// Render renders a YAML-like diff view between a and b
func Render(a, b *tree.Node, theme Theme) (string, error) {
	return RenderWithOptions(a, b, theme, DefaultRenderOptions)
}

// RenderWithOptions renders a YAML-like diff view with custom options
func RenderWithOptions(a, b *tree.Node, theme Theme, opts RenderOptions) (string, error) {
	node, err := Compare(a, b)
	if err != nil {
		return "", err
	}
	return RenderYAML(node, theme, opts), nil
}
