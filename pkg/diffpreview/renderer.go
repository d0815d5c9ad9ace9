package diffpreview

import (
	"strconv"
	"strings"
)

type RenderOptions struct {
	IndentSize                int
	EnableBackgroundHighlight bool
	// HideUnchanged skips unchanged attributes and subtrees.
	HideUnchanged bool
	// Markers prefixes every line with "+", "-", "~" or a space.
	Markers bool
}

var DefaultRenderOptions = RenderOptions{
	IndentSize:                2,
	EnableBackgroundHighlight: true,
}

func RenderYAML(node *AnnotatedNode, theme Theme, opts RenderOptions) string {
	var sb strings.Builder
	renderNode(&sb, node, theme, opts, 0)
	return sb.String()
}

func renderNode(sb *strings.Builder, node *AnnotatedNode, theme Theme, opts RenderOptions, indent int) {
	space := strings.Repeat(" ", indent*opts.IndentSize)

	keyStr := theme.SyntaxHighlight("key", node.Label) + ":"
	if node.Reordered {
		keyStr += " " + theme.SyntaxHighlight("comment", "# reordered")
	}
	writeLine(sb, node.Change, space+maybeHighlightBackground(keyStr, node.Change, theme, opts), opts)

	inner := strings.Repeat(" ", (indent+1)*opts.IndentSize)
	for _, attr := range node.Attributes {
		if opts.HideUnchanged && attr.Change == Unchanged {
			continue
		}
		line := theme.SyntaxHighlight("attr", attr.Name) + ": " + renderValue(attr.Value, theme)
		line = maybeHighlightBackground(line, attr.Change, theme, opts)
		if attr.Change == Modified {
			line += " " + theme.SyntaxHighlight("comment", "# was "+strconv.Quote(attr.Old))
		}
		writeLine(sb, attr.Change, inner+line, opts)
	}

	for _, child := range node.Children {
		if opts.HideUnchanged && child.Change == Unchanged {
			continue
		}
		renderNode(sb, child, theme, opts, indent+1)
	}
}

// renderValue quotes strings that do not read as a number or a bool.
func renderValue(v string, theme Theme) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return theme.SyntaxHighlight("number", v)
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return theme.SyntaxHighlight("bool", v)
	}
	if v == "" {
		return theme.SyntaxHighlight("null", `""`)
	}
	return theme.SyntaxHighlight("string", strconv.Quote(v))
}

func writeLine(sb *strings.Builder, change ChangeType, line string, opts RenderOptions) {
	if opts.Markers {
		sb.WriteString(marker(change))
		sb.WriteString(" ")
	}
	sb.WriteString(line)
	sb.WriteString("\n")
}

func marker(change ChangeType) string {
	switch change {
	case Added:
		return "+"
	case Removed:
		return "-"
	case Modified:
		return "~"
	default:
		return " "
	}
}

func maybeHighlightBackground(content string, change ChangeType, theme Theme, opts RenderOptions) string {
	if opts.EnableBackgroundHighlight {
		return theme.BackgroundHighlight(change, content)
	}
	return content
}
