package task

import (
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultTitle is used when the response has no Title: line.
const DefaultTitle = "New Task"

var (
	markdownOnce sync.Once
	markdownMD   goldmark.Markdown

	descriptionLabel = regexp.MustCompile(`(?i)^[\s>#*_-]*description:[*_]*\s*`)
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownMD = goldmark.New()
	})
	return markdownMD
}

// plainLine returns the text of a single markdown line with emphasis,
// heading and list markers removed. Inline HTML and autolinks are kept
// verbatim.
func plainLine(line string) string {
	src := []byte(strings.TrimSpace(line))
	if len(src) == 0 {
		return ""
	}
	doc := markdown().Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.CodeSpan:
			sb.WriteByte('`')
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(src))
				}
			}
			sb.WriteByte('`')
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			// "Stack<T>" and "a<b and b>c" parse as inline tags.
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				sb.Write(seg.Value(src))
			}
		case *ast.AutoLink:
			sb.WriteByte('<')
			sb.Write(node.Label(src))
			sb.WriteByte('>')
		case *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// ParseTask extracts a title and description from a Manager response
// formatted as "Title: ..." / "Description: ...". Without a Title: line the
// title is DefaultTitle and the whole response is the description.
func ParseTask(response string) (title, description string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	titleIdx := -1
	for i, line := range lines {
		plain := plainLine(line)
		if rest, ok := strings.CutPrefix(plain, "Title:"); ok {
			title = strings.TrimSpace(rest)
			titleIdx = i
			break
		}
	}
	if titleIdx < 0 {
		return DefaultTitle, response
	}
	if title == "" {
		title = DefaultTitle
	}

	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if i == titleIdx {
			continue
		}
		kept = append(kept, descriptionLabel.ReplaceAllString(line, ""))
	}
	return title, strings.TrimSpace(strings.Join(kept, "\n"))
}
