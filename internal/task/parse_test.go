package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTask(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "plain",
			in:        "Title: FizzBuzz\nDescription: Print numbers 1 to 100.",
			wantTitle: "FizzBuzz",
			wantDesc:  "Print numbers 1 to 100.",
		},
		{
			name:      "bold labels",
			in:        "**Title:** List Comprehensions\n**Description:** Rewrite the loop using a comprehension.",
			wantTitle: "List Comprehensions",
			wantDesc:  "Rewrite the loop using a comprehension.",
		},
		{
			name:      "heading title and multi-line description",
			in:        "### Title: Word Count\n\nDescription:\nRead a file.\nCount the words.",
			wantTitle: "Word Count",
			wantDesc:  "Read a file.\nCount the words.",
		},
		{
			name:      "code span in title",
			in:        "Title: Implement `reverse()`\nDescription: Do it in place.",
			wantTitle: "Implement `reverse()`",
			wantDesc:  "Do it in place.",
		},
		{
			name:      "generic type parameter",
			in:        "Title: Implement a Stack<T> wrapper\nDescription: generic stack",
			wantTitle: "Implement a Stack<T> wrapper",
			wantDesc:  "generic stack",
		},
		{
			name:      "comparison operators",
			in:        "Title: Check a<b and b>c\nDescription: chained comparisons",
			wantTitle: "Check a<b and b>c",
			wantDesc:  "chained comparisons",
		},
		{
			name:      "autolink",
			in:        "**Title:** Parse <https://example.com> links\nDescription: extract URLs",
			wantTitle: "Parse <https://example.com> links",
			wantDesc:  "extract URLs",
		},
		{
			name:      "first title wins",
			in:        "Title: One\nTitle: Two\nDescription: x",
			wantTitle: "One",
			wantDesc:  "Title: Two\nx",
		},
		{
			name:      "no title",
			in:        "Build a calculator that adds two numbers.",
			wantTitle: DefaultTitle,
			wantDesc:  "Build a calculator that adds two numbers.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, desc := ParseTask(tc.in)
			assert.Equal(t, tc.wantTitle, title)
			assert.Equal(t, tc.wantDesc, desc)
		})
	}
}

func TestParseTaskWithoutTitleKeepsRawResponse(t *testing.T) {
	raw := "  **Write** a function.\n"
	title, desc := ParseTask(raw)
	assert.Equal(t, DefaultTitle, title)
	assert.Equal(t, raw, desc)
}

func TestPlainLine(t *testing.T) {
	assert.Equal(t, "Title: Loops", plainLine("**Title:** Loops"))
	assert.Equal(t, "Title: Loops", plainLine("_Title:_ Loops"))
	assert.Equal(t, "Title: [Task Title]", plainLine("Title: [Task Title]"))
	assert.Equal(t, "", plainLine("   "))
	assert.Equal(t, "Title: Map<K, V> lookups", plainLine("Title: Map<K, V> lookups"))
	assert.Equal(t, "Title: x<y", plainLine("Title: x<y"))
	assert.Equal(t, "<mailto:dev@example.com>", plainLine("<mailto:dev@example.com>"))
}

func TestExtractVerdict(t *testing.T) {
	assert.Equal(t, VerdictApproved, ExtractVerdict("APPROVED. Nice work."))
	assert.Equal(t, VerdictApproved, ExtractVerdict("Looks good, approved"))
	assert.Equal(t, VerdictChangesRequested, ExtractVerdict("CHANGES REQUESTED: handle empty input"))
	assert.Equal(t, VerdictChangesRequested, ExtractVerdict("This is not approved yet."))
	assert.Equal(t, VerdictUnknown, ExtractVerdict("Hmm."))
}
