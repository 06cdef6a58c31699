package compiler

import (
	"fmt"
	"io"
	"strings"
)

// StringTable holds deduplicated string literals in first-use order.
type StringTable struct {
	items []string
}

func NewStringTable() *StringTable {
	return &StringTable{}
}

// Add returns the operand of s, inserting it on first use.
func (t *StringTable) Add(s string) StringOperand {
	for i, item := range t.items {
		if item == s {
			return StringOperand{Index: i}
		}
	}
	t.items = append(t.items, s)
	return StringOperand{Index: len(t.items) - 1}
}

func (t *StringTable) Len() int { return len(t.items) }

func (t *StringTable) At(i int) string { return t.items[i] }

// GenerateStrings writes one NUL-terminated DB directive per literal.
func (t *StringTable) GenerateStrings(w io.Writer) error {
	for i, s := range t.items {
		if _, err := fmt.Fprintf(w, "str%d: DB %s\n", i, dbString(s)); err != nil {
			return err
		}
	}
	return nil
}

// dbString renders s as DB operands. Printable runs are quoted; anything
// else, including the quote character, is written as a byte value.
func dbString(s string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, "'"+run.String()+"'")
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7F && c != '\'' {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, fmt.Sprintf("%d", c))
	}
	flush()
	parts = append(parts, "0")
	return strings.Join(parts, ", ")
}

func (t *StringTable) String() string {
	var b strings.Builder
	b.WriteString("STRING TABLE\n")
	for i, s := range t.items {
		fmt.Fprintf(&b, "%-5d %q\n", i, s)
	}
	return b.String()
}
