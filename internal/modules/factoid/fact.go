package factoid

import (
	"strings"

	"github.com/garyellow/lullabot-go/internal/storage"
)

// FactString renders a fact: reply facts print their first value verbatim,
// others read "<key> <be> <value>". Further values are joined with
// ", and also ".
func FactString(f storage.Fact) string {
	var b strings.Builder
	for i, v := range f.Value {
		switch {
		case i > 0:
			b.WriteString(", and also ")
			b.WriteString(v)
		case f.Reply:
			b.WriteString(v)
		default:
			b.WriteString(f.Key)
			b.WriteByte(' ')
			b.WriteString(f.Be)
			b.WriteByte(' ')
			b.WriteString(v)
		}
	}
	return b.String()
}
