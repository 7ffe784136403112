// Package importer converts karma and factoid CSV exports into stored
// documents. Names in the export are matched against the workspace's
// users so that scores and facts about people land on their user IDs.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/storage"
	"github.com/garyellow/lullabot-go/internal/stringutil"
)

const replyPrefix = "<reply>"

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("importer: malformed csv")

// Directory matches export names to workspace users.
type Directory struct {
	users []bot.User
}

// NewDirectory creates a directory over users.
func NewDirectory(users []bot.User) *Directory {
	return &Directory{users: users}
}

// Find returns the user whose ID, handle, real name or display name equals
// s, ignoring case.
func (d *Directory) Find(s string) (bot.User, bool) {
	if d == nil || s == "" {
		return bot.User{}, false
	}
	for _, u := range d.users {
		for _, candidate := range []string{u.ID, u.Name, u.RealName, u.DisplayName} {
			if candidate != "" && strings.EqualFold(candidate, s) {
				return u, true
			}
		}
	}
	return bot.User{}, false
}

// newReader accepts backslash-escaped quotes as well as doubled ones.
func newReader(r io.Reader) (*csv.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("importer: read: %w", err)
	}
	data = bytes.ReplaceAll(data, []byte(`\"`), []byte(`""`))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true
	return cr, nil
}

// ParseKarma reads a CSV with a header row naming "key" and "value"
// columns. A key listed twice keeps its last value.
func ParseKarma(r io.Reader) (map[string]int, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	keyCol, valueCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "key":
			keyCol = i
		case "value":
			valueCol = i
		}
	}
	if keyCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("%w: header must name key and value columns, got %v", ErrMalformed, header)
	}

	scores := make(map[string]int)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)
		n, err := strconv.Atoi(strings.TrimSpace(row[valueCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: value %q is not an integer", ErrMalformed, line, row[valueCol])
		}
		scores[row[keyCol]] = n
	}
	return scores, nil
}

// KarmaScores keys raw scores by user ID for people and by folded text
// otherwise. Entries that resolve to the same key are summed.
func KarmaScores(raw map[string]int, dir *Directory) map[string]int {
	out := make(map[string]int, len(raw))
	for key, score := range raw {
		index := stringutil.FoldKey(key)
		if u, ok := dir.Find(key); ok {
			index = u.ID
		}
		out[index] += score
	}
	return out
}

// FactoidRow is one headerless key,be,value record.
type FactoidRow struct {
	Key   string
	Be    string
	Value string
}

// ParseFactoids reads headerless three-column rows.
func ParseFactoids(r io.Reader) ([]FactoidRow, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}
	cr.FieldsPerRecord = 3

	var rows []FactoidRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rows = append(rows, FactoidRow{Key: rec[0], Be: rec[1], Value: rec[2]})
	}
}

// Facts folds rows into facts in first-seen order. "tell X about Y" rows
// are dropped, a "<reply>" prefix marks a verbatim reply, and repeated
// keys collect their values on the first fact.
func Facts(rows []FactoidRow, dir *Directory) []storage.Fact {
	var order []string
	byIndex := make(map[string]*storage.Fact)

	for _, row := range rows {
		if strings.HasPrefix(row.Key, "tell ") {
			continue
		}

		index := stringutil.FoldKey(row.Key)
		key := index
		if u, ok := dir.Find(row.Key); ok {
			index, key = u.ID, "<@"+u.ID+">"
		}
		value, reply := strings.CutPrefix(row.Value, replyPrefix)

		if f, ok := byIndex[index]; ok {
			f.Value = append(f.Value, value)
			continue
		}
		byIndex[index] = &storage.Fact{
			Index: index,
			Key:   key,
			Be:    row.Be,
			Reply: reply,
			Value: []string{value},
		}
		order = append(order, index)
	}

	facts := make([]storage.Fact, 0, len(order))
	for _, index := range order {
		facts = append(facts, *byIndex[index])
	}
	return facts
}
