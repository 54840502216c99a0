package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

const defaultImportBatch = 500

// Inserter is the write side of the review store.
type Inserter interface {
	Insert(ctx context.Context, reviews []Review) error
}

// exportDoc is one review as exported from the source collection.
type exportDoc struct {
	ReviewID   int64      `json:"review_id"`
	ReviewDate exportTime `json:"review_date"`
	Rating     int        `json:"rating"`
	Title      string     `json:"review_title"`
	Text       string     `json:"review_text"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Domain     string     `json:"domain"`
	EntityName string     `json:"entity_name"`
	Category   string     `json:"category"`
}

func (d exportDoc) review() Review {
	return Review{
		ReviewID:   d.ReviewID,
		ReviewDate: d.ReviewDate.t,
		Rating:     d.Rating,
		Title:      d.Title,
		Text:       d.Text,
		Year:       d.Year,
		Month:      d.Month,
		Domain:     d.Domain,
		EntityName: d.EntityName,
		Category:   d.Category,
	}
}

// exportTime accepts a date string, epoch milliseconds, or an extended
// JSON {"$date": ...} wrapper.
type exportTime struct{ t *time.Time }

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func (e *exportTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '{':
		var wrapped struct {
			Date json.RawMessage `json:"$date"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		if len(wrapped.Date) > 0 && wrapped.Date[0] == '{' {
			var long struct {
				N string `json:"$numberLong"`
			}
			if err := json.Unmarshal(wrapped.Date, &long); err != nil {
				return err
			}
			wrapped.Date = json.RawMessage(long.N)
		}
		return e.UnmarshalJSON(wrapped.Date)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				e.t = &t
				return nil
			}
		}
		return fmt.Errorf("unrecognized review date %q", s)
	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("unrecognized review date %s", b)
		}
		t := time.UnixMilli(ms).UTC()
		e.t = &t
		return nil
	}
}

// ImportJSON streams a JSON array of exported reviews into dst in batches
// and returns how many were written. Documents with the same review id
// replace earlier ones.
func ImportJSON(ctx context.Context, r io.Reader, dst Inserter, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultImportBatch
	}
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("read reviews: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, errors.New("read reviews: expected a JSON array")
	}

	buf := make([]Review, 0, batch)
	total := 0
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := dst.Insert(ctx, buf); err != nil {
			return fmt.Errorf("insert reviews: %w", err)
		}
		total += len(buf)
		buf = buf[:0]
		return nil
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var doc exportDoc
		if err := dec.Decode(&doc); err != nil {
			return total, fmt.Errorf("review %d: %w", i, err)
		}
		if doc.ReviewID == 0 {
			return total, fmt.Errorf("review %d: missing review_id", i)
		}
		buf = append(buf, doc.review())
		if len(buf) == batch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	if _, err := dec.Token(); err != nil {
		return total, fmt.Errorf("read reviews: %w", err)
	}
	return total, nil
}
