package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MarshalSnapshot produces deterministic JSON for a FinalState
// snapshot. The same state always serializes to the same bytes:
// object keys are sorted, HTML characters are not escaped, strings are
// NFC normalized, and empty optional fields are omitted. The output is
// what the persistence collaborator stores and what golden tests
// compare against.
func MarshalSnapshot(s FinalState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"files":`)
	if err := writeFileList(&buf, s.Files); err != nil {
		return nil, err
	}
	buf.WriteString(`,"recent":`)
	if err := writeFileList(&buf, s.Recent); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalSnapshot is the inverse of MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (FinalState, error) {
	var s FinalState
	if err := json.Unmarshal(data, &s); err != nil {
		return FinalState{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Recent == nil {
		s.Recent = []OpenedFile{}
	}
	if s.Files == nil {
		s.Files = []OpenedFile{}
	}
	return s, nil
}

func writeFileList(buf *bytes.Buffer, files []OpenedFile) error {
	buf.WriteByte('[')
	for i, f := range files {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeFile(buf, f); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeFile(buf *bytes.Buffer, f OpenedFile) error {
	fields := map[string]any{
		"id":    f.ID,
		"name":  f.Name,
		"saved": f.Saved,
		"index": f.Index,
	}
	if f.Path != "" {
		fields["path"] = f.Path
	}
	if f.Content != "" {
		fields["content"] = f.Content
	}
	if !f.OpenedAt.IsZero() {
		fields["opened_at"] = f.OpenedAt.UTC().Format(time.RFC3339)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		switch v := fields[k].(type) {
		case string:
			if err := writeString(buf, v); err != nil {
				return err
			}
		case bool:
			if v {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
		case int:
			fmt.Fprintf(buf, "%d", v)
		default:
			return fmt.Errorf("snapshot: unsupported field type %T", v)
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString appends a JSON string literal: NFC normalized, no HTML
// escaping.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return fmt.Errorf("marshal string: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
