package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Write writes r to w in the given format. Digits is the number of
// fraction digits of times in text reports.
func Write(w io.Writer, r Report, format Format, digits int) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r, digits)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatMsgpack:
		return WriteMsgpack(w, r)
	}
	return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteMsgpack writes r as msgpack.
func WriteMsgpack(w io.Writer, r Report) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	if err := enc.Encode(&r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// ReadMsgpack reads a report written by WriteMsgpack.
func ReadMsgpack(rd io.Reader) (Report, error) {
	var r Report
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return r, nil
}
