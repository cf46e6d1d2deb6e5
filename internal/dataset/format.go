package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tordrt/lala/internal/apperrors"
)

// DecodeJSON reads a dataset document of the form
//
//	{"<interval key>": {"0": [header...], "<sampleid>": [values...], ...}}
//
// keeping the row order of the document.
func DecodeJSON(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
	}
	intervalKey, ok := tok.(string)
	if !ok {
		return nil, fmt.Errorf("%w: expected the analysis interval key", apperrors.ErrMalformedDataset)
	}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var d *Dataset
	var pending []struct {
		sid string
		row Row
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
		}
		key, _ := tok.(string)

		var raw []any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: row %s: %v", apperrors.ErrMalformedDataset, key, err)
		}
		row := make(Row, len(raw))
		for i, v := range raw {
			row[i] = jsonValue(v)
		}

		if key == HeaderKey {
			d = New(intervalKey, row)
			continue
		}
		pending = append(pending, struct {
			sid string
			row Row
		}{key, row})
	}
	if d == nil {
		return nil, fmt.Errorf("%w: no header row", apperrors.ErrMalformedDataset)
	}
	for _, p := range pending {
		d.Add(p.sid, p.row)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: more than one analysis interval", apperrors.ErrMalformedDataset)
	}
	return d, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("%w: expected %q", apperrors.ErrMalformedDataset, want)
	}
	return nil
}

func jsonValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// WriteCSV writes the dataset with a leading sampleid column.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{sampleIDColumn}, d.header...)); err != nil {
		return err
	}
	var werr error
	d.Rows(func(sid string, row Row) bool {
		werr = cw.Write(append([]string{sid}, row...))
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads back what WriteCSV produced.
func ReadCSV(r io.Reader, intervalKey string) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
	}
	if len(header) < 2 || header[0] != sampleIDColumn {
		return nil, fmt.Errorf("%w: first column must be %q", apperrors.ErrMalformedDataset, sampleIDColumn)
	}

	d := New(intervalKey, header[1:])
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
		}
		d.Add(rec[0], rec[1:])
	}
	return d, nil
}
