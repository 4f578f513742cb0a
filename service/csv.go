package service

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// EncodeCSV writes t as UTF-8 CSV: a header with the column names followed by
// one record per row. Fields are quoted per RFC 4180 when needed.
func EncodeCSV(t *Table) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(t.Columns))
		}
		for j, v := range row {
			s, err := formatValue(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, t.Columns[j], err)
			}
			record[j] = s
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf, nil
}

func formatValue(v bigquery.Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case *big.Rat:
		if x == nil {
			return "", nil
		}
		return ratString(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case civil.Date:
		return x.String(), nil
	case civil.Time:
		return x.String(), nil
	case civil.DateTime:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		// Repeated and record columns.
		b, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("unsupported value %T: %w", v, err)
		}
		return string(b), nil
	}
}

// ratString renders NUMERIC and BIGNUMERIC values without trailing zeros.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.RatString()
	}
	s := r.FloatString(bigquery.BigNumericScaleDigits)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
