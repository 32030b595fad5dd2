package entity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Numeric is a NUMERIC/DECIMAL column read as a float. The firebird driver
// returns scaled columns as decimal.Decimal, which bun cannot put in a
// float64 on its own. NULL scans as zero.
type Numeric float64

// Scan implements sql.Scanner.
func (n *Numeric) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = 0
	case decimal.Decimal:
		*n = Numeric(v.InexactFloat64())
	case *decimal.Decimal:
		*n = Numeric(v.InexactFloat64())
	case float64:
		*n = Numeric(v)
	case float32:
		*n = Numeric(v)
	case int64:
		*n = Numeric(v)
	case int32:
		*n = Numeric(v)
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("entity: cannot scan %T into Numeric", src)
	}
	return nil
}

func (n *Numeric) parse(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("entity: scan Numeric: %w", err)
	}
	*n = Numeric(d.InexactFloat64())
	return nil
}

// Float returns n as a plain float64.
func (n Numeric) Float() float64 { return float64(n) }

// NullText keeps a column in its textual form whatever type the driver
// reports, so malformed legacy values survive to validation.
type NullText struct {
	String string
	Valid  bool
}

// Text returns a valid NullText holding s.
func Text(s string) NullText { return NullText{String: s, Valid: true} }

// Scan implements sql.Scanner.
func (t *NullText) Scan(src any) error {
	t.Valid = src != nil
	switch v := src.(type) {
	case nil:
		t.String = ""
	case string:
		t.String = v
	case []byte:
		t.String = string(v)
	case decimal.Decimal:
		t.String = v.String()
	case *decimal.Decimal:
		t.String = v.String()
	case int64:
		t.String = strconv.FormatInt(v, 10)
	case int32:
		t.String = strconv.FormatInt(int64(v), 10)
	case float64:
		t.String = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		t.String = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		t.String = v.Format(time.DateOnly)
	default:
		t.Valid = false
		return fmt.Errorf("entity: cannot scan %T into NullText", src)
	}
	return nil
}
