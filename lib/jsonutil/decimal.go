package jsonutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Decimal tolerates the number shapes the bank apis mix freely: bare
// numbers, quoted numbers, and quoted numbers with a decimal comma.
type Decimal float64

func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("cannot parse %q as a decimal", string(data))
	}
	*d = Decimal(f)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Decimal) Float64() float64 {
	return float64(d)
}

func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}
