package models

import (
	"bytes"
	"fmt"
	"strconv"
)

// FlexInt decodes integers that the Traffic Portal API sometimes sends as strings.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}

	s := string(bytes.Trim(b, `"`))
	if s == "" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("value %s is not an integer", string(b))
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) Int64() int64 {
	return int64(f)
}
