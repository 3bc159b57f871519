package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexUint64 is an identifier that arrives as a JSON number or a numeric string
type FlexUint64 uint64

func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexUint64(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: id must be a number or numeric string", ErrValidation)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrValidation, s)
	}
	*f = FlexUint64(n)
	return nil
}

func (f FlexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(f))
}

// Uint64 returns the plain value
func (f FlexUint64) Uint64() uint64 {
	return uint64(f)
}

// Uint64s converts a list of identifiers
func Uint64s(list []FlexUint64) []uint64 {
	out := make([]uint64, len(list))
	for i, v := range list {
		out[i] = uint64(v)
	}
	return out
}
