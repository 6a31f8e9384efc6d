package bayestar

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form admits "inf", "-inf" and "nan".
type Float float64

func formatFloat(v float64, bitSize int) []byte {
	switch {
	case math.IsNaN(v):
		return []byte(`"nan"`)
	case math.IsInf(v, 1):
		return []byte(`"inf"`)
	case math.IsInf(v, -1):
		return []byte(`"-inf"`)
	}
	return strconv.AppendFloat(nil, v, 'g', -1, bitSize)
}

func parseFloat(data []byte, bitSize int) (float64, error) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(s, bitSize)
	}
	v, err := strconv.ParseFloat(string(data), bitSize)
	if err != nil {
		return 0, fmt.Errorf("invalid float %s: %w", data, err)
	}
	return v, nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	return formatFloat(float64(f), 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	v, err := parseFloat(data, 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Photometry holds one value per passband.
type Photometry [NBands]float32

func (p Photometry) MarshalJSON() ([]byte, error) {
	out := []byte{'['}
	for i, v := range p {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, formatFloat(float64(v), 32)...)
	}
	return append(out, ']'), nil
}

func (p *Photometry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != NBands {
		return fmt.Errorf("photometry has %d bands, expected %d", len(raw), NBands)
	}
	for i, r := range raw {
		v, err := parseFloat(r, 32)
		if err != nil {
			return err
		}
		p[i] = float32(v)
	}
	return nil
}
