package dto

import (
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat encodes NaN and infinities, which a diverged load flow can
// leave behind, as null
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func jsonFloats(values []float64) []jsonFloat {
	if values == nil {
		return nil
	}
	out := make([]jsonFloat, len(values))
	for i, v := range values {
		out[i] = jsonFloat(v)
	}
	return out
}

// MarshalJSON writes the sample with non-finite values as null
func (s TrainingSample) MarshalJSON() ([]byte, error) {
	type sample TrainingSample
	return json.Marshal(struct {
		sample
		Factor     jsonFloat
		Input      []jsonFloat
		Output     []jsonFloat
		BranchFlow []jsonFloat
		Mismatch   jsonFloat
	}{
		sample:     sample(s),
		Factor:     jsonFloat(s.Factor),
		Input:      jsonFloats(s.Input),
		Output:     jsonFloats(s.Output),
		BranchFlow: jsonFloats(s.BranchFlow),
		Mismatch:   jsonFloat(s.Mismatch),
	})
}
