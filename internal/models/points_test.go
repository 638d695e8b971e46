package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsScan(t *testing.T) {
	cases := []struct {
		name string
		src  interface{}
		want Points
	}{
		{"nil", nil, 0},
		{"int", int64(42), 42},
		{"negative", int64(-7), -7},
		{"integral float", float64(30), 30},
		{"numeric bytes", []byte("120"), 120},
		{"numeric with scale", []byte("120.00"), 120},
		{"string", " 15 ", 15},
		{"empty", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p Points
			require.NoError(t, p.Scan(tc.src))
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestPointsScanRejectsFractions(t *testing.T) {
	for _, src := range []interface{}{float64(1.5), []byte("10.25"), "abc", "1.2.3", true} {
		var p Points
		err := p.Scan(src)
		assert.ErrorIs(t, err, ErrInvalidPoints, "%v", src)
	}
}
