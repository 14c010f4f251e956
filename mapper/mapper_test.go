package mapper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  int64
	}{
		{"int", 42, 42},
		{"int64", int64(7), 7},
		{"float64", float64(1000), 1000},
		{"float with fraction truncates", 3.9, 3},
		{"json.Number", json.Number("12"), 12},
		{"numeric string", "5", 5},
		{"negative string", "-3", -3},
		{"bool true", true, 1},
		{"bool false", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToInt64(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToInt64Errors(t *testing.T) {
	for _, value := range []interface{}{nil, "abc", []int{1}, map[string]int{}} {
		_, err := ToInt64(value)
		assert.Error(t, err, "value %v", value)
	}
}

func TestToBool(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"nil is false", nil, false},
		{"bool", true, true},
		{"float 1", float64(1), true},
		{"float 0", float64(0), false},
		{"int nonzero", 2, true},
		{"string true", "true", true},
		{"string 1", "1", true},
		{"string ok", "ok", true},
		{"string false", "false", false},
		{"empty string", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToBool(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToBoolErrors(t *testing.T) {
	for _, value := range []interface{}{"yes", []bool{true}, map[string]int{}} {
		_, err := ToBool(value)
		assert.Error(t, err, "value %v", value)
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "42", ToString(42))
	assert.Equal(t, "42", ToString(int64(42)))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "true", ToString(true))
}
