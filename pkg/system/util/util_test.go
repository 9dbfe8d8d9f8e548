package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePIDs(t *testing.T) {
	cases := []struct {
		args []string
		want []int
	}{
		{[]string{"100"}, []int{100}},
		{[]string{"200", "100", "200"}, []int{200, 100}},
		{[]string{"10,11", " 12 "}, []int{10, 11, 12}},
		{[]string{"30000..30003"}, []int{30000, 30001, 30002, 30003}},
		{[]string{"5..5", "5"}, []int{5}},
		{[]string{",,"}, nil},
		{nil, nil},
	}
	for _, c := range cases {
		got, err := ParsePIDs(c.args)
		require.NoError(t, err, c.args)
		assert.Equal(t, c.want, got, c.args)
	}
}

func TestParsePIDs_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"abc"},
		{"0"},
		{"-5"},
		{"10..x"},
		{"20..10"},
		{"1..100000"},
	} {
		_, err := ParsePIDs(args)
		assert.Error(t, err, args)
	}
}

func TestFmtFloat(t *testing.T) {
	assert.Equal(t, "1.5", FmtFloat(1.5))
	assert.Equal(t, "0", FmtFloat(0))
	assert.Equal(t, "0.001", FmtFloat(0.001))
}

func TestSystemSummary(t *testing.T) {
	hostname, kernel, cpus, memory := SystemSummary(context.Background())
	for _, v := range []string{hostname, kernel, cpus, memory} {
		assert.NotEmpty(t, v)
	}
}
