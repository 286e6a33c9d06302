package cmd

import (
	"testing"

	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		expr    string
		lo, hi  float64
		wantErr bool
	}{
		{expr: "5", lo: 5, hi: 5},
		{expr: "1-10", lo: 1, hi: 10},
		{expr: " 2.5 - 3 ", lo: 2.5, hi: 3},
		{expr: "10-1", wantErr: true},
		{expr: "a-b", wantErr: true},
		{expr: "1-", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			lo, hi, err := parseRange(tt.expr)
			if tt.wantErr {
				assert.ErrorIs(t, err, sources.ErrBadArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestSelectChapters(t *testing.T) {
	chapters := []data.Chapter{
		{Key: "/c3", Number: 3},
		{Key: "/c2", Number: 2},
		{Key: "/c1.5", Number: 1.5},
		{Key: "/c1", Number: 1},
	}

	all, err := selectChapters(chapters, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "/c1", all[0].Key)

	some, err := selectChapters(chapters, "1.5-2")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "/c1.5", some[0].Key)
	assert.Equal(t, "/c2", some[1].Key)

	_, err = selectChapters(chapters, "x")
	assert.Error(t, err)
}
