package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyJQ(t *testing.T) {
	type item struct {
		Name   string `json:"name"`
		Amount uint64 `json:"amount"`
	}
	input := []item{{Name: "a", Amount: 1}, {Name: "b", Amount: 5}}

	tests := []struct {
		name   string
		filter string
		want   []interface{}
	}{
		{name: "identity length", filter: "length", want: []interface{}{2}},
		{name: "select", filter: `.[] | select(.amount > 2) | .name`, want: []interface{}{"b"}},
		{name: "multiple results", filter: ".[].amount", want: []interface{}{float64(1), float64(5)}},
		{name: "no results", filter: "empty", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyJQ(tt.filter, input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyJQ_Errors(t *testing.T) {
	_, err := applyJQ(".[", nil)
	assert.ErrorContains(t, err, "failed to parse jq filter")

	_, err = applyJQ(`error("boom")`, map[string]string{})
	assert.ErrorContains(t, err, "boom")
}

func TestSubjectFor(t *testing.T) {
	subject, err := subjectFor("")
	require.NoError(t, err)
	assert.Equal(t, "builds.*", subject)

	subject, err = subjectFor("burn_token")
	require.NoError(t, err)
	assert.Equal(t, "builds.burn_token", subject)

	_, err = subjectFor("builds.>")
	assert.Error(t, err)
}
