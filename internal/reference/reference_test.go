package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_KnownEntry(t *testing.T) {
	lms, ok := Default().Lookup(Male, Height, 24)
	require.True(t, ok)
	assert.Equal(t, LMS{L: 1, M: 87.1, S: 0.04}, lms)
}

func TestDefaultTable_CoversAllSeries(t *testing.T) {
	for _, sex := range []Sex{Male, Female} {
		for _, m := range Measures {
			ages := Default().Ages(sex, m)
			require.NotEmpty(t, ages, "%s/%s", sex, m)
			assert.Equal(t, 0, ages[0])
			assert.Equal(t, 120, ages[len(ages)-1])
		}
	}
}

func TestDefaultTable_HasBoxCoxLogCase(t *testing.T) {
	lms, ok := Default().Lookup(Male, Weight, 22)
	require.True(t, ok)
	assert.Zero(t, lms.L)
}

func TestLookup_Missing(t *testing.T) {
	tbl := Default()

	_, ok := tbl.Lookup(Male, Height, 500)
	assert.False(t, ok, "age outside the table")

	_, ok = tbl.Lookup(Male, Height, -1)
	assert.False(t, ok, "negative age")

	_, ok = tbl.Lookup(SexUnknown, Height, 24)
	assert.False(t, ok, "unknown sex")

	_, ok = tbl.Lookup(Female, Measure("bmi"), 24)
	assert.False(t, ok, "unknown measure")
}

func TestLookup_NilTable(t *testing.T) {
	var tbl *Table
	_, ok := tbl.Lookup(Male, Height, 24)
	assert.False(t, ok)
	assert.Nil(t, tbl.Ages(Male, Height))
}

const sparseTable = `{"female": {"height": {
	"0": {"L": 1, "M": 49, "S": 0.04},
	"6": {"L": 1, "M": 66, "S": 0.035},
	"12": {"L": 1, "M": 74, "S": 0.035}
}}}`

func TestLookup_ExactPolicyHasNoInterpolation(t *testing.T) {
	tbl, err := Load(strings.NewReader(sparseTable))
	require.NoError(t, err)

	_, ok := tbl.Lookup(Female, Height, 7)
	assert.False(t, ok)

	lms, ok := tbl.Lookup(Female, Height, 6)
	require.True(t, ok)
	assert.Equal(t, 66.0, lms.M)
}

func TestLookup_NearestPolicy(t *testing.T) {
	base, err := Load(strings.NewReader(sparseTable))
	require.NoError(t, err)
	tbl := base.WithPolicy(NearestAge)

	tests := []struct {
		age   int
		wantM float64
	}{
		{age: 2, wantM: 49},
		{age: 3, wantM: 49}, // tie resolves to the younger age
		{age: 4, wantM: 66},
		{age: 10, wantM: 74},
		{age: 40, wantM: 74},
	}
	for _, tt := range tests {
		lms, ok := tbl.Lookup(Female, Height, tt.age)
		require.True(t, ok, "age %d", tt.age)
		assert.Equal(t, tt.wantM, lms.M, "age %d", tt.age)
	}

	// The base view keeps its exact policy.
	_, ok := base.Lookup(Female, Height, 4)
	assert.False(t, ok)
	assert.Equal(t, NearestAge, tbl.Policy())
}

func TestAges_ReturnsCopy(t *testing.T) {
	tbl, err := Load(strings.NewReader(sparseTable))
	require.NoError(t, err)

	ages := tbl.Ages(Female, Height)
	assert.Equal(t, []int{0, 6, 12}, ages)
	ages[0] = 99
	assert.Equal(t, []int{0, 6, 12}, tbl.Ages(Female, Height))
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"bad json":    `{`,
		"bad sex":     `{"other": {"height": {"0": {"L": 1, "M": 49, "S": 0.04}}}}`,
		"bad measure": `{"male": {"bmi": {"0": {"L": 1, "M": 49, "S": 0.04}}}}`,
		"bad age":     `{"male": {"height": {"zero": {"L": 1, "M": 49, "S": 0.04}}}}`,
		"zero median": `{"male": {"height": {"0": {"L": 1, "M": 0, "S": 0.04}}}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestParseHelpers(t *testing.T) {
	s, ok := ParseSex("female")
	assert.True(t, ok)
	assert.Equal(t, Female, s)
	_, ok = ParseSex("x")
	assert.False(t, ok)
	assert.False(t, SexUnknown.Valid())

	m, ok := ParseMeasure("weight")
	assert.True(t, ok)
	assert.Equal(t, Weight, m)

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ExactAge, p)
	_, err = ParsePolicy("linear")
	assert.Error(t, err)
}
