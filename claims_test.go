package sharetoken

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestClaimSet_MarshalKeepsOrder(t *testing.T) {
	set := ClaimSet{
		{Name: "zeta", Value: "1"},
		{Name: "alpha", Value: "2"},
		{Name: "mid", Value: "<tag> & \"quote\""},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)

	var back ClaimSet
	require.NoError(t, json.Unmarshal(raw, &back))
	require.True(t, set.Equal(back), "got %v", back)
	require.Equal(t, []string{"zeta", "alpha", "mid"}, back.Names())
}

func TestClaimSet_EmptyObject(t *testing.T) {
	raw, err := json.Marshal(ClaimSet{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(raw))

	var back ClaimSet
	require.NoError(t, json.Unmarshal([]byte(" { } "), &back))
	require.NotNil(t, back)
	require.Equal(t, 0, back.Len())
}

func TestClaimSet_UnmarshalRejects(t *testing.T) {
	cases := map[string]string{
		"array":          `["a"]`,
		"string":         `"a"`,
		"bool value":     `{"a":true}`,
		"null value":     `{"a":null}`,
		"nested":         `{"a":["b"]}`,
		"duplicate":      `{"a":"1","a":"2"}`,
		"empty name":     `{"":"x"}`,
		"missing comma":  `{"a":"1" "b":"2"}`,
		"trailing comma": `{"a":"1",}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var set ClaimSet
			require.Error(t, set.UnmarshalJSON([]byte(raw)))
			require.Nil(t, set)
		})
	}
}

func TestClaimSet_Accessors(t *testing.T) {
	set := silvaClaims()

	v, ok := set.Get(FieldFullName)
	require.True(t, ok)
	require.Equal(t, "A. Silva", v)
	_, ok = set.Get(FieldHash)
	require.False(t, ok)

	require.Equal(t, map[string]string{FieldFullName: "A. Silva", FieldIDNumber: "X123"}, set.Map())

	clone := set.Clone()
	clone[0].Value = "changed"
	require.Equal(t, "A. Silva", set[0].Value)

	reordered := ClaimSet{set[1], set[0]}
	require.False(t, set.Equal(reordered))
	require.Nil(t, ClaimSet(nil).Clone())
}
