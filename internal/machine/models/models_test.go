package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gumball/pkg/domain-errors"
)

func TestConfigClone(t *testing.T) {
	pt := ident(2)
	cfg := NewConfig(ident(1), 254, 10)
	cfg.PassToken = &pt
	cfg.AllowList = []AllowListEntry{{User: ident(3), Quota: 5}}

	cp := cfg.Clone()
	require.Equal(t, cfg, cp)

	// Mutating the clone must not reach the original.
	cp.AllowList[0].Quota = 0
	*cp.PassToken = ident(9)
	assert.Equal(t, uint8(5), cfg.AllowList[0].Quota)
	assert.Equal(t, pt, *cfg.PassToken)
}

func TestFindAllowedFirstMatch(t *testing.T) {
	cfg := NewConfig(ident(1), 254, 10)
	cfg.AllowList = []AllowListEntry{
		{User: ident(2), Quota: 0},
		{User: ident(2), Quota: 7},
	}

	entry := cfg.FindAllowed(ident(2))
	require.NotNil(t, entry)
	// Duplicates resolve to the earliest entry even when a later one has quota.
	assert.Equal(t, uint8(0), entry.Quota)

	assert.Nil(t, cfg.FindAllowed(ident(3)))
}

func TestExhausted(t *testing.T) {
	cfg := NewConfig(ident(1), 254, 2)
	assert.False(t, cfg.Exhausted())
	cfg.CurrentSupply = 2
	assert.True(t, cfg.Exhausted())
}

func TestMetadataValidate(t *testing.T) {
	valid := Metadata{Name: "Item", Symbol: "ITM", URI: "https://example.com/1.json"}
	require.NoError(t, valid.Validate())

	cases := map[string]Metadata{
		"missing name":    {URI: valid.URI},
		"name too long":   {Name: strings.Repeat("a", 33), URI: valid.URI},
		"symbol too long": {Name: "Item", Symbol: strings.Repeat("s", 11), URI: valid.URI},
		"missing uri":     {Name: "Item"},
		"uri too long":    {Name: "Item", URI: strings.Repeat("u", 201)},
	}
	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			err := md.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
		})
	}
}
