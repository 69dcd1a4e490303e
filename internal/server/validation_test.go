package server

import (
	"strings"
	"testing"

	"outsider/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	name, err := validateName("  Zoë   the  Great ")
	require.NoError(t, err)
	assert.Equal(t, "Zoë the Great", name)

	for _, bad := range []string{"", "   ", "<b>bold</b>", "abcdefghijklmnopqrstu"} {
		_, err := validateName(bad)
		assert.Error(t, err, "name %q", bad)
	}
	_, err = validateName("abcdefghijklmnopqrst")
	assert.NoError(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "internal error", errorMessage(assert.AnError))
}

func TestGuessName(t *testing.T) {
	longName := "Station " + strings.Repeat("x", maxGuessLength)
	catalog, err := scenario.NewCatalog([]scenario.Scenario{
		{Name: "Base: Moon/2", Roles: []string{"Pilot", "Medic", "Cook"}},
		{Name: longName, Roles: []string{"Pilot", "Medic", "Cook"}},
	})
	require.NoError(t, err)
	s := &Server{catalog: catalog}

	cases := map[string]struct {
		raw  string
		want string
		ok   bool
	}{
		"catalog name with punctuation": {raw: "  Base: Moon/2 ", want: "Base: Moon/2", ok: true},
		"inner spacing kept":            {raw: "Base:  Moon/2", want: "Base:  Moon/2", ok: true},
		"case kept":                     {raw: "base: moon/2", want: "base: moon/2", ok: true},
		"long catalog name":             {raw: longName, want: longName, ok: true},
		"long unknown name":             {raw: strings.Repeat("y", maxGuessLength+1), ok: false},
		"blank":                         {raw: "   ", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := s.guessName(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
