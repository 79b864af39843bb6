package publish

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/errors"
)

func TestParseReference_AllForms(t *testing.T) {
	owners := []string{"acme", "Acme-Corp", "a_b", "x1"}
	repos := []string{"widget", "widget.js", "my-lib", "R2"}
	forms := []string{
		"https://github.com/%s/%s",
		"https://github.com/%s/%s.git",
		"https://github.com/%s/%s/",
		"git@github.com:%s/%s",
		"git@github.com:%s/%s.git",
		"git+https://github.com/%s/%s.git",
		"git+ssh://git@github.com/%s/%s.git",
	}

	for _, owner := range owners {
		for _, repo := range repos {
			for _, form := range forms {
				url := fmt.Sprintf(form, owner, repo)
				ref, err := ParseReference(url)
				require.NoError(t, err, url)
				assert.Equal(t, Reference{Owner: owner, Repo: repo}, ref, url)
			}
		}
	}
}

func TestParseReference_Invalid(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"other host", "https://gitlab.com/acme/widget"},
		{"no owner", "https://github.com/widget"},
		{"ssh without owner", "git@github.com:widget.git"},
		{"empty repo", "https://github.com/acme/.git"},
		{"dot dot repo", "https://github.com/acme/.."},
		{"query in repo", "https://github.com/acme/widget?x=1"},
		{"space in owner", "https://github.com/ac me/widget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReference(tt.url)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidReference))
			assert.True(t, errors.IsClientError(err))
			assert.Equal(t, MessageInvalidURL, err.Error())
		})
	}
}

func TestReference_String(t *testing.T) {
	assert.Equal(t, "acme/widget", Reference{Owner: "acme", Repo: "widget"}.String())
}
