package git

import (
	"testing"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher() func(string) bool {
	matcher := gitignore.CompileIgnoreLines(defaultIgnorePatterns()...)
	return matcher.MatchesPath
}

func TestURLToDirectoryName(t *testing.T) {
	client := NewClient("", "")

	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "SSH形式",
			url:  "git@github.com:user/portfolio-docs.git",
			want: "github.com/user/portfolio-docs",
		},
		{
			name: "HTTPS形式",
			url:  "https://github.com/user/portfolio-docs.git",
			want: "github.com/user/portfolio-docs",
		},
		{
			name: ".gitなしのHTTPS形式",
			url:  "https://github.com/user/portfolio-docs",
			want: "github.com/user/portfolio-docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.URLToDirectoryName(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultIgnorePatternsExcludeCommonPaths(t *testing.T) {
	matcher := newTestMatcher()

	assert.True(t, matcher("node_modules/react/index.js"))
	assert.True(t, matcher(".env"))
	assert.True(t, matcher("assets/logo.png"))
	assert.True(t, matcher("server.key"))
	assert.False(t, matcher("README.md"))
	assert.False(t, matcher("docs/profile.md"))
}
