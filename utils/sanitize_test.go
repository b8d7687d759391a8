package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsScript(t *testing.T) {
	out := Sanitize(`hello <script>alert(1)</script><b>world</b>`)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<b>world</b>")
}

func TestSanitizeTextStripsAllMarkup(t *testing.T) {
	assert.Equal(t, "go concurrency", SanitizeText(`<b>go</b> <a href="x">concurrency</a>`))
}
