package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductURL(t *testing.T) {
	assert.Equal(t, "https://www.noon.com/saudi-en/N123ABC/p/",
		ProductURL("https://www.noon.com/saudi-en/%s/p/", "N123ABC"))
	assert.Equal(t, "https://shop.test/p/a%2Fb", ProductURL("https://shop.test/p/%s", "a/b"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://www.noon.com/saudi-en/N1/p/")
	require.NoError(t, err)

	abs, err := ToAbsoluteURL(base, "/images/n1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://www.noon.com/images/n1.jpg", abs)

	abs, err = ToAbsoluteURL(base, "https://cdn.test/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/x.jpg", abs)
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "en-SA,en;q=0.9,ar;q=0.8", AcceptLanguage("sa"))
	assert.Equal(t, "en;q=0.9", AcceptLanguage(""))
}
