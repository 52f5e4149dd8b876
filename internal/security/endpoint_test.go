package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEndpointURLRejectsInternalTargets(t *testing.T) {
	cases := []string{
		"ftp://bucket.example.com",
		"https://",
		"http://localhost:9000",
		"https://METADATA.GOOGLE.INTERNAL",
		"http://127.0.0.1:9000",
		"http://10.0.12.4",
		"http://192.168.1.20:9000",
		"http://169.254.169.254/latest/meta-data",
		"http://0.0.0.0",
	}
	for _, raw := range cases {
		err := ValidateEndpointURL(raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrUnsafeEndpoint, raw)
	}
}

func TestValidateEndpointURLAllowsPublicLiterals(t *testing.T) {
	// Public IP literal: validated without DNS.
	assert.NoError(t, ValidateEndpointURL("https://8.8.8.8"))
	assert.NoError(t, ValidateEndpointURL("http://8.8.8.8:9000"))
}
