package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	var conf Config
	conf.RegisterFlags(pflag.NewFlagSet("test", pflag.ContinueOnError))
	assert.Equal(t, "http://localhost:8002", conf.Server.URL)
	require.NoError(t, conf.Validate())

	conf.Server.URL = ""
	assert.ErrorContains(t, conf.Validate(), "server: missing url")

	conf.Server.URL = "http://[::1"
	assert.ErrorContains(t, conf.Validate(), "server: invalid url")
}
