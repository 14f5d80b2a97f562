package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkatanacio/bulkdl/auth"
)

func Test_TerminalPrompt_NonTerminalInput(t *testing.T) {
	var out strings.Builder
	prompt := auth.NewTerminalPrompt(strings.NewReader("scientist\r\ns3cret\n"), &out)

	user, pass, err := prompt.Credentials(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "scientist", user)
	assert.Equal(t, "s3cret", pass)
	assert.Equal(t, "Enter Earthdata username: Enter Earthdata password: ", out.String())
}

func Test_TerminalPrompt_PasswordWithoutTrailingNewline(t *testing.T) {
	prompt := auth.NewTerminalPrompt(strings.NewReader("scientist\ns3cret"), &strings.Builder{})

	user, pass, err := prompt.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scientist", user)
	assert.Equal(t, "s3cret", pass)
}

func Test_TerminalPrompt_Errors(t *testing.T) {
	testCases := map[string]struct {
		input string
		ctx   func() context.Context
	}{
		"empty input": {
			input: "",
			ctx:   context.Background,
		},
		"blank username": {
			input: "\nsecret\n",
			ctx:   context.Background,
		},
		"missing password": {
			input: "scientist\n",
			ctx:   context.Background,
		},
		"cancelled": {
			input: "scientist\ns3cret\n",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for scenario, tc := range testCases {
		t.Run(scenario, func(t *testing.T) {
			prompt := auth.NewTerminalPrompt(strings.NewReader(tc.input), &strings.Builder{})

			_, _, err := prompt.Credentials(tc.ctx())
			assert.Error(t, err)
		})
	}
}

func Test_StaticCredentials(t *testing.T) {
	user, pass, err := auth.StaticCredentials{Username: "u", Password: "p"}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)

	_, _, err = auth.StaticCredentials{}.Credentials(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}
