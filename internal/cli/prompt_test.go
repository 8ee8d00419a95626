package cli

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipePrompter(t *testing.T, input string) (*TermPrompter, *bytes.Buffer) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var out bytes.Buffer
	return NewTermPrompter(r, &out), &out
}

func TestTermPrompter_Prompt(t *testing.T) {
	p, out := newPipePrompter(t, "  admin \nlast")

	got, err := p.Prompt("Username")
	require.NoError(t, err)
	assert.Equal(t, "admin", got)
	assert.Equal(t, "Username: ", out.String())

	got, err = p.Prompt("Again")
	require.NoError(t, err)
	assert.Equal(t, "last", got, "final line without newline")

	_, err = p.Prompt("Empty")
	assert.Error(t, err)
}

func TestTermPrompter_Password(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	p, out := newPipePrompter(t, "")

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	got, err := p.Password("Password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Equal(t, "Password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = p.Password("Password")
	assert.Error(t, err)
}
