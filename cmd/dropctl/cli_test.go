package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestStatusShowsSupply(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCLI(t, "", "status", "genesis")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Genesis")
	assert.Contains(t, stdout, "13/21 NFT's claimed")
	assert.Contains(t, stdout, "sign in to mint")
}

func TestStatusJSON(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCLI(t, "", "status", "genesis", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"affordance": "not_connected"`)
	assert.Contains(t, stdout, `"claimed": 13`)
}

func TestStatusUnknownSlug(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCLI(t, "", "status", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection not found")
}

func TestClaimAfterApproval(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCLI(t, "y\ny\n", "claim", "genesis")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Connect wallet")
	assert.Contains(t, stdout, "Minting...")
	assert.Contains(t, stdout, "minted token #13")
	assert.Contains(t, stdout, "14/21 NFT's claimed")
}

func TestClaimDeclinedInWallet(t *testing.T) {
	setupEnv(t)

	stdout, _, err := executeCLI(t, "y\nn\n", "claim", "genesis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_rejected")
	assert.Contains(t, stdout, "Claim cancelled in your wallet.")
	assert.Contains(t, stdout, "13/21 NFT's claimed")
}

func TestClaimConnectDeclined(t *testing.T) {
	setupEnv(t)

	_, _, err := executeCLI(t, "n\n", "claim", "genesis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect wallet")
}

type brokenPipe struct{}

func (brokenPipe) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestClaimReportsOutputFailure(t *testing.T) {
	setupEnv(t)

	root := newRootCmd()
	root.SetIn(strings.NewReader(""))
	root.SetOut(brokenPipe{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"claim", "genesis", "--yes"})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestLineWriterKeepsFirstError(t *testing.T) {
	lw := newLineWriter(brokenPipe{})
	first := lw.println("a")
	require.ErrorIs(t, first, io.ErrClosedPipe)
	assert.Equal(t, first, lw.println("b"))
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "collections.toml")
	catalog := `[[collections]]
id = "c1"
slug = "genesis"
title = "Genesis"
address = "0x00000000000000000000000000000000000000A1"

[collections.creator]
name = "Ada"
`
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog), 0o600))

	t.Setenv("DROP_CATALOG_PATH", catalogPath)
	t.Setenv("DROP_CATALOG_DSN", "")
	t.Setenv("CHAIN_CONFIG_PATH", filepath.Join(dir, "chain.json"))
	t.Setenv("CHAIN_RPC_URL", "")
	t.Setenv("CHAIN_PRIVATE_KEY", testKey)
	t.Setenv("CHAIN_KEYSTORE_PATH", "")
}
