package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeTOML(t, `
listen = "0.0.0.0:4800"
committee = 32
party_id = 7
strategy = "table"

[srs]
transcript = "ceremony.json"
transcript_index = 2

[keystore]
path = "/var/lib/ste/secret.dat"

[session]
gather_timeout = "5s"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:4800", c.Listen)
	require.Equal(t, 32, c.Committee)
	require.Equal(t, 7, c.PartyID)
	require.Equal(t, "table", c.Strategy)
	require.Equal(t, "ceremony.json", c.SRS.Transcript)
	require.Equal(t, 2, c.SRS.TranscriptIndex)
	require.Equal(t, "/var/lib/ste/secret.dat", c.Keystore.Path)
	require.Equal(t, "ste_roster.db", c.Roster.Path, "default kept")
	require.Equal(t, 5*time.Second, c.Session.GatherTimeout.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeTOML(t, "[srs]\ndev = true\n")
	t.Setenv("STE_COMMITTEE", "8")
	t.Setenv("STE_PARTY_ID", "3")
	t.Setenv("STE_LISTEN", "127.0.0.1:0")
	t.Setenv("STE_GATHER_TIMEOUT", "250ms")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, c.Committee)
	require.Equal(t, 3, c.PartyID)
	require.Equal(t, "127.0.0.1:0", c.Listen)
	require.True(t, c.SRS.Dev)
	require.Equal(t, 250*time.Millisecond, c.Session.GatherTimeout.Duration)

	t.Setenv("STE_COMMITTEE", "eight")
	_, err = Load(path)
	require.ErrorContains(t, err, "STE_COMMITTEE")
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "[srs]\ndev = true\n[keystore]\npth = \"x\"\n",
		"not pow2":        "committee = 12\n[srs]\ndev = true\n",
		"committee of 2":  "committee = 2\nparty_id = 1\n[srs]\ndev = true\n",
		"dummy party":     "party_id = 0\n[srs]\ndev = true\n",
		"party too big":   "committee = 4\nparty_id = 4\n[srs]\ndev = true\n",
		"strategy":        "strategy = \"cached\"\n[srs]\ndev = true\n",
		"no srs":          "committee = 4\n",
		"two srs":         "[srs]\ndev = true\npath = \"srs.bin\"\n",
		"bad duration":    "[srs]\ndev = true\n[session]\ngather_timeout = \"soon\"\n",
		"zero duration":   "[srs]\ndev = true\n[session]\ngather_timeout = \"0s\"\n",
		"malformed toml":  "committee = \n",
		"negative index":  "[srs]\ntranscript = \"c.json\"\ntranscript_index = -1\n",
		"empty keystore":  "[srs]\ndev = true\n[keystore]\npath = \"\"\n",
		"empty roster db": "[srs]\ndev = true\n[roster]\npath = \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTOML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("STE_SRS_DEV", "1")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Listen, c.Listen)
}
