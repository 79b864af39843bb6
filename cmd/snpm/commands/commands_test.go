package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/am"
	"github.com/teranos/snpm/version"
	"gopkg.in/yaml.v3"
)

func TestMarshalConfig_Formats(t *testing.T) {
	cfg := am.DefaultConfig()

	data, err := marshalConfig(cfg, "toml")
	require.NoError(t, err)
	var fromTOML am.Config
	require.NoError(t, toml.Unmarshal(data, &fromTOML))
	assert.Equal(t, cfg.Server.Port, fromTOML.Server.Port)

	data, err = marshalConfig(cfg, "json")
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	data, err = marshalConfig(cfg, "yaml")
	require.NoError(t, err)
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Contains(t, fromYAML, "fetch")

	_, err = marshalConfig(cfg, "ini")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestConfigInit_WritesAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	configInitCmd.SetOut(&out)
	t.Cleanup(func() { configForce = false })

	require.NoError(t, runConfigInit(configInitCmd, []string{dir}))
	path := filepath.Join(dir, am.ProjectConfigName)
	assert.Contains(t, out.String(), path)

	cfg, err := am.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, am.DefaultConfig().Build.Script, cfg.Build.Script)

	assert.Error(t, runConfigInit(configInitCmd, []string{dir}))

	configForce = true
	require.NoError(t, runConfigInit(configInitCmd, []string{dir}))
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)
}

func TestVersionCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	require.NoError(t, VersionCmd.Flags().Set("json", "true"))
	t.Cleanup(func() { VersionCmd.Flags().Set("json", "false") })

	require.NoError(t, VersionCmd.RunE(VersionCmd, nil))

	var info version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}
