package main

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KnightedIT/freshservice-dashboard/internal/pipeline"
)

func TestCommandsRegistered(t *testing.T) {
	expected := []string{"run", "schedule", "check", "config", "version"}
	for _, name := range expected {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}
}

func TestRunCommandFlags(t *testing.T) {
	assert.NotNil(t, runCmd.Flags().Lookup("strict-insert"))
	assert.NotNil(t, runCmd.Flags().Lookup("strict-discovery"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("no-color"))
}

func TestConfigShowRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", cmd.Name())
}

func TestColorizeStatus(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, "ok", colorizeStatus(pipeline.StatusOK))
	assert.Equal(t, "partial", colorizeStatus(pipeline.StatusPartial))
	assert.Equal(t, "failed", colorizeStatus(pipeline.StatusFailed))
}
