package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"crawl", "process", "analyze", "pipeline", "stats"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "jobinsight", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_LogLevelFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestNeedsConfig(t *testing.T) {
	assert.True(t, needsConfig(crawlCmd))
	assert.True(t, needsConfig(statsCmd))

	help := &cobra.Command{Use: "help"}
	assert.False(t, needsConfig(help))

	completion := &cobra.Command{Use: "completion"}
	bash := &cobra.Command{Use: "bash"}
	completion.AddCommand(bash)
	assert.False(t, needsConfig(bash))
}

func TestCrawlCommand_Flags(t *testing.T) {
	flag := crawlCmd.Flags().Lookup("pages")
	require.NotNil(t, flag, "crawl command should have --pages flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"batch-size", "job-id", "reprocess"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s flag", name)
	}
	assert.Equal(t, "false", processCmd.Flags().Lookup("reprocess").DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"show-stats", "xlsx", "json"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s flag", name)
	}
}

func TestPipelineCommand_Flags(t *testing.T) {
	assert.NotNil(t, pipelineCmd.Flags().Lookup("pages"))
	assert.NotNil(t, pipelineCmd.Flags().Lookup("xlsx"))
}
