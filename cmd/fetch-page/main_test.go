package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/operately/pagedata/internal/adapters/operatelyapi"
	"github.com/operately/pagedata/internal/domain"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *CLI {
	t.Helper()

	var cli CLI
	parser, err := kong.New(&cli)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli
}

func decodeResults(t *testing.T, output []byte) []fetchResult {
	t.Helper()

	results := []fetchResult{}
	decoder := json.NewDecoder(bytes.NewReader(output))
	for decoder.More() {
		var result fetchResult
		require.NoError(t, decoder.Decode(&result))
		results = append(results, result)
	}
	return results
}

func TestParse(t *testing.T) {
	t.Setenv("OPERATELY_API_URL", "")
	t.Setenv("OPERATELY_API_TOKEN", "")

	cli := parse(t, "goal", "goal-1", "--twice", "--timeout", "3s")
	require.Equal(t, "goal", cli.Page)
	require.Equal(t, "goal-1", cli.ID)
	require.True(t, cli.Twice)
	require.False(t, cli.Refresh)
	require.Equal(t, 3*time.Second, cli.Timeout)
	require.Empty(t, cli.APIURL)

	var invalid CLI
	parser, err := kong.New(&invalid)
	require.NoError(t, err)
	_, err = parser.Parse([]string{"dashboard"})
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("second fetch is served from the cache", func(t *testing.T) {
		t.Parallel()

		cli := &CLI{Page: "goal", ID: "goal-1", Twice: true, Timeout: time.Second}
		var stdout bytes.Buffer

		err := cli.run(t.Context(), operatelyapi.NewFixtureAPI(), &stdout, false)
		require.NoError(t, err)

		results := decodeResults(t, stdout.Bytes())
		require.Len(t, results, 2)
		for _, result := range results {
			require.Equal(t, "v3-GoalPage-goal-1", result.Key)
			require.Equal(t, uint64(1), result.Version)
		}
	})

	t.Run("refresh only applies to the first fetch", func(t *testing.T) {
		t.Parallel()

		cli := &CLI{Page: "company", Twice: true, Refresh: true, Timeout: time.Second}
		var stdout bytes.Buffer

		err := cli.run(t.Context(), operatelyapi.NewFixtureAPI(), &stdout, false)
		require.NoError(t, err)

		results := decodeResults(t, stdout.Bytes())
		require.Len(t, results, 2)
		require.Equal(t, uint64(1), results[1].Version)
	})

	t.Run("every page", func(t *testing.T) {
		t.Parallel()

		for page, id := range map[string]string{
			"goal":     "goal-2",
			"project":  "project-1",
			"space":    "space-1",
			"company":  "",
			"work-map": "person-1",
		} {
			cli := &CLI{Page: page, ID: id, Timeout: time.Second}
			var stdout bytes.Buffer

			err := cli.run(t.Context(), operatelyapi.NewFixtureAPI(), &stdout, false)
			require.NoError(t, err, page)
			require.Len(t, decodeResults(t, stdout.Bytes()), 1, page)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		cli := &CLI{Page: "goal", Timeout: time.Second}
		err := cli.run(t.Context(), operatelyapi.NewFixtureAPI(), &bytes.Buffer{}, false)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		cli := &CLI{Page: "project", ID: "project-404", Timeout: time.Second}
		err := cli.run(t.Context(), operatelyapi.NewFixtureAPI(), &bytes.Buffer{}, false)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
