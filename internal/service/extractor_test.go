package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/file-analysis/internal/agentapi/agentapitest"
	"github.com/capitalize-ai/file-analysis/internal/artifact"
	"github.com/capitalize-ai/file-analysis/internal/model"
	"github.com/capitalize-ai/file-analysis/pkg/logger"
)

func newTestExtractor(t *testing.T, client *agentapitest.Client) (*Extractor, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewExtractor(client, store, logger.NewNop()), store
}

// completeRun submits and drives one scripted run on threadID to completion.
func completeRun(t *testing.T, client *agentapitest.Client, threadID string, script agentapitest.RunScript) string {
	t.Helper()
	client.AddScript(script)
	runID, err := client.CreateRun(context.Background(), threadID, "asst_1")
	require.NoError(t, err)
	for range script.States {
		_, err := client.GetRun(context.Background(), threadID, runID)
		require.NoError(t, err)
	}
	return runID
}

func TestExtract_StripsCitations(t *testing.T) {
	client := agentapitest.New()
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(
		model.TextBlock("Revenue grew 12%【4:0†source】 year over year[1].",
			model.Citation{Type: "file_citation", Text: "[1]", FileID: "file-abc"}),
	))

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12% year over year.", out.AnswerText)
	assert.Empty(t, out.ImagePaths)
}

func TestExtract_JoinsTextBlocks(t *testing.T) {
	client := agentapitest.New()
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(
		model.TextBlock("first"),
		model.TextBlock("second"),
	))

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", out.AnswerText)
}

func TestExtract_NoAssistantMessage(t *testing.T) {
	client := agentapitest.New()
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.RunScript{
		States: []model.RunSnapshot{{State: model.RunStateCompleted}},
	})

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	assert.Equal(t, "", out.AnswerText)
	assert.NotNil(t, out.ImagePaths)
	assert.Empty(t, out.ImagePaths)
}

func TestExtract_OnlyReadsTheRequestedRun(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-old"] = pngHeader
	threadID := askQuestion(t, client, "first question")
	completeRun(t, client, threadID, agentapitest.Completed(
		model.TextBlock("old answer"),
		model.ImageBlock("file-old"),
	))

	_, err := client.CreateMessage(context.Background(), threadID, BuildMessage("second question", ""))
	require.NoError(t, err)
	runID := completeRun(t, client, threadID, agentapitest.Completed(model.TextBlock("new answer")))

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	assert.Equal(t, "new answer", out.AnswerText)
	assert.Empty(t, out.ImagePaths)
	assert.Zero(t, client.Calls(agentapitest.OpGetFileContent))
}

func TestExtract_ImagesAcrossMessagesAreChronological(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-a"] = append(append([]byte(nil), pngHeader...), 'a')
	client.Files["file-b"] = append(append([]byte(nil), pngHeader...), 'b')
	client.Files["file-c"] = append(append([]byte(nil), pngHeader...), 'c')

	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.RunScript{
		States: []model.RunSnapshot{{State: model.RunStateCompleted}},
		Reply: []model.Message{
			{Blocks: []model.ContentBlock{model.TextBlock("working"), model.ImageBlock("file-a")}},
			{Blocks: []model.ContentBlock{model.TextBlock("final"), model.ImageBlock("file-b"), model.ImageBlock("file-c")}},
		},
	})

	ex, store := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	assert.Equal(t, "final", out.AnswerText)
	require.Len(t, out.ImagePaths, 3)
	for i, want := range []string{"file-a_", "file-b_", "file-c_"} {
		assert.True(t, strings.HasPrefix(filepath.Base(out.ImagePaths[i]), want), out.ImagePaths[i])
		assert.Equal(t, store.Dir(), filepath.Dir(out.ImagePaths[i]))
	}

	data, err := os.ReadFile(out.ImagePaths[2])
	require.NoError(t, err)
	assert.Equal(t, client.Files["file-c"], data)
}

func TestExtract_SameImageTwiceGetsDistinctPaths(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-a"] = pngHeader
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(
		model.ImageBlock("file-a"),
		model.ImageBlock("file-a"),
	))

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	require.Len(t, out.ImagePaths, 2)
	assert.NotEqual(t, out.ImagePaths[0], out.ImagePaths[1])
}

func TestExtract_AnswerComesFromNewestReplyOnly(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-a"] = pngHeader
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.RunScript{
		States: []model.RunSnapshot{{State: model.RunStateCompleted}},
		Reply: []model.Message{
			{Blocks: []model.ContentBlock{model.TextBlock("here is the chart")}},
			{Blocks: []model.ContentBlock{model.ImageBlock("file-a")}},
		},
	})

	ex, _ := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.NoError(t, err)

	assert.Equal(t, "", out.AnswerText)
	assert.Len(t, out.ImagePaths, 1)
}

func TestExtract_FailedDownloadRemovesSavedImages(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-a"] = pngHeader
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(
		model.TextBlock("two charts"),
		model.ImageBlock("file-a"),
		model.ImageBlock("file-missing"),
	))

	ex, store := newTestExtractor(t, client)
	out, err := ex.Extract(context.Background(), threadID, runID)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 2, client.Calls(agentapitest.OpGetFileContent))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "images saved before the failure are removed")
}

func TestExtract_SavesImagesForTenant(t *testing.T) {
	client := agentapitest.New()
	client.Files["file-a"] = pngHeader
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(model.ImageBlock("file-a")))

	ex, store := newTestExtractor(t, client)
	out, err := ex.Extract(WithTenant(context.Background(), "acme"), threadID, runID)
	require.NoError(t, err)
	require.Len(t, out.ImagePaths, 1)

	name := filepath.Base(out.ImagePaths[0])
	got, err := store.Resolve("acme", name)
	require.NoError(t, err)
	assert.Equal(t, out.ImagePaths[0], got)

	_, err = store.Resolve("", name)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestExtract_UnsupportedBlock(t *testing.T) {
	client := agentapitest.New()
	threadID := askQuestion(t, client, "q")
	runID := completeRun(t, client, threadID, agentapitest.Completed(
		model.TextBlock("ok"),
		model.ContentBlock{Kind: model.BlockKind("image_url")},
	))

	ex, _ := newTestExtractor(t, client)
	_, err := ex.Extract(context.Background(), threadID, runID)

	var blockErr *UnsupportedBlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, model.BlockKind("image_url"), blockErr.Kind)
}

func TestRunReplies_UntaggedMessagesUseLatest(t *testing.T) {
	messages := []model.Message{
		{ID: "m3", Role: model.RoleAssistant, Blocks: []model.ContentBlock{model.TextBlock("latest")}},
		{ID: "m2", Role: model.RoleUser},
		{ID: "m1", Role: model.RoleAssistant, Blocks: []model.ContentBlock{model.TextBlock("older")}},
	}

	replies := runReplies(messages, "run_1")
	require.Len(t, replies, 1)
	assert.Equal(t, "m3", replies[0].ID)
}

func TestStripCitations(t *testing.T) {
	tests := []struct {
		name string
		in   model.TextContent
		want string
	}{
		{name: "no markers", in: model.TextContent{Value: "plain"}, want: "plain"},
		{name: "bracket marker", in: model.TextContent{Value: "a【1:2†data.csv】b"}, want: "ab"},
		{
			name: "annotation text",
			in: model.TextContent{
				Value:     "see [0] and [0]",
				Citations: []model.Citation{{Type: "file_path", Text: "[0]"}},
			},
			want: "see  and ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCitations(tt.in))
		})
	}
}
