package agentapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *agentapi.OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := agentapi.NewOpenAIClient(agentapi.Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
	})
	require.NoError(t, err)
	return client
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := agentapi.NewOpenAIClient(agentapi.Config{})
	assert.Error(t, err)
}

func TestListAgents_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/assistants", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"object":   "list",
				"data":     []any{map[string]any{"id": "asst_1", "name": "one", "model": "gpt-4o"}},
				"has_more": true,
				"last_id":  "asst_1",
			})
			return
		}
		assert.Equal(t, "asst_1", r.URL.Query().Get("after"))
		writeJSON(w, http.StatusOK, map[string]any{
			"object":   "list",
			"data":     []any{map[string]any{"id": "asst_2", "name": "two", "model": "gpt-4o"}},
			"has_more": false,
			"last_id":  "asst_2",
		})
	})

	agents, err := newTestClient(t, mux).ListAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Agent{
		{ID: "asst_1", Name: "one", Model: "gpt-4o"},
		{ID: "asst_2", Name: "two", Model: "gpt-4o"},
	}, agents)
}

func TestCreateMessage_SendsAttachment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "thread_1", r.PathValue("thread"))

		var body struct {
			Role        string `json:"role"`
			Content     string `json:"content"`
			Attachments []struct {
				FileID string `json:"file_id"`
				Tools  []struct {
					Type string `json:"type"`
				} `json:"tools"`
			} `json:"attachments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user", body.Role)
		assert.Equal(t, "Plot sales", body.Content)
		require.Len(t, body.Attachments, 1)
		assert.Equal(t, "file-1", body.Attachments[0].FileID)
		require.Len(t, body.Attachments[0].Tools, 1)
		assert.Equal(t, "code_interpreter", body.Attachments[0].Tools[0].Type)

		writeJSON(w, http.StatusOK, map[string]any{"id": "msg_1", "object": "thread.message"})
	})

	id, err := newTestClient(t, mux).CreateMessage(context.Background(), "thread_1", model.MessageRequest{
		Role:    model.RoleUser,
		Content: "Plot sales",
		Attachments: []model.Attachment{
			{FileID: "file-1", Tools: []model.ToolCapability{model.ToolCodeInterpreter}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", id)
}

func TestGetRun_MapsStateErrorAndUsage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           r.PathValue("run"),
			"thread_id":    r.PathValue("thread"),
			"assistant_id": "asst_1",
			"status":       "failed",
			"last_error":   map[string]any{"code": "rate_limit_exceeded", "message": "quota"},
			"usage":        map[string]any{"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14},
		})
	})

	snap, err := newTestClient(t, mux).GetRun(context.Background(), "thread_1", "run_1")
	require.NoError(t, err)

	assert.Equal(t, "run_1", snap.ID)
	assert.Equal(t, "thread_1", snap.ThreadID)
	assert.Equal(t, model.RunStateFailed, snap.State)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, "rate_limit_exceeded", snap.LastError.Code)
	assert.Equal(t, model.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, model.UsageOf(snap))
}

func TestListMessages_MapsBlocks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		assert.Equal(t, "run_1", r.URL.Query().Get("run_id"))

		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data": []any{
				map[string]any{
					"id":         "msg_2",
					"thread_id":  "thread_1",
					"role":       "assistant",
					"run_id":     "run_1",
					"created_at": 200,
					"content": []any{
						map[string]any{
							"type": "text",
							"text": map[string]any{
								"value": "Total is 9【4:0†source】",
								"annotations": []any{map[string]any{
									"type":          "file_citation",
									"text":          "【4:0†source】",
									"file_citation": map[string]any{"file_id": "file-src"},
								}},
							},
						},
						map[string]any{"type": "image_file", "image_file": map[string]any{"file_id": "file-img"}},
						map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://example.com/x.png"}},
					},
				},
			},
			"has_more": false,
		})
	})

	messages, err := newTestClient(t, mux).ListMessages(context.Background(), "thread_1", agentapi.ListMessagesOptions{
		Order: agentapi.OrderNewestFirst,
		RunID: "run_1",
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)

	msg := messages[0]
	assert.Equal(t, "run_1", msg.RunID)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, int64(200), msg.CreatedAt)
	require.Len(t, msg.Blocks, 3)

	assert.Equal(t, model.BlockKindText, msg.Blocks[0].Kind)
	assert.Equal(t, "Total is 9【4:0†source】", msg.Blocks[0].Text.Value)
	assert.Equal(t, []model.Citation{{Type: "file_citation", Text: "【4:0†source】", FileID: "file-src"}}, msg.Blocks[0].Text.Citations)

	assert.Equal(t, model.BlockKindImage, msg.Blocks[1].Kind)
	assert.Equal(t, "file-img", msg.Blocks[1].Image.FileID)

	assert.Equal(t, model.BlockKind("image_url"), msg.Blocks[2].Kind)
	assert.Nil(t, msg.Blocks[2].Text)
	assert.Nil(t, msg.Blocks[2].Image)
}

func TestUploadAndDownloadFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "assistants", r.FormValue("purpose"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "sales.csv", header.Filename)
		assert.Equal(t, "a,b\n", string(data))

		writeJSON(w, http.StatusOK, map[string]any{"id": "file-up", "object": "file", "bytes": len(data)})
	})
	mux.HandleFunc("GET /v1/files/{id}/content", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\x89PNG-bytes-" + r.PathValue("id")))
	})

	client := newTestClient(t, mux)

	id, err := client.UploadFile(context.Background(), "sales.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "file-up", id)

	data, err := client.GetFileContent(context.Background(), "file-img")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG-bytes-file-img", string(data))
}

func TestErrors_CarryStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusTooManyRequests, "Rate limit reached")
	})
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusBadRequest, "Invalid file format")
	})
	mux.HandleFunc("DELETE /v1/threads/{thread}", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusNotFound, "No thread found")
	})
	mux.HandleFunc("DELETE /v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		apiError(w, http.StatusNotFound, "No such File object")
	})

	client := newTestClient(t, mux)

	_, err := client.CreateRun(context.Background(), "thread_1", "asst_1")
	te, ok := agentapi.AsTransportError(err)
	require.True(t, ok, "%v", err)
	assert.True(t, te.RateLimited())
	assert.False(t, te.Rejected())
	assert.Equal(t, "create_run", te.Op)

	_, err = client.UploadFile(context.Background(), "x.exe", []byte{1})
	te, ok = agentapi.AsTransportError(err)
	require.True(t, ok, "%v", err)
	assert.True(t, te.Rejected())

	assert.NoError(t, client.DeleteThread(context.Background(), "thread_gone"))
	assert.NoError(t, client.DeleteFile(context.Background(), "file-gone"))
}
