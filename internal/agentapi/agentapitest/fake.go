// Package agentapitest provides an in-memory agentapi.Client for tests.
package agentapitest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/capitalize-ai/file-analysis/internal/agentapi"
	"github.com/capitalize-ai/file-analysis/internal/model"
)

// Op names a Client method for failure injection and call counting.
type Op string

const (
	OpListAgents     Op = "ListAgents"
	OpCreateAgent    Op = "CreateAgent"
	OpDeleteAgent    Op = "DeleteAgent"
	OpCreateThread   Op = "CreateThread"
	OpDeleteThread   Op = "DeleteThread"
	OpUploadFile     Op = "UploadFile"
	OpDeleteFile     Op = "DeleteFile"
	OpGetFileContent Op = "GetFileContent"
	OpCreateMessage  Op = "CreateMessage"
	OpCreateRun      Op = "CreateRun"
	OpGetRun         Op = "GetRun"
	OpListMessages   Op = "ListMessages"
)

// RunScript drives one submitted run. Each GetRun returns the next entry of
// States and repeats the last one once exhausted. Reply is appended to the
// thread as assistant messages the first time a completed state is returned.
type RunScript struct {
	States []model.RunSnapshot
	Reply  []model.Message
}

// Completed returns a script that goes queued, in_progress, completed and
// replies with blocks.
func Completed(blocks ...model.ContentBlock) RunScript {
	return RunScript{
		States: []model.RunSnapshot{
			{State: model.RunStateQueued},
			{State: model.RunStateInProgress},
			{State: model.RunStateCompleted},
		},
		Reply: []model.Message{{Blocks: blocks}},
	}
}

// Terminal returns a script that reaches state after one in_progress poll.
func Terminal(state model.RunState, lastError *model.RemoteError) RunScript {
	return RunScript{
		States: []model.RunSnapshot{
			{State: model.RunStateInProgress},
			{State: state, LastError: lastError},
		},
	}
}

// Status returns a TransportError with the given HTTP status.
func Status(op Op, code int) error {
	return &agentapi.TransportError{
		Op:         string(op),
		StatusCode: code,
		Err:        errors.New(http.StatusText(code)),
	}
}

type run struct {
	threadID string
	script   RunScript
	next     int
	replied  bool
}

// Client is a scripted in-memory agentapi.Client. Exported fields may be set
// before use; afterwards read them only through the accessor methods.
type Client struct {
	mu sync.Mutex

	Agents  []model.Agent
	Threads map[string][]model.Message
	Files   map[string][]byte
	Scripts []RunScript
	FailOn  map[Op]error

	calls map[Op]int
	runs  map[string]*run
	seq   int
	clock int64
}

var _ agentapi.Client = (*Client)(nil)

// New returns an empty fake client.
func New() *Client {
	return &Client{
		Threads: make(map[string][]model.Message),
		Files:   make(map[string][]byte),
		FailOn:  make(map[Op]error),
		calls:   make(map[Op]int),
		runs:    make(map[string]*run),
	}
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Messages returns a copy of a thread's messages, oldest first.
func (c *Client) Messages(threadID string) []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.Threads[threadID]...)
}

// HasThread reports whether threadID exists.
func (c *Client) HasThread(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Threads[threadID]
	return ok
}

// HasFile reports whether fileID exists.
func (c *Client) HasFile(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Files[fileID]
	return ok
}

// AddScript queues a script for the next CreateRun.
func (c *Client) AddScript(scripts ...RunScript) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Scripts = append(c.Scripts, scripts...)
}

// Fail makes every later call of op return err. A nil err clears it.
func (c *Client) Fail(op Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.FailOn, op)
		return
	}
	c.FailOn[op] = err
}

// begin counts the call and returns an injected failure; c.mu must be held.
func (c *Client) begin(op Op) error {
	c.calls[op]++
	return c.FailOn[op]
}

func (c *Client) newID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s_%03d", prefix, c.seq)
}

func (c *Client) ListAgents(ctx context.Context) ([]model.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpListAgents); err != nil {
		return nil, err
	}
	return append([]model.Agent(nil), c.Agents...), nil
}

func (c *Client) CreateAgent(ctx context.Context, spec model.AgentSpec) (*model.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpCreateAgent); err != nil {
		return nil, err
	}
	agent := model.Agent{ID: c.newID("asst"), Name: spec.Name, Model: spec.Model}
	c.Agents = append(c.Agents, agent)
	return &agent, nil
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpDeleteAgent); err != nil {
		return err
	}
	for i, a := range c.Agents {
		if a.ID == agentID {
			c.Agents = append(c.Agents[:i], c.Agents[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpCreateThread); err != nil {
		return "", err
	}
	id := c.newID("thread")
	c.Threads[id] = nil
	return id, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpDeleteThread); err != nil {
		return err
	}
	delete(c.Threads, threadID)
	return nil
}

func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpUploadFile); err != nil {
		return "", err
	}
	id := c.newID("file")
	c.Files[id] = append([]byte(nil), data...)
	return id, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpDeleteFile); err != nil {
		return err
	}
	delete(c.Files, fileID)
	return nil
}

func (c *Client) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpGetFileContent); err != nil {
		return nil, err
	}
	data, ok := c.Files[fileID]
	if !ok {
		return nil, Status(OpGetFileContent, http.StatusNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (c *Client) CreateMessage(ctx context.Context, threadID string, req model.MessageRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpCreateMessage); err != nil {
		return "", err
	}
	if _, ok := c.Threads[threadID]; !ok {
		return "", Status(OpCreateMessage, http.StatusNotFound)
	}
	msg := model.Message{
		ID:          c.newID("msg"),
		ThreadID:    threadID,
		Role:        req.Role,
		Blocks:      []model.ContentBlock{model.TextBlock(req.Content)},
		Attachments: req.Attachments,
	}
	c.append(threadID, msg)
	return msg.ID, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpCreateRun); err != nil {
		return "", err
	}
	if _, ok := c.Threads[threadID]; !ok {
		return "", Status(OpCreateRun, http.StatusNotFound)
	}

	script := RunScript{States: []model.RunSnapshot{{State: model.RunStateCompleted}}}
	if len(c.Scripts) > 0 {
		script = c.Scripts[0]
		c.Scripts = c.Scripts[1:]
	}

	id := c.newID("run")
	c.runs[id] = &run{threadID: threadID, script: script}
	return id, nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*model.RunSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpGetRun); err != nil {
		return nil, err
	}
	r, ok := c.runs[runID]
	if !ok || r.threadID != threadID {
		return nil, Status(OpGetRun, http.StatusNotFound)
	}

	idx := r.next
	if idx >= len(r.script.States) {
		idx = len(r.script.States) - 1
	} else {
		r.next++
	}

	snap := model.RunSnapshot{State: model.RunStateQueued}
	if idx >= 0 {
		snap = r.script.States[idx]
	}
	snap.ID = runID
	snap.ThreadID = threadID

	if snap.State == model.RunStateCompleted && !r.replied {
		r.replied = true
		for _, reply := range r.script.Reply {
			reply.ID = c.newID("msg")
			reply.ThreadID = threadID
			reply.RunID = runID
			if reply.Role == "" {
				reply.Role = model.RoleAssistant
			}
			c.append(threadID, reply)
		}
	}

	return &snap, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, opts agentapi.ListMessagesOptions) ([]model.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpListMessages); err != nil {
		return nil, err
	}
	stored, ok := c.Threads[threadID]
	if !ok {
		return nil, Status(OpListMessages, http.StatusNotFound)
	}

	var out []model.Message
	for _, m := range stored {
		if opts.RunID != "" && m.RunID != opts.RunID {
			continue
		}
		out = append(out, m)
	}

	if opts.Order != agentapi.OrderOldestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// append stores msg with a strictly increasing creation time; c.mu must be held.
func (c *Client) append(threadID string, msg model.Message) {
	c.clock++
	msg.CreatedAt = c.clock
	c.Threads[threadID] = append(c.Threads[threadID], msg)
}
