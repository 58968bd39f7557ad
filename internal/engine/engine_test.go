package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/botforge/flowengine/internal/domain"
	"github.com/botforge/flowengine/internal/flow"
)

type fakeBots struct {
	tokens map[string]string
}

func (f *fakeBots) Token(_ context.Context, botID string) (string, error) {
	token, ok := f.tokens[botID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBotNotFound, botID)
	}
	return token, nil
}

type fakeGraph struct {
	nodes map[string]*domain.Node
	entry *domain.Node
	edges map[string]*domain.Edge
}

func edgeKey(source, handle string) string { return source + "|" + handle }

func (f *fakeGraph) NodeByID(_ context.Context, id string) (*domain.Node, error) {
	return f.nodes[id], nil
}

func (f *fakeGraph) NodeByEntry(_ context.Context, _ string) (*domain.Node, error) {
	return f.entry, nil
}

func (f *fakeGraph) Edge(_ context.Context, sourceID, handle string) (*domain.Edge, error) {
	return f.edges[edgeKey(sourceID, handle)], nil
}

type fakeVariables struct {
	values  map[string]string
	upserts []string
}

func (f *fakeVariables) Snapshot(_ context.Context, _ string, _ int64) (flow.Vars, error) {
	snapshot := make(flow.Vars, len(f.values))
	for k, v := range f.values {
		snapshot[k] = v
	}
	return snapshot, nil
}

func (f *fakeVariables) Upsert(_ context.Context, _ string, _ int64, name, value string) error {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[name] = value
	f.upserts = append(f.upserts, name+"="+value)
	return nil
}

type fakeSessions struct {
	current *domain.Session
	writes  []domain.Session
}

func (f *fakeSessions) Get(_ context.Context, _ string, _ int64) (*domain.Session, error) {
	return f.current, nil
}

func (f *fakeSessions) Upsert(_ context.Context, s *domain.Session) error {
	copied := *s
	f.current = &copied
	f.writes = append(f.writes, copied)
	return nil
}

type fakeProducts struct {
	products map[string]*domain.Product
}

func (f *fakeProducts) ByID(_ context.Context, id string) (*domain.Product, error) {
	return f.products[id], nil
}

type sentBatch struct {
	userID   int64
	blocks   []domain.ContentBlock
	keyboard []domain.Button
}

type fakeOutbox struct {
	batches  []sentBatch
	invoices []*domain.Product
	// failAt makes the Nth SendContentBlocks call (1-based) return an error.
	failAt int
}

var errTransport = errors.New("telegram: Bad Request: chat not found")

func (f *fakeOutbox) SendContentBlocks(_ context.Context, _ string, userID int64, blocks []domain.ContentBlock, keyboard []domain.Button) error {
	f.batches = append(f.batches, sentBatch{userID: userID, blocks: blocks, keyboard: keyboard})
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return errTransport
	}
	return nil
}

func (f *fakeOutbox) SendInvoice(_ context.Context, _ string, _ int64, product *domain.Product) error {
	f.invoices = append(f.invoices, product)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testBotID  = "bot-1"
	testUserID = int64(77)
)

func textNode(id, text string) *domain.Node {
	return &domain.Node{
		ID:     id,
		BotID:  testBotID,
		Type:   domain.NodeMessage,
		Blocks: []domain.ContentBlock{{ID: id + "-b1", Type: domain.BlockText, Content: text}},
	}
}

func newTestEngine(graph *fakeGraph, vars *fakeVariables, sessions *fakeSessions, products *fakeProducts, outbox *fakeOutbox) *Engine {
	if vars == nil {
		vars = &fakeVariables{}
	}
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	if products == nil {
		products = &fakeProducts{}
	}

	return New(Config{
		Bots:      &fakeBots{tokens: map[string]string{testBotID: "token-1"}},
		Graph:     graph,
		Variables: vars,
		Sessions:  sessions,
		Products:  products,
		Outbox:    outbox,
		Log:       testLogger(),
	})
}

func TestHandleUpdate_AutoAdvanceChain(t *testing.T) {
	// A(message) -> B(message) -> C(input): A and B dispatch, C pauses the
	// chain before sending would wait on the next update.
	inputNode := &domain.Node{
		ID:            "C",
		BotID:         testBotID,
		Type:          domain.NodeInput,
		Blocks:        []domain.ContentBlock{{ID: "C-b1", Type: domain.BlockText, Content: "How old are you?"}},
		InputVariable: "age",
	}
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{
			"A": textNode("A", "hello"),
			"B": textNode("B", "world"),
			"C": inputNode,
		},
		entry: textNode("A", "hello"),
		edges: map[string]*domain.Edge{
			edgeKey("A", domain.HandleDefault): {SourceID: "A", TargetID: "B"},
			edgeKey("B", domain.HandleDefault): {SourceID: "B", TargetID: "C"},
		},
	}
	sessions := &fakeSessions{}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, nil, sessions, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   StartCommand,
	})
	require.NoError(t, err)

	require.Len(t, outbox.batches, 3)
	require.Equal(t, "hello", outbox.batches[0].blocks[0].Content)
	require.Equal(t, "world", outbox.batches[1].blocks[0].Content)
	require.Equal(t, "How old are you?", outbox.batches[2].blocks[0].Content)

	// Session was written for every visited node, ending at C awaiting input.
	require.Len(t, sessions.writes, 3)
	require.Equal(t, "C", sessions.current.NodeID)
	require.True(t, sessions.current.AwaitingInput)
	require.False(t, sessions.writes[0].AwaitingInput)
}

func TestHandleUpdate_InputCaptureRoundTrip(t *testing.T) {
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{
			"C": {
				ID:            "C",
				BotID:         testBotID,
				Type:          domain.NodeInput,
				InputVariable: "age",
			},
			"D": textNode("D", "You are {age} years old"),
		},
		edges: map[string]*domain.Edge{
			edgeKey("C", domain.HandleDefault): {SourceID: "C", TargetID: "D"},
		},
	}
	vars := &fakeVariables{}
	sessions := &fakeSessions{current: &domain.Session{
		BotID:         testBotID,
		UserID:        testUserID,
		NodeID:        "C",
		AwaitingInput: true,
	}}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, vars, sessions, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   "42",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"age=42"}, vars.upserts)
	require.Len(t, outbox.batches, 1)
	require.Equal(t, "You are 42 years old", outbox.batches[0].blocks[0].Content)
	require.Equal(t, "D", sessions.current.NodeID)
	require.False(t, sessions.current.AwaitingInput)
}

func TestHandleUpdate_ConditionBranching(t *testing.T) {
	conditionNode := &domain.Node{
		ID:    "cond",
		BotID: testBotID,
		Type:  domain.NodeCondition,
		Condition: &domain.ConditionRule{
			Variable: "age",
			Operator: domain.OpGreater,
			Value:    "18",
		},
	}

	tests := []struct {
		name      string
		age       string
		falseEdge bool
		wantText  string
		wantSends int
	}{
		{name: "true branch", age: "25", falseEdge: true, wantText: "adult", wantSends: 1},
		{name: "false branch", age: "10", falseEdge: true, wantText: "minor", wantSends: 1},
		{name: "false branch missing stops silently", age: "10", falseEdge: false, wantSends: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := map[string]*domain.Edge{
				edgeKey("cond", domain.HandleTrue): {SourceID: "cond", TargetID: "adult"},
			}
			if tt.falseEdge {
				edges[edgeKey("cond", domain.HandleFalse)] = &domain.Edge{SourceID: "cond", TargetID: "minor"}
			}

			graph := &fakeGraph{
				nodes: map[string]*domain.Node{
					"cond":  conditionNode,
					"adult": textNode("adult", "adult"),
					"minor": textNode("minor", "minor"),
				},
				edges: edges,
			}
			vars := &fakeVariables{values: map[string]string{"age": tt.age}}
			outbox := &fakeOutbox{}
			e := newTestEngine(graph, vars, &fakeSessions{}, nil, outbox)

			err := e.HandleUpdate(context.Background(), testBotID, Update{
				Kind:         UpdateCallback,
				UserID:       testUserID,
				CallbackData: "node_cond",
			})
			require.NoError(t, err)
			require.Len(t, outbox.batches, tt.wantSends)
			if tt.wantSends > 0 {
				require.Equal(t, tt.wantText, outbox.batches[0].blocks[0].Content)
			}
		})
	}
}

func TestHandleUpdate_PaymentCallbackShortCircuits(t *testing.T) {
	graph := &fakeGraph{nodes: map[string]*domain.Node{"A": textNode("A", "hello")}}
	products := &fakeProducts{products: map[string]*domain.Product{
		"p1": {ID: "p1", Name: "Course", Price: 49.99, Currency: "USD"},
	}}
	sessions := &fakeSessions{}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, nil, sessions, products, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "pay_p1",
	})
	require.NoError(t, err)

	require.Len(t, outbox.invoices, 1)
	require.Equal(t, "p1", outbox.invoices[0].ID)
	// No traversal: nothing dispatched, no session writes.
	require.Empty(t, outbox.batches)
	require.Empty(t, sessions.writes)
}

func TestHandleUpdate_PaymentCallbackUnknownProduct(t *testing.T) {
	e := newTestEngine(&fakeGraph{}, nil, nil, &fakeProducts{}, &fakeOutbox{})

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "pay_ghost",
	})
	require.NoError(t, err)
}

func TestHandleUpdate_StartCommandWinsOverAwaitingInput(t *testing.T) {
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{"A": textNode("A", "welcome")},
		entry: textNode("A", "welcome"),
	}
	vars := &fakeVariables{}
	sessions := &fakeSessions{current: &domain.Session{
		BotID:         testBotID,
		UserID:        testUserID,
		NodeID:        "C",
		AwaitingInput: true,
	}}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, vars, sessions, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   StartCommand,
	})
	require.NoError(t, err)

	require.Empty(t, vars.upserts)
	require.Len(t, outbox.batches, 1)
	require.Equal(t, "welcome", outbox.batches[0].blocks[0].Content)
}

func TestHandleUpdate_UnknownEnvelopeIgnored(t *testing.T) {
	outbox := &fakeOutbox{}
	e := newTestEngine(&fakeGraph{}, nil, nil, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{Kind: UpdateUnknown})
	require.NoError(t, err)
	require.Empty(t, outbox.batches)
}

func TestHandleUpdate_FreeTextWithoutAwaitingSessionIgnored(t *testing.T) {
	outbox := &fakeOutbox{}
	e := newTestEngine(&fakeGraph{}, nil, &fakeSessions{}, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   "hello there",
	})
	require.NoError(t, err)
	require.Empty(t, outbox.batches)
}

func TestHandleUpdate_BotNotFound(t *testing.T) {
	e := newTestEngine(&fakeGraph{}, nil, nil, nil, &fakeOutbox{})

	err := e.HandleUpdate(context.Background(), "missing-bot", Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   StartCommand,
	})
	require.ErrorIs(t, err, ErrBotNotFound)
}

func TestHandleUpdate_MissingNodeStopsSilently(t *testing.T) {
	graph := &fakeGraph{nodes: map[string]*domain.Node{}}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, nil, nil, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "node_ghost",
	})
	require.NoError(t, err)
	require.Empty(t, outbox.batches)
}

func TestHandleUpdate_CyclicGraphBounded(t *testing.T) {
	// A -> B -> A: a cycle of default edges among message nodes must abort
	// with a depth error instead of looping forever.
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{
			"A": textNode("A", "ping"),
			"B": textNode("B", "pong"),
		},
		edges: map[string]*domain.Edge{
			edgeKey("A", domain.HandleDefault): {SourceID: "A", TargetID: "B"},
			edgeKey("B", domain.HandleDefault): {SourceID: "B", TargetID: "A"},
		},
	}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, nil, nil, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "node_A",
	})
	require.ErrorIs(t, err, ErrTraversalDepthExceeded)
	require.Len(t, outbox.batches, DefaultMaxHops)
}

func TestHandleUpdate_TransportErrorAbortsButKeepsState(t *testing.T) {
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{
			"A": textNode("A", "one"),
			"B": textNode("B", "two"),
			"C": textNode("C", "three"),
		},
		edges: map[string]*domain.Edge{
			edgeKey("A", domain.HandleDefault): {SourceID: "A", TargetID: "B"},
			edgeKey("B", domain.HandleDefault): {SourceID: "B", TargetID: "C"},
		},
	}
	sessions := &fakeSessions{}
	outbox := &fakeOutbox{failAt: 2}
	e := newTestEngine(graph, nil, sessions, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "node_A",
	})
	require.ErrorIs(t, err, errTransport)

	// State for nodes visited before the failure stays committed.
	require.Len(t, sessions.writes, 2)
	require.Equal(t, "B", sessions.current.NodeID)
	require.Len(t, outbox.batches, 2)
}

func TestHandleUpdate_ConditionNodeNeverDispatches(t *testing.T) {
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{
			"cond": {
				ID:        "cond",
				BotID:     testBotID,
				Type:      domain.NodeCondition,
				Condition: nil, // malformed rule fails open
				Blocks:    []domain.ContentBlock{{ID: "x", Type: domain.BlockText, Content: "never sent"}},
			},
			"next": textNode("next", "after"),
		},
		edges: map[string]*domain.Edge{
			edgeKey("cond", domain.HandleTrue): {SourceID: "cond", TargetID: "next"},
		},
	}
	outbox := &fakeOutbox{}
	e := newTestEngine(graph, nil, nil, nil, outbox)

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:         UpdateCallback,
		UserID:       testUserID,
		CallbackData: "node_cond",
	})
	require.NoError(t, err)

	require.Len(t, outbox.batches, 1)
	require.Equal(t, "after", outbox.batches[0].blocks[0].Content)
}

func TestHandleUpdate_LockerSerializesUpdates(t *testing.T) {
	graph := &fakeGraph{
		nodes: map[string]*domain.Node{"A": textNode("A", "hi")},
		entry: textNode("A", "hi"),
	}
	released := false
	e := New(Config{
		Bots:      &fakeBots{tokens: map[string]string{testBotID: "token-1"}},
		Graph:     graph,
		Variables: &fakeVariables{},
		Sessions:  &fakeSessions{},
		Products:  &fakeProducts{},
		Outbox:    &fakeOutbox{},
		Locker: lockerFunc(func(ctx context.Context, botID string, userID int64) (func(), error) {
			return func() { released = true }, nil
		}),
		Log: testLogger(),
	})

	err := e.HandleUpdate(context.Background(), testBotID, Update{
		Kind:   UpdateMessage,
		UserID: testUserID,
		Text:   StartCommand,
	})
	require.NoError(t, err)
	require.True(t, released)
}

type lockerFunc func(ctx context.Context, botID string, userID int64) (func(), error)

func (f lockerFunc) Acquire(ctx context.Context, botID string, userID int64) (func(), error) {
	return f(ctx, botID, userID)
}
