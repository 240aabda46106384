package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/dao/daotest"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

var (
	gm     = domain.Actor{ID: "gm", Role: domain.RoleGamemaster, Color: "#ffffff"}
	alice  = domain.Actor{ID: "alice", Role: domain.RolePlayer, Color: "#00ff00"}
	bob    = domain.Actor{ID: "bob", Role: domain.RolePlayer, Color: "#0000ff"}
	trusty = domain.Actor{ID: "trusty", Role: domain.RoleTrusted}
)

type fixture struct {
	store *daotest.Spy
	bus   *LocalBus
	gm    *Broker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := daotest.NewSpy(daotest.NewStore(t))
	queue := writequeue.New(nil, zap.NewNop())
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })

	bus := NewLocalBus(nil)
	relay := NewRelay(store, queue, gm, domain.StandardDefaults(), nil, metrics.New())
	b := New(Options{Store: store, Channel: bus.Endpoint(), Actor: gm, Defaults: domain.StandardDefaults(), Relay: relay})
	t.Cleanup(b.Listen(context.Background()))
	return &fixture{store: store, bus: bus, gm: b}
}

func (f *fixture) peer(actor domain.Actor) *Broker {
	return New(Options{Store: f.store, Channel: f.bus.Endpoint(), Actor: actor, Defaults: domain.StandardDefaults()})
}

// seed creates a managed note owned by owner that nobody else may write directly
func (f *fixture) seed(t *testing.T, scene, owner string, conns ...domain.Connection) *domain.Document {
	t.Helper()
	n := &domain.Note{SceneID: scene, Kind: domain.KindSticky, Text: "Clue", Connections: conns}
	doc := n.ToDocument()
	doc.OwnerID = owner
	doc.DefaultPermission = domain.PermissionObserver
	created, err := f.store.DocumentStore.Create(context.Background(), doc, owner, domain.CreateOptions{})
	require.NoError(t, err)
	return created
}

func (f *fixture) note(t *testing.T, id string) *domain.Note {
	t.Helper()
	doc, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	n, err := domain.LoadNote(doc, domain.StandardDefaults())
	require.NoError(t, err)
	return n
}

func TestApplyUpdate_OwnerWritesDirectly(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, "s1", alice.ID)

	route, err := f.peer(alice).ApplyUpdate(context.Background(), doc.ID, domain.Changes{Text: domain.Ptr("Mine")})
	require.NoError(t, err)
	assert.Equal(t, RouteDirect, route)
	assert.Equal(t, "Mine", f.note(t, doc.ID).Text)
}

func TestApplyUpdate_NonOwnerRelays(t *testing.T) {
	ctx := context.Background()
	store := daotest.NewSpy(daotest.NewStore(t))
	bus := NewLocalBus(nil)
	f := &fixture{store: store, bus: bus}
	doc := f.seed(t, "s1", alice.ID)

	// no relay listening: only the emitted request is observed
	observer := bus.Endpoint()
	var got []Message
	observer.On(func(m Message) { got = append(got, m) })

	before := store.Writes()
	route, err := f.peer(bob).ApplyUpdate(ctx, doc.ID, domain.Changes{Text: domain.Ptr("Bob was here")})
	require.NoError(t, err)
	assert.Equal(t, RouteRelayed, route)
	assert.Equal(t, before, store.Writes())

	require.Len(t, got, 1)
	req, ok := got[0].(*UpdateRequest)
	require.True(t, ok)
	assert.Equal(t, doc.ID, req.NoteID)
	assert.Equal(t, "s1", req.SceneID)
	assert.Equal(t, bob.ID, req.RequestingActor)
	require.NotNil(t, req.Changes.Text)
	assert.Equal(t, "Bob was here", *req.Changes.Text)
	assert.NotEmpty(t, req.TraceID)
}

func TestApplyUpdate_RelayApplies(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, "s1", alice.ID)

	route, err := f.peer(bob).ApplyUpdate(context.Background(), doc.ID, domain.MoveTo(yarn.Point{X: 300, Y: 40}))
	require.NoError(t, err)
	assert.Equal(t, RouteRelayed, route)
	assert.Equal(t, yarn.Point{X: 300, Y: 40}, f.note(t, doc.ID).Position)
	assert.Equal(t, int64(1), f.store.Updates.Load())
}

func TestApplyUpdate_ConcurrentRequestsApplyOnce(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, "s1", alice.ID)
	bobB, carolB := f.peer(bob), f.peer(domain.Actor{ID: "carol", Role: domain.RolePlayer})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := bobB.ApplyUpdate(context.Background(), doc.ID, domain.Changes{Text: domain.Ptr("from bob")})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := carolB.ApplyUpdate(context.Background(), doc.ID, domain.MoveTo(yarn.Point{X: 9, Y: 9}))
		assert.NoError(t, err)
	}()
	wg.Wait()

	n := f.note(t, doc.ID)
	assert.Equal(t, "from bob", n.Text)
	assert.Equal(t, yarn.Point{X: 9, Y: 9}, n.Position)
	// the second request may merge into the first while it waits
	assert.GreaterOrEqual(t, f.store.Updates.Load(), int64(1))
	assert.LessOrEqual(t, f.store.Updates.Load(), int64(2))
}

func TestApplyUpdate_LastRelayedWinsPerField(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, "s1", alice.ID)
	b := f.peer(bob)

	for _, text := range []string{"one", "two", "three"} {
		_, err := b.ApplyUpdate(context.Background(), doc.ID, domain.Changes{Text: domain.Ptr(text)})
		require.NoError(t, err)
	}
	assert.Equal(t, "three", f.note(t, doc.ID).Text)
}

func TestApplyUpdate_UnmanagedDocument(t *testing.T) {
	f := newFixture(t)
	plain, err := f.store.DocumentStore.Create(context.Background(), &domain.Document{SceneID: "s1", OwnerID: "gm"}, "gm", domain.CreateOptions{})
	require.NoError(t, err)

	_, err = f.peer(bob).ApplyUpdate(context.Background(), plain.ID, domain.Changes{Text: domain.Ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotManaged)
}

func TestApplyUpdate_ChannelUnavailable(t *testing.T) {
	store := daotest.NewSpy(daotest.NewStore(t))
	f := &fixture{store: store}
	doc := f.seed(t, "s1", alice.ID)

	b := New(Options{Store: store, Actor: bob, Defaults: domain.StandardDefaults()})
	route, err := b.ApplyUpdate(context.Background(), doc.ID, domain.Changes{Text: domain.Ptr("x")})
	assert.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Equal(t, RouteNone, route)
	assert.Equal(t, "Clue", f.note(t, doc.ID).Text)
}

func TestApplyCreate_RelayRecordsRequester(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var created []domain.ChangeEvent
	f.store.Subscribe(func(ev domain.ChangeEvent) {
		if ev.Kind == domain.ChangeCreated {
			mu.Lock()
			created = append(created, ev)
			mu.Unlock()
		}
	})

	note := domain.NewNoteAtViewCenter(domain.KindSticky, yarn.Point{X: 500, Y: 500}, domain.StandardDefaults())
	note.SceneID = "s1"
	doc, route, err := f.peer(bob).ApplyCreate(context.Background(), note, domain.CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, RouteRelayed, route)
	assert.Nil(t, doc)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, created, 1)
	assert.Equal(t, bob.ID, created[0].Options.RequestingActor)
	assert.Equal(t, gm.ID, created[0].ActorID)
	assert.Equal(t, bob.ID, created[0].Document.OwnerID)
}

func TestApplyCreate_TrustedCreatesDirectly(t *testing.T) {
	f := newFixture(t)
	note := &domain.Note{SceneID: "s1", Kind: domain.KindIndex, Text: "Notes"}

	doc, route, err := f.peer(trusty).ApplyCreate(context.Background(), note, domain.CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, RouteDirect, route)
	require.NotNil(t, doc)
	assert.Equal(t, trusty.ID, doc.OwnerID)
	assert.Equal(t, domain.PermissionOwner, doc.DefaultPermission)

	_, _, err = f.peer(trusty).ApplyCreate(context.Background(), &domain.Note{Kind: domain.KindSticky}, domain.CreateOptions{})
	assert.ErrorIs(t, err, domain.ErrSceneNotFound)
}

func TestApplyDelete_RelayCascades(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "s1", alice.ID)
	c := f.seed(t, "s1", alice.ID)
	a := f.seed(t, "s1", alice.ID,
		domain.Connection{TargetID: b.ID, Color: "#ff0000", Width: 7},
		domain.Connection{TargetID: c.ID, Color: "#ff0000", Width: 7})

	route, err := f.peer(bob).ApplyDelete(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, RouteRelayed, route)

	_, err = f.store.Get(context.Background(), b.ID)
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
	conns := f.note(t, a.ID).Connections
	require.Len(t, conns, 1)
	assert.Equal(t, c.ID, conns[0].TargetID)
}

func TestApplyDelete_DirectCascades(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, "s1", alice.ID)
	a := f.seed(t, "s1", alice.ID, domain.Connection{TargetID: b.ID})

	route, err := f.peer(alice).ApplyDelete(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, RouteDirect, route)
	assert.Empty(t, f.note(t, a.ID).Connections)
}

func TestRelay_MissingTargetIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.gm.HandleUpdate(ctx, &UpdateRequest{SceneID: "s1", NoteID: "gone", RequestingActor: bob.ID,
		Changes: domain.Changes{Text: domain.Ptr("x")}}))
	require.NoError(t, f.gm.HandleDelete(ctx, &DeleteRequest{SceneID: "s1", NoteID: "gone", RequestingActor: bob.ID}))

	doc := f.seed(t, "s1", alice.ID)
	require.NoError(t, f.gm.HandleUpdate(ctx, &UpdateRequest{SceneID: "other", NoteID: doc.ID, RequestingActor: bob.ID,
		Changes: domain.Changes{Text: domain.Ptr("x")}}))
	assert.Equal(t, "Clue", f.note(t, doc.ID).Text)
	assert.Equal(t, int64(0), f.store.Updates.Load())
}

func TestRelay_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	err := f.gm.HandleUpdate(context.Background(), &UpdateRequest{NoteID: "n1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = f.gm.HandleCreate(context.Background(), &CreateRequest{SceneID: "s1", RequestingActor: bob.ID, Note: domain.Note{Kind: "poster"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBroker_UnprivilegedPeerIgnoresRelayRequests(t *testing.T) {
	f := newFixture(t)
	doc := f.seed(t, "s1", alice.ID)

	relay := NewRelay(f.store, nil, bob, domain.StandardDefaults(), nil, nil)
	b := New(Options{Store: f.store, Actor: bob, Relay: relay})
	require.NoError(t, b.HandleUpdate(context.Background(), &UpdateRequest{SceneID: "s1", NoteID: doc.ID,
		RequestingActor: "carol", Changes: domain.Changes{Text: domain.Ptr("x")}}))
	assert.Equal(t, "Clue", f.note(t, doc.ID).Text)
}

func TestPublishChanges_ReachesRemotePeers(t *testing.T) {
	f := newFixture(t)
	t.Cleanup(f.gm.PublishChanges(context.Background()))

	var mu sync.Mutex
	var kinds []domain.ChangeKind
	remote := New(Options{
		Store: f.store, Channel: f.bus.Endpoint(), Actor: alice, Defaults: domain.StandardDefaults(),
		OnRemoteChange: func(_ context.Context, ev domain.ChangeEvent) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		},
	})
	t.Cleanup(remote.Listen(context.Background()))

	doc := f.seed(t, "s1", gm.ID)
	_, err := f.gm.ApplyUpdate(context.Background(), doc.ID, domain.Changes{Text: domain.Ptr("Moved")})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ChangeKind{domain.ChangeCreated, domain.ChangeUpdated}, kinds)
}

func TestRelayUpdate_CoalescesQueuedRequests(t *testing.T) {
	ctx := context.Background()
	store := daotest.NewSpy(daotest.NewStore(t))
	queue := writequeue.New(nil, zap.NewNop())
	t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })
	relay := NewRelay(store, queue, gm, domain.StandardDefaults(), nil, metrics.New())
	f := &fixture{store: store}
	doc := f.seed(t, "s1", alice.ID)

	// hold the note's relay queue so requests pile up behind the first one
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = queue.Execute(ctx, relayKey(doc.ID), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	update := func(actor string, c domain.Changes) *UpdateRequest {
		return &UpdateRequest{SceneID: "s1", NoteID: doc.ID, RequestingActor: actor, Changes: c}
	}
	merged := func() int {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		if p := relay.pending[doc.ID]; p != nil {
			return p.merged
		}
		return -1
	}

	errs := make(chan error, 3)
	go func() { errs <- relay.Update(ctx, update("bob", domain.Changes{Text: domain.Ptr("one")})) }()
	require.Eventually(t, func() bool { return merged() == 0 }, time.Second, time.Millisecond)

	go func() { errs <- relay.Update(ctx, update("carol", domain.Changes{Text: domain.Ptr("two")})) }()
	require.Eventually(t, func() bool { return merged() == 1 }, time.Second, time.Millisecond)
	go func() { errs <- relay.Update(ctx, update("dave", domain.MoveTo(yarn.Point{X: 7, Y: 8}))) }()
	require.Eventually(t, func() bool { return merged() == 2 }, time.Second, time.Millisecond)

	close(release)
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-errs)
	}

	n := f.note(t, doc.ID)
	assert.Equal(t, "two", n.Text)
	assert.Equal(t, yarn.Point{X: 7, Y: 8}, n.Position)
	assert.Equal(t, int64(1), store.Updates.Load())
	assert.Equal(t, -1, merged())

	// nothing waiting: the next request is written on its own
	require.NoError(t, relay.Update(ctx, update("bob", domain.Changes{Text: domain.Ptr("three")})))
	assert.Equal(t, "three", f.note(t, doc.ID).Text)
	assert.Equal(t, int64(2), store.Updates.Load())
}
