package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cartsync/internal/cart/models"
	cartstore "cartsync/internal/cart/store"
	catalogmodels "cartsync/internal/catalog/models"
	catalogstore "cartsync/internal/catalog/store"
	"cartsync/internal/identity"
	"cartsync/pkg/domain"
	dErrors "cartsync/pkg/domain-errors"
)

// testStore wraps the in-memory store with failure injection, call recording,
// and per-identity gates that hold SelectRows until released. The engine
// tests need all three: no-rollback policy, "no store call" assertions, and
// the stale-reload race.
type testStore struct {
	*cartstore.Memory

	mu         sync.Mutex
	fail       map[string]error
	gates      map[domain.IdentityID]chan struct{}
	upsertGate chan struct{}
	updates    []updateCall
	deletes    []domain.ProductID
	upserts    []domain.ProductID
	deleteAlls int
	selects    int
}

type updateCall struct {
	productID domain.ProductID
	quantity  int
}

func newTestStore() *testStore {
	return &testStore{
		Memory: cartstore.NewMemory(),
		fail:   make(map[string]error),
		gates:  make(map[domain.IdentityID]chan struct{}),
	}
}

func (s *testStore) failWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *testStore) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail[op]
}

// gate makes SelectRows for id block until the returned channel is closed.
func (s *testStore) gate(id domain.IdentityID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[id] = ch
	return ch
}

// gateUpsert makes UpsertAdd block until the returned channel is closed.
func (s *testStore) gateUpsert() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertGate = make(chan struct{})
	return s.upsertGate
}

func (s *testStore) SelectRows(ctx context.Context, id domain.IdentityID) ([]models.LineItem, error) {
	s.mu.Lock()
	ch := s.gates[id]
	s.selects++
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
	if err := s.failure("select"); err != nil {
		return nil, err
	}
	return s.Memory.SelectRows(ctx, id)
}

func (s *testStore) UpdateRow(ctx context.Context, id domain.IdentityID, productID domain.ProductID, quantity int, addedAt time.Time) error {
	if err := s.failure("update"); err != nil {
		return err
	}
	s.mu.Lock()
	s.updates = append(s.updates, updateCall{productID: productID, quantity: quantity})
	s.mu.Unlock()
	return s.Memory.UpdateRow(ctx, id, productID, quantity, addedAt)
}

func (s *testStore) DeleteRow(ctx context.Context, id domain.IdentityID, productID domain.ProductID) error {
	if err := s.failure("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	s.deletes = append(s.deletes, productID)
	s.mu.Unlock()
	return s.Memory.DeleteRow(ctx, id, productID)
}

func (s *testStore) DeleteAll(ctx context.Context, id domain.IdentityID) error {
	if err := s.failure("deleteAll"); err != nil {
		return err
	}
	s.mu.Lock()
	s.deleteAlls++
	s.mu.Unlock()
	return s.Memory.DeleteAll(ctx, id)
}

func (s *testStore) UpsertAdd(ctx context.Context, item models.LineItem) (int, error) {
	s.mu.Lock()
	ch := s.upsertGate
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
	if err := s.failure("upsert"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.upserts = append(s.upserts, item.ProductID)
	s.mu.Unlock()
	return s.Memory.UpsertAdd(ctx, item)
}

func (s *testStore) remoteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates) + len(s.deletes) + len(s.upserts) + s.deleteAlls
}

type EngineSuite struct {
	suite.Suite
	store    *testStore
	catalog  *catalogstore.Memory
	notifier *identity.Notifier
	svc      *Service
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = newTestStore()
	s.catalog = catalogstore.NewMemory(
		catalogmodels.Product{ID: 1, Title: "widget", Price: 9.99},
		catalogmodels.Product{ID: 2, Title: "gadget", Price: 19.99},
	)
	s.notifier = identity.NewNotifier()

	var err error
	s.svc, err = New(s.store, s.catalog, s.notifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.svc.Start()
}

func (s *EngineSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.svc.Close(ctx))
}

func (s *EngineSuite) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.svc.Drain(ctx))
}

func (s *EngineSuite) signIn(id string) {
	s.notifier.SignIn(domain.IdentityID(id))
	s.drain()
}

func product(id int64) catalogmodels.Product {
	return catalogmodels.Product{
		ID:    domain.ProductID(id),
		Title: "widget",
		Price: 9.99,
	}
}

func (s *EngineSuite) seedRow(identity string, productID int64, qty int) {
	_, err := s.store.Memory.UpsertAdd(context.Background(), models.LineItem{
		IdentityID: domain.IdentityID(identity),
		ProductID:  domain.ProductID(productID),
		Quantity:   qty,
		Title:      "widget",
		Price:      9.99,
		AddedAt:    time.Now(),
	})
	s.Require().NoError(err)
}

func (s *EngineSuite) remoteQuantity(identity string, productID int64) int {
	rows, err := s.store.Memory.SelectRows(context.Background(), domain.IdentityID(identity))
	s.Require().NoError(err)
	for _, row := range rows {
		if row.ProductID == domain.ProductID(productID) {
			return row.Quantity
		}
	}
	return 0
}

func (s *EngineSuite) TestConstructorRequiresCollaborators() {
	_, err := New(nil, s.catalog, s.notifier)
	s.Error(err)
	_, err = New(s.store, nil, s.notifier)
	s.Error(err)
	_, err = New(s.store, s.catalog, nil)
	s.Error(err)
}

func (s *EngineSuite) TestSerialAddsAccumulateRemotely() {
	s.signIn("alice")

	for range 3 {
		s.svc.Add(context.Background(), product(1))
		s.drain()
	}

	s.Equal(3, s.remoteQuantity("alice", 1))
	s.Nil(s.svc.LastError())

	// The cache holds three transient appends; the aggregate view merges
	// them into one entry carrying the sum.
	s.Len(s.svc.Items(), 3)
	agg := s.svc.Aggregate()
	s.Require().Len(agg, 1)
	s.Equal(3, agg[0].Quantity)
}

func (s *EngineSuite) TestAddWithoutIdentityKeepsOptimisticAppend() {
	s.svc.Add(context.Background(), product(1))
	s.drain()

	// The append is not rolled back; the error lands in the slot and the
	// store is never called.
	s.Len(s.svc.Items(), 1)
	s.True(dErrors.HasCode(s.svc.LastError(), dErrors.CodeNoIdentity))
	s.Equal(0, s.store.remoteCalls())
}

func (s *EngineSuite) TestAddStoreFailureLeavesCache() {
	s.signIn("alice")
	s.store.failWith("upsert", dErrors.New(dErrors.CodeInternal, "connection reset"))

	s.svc.Add(context.Background(), product(1))
	s.drain()

	s.Len(s.svc.Items(), 1)
	s.True(dErrors.HasCode(s.svc.LastError(), dErrors.CodeStoreFailure))
	s.Equal(0, s.remoteQuantity("alice", 1))
}

func (s *EngineSuite) TestUpdateQuantity() {
	s.Run("persists and updates cache", func() {
		s.SetupTest()
		s.seedRow("alice", 1, 2)
		s.signIn("alice")

		err := s.svc.UpdateQuantity(context.Background(), models.ItemRef{ProductID: 1}, 5)
		s.Require().NoError(err)
		s.drain()

		items := s.svc.Items()
		s.Require().Len(items, 1)
		s.Equal(5, items[0].Quantity)
		s.Equal(5, s.remoteQuantity("alice", 1))
	})

	s.Run("rejects quantity below one", func() {
		s.SetupTest()
		s.seedRow("alice", 1, 2)
		s.signIn("alice")

		err := s.svc.UpdateQuantity(context.Background(), models.ItemRef{ProductID: 1}, 0)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.drain()

		s.Equal(2, s.remoteQuantity("alice", 1))
		items := s.svc.Items()
		s.Require().Len(items, 1)
		s.Equal(2, items[0].Quantity)
	})

	s.Run("without identity records error and mutates nothing", func() {
		s.SetupTest()

		err := s.svc.UpdateQuantity(context.Background(), models.ItemRef{ProductID: 1}, 3)
		s.Require().NoError(err)
		s.drain()

		s.True(dErrors.HasCode(s.svc.LastError(), dErrors.CodeNoIdentity))
		s.Equal(0, s.store.remoteCalls())
	})
}

func (s *EngineSuite) TestRemoveDecrementsAboveOne() {
	s.seedRow("alice", 1, 2)
	s.signIn("alice")

	s.svc.Remove(context.Background(), models.ItemRef{ProductID: 1})
	s.drain()

	items := s.svc.Items()
	s.Require().Len(items, 1)
	s.Equal(1, items[0].Quantity)
	s.Equal(1, s.remoteQuantity("alice", 1))

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.Require().Len(s.store.updates, 1)
	s.Equal(updateCall{productID: 1, quantity: 1}, s.store.updates[0])
	s.Empty(s.store.deletes)
}

func (s *EngineSuite) TestRemoveDeletesAtOne() {
	s.seedRow("alice", 1, 1)
	s.signIn("alice")

	s.svc.Remove(context.Background(), models.ItemRef{ProductID: 1})
	s.drain()

	s.Empty(s.svc.Items())
	s.Equal(0, s.remoteQuantity("alice", 1))

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.Require().Len(s.store.deletes, 1)
	s.Equal(domain.ProductID(1), s.store.deletes[0])
	s.Empty(s.store.updates)
}

func (s *EngineSuite) TestRemoveAbsentIsSilentNoOp() {
	s.signIn("alice")

	s.svc.Remove(context.Background(), models.ItemRef{ProductID: 42})
	s.drain()

	s.Nil(s.svc.LastError())
	s.Equal(0, s.store.remoteCalls())
}

func (s *EngineSuite) TestRemoveMatchFallbacks() {
	s.seedRow("alice", 7, 3)
	s.signIn("alice")

	rowID := s.svc.Items()[0].ID
	s.Require().NotZero(rowID)

	s.Run("matches by row id", func() {
		s.svc.Remove(context.Background(), models.ItemRef{ID: rowID})
		s.drain()
		s.Equal(2, s.svc.Items()[0].Quantity)
	})

	s.Run("falls back to product id against ref id", func() {
		s.svc.Remove(context.Background(), models.ItemRef{ID: 7})
		s.drain()
		s.Equal(1, s.svc.Items()[0].Quantity)
	})
}

func (s *EngineSuite) TestClear() {
	s.Run("success empties cache and store", func() {
		s.SetupTest()
		s.seedRow("alice", 1, 2)
		s.seedRow("alice", 2, 1)
		s.signIn("alice")

		s.svc.Clear(context.Background())

		s.Empty(s.svc.Items())
		rows, err := s.store.Memory.SelectRows(context.Background(), "alice")
		s.Require().NoError(err)
		s.Empty(rows)
	})

	s.Run("failure leaves cache untouched", func() {
		s.SetupTest()
		s.seedRow("alice", 1, 2)
		s.signIn("alice")
		before := s.svc.Items()
		s.store.failWith("deleteAll", dErrors.New(dErrors.CodeInternal, "timeout"))

		s.svc.Clear(context.Background())

		s.Equal(before, s.svc.Items())
		s.True(dErrors.HasCode(s.svc.LastError(), dErrors.CodeStoreFailure))
	})

	s.Run("without identity is a no-op", func() {
		s.SetupTest()

		s.svc.Clear(context.Background())

		s.Nil(s.svc.LastError())
		s.Equal(0, s.store.remoteCalls())
	})
}

func (s *EngineSuite) TestSignOutClearsCartWithoutRemoteReads() {
	s.seedRow("alice", 1, 2)
	s.signIn("alice")
	s.Require().NotEmpty(s.svc.Items())

	s.store.mu.Lock()
	selectsBefore := s.store.selects
	s.store.mu.Unlock()

	s.notifier.SignOut()
	s.drain()

	s.Empty(s.svc.Items())
	s.Equal(models.StateReady, s.svc.State())

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.Equal(selectsBefore, s.store.selects)
}

func (s *EngineSuite) TestStaleReloadIsDiscarded() {
	s.seedRow("alice", 1, 2)
	s.seedRow("bob", 9, 4)

	gateAlice := s.store.gate("alice")
	gateBob := s.store.gate("bob")

	s.notifier.SignIn("alice")
	s.notifier.SignIn("bob")
	s.Equal(models.StateLoading, s.svc.State())

	// Bob's reload finishes first and wins; Alice's completes afterwards and
	// must be discarded even though it is the older load.
	close(gateBob)
	close(gateAlice)
	s.drain()

	s.Equal(models.StateReady, s.svc.State())
	items := s.svc.Items()
	s.Require().Len(items, 1)
	s.Equal(domain.ProductID(9), items[0].ProductID)
	s.Equal(4, items[0].Quantity)
}

func (s *EngineSuite) TestReloadFailureSetsErrorStateIndependently() {
	s.Run("cart read fails, catalog survives", func() {
		s.SetupTest()
		s.store.failWith("select", dErrors.New(dErrors.CodeInternal, "boom"))

		s.signIn("alice")

		s.Equal(models.StateError, s.svc.State())
		s.NotEmpty(s.svc.LoadError())
		s.Empty(s.svc.Items())
		s.Empty(s.svc.CatalogError())
		s.NotEmpty(s.svc.Products())
	})

	s.Run("catalog read fails, cart survives", func() {
		s.SetupTest()
		s.seedRow("alice", 1, 2)
		failing := &failingCatalog{}
		svc, err := New(s.store, failing, s.notifier,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		s.Require().NoError(err)
		svc.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.Require().NoError(svc.Close(ctx))
		}()

		s.notifier.SignIn("alice")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Require().NoError(svc.Drain(ctx))

		s.Equal(models.StateReady, svc.State())
		s.NotEmpty(svc.Items())
		s.NotEmpty(svc.CatalogError())
		s.Empty(svc.Products())
	})
}

type failingCatalog struct{}

func (f *failingCatalog) ListProducts(context.Context) ([]catalogmodels.Product, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "catalog unavailable")
}

func (s *EngineSuite) TestAggregateSumMatchesCacheSum() {
	s.signIn("alice")

	s.svc.Add(context.Background(), product(1))
	s.svc.Add(context.Background(), product(2))
	s.svc.Add(context.Background(), product(1))
	s.drain()

	cacheSum := 0
	for _, it := range s.svc.Items() {
		cacheSum += it.Quantity
	}
	aggSum := 0
	for _, e := range s.svc.Aggregate() {
		aggSum += e.Quantity
	}
	s.Equal(cacheSum, aggSum)
	s.Equal(3, cacheSum)
}

func (s *EngineSuite) TestMutationCompletionAfterIdentitySwitchIsDiscarded() {
	s.signIn("alice")
	s.store.failWith("upsert", dErrors.New(dErrors.CodeInternal, "slow failure"))
	gate := s.store.gateUpsert()

	s.svc.Add(context.Background(), product(1))
	// Alice's persist failure completes only after Bob took over; the stale
	// error must not land in Bob's error slot.
	s.notifier.SignIn("bob")
	close(gate)
	s.drain()

	s.Nil(s.svc.LastError())
}
