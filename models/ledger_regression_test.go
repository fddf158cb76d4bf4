package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/models"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	"bitbucket.org/mmdatafocus/supplychain_backend/workflow"
)

const (
	ownerAddr    = "owner-1"
	producerAddr = "producer-1"
	supplierAddr = "supplier-1"
	retailerAddr = "retailer-1"
	consumerAddr = "consumer-1"
	consumerB    = "consumer-2"
)

func callerCtx(address string) context.Context {
	return utils.SetCallerAddressInContext(context.Background(), address)
}

func setupLedgerTest(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "supplytrace_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	if err := config.ClearRedis(context.Background()); err != nil {
		t.Fatalf("clear redis: %v", err)
	}
}

func registerAllRoles(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := models.EnsureBootstrapOwner(ctx, ownerAddr); err != nil {
		t.Fatalf("EnsureBootstrapOwner: %v", err)
	}
	owner := callerCtx(ownerAddr)
	if _, err := models.RegisterProducer(owner, producerAddr); err != nil {
		t.Fatalf("RegisterProducer: %v", err)
	}
	if _, err := models.RegisterSupplier(owner, supplierAddr); err != nil {
		t.Fatalf("RegisterSupplier: %v", err)
	}
	if _, err := models.RegisterRetailer(owner, retailerAddr); err != nil {
		t.Fatalf("RegisterRetailer: %v", err)
	}
	if _, err := models.RegisterConsumer(owner, consumerAddr); err != nil {
		t.Fatalf("RegisterConsumer: %v", err)
	}
	if _, err := models.RegisterConsumer(owner, consumerB); err != nil {
		t.Fatalf("RegisterConsumer: %v", err)
	}
}

func TestCustodyChainAndInventoryWithdrawals(t *testing.T) {
	setupLedgerTest(t)
	registerAllRoles(t)

	owner := callerCtx(ownerAddr)
	producer := callerCtx(producerAddr)
	supplier := callerCtx(supplierAddr)
	retailer := callerCtx(retailerAddr)
	consumer := callerCtx(consumerAddr)

	// Role registration is idempotent; re-registering must not fail.
	if _, err := models.RegisterProducer(owner, producerAddr); err != nil {
		t.Fatalf("re-registering producer should be a no-op: %v", err)
	}
	isProducer, err := models.IsProducer(context.Background(), producerAddr)
	if err != nil || !isProducer {
		t.Fatalf("expected producer role, got %v %v", isProducer, err)
	}

	// Only a producer can create a lot.
	if _, err := models.CreateProduct(supplier, &models.NewProduct{Name: "Beans", Description: "bags", Quantity: 10}); err == nil {
		t.Fatal("expected supplier to be rejected from CreateProduct")
	}

	product, err := models.CreateProduct(producer, &models.NewProduct{Name: "Beans", Description: "bags", Quantity: 10})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.Status != models.ProductStatusCreated {
		t.Fatalf("expected Created status, got %s", product.Status)
	}
	if product.AvailableQuantity != 10 || product.TotalQuantity != 10 {
		t.Fatalf("expected quantities 10/10, got %d/%d", product.AvailableQuantity, product.TotalQuantity)
	}

	// Stage skipping is rejected.
	if _, err := models.AddToStore(retailer, product.ID); err == nil {
		t.Fatal("expected AddToStore to fail before the custody chain completes")
	}

	// A second producer holds the role but not this lot; custody stays with
	// the producer who created it.
	if _, err := models.RegisterProducer(owner, "producer-2"); err != nil {
		t.Fatalf("RegisterProducer: %v", err)
	}
	if _, err := models.SendToSupplier(callerCtx("producer-2"), product.ID, supplierAddr); models.KindOf(err) != models.ErrorKindAuthorization {
		t.Fatalf("expected authorization error for non-custodian producer, got %v", err)
	}

	if _, err := models.SendToSupplier(producer, product.ID, supplierAddr); err != nil {
		t.Fatalf("SendToSupplier: %v", err)
	}
	// Wrong caller for receive.
	if _, err := models.ReceiveProduct(retailer, product.ID); err == nil {
		t.Fatal("expected non-supplier receive to fail")
	}
	if _, err := models.ReceiveProduct(supplier, product.ID); err != nil {
		t.Fatalf("ReceiveProduct: %v", err)
	}
	if _, err := models.UpdateShippingInfo(supplier, product.ID, "container MSKU-1"); err != nil {
		t.Fatalf("UpdateShippingInfo: %v", err)
	}
	if _, err := models.SendToRetailer(supplier, product.ID, retailerAddr); err != nil {
		t.Fatalf("SendToRetailer: %v", err)
	}
	if _, err := models.ReceiveProductFromSupplier(retailer, product.ID); err != nil {
		t.Fatalf("ReceiveProductFromSupplier: %v", err)
	}
	if _, err := models.AddToStore(retailer, product.ID); err != nil {
		t.Fatalf("AddToStore: %v", err)
	}

	// Partial sale by the retailer.
	sold, err := models.SellToConsumer(retailer, product.ID, consumerAddr, 4)
	if err != nil {
		t.Fatalf("SellToConsumer: %v", err)
	}
	if sold.AvailableQuantity != 6 {
		t.Fatalf("expected available 6 after sale, got %d", sold.AvailableQuantity)
	}
	if sold.Status != models.ProductStatusAvailableForSale {
		t.Fatalf("partial sale must keep AvailableForSale, got %s", sold.Status)
	}

	// Overdraw is rejected and changes nothing.
	if _, err := models.PurchaseFromSurplus(consumer, product.ID, 7); err == nil {
		t.Fatal("expected overdraw to fail")
	}
	got, err := models.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.AvailableQuantity != 6 {
		t.Fatalf("failed withdrawal must not change quantities, got %d", got.AvailableQuantity)
	}

	// Direct surplus purchase by a second consumer drains the lot.
	ctxB := callerCtx(consumerB)
	drained, err := models.PurchaseFromSurplus(ctxB, product.ID, 6)
	if err != nil {
		t.Fatalf("PurchaseFromSurplus: %v", err)
	}
	if drained.AvailableQuantity != 0 {
		t.Fatalf("expected available 0, got %d", drained.AvailableQuantity)
	}
	if drained.Status != models.ProductStatusSoldToConsumer {
		t.Fatalf("expected SoldToConsumer at zero, got %s", drained.Status)
	}

	// Per-buyer purchase records are cumulative and independent.
	qtyA, err := models.GetConsumerPurchaseQuantity(context.Background(), product.ID, consumerAddr)
	if err != nil || qtyA != 4 {
		t.Fatalf("expected consumer-1 purchase 4, got %d %v", qtyA, err)
	}
	qtyB, err := models.GetConsumerPurchaseQuantity(context.Background(), product.ID, consumerB)
	if err != nil || qtyB != 6 {
		t.Fatalf("expected consumer-2 purchase 6, got %d %v", qtyB, err)
	}

	// Acknowledge is buyer-gated and idempotent.
	if _, err := models.AcknowledgePurchase(callerCtx("stranger"), product.ID); err == nil {
		t.Fatal("expected acknowledgement by non-buyer to fail")
	}
	if _, err := models.AcknowledgePurchase(consumer, product.ID); err != nil {
		t.Fatalf("AcknowledgePurchase: %v", err)
	}
	if _, err := models.AcknowledgePurchase(consumer, product.ID); err != nil {
		t.Fatalf("re-acknowledgement must be a no-op: %v", err)
	}
	acked, err := models.IsPurchaseAcknowledged(context.Background(), product.ID, consumerAddr)
	if err != nil || !acked {
		t.Fatalf("expected acknowledged purchase, got %v %v", acked, err)
	}

	// Once sold out, further withdrawals are state errors.
	if _, err := models.SellToConsumer(retailer, product.ID, consumerAddr, 1); err == nil {
		t.Fatal("expected sale on sold-out lot to fail")
	}

	// The event log captured the full history in order.
	events, err := models.GetProductEvents(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("GetProductEvents: %v", err)
	}
	wantTypes := []models.EventType{
		models.EventTypeProductCreated,
		models.EventTypeProductSentToSupplier,
		models.EventTypeProductReceivedBySupplier,
		models.EventTypeShippingInfoUpdated,
		models.EventTypeProductSentToRetailer,
		models.EventTypeProductReceivedByRetailer,
		models.EventTypeProductAddedToStore,
		models.EventTypeProductSoldToConsumer,
		models.EventTypeProductSoldToConsumer,
		models.EventTypePurchaseAcknowledged,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(events))
	}
	for i, e := range events {
		if e.EventType != wantTypes[i] {
			t.Fatalf("event %d: expected %s, got %s", i, wantTypes[i], e.EventType)
		}
	}
}

func TestQuotationBatchApprovalAndFulfillment(t *testing.T) {
	setupLedgerTest(t)
	registerAllRoles(t)

	producer := callerCtx(producerAddr)
	supplier := callerCtx(supplierAddr)
	retailer := callerCtx(retailerAddr)
	consumer := callerCtx(consumerAddr)
	ctxB := callerCtx(consumerB)

	q1, err := models.CreateQuotation(consumer, &models.NewQuotation{Name: "Rice", Description: "parboiled", Quantity: 5})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	q2, err := models.CreateQuotation(ctxB, &models.NewQuotation{Name: "Rice", Quantity: 3})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	qOther, err := models.CreateQuotation(ctxB, &models.NewQuotation{Name: "Wheat", Quantity: 2})
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}

	pending, err := models.GetPendingQuotations(context.Background())
	if err != nil || len(pending) != 3 {
		t.Fatalf("expected 3 pending quotations, got %v %v", pending, err)
	}

	// Mixed product names are rejected atomically.
	if _, err := models.ApproveQuotations(producer, []int{q1.ID, qOther.ID}, 100); err == nil {
		t.Fatal("expected mixed-name approval to fail")
	}
	// Total below the requested sum is rejected.
	if _, err := models.ApproveQuotations(producer, []int{q1.ID, q2.ID}, 7); err == nil {
		t.Fatal("expected undersized total to fail")
	}
	// Only a producer may approve.
	if _, err := models.ApproveQuotations(retailer, []int{q1.ID}, 5); err == nil {
		t.Fatal("expected non-producer approval to fail")
	}

	// Batch approval mints a single lot covering both requests plus surplus.
	product, err := models.ApproveQuotations(producer, []int{q1.ID, q2.ID}, 12)
	if err != nil {
		t.Fatalf("ApproveQuotations: %v", err)
	}
	if !product.IsFromQuotation {
		t.Fatal("expected quotation-originated lot")
	}
	if product.Name != "Rice" || product.TotalQuantity != 12 || product.AvailableQuantity != 12 {
		t.Fatalf("unexpected lot: %+v", product)
	}
	if product.Status != models.ProductStatusCreated {
		t.Fatalf("new lot must start at Created, got %s", product.Status)
	}

	linked, err := models.GetProductQuotations(context.Background(), product.ID)
	if err != nil || len(linked) != 2 {
		t.Fatalf("expected 2 linked quotations, got %v %v", linked, err)
	}

	// An approved quotation cannot be approved or rejected again.
	if _, err := models.ApproveQuotations(producer, []int{q1.ID}, 5); err == nil {
		t.Fatal("expected double approval to fail")
	}
	if _, err := models.RejectQuotation(producer, q1.ID); err == nil {
		t.Fatal("expected reject of approved quotation to fail")
	}

	// The remaining Wheat quotation can still be rejected.
	rejected, err := models.RejectQuotation(producer, qOther.ID)
	if err != nil {
		t.Fatalf("RejectQuotation: %v", err)
	}
	if rejected.Status != models.QuotationStatusRejected {
		t.Fatalf("expected Rejected, got %s", rejected.Status)
	}

	// Fulfillment requires the lot to be on sale.
	if _, err := models.FulfillQuotations(retailer, product.ID, []int{q1.ID, q2.ID}); err == nil {
		t.Fatal("expected fulfillment before AvailableForSale to fail")
	}

	if _, err := models.SendToSupplier(producer, product.ID, supplierAddr); err != nil {
		t.Fatalf("SendToSupplier: %v", err)
	}
	if _, err := models.ReceiveProduct(supplier, product.ID); err != nil {
		t.Fatalf("ReceiveProduct: %v", err)
	}
	if _, err := models.SendToRetailer(supplier, product.ID, retailerAddr); err != nil {
		t.Fatalf("SendToRetailer: %v", err)
	}
	if _, err := models.ReceiveProductFromSupplier(retailer, product.ID); err != nil {
		t.Fatalf("ReceiveProductFromSupplier: %v", err)
	}
	if _, err := models.AddToStore(retailer, product.ID); err != nil {
		t.Fatalf("AddToStore: %v", err)
	}

	fulfilled, err := models.FulfillQuotations(retailer, product.ID, []int{q1.ID, q2.ID})
	if err != nil {
		t.Fatalf("FulfillQuotations: %v", err)
	}
	if fulfilled.AvailableQuantity != 4 {
		t.Fatalf("expected surplus 4 after fulfillment, got %d", fulfilled.AvailableQuantity)
	}

	qtyA, err := models.GetConsumerPurchaseQuantity(context.Background(), product.ID, consumerAddr)
	if err != nil || qtyA != 5 {
		t.Fatalf("expected consumer-1 purchase 5, got %d %v", qtyA, err)
	}
	qtyB, err := models.GetConsumerPurchaseQuantity(context.Background(), product.ID, consumerB)
	if err != nil || qtyB != 3 {
		t.Fatalf("expected consumer-2 purchase 3, got %d %v", qtyB, err)
	}

	gotQ1, err := models.GetQuotation(context.Background(), q1.ID)
	if err != nil || gotQ1.Status != models.QuotationStatusFulfilled {
		t.Fatalf("expected fulfilled quotation, got %+v %v", gotQ1, err)
	}

	// Double fulfillment is rejected.
	if _, err := models.FulfillQuotations(retailer, product.ID, []int{q1.ID}); err == nil {
		t.Fatal("expected double fulfillment to fail")
	}

	// The surplus remains purchasable by anyone.
	if _, err := models.PurchaseFromSurplus(ctxB, product.ID, 4); err != nil {
		t.Fatalf("PurchaseFromSurplus: %v", err)
	}
	final, err := models.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if final.AvailableQuantity != 0 || final.Status != models.ProductStatusSoldToConsumer {
		t.Fatalf("expected drained lot, got %+v", final)
	}

	// Store listing shows the lot with its remaining quantity history.
	store, err := models.GetRetailerStoreProducts(context.Background(), retailerAddr)
	if err != nil {
		t.Fatalf("GetRetailerStoreProducts: %v", err)
	}
	if len(store.Ids) != 1 || store.Ids[0] != product.ID {
		t.Fatalf("expected store to list product %d, got %v", product.ID, store.Ids)
	}
}

type collectingSink struct {
	mu  sync.Mutex
	ids map[int]bool
}

func (s *collectingSink) Deliver(ctx context.Context, event *models.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = map[int]bool{}
	}
	s.ids[event.ID] = true
	return nil
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func TestEventDispatcherDeliversCommittedEvents(t *testing.T) {
	setupLedgerTest(t)
	registerAllRoles(t)

	producer := callerCtx(producerAddr)
	if _, err := models.CreateProduct(producer, &models.NewProduct{Name: "Beans", Description: "bags", Quantity: 10}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	events, err := models.GetLedgerEvents(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("GetLedgerEvents: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected committed events in the outbox")
	}
	for _, e := range events {
		if e.PublishStatus != models.OutboxPublishStatusPending {
			t.Fatalf("expected PENDING before dispatch, got %s", e.PublishStatus)
		}
	}

	sink := &collectingSink{}
	d := workflow.NewEventDispatcher(config.GetDB(), config.GetLogger(), sink)
	d.PollInterval = 50 * time.Millisecond

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(runCtx)

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() >= len(events) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if sink.count() < len(events) {
		t.Fatalf("expected %d deliveries, got %d", len(events), sink.count())
	}
	cancel()

	after, err := models.GetLedgerEvents(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("GetLedgerEvents: %v", err)
	}
	for _, e := range after {
		if e.PublishStatus != models.OutboxPublishStatusSent {
			t.Fatalf("expected SENT after dispatch, got %s for event %d", e.PublishStatus, e.ID)
		}
	}
}

func TestOwnerGateAndRemoval(t *testing.T) {
	setupLedgerTest(t)

	if _, err := models.EnsureBootstrapOwner(context.Background(), ownerAddr); err != nil {
		t.Fatalf("EnsureBootstrapOwner: %v", err)
	}
	// Bootstrap is idempotent for the same address, rejected for another.
	if _, err := models.EnsureBootstrapOwner(context.Background(), ownerAddr); err != nil {
		t.Fatalf("bootstrap rerun must be a no-op: %v", err)
	}
	if _, err := models.EnsureBootstrapOwner(context.Background(), "intruder"); err == nil {
		t.Fatal("expected bootstrap with a different address to fail")
	}

	// Non-owners cannot register roles.
	if _, err := models.RegisterProducer(callerCtx(producerAddr), producerAddr); err == nil {
		t.Fatal("expected non-owner registration to fail")
	}
	// Missing caller identity is rejected with the unauthenticated kind, not
	// the authorization kind a known-but-unprivileged caller gets.
	if _, err := models.RegisterProducer(context.Background(), producerAddr); models.KindOf(err) != models.ErrorKindUnauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}

	owner := callerCtx(ownerAddr)
	if _, err := models.AddOwner(owner, "owner-2"); err != nil {
		t.Fatalf("AddOwner: %v", err)
	}
	members, err := models.GetRoleMembers(context.Background(), models.LedgerRoleOwner)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected 2 owners, got %v %v", members, err)
	}

	if err := models.RemoveOwner(callerCtx("owner-2"), ownerAddr); err != nil {
		t.Fatalf("RemoveOwner: %v", err)
	}
	stillOwner, err := models.IsOwner(context.Background(), ownerAddr)
	if err != nil || stillOwner {
		t.Fatalf("expected removed owner, got %v %v", stillOwner, err)
	}
	if err := models.RemoveOwner(callerCtx("owner-2"), ownerAddr); err == nil {
		t.Fatal("expected removing a non-owner to fail")
	}
}

func TestConcurrentBootstrapSeedsSingleOwner(t *testing.T) {
	setupLedgerTest(t)

	// Two deploys racing to seed different addresses into an empty owner set.
	// The owner posting lock serializes them, so exactly one wins and the
	// loser is rejected instead of seeding a second owner.
	addresses := []string{"owner-a", "owner-b"}
	errs := make([]error, len(addresses))
	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			_, errs[i] = models.EnsureBootstrapOwner(context.Background(), addr)
		}(i, addr)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			if models.KindOf(err) != models.ErrorKindState {
				t.Fatalf("expected state error for losing bootstrap, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one bootstrap to lose, got %d failures", failures)
	}

	members, err := models.GetRoleMembers(context.Background(), models.LedgerRoleOwner)
	if err != nil {
		t.Fatalf("GetRoleMembers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected exactly one owner after concurrent bootstrap, got %v", members)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("supply-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("supply-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=supplytrace_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
