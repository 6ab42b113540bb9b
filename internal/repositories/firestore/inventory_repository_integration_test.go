//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderforge/api/internal/domain"
	pconfig "github.com/orderforge/api/internal/platform/config"
	pfirestore "github.com/orderforge/api/internal/platform/firestore"
	"github.com/orderforge/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestFirestoreStoreIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orderforge-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	store, err := NewStore(provider)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)

	seeded, err := store.Inventory().Upsert(ctx, domain.InventoryItem{
		ProductCode: "SKU-001",
		ProductName: "Widget",
		OnHand:      5,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if seeded.OnHand != 5 || seeded.Reserved != 0 {
		t.Fatalf("unexpected seeded stock: %+v", seeded)
	}

	reserveReq := repositories.InventoryMutationRequest{
		Lines: []repositories.InventoryLine{{ProductCode: "SKU-001", Quantity: 3}},
		Now:   now,
	}
	reserved, err := store.Inventory().Reserve(ctx, reserveReq)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	stock := reserved.Stocks["SKU-001"]
	if stock.Reserved != 3 || stock.Available() != 2 {
		t.Fatalf("unexpected stock after reserve: %+v", stock)
	}

	_, err = store.Inventory().Reserve(ctx, repositories.InventoryMutationRequest{
		Lines: []repositories.InventoryLine{{ProductCode: "SKU-001", Quantity: 3}},
		Now:   now,
	})
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	committed, err := store.Inventory().Commit(ctx, repositories.InventoryMutationRequest{
		Lines: []repositories.InventoryLine{{ProductCode: "SKU-001", Quantity: 3}},
		Now:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	stock = committed.Stocks["SKU-001"]
	if stock.OnHand != 2 || stock.Reserved != 0 {
		t.Fatalf("unexpected stock after commit: %+v", stock)
	}

	released, err := reserveThenRelease(ctx, store, now)
	if err != nil {
		t.Fatalf("reserve then release: %v", err)
	}
	if released.Reserved != 0 || released.OnHand != 2 {
		t.Fatalf("unexpected stock after release: %+v", released)
	}

	_, err = store.Inventory().Reserve(ctx, repositories.InventoryMutationRequest{
		Lines: []repositories.InventoryLine{{ProductCode: "SKU-MISSING", Quantity: 1}},
		Now:   now,
	})
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorStockNotFound {
		t.Fatalf("expected stock not found error, got %v", err)
	}

	order := domain.Order{
		ID:              "ord_integration",
		OrderNumber:     "ORD-20250601-ITEST1",
		CustomerName:    "Integration Tester",
		CustomerEmail:   "itest@example.com",
		ShippingAddress: "1 Test Way",
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.AddItem(domain.NewOrderItem("SKU-001", "Widget", 2, decimal.RequireFromString("9.99")))

	if err := store.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	found, err := store.Orders().FindByOrderNumber(ctx, order.OrderNumber)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if found.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", found.Status)
	}
	if !found.TotalAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Fatalf("unexpected total: %s", found.TotalAmount)
	}

	exists, err := store.Orders().ExistsByOrderNumber(ctx, order.OrderNumber)
	if err != nil || !exists {
		t.Fatalf("expected order number to exist, got %v %v", exists, err)
	}
	exists, err = store.Orders().ExistsByOrderNumber(ctx, "ORD-20250601-NOSUCH")
	if err != nil || exists {
		t.Fatalf("expected unknown order number to be free, got %v %v", exists, err)
	}

	duplicate := order
	duplicate.ID = "ord_integration_dup"
	if err := store.Orders().Insert(ctx, duplicate); err == nil {
		t.Fatalf("expected conflict inserting a duplicate order number")
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict error for duplicate order number, got %v", err)
		}
	}

	err = store.RunInTx(ctx, func(ctx context.Context) error {
		current, err := store.Orders().FindByOrderNumber(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		if err := current.UpdateStatus(domain.OrderStatusProcessing); err != nil {
			return err
		}
		current.UpdatedAt = now.Add(time.Minute)
		_, err = store.Orders().Update(ctx, current)
		return err
	})
	if err != nil {
		t.Fatalf("transactional status update: %v", err)
	}

	updated, err := store.Orders().FindByOrderNumber(ctx, order.OrderNumber)
	if err != nil {
		t.Fatalf("find updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing order, got %s", updated.Status)
	}
	if updated.Version != found.Version+1 {
		t.Fatalf("expected version bump from %d, got %d", found.Version, updated.Version)
	}

	stale := found
	if _, err := store.Orders().Update(ctx, stale); err == nil {
		t.Fatalf("expected version conflict for stale write")
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict error, got %v", err)
		}
	}

	status := domain.OrderStatusProcessing
	listed, err := store.Orders().List(ctx, repositories.OrderListFilter{Status: &status})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(listed) != 1 || listed[0].OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}

func reserveThenRelease(ctx context.Context, store *Store, now time.Time) (domain.InventoryItem, error) {
	lines := []repositories.InventoryLine{{ProductCode: "SKU-001", Quantity: 1}}
	if _, err := store.Inventory().Reserve(ctx, repositories.InventoryMutationRequest{Lines: lines, Now: now}); err != nil {
		return domain.InventoryItem{}, err
	}
	result, err := store.Inventory().Release(ctx, repositories.InventoryMutationRequest{Lines: lines, Now: now.Add(2 * time.Minute)})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return result.Stocks["SKU-001"], nil
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
