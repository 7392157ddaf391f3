//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
	pconfig "github.com/mtch-store/api/internal/platform/config"
	pfirestore "github.com/mtch-store/api/internal/platform/firestore"
	"github.com/mtch-store/api/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
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
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	seedProduct := func(id string, price int64, stock int, active bool) {
		t.Helper()
		doc := productDocument{
			Name:      "Product " + id,
			NameLower: "product " + id,
			SKU:       "SKU-" + id,
			Price:     price,
			Currency:  "USD",
			Stock:     stock,
			Active:    active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := client.Collection(productsCollection).Doc(id).Set(ctx, doc); err != nil {
			t.Fatalf("seed product %s: %v", id, err)
		}
	}

	header := func(id string) domain.Order {
		return domain.Order{
			ID:            id,
			OrderNumber:   "MTCH-" + id,
			CustomerName:  "Guest Buyer",
			CustomerPhone: "5551234567",
			PhoneDigits:   "5551234567",
			ShippingAddress: domain.ShippingAddress{
				Country:  "US",
				Province: "CA",
				Street:   "1 Matcha Way",
			},
			Currency: "USD",
		}
	}

	// Guest checkout decrements stock exactly once per line and snapshots prices.
	seedProduct("prd_a", 1000, 5, true)
	seedProduct("prd_b", 250, 10, true)

	created, err := repo.CreateGuest(ctx, repositories.GuestCheckoutRequest{
		Order: header("ord_g1"),
		Lines: []repositories.GuestLine{
			{ProductID: "prd_a", Quantity: 2},
			{ProductID: "prd_b", Quantity: 2},
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("guest checkout: %v", err)
	}
	if created.TotalAmount != 2*1000+2*250 {
		t.Fatalf("expected total 2500, got %d", created.TotalAmount)
	}
	if created.Status != domain.OrderStatusProcessing || !created.Guest {
		t.Fatalf("unexpected order %+v", created)
	}

	stockOf := func(id string) int {
		t.Helper()
		snap, err := client.Collection(productsCollection).Doc(id).Get(ctx)
		if err != nil {
			t.Fatalf("read product %s: %v", id, err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			t.Fatalf("decode product %s: %v", id, err)
		}
		return doc.Stock
	}
	if got := stockOf("prd_a"); got != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", got)
	}

	// One failing line aborts the whole transaction: no partial decrements.
	_, err = repo.CreateGuest(ctx, repositories.GuestCheckoutRequest{
		Order: header("ord_g2"),
		Lines: []repositories.GuestLine{
			{ProductID: "prd_b", Quantity: 1},
			{ProductID: "prd_a", Quantity: 99},
		},
		Now: now,
	})
	var checkoutErr *repositories.CheckoutError
	if !errors.As(err, &checkoutErr) || checkoutErr.Code != repositories.CheckoutErrorInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := stockOf("prd_b"); got != 8 {
		t.Fatalf("expected prd_b untouched at 8, got %d", got)
	}

	// Cancellation restores every line and flips the status.
	cancelled, err := repo.Cancel(ctx, repositories.CancelRequest{OrderID: "ord_g1", Now: now.Add(time.Minute)})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order %+v", cancelled)
	}
	if got := stockOf("prd_a"); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	// A second cancel must fail: the order left PROCESSING.
	_, err = repo.Cancel(ctx, repositories.CancelRequest{OrderID: "ord_g1", Now: now.Add(2 * time.Minute)})
	var stateErr *repositories.OrderStateError
	if !errors.As(err, &stateErr) || stateErr.Current != domain.OrderStatusCancelled {
		t.Fatalf("expected order state error, got %v", err)
	}

	// A status update landing after the cancel must not resurrect the order;
	// the stock restore already happened.
	_, err = repo.UpdateStatus(ctx, "ord_g1", domain.OrderStatusConfirmed, now.Add(3*time.Minute))
	var updateErr *repositories.OrderStateError
	if !errors.As(err, &updateErr) || updateErr.Current != domain.OrderStatusCancelled {
		t.Fatalf("expected order state error from update, got %v", err)
	}
	reloaded, err := repo.FindByID(ctx, "ord_g1")
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected order to stay cancelled, got %s", reloaded.Status)
	}
}

func TestOrderRepositoryIntegrationOversell(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "oversell-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := client.Collection(productsCollection).Doc("prd_last").Set(ctx, productDocument{
		Name:      "Last Unit",
		NameLower: "last unit",
		SKU:       "SKU-LAST",
		Price:     2500,
		Currency:  "USD",
		Stock:     1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	// Two guests race for the single remaining unit; exactly one may win.
	const racers = 2
	errs := make([]error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = repo.CreateGuest(ctx, repositories.GuestCheckoutRequest{
				Order: domain.Order{
					ID:            fmt.Sprintf("ord_race_%d", idx),
					OrderNumber:   fmt.Sprintf("MTCH-910%d", idx),
					CustomerName:  "Racer",
					CustomerPhone: "5551234567",
					PhoneDigits:   "5551234567",
					ShippingAddress: domain.ShippingAddress{
						Country:  "US",
						Province: "CA",
						Street:   "1 Matcha Way",
					},
					Currency: "USD",
				},
				Lines: []repositories.GuestLine{{ProductID: "prd_last", Quantity: 1}},
				Now:   now,
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var checkoutErr *repositories.CheckoutError
		if !errors.As(err, &checkoutErr) || checkoutErr.Code != repositories.CheckoutErrorInsufficientStock {
			t.Fatalf("expected insufficient stock for loser, got %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}

	snap, err := client.Collection(productsCollection).Doc("prd_last").Get(ctx)
	if err != nil {
		t.Fatalf("read product: %v", err)
	}
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if doc.Stock != 0 {
		t.Fatalf("expected stock 0 after the race, got %d", doc.Stock)
	}
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

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
