// Package main runs a direct-message stress test against a WorkIt server.
// Each virtual client registers its own account, opens a push stream and
// sends messages to the next client in a ring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"workit/internal/client"
	"workit/internal/config"
	"workit/internal/models"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

type peer struct {
	api *client.Client
	id  uint
}

func main() {
	clients := flag.Int("clients", 20, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	password := flag.String("password", "password123", "Password for generated accounts")
	flag.Parse()
	if *clients < 2 {
		log.Fatal("❌ need at least two clients")
	}

	cc, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load client configuration: %v", err)
	}

	log.Printf("🚀 Starting Chat Stress Test")
	log.Printf("Target: %s", cc.APIURL)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := time.Now().Unix() % 100000
	peers := make([]peer, 0, *clients)
	for i := 0; i < *clients; i++ {
		p, err := register(ctx, cc, fmt.Sprintf("stress%d_%d", run, i), *password)
		if err != nil {
			log.Fatalf("❌ Registration failed: %s", client.Message(err))
		}
		peers = append(peers, p)
	}
	log.Printf("✅ Registered %d accounts", len(peers))

	testCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := range peers {
		wg.Add(1)
		go runClient(testCtx, peers[i], peers[(i+1)%len(peers)].id, i, *interval, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}

	<-testCtx.Done()
	if ctx.Err() != nil {
		log.Println("🛑 Interrupted by user")
	} else {
		log.Println("⏱️  Test duration reached")
	}

	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	logoutCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	for _, p := range peers {
		_ = p.api.Logout(logoutCtx)
	}

	printMetrics()
}

func register(ctx context.Context, cc *config.ClientConfig, username, password string) (peer, error) {
	api, err := client.New(cc, client.WithUserAgent("workit-chattest/1.0"))
	if err != nil {
		return peer{}, err
	}
	auth, err := api.Register(ctx, username, password, password)
	if client.HasStatus(err, 409) {
		auth, err = api.Login(ctx, username, password)
	}
	if err != nil {
		return peer{}, err
	}
	return peer{api: api, id: auth.User.ID}, nil
}

func runClient(ctx context.Context, p peer, to uint, id int, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	stream, err := p.api.Subscribe(ctx)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = stream.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	// Read loop
	go func() {
		for ev := range stream.Events() {
			if ev.Type == models.EventMessageCreated {
				atomic.AddInt64(&metrics.MessagesReceived, 1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			content := fmt.Sprintf("Stress test message from client %d", id)
			if _, err := p.api.SendMessage(ctx, to, content); err != nil {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
