// Command demo drives a running `stepflow serve` over gRPC with the
// six-task reference plan: order, makespan on 1..5 workers, and readiness
// as tasks complete.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ChuLiYu/stepflow/internal/server"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

func referencePlan() types.PlanRequest {
	pairs := [][2]types.TaskID{
		{"C", "A"}, {"C", "F"}, {"A", "B"}, {"A", "D"},
		{"B", "E"}, {"D", "E"}, {"F", "E"},
	}
	var req types.PlanRequest
	for _, p := range pairs {
		req.Edges = append(req.Edges, types.NewEdge(p[0], p[1]))
	}
	return req
}

func main() {
	addr := flag.String("addr", "localhost:50051", "stepflow gRPC address")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	client := server.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	plan := referencePlan()

	report, err := client.ComputeOrder(ctx, plan)
	if err != nil {
		log.Fatalf("ComputeOrder failed: %v", err)
	}
	fmt.Printf("✓ Order: %v (run %s)\n", report.Order, report.RunID)

	fmt.Println("\n📊 Makespan by worker count (A=1 ... Z=26):")
	for workers := 1; workers <= 5; workers++ {
		req := plan
		req.Workers = &workers
		report, err := client.ComputeMakespan(ctx, req)
		if err != nil {
			log.Fatalf("ComputeMakespan failed: %v", err)
		}
		fmt.Printf("  W=%d  makespan=%d\n", workers, report.Makespan)
	}

	fmt.Println("\n🔄 Ready set as the canonical order completes:")
	var completed []types.TaskID
	for _, task := range report.Order {
		req := plan
		req.Completed = completed
		ready, err := client.ReadyTasks(ctx, req)
		if err != nil {
			log.Fatalf("ReadyTasks failed: %v", err)
		}
		fmt.Printf("  done=%-12v ready=%v\n", completed, ready)
		completed = append(completed, task)
	}
}
