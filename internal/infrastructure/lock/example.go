package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExampleDistributedLock demonstrates using the distributed lock
func ExampleDistributedLock() {
	// Create the Redis client
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	// Create the configuration
	config := &LockConfig{
		TTL:            30 * time.Second,
		MaxRetries:     3,
		RetryInterval:  100 * time.Millisecond,
		AcquireTimeout: 5 * time.Second,
		ReleaseTimeout: 2 * time.Second,
		ValuePrefix:    "example",
	}

	// Create the logger
	logger := slog.Default()

	// Create the lock
	lock := NewDistributedLock(client, "example_lock", config, logger)

	ctx := context.Background()

	// Attempt to acquire the lock
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("Failed to acquire lock", "error", err)
		return
	}

	if !acquired {
		logger.Info("Lock already held by another process")
		return
	}

	// Run the critical section
	logger.Info("Entering critical section")
	time.Sleep(2 * time.Second)

	// Renew the lock if needed
	err = lock.Extend(ctx, 60*time.Second)
	if err != nil {
		logger.Error("Failed to extend lock", "error", err)
	}

	// Finish the critical section
	logger.Info("Exiting critical section")

	// Release the lock
	err = lock.Release(ctx)
	if err != nil {
		logger.Error("Failed to release lock", "error", err)
	}
}

// ExampleLockManager demonstrates using LockManager
func ExampleLockManager() {
	// Create the Redis client
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	// Create the lock manager
	manager := NewLockManager(client, nil, nil)

	ctx := context.Background()

	// Acquire several locks
	_, err := manager.AcquireLock(ctx, "resource_1")
	if err != nil {
		fmt.Printf("Failed to acquire lock1: %v\n", err)
		return
	}

	_, err = manager.AcquireLock(ctx, "resource_2")
	if err != nil {
		fmt.Printf("Failed to acquire lock2: %v\n", err)
		manager.ReleaseLock(ctx, "resource_1")
		return
	}

	// Perform operations on the locked resources
	fmt.Printf("Working with resources: %v\n", manager.ListLocks())

	// Release all locks
	err = manager.ReleaseAll(ctx)
	if err != nil {
		fmt.Printf("Failed to release locks: %v\n", err)
	}
}

// ExampleConcurrentProcessing demonstrates processing tasks guarded by locks
func ExampleConcurrentProcessing() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	// List of tasks to process
	tasks := []string{"task_1", "task_2", "task_3", "task_1", "task_2"} // task_1 and task_2 are duplicated

	for _, taskID := range tasks {
		lockKey := fmt.Sprintf("process_task_%s", taskID)

		// Attempt to acquire the lock for the task
		_, err := manager.AcquireLock(ctx, lockKey)
		if err != nil {
			fmt.Printf("Task %s is already being processed by another instance\n", taskID)
			continue
		}

		// Process the task
		fmt.Printf("Processing task: %s\n", taskID)
		time.Sleep(1 * time.Second)

		// Release the lock
		err = manager.ReleaseLock(ctx, lockKey)
		if err != nil {
			fmt.Printf("Failed to release lock for task %s: %v\n", taskID, err)
		}
	}
}

// ExampleComponentRouting demonstrates routing a message to a component guarded by a lock,
// so that two reactor instances racing on the same intent don't both claim it.
func ExampleComponentRouting() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	config := &LockConfig{
		TTL:            60 * time.Second, // 1 minute to route and dispatch the message
		MaxRetries:     5,
		RetryInterval:  200 * time.Millisecond,
		AcquireTimeout: 10 * time.Second,
		ReleaseTimeout: 5 * time.Second,
		ValuePrefix:    "component_routing",
	}

	manager := NewLockManager(client, config, nil)
	ctx := context.Background()

	// Route the message by its intent ID
	intentID := "intent_12345"
	lockKey := fmt.Sprintf("component_routing:%s", intentID)

	lock, err := manager.AcquireLock(ctx, lockKey)
	if err != nil {
		fmt.Printf("Intent %s is already being routed\n", intentID)
		return
	}

	// Dispatch the message to its target component
	fmt.Printf("Routing intent: %s\n", intentID)

	// Simulate dispatch
	time.Sleep(2 * time.Second)

	// Renew the lock if dispatch runs long
	err = lock.Extend(ctx, 120*time.Second)
	if err != nil {
		fmt.Printf("Failed to extend lock: %v\n", err)
	}

	// Finish routing
	fmt.Printf("Intent %s routed successfully\n", intentID)

	// Release the lock
	err = manager.ReleaseLock(ctx, lockKey)
	if err != nil {
		fmt.Printf("Failed to release lock: %v\n", err)
	}
}

// ExampleBatchProcessing demonstrates batch processing guarded by a lock
func ExampleBatchProcessing() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	// Attempt to acquire the lock for the batch
	_, err := manager.AcquireLock(ctx, "batch_processing")
	if err != nil {
		fmt.Println("Batch processing is already running")
		return
	}

	// Process the batch
	fmt.Println("Starting batch processing...")

	// Simulate batch processing
	time.Sleep(5 * time.Second)

	fmt.Println("Batch processing completed")

	// Release the lock
	err = manager.ReleaseLock(ctx, "batch_processing")
	if err != nil {
		fmt.Printf("Failed to release batch lock: %v\n", err)
	}
}

// ExampleHealthCheck demonstrates checking lock health
func ExampleHealthCheck() {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	manager := NewLockManager(client, nil, nil)
	ctx := context.Background()

	// Acquire several locks
	_, err1 := manager.AcquireLock(ctx, "health_check_1")
	_, err2 := manager.AcquireLock(ctx, "health_check_2")

	if err1 != nil || err2 != nil {
		fmt.Println("Failed to acquire locks for health check")
		return
	}

	// Check lock state
	fmt.Printf("Active locks: %v\n", manager.ListLocks())

	for _, lockKey := range manager.ListLocks() {
		lock, exists := manager.GetLock(lockKey)
		if exists {
			fmt.Printf("Lock %s: acquired=%v, ttl=%v\n",
				lockKey, lock.IsAcquired(), lock.GetTTL())
		}
	}

	// Release all locks
	err := manager.ReleaseAll(ctx)
	if err != nil {
		fmt.Printf("Failed to release all locks: %v\n", err)
	}
}
