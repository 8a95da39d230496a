package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/openfroyo/crfleet/pkg/stores"
)

func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

func ExampleSQLiteStore_AppendTick() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	inv := &stores.Invocation{ID: "inv-example", Operation: "delete", Request: `{}`}
	if err := store.CreateInvocation(ctx, inv); err != nil {
		log.Fatal(err)
	}

	tick := &stores.Tick{InvocationID: inv.ID, Seq: 1, Status: "IN_PROGRESS"}
	if err := store.AppendTick(ctx, tick, stores.TickProgress{FleetID: "crf-0123456789abcdef0", Attempts: 1}); err != nil {
		log.Fatal(err)
	}

	got, _ := store.GetInvocation(ctx, inv.ID)
	fmt.Println(got.FleetID, got.Ticks)
	// Output: crf-0123456789abcdef0 1
}
