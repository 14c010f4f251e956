// Command corvusdb-cli is a small smoke-test tool for the driver. It connects
// to a server, exercises the write path and prints the outcome.
//
// Configuration comes from flags, with defaults read from the environment
// (optionally via a .env file):
//
//	CORVUSDB_URL    connection string, e.g. corvusdb://localhost:1776/demo
//	CORVUSDB_DEBUG  set to "true" for verbose command logging
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/corvusdb/corvusdb-go/client"
)

func main() {
	// Missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	var (
		url        = flag.String("url", envOr("CORVUSDB_URL", "corvusdb://localhost:1776/demo"), "connection string")
		collection = flag.String("collection", "smoke", "collection to write to")
		count      = flag.Int("count", 5, "number of documents to insert")
		ordered    = flag.Bool("ordered", true, "run the bulk write in ordered mode")
		debug      = flag.Bool("debug", envOr("CORVUSDB_DEBUG", "") == "true", "enable debug logging")
		timeout    = flag.Duration("timeout", 10*time.Second, "overall operation timeout")
	)
	flag.Parse()

	if err := run(*url, *collection, *count, *ordered, *debug, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "corvusdb-cli: %s\n", client.FormatError(err, *debug))
		os.Exit(1)
	}
}

func run(url, collection string, count int, ordered, debug bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opts := client.DefaultOptions()
	opts.DebugMode = debug
	if debug {
		opts.Logger = client.NewZerologLogger("DEBUG", os.Stderr)
	} else {
		opts.Logger = client.NewZerologLogger("WARN", os.Stderr)
	}

	c := client.NewClient(&opts)
	if err := c.Connect(ctx, url); err != nil {
		return err
	}
	defer c.Disconnect(context.Background())

	if err := c.Ping(ctx); err != nil {
		return err
	}
	fmt.Printf("connected to %s (driver %s)\n", url, c.GetVersion())

	coll := c.Database("").Collection(collection)

	// Insert a batch, update one of them, delete the rest.
	docs := make([]client.Document, count)
	for i := range docs {
		docs[i] = client.Document{
			"run":   time.Now().Format(time.RFC3339),
			"index": i,
		}
	}

	insertRes, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	fmt.Printf("inserted %d document(s)\n", len(insertRes.InsertedIDs))

	updateRes, err := coll.UpdateOne(ctx,
		client.Document{"_id": insertRes.InsertedIDs[0]},
		client.Document{"$set": client.Document{"checked": true}},
	)
	if err != nil {
		return err
	}
	fmt.Printf("matched %d, upserted %d\n", updateRes.MatchedCount, updateRes.UpsertedCount)

	models := make([]client.WriteModel, 0, len(insertRes.InsertedIDs))
	for _, id := range insertRes.InsertedIDs {
		models = append(models, (&client.DeleteOneModel{}).SetFilter(client.Document{"_id": id}))
	}

	bulkRes, err := coll.BulkWrite(ctx, models,
		client.NewBulkWriteOptions().SetOrdered(ordered))
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d document(s)\n", bulkRes.DeletedCount)

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
