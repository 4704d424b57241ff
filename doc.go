// Package docrel stores JSON-like documents in relational tables.
//
// Every document is split into doc-parts: the root object, every nested
// object and every array become rows of their own table, linked by
// did/rid/pid/seq. Tables and typed columns are created on the fly and the
// metadata describing them is versioned with snapshot isolation.
//
//	client, _ := docrel.New(docrel.WithSQLite("docrel.db"))
//	defer client.Close()
//
//	dids, _ := client.Insert(ctx, "shop", "orders", bson.D{
//	    {Key: "customer", Value: "Ann"},
//	    {Key: "items", Value: bson.A{bson.D{{Key: "sku", Value: "A-1"}}}},
//	})
//	_, _ = client.CreateIndex(ctx, "shop", "orders", "customer_1", false, docrel.Asc("customer"))
//	docs, _ := client.Find(ctx, "shop", "orders")
package docrel
